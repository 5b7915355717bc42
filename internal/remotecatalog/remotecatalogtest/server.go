// Package remotecatalogtest provides an in-memory stand-in for the production
// catalog action API.
package remotecatalogtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

const ServiceKey = "service-key"

// Call records one request received by the fake.
type Call struct {
	Action string
	APIKey string
	Body   map[string]any
}

type Member struct {
	OrgID    string
	Username string
	Role     string
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	seq      int
	users    map[string]map[string]any
	orgs     map[string]map[string]any
	members  []Member
	tokens   map[string]string
	revoked  []string
	datasets []map[string]any
	calls    []Call
	failures map[string]int
	delays   map[string]time.Duration
}

func NewServer() *Server {
	s := &Server{
		users:    map[string]map[string]any{},
		orgs:     map[string]map[string]any{},
		tokens:   map[string]string{},
		failures: map[string]int{},
		delays:   map[string]time.Duration{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// FailAction makes every call to action answer with status.
func (s *Server) FailAction(action string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[action] = status
}

// DelayAction sleeps before answering action.
func (s *Server) DelayAction(action string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[action] = d
}

func (s *Server) SeedUser(name, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[name] = map[string]any{"id": s.nextID("user"), "name": name, "email": email, "state": "active"}
}

func (s *Server) SeedOrganization(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID("org")
	s.orgs[name] = map[string]any{"id": id, "name": name, "title": name}
	return id
}

func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *Server) CallCount(action string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Action == action {
			n++
		}
	}
	return n
}

func (s *Server) Datasets() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.datasets))
	copy(out, s.datasets)
	return out
}

func (s *Server) Members() []Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Member, len(s.members))
	copy(out, s.members)
	return out
}

func (s *Server) HasUser(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[name]
	return ok
}

func (s *Server) Organization(name string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[name]
	return org, ok
}

// ActiveTokens returns issued tokens that were never revoked.
func (s *Server) ActiveTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.tokens))
	for token := range s.tokens {
		out = append(out, token)
	}
	return out
}

func (s *Server) Revoked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.revoked))
	copy(out, s.revoked)
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.URL.Path, "/api/3/action/")
	key := r.Header.Get("X-CKAN-API-Key")

	body := map[string]any{}
	if r.Method == http.MethodGet {
		for k := range r.URL.Query() {
			body[k] = r.URL.Query().Get(k)
		}
	} else {
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &body); err != nil {
				writeError(w, http.StatusBadRequest, "Validation Error", "invalid json")
				return
			}
		}
	}

	s.mu.Lock()
	s.calls = append(s.calls, Call{Action: action, APIKey: key, Body: body})
	status := s.failures[action]
	delay := s.delays[action]
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if status != 0 {
		writeError(w, status, "Injected Error", fmt.Sprintf("%s failed", action))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if action == "package_create" {
		if _, ok := s.tokens[key]; !ok {
			writeError(w, http.StatusForbidden, "Authorization Error", "token not valid")
			return
		}
	} else if key != ServiceKey {
		writeError(w, http.StatusForbidden, "Authorization Error", "bad service key")
		return
	}

	switch action {
	case "user_show":
		user, ok := s.users[str(body["id"])]
		if !ok {
			writeError(w, http.StatusNotFound, "Not Found Error", "User not found")
			return
		}
		writeResult(w, user)
	case "user_create":
		name := str(body["name"])
		if _, ok := s.users[name]; ok {
			writeError(w, http.StatusConflict, "Validation Error", "name taken")
			return
		}
		user := map[string]any{"id": s.nextID("user"), "name": name, "email": body["email"], "fullname": body["fullname"], "state": "active"}
		s.users[name] = user
		writeResult(w, user)
	case "organization_show":
		org, ok := s.findOrg(str(body["id"]))
		if !ok {
			writeError(w, http.StatusNotFound, "Not Found Error", "Organization not found")
			return
		}
		writeResult(w, org)
	case "organization_create":
		name := str(body["name"])
		org := map[string]any{"id": s.nextID("org"), "name": name, "title": body["title"], "description": body["description"]}
		s.orgs[name] = org
		writeResult(w, org)
	case "organization_member_create":
		org, ok := s.findOrg(str(body["id"]))
		if !ok {
			writeError(w, http.StatusNotFound, "Not Found Error", "Organization not found")
			return
		}
		member := Member{OrgID: str(org["id"]), Username: str(body["username"]), Role: str(body["role"])}
		for _, m := range s.members {
			if m == member {
				writeResult(w, map[string]any{"capacity": member.Role})
				return
			}
		}
		s.members = append(s.members, member)
		writeResult(w, map[string]any{"capacity": member.Role})
	case "api_token_create":
		token := s.nextID("token")
		s.tokens[token] = str(body["user"])
		writeResult(w, map[string]any{"token": token})
	case "api_token_revoke":
		token := str(body["token"])
		delete(s.tokens, token)
		s.revoked = append(s.revoked, token)
		writeResult(w, nil)
	case "package_create":
		created := map[string]any{}
		for k, v := range body {
			created[k] = v
		}
		created["id"] = s.nextID("pkg")
		created["creator_user_id"] = s.users[s.tokens[key]]["id"]
		s.datasets = append(s.datasets, created)
		writeResult(w, created)
	default:
		writeError(w, http.StatusBadRequest, "Bad Request", "unknown action")
	}
}

func (s *Server) findOrg(id string) (map[string]any, bool) {
	if org, ok := s.orgs[id]; ok {
		return org, true
	}
	for _, org := range s.orgs {
		if str(org["id"]) == id {
			return org, true
		}
	}
	return nil, false
}

func (s *Server) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func str(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "result": result})
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]any{"__type": kind, "message": message},
	})
}
