package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	accountrepository "github.com/smallbiznis/ndpcatalog/internal/account/repository"
	accountservice "github.com/smallbiznis/ndpcatalog/internal/account/service"
	"github.com/smallbiznis/ndpcatalog/internal/approval"
	auditrepository "github.com/smallbiznis/ndpcatalog/internal/audit/repository"
	auditservice "github.com/smallbiznis/ndpcatalog/internal/audit/service"
	"github.com/smallbiznis/ndpcatalog/internal/config"
	datasetdomain "github.com/smallbiznis/ndpcatalog/internal/dataset/domain"
	datasetrepository "github.com/smallbiznis/ndpcatalog/internal/dataset/repository"
	datasetservice "github.com/smallbiznis/ndpcatalog/internal/dataset/service"
	"github.com/smallbiznis/ndpcatalog/internal/identity"
	"github.com/smallbiznis/ndpcatalog/internal/migration"
	"github.com/smallbiznis/ndpcatalog/internal/observability"
	orgdomain "github.com/smallbiznis/ndpcatalog/internal/organization/domain"
	orgrepository "github.com/smallbiznis/ndpcatalog/internal/organization/repository"
	orgservice "github.com/smallbiznis/ndpcatalog/internal/organization/service"
	"github.com/smallbiznis/ndpcatalog/internal/ratelimit"
	"github.com/smallbiznis/ndpcatalog/internal/remotecatalog"
	"github.com/smallbiznis/ndpcatalog/internal/remotecatalog/remotecatalogtest"
	"github.com/smallbiznis/ndpcatalog/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubVerifier map[string]identity.Identity

func (v stubVerifier) Verify(_ context.Context, token string) (identity.Identity, error) {
	id, ok := v[token]
	if !ok {
		return identity.Identity{}, identity.ErrUnauthorized
	}
	return id, nil
}

type testServer struct {
	engine *gin.Engine
	remote *remotecatalogtest.Server
	db     *gorm.DB
}

func newTestServer(t *testing.T, limiter ratelimit.Limiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	remote := remotecatalogtest.NewServer()
	t.Cleanup(remote.Close)

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()

	api := remotecatalog.New(remotecatalog.Config{
		BaseURL: remote.URL,
		APIKey:  remotecatalogtest.ServiceKey,
		Timeout: 2 * time.Second,
	}, log, nil)

	accounts := accountservice.NewService(accountservice.Params{
		DB:   conn,
		Log:  log,
		Repo: accountrepository.New(conn),
		Verifier: stubVerifier{
			"alice-token": {Username: "alice@example.com", Email: "alice@example.com", Name: "Alice"},
			"klin-token":  {Username: "klin@sdsc.edu", Email: "klin@sdsc.edu", Name: "K Lin"},
		},
		Remote: api,
		GenID:  node,
	})
	orgs := orgservice.NewService(orgservice.Params{DB: conn, Log: log, Repo: orgrepository.NewRepository(conn), Remote: api, GenID: node})
	datasets := datasetservice.NewService(datasetservice.Params{DB: conn, Log: log, Repo: datasetrepository.NewRepository(conn), Orgs: orgs, GenID: node})
	audit := auditservice.NewService(auditservice.Params{DB: conn, Log: log, GenID: node, Repo: auditrepository.Provide()})

	gate, err := approval.NewGate(config.NewStaticReviewerRoster(config.DefaultReviewers), log)
	require.NoError(t, err)

	approvals := approval.NewService(approval.Params{
		Log:      log,
		Gate:     gate,
		Locker:   approval.NewMemoryLocker(),
		Accounts: accounts,
		Orgs:     orgs,
		Datasets: datasets,
		Remote:   api,
		Audit:    audit,
	})

	engine := NewEngine(observability.Config{Environment: "test"}, nil)
	NewServer(ServerParams{
		Gin:         engine,
		Log:         log,
		AccountSvc:  accounts,
		OrgSvc:      orgs,
		DatasetSvc:  datasets,
		ApprovalSvc: approvals,
		AuditSvc:    audit,
		Gate:        gate,
		Limiter:     limiter,
	})

	return &testServer{engine: engine, remote: remote, db: conn}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	payload, ok := decode(t, rec)["error"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	return payload["type"].(string)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestAuthenticationRequired(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/ndp/package_create", "", map[string]any{"title": "T"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorType(t, rec))

	rec = ts.do(t, http.MethodPost, "/ndp/package_create", "forged", map[string]any{"title": "T"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodGet, "/ndp/package_create", "alice-token", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "method_not_allowed", errorType(t, rec))
}

func TestSubmitAndApproveScenario(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/ndp/package_create", "alice-token", map[string]any{
		"title":     "T",
		"name":      "t-dataset",
		"owner_org": "Research Group",
		"resources": []any{map[string]any{"name": "raw", "url": "https://example.org/raw.csv"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode(t, rec)
	id := created["id"].(string)
	org := created["organization"].(map[string]any)
	assert.Equal(t, "research-group", org["name"])

	rec = ts.do(t, http.MethodGet, "/ndp/my_package_list", "alice-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["count"])

	rec = ts.do(t, http.MethodPost, "/ndp/package_approve", "alice-token", map[string]any{"id": id})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, ts.remote.Calls())

	rec = ts.do(t, http.MethodPost, "/ndp/package_approve", "klin-token", map[string]any{"id": id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	published := decode(t, rec)
	assert.Equal(t, "t-dataset", published["name"])

	assert.True(t, ts.remote.HasUser("alice_example_com"))
	_, ok := ts.remote.Organization("research-group")
	assert.True(t, ok)
	assert.Empty(t, ts.remote.ActiveTokens())

	rec = ts.do(t, http.MethodPost, "/ndp/my_package_list", "alice-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode(t, rec)["count"])

	rec = ts.do(t, http.MethodGet, "/ndp/audit_logs", "klin-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	logs := decode(t, rec)["data"].([]any)
	require.Len(t, logs, 1)
	assert.Equal(t, "dataset.approved", logs[0].(map[string]any)["action"])

	rec = ts.do(t, http.MethodGet, "/ndp/audit_logs", "alice-token", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeletePurgeAndReject(t *testing.T) {
	ts := newTestServer(t, nil)

	create := func(name string) string {
		rec := ts.do(t, http.MethodPost, "/ndp/package_create", "alice-token", map[string]any{"name": name, "title": name})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return decode(t, rec)["id"].(string)
	}

	deleted := create("to-delete")
	rec := ts.do(t, http.MethodPost, "/ndp/package_delete", "alice-token", map[string]any{"id": deleted})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, fmt.Sprintf("The package '%s' is deleted.", deleted), rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/ndp/package_approve", "klin-token", map[string]any{"id": deleted})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "dataset_already_deleted", errorType(t, rec))

	purged := create("to-purge")
	rec = ts.do(t, http.MethodPost, "/ndp/package_purge", "alice-token", map[string]any{"id": purged})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, fmt.Sprintf("The package '%s' is purged.", purged), rec.Body.String())

	rejected := create("to-reject")
	rec = ts.do(t, http.MethodPost, "/ndp/package_reject", "klin-token", map[string]any{"id": rejected})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, fmt.Sprintf("The dataset '%s' is rejected and purged.", rejected), rec.Body.String())
	assert.Empty(t, ts.remote.Calls())

	rec = ts.do(t, http.MethodPost, "/ndp/package_reject", "klin-token", map[string]any{"id": rejected})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/ndp/package_delete", "alice-token", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAndValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/ndp/package_create", "alice-token", map[string]any{"name": "dup", "title": "Dup"})
	require.Equal(t, http.StatusOK, rec.Code)
	id := decode(t, rec)["id"].(string)

	rec = ts.do(t, http.MethodPost, "/ndp/package_create", "alice-token", map[string]any{"name": "dup", "title": "Dup"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decode(t, rec)["error"].(map[string]any)
	assert.Equal(t, "validation_error", payload["type"])
	assert.Equal(t, "name_taken", payload["errors"].([]any)[0].(map[string]any)["code"])

	rec = ts.do(t, http.MethodPost, "/ndp/package_update", "alice-token", map[string]any{"id": id, "notes": "revised"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "revised", decode(t, rec)["notes"])

	rec = ts.do(t, http.MethodPost, "/ndp/package_update", "klin-token", map[string]any{"id": id, "notes": "hijack"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateRoundTripKeepsOrganization(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/ndp/package_create", "alice-token", map[string]any{
		"name": "reef-survey", "title": "Reef Survey", "owner_org": "Research Group",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode(t, rec)
	ownerOrg := created["owner_org"]
	require.NotEmpty(t, ownerOrg)

	created["notes"] = "second pass"
	rec = ts.do(t, http.MethodPost, "/ndp/package_update", "alice-token", created)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode(t, rec)
	assert.Equal(t, "second pass", updated["notes"])
	assert.Equal(t, ownerOrg, updated["owner_org"])

	var orgs int64
	require.NoError(t, ts.db.Model(&orgdomain.Organization{}).Count(&orgs).Error)
	assert.EqualValues(t, 1, orgs)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, ratelimit.NewLocalLimiter(1, 1))

	rec := ts.do(t, http.MethodGet, "/ndp/my_package_list", "alice-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/ndp/my_package_list", "alice-token", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", errorType(t, rec))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestMapError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"not authorized", approval.ErrNotAuthorized, http.StatusForbidden, "not_authorized"},
		{"in progress", approval.ErrApprovalInProgress, http.StatusConflict, "approval_in_progress"},
		{"not found", datasetdomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{"remote lookup", remotecatalog.Classify(remotecatalog.ErrRemoteLookup, errors.New("502")), http.StatusBadGateway, "remote_lookup_failed"},
		{"remote membership", remotecatalog.ErrRemoteMembership, http.StatusBadGateway, "remote_membership_failed"},
		{"remote timeout", remotecatalog.Classify(remotecatalog.ErrRemoteDatasetCreate, remotecatalog.ErrRemoteTimeout), http.StatusGatewayTimeout, "remote_timeout"},
		{"cleanup", &approval.PostMigrationCleanupError{DatasetID: "1", RemoteID: "pkg-2", Err: errors.New("x")}, http.StatusInternalServerError, "post_migration_cleanup_failed"},
		{"local", fmt.Errorf("%w: boom", datasetdomain.ErrLocalAction), http.StatusInternalServerError, "internal_error"},
		{"auth", identity.ErrMissingToken, http.StatusUnauthorized, "unauthorized"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.kind, payload.Type)
		})
	}
}
