package remotecatalog

import "encoding/json"

// User is the subset of a remote user_show result the workflow needs.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Fullname string `json:"fullname,omitempty"`
	State    string `json:"state,omitempty"`
}

type CreateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Fullname string `json:"fullname"`
	Password string `json:"password"`
}

type Organization struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type CreateOrganizationRequest struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type memberRequest struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type tokenCreateRequest struct {
	Name string `json:"name"`
	User string `json:"user"`
}

type tokenCreateResult struct {
	Token string `json:"token"`
}

type tokenRevokeRequest struct {
	Token string `json:"token"`
}

type idRequest struct {
	ID string `json:"id"`
}

// envelope is the action API response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Type    string `json:"__type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}
