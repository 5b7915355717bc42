package remotecatalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/ndpcatalog/internal/config"
	obslogger "github.com/smallbiznis/ndpcatalog/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/ndpcatalog/internal/observability/metrics"
	"github.com/smallbiznis/ndpcatalog/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	APIKeyHeader = "X-CKAN-API-Key"

	// TokenName labels scoped tokens issued for dataset migration.
	TokenName = "dataset_token"
	// RoleEditor is the capacity granted on auto-provisioned memberships.
	RoleEditor = "editor"

	maxBodyLog = 2048
)

// API is the production catalog surface used by the approval workflow.
type API interface {
	ShowUser(ctx context.Context, id string) (*User, error)
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	ShowOrganization(ctx context.Context, id string) (*Organization, error)
	CreateOrganization(ctx context.Context, req CreateOrganizationRequest) (*Organization, error)
	AddMember(ctx context.Context, orgID, username, role string) error
	IssueToken(ctx context.Context, username string) (string, error)
	RevokeToken(ctx context.Context, token string) error
	CreateDataset(ctx context.Context, token string, payload map[string]any) (map[string]any, error)
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Params struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Metrics *obsmetrics.Metrics `optional:"true"`
}

// Client talks to <BaseURL>/api/3/action/<action>.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	metrics    *obsmetrics.Metrics
	log        *zap.Logger
}

func NewFromParams(p Params) *Client {
	return New(Config{
		BaseURL: p.Cfg.Remote.BaseURL,
		APIKey:  p.Cfg.Remote.APIKey,
		Timeout: p.Cfg.Remote.Timeout,
	}, p.Log, p.Metrics)
}

func New(cfg Config, log *zap.Logger, metrics *obsmetrics.Metrics) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		timeout:    timeout,
		httpClient: tracing.WrapHTTPClient(&http.Client{}, "remote-catalog"),
		metrics:    metrics,
		log:        log.Named("remotecatalog.client"),
	}
}

func (c *Client) ShowUser(ctx context.Context, id string) (*User, error) {
	var user User
	query := url.Values{"id": []string{id}}
	if err := c.call(ctx, actionCall{action: "user_show", method: http.MethodGet, query: query, idempotent: true}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	var user User
	if err := c.call(ctx, actionCall{action: "user_create", body: req}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ShowOrganization(ctx context.Context, id string) (*Organization, error) {
	var org Organization
	if err := c.call(ctx, actionCall{action: "organization_show", body: idRequest{ID: id}, idempotent: true}, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

func (c *Client) CreateOrganization(ctx context.Context, req CreateOrganizationRequest) (*Organization, error) {
	var org Organization
	if err := c.call(ctx, actionCall{action: "organization_create", body: req}, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

func (c *Client) AddMember(ctx context.Context, orgID, username, role string) error {
	body := memberRequest{ID: orgID, Username: username, Role: role}
	return c.call(ctx, actionCall{action: "organization_member_create", body: body, idempotent: true}, nil)
}

func (c *Client) IssueToken(ctx context.Context, username string) (string, error) {
	var result tokenCreateResult
	body := tokenCreateRequest{Name: TokenName, User: username}
	if err := c.call(ctx, actionCall{action: "api_token_create", body: body}, &result); err != nil {
		return "", err
	}
	if strings.TrimSpace(result.Token) == "" {
		return "", &APIError{Action: "api_token_create", StatusCode: http.StatusOK, Message: "empty token"}
	}
	return result.Token, nil
}

func (c *Client) RevokeToken(ctx context.Context, token string) error {
	return c.call(ctx, actionCall{action: "api_token_revoke", body: tokenRevokeRequest{Token: token}, idempotent: true}, nil)
}

// CreateDataset authenticates with the scoped token so the remote records the
// dataset as created by the token's owner.
func (c *Client) CreateDataset(ctx context.Context, token string, payload map[string]any) (map[string]any, error) {
	var created map[string]any
	if err := c.call(ctx, actionCall{action: "package_create", body: payload, key: token}, &created); err != nil {
		return nil, err
	}
	return created, nil
}

type actionCall struct {
	action     string
	method     string
	query      url.Values
	body       any
	key        string
	idempotent bool
}

func (c *Client) call(ctx context.Context, ac actionCall, out any) error {
	if ac.method == "" {
		ac.method = http.MethodPost
	}
	if ac.key == "" {
		ac.key = c.apiKey
	}

	var payload []byte
	if ac.body != nil {
		encoded, err := json.Marshal(ac.body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", ac.action, err)
		}
		payload = encoded
	}

	attempts := 1
	if ac.idempotent {
		attempts = 2
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		raw, err := c.do(ctx, ac, payload)
		if err == nil {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(raw, out); err != nil {
				return fmt.Errorf("decode %s result: %w", ac.action, err)
			}
			return nil
		}

		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			break
		}
		obslogger.WithContext(ctx, c.log).Warn("remote call failed, retrying",
			zap.String("action", ac.action),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return lastErr
}

// do performs one attempt under its own deadline and returns the envelope result.
func (c *Client) do(ctx context.Context, ac actionCall, payload []byte) (json.RawMessage, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + "/api/3/action/" + ac.action
	if len(ac.query) > 0 {
		endpoint += "?" + ac.query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(attemptCtx, ac.method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set(APIKeyHeader, ac.key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordRemoteCall(ctx, ac.action, 0, time.Since(start))
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %s", ErrRemoteTimeout, ac.action, c.timeout)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrRemoteUnavailable, ac.action, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	c.metrics.RecordRemoteCall(ctx, ac.action, resp.StatusCode, time.Since(start))
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %s", ErrRemoteTimeout, ac.action, c.timeout)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrRemoteUnavailable, ac.action, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices || decodeErr != nil || !env.Success {
		apiErr := &APIError{
			Action:     ac.action,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(raw), maxBodyLog),
		}
		if env.Error != nil {
			apiErr.Type = env.Error.Type
			apiErr.Message = env.Error.Message
		}
		if apiErr.StatusCode < http.StatusMultipleChoices && apiErr.Type == "Not Found Error" {
			apiErr.StatusCode = http.StatusNotFound
		}
		obslogger.WithContext(ctx, c.log).Warn("remote action rejected",
			zap.String("action", ac.action),
			zap.Int("status", resp.StatusCode),
			zap.String("body", apiErr.Body),
		)
		return nil, apiErr
	}

	return env.Result, nil
}

func retryable(err error) bool {
	return errors.Is(err, ErrRemoteTimeout) || errors.Is(err, ErrRemoteUnavailable)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
