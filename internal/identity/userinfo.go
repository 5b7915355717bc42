package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/smallbiznis/ndpcatalog/internal/observability/tracing"
)

// UserInfoVerifier resolves tokens against an OIDC userinfo endpoint.
type UserInfoVerifier struct {
	url        string
	httpClient *http.Client
}

func NewUserInfoVerifier(url string, timeout time.Duration) *UserInfoVerifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &UserInfoVerifier{
		url:        url,
		httpClient: tracing.WrapHTTPClient(&http.Client{Timeout: timeout}, "identity-provider"),
	}
}

func (v *UserInfoVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrMissingToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Identity{}, fmt.Errorf("%w: userinfo status %d", ErrUnauthorized, resp.StatusCode)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return Identity{}, fmt.Errorf("%w: decode userinfo: %w", ErrUnauthorized, err)
	}
	return identityFromClaims(payload)
}
