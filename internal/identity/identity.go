// Package identity verifies third-party bearer tokens.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingToken  = errors.New("missing bearer token")
	ErrInvalidScheme = errors.New("invalid authorization scheme")
	ErrUnauthorized  = errors.New("identity verification failed")
)

// Identity is the verified subject of a bearer token.
type Identity struct {
	Username string
	Email    string
	Name     string
}

// Verifier checks a raw bearer token with the identity provider.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// ExtractBearerToken parses an Authorization header value.
func ExtractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrInvalidScheme
	}
	return parts[1], nil
}

func firstClaim(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := payload[key]; ok {
			if str := claimToString(value); str != "" {
				return str
			}
		}
	}
	return ""
}

func claimToString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// identityFromClaims maps provider claims onto an Identity. A username is required.
func identityFromClaims(claims map[string]any) (Identity, error) {
	id := Identity{
		Username: firstClaim(claims, "preferred_username", "username"),
		Email:    firstClaim(claims, "email"),
		Name:     firstClaim(claims, "name", "display_name"),
	}
	if id.Username == "" {
		id.Username = id.Email
	}
	if id.Username == "" {
		return Identity{}, fmt.Errorf("%w: username claim missing", ErrUnauthorized)
	}
	if id.Name == "" {
		id.Name = id.Username
	}
	return id, nil
}
