package remotecatalog

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrRemoteLookup        = errors.New("remote_lookup_failed")
	ErrRemoteCreate        = errors.New("remote_create_failed")
	ErrRemoteMembership    = errors.New("remote_membership_failed")
	ErrRemoteDatasetCreate = errors.New("remote_dataset_create_failed")
	ErrRemoteToken         = errors.New("remote_token_failed")
	ErrRemoteTimeout       = errors.New("remote_timeout")
	ErrRemoteUnavailable   = errors.New("remote_unavailable")
)

// APIError is a non-success answer from the remote action API. Body holds the
// raw response for server-side logs only.
type APIError struct {
	Action     string
	StatusCode int
	Type       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote %s: status %d: %s", e.Action, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote %s: status %d", e.Action, e.StatusCode)
}

// IsNotFound reports whether err is a 404 from the remote catalog.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// Classify tags err with a workflow category while keeping the cause matchable.
func Classify(category error, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, category) {
		return err
	}
	return fmt.Errorf("%w: %w", category, err)
}
