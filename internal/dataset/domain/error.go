package domain

import "errors"

var (
	ErrNotFound      = errors.New("not_found")
	ErrNotAuthorized = errors.New("not_authorized")
	// ErrLocalAction wraps unexpected storage failures inside a catalog action.
	ErrLocalAction = errors.New("local_action_failed")

	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidName     = errors.New("invalid_name")
	ErrNameTaken       = errors.New("name_taken")
	ErrInvalidOwnerOrg = errors.New("invalid_owner_org")
	ErrInvalidResource = errors.New("invalid_resource")
)

// IsValidation reports whether err is a client input error.
func IsValidation(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidID),
		errors.Is(err, ErrInvalidName),
		errors.Is(err, ErrNameTaken),
		errors.Is(err, ErrInvalidOwnerOrg),
		errors.Is(err, ErrInvalidResource):
		return true
	default:
		return false
	}
}
