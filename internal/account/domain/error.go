package domain

import "errors"

var (
	ErrAuthentication  = errors.New("authentication failed")
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidAccount  = errors.New("invalid account")
)
