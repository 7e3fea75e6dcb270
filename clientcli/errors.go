package clientcli

import "errors"

// Errors for profile operations.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoProfiles      = errors.New("no profiles configured")
)

// Errors for configuration and input validation.
var (
	ErrConfigRequired = errors.New("config is required")
	ErrTokenRequired  = errors.New("bearer token is required")
	ErrNoIDs          = errors.New("no ids provided")
	ErrEmptyPath      = errors.New("path is required")
	ErrEmptyToken     = errors.New("share token is required")
)
