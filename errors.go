package ephemera

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an object is unknown or no longer live
	ErrNotFound = errors.New("not found")
	// ErrInternal is returned when an internal error occurs
	ErrInternal = errors.New("internal error")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized is returned when a password or bearer token does not verify
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the requester does not own the object
	ErrForbidden = errors.New("forbidden")
	// ErrPolicyViolation is returned when an upload breaks the upload policy
	ErrPolicyViolation = errors.New("policy violation")
	// ErrTooLarge is returned when an upload exceeds the configured size limit
	ErrTooLarge = fmt.Errorf("%w: upload too large", ErrPolicyViolation)
	// ErrDuplicateToken is returned when the registry rejects a token collision
	ErrDuplicateToken = errors.New("duplicate token")
	// ErrReapInProgress is returned when another purge pass holds the reaper
	ErrReapInProgress = errors.New("reap already in progress")
)
