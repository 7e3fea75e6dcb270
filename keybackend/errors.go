package keybackend

import "errors"

// ErrKeyNotFound is returned when no signing key has the requested key id.
var ErrKeyNotFound = errors.New("signing key not found")
