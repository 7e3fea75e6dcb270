// Package keybackend loads the HMAC keys that sign and verify bearer tokens.
// Keys carry an id so several can be accepted at once while the active one
// is rotated.
package keybackend

import (
	"fmt"
	"slices"
)

// MapSecretStore retrieves signing keys from an in-memory map.
type MapSecretStore struct {
	keys map[string]string
}

// NewMapSecretStore creates a store from a key id to secret mapping.
func NewMapSecretStore(keys map[string]string) *MapSecretStore {
	return &MapSecretStore{keys: keys}
}

// Lookup returns the secret for the key id.
func (s *MapSecretStore) Lookup(keyID string) (string, error) {
	secret, found := s.keys[keyID]
	if !found {
		return "", fmt.Errorf("lookup %q: %w", keyID, ErrKeyNotFound)
	}
	return secret, nil
}

// KeyIDs returns the known key ids, sorted.
func (s *MapSecretStore) KeyIDs() []string {
	ids := make([]string, 0, len(s.keys))
	for id := range s.keys {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of keys.
func (s *MapSecretStore) Len() int {
	return len(s.keys)
}
