package keybackend

import (
	"encoding/json"
	"fmt"
	"os"
)

// KeyPair is a signing key and its id.
type KeyPair struct {
	KeyID  string `json:"kid" mapstructure:"kid" yaml:"kid"`
	Secret string `json:"secret" mapstructure:"secret" yaml:"secret"`
}

// LoadKeysFromFile loads signing keys from a JSON file.
// The file should contain an array of key pairs:
//
//	[
//	  {"kid": "2026-01", "secret": "c2VjcmV0LW9uZQ..."},
//	  {"kid": "2026-04", "secret": "c2VjcmV0LXR3bw..."}
//	]
//
// Entries with an empty id or secret are skipped; a later duplicate id wins.
func LoadKeysFromFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted config file
	if err != nil {
		return nil, fmt.Errorf("read keys file: %w", err)
	}

	var pairs []KeyPair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("parse keys file: %w", err)
	}

	keys := make(map[string]string, len(pairs))
	for _, p := range pairs {
		if p.KeyID != "" && p.Secret != "" {
			keys[p.KeyID] = p.Secret
		}
	}

	return keys, nil
}
