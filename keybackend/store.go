package keybackend

import (
	"errors"
	"fmt"
)

// KeysConfig holds configuration for loading signing keys.
type KeysConfig struct {
	Inline []KeyPair `mapstructure:"inline" yaml:"inline"` // Inline key pairs from config
	File   string    `mapstructure:"file" yaml:"file"`     // Path to JSON file containing key pairs
	Active string    `mapstructure:"active" yaml:"active"` // Key id used to sign; optional with a single key
}

// NewSecretStore creates a MapSecretStore from the given configuration.
// Inline and file keys are merged; file keys take precedence over inline
// keys with the same id.
func NewSecretStore(cfg KeysConfig) (*MapSecretStore, error) {
	keys := make(map[string]string)

	for _, p := range cfg.Inline {
		if p.KeyID != "" && p.Secret != "" {
			keys[p.KeyID] = p.Secret
		}
	}

	if cfg.File != "" {
		fileKeys, err := LoadKeysFromFile(cfg.File)
		if err != nil {
			return nil, err
		}
		for k, v := range fileKeys {
			keys[k] = v
		}
	}

	return NewMapSecretStore(keys), nil
}

// SigningKey returns the key used to sign new tokens: the configured active
// key, or the only key when exactly one is loaded.
func SigningKey(store *MapSecretStore, active string) (KeyPair, error) {
	if active == "" {
		ids := store.KeyIDs()
		switch len(ids) {
		case 0:
			return KeyPair{}, errors.New("signing key: no keys configured")
		case 1:
			active = ids[0]
		default:
			return KeyPair{}, fmt.Errorf("signing key: %d keys configured, set the active key id", len(ids))
		}
	}

	secret, err := store.Lookup(active)
	if err != nil {
		return KeyPair{}, fmt.Errorf("signing key: %w", err)
	}

	return KeyPair{KeyID: active, Secret: secret}, nil
}
