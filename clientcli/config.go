package clientcli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultEndpoint is the server a client talks to when none is configured.
const DefaultEndpoint = "http://localhost:3000"

// Profile holds the connection settings for one server.
type Profile struct {
	Name     string `yaml:"name" validate:"required,max=64,excludesall= /\\"`
	Endpoint string `yaml:"endpoint" validate:"required,http_url"`
	Token    string `yaml:"token,omitempty"`
	Default  bool   `yaml:"default,omitempty"`
}

func (p Profile) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("validate profile %q: %w", p.Name, err)
	}
	return nil
}

// ValidateEndpoint reports whether s is usable as a profile or client endpoint.
func ValidateEndpoint(s string) error {
	if err := validate.Var(s, "required,http_url"); err != nil {
		return fmt.Errorf("endpoint %q must be an http(s) URL", s)
	}
	return nil
}

// ConfigFile is the on-disk profile list. At most one profile is marked
// default; without a mark the first profile is used.
type ConfigFile struct {
	Profiles []Profile `yaml:"profiles"`
}

func (c *ConfigFile) index(name string) int {
	return slices.IndexFunc(c.Profiles, func(p Profile) bool { return p.Name == name })
}

// Lookup returns the named profile, or the default one when name is empty.
func (c *ConfigFile) Lookup(name string) (*Profile, error) {
	if len(c.Profiles) == 0 {
		return nil, ErrNoProfiles
	}

	i := c.index(name)
	if name == "" {
		i = c.defaultIndex()
	}
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return &c.Profiles[i], nil
}

func (c *ConfigFile) defaultIndex() int {
	if i := slices.IndexFunc(c.Profiles, func(p Profile) bool { return p.Default }); i >= 0 {
		return i
	}
	return 0
}

// Upsert validates p and stores it, replacing a profile of the same name.
// The endpoint is saved without a trailing slash. The first profile saved,
// or one with Default set, becomes the default. It reports whether p was new.
func (c *ConfigFile) Upsert(p Profile) (bool, error) {
	p.Endpoint = strings.TrimSuffix(p.Endpoint, "/")
	if err := p.Validate(); err != nil {
		return false, err
	}

	makeDefault := p.Default || len(c.Profiles) == 0
	p.Default = false

	i := c.index(p.Name)
	created := i < 0
	if created {
		c.Profiles = append(c.Profiles, p)
	} else {
		p.Default = c.Profiles[i].Default
		c.Profiles[i] = p
	}

	if makeDefault {
		return created, c.SetDefault(p.Name)
	}
	return created, nil
}

func (c *ConfigFile) Remove(name string) error {
	i := c.index(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	c.Profiles = slices.Delete(c.Profiles, i, i+1)
	return nil
}

// SetDefault marks name as the only default profile.
func (c *ConfigFile) SetDefault(name string) error {
	if c.index(name) < 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	for i := range c.Profiles {
		c.Profiles[i].Default = c.Profiles[i].Name == name
	}
	return nil
}

// DefaultName returns the name Lookup("") would pick, or "".
func (c *ConfigFile) DefaultName() string {
	if len(c.Profiles) == 0 {
		return ""
	}
	return c.Profiles[c.defaultIndex()].Name
}

// Save writes the profile list to path with owner-only permissions, since
// profiles carry bearer tokens.
func (c *ConfigFile) Save(path string) error {
	cleanPath := filepath.Clean(path)

	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(cleanPath, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// LoadConfigFile reads a profile file. A missing file is reported as
// os.ErrNotExist; see LoadOrEmpty for callers about to create one.
func LoadConfigFile(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(filepath.Clean(path)) //#nosec G304 -- path is user-provided config file
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg ConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &cfg, nil
}

// LoadOrEmpty is LoadConfigFile that treats a missing file as empty.
func LoadOrEmpty(path string) (*ConfigFile, error) {
	cfg, err := LoadConfigFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &ConfigFile{}, nil
	}
	return cfg, err
}

// DefaultConfigPath returns ~/.ephemera/client.yaml, or "" without a home
// directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ephemera", "client.yaml")
}

// Config is the resolved connection a Client uses.
type Config struct {
	Endpoint string `validate:"required,http_url"`
	Token    string
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the endpoint is an http(s) URL.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// ValidateWithAuth additionally requires a bearer token.
func (c *Config) ValidateWithAuth() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Token == "" {
		return ErrTokenRequired
	}
	return nil
}

// WithDefaults returns a copy with DefaultEndpoint filled in and any trailing
// slash removed.
func (c *Config) WithDefaults() *Config {
	cfg := *c
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	cfg.Endpoint = strings.TrimSuffix(cfg.Endpoint, "/")
	return &cfg
}

func ConfigFromProfile(p *Profile) *Config {
	if p == nil {
		return &Config{}
	}
	return &Config{Endpoint: p.Endpoint, Token: p.Token}
}

// ConfigFromEnv reads EPHEMERA_ENDPOINT and EPHEMERA_TOKEN.
func ConfigFromEnv() *Config {
	return &Config{
		Endpoint: os.Getenv("EPHEMERA_ENDPOINT"),
		Token:    os.Getenv("EPHEMERA_TOKEN"),
	}
}

func ProfileFromEnv() string {
	return os.Getenv("EPHEMERA_PROFILE")
}

func ConfigPathFromEnv() string {
	return os.Getenv("EPHEMERA_CLIENT_CONFIG")
}

// MergeConfig overlays configs in order. Empty fields never override.
func MergeConfig(configs ...*Config) *Config {
	result := &Config{}
	for _, cfg := range configs {
		if cfg == nil {
			continue
		}
		if cfg.Endpoint != "" {
			result.Endpoint = cfg.Endpoint
		}
		if cfg.Token != "" {
			result.Token = cfg.Token
		}
	}
	return result
}
