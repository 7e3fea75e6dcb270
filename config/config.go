package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/ephemera"
	"github.com/sagarc03/ephemera/database"
	ephemerahttp "github.com/sagarc03/ephemera/http"
	"github.com/sagarc03/ephemera/keybackend"
	"github.com/sagarc03/ephemera/redislock"
	"github.com/sagarc03/ephemera/s3store"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "EPHEMERA"

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for ephemera.
type Config struct {
	Env      string                  `mapstructure:"env" yaml:"env" validate:"omitempty,oneof=dev development prod production"`
	Server   ServerConfig            `mapstructure:"server" yaml:"server"`
	Service  ServiceConfig           `mapstructure:"service" yaml:"service"`
	Database database.Config         `mapstructure:"database" yaml:"database"`
	Storage  StorageConfig           `mapstructure:"storage" yaml:"storage"`
	Upload   UploadConfig            `mapstructure:"upload" yaml:"upload"`
	Reaper   ReaperConfig            `mapstructure:"reaper" yaml:"reaper"`
	Auth     AuthConfig              `mapstructure:"auth" yaml:"auth"`
	CORS     ephemerahttp.CORSConfig `mapstructure:"cors" yaml:"cors"`
	Metrics  MetricsConfig           `mapstructure:"metrics" yaml:"metrics"`
	Log      LogConfig               `mapstructure:"log" yaml:"log"`
}

// IsProd reports whether the process runs in a production environment.
func (c *Config) IsProd() bool {
	return c.Env == "prod" || c.Env == "production"
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port              int           `mapstructure:"port" yaml:"port" validate:"required,min=1,max=65535"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout" validate:"gte=0"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"gte=0"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"gte=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gte=0"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	CleanupTimeout int `mapstructure:"cleanup_timeout" yaml:"cleanup_timeout" validate:"min=1"` // seconds
}

// StorageConfig selects and configures the blob store.
type StorageConfig struct {
	Type string         `mapstructure:"type" yaml:"type" validate:"required,oneof=filesystem s3"`
	Path string         `mapstructure:"path" yaml:"path" validate:"required_if=Type filesystem"`
	S3   s3store.Config `mapstructure:"s3" yaml:"s3" validate:"-"` // checked only when Type is s3
}

// UploadConfig holds the limits every upload is checked against.
type UploadConfig struct {
	MaxSizeBytes        int64    `mapstructure:"max_size_bytes" yaml:"max_size_bytes" validate:"gte=0"`
	ForbiddenExtensions []string `mapstructure:"forbidden_extensions" yaml:"forbidden_extensions"`
	MinExpiryDays       int      `mapstructure:"min_expiry_days" yaml:"min_expiry_days" validate:"gte=1"`
	MaxExpiryDays       int      `mapstructure:"max_expiry_days" yaml:"max_expiry_days" validate:"gtefield=MinExpiryDays"`
}

// Policy converts the upload section into the service's policy.
func (u UploadConfig) Policy() ephemera.UploadPolicy {
	return ephemera.UploadPolicy{
		ForbiddenExtensions: u.ForbiddenExtensions,
		MinExpiryDays:       u.MinExpiryDays,
		MaxExpiryDays:       u.MaxExpiryDays,
		MaxSizeBytes:        u.MaxSizeBytes,
	}
}

// ReaperConfig controls the background purge of expired objects.
type ReaperConfig struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	Interval   time.Duration `mapstructure:"interval" yaml:"interval" validate:"gt=0"`
	RunOnStart bool          `mapstructure:"run_on_start" yaml:"run_on_start"`
	Lock       LockConfig    `mapstructure:"lock" yaml:"lock"`
}

// LockConfig selects how concurrent reapers in separate processes are kept apart.
type LockConfig struct {
	Type  string           `mapstructure:"type" yaml:"type" validate:"required,oneof=none redis"`
	Key   string           `mapstructure:"key" yaml:"key"`
	TTL   time.Duration    `mapstructure:"ttl" yaml:"ttl" validate:"gt=0"`
	Redis redislock.Config `mapstructure:"redis" yaml:"redis" validate:"-"` // checked only when Type is redis
}

// AuthConfig holds bearer-token configuration.
type AuthConfig struct {
	Issuer   string                `mapstructure:"issuer" yaml:"issuer"`
	TokenTTL time.Duration         `mapstructure:"token_ttl" yaml:"token_ttl" validate:"gt=0"`
	Leeway   time.Duration         `mapstructure:"leeway" yaml:"leeway" validate:"gte=0"`
	Keys     keybackend.KeysConfig `mapstructure:"keys" yaml:"keys"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path" validate:"omitempty,startswith=/"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=debug info warn error"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"db-type":      "database.type",
	"db-dsn":       "database.dsn",
	"storage-type": "storage.type",
	"storage-path": "storage.path",
	"port":         "server.port",
	"log-level":    "log.level",
	"env":          "env",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey, ok := flagToViperKey[f.Name]
		if !ok {
			return
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance. Every key
// needs a default so that AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.read_timeout", 10*time.Minute)
	v.SetDefault("server.write_timeout", 10*time.Minute)
	v.SetDefault("server.idle_timeout", 2*time.Minute)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("service.cleanup_timeout", 30) // seconds

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "ephemera.db")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.tables.objects", "ephemera_objects")
	v.SetDefault("database.tables.tags", "ephemera_tags")

	v.SetDefault("storage.type", "filesystem")
	v.SetDefault("storage.path", "./uploads")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.region", "")
	v.SetDefault("storage.s3.prefix", "")
	v.SetDefault("storage.s3.use_ssl", true)
	v.SetDefault("storage.s3.create_bucket", false)

	v.SetDefault("upload.max_size_bytes", ephemera.DefaultMaxSizeBytes)
	v.SetDefault("upload.forbidden_extensions", ephemera.DefaultForbiddenExtensions)
	v.SetDefault("upload.min_expiry_days", ephemera.DefaultMinExpiryDays)
	v.SetDefault("upload.max_expiry_days", ephemera.DefaultMaxExpiryDays)

	v.SetDefault("reaper.enabled", true)
	v.SetDefault("reaper.interval", time.Hour)
	v.SetDefault("reaper.run_on_start", true)
	v.SetDefault("reaper.lock.type", "none")
	v.SetDefault("reaper.lock.key", "ephemera:reaper")
	v.SetDefault("reaper.lock.ttl", 10*time.Minute)
	v.SetDefault("reaper.lock.redis.addr", "localhost:6379")
	v.SetDefault("reaper.lock.redis.password", "")
	v.SetDefault("reaper.lock.redis.db", 0)

	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.leeway", 30*time.Second)
	v.SetDefault("auth.keys.file", "")
	v.SetDefault("auth.keys.active", "")

	v.SetDefault("cors.enabled", false)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Authorization", "Content-Type"})
	v.SetDefault("cors.exposed_headers", []string{"Content-Disposition", "Content-Length"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("log.level", "info")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the struct tags of cfg and then the sections that only
// apply to the selected storage and lock backends.
func Validate(cfg *Config) error {
	validate := validator.New()

	if err := validate.Struct(cfg); err != nil {
		return err
	}

	if cfg.Storage.Type == "s3" {
		if err := validate.Struct(cfg.Storage.S3); err != nil {
			return fmt.Errorf("storage.s3: %w", err)
		}
	}

	if cfg.Reaper.Lock.Type == "redis" {
		if err := validate.Struct(cfg.Reaper.Lock.Redis); err != nil {
			return fmt.Errorf("reaper.lock.redis: %w", err)
		}
	}

	if err := cfg.Database.Tables.Validate(); err != nil {
		return fmt.Errorf("database.tables: %w", err)
	}

	return nil
}
