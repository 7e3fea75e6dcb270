// Package config provides configuration loading and validation for ephemera.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (EPHEMERA_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with EPHEMERA_ prefix:
//   - server.port → EPHEMERA_SERVER_PORT
//   - storage.s3.bucket → EPHEMERA_STORAGE_S3_BUCKET
//   - upload.max_size_bytes → EPHEMERA_UPLOAD_MAX_SIZE_BYTES
//
// # Configuration Structure
//
// The Config struct contains:
//   - Server: port and HTTP timeouts
//   - Service: cleanup_timeout for discarding blobs of failed uploads
//   - Database: type, DSN, table names and auto_migrate
//   - Storage: filesystem path or S3 bucket settings
//   - Upload: size limit, forbidden extensions and expiry bounds
//   - Reaper: purge interval and the optional Redis lock
//   - Auth: bearer-token issuer, lifetime and signing keys
//   - CORS: cross-origin resource sharing settings
//   - Metrics: Prometheus endpoint
//   - Log: logging level
//
// # Validation
//
// Configuration is validated using struct tags. The S3 and Redis sections
// are only checked when storage.type is s3 or reaper.lock.type is redis.
package config
