// Package config provides functionality for managing configuration options
// for the application using command-line flags, a JSON config file and
// environment variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Media backends understood by MediaBackend.
const (
	MediaFilesystem = "fs"
	MediaS3         = "s3"
)

// Options holds the configuration values for the application.
type Options struct {
	// Addr defines the server's listening address (ip:port).
	Addr string `json:"addr" env:"SERVER_ADDRESS"`

	// DatabaseDSN holds the PostgreSQL connection string.
	DatabaseDSN string `json:"database_dsn" env:"DATABASE_DSN"`

	// Config is the path to the Config file.
	Config string `json:"-" env:"CONFIG"`

	// UploadDir is the root directory for the filesystem media backend.
	UploadDir string `json:"upload_dir" env:"UPLOAD_DIR"`

	// SessionSecret signs session cookies.
	SessionSecret string `json:"session_secret" env:"SESSION_SECRET"`

	// SessionTTL is the sliding session lifetime.
	SessionTTL time.Duration `json:"session_ttl" env:"SESSION_TTL"`

	// RedisURL switches the session store to Redis when set.
	RedisURL string `json:"redis_url" env:"REDIS_URL"`

	// MediaBackend is either "fs" or "s3".
	MediaBackend string `json:"media_backend" env:"MEDIA_BACKEND"`
	S3Bucket     string `json:"s3_bucket" env:"S3_BUCKET"`
	S3Region     string `json:"s3_region" env:"S3_REGION"`
	S3Endpoint   string `json:"s3_endpoint" env:"S3_ENDPOINT"`

	// S3AccessKey and S3SecretKey select static credentials (MinIO); when
	// empty the default AWS credential chain is used.
	S3AccessKey string `json:"s3_access_key" env:"S3_ACCESS_KEY"`
	S3SecretKey string `json:"s3_secret_key" env:"S3_SECRET_KEY"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `json:"tls_cert" env:"TLS_CERT"`
	TLSKey  string `json:"tls_key" env:"TLS_KEY"`

	// MaxUploadBytes caps the size of a single upload request.
	MaxUploadBytes int64 `json:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`

	LogLevel string `json:"log_level" env:"LOG_LEVEL"`

	// AuthRateLimit is the sustained /login and /register rate per client IP (req/s).
	AuthRateLimit float64 `json:"auth_rate_limit" env:"AUTH_RATE_LIMIT"`
	AuthRateBurst int     `json:"auth_rate_burst" env:"AUTH_RATE_BURST"`
}

// Parse parses the command-line flags in args (without the program name),
// then the JSON config file, then environment variables, each layer
// overriding the previous one. It returns the resulting Options or an error
// if any layer is malformed or required values are missing.
func Parse(args []string) (*Options, error) {
	options := &Options{}

	fs := flag.NewFlagSet("soundpad", flag.ContinueOnError)
	fs.StringVar(&options.Addr, "a", "localhost:7331", "run on ip:port server")
	fs.StringVar(&options.DatabaseDSN, "d", "", "db address")
	fs.StringVar(&options.Config, "config", "config.json", "path to config file")
	fs.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
	fs.StringVar(&options.UploadDir, "u", "data/uploads", "upload directory")
	fs.StringVar(&options.MediaBackend, "media", MediaFilesystem, "media backend: fs | s3")
	fs.StringVar(&options.LogLevel, "log-level", "info", "log level")
	fs.DurationVar(&options.SessionTTL, "session-ttl", 30*24*time.Hour, "sliding session lifetime")
	fs.Int64Var(&options.MaxUploadBytes, "max-upload", 32<<20, "max upload size in bytes")
	fs.Float64Var(&options.AuthRateLimit, "auth-rate", 1, "login/register requests per second per IP")
	fs.IntVar(&options.AuthRateBurst, "auth-burst", 5, "login/register burst per IP")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Override flags with environment variables if set
	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			data, err := os.ReadFile(options.Config)
			if err != nil {
				return nil, fmt.Errorf("error while reading config file: %w", err)
			}
			if err := json.Unmarshal(data, options); err != nil {
				return nil, fmt.Errorf("error while parsing config file: %w", err)
			}
		}
	}

	if err := env.Parse(options); err != nil {
		return nil, fmt.Errorf("error while parsing environment: %w", err)
	}

	if err := options.Validate(); err != nil {
		return nil, err
	}
	return options, nil
}

// UnmarshalJSON reads a config file. session_ttl is a duration string such
// as "720h", the same format as the flag and SESSION_TTL.
func (o *Options) UnmarshalJSON(data []byte) error {
	type plain Options
	aux := struct {
		*plain
		SessionTTL *string `json:"session_ttl"`
	}{plain: (*plain)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.SessionTTL != nil {
		ttl, err := time.ParseDuration(*aux.SessionTTL)
		if err != nil {
			return fmt.Errorf("session_ttl: %w", err)
		}
		o.SessionTTL = ttl
	}
	return nil
}

// Validate reports missing or inconsistent settings.
func (o *Options) Validate() error {
	var errs []error
	if o.DatabaseDSN == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}
	if o.SessionSecret == "" {
		errs = append(errs, errors.New("session secret is required"))
	}
	if o.SessionTTL <= 0 {
		errs = append(errs, errors.New("session ttl must be positive"))
	}
	switch o.MediaBackend {
	case MediaFilesystem:
		if o.UploadDir == "" {
			errs = append(errs, errors.New("upload dir is required for the fs media backend"))
		}
	case MediaS3:
		if o.S3Bucket == "" {
			errs = append(errs, errors.New("s3 bucket is required for the s3 media backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown media backend %q", o.MediaBackend))
	}
	if (o.TLSCert == "") != (o.TLSKey == "") {
		errs = append(errs, errors.New("tls cert and key must be set together"))
	}
	return errors.Join(errs...)
}

// TLSEnabled reports whether the server should serve HTTPS.
func (o *Options) TLSEnabled() bool {
	return o.TLSCert != "" && o.TLSKey != ""
}
