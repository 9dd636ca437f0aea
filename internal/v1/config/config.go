package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults for every tunable. The server binds loopback only unless the
// operator widens it.
const (
	DefaultBindAddr        = "127.0.0.1:9001"
	DefaultLogDir          = "log"
	DefaultShutdownTimeout = 10 * time.Second
)

// Config holds the validated server configuration.
type Config struct {
	// BindAddr is the host:port the server listens on.
	BindAddr string

	// JWTSecret signs and verifies session tokens. Required, minimum 32
	// characters.
	JWTSecret string

	// TLSCertFile and TLSKeyFile enable TLS when both are set. PEM format.
	TLSCertFile string
	TLSKeyFile  string

	// AllowedOrigins restricts browser upgrades. Empty means allow all.
	AllowedOrigins []string

	// LogDir receives one log file per UTC day.
	LogDir string

	// Development enables debug logging and gin debug mode.
	Development bool

	// ShutdownTimeout bounds graceful shutdown on SIGINT/SIGTERM.
	ShutdownTimeout time.Duration

	// OTLPEndpoint enables trace export when set (host:port of an OTLP/gRPC
	// collector).
	OTLPEndpoint string
}

// SetDefaults registers defaults on v so unset flags and env vars resolve
// sanely.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("bind-addr", DefaultBindAddr)
	v.SetDefault("log-dir", DefaultLogDir)
	v.SetDefault("shutdown-timeout", DefaultShutdownTimeout)
	v.SetDefault("development", false)
}

// FromViper materializes a Config from v. Call Validate before using it.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		BindAddr:        v.GetString("bind-addr"),
		JWTSecret:       v.GetString("jwt-secret"),
		TLSCertFile:     v.GetString("tls-cert"),
		TLSKeyFile:      v.GetString("tls-key"),
		AllowedOrigins:  v.GetStringSlice("allowed-origins"),
		LogDir:          v.GetString("log-dir"),
		Development:     v.GetBool("development"),
		ShutdownTimeout: v.GetDuration("shutdown-timeout"),
		OTLPEndpoint:    v.GetString("otlp-endpoint"),
	}
}

// Validate checks the whole configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errors []string

	if err := validateHostPort(c.BindAddr); err != nil {
		errors = append(errors, fmt.Sprintf("bind-addr: %v", err))
	}

	if c.JWTSecret == "" {
		errors = append(errors, "jwt-secret is required")
	} else if len(c.JWTSecret) < 32 {
		errors = append(errors, fmt.Sprintf("jwt-secret must be at least 32 characters (got %d)", len(c.JWTSecret)))
	}

	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		errors = append(errors, "tls-cert and tls-key must be set together")
	}
	if c.TLSCertFile != "" {
		if _, err := os.Stat(c.TLSCertFile); err != nil {
			errors = append(errors, fmt.Sprintf("tls-cert: cannot read '%s': %v", c.TLSCertFile, err))
		}
	}
	if c.TLSKeyFile != "" {
		if _, err := os.Stat(c.TLSKeyFile); err != nil {
			errors = append(errors, fmt.Sprintf("tls-key: cannot read '%s': %v", c.TLSKeyFile, err))
		}
	}

	if c.LogDir == "" {
		errors = append(errors, "log-dir is required")
	}

	if c.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("shutdown-timeout must be positive (got %s)", c.ShutdownTimeout))
	}

	if c.OTLPEndpoint != "" {
		if err := validateHostPort(c.OTLPEndpoint); err != nil {
			errors = append(errors, fmt.Sprintf("otlp-endpoint: %v", err))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	logValidatedConfig(c)
	return nil
}

// TLSEnabled reports whether a certificate pair is configured.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// validateHostPort checks that addr parses as host:port with a numeric port.
// An empty host is fine; it means all interfaces.
func validateHostPort(addr string) error {
	if addr == "" {
		return fmt.Errorf("address is required")
	}
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("must be in format 'host:port' (got '%s')", addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535 (got '%s')", portStr)
	}
	return nil
}

// logValidatedConfig runs before the zap logger is initialized, so it uses
// slog.
func logValidatedConfig(cfg *Config) {
	slog.Info("configuration validated",
		"bind_addr", cfg.BindAddr,
		"jwt_secret", redactSecret(cfg.JWTSecret),
		"tls_enabled", cfg.TLSEnabled(),
		"allowed_origins", cfg.AllowedOrigins,
		"log_dir", cfg.LogDir,
		"development", cfg.Development,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"otlp_endpoint", cfg.OTLPEndpoint,
	)
}

// redactSecret shows only the first 8 characters of a secret.
func redactSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}
