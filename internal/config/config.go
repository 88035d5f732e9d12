// Package config provides configuration parsing and validation for the
// ppenc demo client and server.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete ppenc-demo configuration.
type Config struct {
	Listen    string `yaml:"listen"`     // serve: TCP listen address
	Connect   string `yaml:"connect"`    // send: TCP address to dial
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text, json

	// Bootstrap secrets. These seed a session the way example-client/client.c's
	// SENDER_RNG_KEY/HEADER_SALT/BODY_SALT constants do; a real deployment
	// would derive them from a handshake instead of baking them into config.
	SenderRNGKey string `yaml:"sender_rng_key"` // hex, 32 bytes
	HeaderSalt   string `yaml:"header_salt"`    // hex, 16 bytes
	BodySalt     string `yaml:"body_salt"`      // hex, 16 bytes
}

// SenderRNGKeySize, HeaderSaltSize and BodySaltSize are the decoded lengths
// Validate enforces for the corresponding hex-encoded fields.
const (
	SenderRNGKeySize = 32
	HeaderSaltSize   = 16
	BodySaltSize     = 16
)

// GetSenderRNGKey returns the decoded sender RNG key.
func (c *Config) GetSenderRNGKey() ([SenderRNGKeySize]byte, error) {
	var out [SenderRNGKeySize]byte
	decoded, err := hex.DecodeString(c.SenderRNGKey)
	if err != nil {
		return out, fmt.Errorf("invalid sender_rng_key hex: %w", err)
	}
	if len(decoded) != SenderRNGKeySize {
		return out, fmt.Errorf("sender_rng_key must be %d bytes, got %d", SenderRNGKeySize, len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}

// GetHeaderSalt returns the decoded header salt.
func (c *Config) GetHeaderSalt() ([HeaderSaltSize]byte, error) {
	var out [HeaderSaltSize]byte
	decoded, err := hex.DecodeString(c.HeaderSalt)
	if err != nil {
		return out, fmt.Errorf("invalid header_salt hex: %w", err)
	}
	if len(decoded) != HeaderSaltSize {
		return out, fmt.Errorf("header_salt must be %d bytes, got %d", HeaderSaltSize, len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}

// GetBodySalt returns the decoded body salt.
func (c *Config) GetBodySalt() ([BodySaltSize]byte, error) {
	var out [BodySaltSize]byte
	decoded, err := hex.DecodeString(c.BodySalt)
	if err != nil {
		return out, fmt.Errorf("invalid body_salt hex: %w", err)
	}
	if len(decoded) != BodySaltSize {
		return out, fmt.Errorf("body_salt must be %d bytes, got %d", BodySaltSize, len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Listen:    ":8080",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envVarRegex matches ${VAR} or $VAR patterns.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces environment variable references with their values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}

		if idx := strings.Index(name, ":-"); idx != -1 {
			varName := name[:idx]
			defaultVal := name[idx+2:]
			if val, ok := os.LookupEnv(varName); ok {
				return val
			}
			return defaultVal
		}

		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if !isValidLogLevel(c.LogLevel) {
		errs = append(errs, fmt.Sprintf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel))
	}
	if !isValidLogFormat(c.LogFormat) {
		errs = append(errs, fmt.Sprintf("invalid log_format: %s (must be text or json)", c.LogFormat))
	}

	if err := checkHexLen(c.SenderRNGKey, SenderRNGKeySize); c.SenderRNGKey != "" && err != nil {
		errs = append(errs, fmt.Sprintf("sender_rng_key: %v", err))
	}
	if err := checkHexLen(c.HeaderSalt, HeaderSaltSize); c.HeaderSalt != "" && err != nil {
		errs = append(errs, fmt.Sprintf("header_salt: %v", err))
	}
	if err := checkHexLen(c.BodySalt, BodySaltSize); c.BodySalt != "" && err != nil {
		errs = append(errs, fmt.Sprintf("body_salt: %v", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func checkHexLen(s string, want int) error {
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}
	if len(decoded) != want {
		return fmt.Errorf("must decode to %d bytes, got %d", want, len(decoded))
	}
	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func isValidLogFormat(format string) bool {
	switch format {
	case "text", "json":
		return true
	default:
		return false
	}
}

// redactedValue is the placeholder for sensitive values.
const redactedValue = "[REDACTED]"

// Redacted returns a copy of the config with the bootstrap secrets redacted.
// This is safe to log or display to users.
func (c *Config) Redacted() *Config {
	redacted := *c
	if redacted.SenderRNGKey != "" {
		redacted.SenderRNGKey = redactedValue
	}
	if redacted.HeaderSalt != "" {
		redacted.HeaderSalt = redactedValue
	}
	if redacted.BodySalt != "" {
		redacted.BodySalt = redactedValue
	}
	return &redacted
}

// String returns a string representation of the config, with the bootstrap
// secrets redacted. Use StringUnsafe() for full output.
func (c *Config) String() string {
	data, _ := yaml.Marshal(c.Redacted())
	return string(data)
}

// StringUnsafe returns a string representation including sensitive values.
// Use with caution - do not log the output.
func (c *Config) StringUnsafe() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}
