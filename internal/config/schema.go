// Package config handles YAML configuration loading, environment variable
// expansion, defaults and structural validation for gasbox.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/gasbox/internal/runner"
	"github.com/flemzord/gasbox/internal/security"
	"github.com/flemzord/gasbox/internal/telemetry"
	"github.com/flemzord/gasbox/internal/tools"
)

// Transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// GatewayModule is the module serving the HTTP transport. It is loaded
// implicitly when the transport is http.
const GatewayModule = "gateway.http"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// DataDir holds module state such as the sqlite drive.
	DataDir string `yaml:"data_dir"`

	Server   ServerConfig            `yaml:"server"`
	Log      LogConfig               `yaml:"log"`
	Script   runner.ScriptConfig     `yaml:"script"`
	Drive    DriveConfig             `yaml:"drive"`
	Security SecurityConfig          `yaml:"security"`
	Tracing  telemetry.TracingConfig `yaml:"tracing"`

	// ScriptTools are extra tools defined entirely in configuration.
	ScriptTools []tools.ScriptToolConfig `yaml:"script_tools,omitempty"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "drive.sqlite").
	Modules map[string]yaml.Node `yaml:"modules,omitempty"`
}

// ServerConfig selects how MCP is served.
type ServerConfig struct {
	// Transport is "stdio" (default) or "http".
	Transport string `yaml:"transport"`

	// Version is announced to clients. Empty uses the built-in version.
	Version string `yaml:"version,omitempty"`

	// Instructions are sent to clients during initialization.
	Instructions string `yaml:"instructions,omitempty"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DriveConfig configures the resource store.
type DriveConfig struct {
	// Seed is a YAML file of files created at startup when missing.
	Seed string `yaml:"seed,omitempty"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	RateLimits security.RateLimitConfig `yaml:"rate_limits"`
	Args       security.ArgLimits       `yaml:"args"`

	// SecretEnv names environment variables whose values are loaded into
	// the credential store, redacted from logs and never passed to scripts.
	SecretEnv []string `yaml:"secret_env,omitempty"`

	// AuditLog is a JSONL file receiving audit events. Empty disables it.
	AuditLog string `yaml:"audit_log,omitempty"`
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.Defaults()
	return cfg
}

// Defaults fills zero fields.
func (c *Config) Defaults() {
	if c.Version == "" {
		c.Version = "1"
	}
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	if c.Server.Transport == "" {
		c.Server.Transport = TransportStdio
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Tracing.Enabled && c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = 1
	}
	c.Script.Defaults()
	defaults := security.RateLimitConfigDefaults()
	if c.Security.RateLimits.ToolCallsPerMin == 0 {
		c.Security.RateLimits.ToolCallsPerMin = defaults.ToolCallsPerMin
	}
	if c.Security.RateLimits.ScriptsPerMin == 0 {
		c.Security.RateLimits.ScriptsPerMin = defaults.ScriptsPerMin
	}
	if c.Security.RateLimits.AuthPerMin == 0 {
		c.Security.RateLimits.AuthPerMin = defaults.AuthPerMin
	}
	if c.Security.Args.MaxBytes == 0 {
		c.Security.Args.MaxBytes = security.DefaultMaxArgsSize
	}
	if c.Security.Args.MaxDepth == 0 {
		c.Security.Args.MaxDepth = security.DefaultMaxJSONDepth
	}
}

// defaultDataDir follows the XDG base directory layout.
func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "gasbox")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "gasbox")
	}
	return ".gasbox"
}
