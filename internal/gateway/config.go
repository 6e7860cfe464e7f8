package gateway

import "time"

// Config holds HTTP gateway configuration.
type Config struct {
	Bind              string        `yaml:"bind"`
	Auth              AuthConfig    `yaml:"auth"`
	MCPPath           string        `yaml:"mcp_path"`
	Stateless         bool          `yaml:"stateless"`
	AuditBuffer       int           `yaml:"audit_buffer"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	// WriteTimeout is zero by default: /mcp and /ws/audit hold long streams.
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8080"
	}
	if c.MCPPath == "" {
		c.MCPPath = "/mcp"
	}
	if c.AuditBuffer <= 0 {
		c.AuditBuffer = 64
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = 10 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// AuthConfig configures authentication for every non-public endpoint.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
	BasicUser   string `yaml:"basic_user"`
	BasicPass   string `yaml:"basic_pass"`
}

// IsConfigured returns true if any auth method is configured.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != "" || (a.BasicUser != "" && a.BasicPass != "")
}
