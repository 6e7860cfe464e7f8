package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/gasbox/internal/security"
)

// FileName is the config file name looked up in the search path.
const FileName = "gasbox.yaml"

// ErrNotFound is returned by Find when no config file exists.
var ErrNotFound = errors.New("config: no configuration file found")

// envPattern matches ${VAR} and ${VAR:-default} expressions.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads a YAML configuration file, expands environment variables,
// parses it into a Config struct and applies defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse expands environment variables in raw YAML and decodes it.
func Parse(raw []byte) (*Config, error) {
	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("expanding variables: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	cfg.Defaults()
	return &cfg, nil
}

// SearchPaths returns the candidate config locations in lookup order.
func SearchPaths() []string {
	var paths []string
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		paths = append(paths, filepath.Join(dir, "gasbox", FileName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "gasbox", FileName))
	}
	return append(paths, FileName)
}

// Find returns explicit when set, otherwise the first existing file of
// SearchPaths. It returns ErrNotFound when nothing exists.
func Find(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	for _, p := range SearchPaths() {
		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			return p, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("config: checking %s: %w", p, err)
		}
	}
	return "", ErrNotFound
}

// LoadOrDefault loads the config found by Find. With no explicit path and
// no file in the search path it returns the built-in defaults and an empty
// path.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if errors.Is(err, ErrNotFound) {
		return Default(), "", nil
	}
	if err != nil {
		return nil, "", err
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Marshal encodes cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// Redacted returns cfg as a generic map with secret-looking values
// replaced, for display.
func Redacted(cfg *Config, redactor *security.Redactor) (map[string]any, error) {
	raw, err := Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var generic map[string]any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	if redactor == nil {
		redactor = security.NewRedactor()
	}
	redactor.RedactMap(generic)
	return generic, nil
}

// expandEnv replaces ${VAR} and ${VAR:-default} patterns in raw YAML bytes.
// Returns an error listing all unresolved variables (no default, no env value).
func expandEnv(raw []byte) ([]byte, error) {
	var errs []error

	result := envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		subs := envPattern.FindSubmatch(match)
		name := string(subs[1])
		hasDefault := len(subs) > 2 && subs[2] != nil
		defaultVal := ""
		if hasDefault {
			defaultVal = string(subs[2])
		}

		value, ok := os.LookupEnv(name)
		if ok {
			return []byte(value)
		}

		if hasDefault {
			return []byte(defaultVal)
		}

		errs = append(errs, fmt.Errorf("unresolved variable: %s", name))
		return match
	})

	return result, errors.Join(errs...)
}
