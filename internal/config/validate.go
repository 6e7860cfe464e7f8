package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/flemzord/gasbox/internal/core"
	"github.com/flemzord/gasbox/internal/tools"
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Validate checks the structural validity of a Config after Defaults.
// It verifies the version field, the server and log settings, every
// section that knows how to validate itself, the script tools and that
// all referenced module IDs exist in the registry. Problems are joined.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	switch cfg.Server.Transport {
	case TransportStdio, TransportHTTP:
	default:
		errs = append(errs, fmt.Errorf("config: server.transport must be %q or %q, got %q",
			TransportStdio, TransportHTTP, cfg.Server.Transport))
	}

	if !slices.Contains(logLevels, strings.ToLower(cfg.Log.Level)) {
		errs = append(errs, fmt.Errorf("config: unknown log.level %q", cfg.Log.Level))
	}
	if !slices.Contains(logFormats, cfg.Log.Format) {
		errs = append(errs, fmt.Errorf("config: log.format must be text or json, got %q", cfg.Log.Format))
	}

	if err := cfg.Script.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: script: %w", err))
	}
	if err := cfg.Tracing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: tracing: %w", err))
	}
	errs = append(errs, validateSecurity(cfg.Security)...)
	errs = append(errs, validateScriptTools(cfg.ScriptTools)...)

	for _, id := range slices.Sorted(maps.Keys(cfg.Modules)) {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, unknownModule(id))
		}
	}

	return errors.Join(errs...)
}

func validateSecurity(sec SecurityConfig) []error {
	var errs []error
	rl := sec.RateLimits
	if rl.ToolCallsPerMin < 0 || rl.ScriptsPerMin < 0 || rl.AuthPerMin < 0 {
		errs = append(errs, errors.New("config: security.rate_limits must not be negative"))
	}
	if sec.Args.MaxBytes < 0 || sec.Args.MaxDepth < 0 {
		errs = append(errs, errors.New("config: security.args limits must not be negative"))
	}
	for i, name := range sec.SecretEnv {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Errorf("config: security.secret_env[%d]: empty name", i))
		}
	}
	return errs
}

// validateScriptTools checks each definition and rejects names that are
// duplicated or shadow a built-in tool.
func validateScriptTools(defs []tools.ScriptToolConfig) []error {
	var errs []error
	seen := make(map[string]bool, len(defs))
	for _, t := range tools.Builtins() {
		seen[t.Name()] = true
	}
	for i, def := range defs {
		if err := def.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("config: script_tools[%d]: %w", i, err))
			continue
		}
		name := strings.TrimSpace(def.Name)
		if seen[name] {
			errs = append(errs, fmt.Errorf("config: script_tools[%d]: tool name %q already in use", i, name))
		}
		seen[name] = true
	}
	return errs
}

// unknownModule names the compiled siblings of id, which catches typos
// such as "drive.sqllite".
func unknownModule(id string) error {
	siblings := core.ModulesIn(core.ModuleID(id).Namespace())
	if len(siblings) == 0 {
		return fmt.Errorf("config: unknown module %q", id)
	}
	names := make([]string, len(siblings))
	for i, info := range siblings {
		names[i] = string(info.ID)
	}
	return fmt.Errorf("config: unknown module %q (compiled: %s)", id, strings.Join(names, ", "))
}
