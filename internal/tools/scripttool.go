package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/flemzord/gasbox/internal/capability"
	"github.com/flemzord/gasbox/internal/tool"
)

// ErrScriptTool is returned for an unusable script tool definition.
var ErrScriptTool = errors.New("invalid script tool")

// ScriptToolConfig defines a named tool whose body is a fixed script.
// Callers pass inputs in gas_args, which the script sees as the object
// gas_args, and the capability descriptor in gas_fakes_args.
type ScriptToolConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Script      string `yaml:"script"`

	// Args is a JSON Schema "properties" object for gas_args, written as
	// YAML. Empty means the tool takes no inputs.
	Args map[string]any `yaml:"args"`

	// Required lists the gas_args properties callers must supply.
	Required []string `yaml:"required"`
}

// Validate checks the definition without compiling its schema.
func (c ScriptToolConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, fmt.Errorf("%w: name is required", ErrScriptTool))
	}
	if strings.TrimSpace(c.Script) == "" {
		errs = append(errs, fmt.Errorf("%w: %s: script is required", ErrScriptTool, c.Name))
	}
	for _, r := range c.Required {
		if _, ok := c.Args[r]; !ok {
			errs = append(errs, fmt.Errorf("%w: %s: required arg %q is not declared", ErrScriptTool, c.Name, r))
		}
	}
	return errors.Join(errs...)
}

// ScriptTool is a Scripted tool built from a ScriptToolConfig.
type ScriptTool struct {
	cfg    ScriptToolConfig
	schema json.RawMessage
}

// NewScriptTool validates cfg and builds its input schema.
func NewScriptTool(cfg ScriptToolConfig) (*ScriptTool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	gasArgs := map[string]any{"type": "object", "properties": map[string]any{}}
	if len(cfg.Args) > 0 {
		gasArgs["properties"] = cfg.Args
	}
	if len(cfg.Required) > 0 {
		gasArgs["required"] = cfg.Required
	}
	var descriptor map[string]any
	if err := json.Unmarshal([]byte(descriptorArgSchema), &descriptor); err != nil {
		return nil, err
	}
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			capability.ArgsField: descriptor,
			"gas_args":           gasArgs,
		},
	}
	required := []string{capability.ArgsField}
	if len(cfg.Required) > 0 {
		required = append(required, "gas_args")
	}
	schema["required"] = required

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrScriptTool, cfg.Name, err)
	}
	return &ScriptTool{cfg: cfg, schema: raw}, nil
}

// NewScriptTools builds one tool per definition.
func NewScriptTools(cfgs []ScriptToolConfig) ([]tool.Tool, error) {
	out := make([]tool.Tool, 0, len(cfgs))
	for _, c := range cfgs {
		t, err := NewScriptTool(c)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (t *ScriptTool) Name() string { return t.cfg.Name }

func (t *ScriptTool) Description() string {
	if t.cfg.Description != "" {
		return t.cfg.Description
	}
	return "Runs the configured script " + t.cfg.Name + " in the gas-fakes sandbox."
}

func (t *ScriptTool) Schema() json.RawMessage { return t.schema }

// Script binds gas_args as a constant ahead of the configured source.
func (t *ScriptTool) Script(args json.RawMessage) (tool.ScriptRequest, error) {
	var a struct {
		GasArgs json.RawMessage `json:"gas_args"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return tool.ScriptRequest{}, err
		}
	}
	desc, err := capability.FromArgs(args, capability.ArgsField)
	if err != nil {
		return tool.ScriptRequest{}, err
	}

	gasArgs := a.GasArgs
	if len(gasArgs) == 0 || string(gasArgs) == "null" {
		gasArgs = json.RawMessage(`{}`)
	}
	src := "const gas_args = " + string(gasArgs) + ";\n" + t.cfg.Script
	return tool.ScriptRequest{Source: src, Descriptor: desc}, nil
}

var _ tool.Scripted = (*ScriptTool)(nil)
