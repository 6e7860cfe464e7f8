package tool

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a tool's name paired with its JSON Schema, returned by Registry.Schemas.
type Schema struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// Entry is a registered tool together with its compiled input schema.
type Entry struct {
	Tool

	name   string
	schema *gojsonschema.Schema
}

// Name returns the canonical registered name, trimmed of surrounding space.
func (e Entry) Name() string { return e.name }

// Validate checks args against the tool's input schema. Empty or null args
// are validated as an empty object.
func (e Entry) Validate(args json.RawMessage) error {
	return validateArgs(e.schema, args)
}

// Handler returns the in-process handler, if the tool has one.
func (e Entry) Handler() (Handler, bool) {
	h, ok := e.Tool.(Handler)
	return h, ok
}

// Scripted returns the scripted body, if the tool has one.
func (e Entry) Scripted() (Scripted, bool) {
	s, ok := e.Tool.(Scripted)
	return s, ok
}

// Registry holds registered tools in registration order.
// It is instance-based (not global) for better testability.
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[string]int
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]int),
	}
}

// Register adds a tool to the registry. The input schema is compiled once
// here so that invalid schemas fail at startup rather than per call.
// It returns ErrEmptyToolName, ErrNoHandler, ErrInvalidSchema or
// ErrDuplicateTool.
func (r *Registry) Register(t Tool) error {
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return ErrEmptyToolName
	}

	_, isHandler := t.(Handler)
	_, isScripted := t.(Scripted)
	if !isHandler && !isScripted {
		return fmt.Errorf("%w: %s", ErrNoHandler, name)
	}

	schema, err := compileSchema(t.Schema())
	if err != nil {
		return fmt.Errorf("tool %s: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}

	r.index[name] = len(r.entries)
	r.entries = append(r.entries, Entry{Tool: t, name: name, schema: schema})
	return nil
}

// MustRegister is like Register but panics on error. It is meant for the
// fixed set of built-in tools registered at startup.
func (r *Registry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Get returns the entry with the given name, or ErrToolNotFound.
func (r *Registry) Get(name string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return r.entries[i], nil
}

// Entries returns all registered entries in registration order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Schemas returns all registered tool schemas in registration order.
func (r *Registry) Schemas() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]Schema, 0, len(r.entries))
	for _, e := range r.entries {
		schemas = append(schemas, Schema{
			Name:        e.name,
			Description: e.Description(),
			Schema:      e.Tool.Schema(),
		})
	}
	return schemas
}

// Names returns all registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.name)
	}
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
