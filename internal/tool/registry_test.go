package tool

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

type registryTestTool struct {
	name   string
	schema string
}

func (t registryTestTool) Name() string        { return t.name }
func (t registryTestTool) Description() string { return "registry test tool" }
func (t registryTestTool) Schema() json.RawMessage {
	if t.schema == "" {
		return json.RawMessage(`{"type":"object"}`)
	}
	return json.RawMessage(t.schema)
}
func (t registryTestTool) Execute(context.Context, json.RawMessage, ExecutionEnv) (Output, error) {
	return Output{Content: "ok"}, nil
}

type metadataOnlyTool struct{}

func (metadataOnlyTool) Name() string            { return "bare" }
func (metadataOnlyTool) Description() string     { return "no body" }
func (metadataOnlyTool) Schema() json.RawMessage { return json.RawMessage(`{}`) }

type scriptTestTool struct{ registryTestTool }

func (scriptTestTool) Script(json.RawMessage) (ScriptRequest, error) {
	return ScriptRequest{Source: "1"}, nil
}

func TestRegistryRegister_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tool Tool
		want error
	}{
		{name: "empty name", tool: registryTestTool{name: ""}, want: ErrEmptyToolName},
		{name: "whitespace name", tool: registryTestTool{name: "   "}, want: ErrEmptyToolName},
		{name: "no handler", tool: metadataOnlyTool{}, want: ErrNoHandler},
		{name: "schema not json", tool: registryTestTool{name: "x", schema: `{`}, want: ErrInvalidSchema},
		{name: "schema bad type", tool: registryTestTool{name: "x", schema: `{"type":"nonsense"}`}, want: ErrInvalidSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := NewRegistry().Register(tt.tool)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Register() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRegistryRegister_Duplicate(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	t1 := registryTestTool{name: "read_file"}
	if err := r.Register(t1); err != nil {
		t.Fatalf("unexpected first register error: %v", err)
	}

	err := r.Register(t1)
	if !errors.Is(err, ErrDuplicateTool) {
		t.Fatalf("expected ErrDuplicateTool, got %v", err)
	}
}

func TestRegistry_PreservesRegistrationOrder(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.MustRegister(
		registryTestTool{name: "zeta"},
		scriptTestTool{registryTestTool{name: "alpha"}},
		registryTestTool{name: "mid"},
	)

	want := []string{"zeta", "alpha", "mid"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}

	schemas := r.Schemas()
	for i, s := range schemas {
		if s.Name != want[i] {
			t.Fatalf("Schemas()[%d].Name = %q, want %q", i, s.Name, want[i])
		}
	}
	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
}

func TestRegistryGet(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.MustRegister(registryTestTool{name: " read_file "}, scriptTestTool{registryTestTool{name: "run"}})

	e, err := r.Get("read_file")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.Name() != "read_file" {
		t.Fatalf("Name() = %q, want canonical %q", e.Name(), "read_file")
	}
	if _, ok := e.Handler(); !ok {
		t.Fatal("read_file should be a Handler")
	}
	if _, ok := e.Scripted(); ok {
		t.Fatal("read_file should not be Scripted")
	}

	s, err := r.Get("run")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Scripted(); !ok {
		t.Fatal("run should be Scripted")
	}

	if _, err := r.Get("missing"); !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("Get(missing) = %v, want ErrToolNotFound", err)
	}
}

func TestRegistryMustRegister_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("MustRegister did not panic on duplicate")
		}
	}()
	r := NewRegistry()
	r.MustRegister(registryTestTool{name: "a"}, registryTestTool{name: "a"})
}
