// Package tooltest provides test helpers and mocks for the tool package.
package tooltest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/flemzord/gasbox/internal/capability"
	"github.com/flemzord/gasbox/internal/tool"
)

// MockTool is a configurable mock implementation of tool.Handler.
type MockTool struct {
	NameFunc        func() string
	DescriptionFunc func() string
	SchemaFunc      func() json.RawMessage
	ExecuteFunc     func(ctx context.Context, args json.RawMessage, env tool.ExecutionEnv) (tool.Output, error)

	mu           sync.Mutex
	ExecuteCalls int
	LastEnv      tool.ExecutionEnv
}

// Name implements tool.Tool.
func (m *MockTool) Name() string {
	if m.NameFunc != nil {
		return m.NameFunc()
	}
	return "mock-tool"
}

// Description implements tool.Tool.
func (m *MockTool) Description() string {
	if m.DescriptionFunc != nil {
		return m.DescriptionFunc()
	}
	return "a mock tool"
}

// Schema implements tool.Tool.
func (m *MockTool) Schema() json.RawMessage {
	if m.SchemaFunc != nil {
		return m.SchemaFunc()
	}
	return json.RawMessage(`{"type":"object"}`)
}

// Execute implements tool.Handler.
func (m *MockTool) Execute(ctx context.Context, args json.RawMessage, env tool.ExecutionEnv) (tool.Output, error) {
	m.mu.Lock()
	m.ExecuteCalls++
	m.LastEnv = env
	m.mu.Unlock()

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, args, env)
	}
	return tool.Output{Content: "ok"}, nil
}

// Calls returns the number of Execute calls so far.
func (m *MockTool) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ExecuteCalls
}

// MockScript is a configurable mock implementation of tool.Scripted.
type MockScript struct {
	ToolName   string
	Source     string
	Descriptor capability.Descriptor
	ScriptErr  error
}

// Name implements tool.Tool.
func (m *MockScript) Name() string {
	if m.ToolName != "" {
		return m.ToolName
	}
	return "mock-script"
}

// Description implements tool.Tool.
func (m *MockScript) Description() string { return "a mock scripted tool" }

// Schema implements tool.Tool.
func (m *MockScript) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }

// Script implements tool.Scripted.
func (m *MockScript) Script(json.RawMessage) (tool.ScriptRequest, error) {
	if m.ScriptErr != nil {
		return tool.ScriptRequest{}, m.ScriptErr
	}
	return tool.ScriptRequest{Source: m.Source, Descriptor: m.Descriptor}, nil
}

// SimpleTool creates a minimal handler tool that echoes its name.
func SimpleTool(name string) *MockTool {
	return &MockTool{
		NameFunc:        func() string { return name },
		DescriptionFunc: func() string { return "simple test tool: " + name },
		ExecuteFunc: func(_ context.Context, _ json.RawMessage, _ tool.ExecutionEnv) (tool.Output, error) {
			return tool.Output{Content: "executed: " + name}, nil
		},
	}
}

// Interface guards.
var (
	_ tool.Handler  = (*MockTool)(nil)
	_ tool.Scripted = (*MockScript)(nil)
)
