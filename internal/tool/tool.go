// Package tool defines the tool interfaces, the registry that holds them in
// registration order, and JSON Schema validation of tool arguments.
//
// A tool is either a Handler, executed in process under a behavior grant,
// or Scripted, whose body is script text run as a subprocess.
package tool

import (
	"context"
	"encoding/json"

	"github.com/flemzord/gasbox/internal/behavior"
	"github.com/flemzord/gasbox/internal/capability"
	"github.com/flemzord/gasbox/internal/drive"
)

// Tool is the metadata every registered tool exposes.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what the tool does.
	Description() string

	// Schema returns a JSON Schema object describing the tool's arguments.
	Schema() json.RawMessage
}

// Handler is a tool whose body runs in process.
type Handler interface {
	Tool

	// Execute runs the tool. args have already been validated against
	// Schema. A returned error becomes an error result; it never aborts
	// the server.
	Execute(ctx context.Context, args json.RawMessage, env ExecutionEnv) (Output, error)
}

// Scripted is a tool whose body is script text run out of process.
type Scripted interface {
	Tool

	// Script builds the subprocess request from validated args.
	Script(args json.RawMessage) (ScriptRequest, error)
}

// ScriptRequest is the typed request for one subprocess invocation.
type ScriptRequest struct {
	// Source is the caller's raw script text.
	Source string

	// Descriptor is the capability grant the script runs under.
	Descriptor capability.Descriptor
}

// ExecutionEnv is what an in-process handler may touch. It carries the
// grant explicitly; handlers never consult the behavior singleton.
type ExecutionEnv struct {
	// Grant is the capability grant active for this invocation.
	Grant *behavior.Grant

	// Drive is the resource store view gated by Grant.
	Drive *drive.Session
}

// Output is the result of a handler execution.
type Output struct {
	// Content is the output text from the tool.
	Content string

	// IsError indicates whether the output represents an error condition.
	IsError bool
}
