// Package mcpserver exposes the tool registry over the Model Context
// Protocol. Every registered tool becomes an MCP tool whose calls are routed
// through a Dispatcher, and every outcome is returned as exactly one text
// content item.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/flemzord/gasbox/internal/runner"
	"github.com/flemzord/gasbox/internal/tool"
)

// Name is the server name announced during initialization.
const Name = "MCP server for gas-fakes"

// DefaultVersion is announced when Options.Version is empty.
const DefaultVersion = "0.0.2"

// Dispatcher runs one tool call. *runner.Runner implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args json.RawMessage) runner.Result
}

// Options configures a Server.
type Options struct {
	Version      string
	Instructions string
	Logger       *slog.Logger
}

// Server wraps an mcp-go server bound to a registry and a dispatcher.
type Server struct {
	mcp        *server.MCPServer
	dispatcher Dispatcher
	logger     *slog.Logger
	tools      int
}

// New registers every tool of reg, in registry order.
func New(reg *tool.Registry, d Dispatcher, opts Options) (*Server, error) {
	if reg == nil {
		return nil, errors.New("mcpserver: registry is required")
	}
	if d == nil {
		return nil, errors.New("mcpserver: dispatcher is required")
	}
	version := opts.Version
	if version == "" {
		version = DefaultVersion
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	serverOpts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	}
	if opts.Instructions != "" {
		serverOpts = append(serverOpts, server.WithInstructions(opts.Instructions))
	}

	s := &Server{
		mcp:        server.NewMCPServer(Name, version, serverOpts...),
		dispatcher: d,
		logger:     logger.With("component", "mcp"),
	}
	for _, schema := range reg.Schemas() {
		t := mcp.NewToolWithRawSchema(schema.Name, schema.Description, schema.Schema)
		s.mcp.AddTool(t, s.handler(schema.Name))
		s.tools++
	}
	return s, nil
}

// MCP returns the underlying mcp-go server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ToolCount returns the number of tools exposed.
func (s *Server) ToolCount() int { return s.tools }

// handler adapts Dispatch to an mcp-go tool handler. Tool failures are
// reported in the result, never as a Go error.
func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := encodeArguments(req.GetRawArguments())
		if err != nil {
			return textResult(fmt.Sprintf("invalid arguments: %v", err), true), nil
		}
		res := s.dispatcher.Dispatch(ctx, name, args)
		return textResult(res.Text, res.IsError), nil
	}
}

// encodeArguments turns the decoded call arguments back into JSON. Absent
// arguments become an empty object.
func encodeArguments(v any) (json.RawMessage, error) {
	switch a := v.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case json.RawMessage:
		if len(a) == 0 {
			return json.RawMessage(`{}`), nil
		}
		return a, nil
	}
	return json.Marshal(v)
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(text)},
		IsError: isError,
	}
}

// ServeStdio serves newline-delimited JSON-RPC on in and out until in is
// exhausted or ctx is canceled. Protocol errors go to the server logger.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.Info("serving MCP over stdio", "tools", s.tools)
	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("mcp stdio: %w", err)
	}
	return nil
}

// HTTPHandler returns a streamable HTTP handler for mounting at path.
func (s *Server) HTTPHandler(path string, stateless bool) http.Handler {
	return server.NewStreamableHTTPServer(s.mcp,
		server.WithEndpointPath(path),
		server.WithStateLess(stateless),
	)
}
