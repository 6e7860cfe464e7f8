package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/gasbox/internal/behavior"
	"github.com/flemzord/gasbox/internal/mcpserver"
	"github.com/flemzord/gasbox/internal/runner"
	"github.com/flemzord/gasbox/internal/security"
	"github.com/flemzord/gasbox/internal/telemetry"
	"github.com/flemzord/gasbox/internal/tool"
	"github.com/flemzord/gasbox/internal/tool/tooltest"
)

// echoDispatcher answers every call with the tool name.
type echoDispatcher struct{}

func (echoDispatcher) Dispatch(_ context.Context, name string, _ json.RawMessage) runner.Result {
	return runner.Result{Text: name}
}

// newTestGateway returns a gateway with every optional service bound, as
// Start would leave it, without listening.
func newTestGateway(t *testing.T, cfg Config) *Gateway {
	t.Helper()
	cfg.defaults()

	reg := tool.NewRegistry()
	reg.MustRegister(tooltest.SimpleTool("alpha"), tooltest.SimpleTool("beta"))

	srv, err := mcpserver.New(reg, echoDispatcher{}, mcpserver.Options{})
	if err != nil {
		t.Fatal(err)
	}

	return &Gateway{
		config:     cfg,
		logger:     testLogger(),
		controller: behavior.NewController(behavior.Options{}),
		registry:   reg,
		mcp:        srv,
		audit:      security.NewAuditLogger(security.AuditLoggerConfig{}),
		limiter:    security.NewRateLimiter(security.RateLimitConfig{}),
		redactor:   security.NewRedactor(),
		metrics:    telemetry.NewMetrics(),
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func mustYAMLNode(t *testing.T, text string) *yaml.Node {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(text), &node); err != nil {
		t.Fatalf("YAML parse: %v", err)
	}
	if len(node.Content) > 0 {
		return node.Content[0]
	}
	return &node
}
