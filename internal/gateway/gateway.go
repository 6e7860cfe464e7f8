// Package gateway provides the HTTP surface of gasbox: health, metrics,
// the live audit stream, admin endpoints and, in HTTP transport, the MCP
// endpoint. It binds to loopback by default and follows the module system
// pattern.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/gasbox/internal/behavior"
	"github.com/flemzord/gasbox/internal/core"
	"github.com/flemzord/gasbox/internal/mcpserver"
	"github.com/flemzord/gasbox/internal/security"
	"github.com/flemzord/gasbox/internal/telemetry"
	"github.com/flemzord/gasbox/internal/tool"
)

// ModuleID is the config key of the gateway module.
const ModuleID = "gateway.http"

func init() {
	core.RegisterModule(&Gateway{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)

// Gateway is the HTTP gateway module. It is a leaf module: nothing imports it.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	addr      net.Addr
	startedAt time.Time

	// Resolved lazily at Start() via service registry.
	controller *behavior.Controller
	registry   *tool.Registry
	mcp        *mcpserver.Server
	audit      *security.AuditLogger
	limiter    *security.RateLimiter
	redactor   *security.Redactor
	metrics    *telemetry.Metrics
	effective  any
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger

	if !g.config.Auth.IsConfigured() && !isLoopback(g.config.Bind) {
		g.logger.Warn("gateway bound to a non-loopback address without auth", "bind", g.config.Bind)
	}
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	if !strings.HasPrefix(g.config.MCPPath, "/") {
		return errors.New("gateway: mcp_path must start with /: " + g.config.MCPPath)
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the service
// registry (lazy binding) and starts the HTTP server.
func (g *Gateway) Start() error {
	g.resolveServices()
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:              g.config.Bind,
		Handler:           g.buildRouter(),
		ReadTimeout:       g.config.ReadTimeout,
		ReadHeaderTimeout: g.config.ReadHeaderTimeout,
		WriteTimeout:      g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}
	g.addr = ln.Addr()

	go func() {
		g.logger.Info("gateway listening", "addr", g.addr.String(), "mcp", g.mcp != nil)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// resolveServices binds optional services. Missing ones degrade the
// matching endpoints instead of failing the start.
func (g *Gateway) resolveServices() {
	g.controller, _ = core.ServiceAs[*behavior.Controller](g.appCtx, "behavior.controller")
	g.registry, _ = core.ServiceAs[*tool.Registry](g.appCtx, "tool.registry")
	g.mcp, _ = core.ServiceAs[*mcpserver.Server](g.appCtx, "mcp.server")
	g.audit, _ = core.ServiceAs[*security.AuditLogger](g.appCtx, "security.audit")
	g.limiter, _ = core.ServiceAs[*security.RateLimiter](g.appCtx, "security.ratelimiter")
	g.redactor, _ = core.ServiceAs[*security.Redactor](g.appCtx, "security.redactor")
	g.metrics, _ = core.ServiceAs[*telemetry.Metrics](g.appCtx, "telemetry.metrics")
	g.effective, _ = g.appCtx.Service("config.effective")
}

// Addr returns the bound listener address, or nil before Start.
func (g *Gateway) Addr() net.Addr { return g.addr }

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}

func isLoopback(bind string) bool {
	host, _, err := net.SplitHostPort(bind)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
