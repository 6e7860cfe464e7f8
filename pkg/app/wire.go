package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/flemzord/gasbox/internal/behavior"
	"github.com/flemzord/gasbox/internal/config"
	"github.com/flemzord/gasbox/internal/core"
	"github.com/flemzord/gasbox/internal/drive"
	"github.com/flemzord/gasbox/internal/mcpserver"
	"github.com/flemzord/gasbox/internal/runner"
	"github.com/flemzord/gasbox/internal/security"
	"github.com/flemzord/gasbox/internal/telemetry"
	"github.com/flemzord/gasbox/internal/tool"
	"github.com/flemzord/gasbox/internal/tools"
)

// ServiceName is the name under which the tracing service is reported.
const ServiceName = "gasbox"

// behaviorModes lists every mode exported by the behavior gauge.
var behaviorModes = []string{
	string(behavior.Unrestricted),
	string(behavior.SandboxedOpen),
	string(behavior.SandboxedStrict),
}

// BuildOptions tunes Build.
type BuildOptions struct {
	// Version is the build version reported to the tracer.
	Version string

	// LogOutput receives the process log. Defaults to os.Stderr; stdout
	// is reserved for the stdio transport.
	LogOutput io.Writer

	// ConfigPath is recorded in the config_load audit event.
	ConfigPath string
}

// Runtime is a fully wired gasbox process: modules are loaded but not
// started.
type Runtime struct {
	Config     *config.Config
	Logger     *slog.Logger
	AppCtx     *core.AppContext
	App        *core.App
	Registry   *tool.Registry
	Controller *behavior.Controller
	Runner     *runner.Runner
	Scripts    *runner.ScriptEngine
	Store      drive.Store
	MCP        *mcpserver.Server
	Audit      *security.AuditLogger
	Metrics    *telemetry.Metrics

	closers []func(context.Context) error
}

// Build wires every component of cfg. The caller must Close the runtime.
func Build(ctx context.Context, cfg *config.Config, opts BuildOptions) (_ *Runtime, err error) {
	rt := &Runtime{Config: cfg}
	defer func() {
		if err != nil {
			_ = rt.Close(context.Background())
		}
	}()

	// Security foundation: credentials first so the redactor knows them
	// before anything is logged.
	creds := security.NewCredentialStore()
	creds.LoadEnv(cfg.Security.SecretEnv...)
	redactor := security.NewRedactor()
	redactor.SyncCredentials(creds)

	logOut := opts.LogOutput
	if logOut == nil {
		logOut = os.Stderr
	}
	rt.Logger = security.NewLogger(logOut, cfg.Log.Format, security.ParseLevel(cfg.Log.Level), redactor)

	auditWriter, err := rt.openAuditLog(cfg.Security.AuditLog)
	if err != nil {
		return nil, err
	}
	rt.Audit = security.NewAuditLogger(security.AuditLoggerConfig{
		Writer:   auditWriter,
		Redactor: redactor,
	})
	rt.Metrics = telemetry.NewMetrics()
	limiter := security.NewRateLimiter(cfg.Security.RateLimits)

	tp, shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Tracing, ServiceName, opts.Version)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, shutdownTracing)

	rt.AppCtx = core.NewAppContext(rt.Logger, cfg.DataDir).WithModuleConfigs(cfg.Modules)
	rt.AppCtx.RegisterService("security.credentials", creds)
	rt.AppCtx.RegisterService("security.redactor", redactor)
	rt.AppCtx.RegisterService("security.audit", rt.Audit)
	rt.AppCtx.RegisterService("security.ratelimiter", limiter)
	rt.AppCtx.RegisterService("telemetry.metrics", rt.Metrics)
	if effective, err := config.Redacted(cfg, redactor); err == nil {
		rt.AppCtx.RegisterService("config.effective", effective)
	}

	rt.App = core.NewApp(rt.AppCtx)
	if err := rt.App.LoadModules(config.Resolve(cfg)); err != nil {
		return nil, err
	}
	// Shutdown covers started and merely provisioned modules alike, so
	// Close is the single place modules are stopped.
	rt.closers = append(rt.closers, rt.App.Shutdown)

	// Modules may provide the store (drive.sqlite); otherwise files live
	// in memory for the lifetime of the process.
	store, ok := core.ServiceAs[drive.Store](rt.AppCtx, "drive.store")
	if !ok {
		store = drive.NewInMemoryStore()
		rt.AppCtx.RegisterService("drive.store", store)
	}
	rt.Store = store
	if cfg.Drive.Seed != "" {
		n, err := drive.LoadSeed(ctx, store, cfg.Drive.Seed)
		if err != nil {
			return nil, err
		}
		rt.Logger.Info("drive seeded", "files", n, "seed", cfg.Drive.Seed)
	}

	rt.Controller = behavior.NewController(behavior.Options{
		Trasher: behavior.TrashFunc(drive.Trasher(store)),
		Logger:  rt.Logger,
		OnChange: func(s behavior.State) {
			rt.Metrics.SetBehaviorMode(string(s.Mode), behaviorModes...)
		},
	})
	rt.Metrics.SetBehaviorMode(string(behavior.Unrestricted), behaviorModes...)

	envDeny := slices.Concat(cfg.Script.EnvDeny, cfg.Security.SecretEnv)
	rt.Scripts, err = runner.NewScriptEngine(cfg.Script,
		runner.WithScriptLogger(rt.Logger),
		runner.WithEnv(func() []string { return security.SanitizedEnv(creds, envDeny...) }),
	)
	if err != nil {
		return nil, err
	}

	rt.Registry = tool.NewRegistry()
	scriptTools, err := tools.NewScriptTools(cfg.ScriptTools)
	if err != nil {
		return nil, err
	}
	if err := tools.Register(rt.Registry, scriptTools...); err != nil {
		return nil, err
	}

	rt.Runner, err = runner.New(runner.Options{
		Registry:   rt.Registry,
		Controller: rt.Controller,
		Store:      store,
		Scripts:    rt.Scripts,
		Limiter:    limiter,
		Audit:      rt.Audit,
		Metrics:    rt.Metrics,
		Tracer:     tp.Tracer(telemetry.TracerName),
		Logger:     rt.Logger,
		ArgLimits:  cfg.Security.Args,
	})
	if err != nil {
		return nil, err
	}

	rt.MCP, err = mcpserver.New(rt.Registry, rt.Runner, mcpserver.Options{
		Version:      cfg.Server.Version,
		Instructions: cfg.Server.Instructions,
		Logger:       rt.Logger,
	})
	if err != nil {
		return nil, err
	}

	// Late-bound services consumed by modules at Start.
	rt.AppCtx.RegisterService("behavior.controller", rt.Controller)
	rt.AppCtx.RegisterService("tool.registry", rt.Registry)
	rt.AppCtx.RegisterService("runner", rt.Runner)
	rt.AppCtx.RegisterService("runner.scripts", rt.Scripts)
	rt.AppCtx.RegisterService("mcp.server", rt.MCP)

	rt.Audit.Log(security.AuditEvent{
		Type:   security.EventConfigLoad,
		Detail: opts.ConfigPath,
		Metadata: map[string]string{
			"transport": cfg.Server.Transport,
			"tools":     strconv.Itoa(rt.Registry.Len()),
			"modules":   strconv.Itoa(len(rt.App.ModuleIDs())),
		},
	})
	rt.Logger.Info("gasbox wired",
		"transport", cfg.Server.Transport,
		"tools", rt.Registry.Len(),
		"modules", rt.App.ModuleIDs(),
	)
	return rt, nil
}

// openAuditLog opens path for appending. An empty path disables the file.
func (rt *Runtime) openAuditLog(path string) (io.Writer, error) {
	if path == "" {
		return nil, nil
	}
	if err := security.ValidatePath(path); err != nil {
		return nil, fmt.Errorf("audit log: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("audit log: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit log: %w", err)
	}
	rt.closers = append(rt.closers, func(context.Context) error { return f.Close() })
	return f, nil
}

// Close releases everything Build acquired, in reverse order.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
