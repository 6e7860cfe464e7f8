package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/gasbox/internal/core"
	"github.com/flemzord/gasbox/internal/runner"
	"github.com/flemzord/gasbox/internal/security"
	"github.com/flemzord/gasbox/internal/telemetry"
)

// ModuleID is the config key of the scratch sweeper module.
const ModuleID = "cron.sweeper"

func init() {
	core.RegisterModule(&SweeperModule{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*SweeperModule)(nil)
	_ core.Provisioner  = (*SweeperModule)(nil)
	_ core.Validator    = (*SweeperModule)(nil)
	_ core.Starter      = (*SweeperModule)(nil)
	_ core.Stopper      = (*SweeperModule)(nil)
)

// SweeperConfig configures the scratch sweeper.
type SweeperConfig struct {
	Schedule   string        `yaml:"schedule"`
	MaxAge     time.Duration `yaml:"max_age"`
	RunOnStart *bool         `yaml:"run_on_start"`
}

func (c *SweeperConfig) defaults() {
	if c.Schedule == "" {
		c.Schedule = DefaultSweepSchedule
	}
	if c.MaxAge <= 0 {
		c.MaxAge = DefaultSweepMaxAge
	}
	if c.RunOnStart == nil {
		t := true
		c.RunOnStart = &t
	}
}

// SweeperModule schedules a ScratchSweepJob over the script engine's
// scratch directory. The directory is resolved at Start from the
// "runner.scripts" service.
type SweeperModule struct {
	config    SweeperConfig
	appCtx    *core.AppContext
	logger    *slog.Logger
	scheduler *Scheduler
	job       *ScratchSweepJob
}

// ModuleInfo implements core.Module.
func (m *SweeperModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &SweeperModule{} },
	}
}

// Configure implements core.Configurable.
func (m *SweeperModule) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("cron: decode sweeper config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *SweeperModule) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.appCtx = ctx
	m.logger = ctx.Logger
	m.scheduler = NewScheduler(ctx.Logger)
	return nil
}

// Validate implements core.Validator.
func (m *SweeperModule) Validate() error {
	if m.config.MaxAge < time.Minute {
		return fmt.Errorf("cron: sweeper max_age %s is below one minute", m.config.MaxAge)
	}
	return ValidateSchedule(m.config.Schedule)
}

// Start implements core.Starter.
func (m *SweeperModule) Start() error {
	engine, ok := core.ServiceAs[*runner.ScriptEngine](m.appCtx, "runner.scripts")
	if !ok {
		m.logger.Warn("no script engine registered, sweeper disabled")
		return nil
	}
	audit, _ := core.ServiceAs[*security.AuditLogger](m.appCtx, "security.audit")
	metrics, _ := core.ServiceAs[*telemetry.Metrics](m.appCtx, "telemetry.metrics")

	m.job = &ScratchSweepJob{
		Dir:          engine.Config().ScratchDir,
		Prefix:       runner.ScratchPrefix,
		MaxAge:       m.config.MaxAge,
		ScheduleExpr: m.config.Schedule,
		Logger:       m.logger,
		Audit:        audit,
		Metrics:      metrics,
	}
	if err := m.scheduler.RegisterJob(m.job); err != nil {
		return err
	}
	if *m.config.RunOnStart {
		if err := m.scheduler.RunNow(context.Background(), m.job.Name()); err != nil {
			m.logger.Warn("initial sweep failed", "error", err)
		}
	}
	return m.scheduler.Start()
}

// Stop implements core.Stopper.
func (m *SweeperModule) Stop(ctx context.Context) error {
	if m.scheduler == nil {
		return nil
	}
	return m.scheduler.Stop(ctx)
}
