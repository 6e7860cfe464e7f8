// Package core provides the module system gasbox is assembled from: a
// global registry of module constructors, a shared AppContext with a
// service registry for late binding between modules, and an App that drives
// the module lifecycle.
package core

import (
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"
)

// AppContext carries shared resources available to modules during
// provisioning and at runtime.
type AppContext struct {
	// Logger for the current module scope.
	Logger *slog.Logger

	// DataDir is the root directory for persistent module data.
	DataDir string

	parentLogger  *slog.Logger
	moduleConfigs map[string]yaml.Node
	services      *services
}

type services struct {
	mu sync.RWMutex
	m  map[string]any
}

// NewAppContext creates a new AppContext with the given base logger and data directory.
func NewAppContext(logger *slog.Logger, dataDir string) *AppContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppContext{
		Logger:       logger,
		DataDir:      dataDir,
		parentLogger: logger,
		services:     &services{m: make(map[string]any)},
	}
}

// WithModuleConfigs returns a copy of the AppContext with module configurations set.
// Each key is a module ID mapping to its raw YAML configuration node.
func (ctx *AppContext) WithModuleConfigs(configs map[string]yaml.Node) *AppContext {
	cp := *ctx
	cp.moduleConfigs = configs
	return &cp
}

// ForModule returns a new AppContext scoped to the given module ID, with a
// child logger that includes the module ID. Services are shared.
func (ctx *AppContext) ForModule(id ModuleID) *AppContext {
	return &AppContext{
		Logger:        ctx.parentLogger.With("module", string(id)),
		DataDir:       ctx.DataDir,
		parentLogger:  ctx.parentLogger,
		moduleConfigs: ctx.moduleConfigs,
		services:      ctx.services,
	}
}

// RegisterService publishes svc under name, replacing any previous value.
func (ctx *AppContext) RegisterService(name string, svc any) {
	ctx.services.mu.Lock()
	defer ctx.services.mu.Unlock()
	ctx.services.m[name] = svc
}

// Service returns the service registered under name.
func (ctx *AppContext) Service(name string) (any, bool) {
	ctx.services.mu.RLock()
	defer ctx.services.mu.RUnlock()
	svc, ok := ctx.services.m[name]
	return svc, ok
}

// ServiceAs returns the service registered under name if it has type T.
func ServiceAs[T any](ctx *AppContext, name string) (T, bool) {
	var zero T
	svc, ok := ctx.Service(name)
	if !ok {
		return zero, false
	}
	t, ok := svc.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// LoadModule instantiates and provisions a module by its ID.
// The lifecycle order is:
//
//	New() → Configure() → Provision() → Validate()
func (ctx *AppContext) LoadModule(id string) (Module, error) {
	info, ok := GetModule(id)
	if !ok {
		return nil, fmt.Errorf("unknown module: %s", id)
	}

	mod := info.New()

	if c, ok := mod.(Configurable); ok {
		if node, exists := ctx.moduleConfigs[id]; exists {
			if err := c.Configure(&node); err != nil {
				return nil, fmt.Errorf("configuring module %s: %w", id, err)
			}
		}
	}

	if p, ok := mod.(Provisioner); ok {
		if err := p.Provision(ctx.ForModule(info.ID)); err != nil {
			return nil, fmt.Errorf("provisioning module %s: %w", id, err)
		}
	}

	if v, ok := mod.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("validating module %s: %w", id, err)
		}
	}

	return mod, nil
}
