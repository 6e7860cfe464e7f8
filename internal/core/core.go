package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// App drives the modules of one gasbox process through their lifecycle.
type App struct {
	ctx     *AppContext
	modules []*moduleInstance
	logger  *slog.Logger
}

type moduleInstance struct {
	id      ModuleID
	module  Module
	stopped bool
}

// NewApp creates an App whose modules share ctx.
func NewApp(ctx *AppContext) *App {
	return &App{
		ctx:    ctx,
		logger: ctx.Logger.With("component", "core"),
	}
}

// LoadModules configures, provisions and validates the modules named by
// ids, in order. On failure the modules loaded so far are shut down.
func (a *App) LoadModules(ids []string) error {
	for _, id := range ids {
		mod, err := a.ctx.LoadModule(id)
		if err != nil {
			_ = a.Shutdown(context.Background())
			return fmt.Errorf("loading module %s: %w", id, err)
		}
		a.modules = append(a.modules, &moduleInstance{id: mod.ModuleInfo().ID, module: mod})
		a.logger.Debug("module loaded", "module", id)
	}
	return nil
}

// AppendModule adds an already built module after the loaded ones.
func (a *App) AppendModule(id ModuleID, mod Module) {
	a.modules = append(a.modules, &moduleInstance{id: id, module: mod})
}

// Module returns the loaded module with the given ID.
func (a *App) Module(id string) (Module, bool) {
	for _, mi := range a.modules {
		if string(mi.id) == id {
			return mi.module, true
		}
	}
	return nil, false
}

// ModuleIDs returns the IDs of loaded modules in lifecycle order.
func (a *App) ModuleIDs() []string {
	ids := make([]string, len(a.modules))
	for i, mi := range a.modules {
		ids[i] = string(mi.id)
	}
	return ids
}

// Start starts every Starter in load order. When one fails, the modules
// started before it are stopped and the error is returned. The remaining
// modules are left for Shutdown.
func (a *App) Start() error {
	for i, mi := range a.modules {
		s, ok := mi.module.(Starter)
		if !ok {
			continue
		}
		if err := s.Start(); err != nil {
			a.logger.Error("module start failed", "module", string(mi.id), "error", err)
			_ = a.stop(context.Background(), a.modules[:i])
			return fmt.Errorf("starting module %s: %w", mi.id, err)
		}
		a.logger.Info("module started", "module", string(mi.id))
	}
	return nil
}

// Shutdown stops every loaded module in reverse order, whether it was
// started or only provisioned, and forgets them. Each module is stopped at
// most once. Errors are joined.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.stop(ctx, a.modules)
	a.modules = nil
	return err
}

func (a *App) stop(ctx context.Context, mods []*moduleInstance) error {
	var errs []error
	for i := len(mods) - 1; i >= 0; i-- {
		mi := mods[i]
		if mi.stopped {
			continue
		}
		mi.stopped = true
		s, ok := mi.module.(Stopper)
		if !ok {
			continue
		}
		if err := s.Stop(ctx); err != nil {
			a.logger.Error("module stop failed", "module", string(mi.id), "error", err)
			errs = append(errs, fmt.Errorf("stopping module %s: %w", mi.id, err))
		}
	}
	return errors.Join(errs...)
}
