package sqlite

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/gasbox/internal/core"
)

// ModuleID is the config key of the SQLite drive module.
const ModuleID = "drive.sqlite"

// ServiceName is the service the opened store is published under.
const ServiceName = "drive.store"

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module opens the SQLite drive store at provision time and publishes it
// as the "drive.store" service.
type Module struct {
	config Config
	store  *Store
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger
	m.config.Defaults(ctx.DataDir)

	store, err := Open(context.Background(), m.config)
	if err != nil {
		return err
	}
	m.store = store
	ctx.RegisterService(ServiceName, store)

	m.logger.Info("sqlite drive store opened", "path", m.config.Path, "wal", m.config.walEnabled())
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.Validate(); err != nil {
		return err
	}
	if err := m.store.Ping(context.Background()); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(context.Context) error {
	if m.store == nil {
		return nil
	}
	m.logger.Info("sqlite drive store closing")
	return m.store.Close()
}

// Store returns the opened store.
func (m *Module) Store() *Store { return m.store }
