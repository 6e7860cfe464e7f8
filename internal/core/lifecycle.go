package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// The optional phases of a module, in the order App drives them:
//
//	Configure -> Provision -> Validate -> Start -> Stop
//
// Configure only runs when the config file has a section for the module.
// App.Shutdown calls Stop in reverse load order even if Start never ran.

// Configurable decodes the module's section of the "modules" map.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner applies defaults and publishes services on the AppContext.
// Services it needs from others should be looked up in Start, since the
// runtime registers some of them after modules are loaded.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator rejects an unusable configuration before anything starts.
// It must not open files, sockets or goroutines.
type Validator interface {
	Validate() error
}

// Starter begins background work such as a listener or a schedule.
type Starter interface {
	Start() error
}

// Stopper releases what Provision or Start acquired.
type Stopper interface {
	Stop(ctx context.Context) error
}
