package core

import "strings"

// ModuleID is a dotted module identifier such as "gateway.http".
type ModuleID string

// Namespace returns the part before the first dot, or the whole ID.
func (id ModuleID) Namespace() string {
	ns, _, _ := strings.Cut(string(id), ".")
	return ns
}

// Name returns the part after the first dot, or "" when there is none.
func (id ModuleID) Name() string {
	_, name, _ := strings.Cut(string(id), ".")
	return name
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	// ID is the unique module identifier. It is also the key of the
	// module's section under "modules" in the config file.
	ID ModuleID

	// New returns a fresh, unconfigured instance.
	New func() Module
}

// Module is implemented by every module. Optional lifecycle hooks are
// discovered through the interfaces in lifecycle.go.
type Module interface {
	ModuleInfo() ModuleInfo
}
