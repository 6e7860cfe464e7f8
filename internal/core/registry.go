package core

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// catalog holds every module compiled into the binary. Modules add
// themselves from init, so it is filled before main runs.
type catalog struct {
	mu    sync.RWMutex
	infos map[ModuleID]ModuleInfo
}

var compiled = &catalog{infos: make(map[ModuleID]ModuleInfo)}

// RegisterModule adds instance's module to the catalog. It panics on an
// empty ID, a missing constructor or a duplicate ID, which are programming
// errors detected at init time.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	switch {
	case info.ID == "":
		panic("core: module ID must not be empty")
	case info.New == nil:
		panic(fmt.Sprintf("core: module %s has no constructor", info.ID))
	}

	compiled.mu.Lock()
	defer compiled.mu.Unlock()
	if _, dup := compiled.infos[info.ID]; dup {
		panic(fmt.Sprintf("core: module %s registered twice", info.ID))
	}
	compiled.infos[info.ID] = info
}

// GetModule looks up a compiled module by its config key.
func GetModule(id string) (ModuleInfo, bool) {
	compiled.mu.RLock()
	defer compiled.mu.RUnlock()
	info, ok := compiled.infos[ModuleID(id)]
	return info, ok
}

// GetModules returns every compiled module ordered by ID.
func GetModules() []ModuleInfo {
	return compiled.filter(func(ModuleInfo) bool { return true })
}

// ModulesIn returns the compiled modules of one namespace ("drive",
// "gateway", ...) ordered by ID.
func ModulesIn(namespace string) []ModuleInfo {
	return compiled.filter(func(info ModuleInfo) bool { return info.ID.Namespace() == namespace })
}

func (c *catalog) filter(keep func(ModuleInfo) bool) []ModuleInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ModuleInfo, 0, len(c.infos))
	for _, info := range c.infos {
		if keep(info) {
			out = append(out, info)
		}
	}
	slices.SortFunc(out, func(a, b ModuleInfo) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return out
}

func resetRegistry() {
	compiled.mu.Lock()
	defer compiled.mu.Unlock()
	compiled.infos = make(map[ModuleID]ModuleInfo)
}
