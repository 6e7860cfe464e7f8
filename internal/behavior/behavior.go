// Package behavior holds the process-wide sandbox behavior state and the
// controller that grants and revokes it around a single invocation.
//
// The state is a lock-guarded singleton per Controller: Apply acquires it and
// the returned Grant holds it until Revoke, so the whole
// apply → execute → revoke span is serialized. Handlers never read the
// singleton directly; they receive the Grant and call its gate checks.
package behavior

import (
	"context"
	"slices"
)

// Mode is the current restriction level of the behavior state.
type Mode string

// Mode values.
const (
	Unrestricted    Mode = "unrestricted"
	SandboxedOpen   Mode = "sandboxed_open"
	SandboxedStrict Mode = "sandboxed_strict"
)

// AllowItem is one allow-list entry of a strict sandbox.
type AllowItem struct {
	ID    string `json:"id"`
	Write bool   `json:"write"`
}

// State is a point-in-time copy of the behavior singleton.
type State struct {
	Mode      Mode        `json:"mode"`
	AllowList []AllowItem `json:"allow_list,omitempty"`
}

// IsReset reports whether the state is the between-invocation baseline.
func (s State) IsReset() bool {
	return s.Mode == Unrestricted && len(s.AllowList) == 0
}

func (s State) clone() State {
	return State{Mode: s.Mode, AllowList: slices.Clone(s.AllowList)}
}

// Trasher removes resources created while a grant was active.
type Trasher interface {
	Trash(ctx context.Context, ids []string) error
}

// TrashFunc adapts a function to the Trasher interface.
type TrashFunc func(ctx context.Context, ids []string) error

// Trash implements Trasher.
func (f TrashFunc) Trash(ctx context.Context, ids []string) error {
	return f(ctx, ids)
}
