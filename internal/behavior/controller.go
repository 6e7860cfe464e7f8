package behavior

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/flemzord/gasbox/internal/capability"
)

// trashTimeout bounds how long Revoke waits for the Trasher.
const trashTimeout = 30 * time.Second

// Options configures a Controller.
type Options struct {
	// Trasher removes resources created under a grant. Optional.
	Trasher Trasher

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// OnChange, if non-nil, is called with every new state (used for metrics).
	OnChange func(State)
}

// Controller owns the behavior singleton and applies/revokes grants on it.
type Controller struct {
	sem      chan struct{}
	mu       sync.RWMutex
	state    State
	trasher  Trasher
	logger   *slog.Logger
	onChange func(State)
}

// NewController creates a controller whose state starts Unrestricted.
func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		sem:      make(chan struct{}, 1),
		state:    State{Mode: Unrestricted},
		trasher:  opts.Trasher,
		logger:   logger.With("component", "behavior"),
		onChange: opts.OnChange,
	}
}

// Snapshot returns a copy of the current behavior state.
func (c *Controller) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

// Apply waits for the singleton, then mutates it according to d:
//
//	writable ids present     → SandboxedStrict, one writable entry per id
//	no ids, sandboxed        → SandboxedOpen
//	no ids, not sandboxed    → Unrestricted
//
// The returned Grant must be passed to Revoke. Apply returns ctx.Err() if the
// context ends before the singleton becomes free.
func (c *Controller) Apply(ctx context.Context, d capability.Descriptor) (*Grant, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	state := stateFor(d)
	c.set(state)

	g := &Grant{
		c:       c,
		mode:    state.Mode,
		allow:   make(map[string]bool, len(state.AllowList)),
		items:   state.AllowList,
		created: make(map[string]struct{}),
	}
	for _, it := range state.AllowList {
		g.allow[it.ID] = it.Write
	}

	c.logger.Debug("grant applied", "mode", string(state.Mode), "allow_list", len(state.AllowList))
	return g, nil
}

// Revoke resets the singleton to Unrestricted with an empty allow-list,
// trashes resources created under g, and releases the singleton. It is a
// full reset, not a rollback to the previous state. Calling it more than
// once is a no-op; a nil grant is ignored.
func (c *Controller) Revoke(g *Grant) error {
	if g == nil {
		return nil
	}
	return g.Revoke()
}

func (c *Controller) revoke(g *Grant) error {
	c.set(State{Mode: Unrestricted})
	defer func() { <-c.sem }()

	created := g.Created()
	if len(created) == 0 || c.trasher == nil {
		c.logger.Debug("grant revoked", "mode", string(g.mode))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), trashTimeout)
	defer cancel()
	if err := c.trasher.Trash(ctx, created); err != nil {
		c.logger.Error("grant revoked, trash failed", "mode", string(g.mode), "created", len(created), "error", err)
		return fmt.Errorf("%w: %w", ErrTrash, err)
	}
	c.logger.Debug("grant revoked", "mode", string(g.mode), "trashed", len(created))
	return nil
}

func (c *Controller) set(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	if c.onChange != nil {
		c.onChange(s.clone())
	}
}

func stateFor(d capability.Descriptor) State {
	switch d.Mode() {
	case capability.ModeStrict:
		ids := d.WritableIDs()
		items := make([]AllowItem, len(ids))
		for i, id := range ids {
			items[i] = AllowItem{ID: id, Write: true}
		}
		return State{Mode: SandboxedStrict, AllowList: items}
	case capability.ModeOpen:
		return State{Mode: SandboxedOpen}
	default:
		return State{Mode: Unrestricted}
	}
}

// Grant is the handle for one applied capability grant. It carries the
// mode and allow-list explicitly so handlers gate access through it rather
// than through global state.
type Grant struct {
	c     *Controller
	mode  Mode
	allow map[string]bool
	items []AllowItem

	mu      sync.Mutex
	created map[string]struct{}
	order   []string
	revoked bool

	once      sync.Once
	revokeErr error
}

// Mode returns the mode the grant applied.
func (g *Grant) Mode() Mode { return g.mode }

// AllowList returns a copy of the grant's allow-list.
func (g *Grant) AllowList() []AllowItem { return slices.Clone(g.items) }

// Revoke releases the grant. See Controller.Revoke.
func (g *Grant) Revoke() error {
	g.once.Do(func() {
		g.mu.Lock()
		g.revoked = true
		g.mu.Unlock()
		g.revokeErr = g.c.revoke(g)
	})
	return g.revokeErr
}

// TrackCreated records a resource created under the grant. Created
// resources are readable and writable for the rest of the invocation and
// are trashed on revoke when the grant is sandboxed.
func (g *Grant) TrackCreated(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.revoked {
		return ErrGrantRevoked
	}
	if _, ok := g.created[id]; ok {
		return nil
	}
	g.created[id] = struct{}{}
	g.order = append(g.order, id)
	return nil
}

// Created returns the ids of resources created under a sandboxed grant, in
// creation order. Unrestricted grants never trash, so they return nil.
func (g *Grant) Created() []string {
	if g.mode == Unrestricted {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.order)
}

// CheckRead reports whether resource id may be read. A sandboxed grant
// only sees what it created plus, in strict mode, its allow-list.
func (g *Grant) CheckRead(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.revoked {
		return ErrGrantRevoked
	}
	if g.mode == Unrestricted {
		return nil
	}
	if _, ok := g.created[id]; ok {
		return nil
	}
	if _, ok := g.allow[id]; ok {
		return nil
	}
	return fmt.Errorf("%w: read %s in %s mode", ErrAccessDenied, id, g.mode)
}

// CheckWrite reports whether resource id may be modified.
func (g *Grant) CheckWrite(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.revoked {
		return ErrGrantRevoked
	}
	if g.mode == Unrestricted {
		return nil
	}
	if _, ok := g.created[id]; ok {
		return nil
	}
	if g.mode == SandboxedStrict && g.allow[id] {
		return nil
	}
	return fmt.Errorf("%w: write %s in %s mode", ErrAccessDenied, id, g.mode)
}

// CheckCreate reports whether new resources may be created.
func (g *Grant) CheckCreate() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.revoked {
		return ErrGrantRevoked
	}
	return nil
}
