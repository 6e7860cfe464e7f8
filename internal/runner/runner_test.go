package runner

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/gasbox/internal/behavior"
	"github.com/flemzord/gasbox/internal/capability"
	"github.com/flemzord/gasbox/internal/drive"
	"github.com/flemzord/gasbox/internal/security"
	"github.com/flemzord/gasbox/internal/security/securitytest"
	"github.com/flemzord/gasbox/internal/tool"
	"github.com/flemzord/gasbox/internal/tool/tooltest"
)

const descriptorSchema = `{
	"type": "object",
	"properties": {
		"gas_fakes_args": {
			"type": "object",
			"properties": {
				"sandbox": {"type": "boolean"},
				"whitelistItems": {"type": "array", "items": {"type": "string"}}
			}
		}
	},
	"required": ["gas_fakes_args"]
}`

type fixture struct {
	runner     *Runner
	controller *behavior.Controller
	store      *drive.InMemoryStore
	events     func() []security.AuditEvent
}

func newFixture(t *testing.T, trash behavior.Trasher, tools ...tool.Tool) fixture {
	t.Helper()

	store := drive.NewInMemoryStore()
	if trash == nil {
		trash = behavior.TrashFunc(drive.Trasher(store))
	}
	controller := behavior.NewController(behavior.Options{Trasher: trash})
	reg := tool.NewRegistry()
	reg.MustRegister(tools...)
	audit, events := securitytest.NewTestAuditLogger()

	r, err := New(Options{
		Registry:   reg,
		Controller: controller,
		Store:      store,
		Audit:      audit,
	})
	if err != nil {
		t.Fatal(err)
	}
	return fixture{runner: r, controller: controller, store: store, events: events}
}

// observingTool records the behavior state seen while it executes.
func observingTool(c **behavior.Controller, seen *behavior.State, grantMode *behavior.Mode) *tooltest.MockTool {
	return &tooltest.MockTool{
		NameFunc:   func() string { return "observe" },
		SchemaFunc: func() json.RawMessage { return json.RawMessage(descriptorSchema) },
		ExecuteFunc: func(_ context.Context, _ json.RawMessage, env tool.ExecutionEnv) (tool.Output, error) {
			*seen = (*c).Snapshot()
			*grantMode = env.Grant.Mode()
			return tool.Output{Content: "observed"}, nil
		},
	}
}

func TestInvoke_ScenarioA_OpenSandbox(t *testing.T) {
	t.Parallel()

	var (
		ctrl      *behavior.Controller
		seen      behavior.State
		grantMode behavior.Mode
	)
	f := newFixture(t, nil, observingTool(&ctrl, &seen, &grantMode))
	ctrl = f.controller

	res := f.runner.Dispatch(context.Background(), "observe",
		json.RawMessage(`{"gas_fakes_args":{"sandbox":true,"whitelistItems":[]}}`))

	if res.IsError || res.Text != "observed" {
		t.Fatalf("result = %+v", res)
	}
	if seen.Mode != behavior.SandboxedOpen || len(seen.AllowList) != 0 {
		t.Errorf("state during execution = %+v, want sandboxed_open", seen)
	}
	if grantMode != behavior.SandboxedOpen {
		t.Errorf("grant mode = %q", grantMode)
	}
	if after := f.controller.Snapshot(); !after.IsReset() {
		t.Errorf("state after = %+v, want reset", after)
	}
}

func TestInvoke_ScenarioB_StrictSandbox(t *testing.T) {
	t.Parallel()

	var (
		ctrl      *behavior.Controller
		seen      behavior.State
		grantMode behavior.Mode
	)
	f := newFixture(t, nil, observingTool(&ctrl, &seen, &grantMode))
	ctrl = f.controller

	res := f.runner.Dispatch(context.Background(), "observe",
		json.RawMessage(`{"gas_fakes_args":{"sandbox":true,"whitelistItems":["file123"]}}`))
	if res.IsError {
		t.Fatalf("result = %+v", res)
	}

	want := []behavior.AllowItem{{ID: "file123", Write: true}}
	if seen.Mode != behavior.SandboxedStrict || !slices.Equal(seen.AllowList, want) {
		t.Errorf("state during execution = %+v, want strict with %v", seen, want)
	}
	if !f.controller.Snapshot().IsReset() {
		t.Error("state not reset after invocation")
	}
}

func TestInvoke_Unrestricted(t *testing.T) {
	t.Parallel()

	var (
		ctrl      *behavior.Controller
		seen      behavior.State
		grantMode behavior.Mode
	)
	f := newFixture(t, nil, observingTool(&ctrl, &seen, &grantMode))
	ctrl = f.controller

	res := f.runner.Dispatch(context.Background(), "observe", json.RawMessage(`{"gas_fakes_args":{"sandbox":false}}`))
	if res.IsError || seen.Mode != behavior.Unrestricted {
		t.Fatalf("result = %+v, seen = %+v", res, seen)
	}
}

func TestInvoke_ScenarioC_HandlerFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		execute  func() (tool.Output, error)
		wantText string
	}{
		{
			name:     "returned error",
			execute:  func() (tool.Output, error) { return tool.Output{}, errors.New("boom") },
			wantText: "boom",
		},
		{
			name:     "panic",
			execute:  func() (tool.Output, error) { panic("kaboom") },
			wantText: "kaboom",
		},
		{
			name:     "error output",
			execute:  func() (tool.Output, error) { return tool.Output{Content: "not found", IsError: true}, nil },
			wantText: "not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			failing := &tooltest.MockTool{
				NameFunc:   func() string { return "fail" },
				SchemaFunc: func() json.RawMessage { return json.RawMessage(descriptorSchema) },
				ExecuteFunc: func(context.Context, json.RawMessage, tool.ExecutionEnv) (tool.Output, error) {
					return tt.execute()
				},
			}
			f := newFixture(t, nil, failing)

			res := f.runner.Dispatch(context.Background(), "fail",
				json.RawMessage(`{"gas_fakes_args":{"whitelistItems":["a"]}}`))
			if !res.IsError || res.Text != tt.wantText {
				t.Fatalf("result = %+v, want error %q", res, tt.wantText)
			}
			if !f.controller.Snapshot().IsReset() {
				t.Fatal("state not reset after handler failure")
			}
		})
	}
}

func TestExecute_PanicWrapsHandlerFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	panicking := &tooltest.MockTool{
		ExecuteFunc: func(context.Context, json.RawMessage, tool.ExecutionEnv) (tool.Output, error) {
			panic(errors.New("sheet missing"))
		},
	}
	_, err := f.runner.execute(context.Background(), panicking, nil, tool.ExecutionEnv{})
	if !errors.Is(err, ErrHandlerFailure) {
		t.Errorf("err = %v, want ErrHandlerFailure", err)
	}
	if err == nil || err.Error() != "sheet missing" {
		t.Errorf("err text = %v, want the panic message", err)
	}
}

func TestInvoke_RejectsBeforeApplying(t *testing.T) {
	t.Parallel()

	mock := &tooltest.MockTool{
		NameFunc:   func() string { return "gated" },
		SchemaFunc: func() json.RawMessage { return json.RawMessage(descriptorSchema) },
	}
	f := newFixture(t, nil, mock)

	tests := []struct {
		name string
		args string
		want string
	}{
		{name: "schema violation", args: `{}`, want: "arguments do not match input schema"},
		{name: "contradictory descriptor", args: `{"gas_fakes_args":{"sandbox":false,"whitelistItems":["x"]}}`, want: "invalid capability descriptor"},
		{name: "blank id", args: `{"gas_fakes_args":{"whitelistItems":[" "]}}`, want: "invalid capability descriptor"},
	}
	for _, tt := range tests {
		res := f.runner.Dispatch(context.Background(), "gated", json.RawMessage(tt.args))
		if !res.IsError || !strings.Contains(res.Text, tt.want) {
			t.Errorf("%s: result = %+v, want error containing %q", tt.name, res, tt.want)
		}
	}
	if mock.Calls() != 0 {
		t.Fatalf("handler ran %d times on rejected input", mock.Calls())
	}
	for _, e := range f.events() {
		if e.Type == security.EventGrantApply {
			t.Fatal("grant applied for rejected input")
		}
	}
}

func TestInvoke_TrashesCreatedFiles(t *testing.T) {
	t.Parallel()

	creator := &tooltest.MockTool{
		NameFunc:   func() string { return "create" },
		SchemaFunc: func() json.RawMessage { return json.RawMessage(descriptorSchema) },
		ExecuteFunc: func(ctx context.Context, _ json.RawMessage, env tool.ExecutionEnv) (tool.Output, error) {
			f, err := env.Drive.Create(ctx, "scratch.txt", "text/plain", "tmp")
			if err != nil {
				return tool.Output{}, err
			}
			return tool.Output{Content: f.ID}, nil
		},
	}
	f := newFixture(t, nil, creator)

	res := f.runner.Dispatch(context.Background(), "create", json.RawMessage(`{"gas_fakes_args":{}}`))
	if res.IsError {
		t.Fatalf("result = %+v", res)
	}
	if _, err := f.store.Get(context.Background(), res.Text); !errors.Is(err, drive.ErrFileNotFound) {
		t.Fatalf("sandbox-created file survived revoke: %v", err)
	}

	res = f.runner.Dispatch(context.Background(), "create", json.RawMessage(`{"gas_fakes_args":{"sandbox":false}}`))
	if _, err := f.store.Get(context.Background(), res.Text); err != nil {
		t.Fatalf("unrestricted file was trashed: %v", err)
	}
}

func TestInvoke_TrashFailureOverridesResult(t *testing.T) {
	t.Parallel()

	creator := &tooltest.MockTool{
		NameFunc:   func() string { return "create" },
		SchemaFunc: func() json.RawMessage { return json.RawMessage(descriptorSchema) },
		ExecuteFunc: func(ctx context.Context, _ json.RawMessage, env tool.ExecutionEnv) (tool.Output, error) {
			if _, err := env.Drive.Create(ctx, "x", "", ""); err != nil {
				return tool.Output{}, err
			}
			return tool.Output{Content: "created"}, nil
		},
	}
	failTrash := behavior.TrashFunc(func(context.Context, []string) error { return errors.New("disk gone") })
	f := newFixture(t, failTrash, creator)

	res := f.runner.Dispatch(context.Background(), "create", json.RawMessage(`{"gas_fakes_args":{}}`))
	if !res.IsError {
		t.Fatalf("result = %+v, want error", res)
	}
	if !strings.HasPrefix(res.Text, behavior.ErrTrash.Error()) || !strings.HasSuffix(res.Text, "\n\ncreated") {
		t.Fatalf("text = %q", res.Text)
	}
	if !f.controller.Snapshot().IsReset() {
		t.Fatal("state not reset after trash failure")
	}
}

func TestDispatch_UnknownTool(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	res := f.runner.Dispatch(context.Background(), "nope", nil)
	if !res.IsError || !strings.Contains(res.Text, tool.ErrToolNotFound.Error()) {
		t.Fatalf("result = %+v", res)
	}
}

func TestDispatch_ArgLimits(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, tooltest.SimpleTool("echo"))
	f.runner.limits = security.ArgLimits{MaxBytes: 16}

	res := f.runner.Dispatch(context.Background(), "echo", json.RawMessage(`{"padding":"0123456789abcdef"}`))
	if !res.IsError || !strings.Contains(res.Text, security.ErrArgsTooLarge.Error()) {
		t.Fatalf("result = %+v", res)
	}
}

func TestDispatch_RateLimited(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, tooltest.SimpleTool("echo"))
	f.runner.limiter = security.NewRateLimiter(security.RateLimitConfig{ToolCallsPerMin: 1})

	if res := f.runner.Dispatch(context.Background(), "echo", nil); res.IsError {
		t.Fatalf("first call = %+v", res)
	}
	res := f.runner.Dispatch(context.Background(), "echo", nil)
	if !res.IsError || !strings.Contains(res.Text, security.ErrRateLimited.Error()) {
		t.Fatalf("second call = %+v", res)
	}
	if !slices.Contains(securitytest.Types(f.events()), security.EventRateLimit) {
		t.Fatal("no rate_limit audit event")
	}
}

func TestDispatch_AuditSequence(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, tooltest.SimpleTool("echo"))
	res := f.runner.Dispatch(context.Background(), "echo", nil)
	if res.Text != "executed: echo" {
		t.Fatalf("result = %+v", res)
	}

	events := f.events()
	want := []security.EventType{
		security.EventToolCall,
		security.EventGrantApply,
		security.EventGrantRevoke,
		security.EventToolResult,
	}
	if got := securitytest.Types(events); !slices.Equal(got, want) {
		t.Fatalf("event types = %v, want %v", got, want)
	}
	id := events[0].InvocationID
	if id == "" {
		t.Fatal("missing invocation id")
	}
	for _, e := range events {
		if e.InvocationID != id {
			t.Fatalf("invocation id changed within one call: %q vs %q", e.InvocationID, id)
		}
	}
	if events[1].Mode != string(behavior.SandboxedOpen) {
		t.Errorf("grant mode = %q, want default sandboxed_open", events[1].Mode)
	}
}

func TestDispatch_SerializesGrants(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	busy := &tooltest.MockTool{
		NameFunc: func() string { return "busy" },
		ExecuteFunc: func(context.Context, json.RawMessage, tool.ExecutionEnv) (tool.Output, error) {
			mu.Lock()
			active++
			maxSeen = max(maxSeen, active)
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			return tool.Output{Content: "ok"}, nil
		},
	}
	f := newFixture(t, nil, busy)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res := f.runner.Dispatch(context.Background(), "busy", nil); res.IsError {
				t.Errorf("result = %+v", res)
			}
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("max concurrent handlers = %d, want 1", maxSeen)
	}
	if !f.controller.Snapshot().IsReset() {
		t.Fatal("state not reset")
	}
}

func TestInvoke_ContextCanceledBeforeApply(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, tooltest.SimpleTool("echo"))
	held, err := f.controller.Apply(context.Background(), capability.Default())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = held.Revoke() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := f.runner.Dispatch(ctx, "echo", nil)
	if !res.IsError || !strings.Contains(res.Text, context.Canceled.Error()) {
		t.Fatalf("result = %+v", res)
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := New(Options{}); err == nil {
		t.Error("New without registry succeeded")
	}
	if _, err := New(Options{Registry: tool.NewRegistry()}); err == nil {
		t.Error("New without controller succeeded")
	}
}
