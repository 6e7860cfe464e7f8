package core

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
)

// lifecycleMod records Start and Stop calls in a shared journal.
type lifecycleMod struct {
	id       ModuleID
	journal  *journal
	startErr error
}

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return slices.Clone(j.entries)
}

func (m *lifecycleMod) ModuleInfo() ModuleInfo {
	return ModuleInfo{ID: m.id, New: func() Module { return m }}
}

func (m *lifecycleMod) Start() error {
	if m.startErr != nil {
		return m.startErr
	}
	m.journal.add("start " + string(m.id))
	return nil
}

func (m *lifecycleMod) Stop(context.Context) error {
	m.journal.add("stop " + string(m.id))
	return nil
}

func TestApp_StartStopOrder(t *testing.T) {
	t.Cleanup(resetRegistry)

	j := &journal{}
	RegisterModule(&lifecycleMod{id: "test.a", journal: j})
	RegisterModule(&lifecycleMod{id: "test.b", journal: j})

	app := NewApp(NewAppContext(nil, t.TempDir()))
	if err := app.LoadModules([]string{"test.a", "test.b"}); err != nil {
		t.Fatal(err)
	}
	app.AppendModule("wired", &lifecycleMod{id: "wired", journal: j})

	if got := app.ModuleIDs(); !slices.Equal(got, []string{"test.a", "test.b", "wired"}) {
		t.Errorf("ModuleIDs() = %v", got)
	}
	if _, ok := app.Module("wired"); !ok {
		t.Error("appended module should be found")
	}

	if err := app.Start(); err != nil {
		t.Fatal(err)
	}
	if err := app.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := []string{"start test.a", "start test.b", "start wired", "stop wired", "stop test.b", "stop test.a"}
	if got := j.list(); !slices.Equal(got, want) {
		t.Errorf("journal = %v, want %v", got, want)
	}
}

func TestApp_StartFailureRollsBack(t *testing.T) {
	t.Cleanup(resetRegistry)

	j := &journal{}
	RegisterModule(&lifecycleMod{id: "test.ok", journal: j})
	RegisterModule(&lifecycleMod{id: "test.fail", journal: j, startErr: errors.New("boom")})
	RegisterModule(&lifecycleMod{id: "test.never", journal: j})

	app := NewApp(NewAppContext(nil, t.TempDir()))
	if err := app.LoadModules([]string{"test.ok", "test.fail", "test.never"}); err != nil {
		t.Fatal(err)
	}
	if err := app.Start(); err == nil {
		t.Fatal("expected start error")
	}
	if got := j.list(); !slices.Equal(got, []string{"start test.ok", "stop test.ok"}) {
		t.Errorf("journal after Start = %v", got)
	}

	// test.ok is not stopped a second time.
	if err := app.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := []string{"start test.ok", "stop test.ok", "stop test.never", "stop test.fail"}
	if got := j.list(); !slices.Equal(got, want) {
		t.Errorf("journal = %v, want %v", got, want)
	}
}

func TestRegisterModule_Panics(t *testing.T) {
	t.Cleanup(resetRegistry)

	assertPanics := func(name string, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Errorf("%s: expected panic", name)
			}
		}()
		fn()
	}

	assertPanics("empty id", func() { RegisterModule(&lifecycleMod{}) })
	RegisterModule(&lifecycleMod{id: "test.dup", journal: &journal{}})
	assertPanics("duplicate", func() { RegisterModule(&lifecycleMod{id: "test.dup", journal: &journal{}}) })

	if _, ok := GetModule("test.dup"); !ok {
		t.Error("GetModule should find test.dup")
	}
	if n := len(GetModules()); n != 1 {
		t.Errorf("GetModules() len = %d", n)
	}
}

func TestModuleID_Parts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id        ModuleID
		namespace string
		name      string
	}{
		{"gateway.http", "gateway", "http"},
		{"drive.sqlite", "drive", "sqlite"},
		{"cron.sweeper.extra", "cron", "sweeper.extra"},
		{"plain", "plain", ""},
	}
	for _, tt := range tests {
		if got := tt.id.Namespace(); got != tt.namespace {
			t.Errorf("%s.Namespace() = %q, want %q", tt.id, got, tt.namespace)
		}
		if got := tt.id.Name(); got != tt.name {
			t.Errorf("%s.Name() = %q, want %q", tt.id, got, tt.name)
		}
	}
}

func TestApp_ShutdownStopsUnstartedModules(t *testing.T) {
	t.Cleanup(resetRegistry)

	j := &journal{}
	RegisterModule(&lifecycleMod{id: "test.loaded", journal: j})

	app := NewApp(NewAppContext(nil, t.TempDir()))
	if err := app.LoadModules([]string{"test.loaded"}); err != nil {
		t.Fatal(err)
	}
	if err := app.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := j.list(); !slices.Equal(got, []string{"stop test.loaded"}) {
		t.Errorf("journal = %v", got)
	}
	if n := len(app.ModuleIDs()); n != 0 {
		t.Errorf("modules after Shutdown = %d", n)
	}
}

type failingStop struct{ lifecycleMod }

func (f *failingStop) Stop(context.Context) error { return errors.New("stuck") }

func TestApp_ShutdownJoinsErrors(t *testing.T) {
	t.Parallel()

	app := NewApp(NewAppContext(nil, t.TempDir()))
	app.AppendModule("a", &failingStop{lifecycleMod{id: "a"}})
	app.AppendModule("b", &failingStop{lifecycleMod{id: "b"}})

	err := app.Shutdown(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"stopping module a", "stopping module b"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %q", err, want)
		}
	}
}

func TestModulesIn(t *testing.T) {
	t.Cleanup(resetRegistry)

	for _, id := range []ModuleID{"drive.b", "drive.a", "gateway.http"} {
		RegisterModule(&lifecycleMod{id: id, journal: &journal{}})
	}

	var got []string
	for _, info := range ModulesIn("drive") {
		got = append(got, string(info.ID))
	}
	if !slices.Equal(got, []string{"drive.a", "drive.b"}) {
		t.Errorf("ModulesIn(drive) = %v", got)
	}
	if n := len(ModulesIn("cron")); n != 0 {
		t.Errorf("ModulesIn(cron) len = %d", n)
	}
}
