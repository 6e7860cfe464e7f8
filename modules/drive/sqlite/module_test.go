package sqlite_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/gasbox/internal/core"
	"github.com/flemzord/gasbox/internal/drive"
	"github.com/flemzord/gasbox/modules/drive/sqlite"
)

func TestModule_Lifecycle(t *testing.T) {
	dir := t.TempDir()

	var node yaml.Node
	if err := yaml.Unmarshal([]byte("busy_timeout: 1000"), &node); err != nil {
		t.Fatal(err)
	}
	ctx := core.NewAppContext(slog.Default(), dir).WithModuleConfigs(map[string]yaml.Node{
		sqlite.ModuleID: *node.Content[0],
	})

	mod, err := ctx.LoadModule(sqlite.ModuleID)
	if err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	m := mod.(*sqlite.Module)
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	store, ok := core.ServiceAs[drive.Store](ctx, sqlite.ServiceName)
	if !ok {
		t.Fatal("drive.store service not registered")
	}
	if _, err := store.Create(context.Background(), drive.File{ID: "x", Name: "x"}); err != nil {
		t.Fatal(err)
	}
	if n, _ := m.Store().Len(context.Background()); n != 1 {
		t.Errorf("Len = %d, want 1", n)
	}

	if _, err := os.Stat(filepath.Join(dir, "drive.db")); err != nil {
		t.Errorf("database not created under the data dir: %v", err)
	}
}
