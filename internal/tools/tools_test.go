package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/flemzord/gasbox/internal/behavior"
	"github.com/flemzord/gasbox/internal/capability"
	"github.com/flemzord/gasbox/internal/drive"
	"github.com/flemzord/gasbox/internal/runner"
	"github.com/flemzord/gasbox/internal/tool"
	"github.com/flemzord/gasbox/internal/tool/tooltest"
)

type fixture struct {
	runner *runner.Runner
	store  *drive.InMemoryStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	store := drive.NewInMemoryStore()
	ctx := context.Background()
	for _, f := range []drive.File{
		{ID: "f1", Name: "report.txt", Content: "quarterly numbers"},
		{ID: "f2", Name: "report.txt", Content: "draft"},
		{ID: "f3", Name: "notes.md", Content: "# notes"},
	} {
		if _, err := store.Create(ctx, f); err != nil {
			t.Fatal(err)
		}
	}

	reg := tool.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatal(err)
	}
	r, err := runner.New(runner.Options{
		Registry:   reg,
		Controller: behavior.NewController(behavior.Options{Trasher: behavior.TrashFunc(drive.Trasher(store))}),
		Store:      store,
	})
	if err != nil {
		t.Fatal(err)
	}
	return fixture{runner: r, store: store}
}

func TestRegister_Order(t *testing.T) {
	t.Parallel()

	reg := tool.NewRegistry()
	if err := Register(reg, tooltest.SimpleTool("extra")); err != nil {
		t.Fatal(err)
	}
	want := []string{RunScriptName, ExplanationName, SearchFilesName, ReadFileName, WriteFileName, "extra"}
	got := reg.Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestRegister_DuplicateBuiltin(t *testing.T) {
	t.Parallel()

	reg := tool.NewRegistry()
	err := Register(reg, tooltest.SimpleTool(ReadFileName))
	if !errors.Is(err, tool.ErrDuplicateTool) {
		t.Errorf("err = %v, want ErrDuplicateTool", err)
	}
}

func TestRunScript_Script(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     string
		wantMode capability.Mode
		wantErr  error
	}{
		{"defaults to open sandbox", `{"gas_script":"Logger.log(1)"}`, capability.ModeOpen, nil},
		{"unsandboxed", `{"gas_script":"x","sandbox":false}`, capability.ModeUnrestricted, nil},
		{"strict", `{"gas_script":"x","sandbox":true,"whitelistItems":["a"]}`, capability.ModeStrict, nil},
		{"contradictory", `{"gas_script":"x","sandbox":false,"whitelistItems":["a"]}`, "", capability.ErrInvalidDescriptor},
		{"blank script", `{"gas_script":"  \n"}`, "", ErrEmptyScript},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req, err := newRunScriptTool().Script(json.RawMessage(tt.args))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if req.Descriptor.Mode() != tt.wantMode {
				t.Errorf("mode = %q, want %q", req.Descriptor.Mode(), tt.wantMode)
			}
		})
	}
}

func TestRunScript_SchemaRequiresScript(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	res := f.runner.Dispatch(context.Background(), RunScriptName, json.RawMessage(`{"sandbox":true}`))
	if !res.IsError || !strings.Contains(res.Text, tool.ErrSchemaValidation.Error()) {
		t.Errorf("result = %+v", res)
	}
}

func TestExplanation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	res := f.runner.Dispatch(context.Background(), ExplanationName, nil)
	if res.IsError {
		t.Fatalf("result = %+v", res)
	}
	if !strings.HasPrefix(res.Text, "The steps for registering a Google Apps Script") {
		t.Errorf("text = %q", res.Text)
	}
	if !strings.Contains(res.Text, "gas_fakes_args") {
		t.Error("guide should mention gas_fakes_args")
	}
}

func TestSearchFiles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args string
		want []fileRef
	}{
		{
			name: "open sandbox hides existing files",
			args: `{"gas_fakes_args":{"sandbox":true},"gas_args":{"filename":"report.txt"}}`,
			want: []fileRef{},
		},
		{
			name: "unrestricted sees every match",
			args: `{"gas_fakes_args":{"sandbox":false},"gas_args":{"filename":"report.txt"}}`,
			want: []fileRef{{"report.txt", "f1"}, {"report.txt", "f2"}},
		},
		{
			name: "strict sandbox sees only listed ids",
			args: `{"gas_fakes_args":{"sandbox":true,"whitelistItems":["f2"]},"gas_args":{"filename":"report.txt"}}`,
			want: []fileRef{{"report.txt", "f2"}},
		},
		{
			name: "no match",
			args: `{"gas_fakes_args":{},"gas_args":{"filename":"missing"}}`,
			want: []fileRef{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			res := f.runner.Dispatch(context.Background(), SearchFilesName, json.RawMessage(tt.args))
			if res.IsError {
				t.Fatalf("result = %+v", res)
			}
			var got []fileRef
			if err := json.Unmarshal([]byte(res.Text), &got); err != nil {
				t.Fatalf("text %q is not a JSON array: %v", res.Text, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSearchFiles_RequiresDescriptor(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	res := f.runner.Dispatch(context.Background(), SearchFilesName, json.RawMessage(`{"gas_args":{"filename":"x"}}`))
	if !res.IsError {
		t.Errorf("result = %+v, want schema error", res)
	}
}

func TestDescriptorRequired(t *testing.T) {
	t.Parallel()

	st, err := NewScriptTool(ScriptToolConfig{Name: "hello", Script: "console.log('hi')"})
	if err != nil {
		t.Fatal(err)
	}
	reg := tool.NewRegistry()
	if err := Register(reg, st); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{SearchFilesName, ReadFileName, WriteFileName, "hello"} {
		entry, err := reg.Get(name)
		if err != nil {
			t.Fatal(err)
		}
		if err := entry.Validate(json.RawMessage(`{}`)); !errors.Is(err, tool.ErrSchemaValidation) {
			t.Errorf("%s: Validate({}) = %v, want ErrSchemaValidation", name, err)
		}
		if err := entry.Validate(json.RawMessage(`{"gas_args":{"fileId":"f1","filename":"a","content":"x"}}`)); !errors.Is(err, tool.ErrSchemaValidation) {
			t.Errorf("%s: Validate without gas_fakes_args = %v, want ErrSchemaValidation", name, err)
		}
	}
}

func TestReadFile_WithoutDescriptor(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	res := f.runner.Dispatch(context.Background(), ReadFileName, json.RawMessage(`{"gas_args":{"fileId":"f1"}}`))
	if !res.IsError || strings.Contains(res.Text, "quarterly numbers") {
		t.Errorf("result = %+v, want schema error", res)
	}
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		args      string
		wantErr   bool
		wantInErr string
	}{
		{"open sandbox denied", `{"gas_fakes_args":{"sandbox":true},"gas_args":{"fileId":"f1"}}`, true, behavior.ErrAccessDenied.Error()},
		{"unrestricted reads", `{"gas_fakes_args":{"sandbox":false},"gas_args":{"fileId":"f1"}}`, false, ""},
		{"strict allowed", `{"gas_fakes_args":{"whitelistItems":["f1"]},"gas_args":{"fileId":"f1"}}`, false, ""},
		{"strict denied", `{"gas_fakes_args":{"whitelistItems":["f2"]},"gas_args":{"fileId":"f1"}}`, true, behavior.ErrAccessDenied.Error()},
		{"missing file", `{"gas_fakes_args":{"sandbox":false},"gas_args":{"fileId":"nope"}}`, true, drive.ErrFileNotFound.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			res := f.runner.Dispatch(context.Background(), ReadFileName, json.RawMessage(tt.args))
			if res.IsError != tt.wantErr {
				t.Fatalf("result = %+v", res)
			}
			if tt.wantErr {
				if !strings.Contains(res.Text, tt.wantInErr) {
					t.Errorf("text = %q, want it to contain %q", res.Text, tt.wantInErr)
				}
				return
			}
			var v fileView
			if err := json.Unmarshal([]byte(res.Text), &v); err != nil {
				t.Fatal(err)
			}
			if v.FileID != "f1" || v.Content != "quarterly numbers" {
				t.Errorf("view = %+v", v)
			}
		})
	}
}

func TestWriteFile_CreatedFileIsTrashed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	res := f.runner.Dispatch(ctx, WriteFileName,
		json.RawMessage(`{"gas_fakes_args":{},"gas_args":{"filename":"tmp.txt","content":"scratch"}}`))
	if res.IsError {
		t.Fatalf("result = %+v", res)
	}
	var v fileView
	if err := json.Unmarshal([]byte(res.Text), &v); err != nil {
		t.Fatal(err)
	}
	if v.MimeType != "text/plain" {
		t.Errorf("mime = %q", v.MimeType)
	}
	if _, err := f.store.Get(ctx, v.FileID); !errors.Is(err, drive.ErrFileNotFound) {
		t.Errorf("sandbox-created file should be trashed, Get err = %v", err)
	}
}

func TestWriteFile_UnrestrictedCreateSurvives(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	res := f.runner.Dispatch(ctx, WriteFileName,
		json.RawMessage(`{"gas_fakes_args":{"sandbox":false},"gas_args":{"filename":"keep.txt","content":"kept"}}`))
	if res.IsError {
		t.Fatalf("result = %+v", res)
	}
	var v fileView
	if err := json.Unmarshal([]byte(res.Text), &v); err != nil {
		t.Fatal(err)
	}
	if got, err := f.store.Get(ctx, v.FileID); err != nil || got.Content != "kept" {
		t.Errorf("Get = %+v, %v", got, err)
	}
}

func TestWriteFile_Overwrite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		args        string
		wantErr     bool
		wantContent string
	}{
		{"strict allow-listed", `{"gas_fakes_args":{"whitelistItems":["f1"]},"gas_args":{"fileId":"f1","content":"v2"}}`, false, "v2"},
		{"open sandbox denied", `{"gas_fakes_args":{},"gas_args":{"fileId":"f1","content":"v2"}}`, true, "quarterly numbers"},
		{"strict not listed", `{"gas_fakes_args":{"whitelistItems":["f2"]},"gas_args":{"fileId":"f1","content":"v2"}}`, true, "quarterly numbers"},
		{"unrestricted", `{"gas_fakes_args":{"sandbox":false},"gas_args":{"fileId":"f1","content":"v3"}}`, false, "v3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			ctx := context.Background()
			res := f.runner.Dispatch(ctx, WriteFileName, json.RawMessage(tt.args))
			if res.IsError != tt.wantErr {
				t.Fatalf("result = %+v", res)
			}
			got, err := f.store.Get(ctx, "f1")
			if err != nil {
				t.Fatal(err)
			}
			if got.Content != tt.wantContent {
				t.Errorf("content = %q, want %q", got.Content, tt.wantContent)
			}
		})
	}
}

func TestWriteFile_NoTarget(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	res := f.runner.Dispatch(context.Background(), WriteFileName, json.RawMessage(`{"gas_fakes_args":{},"gas_args":{"content":"x"}}`))
	if !res.IsError || res.Text != ErrNoTarget.Error() {
		t.Errorf("result = %+v", res)
	}
}

func TestScriptTool(t *testing.T) {
	t.Parallel()

	st, err := NewScriptTool(ScriptToolConfig{
		Name:     "count_rows",
		Script:   "console.log(gas_args.sheet);",
		Args:     map[string]any{"sheet": map[string]any{"type": "string"}},
		Required: []string{"sheet"},
	})
	if err != nil {
		t.Fatal(err)
	}

	reg := tool.NewRegistry()
	if err := reg.Register(st); err != nil {
		t.Fatalf("schema should compile: %v", err)
	}
	entry, err := reg.Get("count_rows")
	if err != nil {
		t.Fatal(err)
	}
	if err := entry.Validate(json.RawMessage(`{"gas_fakes_args":{},"gas_args":{}}`)); !errors.Is(err, tool.ErrSchemaValidation) {
		t.Errorf("missing required arg: err = %v", err)
	}

	req, err := st.Script(json.RawMessage(`{"gas_fakes_args":{"whitelistItems":["s1"]},"gas_args":{"sheet":"Data"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if want := "const gas_args = {\"sheet\":\"Data\"};\nconsole.log(gas_args.sheet);"; req.Source != want {
		t.Errorf("source = %q, want %q", req.Source, want)
	}
	if req.Descriptor.Mode() != capability.ModeStrict {
		t.Errorf("mode = %q", req.Descriptor.Mode())
	}
}

func TestScriptTool_NoArgs(t *testing.T) {
	t.Parallel()

	st, err := NewScriptTool(ScriptToolConfig{Name: "hello", Script: "console.log('hi')"})
	if err != nil {
		t.Fatal(err)
	}
	req, err := st.Script(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(req.Source, "const gas_args = {};\n") {
		t.Errorf("source = %q", req.Source)
	}
	if req.Descriptor.Mode() != capability.ModeOpen {
		t.Errorf("mode = %q, want open by default", req.Descriptor.Mode())
	}
}

func TestScriptToolConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  ScriptToolConfig
	}{
		{"no name", ScriptToolConfig{Script: "x"}},
		{"no script", ScriptToolConfig{Name: "a"}},
		{"undeclared required", ScriptToolConfig{Name: "a", Script: "x", Required: []string{"b"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.cfg.Validate(); !errors.Is(err, ErrScriptTool) {
				t.Errorf("Validate() = %v, want ErrScriptTool", err)
			}
		})
	}
}
