package runner

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/google/uuid"
	"github.com/kballard/go-shellquote"
	"github.com/zeebo/blake3"

	"github.com/flemzord/gasbox/internal/security"
	"github.com/flemzord/gasbox/internal/tool"
)

// ScratchPrefix starts the name of every generated script file.
const ScratchPrefix = "gasbox-"

// DefaultPrologue imports the engine, applies the grant carried in the
// environment to ScriptApp.__behavior and registers an exit hook that
// trashes sandbox-created files. The caller's script follows at module top
// level, so it may use import and export declarations.
const DefaultPrologue = `import "{{.EntryPoint}}";

const __gasboxGrant = JSON.parse(process.env.{{.GrantEnv}} || '{"mode":"unrestricted","writable":[]}');
const __gasboxBehavior = ScriptApp.__behavior;
if (__gasboxGrant.mode === "strict") {
  __gasboxBehavior.sandboxMode = true;
  __gasboxBehavior.strictSandbox = true;
  __gasboxBehavior.setIdWhitelist(
    __gasboxGrant.writable.map((id) => __gasboxBehavior.newIdWhitelistItem(id).setWrite(true))
  );
} else if (__gasboxGrant.mode === "open") {
  __gasboxBehavior.sandboxMode = true;
}
let __gasboxTrashed = __gasboxGrant.mode === "unrestricted";
const __gasboxTrash = () => {
  if (__gasboxTrashed) return;
  __gasboxTrashed = true;
  __gasboxBehavior.trash();
};
process.on("exit", __gasboxTrash);
`

// DefaultEpilogue trashes sandbox-created files as soon as the script body
// completes. The exit hook covers scripts that throw.
const DefaultEpilogue = `
__gasboxTrash();
`

// ScriptConfig configures the subprocess script engine.
type ScriptConfig struct {
	// Interpreter is the command line that runs a script file; the file
	// path is appended as the last argument. Split with shell quoting rules.
	Interpreter string `yaml:"interpreter"`

	// EntryPoint is the engine module imported by the prologue.
	EntryPoint string `yaml:"entry_point"`

	// Extension of generated script files.
	Extension string `yaml:"extension"`

	// ScratchDir holds generated script files. Module resolution for the
	// engine import starts from here, so it should sit under the project
	// that has the engine installed.
	ScratchDir string `yaml:"scratch_dir"`

	// WorkDir is the subprocess working directory. Empty inherits ours.
	WorkDir string `yaml:"work_dir"`

	// SettleDelay is waited between writing the file and launching it.
	SettleDelay time.Duration `yaml:"settle_delay"`

	// Timeout bounds one run; the process is killed when it expires.
	Timeout time.Duration `yaml:"timeout"`

	// MaxOutputBytes caps captured stdout and stderr each.
	MaxOutputBytes int `yaml:"max_output_bytes"`

	// Prologue and Epilogue are text/template sources placed before and
	// after the caller's script. They receive EntryPoint and GrantEnv.
	Prologue string `yaml:"prologue"`
	Epilogue string `yaml:"epilogue"`

	// EnvDeny lists extra variables stripped from the subprocess environment.
	EnvDeny []string `yaml:"env_deny"`
}

// Defaults fills zero fields.
func (c *ScriptConfig) Defaults() {
	if c.Interpreter == "" {
		c.Interpreter = "node"
	}
	if c.EntryPoint == "" {
		c.EntryPoint = "@mcpher/gas-fakes/main.js"
	}
	if c.Extension == "" {
		c.Extension = ".mjs"
	}
	if c.ScratchDir == "" {
		c.ScratchDir = ".gasbox"
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = 500 * time.Millisecond
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxOutputBytes == 0 {
		c.MaxOutputBytes = 1 << 20
	}
	if c.Prologue == "" {
		c.Prologue = DefaultPrologue
	}
	if c.Epilogue == "" {
		c.Epilogue = DefaultEpilogue
	}
}

// Validate checks the config after Defaults.
func (c ScriptConfig) Validate() error {
	var errs []error
	argv, err := shellquote.Split(c.Interpreter)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("%w: interpreter: %v", ErrScriptConfig, err))
	case len(argv) == 0:
		errs = append(errs, fmt.Errorf("%w: interpreter is empty", ErrScriptConfig))
	}
	if !strings.HasPrefix(c.Extension, ".") || strings.ContainsAny(c.Extension, `/\`) {
		errs = append(errs, fmt.Errorf("%w: extension must start with a dot and contain no separators, got %q", ErrScriptConfig, c.Extension))
	}
	if c.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("%w: settle_delay must not be negative", ErrScriptConfig))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: timeout must be positive", ErrScriptConfig))
	}
	if c.MaxOutputBytes < 0 {
		errs = append(errs, fmt.Errorf("%w: max_output_bytes must not be negative", ErrScriptConfig))
	}
	if err := security.ValidatePath(c.ScratchDir); err != nil {
		errs = append(errs, fmt.Errorf("%w: scratch_dir: %w", ErrScriptConfig, err))
	}
	if _, err := template.New("prologue").Parse(c.Prologue); err != nil {
		errs = append(errs, fmt.Errorf("%w: prologue: %v", ErrScriptConfig, err))
	}
	if _, err := template.New("epilogue").Parse(c.Epilogue); err != nil {
		errs = append(errs, fmt.Errorf("%w: epilogue: %v", ErrScriptConfig, err))
	}
	return errors.Join(errs...)
}

// ScriptOption customizes a ScriptEngine.
type ScriptOption func(*ScriptEngine)

// WithRemove replaces the function used to delete temporary script files.
func WithRemove(fn func(path string) error) ScriptOption {
	return func(e *ScriptEngine) { e.remove = fn }
}

// WithEnv replaces the base environment given to subprocesses.
func WithEnv(fn func() []string) ScriptOption {
	return func(e *ScriptEngine) { e.baseEnv = fn }
}

// WithScriptLogger sets the engine logger.
func WithScriptLogger(l *slog.Logger) ScriptOption {
	return func(e *ScriptEngine) { e.logger = l }
}

// ScriptEngine materializes scripts into uniquely named files and runs
// them with the configured interpreter.
type ScriptEngine struct {
	cfg      ScriptConfig
	argv     []string
	prologue []byte
	epilogue []byte
	remove   func(string) error
	baseEnv  func() []string
	logger   *slog.Logger
}

type templateData struct {
	EntryPoint string
	GrantEnv   string
}

// NewScriptEngine applies defaults, validates cfg and renders the
// prologue and epilogue once.
func NewScriptEngine(cfg ScriptConfig, opts ...ScriptOption) (*ScriptEngine, error) {
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	argv, _ := shellquote.Split(cfg.Interpreter)

	data := templateData{EntryPoint: cfg.EntryPoint, GrantEnv: security.GrantEnvVar}
	prologue, err := render("prologue", cfg.Prologue, data)
	if err != nil {
		return nil, err
	}
	epilogue, err := render("epilogue", cfg.Epilogue, data)
	if err != nil {
		return nil, err
	}

	e := &ScriptEngine{
		cfg:      cfg,
		argv:     argv,
		prologue: prologue,
		epilogue: epilogue,
		remove:   os.Remove,
		baseEnv:  func() []string { return security.SanitizedEnv(nil, cfg.EnvDeny...) },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "script")
	return e, nil
}

func render(name, src string, data templateData) ([]byte, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrScriptConfig, name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrScriptConfig, name, err)
	}
	return buf.Bytes(), nil
}

// Config returns the effective configuration.
func (e *ScriptEngine) Config() ScriptConfig { return e.cfg }

// ScriptRun describes one finished subprocess run.
type ScriptRun struct {
	Path     string
	Digest   string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration

	// Err is nil on success, otherwise wraps ErrSubprocessFailure or
	// ErrScriptTimeout.
	Err error

	// CleanupErr wraps ErrCleanupFailure when the file was left behind.
	CleanupErr error
}

// Result maps the run onto an invocation result. A cleanup failure
// overrides everything else.
func (r ScriptRun) Result() Result {
	var res Result
	switch {
	case r.Err != nil:
		res = errorResult(r.Err)
	case r.Stdout == "":
		res = successResult("Done.")
	default:
		res = successResult(r.Stdout)
	}
	if r.CleanupErr != nil {
		res = res.override(r.CleanupErr)
	}
	return res
}

// Run writes req to a fresh file, waits the settle delay, executes it with
// the grant in the environment and always removes the file.
func (e *ScriptEngine) Run(ctx context.Context, req tool.ScriptRequest) ScriptRun {
	var run ScriptRun

	grant, err := json.Marshal(req.Descriptor)
	if err != nil {
		run.Err = fmt.Errorf("%w: encode grant: %v", ErrSubprocessFailure, err)
		return run
	}

	path, content, err := e.materialize(req.Source)
	if err != nil {
		run.Err = err
		return run
	}
	run.Path = path
	sum := blake3.Sum256(content)
	run.Digest = hex.EncodeToString(sum[:])

	defer func() {
		if err := e.remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			run.CleanupErr = fmt.Errorf("%w: %s: %v", ErrCleanupFailure, path, err)
			e.logger.Error("script file left behind", "path", path, "error", err)
		}
	}()

	if err := sleepCtx(ctx, e.cfg.SettleDelay); err != nil {
		run.Err = fmt.Errorf("%w: %v", ErrSubprocessFailure, err)
		return run
	}

	start := time.Now()
	run.Stdout, run.Stderr, run.ExitCode, run.Err = e.exec(ctx, path, grant)
	run.Duration = time.Since(start)
	return run
}

func (e *ScriptEngine) materialize(source string) (string, []byte, error) {
	if err := os.MkdirAll(e.cfg.ScratchDir, 0o700); err != nil {
		return "", nil, fmt.Errorf("%w: create scratch dir: %v", ErrSubprocessFailure, err)
	}
	path, err := securejoin.SecureJoin(e.cfg.ScratchDir, ScratchPrefix+uuid.NewString()+e.cfg.Extension)
	if err != nil {
		return "", nil, fmt.Errorf("%w: resolve script path: %v", ErrSubprocessFailure, err)
	}

	var buf bytes.Buffer
	buf.Grow(len(e.prologue) + len(source) + len(e.epilogue) + 2)
	buf.Write(e.prologue)
	buf.WriteString(source)
	buf.WriteByte('\n')
	buf.Write(e.epilogue)
	content := buf.Bytes()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", nil, fmt.Errorf("%w: create script file: %v", ErrSubprocessFailure, err)
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", nil, fmt.Errorf("%w: write script file: %v", ErrSubprocessFailure, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", nil, fmt.Errorf("%w: close script file: %v", ErrSubprocessFailure, err)
	}
	return path, content, nil
}

func (e *ScriptEngine) exec(ctx context.Context, path string, grant []byte) (string, string, int, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	args := append(append([]string(nil), e.argv[1:]...), path)
	//nolint:gosec // interpreter comes from operator config; the path is generated.
	cmd := exec.CommandContext(ctx, e.argv[0], args...)
	cmd.Dir = e.cfg.WorkDir
	cmd.Env = append(e.baseEnv(), security.GrantEnvVar+"="+string(grant))
	cmd.WaitDelay = 2 * time.Second

	stdout := &cappedBuffer{limit: e.cfg.MaxOutputBytes}
	stderr := &cappedBuffer{limit: e.cfg.MaxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	out, errOut := stdout.String(), stderr.String()
	if err == nil {
		return out, errOut, 0, nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return out, errOut, -1, fmt.Errorf("%w after %s", ErrScriptTimeout, e.cfg.Timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		msg := fmt.Sprintf("%v: exit code %d", ErrSubprocessFailure, code)
		if detail := strings.TrimSpace(errOut); detail != "" {
			msg += "\n" + detail
		}
		return out, errOut, code, &subprocessError{msg: msg}
	}
	return out, errOut, -1, fmt.Errorf("%w: %v", ErrSubprocessFailure, err)
}

// subprocessError carries a preformatted message that includes stderr.
type subprocessError struct{ msg string }

func (e *subprocessError) Error() string { return e.msg }
func (e *subprocessError) Unwrap() error { return ErrSubprocessFailure }

// cappedBuffer keeps at most limit bytes and silently drops the rest. The
// cut never splits a UTF-8 sequence. A zero limit keeps nothing.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if b.truncated {
		return len(p), nil
	}
	room := b.limit - b.buf.Len()
	if len(p) > room {
		cut := max(room, 0)
		for cut > 0 && !utf8.RuneStart(p[cut]) {
			cut--
		}
		b.buf.Write(p[:cut])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + "\n...(output truncated)"
	}
	return b.buf.String()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
