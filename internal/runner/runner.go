// Package runner executes tools: it applies the capability grant, runs the
// tool body in process or as a script subprocess, revokes the grant and
// normalizes the outcome into a Result. No failure escapes as a Go error;
// every one becomes an error Result.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/flemzord/gasbox/internal/behavior"
	"github.com/flemzord/gasbox/internal/capability"
	"github.com/flemzord/gasbox/internal/drive"
	"github.com/flemzord/gasbox/internal/security"
	"github.com/flemzord/gasbox/internal/telemetry"
	"github.com/flemzord/gasbox/internal/tool"
)

// Options configures a Runner. Registry and Controller are required.
type Options struct {
	Registry   *tool.Registry
	Controller *behavior.Controller

	// Store backs the drive session given to in-process handlers.
	// Defaults to an empty in-memory store.
	Store drive.Store

	// Scripts runs scripted tools. Without it scripted tools fail with
	// ErrNotRunnable.
	Scripts *ScriptEngine

	Limiter   *security.RateLimiter
	Audit     *security.AuditLogger
	Metrics   *telemetry.Metrics
	Tracer    trace.Tracer
	Logger    *slog.Logger
	ArgLimits security.ArgLimits
}

// Runner orchestrates tool invocations.
type Runner struct {
	registry   *tool.Registry
	controller *behavior.Controller
	store      drive.Store
	scripts    *ScriptEngine
	limiter    *security.RateLimiter
	audit      *security.AuditLogger
	metrics    *telemetry.Metrics
	tracer     trace.Tracer
	logger     *slog.Logger
	limits     security.ArgLimits
}

// New creates a Runner.
func New(opts Options) (*Runner, error) {
	if opts.Registry == nil {
		return nil, errors.New("runner: registry is required")
	}
	if opts.Controller == nil {
		return nil, errors.New("runner: behavior controller is required")
	}
	store := opts.Store
	if store == nil {
		store = drive.NewInMemoryStore()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(telemetry.TracerName)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		registry:   opts.Registry,
		controller: opts.Controller,
		store:      store,
		scripts:    opts.Scripts,
		limiter:    opts.Limiter,
		audit:      opts.Audit,
		metrics:    opts.Metrics,
		tracer:     tracer,
		logger:     logger.With("component", "runner"),
		limits:     opts.ArgLimits,
	}, nil
}

// Registry returns the tool registry the runner dispatches to.
func (r *Runner) Registry() *tool.Registry { return r.registry }

// invocation identifies one dispatch in logs and audit events.
type invocation struct {
	id   string
	tool string
}

type invocationKey struct{}

func withInvocation(ctx context.Context, inv invocation) context.Context {
	return context.WithValue(ctx, invocationKey{}, inv)
}

func invocationFrom(ctx context.Context, toolName string) invocation {
	if inv, ok := ctx.Value(invocationKey{}).(invocation); ok {
		return inv
	}
	return invocation{id: uuid.NewString(), tool: toolName}
}

// Dispatch looks up name, applies rate limits and argument limits, then
// routes to Invoke or InvokeScript. It emits audit events, a span and
// metrics for every call.
func (r *Runner) Dispatch(ctx context.Context, name string, args json.RawMessage) Result {
	inv := invocation{id: uuid.NewString(), tool: name}
	ctx = withInvocation(ctx, inv)
	ctx, span := r.tracer.Start(ctx, "tool.dispatch", trace.WithAttributes(
		attribute.String("tool.name", name),
		attribute.String("invocation.id", inv.id),
	))
	defer span.End()

	start := time.Now()
	res := r.dispatch(ctx, inv, args)
	elapsed := time.Since(start)

	r.metrics.ObserveToolCall(name, res.IsError, elapsed)
	r.audit.Log(security.AuditEvent{
		Type:         security.EventToolResult,
		InvocationID: inv.id,
		ToolName:     name,
		Detail:       truncateForAudit(res.Text),
		Metadata: map[string]string{
			"is_error":    strconv.FormatBool(res.IsError),
			"duration_ms": strconv.FormatInt(elapsed.Milliseconds(), 10),
		},
	})
	if res.IsError {
		span.SetStatus(codes.Error, truncateForAudit(res.Text))
		r.logger.Warn("tool call failed", "tool", name, "invocation", inv.id, "duration", elapsed)
	} else {
		r.logger.Info("tool call finished", "tool", name, "invocation", inv.id, "duration", elapsed)
	}
	return res
}

func (r *Runner) dispatch(ctx context.Context, inv invocation, args json.RawMessage) Result {
	entry, err := r.registry.Get(inv.tool)
	if err != nil {
		return errorResult(err)
	}

	if err := r.limiter.Allow(security.KindToolCall); err != nil {
		return r.rateLimited(inv, security.KindToolCall, err)
	}

	r.audit.Log(security.AuditEvent{
		Type:         security.EventToolCall,
		InvocationID: inv.id,
		ToolName:     inv.tool,
		Detail:       truncateForAudit(string(args)),
	})

	if err := security.ValidateArgs(args, r.limits); err != nil {
		return errorResult(err)
	}

	if _, ok := entry.Handler(); ok {
		return r.Invoke(ctx, entry, args)
	}

	scripted, ok := entry.Scripted()
	if !ok {
		return errorResult(fmt.Errorf("%w: %s", ErrNotRunnable, inv.tool))
	}
	if err := entry.Validate(args); err != nil {
		return errorResult(err)
	}
	req, err := scripted.Script(args)
	if err != nil {
		return errorResult(err)
	}
	if err := r.limiter.Allow(security.KindScript); err != nil {
		return r.rateLimited(inv, security.KindScript, err)
	}
	return r.InvokeScript(ctx, req)
}

func (r *Runner) rateLimited(inv invocation, bucket string, err error) Result {
	r.metrics.RateLimited(bucket)
	r.audit.Log(security.AuditEvent{
		Type:         security.EventRateLimit,
		InvocationID: inv.id,
		ToolName:     inv.tool,
		Detail:       bucket + " rate limit exceeded",
	})
	return errorResult(fmt.Errorf("tool %s: %w", inv.tool, err))
}

// Invoke runs an in-process handler under the grant described by the
// tool's capability argument:
//
//	validate args → build descriptor → apply → execute → revoke → result
//
// The grant is revoked on every path once applied, including handler
// errors and panics.
func (r *Runner) Invoke(ctx context.Context, entry tool.Entry, args json.RawMessage) (res Result) {
	inv := invocationFrom(ctx, entry.Name())

	handler, ok := entry.Handler()
	if !ok {
		return errorResult(fmt.Errorf("%w: %s has no in-process handler", ErrNotRunnable, entry.Name()))
	}
	if err := entry.Validate(args); err != nil {
		return errorResult(err)
	}
	desc, err := capability.FromArgs(args, capability.ArgsField)
	if err != nil {
		return errorResult(err)
	}

	grant, err := r.controller.Apply(ctx, desc)
	if err != nil {
		return errorResult(fmt.Errorf("apply capability grant: %w", err))
	}
	r.metrics.ObserveGrant(string(grant.Mode()))
	r.audit.Log(security.AuditEvent{
		Type:         security.EventGrantApply,
		InvocationID: inv.id,
		ToolName:     inv.tool,
		Mode:         string(grant.Mode()),
		Metadata:     map[string]string{"writable": strconv.Itoa(len(desc.WritableIDs()))},
	})

	defer func() {
		trashed := len(grant.Created())
		revokeErr := r.controller.Revoke(grant)
		meta := map[string]string{"trashed": strconv.Itoa(trashed)}
		if revokeErr != nil {
			meta["error"] = revokeErr.Error()
			res = res.override(revokeErr)
		}
		r.audit.Log(security.AuditEvent{
			Type:         security.EventGrantRevoke,
			InvocationID: inv.id,
			ToolName:     inv.tool,
			Mode:         string(grant.Mode()),
			Metadata:     meta,
		})
	}()

	env := tool.ExecutionEnv{
		Grant: grant,
		Drive: drive.NewSession(r.store, grant),
	}
	out, err := r.execute(ctx, handler, args, env)
	if err != nil {
		r.logger.Debug("handler failed", "tool", inv.tool, "invocation", inv.id, "error", err)
		return errorResult(err)
	}
	return Result{Text: out.Content, IsError: out.IsError}
}

// execute calls the handler, turning a panic into an error whose text is
// the panic value.
func (r *Runner) execute(ctx context.Context, h tool.Handler, args json.RawMessage, env tool.ExecutionEnv) (out tool.Output, err error) {
	ctx, span := r.tracer.Start(ctx, "tool.execute")
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			err = &handlerError{err: errors.New(fmt.Sprint(p))}
			span.RecordError(err)
		}
	}()

	out, err = h.Execute(ctx, args, env)
	if err != nil {
		span.RecordError(err)
		return out, &handlerError{err: err}
	}
	return out, nil
}

// handlerError marks an error returned or raised by a handler. Its message
// is the handler's own, so callers see exactly what the handler reported.
type handlerError struct{ err error }

func (e *handlerError) Error() string { return e.err.Error() }

func (e *handlerError) Unwrap() []error { return []error{ErrHandlerFailure, e.err} }

// InvokeScript runs req as a subprocess script. The grant travels to the
// child as typed JSON in the environment; the in-process singleton is not
// taken. The temporary file is always removed and a removal failure takes
// precedence over the script's outcome.
func (r *Runner) InvokeScript(ctx context.Context, req tool.ScriptRequest) Result {
	inv := invocationFrom(ctx, "script")
	if r.scripts == nil {
		return errorResult(fmt.Errorf("%w: no script engine configured", ErrNotRunnable))
	}

	ctx, span := r.tracer.Start(ctx, "script.run", trace.WithAttributes(
		attribute.String("grant.mode", string(req.Descriptor.Mode())),
	))
	defer span.End()

	r.audit.Log(security.AuditEvent{
		Type:         security.EventGrantApply,
		InvocationID: inv.id,
		ToolName:     inv.tool,
		Mode:         string(req.Descriptor.Mode()),
		Metadata: map[string]string{
			"writable": strconv.Itoa(len(req.Descriptor.WritableIDs())),
			"scope":    "subprocess",
		},
	})

	run := r.scripts.Run(ctx, req)
	r.metrics.ObserveScript(scriptOutcome(run.Err))

	r.audit.Log(security.AuditEvent{
		Type:         security.EventScriptRun,
		InvocationID: inv.id,
		ToolName:     inv.tool,
		Mode:         string(req.Descriptor.Mode()),
		Detail:       errDetail(run.Err),
		Metadata: map[string]string{
			"digest":      run.Digest,
			"exit_code":   strconv.Itoa(run.ExitCode),
			"duration_ms": strconv.FormatInt(run.Duration.Milliseconds(), 10),
		},
	})
	if run.CleanupErr != nil {
		r.metrics.CleanupFailed()
		r.audit.Log(security.AuditEvent{
			Type:         security.EventCleanup,
			InvocationID: inv.id,
			ToolName:     inv.tool,
			Detail:       run.CleanupErr.Error(),
		})
	}
	r.audit.Log(security.AuditEvent{
		Type:         security.EventGrantRevoke,
		InvocationID: inv.id,
		ToolName:     inv.tool,
		Mode:         string(req.Descriptor.Mode()),
		Metadata:     map[string]string{"scope": "subprocess"},
	})

	span.SetAttributes(attribute.String("script.digest", run.Digest), attribute.Int("script.exit_code", run.ExitCode))
	return run.Result()
}

func scriptOutcome(err error) string {
	switch {
	case err == nil:
		return telemetry.ScriptOK
	case errors.Is(err, ErrScriptTimeout):
		return telemetry.ScriptTimeout
	case errors.As(err, new(*subprocessError)):
		return telemetry.ScriptExit
	default:
		return telemetry.ScriptSpawn
	}
}

func errDetail(err error) string {
	if err == nil {
		return ""
	}
	return truncateForAudit(err.Error())
}
