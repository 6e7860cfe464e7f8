package runner

import (
	"errors"
	"fmt"
)

var (
	// ErrHandlerFailure wraps an error or panic raised by an in-process handler.
	ErrHandlerFailure = errors.New("handler failed")

	// ErrSubprocessFailure covers spawn errors and non-zero exits of a script.
	ErrSubprocessFailure = errors.New("script subprocess failed")

	// ErrScriptTimeout is returned when a script outlives its timeout and is
	// killed. It matches ErrSubprocessFailure as well.
	ErrScriptTimeout = fmt.Errorf("%w: timed out", ErrSubprocessFailure)

	// ErrCleanupFailure is returned when a temporary script file could not be
	// removed. It takes precedence over the script's own outcome.
	ErrCleanupFailure = errors.New("temporary script cleanup failed")

	// ErrNotRunnable is returned for a tool with no usable body.
	ErrNotRunnable = errors.New("tool is not runnable")

	// ErrScriptConfig is returned for an unusable script engine config.
	ErrScriptConfig = errors.New("invalid script config")
)
