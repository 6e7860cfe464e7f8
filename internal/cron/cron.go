// Package cron runs periodic background jobs, chiefly the sweep that
// removes script files left in the scratch directory by crashed or killed
// runs.
package cron

import (
	"context"
	"errors"
)

var (
	// ErrUnknownJob is returned by RunNow for a name that was never registered.
	ErrUnknownJob = errors.New("cron: unknown job")

	// ErrJobBusy is returned by RunNow while the job is already running.
	ErrJobBusy = errors.New("cron: job already running")
)

// Job defines a periodic background task.
type Job interface {
	// Name returns a unique identifier for this job.
	Name() string

	// Schedule returns a 5-field cron expression or a descriptor such as "@hourly".
	Schedule() string

	// Run executes the job. Implementations should check ctx.Done().
	Run(ctx context.Context) error
}
