// Package crontest provides test helpers for the cron package.
package crontest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/flemzord/gasbox/internal/cron"
)

// Job is a cron.Job that records when it ran. Expr defaults to every
// minute.
type Job struct {
	JobName string
	Expr    string
	Fn      func(ctx context.Context) error

	mu   sync.Mutex
	runs []time.Time
}

var _ cron.Job = (*Job)(nil)

func (j *Job) Name() string { return j.JobName }

func (j *Job) Schedule() string {
	if j.Expr == "" {
		return "* * * * *"
	}
	return j.Expr
}

func (j *Job) Run(ctx context.Context) error {
	j.mu.Lock()
	j.runs = append(j.runs, time.Now())
	j.mu.Unlock()
	if j.Fn != nil {
		return j.Fn(ctx)
	}
	return nil
}

// Runs returns the start time of every run so far.
func (j *Job) Runs() []time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]time.Time(nil), j.runs...)
}

// StaleFile creates dir/name with its modification time set age in the past.
func StaleFile(dir, name string, age time.Duration) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("// stale\n"), 0o600); err != nil {
		return "", err
	}
	ts := time.Now().Add(-age)
	return path, os.Chtimes(path, ts, ts)
}
