package cron

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/flemzord/gasbox/internal/security"
	"github.com/flemzord/gasbox/internal/telemetry"
)

// Sweep defaults.
const (
	DefaultSweepSchedule = "*/15 * * * *"
	DefaultSweepMaxAge   = time.Hour
)

// ScratchSweepJob removes generated script files older than MaxAge from
// Dir. Runs normally delete their own file, so anything it finds was left
// behind by a crash, a kill or a failed cleanup.
type ScratchSweepJob struct {
	Dir          string
	Prefix       string
	MaxAge       time.Duration
	ScheduleExpr string // empty = DefaultSweepSchedule

	Logger  *slog.Logger
	Audit   *security.AuditLogger
	Metrics *telemetry.Metrics

	// Now defaults to time.Now.
	Now func() time.Time
}

// Compile-time interface check.
var _ Job = (*ScratchSweepJob)(nil)

// Name implements Job.
func (j *ScratchSweepJob) Name() string { return "scratch_sweep" }

// Schedule implements Job.
func (j *ScratchSweepJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultSweepSchedule
}

// Run deletes stale files. A missing directory is not an error.
func (j *ScratchSweepJob) Run(ctx context.Context) error {
	entries, err := os.ReadDir(j.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cron: reading scratch dir: %w", err)
	}

	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	maxAge := j.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultSweepMaxAge
	}
	cutoff := now().Add(-maxAge)

	var (
		removed int
		errs    []error
	)
	for _, e := range entries {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if !e.Type().IsRegular() || !strings.HasPrefix(e.Name(), j.Prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed since ReadDir
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path, err := securejoin.SecureJoin(j.Dir, e.Name())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		j.Metrics.ScratchSwept(removed)
		j.Audit.Log(security.AuditEvent{
			Type:     security.EventScratchSweep,
			Detail:   "removed stale script files",
			Metadata: map[string]string{"removed": strconv.Itoa(removed), "dir": j.Dir},
		})
		if j.Logger != nil {
			j.Logger.Info("swept stale script files", "count", removed, "dir", j.Dir)
		}
	}
	return errors.Join(errs...)
}
