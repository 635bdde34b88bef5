package maintenance

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// HealthProber is the subset of the gateway manager needed by the health
// recheck job. Defined here to avoid a circular dependency on the gateway
// package.
type HealthProber interface {
	RecheckHealth(ctx context.Context)
}

// LogRetentionJob deletes channel log files older than MaxAge under the
// manager's log root. Empty per-channel directories are left in place.
type LogRetentionJob struct {
	// Root is the log directory tree, <workspace>/.agent/message-gateway.
	Root         string
	MaxAge       time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 3 * * *"
}

// Compile-time interface check.
var _ Job = (*LogRetentionJob)(nil)

// Name implements Job.
func (j *LogRetentionJob) Name() string { return "log_retention" }

// Schedule implements Job.
func (j *LogRetentionJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 3 * * *"
}

// Run walks the log root and removes expired .log files. A missing root is
// not an error; the manager may not have spawned anything yet.
func (j *LogRetentionJob) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-j.MaxAge)
	var removed int

	err := filepath.WalkDir(j.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".log") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				j.Logger.Warn("maintenance: log file removal failed", "path", path, "error", err)
				return nil
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return err
	}

	if removed > 0 {
		j.Logger.Info("maintenance: expired log files removed", "count", removed, "root", j.Root)
	}
	return nil
}

// HealthRecheckJob re-probes every supervised channel's health endpoint and
// updates the manager's view. It never kills or restarts a plugin; external
// supervision owns recovery.
type HealthRecheckJob struct {
	Prober       HealthProber
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "* * * * *"
}

// Compile-time interface check.
var _ Job = (*HealthRecheckJob)(nil)

// Name implements Job.
func (j *HealthRecheckJob) Name() string { return "health_recheck" }

// Schedule implements Job.
func (j *HealthRecheckJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "* * * * *"
}

// Run delegates to the manager's probe pass.
func (j *HealthRecheckJob) Run(ctx context.Context) error {
	j.Prober.RecheckHealth(ctx)
	return nil
}
