package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/beaconlabs/hivemind/internal/session"
)

// CapacityEnforcer is the subset of the memory service needed by the
// capacity sweep. Defined here to avoid importing the memory package.
type CapacityEnforcer interface {
	SweepCapacity(ctx context.Context) (evicted int, overTenants []string, err error)
}

// CapacitySweepJob runs the memory lifecycle policy across all tenants,
// evicting the lowest-ranked unpinned records of every tenant that is
// over capacity.
type CapacitySweepJob struct {
	Enforcer     CapacityEnforcer
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/10 * * * *"
}

// Compile-time interface check.
var _ Job = (*CapacitySweepJob)(nil)

// Name implements Job.
func (j *CapacitySweepJob) Name() string { return "capacity_sweep" }

// Schedule implements Job.
func (j *CapacitySweepJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/10 * * * *"
}

// Run sweeps every tenant. Tenants over capacity with all records
// pinned are logged at warn level; they are not an error.
func (j *CapacitySweepJob) Run(ctx context.Context) error {
	evicted, overTenants, err := j.Enforcer.SweepCapacity(ctx)
	if err != nil {
		return fmt.Errorf("schedule: capacity sweep: %w", err)
	}
	if evicted > 0 {
		j.Logger.Info("schedule: capacity sweep evicted records", "count", evicted)
	}
	for _, tenantID := range overTenants {
		j.Logger.Warn("schedule: tenant over capacity, all records pinned", "tenant", tenantID)
	}
	return nil
}

// LicenseSweeper is the subset of the license manager needed by the
// expiry job.
type LicenseSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// LicenseExpiryJob lapses active licenses past their expiry date.
type LicenseExpiryJob struct {
	Sweeper      LicenseSweeper
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 * * * *"
}

// Compile-time interface check.
var _ Job = (*LicenseExpiryJob)(nil)

// Name implements Job.
func (j *LicenseExpiryJob) Name() string { return "license_expiry" }

// Schedule implements Job.
func (j *LicenseExpiryJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 * * * *"
}

// Run lapses expired licenses.
func (j *LicenseExpiryJob) Run(ctx context.Context) error {
	lapsed, err := j.Sweeper.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("schedule: license expiry sweep: %w", err)
	}
	if lapsed > 0 {
		j.Logger.Info("schedule: licenses lapsed", "count", lapsed)
	}
	return nil
}

// SessionCleanupJob deletes closed sessions that have not been touched
// for longer than Retention.
type SessionCleanupJob struct {
	Store        session.Store
	Retention    time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/5 * * * *"
}

// Compile-time interface check.
var _ Job = (*SessionCleanupJob)(nil)

// Name implements Job.
func (j *SessionCleanupJob) Name() string { return "session_cleanup" }

// Schedule implements Job.
func (j *SessionCleanupJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run deletes closed sessions past the retention window.
func (j *SessionCleanupJob) Run(ctx context.Context) error {
	closed, err := j.Store.List(ctx, session.Filter{Status: session.StatusClosed, Limit: 1000})
	if err != nil {
		return fmt.Errorf("schedule: session cleanup list: %w", err)
	}

	cutoff := time.Now().UTC().Add(-j.Retention)
	pruned := 0
	for _, sess := range closed {
		if ctx.Err() != nil {
			return fmt.Errorf("schedule: session cleanup cancelled: %w", ctx.Err())
		}
		if sess.UpdatedAt.After(cutoff) {
			continue
		}
		if err := j.Store.Delete(ctx, sess.ID); err != nil {
			j.Logger.Error("schedule: session delete failed", "session", sess.ID, "error", err)
			continue
		}
		pruned++
	}
	if pruned > 0 {
		j.Logger.Info("schedule: pruned closed sessions", "count", pruned)
	}
	return nil
}
