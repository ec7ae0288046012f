package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/beaconlabs/hivemind/internal/session"
)

// testEnforcer implements CapacityEnforcer for job tests.
type testEnforcer struct {
	sweepCalls atomic.Int32
	sweepFunc  func(ctx context.Context) (int, []string, error)
}

func (e *testEnforcer) SweepCapacity(ctx context.Context) (int, []string, error) {
	e.sweepCalls.Add(1)
	if e.sweepFunc != nil {
		return e.sweepFunc(ctx)
	}
	return 0, nil, nil
}

// testSweeper implements LicenseSweeper for job tests.
type testSweeper struct {
	lapsed int
	err    error
}

func (s *testSweeper) SweepExpired(_ context.Context) (int, error) {
	return s.lapsed, s.err
}

func TestCapacitySweepJob_NameAndSchedule(t *testing.T) {
	t.Parallel()
	j := &CapacitySweepJob{Logger: slog.Default()}
	if j.Name() != "capacity_sweep" {
		t.Errorf("name = %q, want %q", j.Name(), "capacity_sweep")
	}
	if j.Schedule() != "*/10 * * * *" {
		t.Errorf("schedule = %q, want %q", j.Schedule(), "*/10 * * * *")
	}
	j.ScheduleExpr = "0 * * * *"
	if j.Schedule() != "0 * * * *" {
		t.Errorf("schedule = %q, want override", j.Schedule())
	}
}

func TestCapacitySweepJob_Run(t *testing.T) {
	t.Parallel()

	enforcer := &testEnforcer{
		sweepFunc: func(_ context.Context) (int, []string, error) {
			return 2, []string{"acme"}, nil
		},
	}
	j := &CapacitySweepJob{Enforcer: enforcer, Logger: slog.Default()}

	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enforcer.sweepCalls.Load() != 1 {
		t.Errorf("sweep calls = %d, want 1", enforcer.sweepCalls.Load())
	}
}

func TestCapacitySweepJob_RunError(t *testing.T) {
	t.Parallel()

	enforcer := &testEnforcer{
		sweepFunc: func(_ context.Context) (int, []string, error) {
			return 0, nil, errors.New("store down")
		},
	}
	j := &CapacitySweepJob{Enforcer: enforcer, Logger: slog.Default()}

	if err := j.Run(context.Background()); err == nil {
		t.Fatal("expected error from failing sweep")
	}
}

func TestLicenseExpiryJob_NameAndSchedule(t *testing.T) {
	t.Parallel()
	j := &LicenseExpiryJob{Logger: slog.Default()}
	if j.Name() != "license_expiry" {
		t.Errorf("name = %q, want %q", j.Name(), "license_expiry")
	}
	if j.Schedule() != "0 * * * *" {
		t.Errorf("schedule = %q, want %q", j.Schedule(), "0 * * * *")
	}
}

func TestLicenseExpiryJob_Run(t *testing.T) {
	t.Parallel()

	j := &LicenseExpiryJob{Sweeper: &testSweeper{lapsed: 3}, Logger: slog.Default()}
	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	failing := &LicenseExpiryJob{Sweeper: &testSweeper{err: errors.New("boom")}, Logger: slog.Default()}
	if err := failing.Run(context.Background()); err == nil {
		t.Fatal("expected error from failing sweep")
	}
}

func TestSessionCleanupJob_Run(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := session.NewInMemoryStore()

	stale, err := store.Create(ctx, "acme", "u1", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Update(ctx, stale.ID, session.StatusClosed, nil); err != nil {
		t.Fatalf("Update: %v", err)
	}
	active, err := store.Create(ctx, "acme", "u2", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Zero retention makes every closed session stale immediately. The
	// cutoff sits in the future of the session's UpdatedAt.
	j := &SessionCleanupJob{
		Store:     store,
		Retention: -time.Minute,
		Logger:    slog.Default(),
	}
	if err := j.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := store.Get(ctx, stale.ID); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("closed stale session survived cleanup: err = %v", err)
	}
	if _, err := store.Get(ctx, active.ID); err != nil {
		t.Errorf("active session was pruned: %v", err)
	}
}

func TestSessionCleanupJob_RespectsRetention(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := session.NewInMemoryStore()
	recent, err := store.Create(ctx, "acme", "u1", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Update(ctx, recent.ID, session.StatusClosed, nil); err != nil {
		t.Fatalf("Update: %v", err)
	}

	j := &SessionCleanupJob{
		Store:     store,
		Retention: time.Hour,
		Logger:    slog.Default(),
	}
	if err := j.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Get(ctx, recent.ID); err != nil {
		t.Errorf("recently closed session pruned before retention: %v", err)
	}
}
