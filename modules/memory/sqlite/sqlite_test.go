package sqlite

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/beaconlabs/hivemind/internal/core"
	"github.com/beaconlabs/hivemind/internal/memory"
	"github.com/beaconlabs/hivemind/internal/session"
)

func newTestModule(t *testing.T) *Module {
	t.Helper()

	dir := t.TempDir()
	m := &Module{
		config: Config{
			Path:        filepath.Join(dir, "test.db"),
			BusyTimeout: defaultBusyTimeout,
		},
	}
	m.config.defaults()

	ctx := core.NewAppContext(slog.Default(), dir)

	if err := m.Provision(ctx); err != nil {
		t.Fatalf("provision: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	t.Cleanup(func() {
		_ = m.Stop(context.Background())
	})

	return m
}

func testRecord(id, tenant, user string) memory.Record {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	return memory.Record{
		ID:             id,
		TenantID:       tenant,
		UserID:         user,
		Content:        "persisted content",
		Type:           memory.LongTerm,
		Tags:           []string{"a", "b"},
		Importance:     5,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
}

// --- RecordStore tests ---

func TestRecordStore_PutGetRoundTrip(t *testing.T) {
	m := newTestModule(t)
	ctx := context.Background()

	want := testRecord("r1", "acme", "u1")
	want.Pinned = true
	if err := m.records.Put(ctx, want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := m.records.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Content != want.Content || got.Type != want.Type || !got.Pinned {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "a" {
		t.Errorf("Tags = %v, want [a b]", got.Tags)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}

	// Put with the same ID replaces.
	want.Content = "replaced"
	if err := m.records.Put(ctx, want); err != nil {
		t.Fatalf("Put replace: %v", err)
	}
	got, err = m.records.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Content != "replaced" {
		t.Errorf("Content after replace = %q", got.Content)
	}
}

func TestRecordStore_PutValidates(t *testing.T) {
	m := newTestModule(t)

	bad := testRecord("r1", "acme", "u1")
	bad.Importance = 99
	if err := m.records.Put(context.Background(), bad); !memory.IsValidation(err) {
		t.Errorf("Put(importance=99) = %v, want ValidationError", err)
	}
}

func TestRecordStore_GetDeleteNotFound(t *testing.T) {
	m := newTestModule(t)
	ctx := context.Background()

	if _, err := m.records.Get(ctx, "ghost"); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("Get(ghost) = %v, want ErrNotFound", err)
	}
	if err := m.records.Delete(ctx, "ghost"); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("Delete(ghost) = %v, want ErrNotFound", err)
	}
}

func TestRecordStore_ListFilters(t *testing.T) {
	m := newTestModule(t)
	ctx := context.Background()

	a := testRecord("a", "acme", "u1")
	b := testRecord("b", "acme", "u2")
	b.Type = memory.ShortTerm
	c := testRecord("c", "globex", "u1")
	for _, rec := range []memory.Record{a, b, c} {
		if err := m.records.Put(ctx, rec); err != nil {
			t.Fatalf("Put(%q): %v", rec.ID, err)
		}
	}

	all, err := m.records.List(ctx, "acme", memory.ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("List(acme) = %d records, want 2", len(all))
	}

	byType, err := m.records.List(ctx, "acme", memory.ListFilter{Type: memory.ShortTerm})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(byType) != 1 || byType[0].ID != "b" {
		t.Errorf("List(short_term) = %v, want [b]", byType)
	}

	if n, _ := m.records.Count(ctx, "acme", ""); n != 2 {
		t.Errorf("Count(acme) = %d, want 2", n)
	}
	if n, _ := m.records.Count(ctx, "acme", "u1"); n != 1 {
		t.Errorf("Count(acme, u1) = %d, want 1", n)
	}

	tenants, err := m.records.Tenants(ctx)
	if err != nil {
		t.Fatalf("Tenants: %v", err)
	}
	if len(tenants) != 2 || tenants[0] != "acme" || tenants[1] != "globex" {
		t.Errorf("Tenants = %v, want [acme globex]", tenants)
	}
}

func TestRecordStore_Touch(t *testing.T) {
	m := newTestModule(t)
	ctx := context.Background()

	if err := m.records.Put(ctx, testRecord("r1", "acme", "u1")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	if err := m.records.Touch(ctx, []string{"r1", "ghost"}, at); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	got, err := m.records.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.LastAccessedAt.Equal(at) {
		t.Errorf("LastAccessedAt = %v, want %v", got.LastAccessedAt, at)
	}
}

// --- session.Store tests ---

func TestSessionStore_Lifecycle(t *testing.T) {
	m := newTestModule(t)
	ctx := context.Background()

	created, err := m.sessions.Create(ctx, "acme", "u1", "slack")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" || created.Status != session.StatusActive {
		t.Errorf("created = %+v", created)
	}

	updated, err := m.sessions.Update(ctx, created.ID, session.StatusClosed, map[string]string{"reason": "done"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != session.StatusClosed {
		t.Errorf("status = %q, want closed", updated.Status)
	}

	got, err := m.sessions.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Metadata["reason"] != "done" {
		t.Errorf("metadata = %v", got.Metadata)
	}

	if err := m.sessions.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.sessions.Get(ctx, created.ID); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestSessionStore_ListAndCount(t *testing.T) {
	m := newTestModule(t)
	ctx := context.Background()

	for _, c := range []struct{ tenant, user string }{
		{"acme", "u1"}, {"acme", "u2"}, {"globex", "u1"},
	} {
		if _, err := m.sessions.Create(ctx, c.tenant, c.user, ""); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := m.sessions.List(ctx, session.Filter{TenantID: "acme"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("List(acme) = %d sessions, want 2", len(got))
	}

	if n, _ := m.sessions.Count(ctx, session.Filter{Status: session.StatusActive}); n != 3 {
		t.Errorf("Count(active) = %d, want 3", n)
	}
}

func TestOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	records, sessions, db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	if err := records.Put(ctx, testRecord("r1", "acme", "u1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := sessions.Create(ctx, "acme", "u1", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Re-opening the same file migrates idempotently and sees the data.
	records2, _, db2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer func() { _ = db2.Close() }()

	if _, err := records2.Get(ctx, "r1"); err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
}
