package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/beaconlabs/hivemind/internal/memory"
)

// fakeDirectory knows a fixed set of tenants.
type fakeDirectory struct {
	tenants map[string]bool
}

func (d *fakeDirectory) Exists(_ context.Context, tenantID string) (bool, error) {
	return d.tenants[tenantID], nil
}

// fakeOracle reports a fixed remaining quota per tenant. Tenants absent
// from the map are unbounded.
type fakeOracle struct {
	remaining map[string]int
}

func (o *fakeOracle) RemainingCapacity(_ context.Context, tenantID string) (int, bool, error) {
	if o == nil || o.remaining == nil {
		return 0, true, nil
	}
	n, ok := o.remaining[tenantID]
	if !ok {
		return 0, true, nil
	}
	return n, false, nil
}

func newTestService(t *testing.T, opts memory.Options, tenants ...string) *memory.Service {
	t.Helper()
	known := make(map[string]bool, len(tenants))
	for _, id := range tenants {
		known[id] = true
	}
	return memory.NewService(
		memory.NewInMemoryRecordStore(),
		&fakeDirectory{tenants: known},
		&fakeOracle{},
		opts,
	)
}

func mustAdd(t *testing.T, svc *memory.Service, p memory.AddParams) memory.Record {
	t.Helper()
	rec, err := svc.Add(context.Background(), p)
	if err != nil {
		t.Fatalf("Add(%q): unexpected error: %v", p.Content, err)
	}
	return rec
}

func TestService_AddAssignsIdentity(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, memory.Options{}, "acme")
	rec := mustAdd(t, svc, memory.AddParams{
		TenantID: "acme",
		UserID:   "u1",
		Content:  "remember this",
		Tags:     []string{"a", "a", "", "b"},
	})

	if rec.ID == "" {
		t.Error("Add returned record without ID")
	}
	if rec.Type != memory.LongTerm {
		t.Errorf("default type = %q, want %q", rec.Type, memory.LongTerm)
	}
	if rec.CreatedAt.IsZero() || rec.LastAccessedAt.IsZero() {
		t.Error("Add returned record without timestamps")
	}
	if len(rec.Tags) != 2 {
		t.Errorf("tags = %v, want deduplicated [a b]", rec.Tags)
	}
}

func TestService_AddValidation(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, memory.Options{}, "acme")
	ctx := context.Background()

	for _, imp := range []int{-1, 11} {
		_, err := svc.Add(ctx, memory.AddParams{
			TenantID: "acme", UserID: "u1", Content: "x", Importance: imp,
		})
		if !memory.IsValidation(err) {
			t.Errorf("Add(importance=%d) error = %v, want ValidationError", imp, err)
		}
	}
	for _, imp := range []int{0, 10} {
		if _, err := svc.Add(ctx, memory.AddParams{
			TenantID: "acme", UserID: "u1", Content: "x", Importance: imp,
		}); err != nil {
			t.Errorf("Add(importance=%d): unexpected error: %v", imp, err)
		}
	}
}

func TestService_UnknownTenant(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, memory.Options{}, "acme")
	ctx := context.Background()

	if _, err := svc.Add(ctx, memory.AddParams{TenantID: "ghost", UserID: "u1", Content: "x"}); !errors.Is(err, memory.ErrTenantNotFound) {
		t.Errorf("Add error = %v, want ErrTenantNotFound", err)
	}
	if _, err := svc.Search(ctx, memory.SearchParams{TenantID: "ghost", Query: "x", Limit: 10}); !errors.Is(err, memory.ErrTenantNotFound) {
		t.Errorf("Search error = %v, want ErrTenantNotFound", err)
	}
	if _, err := svc.Count(ctx, "ghost", ""); !errors.Is(err, memory.ErrTenantNotFound) {
		t.Errorf("Count error = %v, want ErrTenantNotFound", err)
	}
}

func TestService_QuotaExceeded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	admitting := memory.NewService(memory.NewInMemoryRecordStore(),
		&fakeDirectory{tenants: map[string]bool{"acme": true}},
		&fakeOracle{remaining: map[string]int{"acme": 1}},
		memory.Options{},
	)
	if _, err := admitting.Add(ctx, memory.AddParams{TenantID: "acme", UserID: "u1", Content: "fits"}); err != nil {
		t.Fatalf("Add within quota: %v", err)
	}

	rejecting := memory.NewService(memory.NewInMemoryRecordStore(),
		&fakeDirectory{tenants: map[string]bool{"acme": true}},
		&fakeOracle{remaining: map[string]int{"acme": 0}},
		memory.Options{},
	)
	_, err := rejecting.Add(ctx, memory.AddParams{TenantID: "acme", UserID: "u1", Content: "over"})
	if !errors.Is(err, memory.ErrQuotaExceeded) {
		t.Errorf("Add over quota error = %v, want ErrQuotaExceeded", err)
	}

	// Malformed input from an out-of-quota tenant still fails validation,
	// not the quota check.
	_, err = rejecting.Add(ctx, memory.AddParams{TenantID: "acme", UserID: "u1", Content: "bad", Importance: 11})
	if !memory.IsValidation(err) {
		t.Errorf("Add(importance=11) over quota error = %v, want ValidationError", err)
	}
}

func TestService_SearchRanking(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, memory.Options{}, "acme")
	ctx := context.Background()

	recA := mustAdd(t, svc, memory.AddParams{
		TenantID:   "acme",
		UserID:     "u1",
		Content:    "User prefers Python over Java",
		Tags:       []string{"preference", "language"},
		Importance: 8,
	})
	recB := mustAdd(t, svc, memory.AddParams{
		TenantID:   "acme",
		UserID:     "u1",
		Content:    "User likes tea",
		Importance: 2,
	})

	got, err := svc.Search(ctx, memory.SearchParams{TenantID: "acme", Query: "Python", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].ID != recA.ID {
		t.Errorf("Search(Python) = %v, want only the Python record", ids(got))
	}

	got, err = svc.Search(ctx, memory.SearchParams{TenantID: "acme", Query: "User", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0].ID != recA.ID || got[1].ID != recB.ID {
		t.Errorf("Search(User) order = %v, want higher importance first", ids(got))
	}

	// Pinning the low-importance record hoists it above the other.
	if _, err := svc.Pin(ctx, "acme", recB.ID); err != nil {
		t.Fatalf("Pin: %v", err)
	}
	got, err = svc.Search(ctx, memory.SearchParams{TenantID: "acme", Query: "User", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0].ID != recB.ID {
		t.Errorf("Search(User) after pin = %v, want pinned record first", ids(got))
	}
}

func TestService_SearchTagAndTypeFilters(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, memory.Options{}, "acme")
	ctx := context.Background()

	tagged := mustAdd(t, svc, memory.AddParams{
		TenantID: "acme", UserID: "u1",
		Content: "deploy checklist", Tags: []string{"ops", "deploy"},
	})
	mustAdd(t, svc, memory.AddParams{
		TenantID: "acme", UserID: "u1",
		Content: "deploy retrospective", Tags: []string{"ops"},
	})
	short := mustAdd(t, svc, memory.AddParams{
		TenantID: "acme", UserID: "u1",
		Content: "deploy window tonight", Type: memory.ShortTerm,
	})

	got, err := svc.Search(ctx, memory.SearchParams{
		TenantID: "acme", Query: "deploy", Tags: []string{"ops", "deploy"}, Limit: 10,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].ID != tagged.ID {
		t.Errorf("tag-filtered search = %v, want record carrying both tags", ids(got))
	}

	got, err = svc.Search(ctx, memory.SearchParams{
		TenantID: "acme", Query: "deploy", Type: memory.ShortTerm, Limit: 10,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].ID != short.ID {
		t.Errorf("type-filtered search = %v, want only the short-term record", ids(got))
	}
}

func TestService_SearchEdgeCases(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, memory.Options{}, "acme")
	ctx := context.Background()
	mustAdd(t, svc, memory.AddParams{TenantID: "acme", UserID: "u1", Content: "something"})

	got, err := svc.Search(ctx, memory.SearchParams{TenantID: "acme", Query: "   ", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("whitespace query returned %d records, want none", len(got))
	}

	_, err = svc.Search(ctx, memory.SearchParams{TenantID: "acme", Query: "something", Limit: 0})
	if !memory.IsValidation(err) {
		t.Errorf("Search(limit=0) error = %v, want ValidationError", err)
	}
}

func TestService_SearchTouchesAccessTime(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, memory.Options{}, "acme")
	ctx := context.Background()
	rec := mustAdd(t, svc, memory.AddParams{TenantID: "acme", UserID: "u1", Content: "tracked access"})

	got, err := svc.Search(ctx, memory.SearchParams{TenantID: "acme", Query: "tracked", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Search returned %d records, want 1", len(got))
	}
	if got[0].LastAccessedAt.Before(rec.LastAccessedAt) {
		t.Error("Search did not advance LastAccessedAt")
	}
}

func TestService_TenantIsolation(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, memory.Options{}, "acme", "globex")
	ctx := context.Background()

	secret := mustAdd(t, svc, memory.AddParams{TenantID: "acme", UserID: "u1", Content: "acme secret roadmap"})
	mustAdd(t, svc, memory.AddParams{TenantID: "globex", UserID: "u1", Content: "globex secret roadmap"})

	got, err := svc.Search(ctx, memory.SearchParams{TenantID: "globex", Query: "secret", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range got {
		if r.TenantID != "globex" {
			t.Errorf("search leaked record %s from tenant %s", r.ID, r.TenantID)
		}
	}

	// Probing another tenant's ID surfaces the generic not-found, never a
	// permission error that would confirm existence.
	if _, err := svc.Get(ctx, "globex", secret.ID); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("cross-tenant Get error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Pin(ctx, "globex", secret.ID); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("cross-tenant Pin error = %v, want ErrNotFound", err)
	}
	if err := svc.Delete(ctx, "globex", secret.ID); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("cross-tenant Delete error = %v, want ErrNotFound", err)
	}

	// The record is untouched for its owner.
	if _, err := svc.Get(ctx, "acme", secret.ID); err != nil {
		t.Errorf("owner Get after probes: %v", err)
	}
}

func TestService_GetByUser(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, memory.Options{}, "acme")
	ctx := context.Background()

	first := mustAdd(t, svc, memory.AddParams{TenantID: "acme", UserID: "u1", Content: "older"})
	second := mustAdd(t, svc, memory.AddParams{TenantID: "acme", UserID: "u1", Content: "newer"})
	mustAdd(t, svc, memory.AddParams{TenantID: "acme", UserID: "u2", Content: "someone else"})

	got, err := svc.GetByUser(ctx, "acme", "u1")
	if err != nil {
		t.Fatalf("GetByUser: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetByUser returned %d records, want 2", len(got))
	}
	// Newest first; with equal timestamps the ascending ID tie-break also
	// places the earlier record last, since IDs are time ordered.
	if got[0].CreatedAt.Equal(got[1].CreatedAt) {
		if got[0].ID != first.ID {
			t.Errorf("GetByUser tie order = %v, want id ascending", ids(got))
		}
	} else if got[0].ID != second.ID {
		t.Errorf("GetByUser order = %v, want newest first", ids(got))
	}

	if _, err := svc.GetByUser(ctx, "acme", ""); !memory.IsValidation(err) {
		t.Errorf("GetByUser(empty user) error = %v, want ValidationError", err)
	}
}

func TestService_CountScopes(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, memory.Options{}, "acme")
	ctx := context.Background()

	mustAdd(t, svc, memory.AddParams{TenantID: "acme", UserID: "u1", Content: "one"})
	mustAdd(t, svc, memory.AddParams{TenantID: "acme", UserID: "u1", Content: "two"})
	mustAdd(t, svc, memory.AddParams{TenantID: "acme", UserID: "u2", Content: "three"})

	if n, err := svc.Count(ctx, "acme", ""); err != nil || n != 3 {
		t.Errorf("Count(acme) = %d, %v, want 3", n, err)
	}
	if n, err := svc.Count(ctx, "acme", "u1"); err != nil || n != 2 {
		t.Errorf("Count(acme, u1) = %d, %v, want 2", n, err)
	}
}

func TestService_PinIdempotent(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, memory.Options{}, "acme")
	ctx := context.Background()
	rec := mustAdd(t, svc, memory.AddParams{TenantID: "acme", UserID: "u1", Content: "keep this"})

	for i := 0; i < 2; i++ {
		got, err := svc.Pin(ctx, "acme", rec.ID)
		if err != nil {
			t.Fatalf("Pin attempt %d: %v", i+1, err)
		}
		if !got.Pinned {
			t.Fatalf("Pin attempt %d: record not pinned", i+1)
		}
	}

	got, err := svc.Unpin(ctx, "acme", rec.ID)
	if err != nil {
		t.Fatalf("Unpin: %v", err)
	}
	if got.Pinned {
		t.Error("Unpin left record pinned")
	}
	if got, err = svc.Unpin(ctx, "acme", rec.ID); err != nil || got.Pinned {
		t.Errorf("second Unpin = pinned %v, err %v, want no-op success", got.Pinned, err)
	}
}

func TestService_DeleteRemovesFromIndex(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, memory.Options{}, "acme")
	ctx := context.Background()
	rec := mustAdd(t, svc, memory.AddParams{TenantID: "acme", UserID: "u1", Content: "ephemeral note"})

	if err := svc.Delete(ctx, "acme", rec.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	got, err := svc.Search(ctx, memory.SearchParams{TenantID: "acme", Query: "ephemeral", Limit: 10})
	if err != nil {
		t.Fatalf("Search after delete: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("deleted record still searchable: %v", ids(got))
	}
	if _, err := svc.Get(ctx, "acme", rec.ID); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestService_DeleteByUser(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, memory.Options{}, "acme")
	ctx := context.Background()
	mustAdd(t, svc, memory.AddParams{TenantID: "acme", UserID: "u1", Content: "first note"})
	mustAdd(t, svc, memory.AddParams{TenantID: "acme", UserID: "u1", Content: "second note"})
	kept := mustAdd(t, svc, memory.AddParams{TenantID: "acme", UserID: "u2", Content: "other note"})

	deleted, err := svc.DeleteByUser(ctx, "acme", "u1")
	if err != nil {
		t.Fatalf("DeleteByUser: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	if n, err := svc.Count(ctx, "acme", "u1"); err != nil || n != 0 {
		t.Errorf("Count(u1) = %d, %v, want 0 records", n, err)
	}
	got, err := svc.Search(ctx, memory.SearchParams{TenantID: "acme", Query: "note", Limit: 10})
	if err != nil {
		t.Fatalf("Search after DeleteByUser: %v", err)
	}
	if len(got) != 1 || got[0].ID != kept.ID {
		t.Errorf("search results = %v, want only u2 record %s", ids(got), kept.ID)
	}

	// Clearing a user with no records is not an error.
	if deleted, err = svc.DeleteByUser(ctx, "acme", "u1"); err != nil || deleted != 0 {
		t.Errorf("second DeleteByUser = %d, %v, want 0 and no error", deleted, err)
	}

	if _, err = svc.DeleteByUser(ctx, "acme", ""); !memory.IsValidation(err) {
		t.Errorf("DeleteByUser with empty user error = %v, want ValidationError", err)
	}
}

func TestService_CapacityEviction(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, memory.Options{
		Policy: memory.Policy{MaxRecordsPerTenant: 2},
	}, "acme")
	ctx := context.Background()

	low := mustAdd(t, svc, memory.AddParams{TenantID: "acme", UserID: "u1", Content: "low value", Importance: 1})
	mustAdd(t, svc, memory.AddParams{TenantID: "acme", UserID: "u1", Content: "high value", Importance: 9})
	mustAdd(t, svc, memory.AddParams{TenantID: "acme", UserID: "u1", Content: "newest", Importance: 5})

	if n, _ := svc.Count(ctx, "acme", ""); n != 2 {
		t.Errorf("Count after eviction = %d, want 2", n)
	}
	if _, err := svc.Get(ctx, "acme", low.ID); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("lowest-ranked record survived eviction: err = %v", err)
	}
}

func TestService_CapacityAllPinnedWarns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewInMemoryRecordStore()

	// Two pinned records over a capacity of one. Seeded directly, since
	// per-add enforcement would evict an unpinned record before it could
	// be pinned.
	for _, id := range []string{"01A0000000000000000000PIN1", "01A0000000000000000000PIN2"} {
		rec := storedRecord(id, "acme", "u1")
		rec.Pinned = true
		if err := store.Put(ctx, rec); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	svc := memory.NewService(store,
		&fakeDirectory{tenants: map[string]bool{"acme": true}},
		&fakeOracle{},
		memory.Options{Policy: memory.Policy{MaxRecordsPerTenant: 1}},
	)
	if err := svc.RebuildIndex(ctx); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}

	evicted, over, err := svc.EnforceCapacity(ctx, "acme")
	if err != nil {
		t.Fatalf("EnforceCapacity: %v", err)
	}
	if evicted != 0 {
		t.Errorf("evicted %d pinned records, want 0", evicted)
	}
	if !over {
		t.Error("over-capacity warning not reported")
	}
	if n, _ := svc.Count(ctx, "acme", ""); n != 2 {
		t.Errorf("Count = %d, want both pinned records retained", n)
	}
}

func TestService_SweepCapacity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewInMemoryRecordStore()

	// acme sits over capacity with one evictable record; globex is over
	// capacity with every record pinned.
	a1 := storedRecord("01A000000000000000000ACME1", "acme", "u1")
	a1.Importance = 9
	a2 := storedRecord("01A000000000000000000ACME2", "acme", "u1")
	a2.Importance = 1
	g1 := storedRecord("01A00000000000000000GLOBX1", "globex", "u1")
	g1.Pinned = true
	g2 := storedRecord("01A00000000000000000GLOBX2", "globex", "u1")
	g2.Pinned = true
	for _, rec := range []memory.Record{a1, a2, g1, g2} {
		if err := store.Put(ctx, rec); err != nil {
			t.Fatalf("Put(%q): %v", rec.ID, err)
		}
	}

	svc := memory.NewService(store,
		&fakeDirectory{tenants: map[string]bool{"acme": true, "globex": true}},
		&fakeOracle{},
		memory.Options{Policy: memory.Policy{MaxRecordsPerTenant: 1}},
	)
	if err := svc.RebuildIndex(ctx); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}

	evicted, over, err := svc.SweepCapacity(ctx)
	if err != nil {
		t.Fatalf("SweepCapacity: %v", err)
	}
	if evicted != 1 {
		t.Errorf("sweep evicted %d, want 1", evicted)
	}
	if len(over) != 1 || over[0] != "globex" {
		t.Errorf("over-capacity tenants = %v, want [globex]", over)
	}
	if _, err := store.Get(ctx, a2.ID); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("low-importance acme record survived the sweep: err = %v", err)
	}
}

func TestService_AddCancelledContext(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, memory.Options{}, "acme")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Add(ctx, memory.AddParams{TenantID: "acme", UserID: "u1", Content: "never lands"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Add with cancelled context error = %v, want context.Canceled", err)
	}

	got, searchErr := svc.Search(context.Background(), memory.SearchParams{TenantID: "acme", Query: "never", Limit: 10})
	if searchErr != nil {
		t.Fatalf("Search: %v", searchErr)
	}
	if len(got) != 0 {
		t.Error("cancelled Add left a visible record behind")
	}
}

func TestService_RebuildIndex(t *testing.T) {
	t.Parallel()

	store := memory.NewInMemoryRecordStore()
	ctx := context.Background()

	// Seed the store directly, bypassing the service, as a persistent
	// backend would after restart.
	seeded := storedRecord("01ARZ3NDEKTSV4RRFFQ69G5FAV", "acme", "u1")
	seeded.Content = "restored from disk"
	if err := store.Put(ctx, seeded); err != nil {
		t.Fatalf("Put: %v", err)
	}

	svc := memory.NewService(store,
		&fakeDirectory{tenants: map[string]bool{"acme": true}},
		&fakeOracle{},
		memory.Options{},
	)

	got, err := svc.Search(ctx, memory.SearchParams{TenantID: "acme", Query: "restored", Limit: 10})
	if err != nil {
		t.Fatalf("Search before rebuild: %v", err)
	}
	if len(got) != 0 {
		t.Fatal("record indexed before rebuild")
	}

	if err := svc.RebuildIndex(ctx); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}
	got, err = svc.Search(ctx, memory.SearchParams{TenantID: "acme", Query: "restored", Limit: 10})
	if err != nil {
		t.Fatalf("Search after rebuild: %v", err)
	}
	if len(got) != 1 || got[0].ID != seeded.ID {
		t.Errorf("Search after rebuild = %v, want the seeded record", ids(got))
	}
}

func ids(recs []memory.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
