package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultSearchLimit bounds searches when the outer surface (HTTP, MCP)
// receives no explicit limit. The Service itself rejects limit <= 0.
const DefaultSearchLimit = 50

const tracerName = "github.com/beaconlabs/hivemind/internal/memory"

// TenantDirectory is the narrow contract against the tenant subsystem.
// The Service rejects every operation for an unknown tenant.
type TenantDirectory interface {
	Exists(ctx context.Context, tenantID string) (bool, error)
}

// UsageOracle answers whether a tenant has remaining quota for a new
// record. It is backed by the license subsystem; a non-positive remaining
// value with unbounded false means no quota.
type UsageOracle interface {
	RemainingCapacity(ctx context.Context, tenantID string) (remaining int, unbounded bool, err error)
}

// Options configures a Service. The zero value gives an unlimited policy,
// the default logger, and no metrics.
type Options struct {
	Policy  Policy
	Logger  *slog.Logger
	Metrics *Metrics
}

// Service is the memory façade. It enforces tenant isolation and quota
// checks before delegating to the record store, keeps the keyword index
// transactional with store mutations through per-tenant serialization, and
// ranks search results deterministically.
type Service struct {
	store   RecordStore
	index   *Index
	dir     TenantDirectory
	oracle  UsageOracle
	policy  Policy
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
	locks   tenantLocks
}

// NewService creates a Service over the given store and collaborator
// contracts.
func NewService(store RecordStore, dir TenantDirectory, oracle UsageOracle, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		index:   NewIndex(),
		dir:     dir,
		oracle:  oracle,
		policy:  opts.Policy,
		logger:  logger.With("component", "memory"),
		metrics: opts.Metrics,
		tracer:  otel.Tracer(tracerName),
		locks:   tenantLocks{m: make(map[string]*sync.RWMutex)},
	}
}

// AddParams are the caller-supplied fields for a new record.
type AddParams struct {
	TenantID   string
	UserID     string
	Content    string
	Type       MemoryType
	Tags       []string
	Importance int
}

// SearchParams select and bound a ranked search.
type SearchParams struct {
	TenantID string
	Query    string
	Type     MemoryType // optional filter
	Tags     []string   // all must be present on a candidate
	Limit    int        // must be positive
}

// Add validates the input, checks the tenant and its remaining quota, then
// stores and indexes a new record. The assigned ID and timestamps are
// returned on the stored record. An abandoned context never leaves a
// partially indexed record visible.
func (s *Service) Add(ctx context.Context, p AddParams) (rec Record, err error) {
	ctx, done := s.startOp(ctx, "add", p.TenantID)
	defer func() { done(err) }()

	if p.Type == "" {
		p.Type = LongTerm
	}

	if err = s.checkTenant(ctx, p.TenantID); err != nil {
		return Record{}, err
	}

	lock := s.locks.of(p.TenantID)
	lock.Lock()
	defer lock.Unlock()

	if err = ctx.Err(); err != nil {
		return Record{}, err
	}

	now := time.Now().UTC()
	rec = Record{
		ID:             ulid.Make().String(),
		TenantID:       p.TenantID,
		UserID:         p.UserID,
		Content:        p.Content,
		Type:           p.Type,
		Tags:           normalizeTags(p.Tags),
		Importance:     p.Importance,
		CreatedAt:      now,
		LastAccessedAt: now,
	}

	// Malformed input surfaces as ValidationError even when the tenant
	// is out of quota, so validate before consulting the oracle.
	if err = ValidateRecord(rec); err != nil {
		return Record{}, err
	}

	remaining, unbounded, err := s.oracle.RemainingCapacity(ctx, p.TenantID)
	if err != nil {
		return Record{}, fmt.Errorf("memory: quota check for tenant %s: %w", p.TenantID, err)
	}
	if !unbounded && remaining <= 0 {
		s.metrics.RecordQuotaRejection()
		return Record{}, ErrQuotaExceeded
	}

	if err = s.store.Put(ctx, rec); err != nil {
		return Record{}, err
	}
	s.index.Add(rec)

	s.enforceLocked(ctx, p.TenantID)

	return rec.Clone(), nil
}

// Search computes the candidate set for the query, ranks it, truncates to
// the limit, and touches last_accessed_at on every returned record. An
// empty or whitespace query matches nothing.
func (s *Service) Search(ctx context.Context, p SearchParams) (recs []Record, err error) {
	ctx, done := s.startOp(ctx, "search", p.TenantID)
	defer func() { done(err) }()

	if p.Limit <= 0 {
		return nil, &ValidationError{Field: "limit", Reason: "must be positive"}
	}
	if err = s.checkTenant(ctx, p.TenantID); err != nil {
		return nil, err
	}

	tokens := Tokenize(p.Query)
	if len(tokens) == 0 {
		return []Record{}, nil
	}

	// Snapshot the candidates under the read lock; rank outside it.
	lock := s.locks.of(p.TenantID)
	lock.RLock()
	ids := s.index.Candidates(p.TenantID, tokens, p.Tags, p.Type)
	candidates := make([]Record, 0, len(ids))
	for id := range ids {
		r, getErr := s.store.Get(ctx, id)
		if getErr != nil {
			lock.RUnlock()
			// The index referenced a record the store does not have.
			// That is a correctness bug, not a runtime condition.
			err = fmt.Errorf("memory: index out of sync with store for record %s: %w", id, getErr)
			return nil, err
		}
		candidates = append(candidates, r)
	}
	lock.RUnlock()

	ranked := Rank(candidates, tokens, p.Limit)
	if len(ranked) == 0 {
		return []Record{}, nil
	}

	// Access bookkeeping is a mutation and goes through the serialized
	// section like any other.
	now := time.Now().UTC()
	touched := make([]string, len(ranked))
	for i := range ranked {
		touched[i] = ranked[i].ID
		ranked[i].LastAccessedAt = now
	}
	lock.Lock()
	touchErr := s.store.Touch(ctx, touched, now)
	lock.Unlock()
	if touchErr != nil {
		s.logger.Warn("access time update failed", "tenant", p.TenantID, "error", touchErr)
	}

	return ranked, nil
}

// Get returns a single record scoped to the tenant and updates its access
// time. A cross-tenant ID surfaces the generic ErrNotFound.
func (s *Service) Get(ctx context.Context, tenantID, id string) (rec Record, err error) {
	ctx, done := s.startOp(ctx, "get", tenantID)
	defer func() { done(err) }()

	if err = s.checkTenant(ctx, tenantID); err != nil {
		return Record{}, err
	}

	lock := s.locks.of(tenantID)
	lock.Lock()
	defer lock.Unlock()

	r, err := s.scopedGet(ctx, tenantID, id)
	if err != nil {
		return Record{}, err
	}

	now := time.Now().UTC()
	if touchErr := s.store.Touch(ctx, []string{id}, now); touchErr != nil {
		s.logger.Warn("access time update failed", "tenant", tenantID, "error", touchErr)
	}
	r.LastAccessedAt = now
	return r, nil
}

// GetByUser lists a user's records ordered by created_at descending.
// No ranking applies and access times are not touched; listing is
// bookkeeping, not access.
func (s *Service) GetByUser(ctx context.Context, tenantID, userID string) (recs []Record, err error) {
	ctx, done := s.startOp(ctx, "get_by_user", tenantID)
	defer func() { done(err) }()

	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	if err = s.checkTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	lock := s.locks.of(tenantID)
	lock.RLock()
	recs, err = s.store.List(ctx, tenantID, ListFilter{UserID: userID})
	lock.RUnlock()
	if err != nil {
		return nil, err
	}

	slices.SortFunc(recs, func(a, b Record) int {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if a.CreatedAt.After(b.CreatedAt) {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	return recs, nil
}

// Count returns the tenant's record count, optionally narrowed to one user.
func (s *Service) Count(ctx context.Context, tenantID, userID string) (n int, err error) {
	ctx, done := s.startOp(ctx, "count", tenantID)
	defer func() { done(err) }()

	if err = s.checkTenant(ctx, tenantID); err != nil {
		return 0, err
	}

	lock := s.locks.of(tenantID)
	lock.RLock()
	defer lock.RUnlock()
	return s.store.Count(ctx, tenantID, userID)
}

// Pin marks a record exempt from eviction and ranked above all non-pinned
// records. Pinning an already-pinned record is a no-op success.
func (s *Service) Pin(ctx context.Context, tenantID, id string) (Record, error) {
	return s.setPinned(ctx, "pin", tenantID, id, true)
}

// Unpin clears the pinned flag. Unpinning an unpinned record is a no-op
// success.
func (s *Service) Unpin(ctx context.Context, tenantID, id string) (Record, error) {
	return s.setPinned(ctx, "unpin", tenantID, id, false)
}

func (s *Service) setPinned(ctx context.Context, op, tenantID, id string, pinned bool) (rec Record, err error) {
	ctx, done := s.startOp(ctx, op, tenantID)
	defer func() { done(err) }()

	if err = s.checkTenant(ctx, tenantID); err != nil {
		return Record{}, err
	}

	lock := s.locks.of(tenantID)
	lock.Lock()
	defer lock.Unlock()

	r, err := s.scopedGet(ctx, tenantID, id)
	if err != nil {
		return Record{}, err
	}
	if r.Pinned == pinned {
		return r, nil
	}

	r.Pinned = pinned
	if err = s.store.Put(ctx, r); err != nil {
		return Record{}, err
	}
	return r.Clone(), nil
}

// Delete removes a record from the store and the index together.
func (s *Service) Delete(ctx context.Context, tenantID, id string) (err error) {
	ctx, done := s.startOp(ctx, "delete", tenantID)
	defer func() { done(err) }()

	if err = s.checkTenant(ctx, tenantID); err != nil {
		return err
	}

	lock := s.locks.of(tenantID)
	lock.Lock()
	defer lock.Unlock()

	r, err := s.scopedGet(ctx, tenantID, id)
	if err != nil {
		return err
	}

	if err = s.store.Delete(ctx, r.ID); err != nil {
		return err
	}
	s.index.Remove(r)
	return nil
}

// DeleteByUser removes every record one user owns within a tenant, store
// and index together. It returns the number of records removed; a user
// with no records is not an error.
func (s *Service) DeleteByUser(ctx context.Context, tenantID, userID string) (deleted int, err error) {
	ctx, done := s.startOp(ctx, "delete_by_user", tenantID)
	defer func() { done(err) }()

	if userID == "" {
		return 0, &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	if err = s.checkTenant(ctx, tenantID); err != nil {
		return 0, err
	}

	lock := s.locks.of(tenantID)
	lock.Lock()
	defer lock.Unlock()

	recs, err := s.store.List(ctx, tenantID, ListFilter{UserID: userID})
	if err != nil {
		return 0, err
	}
	for _, r := range recs {
		if err = s.store.Delete(ctx, r.ID); err != nil {
			return deleted, err
		}
		s.index.Remove(r)
		deleted++
	}
	return deleted, nil
}

// EnforceCapacity applies the lifecycle policy to one tenant. It returns
// the number of evicted records and whether the tenant remains over
// capacity because every record is pinned; the latter is a warning, not an
// error, and eviction never deletes a pinned record.
func (s *Service) EnforceCapacity(ctx context.Context, tenantID string) (evicted int, overCapacity bool, err error) {
	ctx, done := s.startOp(ctx, "enforce_capacity", tenantID)
	defer func() { done(err) }()

	lock := s.locks.of(tenantID)
	lock.Lock()
	defer lock.Unlock()

	evicted, overCapacity = s.enforceLocked(ctx, tenantID)
	return evicted, overCapacity, nil
}

// SweepCapacity applies the lifecycle policy across every tenant that owns
// records. Over-capacity tenants (all records pinned) are returned so the
// caller can report the condition.
func (s *Service) SweepCapacity(ctx context.Context) (evicted int, overTenants []string, err error) {
	tenants, err := s.store.Tenants(ctx)
	if err != nil {
		return 0, nil, err
	}
	slices.Sort(tenants)

	for _, tenantID := range tenants {
		n, over, enforceErr := s.EnforceCapacity(ctx, tenantID)
		if enforceErr != nil {
			return evicted, overTenants, enforceErr
		}
		evicted += n
		if over {
			overTenants = append(overTenants, tenantID)
		}
	}
	return evicted, overTenants, nil
}

// RebuildIndex repopulates the keyword index from the record store. Called
// once at provision time when the store is persistent; the index itself is
// never persisted.
func (s *Service) RebuildIndex(ctx context.Context) error {
	tenants, err := s.store.Tenants(ctx)
	if err != nil {
		return fmt.Errorf("memory: rebuild index: %w", err)
	}

	fresh := NewIndex()
	total := 0
	for _, tenantID := range tenants {
		recs, listErr := s.store.List(ctx, tenantID, ListFilter{})
		if listErr != nil {
			return fmt.Errorf("memory: rebuild index for tenant %s: %w", tenantID, listErr)
		}
		for _, r := range recs {
			fresh.Add(r)
			total++
		}
	}
	s.index = fresh
	s.logger.Info("keyword index rebuilt", "tenants", len(tenants), "records", total)
	return nil
}

// enforceLocked runs the eviction policy for a tenant. Caller holds the
// tenant's write lock.
func (s *Service) enforceLocked(ctx context.Context, tenantID string) (evicted int, overCapacity bool) {
	if s.policy.MaxRecordsPerTenant <= 0 {
		return 0, false
	}

	recs, err := s.store.List(ctx, tenantID, ListFilter{})
	if err != nil {
		s.logger.Error("capacity enforcement list failed", "tenant", tenantID, "error", err)
		return 0, false
	}

	victims, over := s.policy.SelectEvictions(recs)
	for _, v := range victims {
		if err := s.store.Delete(ctx, v.ID); err != nil {
			s.logger.Error("eviction delete failed", "tenant", tenantID, "record", v.ID, "error", err)
			continue
		}
		s.index.Remove(v)
		evicted++
	}
	s.metrics.RecordEvictions(evicted)

	if over {
		s.metrics.RecordCapacityExceeded()
		s.logger.Warn("tenant over capacity, all records pinned",
			"tenant", tenantID,
			"max", s.policy.MaxRecordsPerTenant,
		)
	}
	return evicted, over
}

// scopedGet fetches a record and verifies tenant ownership. Any mismatch
// collapses to ErrNotFound. Caller holds the tenant lock.
func (s *Service) scopedGet(ctx context.Context, tenantID, id string) (Record, error) {
	if id == "" {
		return Record{}, &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if !r.ValidTenantScope(tenantID) {
		return Record{}, ErrNotFound
	}
	return r, nil
}

func (s *Service) checkTenant(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return &ValidationError{Field: "tenant_id", Reason: "must not be empty"}
	}
	ok, err := s.dir.Exists(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("memory: tenant lookup %s: %w", tenantID, err)
	}
	if !ok {
		return ErrTenantNotFound
	}
	return nil
}

// startOp opens a trace span and returns a completion func that records
// metrics and span status.
func (s *Service) startOp(ctx context.Context, op, tenantID string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "memory."+op,
		trace.WithAttributes(attribute.String("tenant.id", tenantID)),
	)
	return ctx, func(err error) {
		if err != nil && !isClientError(err) {
			span.RecordError(err)
		}
		span.End()
		s.metrics.ObserveOp(op, time.Since(start), err)
	}
}

// isClientError reports whether err belongs to the client-facing taxonomy
// rather than an internal failure.
func isClientError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrTenantNotFound) ||
		errors.Is(err, ErrQuotaExceeded) ||
		IsValidation(err)
}

// normalizeTags copies and deduplicates tags, preserving first-seen order.
// Tags are matched exactly; no case folding.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// tenantLocks hands out one RWMutex per tenant, created lazily. Mutations
// take the write lock for their whole critical section; reads take the
// read lock only long enough to snapshot state. Locks are never shared
// across tenants, so tenants proceed fully in parallel.
type tenantLocks struct {
	mu sync.Mutex
	m  map[string]*sync.RWMutex
}

func (l *tenantLocks) of(tenantID string) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk, ok := l.m[tenantID]
	if !ok {
		lk = &sync.RWMutex{}
		l.m[tenantID] = lk
	}
	return lk
}
