package memory

import (
	"strings"
	"sync"
	"unicode"
)

// Index is an incremental inverted index mapping content tokens and tags to
// record IDs, partitioned by tenant so no index structure is ever shared
// across tenants. It holds only back-references, never record content, and
// is kept consistent with the RecordStore by the Service's per-tenant
// serialized mutation section.
type Index struct {
	mu      sync.RWMutex
	tenants map[string]*tenantIndex
}

type tenantIndex struct {
	tokens map[string]map[string]struct{} // token → record ID set
	tags   map[string]map[string]struct{} // tag → record ID set
	types  map[string]MemoryType          // record ID → memory type
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{tenants: make(map[string]*tenantIndex)}
}

// Tokenize lowercases s and splits it on non-alphanumeric boundaries,
// returning the distinct tokens in first-seen order. Empty or whitespace
// input yields no tokens: an empty query matches nothing, never everything.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(fields))
	tokens := fields[:0]
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}

// Add indexes a record's content tokens and tags under its tenant.
func (ix *Index) Add(r Record) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ti, ok := ix.tenants[r.TenantID]
	if !ok {
		ti = &tenantIndex{
			tokens: make(map[string]map[string]struct{}),
			tags:   make(map[string]map[string]struct{}),
			types:  make(map[string]MemoryType),
		}
		ix.tenants[r.TenantID] = ti
	}

	for _, tok := range Tokenize(r.Content) {
		ids, ok := ti.tokens[tok]
		if !ok {
			ids = make(map[string]struct{})
			ti.tokens[tok] = ids
		}
		ids[r.ID] = struct{}{}
	}

	for _, tag := range r.Tags {
		ids, ok := ti.tags[tag]
		if !ok {
			ids = make(map[string]struct{})
			ti.tags[tag] = ids
		}
		ids[r.ID] = struct{}{}
	}

	ti.types[r.ID] = r.Type
}

// Remove drops all of a record's index entries. Posting lists that become
// empty are deleted so the index never grows unbounded on delete.
func (ix *Index) Remove(r Record) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ti, ok := ix.tenants[r.TenantID]
	if !ok {
		return
	}

	for _, tok := range Tokenize(r.Content) {
		if ids, ok := ti.tokens[tok]; ok {
			delete(ids, r.ID)
			if len(ids) == 0 {
				delete(ti.tokens, tok)
			}
		}
	}

	for _, tag := range r.Tags {
		if ids, ok := ti.tags[tag]; ok {
			delete(ids, r.ID)
			if len(ids) == 0 {
				delete(ti.tags, tag)
			}
		}
	}

	delete(ti.types, r.ID)
	if len(ti.types) == 0 {
		delete(ix.tenants, r.TenantID)
	}
}

// Candidates returns the record IDs for the tenant that match at least one
// query token (OR across tokens), carry every supplied tag (AND across
// tags), and match the memory type filter if one is given. No tokens means
// no candidates.
func (ix *Index) Candidates(tenantID string, tokens, tags []string, typ MemoryType) map[string]struct{} {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	candidates := make(map[string]struct{})

	ti, ok := ix.tenants[tenantID]
	if !ok || len(tokens) == 0 {
		return candidates
	}

	for _, tok := range tokens {
		for id := range ti.tokens[tok] {
			candidates[id] = struct{}{}
		}
	}

	for _, tag := range tags {
		ids := ti.tags[tag]
		for id := range candidates {
			if _, ok := ids[id]; !ok {
				delete(candidates, id)
			}
		}
	}

	if typ != "" {
		for id := range candidates {
			if ti.types[id] != typ {
				delete(candidates, id)
			}
		}
	}

	return candidates
}
