package memory

import "slices"

// Policy governs per-tenant capacity and pin semantics. The zero value
// disables eviction entirely.
type Policy struct {
	// MaxRecordsPerTenant is the capacity ceiling. 0 means unlimited.
	MaxRecordsPerTenant int

	// EvictShortTermFirst prefers evicting short_term records over
	// long_term records at equal eviction rank.
	EvictShortTermFirst bool
}

// SelectEvictions picks the unpinned records to evict to bring the tenant
// at or under capacity, lowest-ranked first using the search scoring with
// no query tokens (score reduces to importance). Pinned records are never
// selected; when every record is pinned and the count still exceeds the
// ceiling, overCapacity is true and the caller reports the condition as a
// warning rather than an error.
func (p Policy) SelectEvictions(records []Record) (evict []Record, overCapacity bool) {
	if p.MaxRecordsPerTenant <= 0 || len(records) <= p.MaxRecordsPerTenant {
		return nil, false
	}

	excess := len(records) - p.MaxRecordsPerTenant

	var unpinned []Record
	for _, r := range records {
		if !r.Pinned {
			unpinned = append(unpinned, r)
		}
	}

	// Worst candidates first: the exact reverse of the ranking order,
	// with the optional memory-type preference applied ahead of rank.
	slices.SortFunc(unpinned, func(a, b Record) int {
		if p.EvictShortTermFirst && a.Type != b.Type {
			if a.Type == ShortTerm {
				return -1
			}
			return 1
		}
		return -Compare(a, b, Score(a, nil), Score(b, nil))
	})

	if len(unpinned) < excess {
		return unpinned, true
	}
	return unpinned[:excess], false
}
