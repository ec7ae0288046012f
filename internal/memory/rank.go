package memory

import (
	"slices"
	"strings"
)

// matchWeight is the score contribution of each distinct matched query token.
const matchWeight = 3

// Score computes a record's relevance against the query tokens:
// three points per distinct matched token plus the record's importance.
// Matches count distinct tokens, not occurrences.
func Score(r Record, tokens []string) int {
	return matchWeight*matchedTokens(r, tokens) + r.Importance
}

func matchedTokens(r Record, tokens []string) int {
	if len(tokens) == 0 {
		return 0
	}

	content := make(map[string]struct{})
	for _, tok := range Tokenize(r.Content) {
		content[tok] = struct{}{}
	}

	n := 0
	for _, tok := range tokens {
		if _, ok := content[tok]; ok {
			n++
		}
	}
	return n
}

// Compare orders two scored records for ranking. Pinned records sort before
// all non-pinned records regardless of score; then higher score, higher
// importance, more recent last access, and finally the lexicographically
// smaller ID. The ID tie-break guarantees a strict total order, so repeated
// searches over unchanged data always return the same sequence.
func Compare(a, b Record, scoreA, scoreB int) int {
	if a.Pinned != b.Pinned {
		if a.Pinned {
			return -1
		}
		return 1
	}
	if scoreA != scoreB {
		return scoreB - scoreA
	}
	if a.Importance != b.Importance {
		return b.Importance - a.Importance
	}
	if !a.LastAccessedAt.Equal(b.LastAccessedAt) {
		if a.LastAccessedAt.After(b.LastAccessedAt) {
			return -1
		}
		return 1
	}
	return strings.Compare(a.ID, b.ID)
}

// Rank orders the candidate records against the query tokens and truncates
// to at most limit results. The input slice is not modified.
func Rank(records []Record, tokens []string, limit int) []Record {
	type scored struct {
		rec   Record
		score int
	}

	ranked := make([]scored, len(records))
	for i, r := range records {
		ranked[i] = scored{rec: r, score: Score(r, tokens)}
	}

	slices.SortFunc(ranked, func(a, b scored) int {
		return Compare(a.rec, b.rec, a.score, b.score)
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	result := make([]Record, len(ranked))
	for i, s := range ranked {
		result[i] = s.rec
	}
	return result
}
