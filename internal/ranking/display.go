package ranking

import (
	"sort"

	"ArxivDigest/internal/domain"
)

// DisplayFilter picks the engagement records worth quoting for a paper.
type DisplayFilter struct {
	MinShown  int
	MaxShown  int
	Threshold int
}

// DefaultDisplayFilter matches the hot digest settings.
var DefaultDisplayFilter = DisplayFilter{MinShown: 0, MaxShown: 10, Threshold: 25}

// Select orders records by descending score and keeps the first MinShown of
// them unconditionally; further records up to MaxShown are kept only when
// their score is above Threshold. The input slice is not modified.
func (f DisplayFilter) Select(records []domain.EngagementRecord) []domain.EngagementRecord {
	sorted := make([]domain.EngagementRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return EngagementScore(sorted[i]) > EngagementScore(sorted[j])
	})

	limit := f.MaxShown
	if limit < 0 {
		limit = 0
	}
	minShown := f.MinShown
	if minShown > limit {
		minShown = limit
	}

	out := make([]domain.EngagementRecord, 0, min(limit, len(sorted)))
	for i, r := range sorted {
		if len(out) >= limit {
			break
		}
		if i >= minShown && EngagementScore(r) <= f.Threshold {
			// sorted descending, nothing further can clear the threshold
			break
		}
		out = append(out, r)
	}
	return out
}
