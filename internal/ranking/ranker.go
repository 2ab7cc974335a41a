package ranking

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"ArxivDigest/internal/domain"
)

// Policy selects how papers are bucketed.
type Policy string

const (
	PolicyTagPriority    Policy = "tag-priority"
	PolicyScoreThreshold Policy = "score-threshold"
)

// SubjectMatch selects which subjects a tag rule looks at.
type SubjectMatch string

const (
	MatchPrimary SubjectMatch = "primary"
	MatchAny     SubjectMatch = "any"
)

// Labels are the display names of the tiers.
type Labels struct {
	Favorite   string
	Other      string
	Unfavorite string
	Hot        string
}

// DefaultLabels mirror the digest headings.
var DefaultLabels = Labels{
	Favorite:   "High-Priority Papers",
	Other:      "Middle-Priority Papers",
	Unfavorite: "Low-Priority Papers",
	Hot:        "Hot Papers",
}

// Params tunes the ranker.
type Params struct {
	Policy              Policy
	FavoriteTags        []string
	UnfavoriteTags      []string
	PaperScoreThreshold int
	SubjectMatch        SubjectMatch
	// RequireFavorite additionally restricts the score-threshold tier to
	// papers with a favorite subject.
	RequireFavorite bool
	Labels          Labels
}

// Validate rejects overlapping tag sets and unknown modes.
func (p Params) Validate() error {
	switch p.Policy {
	case PolicyTagPriority, PolicyScoreThreshold:
	default:
		return fmt.Errorf("unknown ranking policy %q", p.Policy)
	}
	switch p.SubjectMatch {
	case "", MatchPrimary, MatchAny:
	default:
		return fmt.Errorf("unknown subject match %q", p.SubjectMatch)
	}
	fav := toSet(p.FavoriteTags)
	for _, tag := range p.UnfavoriteTags {
		if _, ok := fav[tag]; ok {
			return fmt.Errorf("tag %s is both favorite and unfavorite", tag)
		}
	}
	return nil
}

// EngagementScore is reposts plus likes.
func EngagementScore(r domain.EngagementRecord) int {
	return r.RepostCount + r.LikeCount
}

// PaperScore sums the engagement scores of a paper's mentions.
func PaperScore(p domain.EnrichedPaper) int {
	total := 0
	for _, r := range p.Engagements {
		total += EngagementScore(r)
	}
	return total
}

// TotalReposts sums repost counts.
func TotalReposts(p domain.EnrichedPaper) int {
	total := 0
	for _, r := range p.Engagements {
		total += r.RepostCount
	}
	return total
}

// TotalLikes sums like counts.
func TotalLikes(p domain.EnrichedPaper) int {
	total := 0
	for _, r := range p.Engagements {
		total += r.LikeCount
	}
	return total
}

// Validate checks every paper before anything is ranked.
func Validate(papers []domain.EnrichedPaper) error {
	for i, p := range papers {
		if strings.TrimSpace(p.Title) == "" {
			return &domain.DataIntegrityError{Index: i, Field: "title", Reason: "is empty"}
		}
		if len(p.Subjects) == 0 {
			return &domain.DataIntegrityError{Index: i, Title: p.Title, Field: "subjects", Reason: "is empty"}
		}
		for j, s := range p.Subjects {
			if strings.TrimSpace(s) == "" {
				return &domain.DataIntegrityError{Index: i, Title: p.Title, Field: "subjects", Reason: fmt.Sprintf("entry %d is blank", j)}
			}
		}
		for j, r := range p.Engagements {
			if r.RepostCount < 0 || r.LikeCount < 0 {
				return &domain.DataIntegrityError{Index: i, Title: p.Title, Field: "engagements", Reason: fmt.Sprintf("record %d has a negative count", j)}
			}
		}
	}
	return nil
}

// Rank validates the input and buckets it according to params.Policy. It
// never returns a partial set: any invalid paper fails the whole call.
func Rank(papers []domain.EnrichedPaper, params Params) (domain.RankedPaperSet, error) {
	if err := params.Validate(); err != nil {
		return domain.RankedPaperSet{}, err
	}
	if err := Validate(papers); err != nil {
		return domain.RankedPaperSet{}, err
	}
	labels := withDefaults(params.Labels)

	switch params.Policy {
	case PolicyScoreThreshold:
		return rankByScore(papers, params, labels), nil
	default:
		return rankByTags(papers, params, labels), nil
	}
}

func rankByTags(papers []domain.EnrichedPaper, params Params, labels Labels) domain.RankedPaperSet {
	fav := toSet(params.FavoriteTags)
	unfav := toSet(params.UnfavoriteTags)

	var favorites, others, unfavorites []domain.EnrichedPaper
	for _, p := range papers {
		if !p.HasDownload() {
			continue
		}
		switch {
		case matches(p, fav, params.SubjectMatch):
			favorites = append(favorites, clonePaper(p))
		case matches(p, unfav, params.SubjectMatch):
			unfavorites = append(unfavorites, clonePaper(p))
		default:
			others = append(others, clonePaper(p))
		}
	}

	for _, tier := range [][]domain.EnrichedPaper{favorites, others, unfavorites} {
		sort.SliceStable(tier, func(i, j int) bool {
			return tier[i].PrimarySubject() < tier[j].PrimarySubject()
		})
	}

	return domain.RankedPaperSet{Tiers: []domain.Tier{
		{Key: domain.TierFavorite, Label: labels.Favorite, Papers: favorites},
		{Key: domain.TierOther, Label: labels.Other, Papers: others},
		{Key: domain.TierUnfavorite, Label: labels.Unfavorite, Papers: unfavorites},
	}}
}

func rankByScore(papers []domain.EnrichedPaper, params Params, labels Labels) domain.RankedPaperSet {
	fav := toSet(params.FavoriteTags)

	type scored struct {
		paper domain.EnrichedPaper
		score int
	}
	var hot []scored
	for _, p := range papers {
		if !p.HasDownload() {
			continue
		}
		score := PaperScore(p)
		if score < params.PaperScoreThreshold {
			continue
		}
		if params.RequireFavorite && !matches(p, fav, params.SubjectMatch) {
			continue
		}
		hot = append(hot, scored{paper: clonePaper(p), score: score})
	}

	sort.SliceStable(hot, func(i, j int) bool {
		return hot[i].score > hot[j].score
	})

	out := make([]domain.EnrichedPaper, len(hot))
	for i, s := range hot {
		out[i] = s.paper
	}
	return domain.RankedPaperSet{Tiers: []domain.Tier{
		{Key: domain.TierHot, Label: labels.Hot, Papers: out},
	}}
}

func matches(p domain.EnrichedPaper, tags map[string]struct{}, mode SubjectMatch) bool {
	if len(tags) == 0 {
		return false
	}
	if mode == MatchAny {
		for _, code := range p.SubjectCodes() {
			if _, ok := tags[code]; ok {
				return true
			}
		}
		return false
	}
	_, ok := tags[domain.SubjectCode(p.PrimarySubject())]
	return ok
}

// clonePaper detaches a ranked paper from the caller's slices and maps.
func clonePaper(p domain.EnrichedPaper) domain.EnrichedPaper {
	p.Authors = slices.Clone(p.Authors)
	p.Subjects = slices.Clone(p.Subjects)
	p.Engagements = slices.Clone(p.Engagements)
	if p.Links != nil {
		links := make(map[string]string, len(p.Links))
		for k, v := range p.Links {
			links[k] = v
		}
		p.Links = links
	}
	return p
}

func toSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[strings.TrimSpace(t)] = struct{}{}
	}
	return set
}

func withDefaults(l Labels) Labels {
	if l.Favorite == "" {
		l.Favorite = DefaultLabels.Favorite
	}
	if l.Other == "" {
		l.Other = DefaultLabels.Other
	}
	if l.Unfavorite == "" {
		l.Unfavorite = DefaultLabels.Unfavorite
	}
	if l.Hot == "" {
		l.Hot = DefaultLabels.Hot
	}
	return l
}
