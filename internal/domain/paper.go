package domain

import (
	"regexp"
	"strings"
	"time"
)

// Link labels used by listing rows.
const (
	LinkAbstract = "Abstract"
	LinkPDF      = "Download PDF"
)

// ListingEntry is one paper row taken from a listing page.
type ListingEntry struct {
	ID       string            `json:"id,omitempty"`
	Date     Day               `json:"date"`
	Title    string            `json:"title"`
	Authors  []string          `json:"authors"`
	Links    map[string]string `json:"links"`
	Comments string            `json:"comments,omitempty"`
	Subjects []string          `json:"subjects"`
}

// HasDownload reports whether the row links to a downloadable document.
func (e ListingEntry) HasDownload() bool {
	return e.Links[LinkPDF] != ""
}

// PrimarySubject returns the first raw subject, or "" when there is none.
func (e ListingEntry) PrimarySubject() string {
	if len(e.Subjects) == 0 {
		return ""
	}
	return e.Subjects[0]
}

// SubjectCodes returns the short codes of every subject, in order.
func (e ListingEntry) SubjectCodes() []string {
	codes := make([]string, 0, len(e.Subjects))
	for _, s := range e.Subjects {
		codes = append(codes, SubjectCode(s))
	}
	return codes
}

var subjectCodeExpr = regexp.MustCompile(`\(([^()]+)\)\s*$`)

// SubjectCode extracts "cs.LG" from "Machine Learning (cs.LG)". A subject
// without a parenthesized code is returned trimmed.
func SubjectCode(subject string) string {
	if m := subjectCodeExpr.FindStringSubmatch(subject); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(subject)
}

// EngagementRecord is one social mention of a paper.
type EngagementRecord struct {
	AuthorName   string    `json:"author_name"`
	AuthorHandle string    `json:"author_handle"`
	CreatedAt    time.Time `json:"created_at"`
	Link         string    `json:"link"`
	RepostCount  int       `json:"repost_count"`
	LikeCount    int       `json:"like_count"`
	Text         string    `json:"text"`
}

// EnrichedPaper is a listing row plus its abstract and social mentions.
type EnrichedPaper struct {
	ListingEntry
	Summary     string             `json:"summary,omitempty"`
	Engagements []EngagementRecord `json:"engagements"`
}

// ListingBlock groups the rows printed under one day header.
type ListingBlock struct {
	Header string
	Rows   []ListingEntry
}

// ListingPage is one fetched page of a category listing, newest day first.
type ListingPage struct {
	Category string
	Offset   int
	Blocks   []ListingBlock
}

// RowCount is the number of rows across all blocks.
func (p ListingPage) RowCount() int {
	n := 0
	for _, b := range p.Blocks {
		n += len(b.Rows)
	}
	return n
}

// TierKey identifies a ranking bucket independently of its display label.
type TierKey string

const (
	TierFavorite   TierKey = "favorite"
	TierOther      TierKey = "other"
	TierUnfavorite TierKey = "unfavorite"
	TierHot        TierKey = "hot"
)

// Tier is one labeled bucket of ranked papers.
type Tier struct {
	Key    TierKey
	Label  string
	Papers []EnrichedPaper
}

// RankedPaperSet is the ranker's output, consumed by renderers.
type RankedPaperSet struct {
	Tiers []Tier
}

// Len counts papers across tiers.
func (s RankedPaperSet) Len() int {
	n := 0
	for _, t := range s.Tiers {
		n += len(t.Papers)
	}
	return n
}
