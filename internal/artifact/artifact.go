package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"ArxivDigest/internal/domain"
)

// Meta describes the run that produced a document.
type Meta struct {
	RunID       string     `json:"run_id,omitempty"`
	Since       domain.Day `json:"since"`
	Until       domain.Day `json:"until"`
	Categories  []string   `json:"categories,omitempty"`
	Incomplete  []string   `json:"incomplete,omitempty"`
	GeneratedAt time.Time  `json:"generated_at,omitzero"`
}

// Window returns the crawl window recorded in the metadata.
func (m Meta) Window() (domain.CrawlWindow, error) {
	return domain.NewCrawlWindow(m.Since, m.Until)
}

// Document is the persisted output of a crawl or enrich stage.
type Document struct {
	Meta   Meta                   `json:"meta"`
	Papers []domain.EnrichedPaper `json:"papers"`
}

// NewMeta stamps a fresh run identifier.
func NewMeta(window domain.CrawlWindow, categories, incomplete []string) Meta {
	return Meta{
		RunID:       uuid.NewString(),
		Since:       window.Since,
		Until:       window.Until,
		Categories:  categories,
		Incomplete:  incomplete,
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
	}
}

// FromEntries wraps crawl output into papers without summaries or engagements.
func FromEntries(entries []domain.ListingEntry) []domain.EnrichedPaper {
	papers := make([]domain.EnrichedPaper, 0, len(entries))
	for _, e := range entries {
		papers = append(papers, domain.EnrichedPaper{ListingEntry: e})
	}
	return papers
}

// Encode writes doc as indented JSON.
func Encode(w io.Writer, doc Document) error {
	if doc.Papers == nil {
		doc.Papers = []domain.EnrichedPaper{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	return nil
}

// Decode reads a document in the current format or one of the older layouts:
// a bare paper array, start_date/end_date metadata, papers carrying
// "abstract" instead of "summary", and scraped "tweets" instead of
// "engagements".
func Decode(r io.Reader) (Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("read artifact: %w", err)
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Document{}, fmt.Errorf("decode artifact: empty input")
	}

	var doc storedDocument
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &doc.Papers); err != nil {
			return Document{}, fmt.Errorf("decode artifact papers: %w", err)
		}
	} else if err := json.Unmarshal(trimmed, &doc); err != nil {
		return Document{}, fmt.Errorf("decode artifact: %w", err)
	}

	out := Document{Meta: doc.Meta.toMeta()}
	if doc.Papers != nil {
		out.Papers = make([]domain.EnrichedPaper, 0, len(doc.Papers))
	}
	for i, p := range doc.Papers {
		paper, err := p.toPaper()
		if err != nil {
			return Document{}, fmt.Errorf("decode artifact paper #%d: %w", i, err)
		}
		out.Papers = append(out.Papers, paper)
	}
	return out, nil
}

// WriteFile encodes doc to path, creating parent directories.
func WriteFile(path string, doc Document) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create artifact dir: %w", err)
		}
	}
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write artifact %s: %w", path, err)
	}
	return nil
}

// ReadFile decodes the document stored at path.
func ReadFile(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

type storedDocument struct {
	Meta   storedMeta    `json:"meta"`
	Papers []storedPaper `json:"papers"`
}

type storedMeta struct {
	RunID       string     `json:"run_id"`
	Since       domain.Day `json:"since"`
	Until       domain.Day `json:"until"`
	Categories  []string   `json:"categories"`
	Incomplete  []string   `json:"incomplete"`
	GeneratedAt time.Time  `json:"generated_at"`

	// older runs stored the inclusive first day and the exclusive end day
	StartDate domain.Day `json:"start_date"`
	EndDate   domain.Day `json:"end_date"`
}

func (m storedMeta) toMeta() Meta {
	meta := Meta{
		RunID:       m.RunID,
		Since:       m.Since,
		Until:       m.Until,
		Categories:  m.Categories,
		Incomplete:  m.Incomplete,
		GeneratedAt: m.GeneratedAt,
	}
	if meta.Since.IsZero() && !m.EndDate.IsZero() {
		meta.Since = m.EndDate
	}
	if meta.Until.IsZero() && !m.StartDate.IsZero() {
		meta.Until = m.StartDate.AddDays(-1)
	}
	return meta
}

type storedPaper struct {
	domain.EnrichedPaper

	Abstract string        `json:"abstract"`
	Tweets   []legacyTweet `json:"tweets"`
}

func (p storedPaper) toPaper() (domain.EnrichedPaper, error) {
	paper := p.EnrichedPaper
	if paper.Summary == "" {
		paper.Summary = strings.TrimSpace(p.Abstract)
	}
	if paper.Engagements == nil && p.Tweets != nil {
		paper.Engagements = make([]domain.EngagementRecord, 0, len(p.Tweets))
		for i, t := range p.Tweets {
			rec, err := t.toRecord()
			if err != nil {
				return domain.EnrichedPaper{}, fmt.Errorf("tweet #%d: %w", i, err)
			}
			paper.Engagements = append(paper.Engagements, rec)
		}
	}
	return paper, nil
}
