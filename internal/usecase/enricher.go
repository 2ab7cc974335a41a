package usecase

import (
	"context"
	"log/slog"
	"slices"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/logging"
	"ArxivDigest/internal/ports"
	"ArxivDigest/pkg/fn"
)

// DefaultSearchWorkers bounds concurrent engagement searches.
const DefaultSearchWorkers = 4

// EnrichOptions tunes the enrichment stage.
type EnrichOptions struct {
	Workers int
	Logger  *slog.Logger
}

// Enricher attaches abstracts and social mentions to crawled papers.
type Enricher struct {
	summaries ports.SummaryLookup
	searcher  ports.EngagementSearcher
	workers   int
	logger    *slog.Logger
}

// NewEnricher wires optional collaborators; a nil one skips its step.
func NewEnricher(summaries ports.SummaryLookup, searcher ports.EngagementSearcher, opts EnrichOptions) *Enricher {
	if opts.Workers <= 0 {
		opts.Workers = DefaultSearchWorkers
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Enricher{
		summaries: summaries,
		searcher:  searcher,
		workers:   opts.Workers,
		logger:    opts.Logger,
	}
}

// Enrich returns a copy of papers in the same order, with summaries filled
// from the lookup and engagements from the searcher. Lookup failures are
// logged and leave the affected papers as they were; only cancellation is
// returned as an error.
func (e *Enricher) Enrich(ctx context.Context, papers []domain.EnrichedPaper) ([]domain.EnrichedPaper, error) {
	out := slices.Clone(papers)
	if len(out) == 0 {
		return out, nil
	}

	if e.summaries != nil {
		e.attachSummaries(ctx, out)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if e.searcher != nil {
		mentions := fn.ParMap(out, e.workers, func(i int, p domain.EnrichedPaper) []domain.EngagementRecord {
			return e.search(ctx, i, p)
		})
		for i := range out {
			out[i].Engagements = mentions[i]
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Enricher) attachSummaries(ctx context.Context, papers []domain.EnrichedPaper) {
	var ids []string
	for _, p := range papers {
		if p.ID != "" {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return
	}

	summaries, err := e.summaries.Summaries(ctx, ids)
	if err != nil {
		// partial answers are still used
		e.logger.Warn("summary lookup failed", "error", err, "received", len(summaries), "requested", len(ids))
	}
	found := 0
	for i := range papers {
		if s, ok := summaries[papers[i].ID]; ok && s != "" {
			papers[i].Summary = s
			found++
		}
	}
	e.logger.Info("summaries attached", "papers", len(papers), "found", found)
}

func (e *Enricher) search(ctx context.Context, index int, p domain.EnrichedPaper) []domain.EngagementRecord {
	if p.ID == "" || ctx.Err() != nil {
		return p.Engagements
	}
	records, err := e.searcher.Search(ctx, p.ID)
	if err != nil {
		e.logger.Warn("engagement search failed", "paper", p.ID, "index", index, "error", err)
		return []domain.EngagementRecord{}
	}
	e.logger.Debug("engagement search", "paper", p.ID, "mentions", len(records))
	if records == nil {
		records = []domain.EngagementRecord{}
	}
	return records
}
