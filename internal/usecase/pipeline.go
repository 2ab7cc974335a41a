package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ArxivDigest/internal/artifact"
	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/logging"
	"ArxivDigest/internal/ports"
	"ArxivDigest/internal/ranking"
	"ArxivDigest/internal/render"
	"ArxivDigest/internal/scanner"
)

const tracerName = "ArxivDigest/internal/usecase"

// DocumentSpec names one rendered output. An empty Policy uses the style's
// default ranking policy.
type DocumentSpec struct {
	Style  string
	Path   string
	Markup bool
	Policy ranking.Policy
}

// PipelineConfig carries the run settings.
type PipelineConfig struct {
	Categories   []string
	ArtifactPath string
	// FetchRetries is how often a crawl resumes after a transient fetch
	// failure before giving up.
	FetchRetries int
	RetryDelay   time.Duration
	Ranking      ranking.Params
	Display      ranking.DisplayFilter
	Documents    []DocumentSpec
	// NotifyStyle is rendered without markup and sent through the notifier.
	NotifyStyle string
}

// PipelineDeps wires the driven adapters into the pipeline.
type PipelineDeps struct {
	Crawler   *scanner.Crawler
	Enricher  *Enricher
	Renderers *render.Registry
	Notifier  ports.Notifier
	Logger    *slog.Logger
	// Tracing defaults to the global otel provider.
	Tracing trace.TracerProvider
}

// RenderedDocument is one finished digest.
type RenderedDocument struct {
	Style string
	Path  string
	Text  string
}

// Pipeline implements crawl, enrich, render and notify.
type Pipeline struct {
	crawler   *scanner.Crawler
	enricher  *Enricher
	renderers *render.Registry
	notifier  ports.Notifier
	cfg       PipelineConfig
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps, cfg PipelineConfig) *Pipeline {
	if deps.Renderers == nil {
		deps.Renderers = render.DefaultRegistry()
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Tracing == nil {
		deps.Tracing = otel.GetTracerProvider()
	}
	return &Pipeline{
		crawler:   deps.Crawler,
		enricher:  deps.Enricher,
		renderers: deps.Renderers,
		notifier:  deps.Notifier,
		cfg:       cfg,
		logger:    deps.Logger,
		tracer:    deps.Tracing.Tracer(tracerName),
	}
}

// Crawl walks the configured categories over window and returns a fresh
// run document. Transient fetch failures resume from the failing offset up
// to FetchRetries times.
func (p *Pipeline) Crawl(ctx context.Context, window domain.CrawlWindow) (artifact.Document, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.crawl",
		trace.WithAttributes(attribute.String("window", window.String())))
	defer span.End()

	if p.crawler == nil {
		return artifact.Document{}, fail(span, errors.New("crawler is not configured"))
	}

	started := time.Now()
	req := scanner.Request{
		Categories: p.cfg.Categories,
		Window:     window,
		Seen:       scanner.NewDeduplicator(),
	}

	var (
		entries []domain.ListingEntry
		reports []scanner.CategoryReport
	)
	for attempt := 0; ; attempt++ {
		res, err := p.crawler.Crawl(ctx, req)
		entries = append(entries, res.Entries...)
		reports = mergeReports(reports, res.Categories, req.Resume != nil)

		var fetchErr *domain.FetchError
		if err == nil {
			break
		}
		if !errors.As(err, &fetchErr) || attempt >= p.cfg.FetchRetries {
			return artifact.Document{}, fail(span, fmt.Errorf("crawl: %w", err))
		}
		p.logger.Warn("crawl interrupted, resuming", "category", fetchErr.Category,
			"offset", fetchErr.Offset, "attempt", attempt+1, "error", fetchErr.Err)
		if err := sleep(ctx, p.cfg.RetryDelay); err != nil {
			return artifact.Document{}, fail(span, err)
		}
		req.Resume = &scanner.Resume{CategoryIndex: fetchErr.CategoryIndex, Offset: fetchErr.Offset}
	}

	incomplete := scanner.Result{Categories: reports}.Incomplete()
	doc := artifact.Document{
		Meta:   artifact.NewMeta(window, p.cfg.Categories, incomplete),
		Papers: artifact.FromEntries(entries),
	}
	span.SetAttributes(attribute.Int("papers", len(doc.Papers)))
	p.logger.Info("crawl done", "papers", len(doc.Papers), "incomplete", incomplete,
		"run_id", doc.Meta.RunID, "elapsed", time.Since(started).Round(time.Millisecond))
	return doc, nil
}

// Enrich attaches summaries and mentions to every paper of doc.
func (p *Pipeline) Enrich(ctx context.Context, doc artifact.Document) (artifact.Document, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.enrich",
		trace.WithAttributes(attribute.Int("papers", len(doc.Papers))))
	defer span.End()

	if p.enricher == nil {
		return doc, nil
	}
	started := time.Now()
	papers, err := p.enricher.Enrich(ctx, doc.Papers)
	if err != nil {
		return artifact.Document{}, fail(span, fmt.Errorf("enrich: %w", err))
	}
	doc.Papers = papers
	p.logger.Info("enrich done", "papers", len(papers), "elapsed", time.Since(started).Round(time.Millisecond))
	return doc, nil
}

// Render ranks and renders every configured document. Nothing is written
// unless all of them succeed.
func (p *Pipeline) Render(ctx context.Context, doc artifact.Document) ([]RenderedDocument, error) {
	_, span := p.tracer.Start(ctx, "pipeline.render",
		trace.WithAttributes(attribute.Int("documents", len(p.cfg.Documents))))
	defer span.End()

	rendered := make([]RenderedDocument, 0, len(p.cfg.Documents))
	for _, spec := range p.cfg.Documents {
		text, err := p.renderOne(doc, spec)
		if err != nil {
			return nil, fail(span, err)
		}
		rendered = append(rendered, RenderedDocument{Style: spec.Style, Path: spec.Path, Text: text})
	}

	for _, r := range rendered {
		if r.Path == "" {
			continue
		}
		if err := writeText(r.Path, r.Text); err != nil {
			return nil, fail(span, err)
		}
		p.logger.Info("document written", "style", r.Style, "path", r.Path)
	}
	return rendered, nil
}

// Notify renders the notification style as plain text and publishes it.
func (p *Pipeline) Notify(ctx context.Context, doc artifact.Document) error {
	if p.notifier == nil || p.cfg.NotifyStyle == "" {
		return nil
	}
	text, err := p.renderOne(doc, DocumentSpec{Style: p.cfg.NotifyStyle})
	if err != nil {
		return err
	}
	if err := p.notifier.PublishDigest(ctx, text); err != nil {
		return fmt.Errorf("publish digest: %w", err)
	}
	p.logger.Info("digest published", "style", p.cfg.NotifyStyle)
	return nil
}

// Run executes the whole pipeline for window, saving the run document
// before rendering so a failed render can be repeated from it.
func (p *Pipeline) Run(ctx context.Context, window domain.CrawlWindow) error {
	doc, err := p.Crawl(ctx, window)
	if err != nil {
		return err
	}
	doc, err = p.Enrich(ctx, doc)
	if err != nil {
		return err
	}
	if p.cfg.ArtifactPath != "" {
		if err := artifact.WriteFile(p.cfg.ArtifactPath, doc); err != nil {
			return err
		}
		p.logger.Info("run document saved", "path", p.cfg.ArtifactPath)
	}
	if _, err := p.Render(ctx, doc); err != nil {
		return err
	}
	return p.Notify(ctx, doc)
}

func (p *Pipeline) renderOne(doc artifact.Document, spec DocumentSpec) (string, error) {
	renderer, err := p.renderers.Resolve(spec.Style)
	if err != nil {
		return "", err
	}
	window, err := doc.Meta.Window()
	if err != nil {
		return "", fmt.Errorf("render %s: %w", spec.Style, err)
	}

	params := p.cfg.Ranking
	params.Policy = spec.Policy
	if params.Policy == "" {
		params.Policy = renderer.DefaultPolicy()
	}
	set, err := ranking.Rank(doc.Papers, params)
	if err != nil {
		return "", fmt.Errorf("rank for %s: %w", spec.Style, err)
	}

	var buf bytes.Buffer
	err = renderer.Render(&buf, set, render.Options{
		Window:       window,
		Total:        len(doc.Papers),
		Markup:       spec.Markup,
		FavoriteTags: p.cfg.Ranking.FavoriteTags,
		Display:      p.cfg.Display,
	})
	if err != nil {
		return "", fmt.Errorf("render %s: %w", spec.Style, err)
	}
	return buf.String(), nil
}

// mergeReports appends next to prev; a resumed crawl continues the last
// category of prev, so the two reports are summed.
func mergeReports(prev, next []scanner.CategoryReport, resumed bool) []scanner.CategoryReport {
	if resumed && len(prev) > 0 && len(next) > 0 && prev[len(prev)-1].Category == next[0].Category {
		last := &prev[len(prev)-1]
		last.Entries += next[0].Entries
		last.Duplicates += next[0].Duplicates
		last.Pages += next[0].Pages
		last.Err = next[0].Err
		next = next[1:]
	}
	return append(prev, next...)
}

func writeText(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
