package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"ArxivDigest/internal/artifact"
	"ArxivDigest/internal/config"
	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/infrastructure/arxivapi"
	"ArxivDigest/internal/infrastructure/parser"
	"ArxivDigest/internal/infrastructure/scheduler"
	"ArxivDigest/internal/infrastructure/social"
	"ArxivDigest/internal/infrastructure/telegram"
	"ArxivDigest/internal/logging"
	"ArxivDigest/internal/ports"
	"ArxivDigest/internal/ranking"
	"ArxivDigest/internal/render"
	"ArxivDigest/internal/scanner"
	"ArxivDigest/internal/telemetry"
	"ArxivDigest/internal/usecase"
)

// shutdownTimeout bounds how long a scheduled run may take to wind down.
const shutdownTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *usecase.Pipeline
	searcher *social.BrowserSearcher
	cookies  *social.CookieStore
	tracing  *telemetry.Provider
}

// New validates cfg and builds every adapter it enables.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	renderers := render.DefaultRegistry()
	if err := checkStyles(cfg, renderers); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.Crawl.Timeout}
	fetcher := parser.NewListingFetcher(httpClient, cfg.Crawl.BaseURL, cfg.Crawl.UserAgent)
	crawler := scanner.NewCrawler(fetcher, scanner.Options{
		PageSize: cfg.Crawl.PageSize,
		Delay:    cfg.Crawl.Delay,
		MaxPages: cfg.Crawl.MaxPages,
		Logger:   baseLogger.With("component", "crawler"),
	})

	var summaries ports.SummaryLookup
	if s := cfg.Enrichment.Summaries; s.Enabled {
		summaries = arxivapi.NewClient(httpClient, s.APIURL, s.BatchSize, cfg.Crawl.UserAgent,
			baseLogger.With("component", "arxivapi"))
	}

	a := &Application{cfg: cfg, logger: baseLogger}
	if p := cfg.Enrichment.Search.CookiesPath; p != "" {
		a.cookies = social.NewCookieStore(p)
	}

	var searcher ports.EngagementSearcher
	if s := cfg.Enrichment.Search; s.Enabled {
		if a.cookies.Valid(time.Now()) {
			a.searcher = social.NewBrowserSearcher(a.cookies, social.SearchOptions{
				Headless: s.Headless,
				Limit:    s.Limit,
				Timeout:  s.Timeout,
				Logger:   baseLogger.With("component", "social"),
			})
			searcher = a.searcher
		} else {
			baseLogger.Warn("no valid X session, mentions are skipped; run the login command",
				"cookies", s.CookiesPath)
		}
	}

	var notifier ports.Notifier
	if t := cfg.Notifications.Telegram; t.Enabled() {
		notifier = telegram.NewNotifier(t.BotToken, t.ChatID)
	}

	documents := make([]usecase.DocumentSpec, 0, len(cfg.Output.Documents))
	for _, d := range cfg.Output.Documents {
		documents = append(documents, usecase.DocumentSpec{
			Style:  d.Style,
			Path:   d.Path,
			Markup: d.Markup,
			Policy: ranking.Policy(d.Policy),
		})
	}

	enricher := usecase.NewEnricher(summaries, searcher, usecase.EnrichOptions{
		Workers: cfg.Enrichment.Search.Workers,
		Logger:  baseLogger.With("component", "enricher"),
	})

	var tracing trace.TracerProvider
	if cfg.Tracing.Enabled {
		tp, err := telemetry.Open(cfg.Tracing.Output)
		if err != nil {
			return nil, err
		}
		a.tracing = tp
		otel.SetTracerProvider(tp)
		tracing = tp
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Crawler:   crawler,
		Enricher:  enricher,
		Renderers: renderers,
		Notifier:  notifier,
		Logger:    baseLogger.With("component", "pipeline"),
		Tracing:   tracing,
	}, usecase.PipelineConfig{
		Categories:   cfg.Crawl.Categories,
		ArtifactPath: cfg.Output.ArtifactPath,
		FetchRetries: cfg.Crawl.FetchRetries,
		RetryDelay:   cfg.Crawl.RetryDelay,
		Ranking:      cfg.RankingParams(),
		Display:      cfg.DisplayFilter(),
		Documents:    documents,
		NotifyStyle:  cfg.Notifications.Telegram.Style,
	})
	return a, nil
}

// checkStyles makes sure every configured document and the notification
// style name a registered renderer.
func checkStyles(cfg config.Config, reg *render.Registry) error {
	styles := make([]string, 0, len(cfg.Output.Documents)+1)
	for _, d := range cfg.Output.Documents {
		styles = append(styles, d.Style)
	}
	if cfg.Notifications.Telegram.Enabled() {
		styles = append(styles, cfg.Notifications.Telegram.Style)
	}
	for _, style := range styles {
		if _, err := reg.Resolve(style); err != nil {
			return fmt.Errorf("%w (known styles: %s)", err, strings.Join(reg.Names(), ", "))
		}
	}
	return nil
}

// Window is the configured day range relative to today in the scheduler's
// timezone.
func (a *Application) Window(now time.Time) (domain.CrawlWindow, error) {
	return a.WindowForDays(now, a.cfg.Crawl.FromDaysAgo, a.cfg.Crawl.ToDaysAgo)
}

// WindowForDays is the window covering fromDaysAgo through toDaysAgo, where
// today is taken in the scheduler's timezone.
func (a *Application) WindowForDays(now time.Time, fromDaysAgo, toDaysAgo int) (domain.CrawlWindow, error) {
	today := domain.DayOf(now.In(a.cfg.Scheduler.Location()))
	return domain.WindowForDays(today, fromDaysAgo, toDaysAgo)
}

// Login captures an X session interactively and stores it at the configured
// cookie path.
func (a *Application) Login(ctx context.Context) error {
	if a.cookies == nil {
		return fmt.Errorf("enrichment.search.cookiesPath is not configured")
	}
	return social.Login(ctx, a.cookies, social.LoginOptions{
		Logger: a.logger.With("component", "login"),
	})
}

// Crawl fetches window and saves the run document to out (the configured
// artifact path when empty).
func (a *Application) Crawl(ctx context.Context, window domain.CrawlWindow, out string) error {
	doc, err := a.pipeline.Crawl(ctx, window)
	if err != nil {
		return err
	}
	return a.save(doc, out)
}

// Enrich reads a run document, enriches it and writes it to out (in place
// when out is empty).
func (a *Application) Enrich(ctx context.Context, in, out string) error {
	doc, err := a.load(in)
	if err != nil {
		return err
	}
	doc, err = a.pipeline.Enrich(ctx, doc)
	if err != nil {
		return err
	}
	if out == "" {
		out = in
	}
	return a.save(doc, out)
}

// Render writes the configured documents from a saved run document and
// optionally publishes the notification style.
func (a *Application) Render(ctx context.Context, in string, notify bool) ([]usecase.RenderedDocument, error) {
	doc, err := a.load(in)
	if err != nil {
		return nil, err
	}
	rendered, err := a.pipeline.Render(ctx, doc)
	if err != nil {
		return nil, err
	}
	if notify {
		if err := a.pipeline.Notify(ctx, doc); err != nil {
			return rendered, err
		}
	}
	return rendered, nil
}

// Run performs a single full pipeline execution.
func (a *Application) Run(ctx context.Context, window domain.CrawlWindow) error {
	return a.pipeline.Run(ctx, window)
}

// Schedule runs the pipeline on the configured cron expression until ctx is
// cancelled.
func (a *Application) Schedule(ctx context.Context) error {
	driver, err := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location())
	if err != nil {
		return err
	}
	jobs := usecase.NewScheduler(driver, a.pipeline, usecase.ScheduleOptions{
		FromDaysAgo: a.cfg.Crawl.FromDaysAgo,
		ToDaysAgo:   a.cfg.Crawl.ToDaysAgo,
		Logger:      a.logger.With("component", "scheduler"),
	})
	if err := jobs.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("scheduler started", "cron", driver.Spec(),
		"timezone", a.cfg.Scheduler.Location().String(), "next", driver.Next())

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return jobs.Stop(stopCtx)
}

// Close releases the browser, if one was started, and flushes pending spans.
func (a *Application) Close() {
	if a.searcher != nil {
		a.searcher.Close()
	}
	if a.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracing.Shutdown(ctx); err != nil {
			a.logger.Warn("trace flush failed", "error", err)
		}
		a.tracing = nil
	}
}

func (a *Application) load(path string) (artifact.Document, error) {
	if path == "" {
		path = a.cfg.Output.ArtifactPath
	}
	return artifact.ReadFile(path)
}

func (a *Application) save(doc artifact.Document, path string) error {
	if path == "" {
		path = a.cfg.Output.ArtifactPath
	}
	if err := artifact.WriteFile(path, doc); err != nil {
		return err
	}
	a.logger.Info("run document saved", "path", path, "papers", len(doc.Papers))
	return nil
}
