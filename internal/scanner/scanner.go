package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/logging"
	"ArxivDigest/internal/ports"
)

const (
	DefaultPageSize = 512
	DefaultDelay    = 100 * time.Millisecond
)

// Resume points a crawl at the page where an earlier attempt failed.
type Resume struct {
	CategoryIndex int
	Offset        int
}

// Request carries all parameters required to execute a crawl.
type Request struct {
	Categories []string
	Window     domain.CrawlWindow
	// Seen is shared across categories; a nil Seen gets a fresh set. Pass the
	// same set again when retrying after a FetchError.
	Seen   *Deduplicator
	Resume *Resume
}

// CategoryReport summarizes the crawl of one category.
type CategoryReport struct {
	Category   string
	Entries    int
	Duplicates int
	Pages      int
	// Err is set when the category stopped on a malformed page.
	Err error
}

// Result is the ordered, deduplicated crawl output.
type Result struct {
	Entries    []domain.ListingEntry
	Categories []CategoryReport
}

// Incomplete lists categories that stopped on a malformed page.
func (r Result) Incomplete() []string {
	var out []string
	for _, c := range r.Categories {
		if c.Err != nil {
			out = append(out, c.Category)
		}
	}
	return out
}

// Options tunes a Crawler.
type Options struct {
	PageSize int
	// Delay separates successive page fetches within one category.
	Delay time.Duration
	// MaxPages caps pages per category; zero means no cap.
	MaxPages int
	Logger   *slog.Logger
}

// Crawler walks reverse-chronological listing pages and keeps the rows whose
// day header falls inside the requested window.
type Crawler struct {
	fetcher  ports.PageFetcher
	pageSize int
	delay    time.Duration
	maxPages int
	logger   *slog.Logger
}

// NewCrawler wires a page fetcher; zero options fall back to defaults.
func NewCrawler(fetcher ports.PageFetcher, opts Options) *Crawler {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Crawler{
		fetcher:  fetcher,
		pageSize: opts.PageSize,
		delay:    opts.Delay,
		maxPages: opts.MaxPages,
		logger:   opts.Logger,
	}
}

// Crawl visits categories in the given order. A malformed page ends its own
// category only; a fetch failure ends the crawl with a *domain.FetchError and
// the entries gathered so far.
func (c *Crawler) Crawl(ctx context.Context, req Request) (Result, error) {
	if c.fetcher == nil {
		return Result{}, fmt.Errorf("page fetcher is not configured")
	}
	if len(req.Categories) == 0 {
		return Result{}, fmt.Errorf("no categories provided")
	}
	if err := req.Window.Validate(); err != nil {
		return Result{}, err
	}

	seen := req.Seen
	if seen == nil {
		seen = NewDeduplicator()
	}

	start := 0
	startOffset := 0
	if req.Resume != nil {
		if req.Resume.CategoryIndex < 0 || req.Resume.CategoryIndex >= len(req.Categories) {
			return Result{}, fmt.Errorf("resume category index %d out of range", req.Resume.CategoryIndex)
		}
		start = req.Resume.CategoryIndex
		startOffset = req.Resume.Offset
	}

	var result Result
	for i := start; i < len(req.Categories); i++ {
		cat := req.Categories[i]
		offset := 0
		if i == start {
			offset = startOffset
		}

		c.logger.Info("crawl category", "category", cat, "window", req.Window.String(), "offset", offset)
		entries, report, err := c.crawlCategory(ctx, cat, offset, req.Window, seen)
		result.Entries = append(result.Entries, entries...)

		var fetchErr *domain.FetchError
		if errors.As(err, &fetchErr) {
			fetchErr.CategoryIndex = i
			result.Categories = append(result.Categories, report)
			return result, fetchErr
		}
		if err != nil {
			report.Err = err
			c.logger.Warn("category incomplete", "category", cat, "error", err)
		}
		result.Categories = append(result.Categories, report)
		c.logger.Info("category done", "category", cat, "entries", report.Entries,
			"duplicates", report.Duplicates, "pages", report.Pages)
	}

	return result, nil
}

func (c *Crawler) crawlCategory(ctx context.Context, cat string, offset int, window domain.CrawlWindow, seen *Deduplicator) ([]domain.ListingEntry, CategoryReport, error) {
	report := CategoryReport{Category: cat}
	limiter := c.newLimiter()
	var entries []domain.ListingEntry

	for {
		if c.maxPages > 0 && report.Pages >= c.maxPages {
			c.logger.Warn("page cap reached", "category", cat, "pages", report.Pages, "offset", offset)
			return entries, report, nil
		}
		if err := limiter.Wait(ctx); err != nil {
			return entries, report, &domain.FetchError{Category: cat, Offset: offset, Err: err}
		}

		page, err := c.fetcher.FetchPage(ctx, ports.PageRequest{Category: cat, Offset: offset, Size: c.pageSize})
		if err != nil {
			if errors.Is(err, domain.ErrMalformedPage) {
				return entries, report, err
			}
			return entries, report, &domain.FetchError{Category: cat, Offset: offset, Err: err}
		}
		report.Pages++
		c.logger.Debug("page", "category", cat, "offset", offset, "blocks", len(page.Blocks), "rows", page.RowCount())

		if len(page.Blocks) == 0 {
			return entries, report, nil
		}

		consumed := 0
		for _, block := range page.Blocks {
			day, err := domain.ParseListingDay(block.Header)
			if err != nil {
				return entries, report, &domain.MalformedPageError{Category: cat, Offset: offset, Reason: err.Error()}
			}

			if window.TooNew(day) {
				consumed += len(block.Rows)
				continue
			}
			if window.Exhausted(day) {
				return entries, report, nil
			}

			for _, row := range block.Rows {
				if strings.TrimSpace(row.Title) == "" {
					return entries, report, &domain.MalformedPageError{
						Category: cat,
						Offset:   offset,
						Reason:   fmt.Sprintf("row without title under %q", block.Header),
					}
				}
				if !hasSubject(row.Subjects) {
					return entries, report, &domain.MalformedPageError{
						Category: cat,
						Offset:   offset,
						Reason:   fmt.Sprintf("row %q without subjects under %q", row.Title, block.Header),
					}
				}
				if !seen.Claim(row.Title) {
					report.Duplicates++
					c.logger.Info("already processed", "category", cat, "title", row.Title)
					continue
				}
				row.Date = day
				entries = append(entries, row)
				report.Entries++
				c.logger.Debug("entry", "n", seen.Len(), "title", row.Title)
			}
			consumed += len(block.Rows)
		}

		if consumed == 0 {
			return entries, report, nil
		}
		offset += consumed
	}
}

func (c *Crawler) newLimiter() *rate.Limiter {
	if c.delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(c.delay), 1)
}

func hasSubject(subjects []string) bool {
	for _, s := range subjects {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}
