package social

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ports"
)

const (
	DefaultSearchURL = "https://x.com/search"
	DefaultLimit     = 100
	DefaultTimeout   = 2 * time.Minute

	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// SearchOptions tunes the browser searcher.
type SearchOptions struct {
	SearchURL string
	Headless  bool
	// Limit caps mentions collected per paper.
	Limit   int
	Timeout time.Duration
	// ScrollAttempts bounds how often the result list is scrolled; zero
	// derives it from Limit.
	ScrollAttempts int
	Logger         *slog.Logger
}

// BrowserSearcher finds posts linking to a paper through X's live search in
// a shared headless Chrome.
type BrowserSearcher struct {
	cookies *CookieStore
	opts    SearchOptions

	mu            sync.Mutex
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
}

var _ ports.EngagementSearcher = (*BrowserSearcher)(nil)

// NewBrowserSearcher wires a cookie store; the browser starts on first use.
func NewBrowserSearcher(cookies *CookieStore, opts SearchOptions) *BrowserSearcher {
	if opts.SearchURL == "" {
		opts.SearchURL = DefaultSearchURL
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ScrollAttempts <= 0 {
		opts.ScrollAttempts = opts.Limit/5 + 2
	}
	return &BrowserSearcher{cookies: cookies, opts: opts}
}

// Search returns mentions of the paper's abstract URL, newest first.
func (s *BrowserSearcher) Search(ctx context.Context, paperID string) ([]domain.EngagementRecord, error) {
	if strings.TrimSpace(paperID) == "" {
		return nil, fmt.Errorf("empty paper id")
	}
	browserCtx, err := s.browser()
	if err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer tabCancel()
	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, s.opts.Timeout)
	defer timeoutCancel()
	// the tab follows the caller's cancellation too
	stop := context.AfterFunc(ctx, timeoutCancel)
	defer stop()

	if s.cookies != nil {
		cookies, err := s.cookies.XCookies()
		if err != nil {
			return nil, fmt.Errorf("load cookies: %w", err)
		}
		if err := injectCookies(tabCtx, cookies); err != nil {
			return nil, fmt.Errorf("inject cookies: %w", err)
		}
	}

	if err := chromedp.Run(tabCtx, chromedp.Navigate(searchURL(s.opts.SearchURL, paperID))); err != nil {
		return nil, fmt.Errorf("open search for %s: %w", paperID, err)
	}

	posts, err := s.collect(tabCtx)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", paperID, err)
	}

	records := make([]domain.EngagementRecord, 0, len(posts))
	for _, p := range posts {
		records = append(records, p.toRecord())
	}
	s.debug("search done", "paper", paperID, "mentions", len(records))
	return records, nil
}

// Close shuts the shared browser down.
func (s *BrowserSearcher) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browserCancel != nil {
		s.browserCancel()
		s.allocCancel()
		s.browserCtx, s.browserCancel, s.allocCancel = nil, nil, nil
	}
}

func (s *BrowserSearcher) browser() (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browserCtx != nil {
		return s.browserCtx, nil
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), browserOptions(s.opts.Headless)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	// starts the browser process
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	s.browserCtx, s.browserCancel, s.allocCancel = browserCtx, browserCancel, allocCancel
	return browserCtx, nil
}

func (s *BrowserSearcher) collect(ctx context.Context) ([]rawPost, error) {
	var posts []rawPost
	seen := map[string]bool{}

	for attempt := 0; attempt < s.opts.ScrollAttempts && len(posts) < s.opts.Limit; attempt++ {
		var visible []rawPost
		if err := chromedp.Run(ctx,
			chromedp.Sleep(time.Duration(500+attempt*100)*time.Millisecond),
			chromedp.Evaluate(extractJS, &visible),
		); err != nil {
			return posts, err
		}

		fresh := 0
		for _, p := range visible {
			if p.ID == "" || seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			posts = append(posts, p)
			fresh++
		}
		if fresh == 0 && attempt > 0 {
			break
		}

		if err := chromedp.Run(ctx, chromedp.Evaluate(`window.scrollBy(0, window.innerHeight)`, nil)); err != nil {
			return posts, err
		}
	}

	if len(posts) > s.opts.Limit {
		posts = posts[:s.opts.Limit]
	}
	return posts, nil
}

func (s *BrowserSearcher) debug(msg string, args ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Debug(msg, args...)
	}
}

func browserOptions(headless bool) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(browserUserAgent),
		chromedp.WindowSize(1920, 1080),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)
	if headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}
	return opts
}

func injectCookies(ctx context.Context, cookies []*network.Cookie) error {
	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			err := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly).
				WithSameSite(c.SameSite).
				Do(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	}))
}

// searchURL builds the live-tab query for posts linking to a paper.
func searchURL(base, paperID string) string {
	q := url.Values{}
	q.Set("q", "url:arxiv.org/abs/"+paperID)
	q.Set("f", "live")
	q.Set("src", "typed_query")
	return base + "?" + q.Encode()
}

// rawPost is the shape extractJS returns for each visible post.
type rawPost struct {
	ID           string `json:"id"`
	AuthorHandle string `json:"authorHandle"`
	AuthorName   string `json:"authorName"`
	Content      string `json:"content"`
	Timestamp    string `json:"timestamp"`
	Likes        string `json:"likes"`
	Retweets     string `json:"retweets"`
	URL          string `json:"url"`
}

func (p rawPost) toRecord() domain.EngagementRecord {
	rec := domain.EngagementRecord{
		AuthorName:   strings.TrimSpace(p.AuthorName),
		AuthorHandle: strings.TrimPrefix(strings.TrimSpace(p.AuthorHandle), "@"),
		Link:         p.URL,
		RepostCount:  parseMetric(p.Retweets),
		LikeCount:    parseMetric(p.Likes),
		Text:         p.Content,
	}
	if p.Timestamp != "" {
		if ts, err := dateparse.ParseIn(p.Timestamp, time.UTC); err == nil {
			rec.CreatedAt = ts.UTC()
		}
	}
	return rec
}

// parseMetric converts abbreviated counts like "1.2K", "5.7M" or "1,234" to
// integers; anything unreadable counts as zero.
func parseMetric(s string) int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}

	multiplier := 1.0
	switch strings.ToUpper(s[len(s)-1:]) {
	case "K":
		multiplier = 1_000
		s = s[:len(s)-1]
	case "M":
		multiplier = 1_000_000
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil || value < 0 {
		return 0
	}
	return int(value*multiplier + 0.5)
}

const extractJS = `
(function() {
	const results = [];
	document.querySelectorAll('article[data-testid="tweet"]').forEach(el => {
		try {
			const statusLink = el.querySelector('a[href*="/status/"]');
			const id = statusLink?.href?.match(/status\/(\d+)/)?.[1];
			if (!id) return;

			const userNameEl = el.querySelector('[data-testid="User-Name"]');
			let authorHandle = '';
			let authorName = '';
			if (userNameEl) {
				const handleLink = userNameEl.querySelector('a[href^="/"]');
				if (handleLink) {
					authorHandle = handleLink.getAttribute('href')?.replace('/', '') || '';
				}
				authorName = userNameEl.querySelector('span')?.textContent || '';
			}

			const metric = (testId) => {
				const m = el.querySelector('[data-testid="' + testId + '"]');
				if (!m) return '0';
				const label = m.getAttribute('aria-label');
				if (label) {
					const match = label.match(/^([\d,.]+[KkMm]?)/);
					return match ? match[1] : '0';
				}
				return m.textContent?.trim() || '0';
			};

			results.push({
				id,
				authorHandle,
				authorName,
				content: el.querySelector('[data-testid="tweetText"]')?.textContent || '',
				timestamp: el.querySelector('time')?.getAttribute('datetime') || '',
				likes: metric('like'),
				retweets: metric('retweet'),
				url: statusLink?.href || ''
			});
		} catch (e) {}
	});
	return results;
})()
`
