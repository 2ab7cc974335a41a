package domain

import "fmt"

// CrawlWindow bounds a crawl by calendar day. Since is the newer bound and
// Until the older one; both are exclusive, so a day d is taken when
// Until < d < Since.
type CrawlWindow struct {
	Since Day `json:"since"`
	Until Day `json:"until"`
}

// NewCrawlWindow validates the bounds.
func NewCrawlWindow(since, until Day) (CrawlWindow, error) {
	w := CrawlWindow{Since: since, Until: until}
	if err := w.Validate(); err != nil {
		return CrawlWindow{}, err
	}
	return w, nil
}

// WindowForDays covers the days from today-fromDaysAgo through
// today-toDaysAgo, both included.
func WindowForDays(today Day, fromDaysAgo, toDaysAgo int) (CrawlWindow, error) {
	if fromDaysAgo < toDaysAgo {
		return CrawlWindow{}, fmt.Errorf("fromDaysAgo (%d) must be >= toDaysAgo (%d)", fromDaysAgo, toDaysAgo)
	}
	if toDaysAgo < 0 {
		return CrawlWindow{}, fmt.Errorf("toDaysAgo must not be negative, got %d", toDaysAgo)
	}
	return NewCrawlWindow(today.AddDays(1-toDaysAgo), today.AddDays(-fromDaysAgo-1))
}

// Validate checks since >= until and that both bounds are set.
func (w CrawlWindow) Validate() error {
	if w.Since.IsZero() || w.Until.IsZero() {
		return fmt.Errorf("crawl window needs both since and until")
	}
	if w.Since.Before(w.Until) {
		return fmt.Errorf("crawl window since %s is older than until %s", w.Since, w.Until)
	}
	return nil
}

// TooNew reports whether d is at or past the newer bound.
func (w CrawlWindow) TooNew(d Day) bool {
	return !d.Before(w.Since)
}

// Exhausted reports whether d is at or past the older bound; listing pages
// are newest first, so nothing after such a day can be in the window.
func (w CrawlWindow) Exhausted(d Day) bool {
	return !d.After(w.Until)
}

// Contains reports whether d falls inside the window.
func (w CrawlWindow) Contains(d Day) bool {
	return !w.TooNew(d) && !w.Exhausted(d)
}

func (w CrawlWindow) String() string {
	return fmt.Sprintf("(%s, %s)", w.Until, w.Since)
}
