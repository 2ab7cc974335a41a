package scanner

import (
	"strings"
	"sync"
)

// Deduplicator remembers titles emitted during one crawl run. It is safe for
// concurrent use so categories may share it.
type Deduplicator struct {
	mu     sync.Mutex
	titles map[string]struct{}
}

// NewDeduplicator returns an empty title set.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{titles: map[string]struct{}{}}
}

// Seen reports whether title was already registered.
func (d *Deduplicator) Seen(title string) bool {
	key := strings.TrimSpace(title)
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.titles[key]
	return ok
}

// Register records title as emitted.
func (d *Deduplicator) Register(title string) {
	key := strings.TrimSpace(title)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.titles == nil {
		d.titles = map[string]struct{}{}
	}
	d.titles[key] = struct{}{}
}

// Claim registers title and reports true when it was not seen before.
func (d *Deduplicator) Claim(title string) bool {
	key := strings.TrimSpace(title)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.titles == nil {
		d.titles = map[string]struct{}{}
	}
	if _, ok := d.titles[key]; ok {
		return false
	}
	d.titles[key] = struct{}{}
	return true
}

// Len is the number of distinct titles registered.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.titles)
}
