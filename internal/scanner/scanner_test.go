package scanner

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ports"
)

// fakeFetcher serves each category's rows in pages of the requested size,
// grouped under day headers, the way the listing site does.
type fakeFetcher struct {
	days     map[string][]fakeDay
	requests []ports.PageRequest
	failAt   map[string]int
	broken   map[string]bool

	// titles listed here come back without a subjects line
	noSubjects map[string]bool
}

type fakeDay struct {
	header string
	titles []string
}

func (f *fakeFetcher) FetchPage(_ context.Context, req ports.PageRequest) (domain.ListingPage, error) {
	f.requests = append(f.requests, req)
	if off, ok := f.failAt[req.Category]; ok && off == req.Offset {
		delete(f.failAt, req.Category)
		return domain.ListingPage{}, errors.New("connection reset")
	}
	if f.broken[req.Category] {
		return domain.ListingPage{}, &domain.MalformedPageError{Category: req.Category, Offset: req.Offset, Reason: "2 headers, 1 blocks"}
	}

	type flat struct{ header, title string }
	var rows []flat
	for _, d := range f.days[req.Category] {
		for _, title := range d.titles {
			rows = append(rows, flat{d.header, title})
		}
	}

	page := domain.ListingPage{Category: req.Category, Offset: req.Offset}
	if req.Offset >= len(rows) {
		return page, nil
	}
	end := req.Offset + req.Size
	if end > len(rows) {
		end = len(rows)
	}
	for _, r := range rows[req.Offset:end] {
		n := len(page.Blocks)
		if n == 0 || page.Blocks[n-1].Header != r.header {
			page.Blocks = append(page.Blocks, domain.ListingBlock{Header: r.header})
			n++
		}
		row := domain.ListingEntry{
			Title:    r.title,
			Links:    map[string]string{domain.LinkAbstract: "https://arxiv.org/abs/" + r.title},
			Subjects: []string{"Machine Learning (cs.LG)"},
		}
		if f.noSubjects[r.title] {
			row.Subjects = nil
		}
		page.Blocks[n-1].Rows = append(page.Blocks[n-1].Rows, row)
	}
	return page, nil
}

func window(t *testing.T, since, until string) domain.CrawlWindow {
	t.Helper()
	s, err := domain.ParseDay(since)
	require.NoError(t, err)
	u, err := domain.ParseDay(until)
	require.NoError(t, err)
	w, err := domain.NewCrawlWindow(s, u)
	require.NoError(t, err)
	return w
}

func titles(entries []domain.ListingEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Title)
	}
	return out
}

func TestCrawlSkipsNewTakesWindowStopsOld(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{days: map[string][]fakeDay{
		"cs.LG": {
			{"Sun, 10 Mar 2024", []string{"Too New"}},
			{"Sat, 9 Mar 2024", []string{"First", "Second"}},
			{"Fri, 8 Mar 2024", []string{"Too Old"}},
		},
	}}
	c := NewCrawler(fetcher, Options{PageSize: 512})

	res, err := c.Crawl(context.Background(), Request{
		Categories: []string{"cs.LG"},
		Window:     window(t, "2024/03/10", "2024/03/08"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"First", "Second"}, titles(res.Entries))
	for _, e := range res.Entries {
		assert.Equal(t, "2024/03/09", e.Date.String())
	}
	assert.Len(t, fetcher.requests, 1, "stop header must end the category without another page")
}

func TestCrawlDedupAcrossCategories(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{days: map[string][]fakeDay{
		"cs.LG":   {{"Sat, 9 Mar 2024", []string{"Exact Match", "Only LG"}}},
		"stat.ML": {{"Sat, 9 Mar 2024", []string{"Only ML", "Exact Match", "Also ML"}}},
	}}
	c := NewCrawler(fetcher, Options{PageSize: 512})

	res, err := c.Crawl(context.Background(), Request{
		Categories: []string{"cs.LG", "stat.ML"},
		Window:     window(t, "2024/03/10", "2024/03/08"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Exact Match", "Only LG", "Only ML", "Also ML"}, titles(res.Entries))
	assert.Len(t, res.Entries, 2+3-1)
	require.Len(t, res.Categories, 2)
	assert.Equal(t, 1, res.Categories[1].Duplicates)
}

func TestCrawlPaginatesWithConsumedOffset(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{days: map[string][]fakeDay{
		"cs": {
			{"Mon, 11 Mar 2024", []string{"n1", "n2", "n3"}},
			{"Sat, 9 Mar 2024", []string{"a", "b", "c", "d"}},
			{"Fri, 8 Mar 2024", []string{"e", "f"}},
			{"Thu, 7 Mar 2024", []string{"old"}},
		},
	}}
	c := NewCrawler(fetcher, Options{PageSize: 2})

	res, err := c.Crawl(context.Background(), Request{
		Categories: []string{"cs"},
		Window:     window(t, "2024/03/10", "2024/03/07"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, titles(res.Entries))

	var offsets []int
	for _, r := range fetcher.requests {
		offsets = append(offsets, r.Offset)
	}
	assert.Equal(t, []int{0, 2, 4, 6, 8}, offsets)
}

func TestCrawlTerminatesOnEmptyPage(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{days: map[string][]fakeDay{
		"cs": {{"Sat, 9 Mar 2024", []string{"a", "b", "c"}}},
		"empty": nil,
	}}
	c := NewCrawler(fetcher, Options{PageSize: 2})

	res, err := c.Crawl(context.Background(), Request{
		Categories: []string{"empty", "cs"},
		Window:     window(t, "2024/03/10", "2024/03/01"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, titles(res.Entries))
	assert.Len(t, fetcher.requests, 1+3)
	assert.Empty(t, res.Incomplete())
}

func TestCrawlPropertyEveryDayInsideWindow(t *testing.T) {
	t.Parallel()

	headers := []string{
		"Wed, 13 Mar 2024", "Tue, 12 Mar 2024", "Mon, 11 Mar 2024", "Fri, 8 Mar 2024",
		"Thu, 7 Mar 2024", "Wed, 6 Mar 2024", "Tue, 5 Mar 2024", "Mon, 4 Mar 2024",
	}
	var days []fakeDay
	for i, h := range headers {
		days = append(days, fakeDay{h, []string{fmt.Sprintf("p%d-a", i), fmt.Sprintf("p%d-b", i), fmt.Sprintf("p%d-c", i)}})
	}

	for _, size := range []int{1, 2, 5, 512} {
		for _, w := range [][2]string{{"2024/03/12", "2024/03/05"}, {"2024/03/09", "2024/03/07"}, {"2024/03/20", "2024/03/01"}, {"2024/03/10", "2024/03/09"}} {
			fetcher := &fakeFetcher{days: map[string][]fakeDay{"cs": days}}
			win := window(t, w[0], w[1])
			res, err := NewCrawler(fetcher, Options{PageSize: size}).Crawl(context.Background(), Request{
				Categories: []string{"cs"},
				Window:     win,
			})
			require.NoError(t, err)
			for _, e := range res.Entries {
				assert.True(t, win.Contains(e.Date), "size %d window %v got %s", size, w, e.Date)
				assert.False(t, e.Date.Before(win.Until))
				assert.True(t, e.Date.Before(win.Since))
			}
			assert.Less(t, len(fetcher.requests), 3*len(headers)+2, "pagination must terminate")
		}
	}
}

func TestCrawlMalformedPageStopsOnlyThatCategory(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		days: map[string][]fakeDay{
			"good": {{"Sat, 9 Mar 2024", []string{"kept"}}},
		},
		broken: map[string]bool{"bad": true},
	}
	c := NewCrawler(fetcher, Options{})

	res, err := c.Crawl(context.Background(), Request{
		Categories: []string{"bad", "good"},
		Window:     window(t, "2024/03/10", "2024/03/08"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"kept"}, titles(res.Entries))
	assert.Equal(t, []string{"bad"}, res.Incomplete())
	assert.ErrorIs(t, res.Categories[0].Err, domain.ErrMalformedPage)
}

func TestCrawlUnparsableHeaderIsMalformed(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{days: map[string][]fakeDay{
		"cs": {{"Replacement submissions", []string{"x"}}},
	}}
	res, err := NewCrawler(fetcher, Options{}).Crawl(context.Background(), Request{
		Categories: []string{"cs"},
		Window:     window(t, "2024/03/10", "2024/03/08"),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
	assert.Equal(t, []string{"cs"}, res.Incomplete())
}

func TestCrawlRowWithoutSubjectsIsMalformed(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		days: map[string][]fakeDay{
			"cs.LG":   {{"Sat, 9 Mar 2024", []string{"Good", "NoSubjects", "After"}}},
			"stat.ML": {{"Sat, 9 Mar 2024", []string{"Other"}}},
		},
		noSubjects: map[string]bool{"NoSubjects": true},
	}
	res, err := NewCrawler(fetcher, Options{}).Crawl(context.Background(), Request{
		Categories: []string{"cs.LG", "stat.ML"},
		Window:     window(t, "2024/03/10", "2024/03/08"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Good", "Other"}, titles(res.Entries))
	assert.Equal(t, []string{"cs.LG"}, res.Incomplete())
	assert.ErrorIs(t, res.Categories[0].Err, domain.ErrMalformedPage)
	for _, e := range res.Entries {
		assert.NotEmpty(t, e.Subjects)
	}
}

func TestCrawlFetchErrorIsResumable(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		days: map[string][]fakeDay{
			"cs.LG":   {{"Sat, 9 Mar 2024", []string{"a", "b", "c"}}},
			"stat.ML": {{"Sat, 9 Mar 2024", []string{"c", "d"}}},
		},
		failAt: map[string]int{"cs.LG": 2},
	}
	c := NewCrawler(fetcher, Options{PageSize: 2})
	seen := NewDeduplicator()
	req := Request{
		Categories: []string{"cs.LG", "stat.ML"},
		Window:     window(t, "2024/03/10", "2024/03/08"),
		Seen:       seen,
	}

	first, err := c.Crawl(context.Background(), req)
	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "cs.LG", fetchErr.Category)
	assert.Equal(t, 0, fetchErr.CategoryIndex)
	assert.Equal(t, 2, fetchErr.Offset)
	assert.Equal(t, []string{"a", "b"}, titles(first.Entries))

	req.Resume = &Resume{CategoryIndex: fetchErr.CategoryIndex, Offset: fetchErr.Offset}
	second, err := c.Crawl(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, titles(second.Entries))
}

func TestCrawlValidatesRequest(t *testing.T) {
	t.Parallel()

	c := NewCrawler(&fakeFetcher{}, Options{})
	_, err := c.Crawl(context.Background(), Request{Window: window(t, "2024/03/10", "2024/03/08")})
	assert.Error(t, err)

	_, err = c.Crawl(context.Background(), Request{Categories: []string{"cs"}})
	assert.Error(t, err)

	_, err = c.Crawl(context.Background(), Request{
		Categories: []string{"cs"},
		Window:     window(t, "2024/03/10", "2024/03/08"),
		Resume:     &Resume{CategoryIndex: 3},
	})
	assert.Error(t, err)
}

func TestCrawlHonorsPageCap(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{days: map[string][]fakeDay{
		"cs": {{"Sat, 9 Mar 2024", []string{"a", "b", "c", "d", "e"}}},
	}}
	res, err := NewCrawler(fetcher, Options{PageSize: 1, MaxPages: 2}).Crawl(context.Background(), Request{
		Categories: []string{"cs"},
		Window:     window(t, "2024/03/10", "2024/03/08"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, titles(res.Entries))
}
