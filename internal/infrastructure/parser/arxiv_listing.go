package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ports"
)

const (
	DefaultBaseURL   = "https://arxiv.org"
	DefaultUserAgent = "ArxivDigest/1.0"
)

// ListingFetcher reads arXiv "pastweek" listing pages.
type ListingFetcher struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

var _ ports.PageFetcher = (*ListingFetcher)(nil)

// NewListingFetcher wires an HTTP client; empty baseURL and userAgent fall
// back to the public site.
func NewListingFetcher(client *http.Client, baseURL, userAgent string) *ListingFetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &ListingFetcher{
		client:    client,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		userAgent: userAgent,
	}
}

// FetchPage downloads one page and pairs each day header with its row block.
func (f *ListingFetcher) FetchPage(ctx context.Context, req ports.PageRequest) (domain.ListingPage, error) {
	pageURL, err := buildPageURL(f.categoryURL(req.Category), req.Offset, req.Size)
	if err != nil {
		return domain.ListingPage{}, fmt.Errorf("category %s: %w", req.Category, err)
	}

	doc, err := f.fetchDocument(ctx, pageURL)
	if err != nil {
		return domain.ListingPage{}, fmt.Errorf("category %s: %w", req.Category, err)
	}

	blocks, err := f.extractBlocks(doc)
	if err != nil {
		return domain.ListingPage{}, &domain.MalformedPageError{Category: req.Category, Offset: req.Offset, Reason: err.Error()}
	}

	return domain.ListingPage{Category: req.Category, Offset: req.Offset, Blocks: blocks}, nil
}

func (f *ListingFetcher) categoryURL(category string) string {
	return fmt.Sprintf("%s/list/%s/pastweek", f.baseURL, url.PathEscape(category))
}

func (f *ListingFetcher) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func (f *ListingFetcher) extractBlocks(doc *goquery.Document) ([]domain.ListingBlock, error) {
	headers := doc.Find("h3")
	lists := doc.Find("dl")
	if headers.Length() != lists.Length() {
		return nil, fmt.Errorf("%d day headers but %d row blocks", headers.Length(), lists.Length())
	}

	blocks := make([]domain.ListingBlock, 0, headers.Length())
	var parseErr error
	headers.EachWithBreak(func(i int, h3 *goquery.Selection) bool {
		rows, err := f.extractRows(lists.Eq(i))
		if err != nil {
			parseErr = fmt.Errorf("block %d: %w", i, err)
			return false
		}
		blocks = append(blocks, domain.ListingBlock{
			Header: collapseSpace(h3.Text()),
			Rows:   rows,
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return blocks, nil
}

func (f *ListingFetcher) extractRows(dl *goquery.Selection) ([]domain.ListingEntry, error) {
	dts := dl.ChildrenFiltered("dt")
	dds := dl.ChildrenFiltered("dd")
	if dts.Length() != dds.Length() {
		return nil, fmt.Errorf("%d link rows but %d detail rows", dts.Length(), dds.Length())
	}

	rows := make([]domain.ListingEntry, 0, dts.Length())
	dts.Each(func(i int, dt *goquery.Selection) {
		rows = append(rows, f.parseEntry(dt, dds.Eq(i)))
	})
	return rows, nil
}

func (f *ListingFetcher) parseEntry(dt, dd *goquery.Selection) domain.ListingEntry {
	links := map[string]string{}
	dt.Find("a[title]").Each(func(_ int, a *goquery.Selection) {
		title, _ := a.Attr("title")
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(title) == "" {
			return
		}
		links[strings.TrimSpace(title)] = f.absolute(href)
	})

	entry := domain.ListingEntry{
		ID:       idFromLink(links[domain.LinkAbstract]),
		Title:    fieldText(dd.Find(".list-title").First()),
		Links:    links,
		Comments: fieldText(dd.Find(".list-comments").First()),
	}

	dd.Find(".list-authors a").Each(func(_ int, a *goquery.Selection) {
		if name := collapseSpace(a.Text()); name != "" {
			entry.Authors = append(entry.Authors, name)
		}
	})

	for _, s := range strings.Split(fieldText(dd.Find(".list-subjects").First()), ";") {
		if s = strings.TrimSpace(s); s != "" {
			entry.Subjects = append(entry.Subjects, s)
		}
	}

	return entry
}

func (f *ListingFetcher) absolute(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return f.baseURL + href
}

// fieldText drops the "Title:"-style descriptor label and collapses whitespace.
func fieldText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	clone := sel.Clone()
	clone.Find(".descriptor").Remove()
	return collapseSpace(clone.Text())
}

func idFromLink(link string) string {
	if link == "" {
		return ""
	}
	parsed, err := url.Parse(link)
	if err != nil {
		return ""
	}
	p := strings.TrimSuffix(parsed.Path, "/")
	// old-style identifiers keep their archive prefix, e.g. cs/0112017
	if i := strings.Index(p, "/abs/"); i >= 0 {
		return p[i+len("/abs/"):]
	}
	id := path.Base(p)
	if id == "." || id == "/" {
		return ""
	}
	return id
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid category url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
