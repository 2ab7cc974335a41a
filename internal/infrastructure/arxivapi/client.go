package arxivapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"ArxivDigest/internal/ports"
	"ArxivDigest/pkg/fn"
)

const (
	DefaultAPIURL    = "https://export.arxiv.org/api/query"
	DefaultBatchSize = 100
)

// Client looks up abstracts through the arXiv export Atom API.
type Client struct {
	client    *http.Client
	apiURL    string
	batchSize int
	userAgent string
	logger    *slog.Logger
}

var _ ports.SummaryLookup = (*Client)(nil)

// NewClient wires an HTTP client; zero values fall back to the public API.
func NewClient(client *http.Client, apiURL string, batchSize int, userAgent string, logger *slog.Logger) *Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Client{
		client:    client,
		apiURL:    apiURL,
		batchSize: batchSize,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Summaries returns abstracts keyed by the ids as given. Ids the API does not
// know are left out of the map.
func (c *Client) Summaries(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))

	// answers come back versioned ("2403.00001v2"), map them to what was asked
	wanted := make(map[string][]string, len(ids))
	var unique []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		key := stripVersion(id)
		if _, ok := wanted[key]; !ok {
			unique = append(unique, id)
		}
		wanted[key] = append(wanted[key], id)
	}

	for i, batch := range fn.Chunk(unique, c.batchSize) {
		feed, err := c.query(ctx, batch)
		if err != nil {
			return out, fmt.Errorf("summaries batch %d: %w", i+1, err)
		}
		for _, item := range feed.Items {
			key := stripVersion(entryID(item))
			summary := strings.Join(strings.Fields(item.Description), " ")
			for _, id := range wanted[key] {
				out[id] = summary
			}
		}
		c.debug("summaries batch", "requested", len(batch), "received", len(feed.Items))
	}
	return out, nil
}

func (c *Client) query(ctx context.Context, ids []string) (*gofeed.Feed, error) {
	parsed, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api url %s: %w", c.apiURL, err)
	}
	q := parsed.Query()
	q.Set("id_list", strings.Join(ids, ","))
	q.Set("max_results", strconv.Itoa(len(ids)))
	parsed.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv api returned %s", resp.Status)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

var versionExpr = regexp.MustCompile(`v\d+$`)

func stripVersion(id string) string {
	return versionExpr.ReplaceAllString(id, "")
}

// entryID pulls "2403.00001v1" out of an entry id like
// "http://arxiv.org/abs/2403.00001v1".
func entryID(item *gofeed.Item) string {
	raw := item.GUID
	if raw == "" {
		raw = item.Link
	}
	if i := strings.Index(raw, "/abs/"); i >= 0 {
		return strings.TrimSuffix(raw[i+len("/abs/"):], "/")
	}
	return raw
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
