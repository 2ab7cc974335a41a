package arxivapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const atomEntry = `<entry>
    <id>http://arxiv.org/abs/%sv2</id>
    <title>Paper %s</title>
    <summary>  Abstract of
  %s.  </summary>
  </entry>`

func atomFeed(ids ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>ArXiv Query</title>
  <id>http://arxiv.org/api/query</id>
  `)
	for _, id := range ids {
		fmt.Fprintf(&b, atomEntry, id, id, id)
	}
	b.WriteString(`</feed>`)
	return b.String()
}

func TestSummariesBatchesAndMatchesVersions(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		batches []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		list := r.URL.Query().Get("id_list")
		mu.Lock()
		batches = append(batches, list)
		mu.Unlock()

		var known []string
		for _, id := range strings.Split(list, ",") {
			if id != "9999.99999" {
				known = append(known, strings.TrimSuffix(id, "v1"))
			}
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(atomFeed(known...)))
	}))
	defer server.Close()

	c := NewClient(server.Client(), server.URL, 2, "digest-test", nil)
	got, err := c.Summaries(context.Background(), []string{"2403.00001", "2403.00002v1", "9999.99999", "2403.00001", " "})
	require.NoError(t, err)

	assert.Equal(t, []string{"2403.00001,2403.00002v1", "9999.99999"}, batches)
	assert.Equal(t, map[string]string{
		"2403.00001":   "Abstract of 2403.00001.",
		"2403.00002v1": "Abstract of 2403.00002.",
	}, got)
}

func TestSummariesHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewClient(server.Client(), server.URL, 0, "", nil).Summaries(context.Background(), []string{"2403.00001"})
	assert.Error(t, err)
}

func TestSummariesNoIDsSkipsRequest(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	}))
	defer server.Close()

	got, err := NewClient(server.Client(), server.URL, 0, "", nil).Summaries(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStripVersion(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2403.00001", stripVersion("2403.00001v12"))
	assert.Equal(t, "cs/0112017", stripVersion("cs/0112017v1"))
	assert.Equal(t, "2403.00001", stripVersion("2403.00001"))
}
