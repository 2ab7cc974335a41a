package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"

	"ArxivDigest/internal/artifact"
	"ArxivDigest/internal/config"
	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/infrastructure/social"
	"ArxivDigest/internal/logging"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	t.Setenv("ARXIV_DIGEST_CONFIG", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_ID", "")
	t.Setenv("ARXIV_DIGEST_COOKIES", "")
	t.Setenv("ARXIV_DIGEST_LOG_LEVEL", "")

	dir := t.TempDir()
	cfg := config.Load("")
	cfg.Output.ArtifactPath = filepath.Join(dir, "papers.json")
	cfg.Output.Documents = []config.DocumentConfig{
		{Style: "priority", Path: filepath.Join(dir, "priority.md")},
		{Style: "blog", Path: filepath.Join(dir, "blog.md")},
	}
	return cfg
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Crawl.PageSize = -1
	_, err := New(cfg, logging.Discard())
	assert.Error(t, err)
}

func TestWindowUsesConfiguredDays(t *testing.T) {
	cfg := testConfig(t)
	cfg.Crawl.FromDaysAgo = 3
	cfg.Crawl.ToDaysAgo = 1
	a, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	w, err := a.Window(time.Date(2024, 3, 12, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2024/03/12", w.Since.String())
	assert.Equal(t, "2024/03/08", w.Until.String())
}

func TestNewRejectsUnknownStyle(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Documents = append(cfg.Output.Documents, config.DocumentConfig{Style: "html", Path: "out.html"})
	_, err := New(cfg, logging.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "known styles: blog, daily, hot, priority, tsv")

	cfg = testConfig(t)
	cfg.Notifications.Telegram = config.TelegramConfig{BotToken: "t", ChatID: "1", Style: "weekly"}
	_, err = New(cfg, logging.Discard())
	assert.ErrorContains(t, err, "weekly")
}

func TestWindowForDaysUsesSchedulerTimezone(t *testing.T) {
	testConfig(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  timezone: Asia/Tokyo\n"), 0o600))
	cfg := config.Load(path)
	cfg.Output.Documents = nil

	a, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	// already the 13th in Tokyo
	now := time.Date(2024, 3, 12, 20, 0, 0, 0, time.UTC)
	w, err := a.WindowForDays(now, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, "2024/03/14", w.Since.String())
	assert.Equal(t, "2024/03/11", w.Until.String())

	_, err = a.WindowForDays(now, 0, 1)
	assert.Error(t, err)
}

func TestNewSkipsSearchWithoutSession(t *testing.T) {
	cfg := testConfig(t)
	cfg.Enrichment.Search.Enabled = true
	cfg.Enrichment.Search.CookiesPath = filepath.Join(t.TempDir(), "cookies.json")

	a, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	assert.Nil(t, a.searcher)
	assert.NotNil(t, a.cookies)
	a.Close()

	expiry := float64(time.Now().Add(24 * time.Hour).Unix())
	require.NoError(t, social.NewCookieStore(cfg.Enrichment.Search.CookiesPath).Save([]*network.Cookie{
		{Name: "auth_token", Value: "a", Domain: ".x.com", Path: "/", Expires: expiry},
		{Name: "ct0", Value: "b", Domain: ".x.com", Path: "/", Expires: expiry},
	}))

	a, err = New(cfg, logging.Discard())
	require.NoError(t, err)
	assert.NotNil(t, a.searcher)
	a.Close()
}

func TestLoginNeedsCookiePath(t *testing.T) {
	cfg := testConfig(t)
	cfg.Enrichment.Search.CookiesPath = ""
	a, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	assert.ErrorContains(t, a.Login(context.Background()), "cookiesPath")
}

func testDocument(t *testing.T) artifact.Document {
	t.Helper()
	since, err := domain.ParseDay("2024/03/10")
	require.NoError(t, err)
	until, err := domain.ParseDay("2024/03/08")
	require.NoError(t, err)
	window, err := domain.NewCrawlWindow(since, until)
	require.NoError(t, err)

	return artifact.Document{
		Meta: artifact.NewMeta(window, []string{"cs"}, nil),
		Papers: []domain.EnrichedPaper{{
			ListingEntry: domain.ListingEntry{
				ID:    "2403.00001",
				Title: "Sparse Attention",
				Links: map[string]string{
					domain.LinkAbstract: "https://arxiv.org/abs/2403.00001",
					domain.LinkPDF:      "https://arxiv.org/pdf/2403.00001",
				},
				Subjects: []string{"Machine Learning (cs.LG)"},
			},
			Engagements: []domain.EngagementRecord{{AuthorHandle: "fan", RepostCount: 40, LikeCount: 20}},
		}},
	}
}

func TestRenderFromSavedDocument(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, artifact.WriteFile(cfg.Output.ArtifactPath, testDocument(t)))

	rendered, err := a.Render(context.Background(), "", false)
	require.NoError(t, err)
	require.Len(t, rendered, 2)

	for _, d := range cfg.Output.Documents {
		raw, err := os.ReadFile(d.Path)
		require.NoError(t, err)
		assert.Contains(t, string(raw), "Sparse Attention", d.Style)
	}
}

func TestTracingExportsPipelineSpans(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tracing = config.TracingConfig{Enabled: true, Output: filepath.Join(t.TempDir(), "traces.jsonl")}
	a, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	require.NoError(t, artifact.WriteFile(cfg.Output.ArtifactPath, testDocument(t)))
	_, err = a.Render(context.Background(), "", false)
	require.NoError(t, err)
	a.Close()

	raw, err := os.ReadFile(cfg.Tracing.Output)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"Name":"pipeline.render"`)
}
