package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"ArxivDigest/internal/ranking"
	"ArxivDigest/internal/scanner"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "ARXIV_DIGEST_CONFIG"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	logLevelEnv       = "ARXIV_DIGEST_LOG_LEVEL"
	cookiesPathEnv    = "ARXIV_DIGEST_COOKIES"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Tracing       TracingConfig      `yaml:"tracing"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Crawl         CrawlConfig        `yaml:"crawl"`
	Enrichment    EnrichmentConfig   `yaml:"enrichment"`
	Ranking       RankingConfig      `yaml:"ranking"`
	Output        OutputConfig       `yaml:"output"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig picks the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig switches span export on. An empty Output writes to stderr.
type TracingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Output  string `yaml:"output"`
}

// SchedulerConfig defines when the pipeline should run.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// CrawlConfig describes which listings to walk and how politely.
type CrawlConfig struct {
	BaseURL      string        `yaml:"baseUrl"`
	Categories   []string      `yaml:"categories"`
	PageSize     int           `yaml:"pageSize"`
	Delay        time.Duration `yaml:"delay"`
	MaxPages     int           `yaml:"maxPages"`
	Timeout      time.Duration `yaml:"timeout"`
	UserAgent    string        `yaml:"userAgent"`
	FromDaysAgo  int           `yaml:"fromDaysAgo"`
	ToDaysAgo    int           `yaml:"toDaysAgo"`
	FetchRetries int           `yaml:"fetchRetries"`
	RetryDelay   time.Duration `yaml:"retryDelay"`
}

// EnrichmentConfig toggles the abstract lookup and the social search.
type EnrichmentConfig struct {
	Summaries SummaryConfig `yaml:"summaries"`
	Search    SearchConfig  `yaml:"search"`
}

// SummaryConfig points at the arXiv export API.
type SummaryConfig struct {
	Enabled   bool   `yaml:"enabled"`
	APIURL    string `yaml:"apiUrl"`
	BatchSize int    `yaml:"batchSize"`
}

// SearchConfig drives the headless browser search on X.
type SearchConfig struct {
	Enabled     bool          `yaml:"enabled"`
	CookiesPath string        `yaml:"cookiesPath"`
	Headless    bool          `yaml:"headless"`
	Limit       int           `yaml:"limit"`
	Workers     int           `yaml:"workers"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RankingConfig mirrors ranking.Params plus the mention display filter.
type RankingConfig struct {
	FavoriteTags             []string     `yaml:"favoriteTags"`
	UnfavoriteTags           []string     `yaml:"unfavoriteTags"`
	PaperScoreThreshold      int          `yaml:"paperScoreThreshold"`
	EngagementScoreThreshold int          `yaml:"engagementScoreThreshold"`
	SubjectMatch             string       `yaml:"subjectMatch"`
	RequireFavorite          bool         `yaml:"requireFavorite"`
	MinShown                 int          `yaml:"minShown"`
	MaxShown                 int          `yaml:"maxShown"`
	Labels                   LabelsConfig `yaml:"labels"`
}

// LabelsConfig renames tiers; empty values keep the defaults.
type LabelsConfig struct {
	Favorite   string `yaml:"favorite"`
	Other      string `yaml:"other"`
	Unfavorite string `yaml:"unfavorite"`
	Hot        string `yaml:"hot"`
}

// OutputConfig says where the run document and digests go.
type OutputConfig struct {
	ArtifactPath string           `yaml:"artifactPath"`
	Documents    []DocumentConfig `yaml:"documents"`
}

// DocumentConfig is one rendered digest.
type DocumentConfig struct {
	Style  string `yaml:"style"`
	Path   string `yaml:"path"`
	Markup bool   `yaml:"markup"`
	Policy string `yaml:"policy"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	Style    string `yaml:"style"`
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// Load reads YAML configuration (if present) on top of the defaults and
// applies environment overrides. An explicit path wins over the env var.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if err := parseInto(raw, &cfg); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Crawl.Categories) == 0 {
		cfg.Crawl.Categories = defaultConfig().Crawl.Categories
	}

	return cfg
}

// parseInto decodes raw over the values already in cfg, so keys missing from
// the file keep their defaults.
func parseInto(raw []byte, cfg *Config) error {
	next := *cfg
	if err := yaml.Unmarshal(raw, &next); err != nil {
		return err
	}
	*cfg = next
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(cookiesPathEnv); v != "" {
		c.Enrichment.Search.CookiesPath = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

// RankingParams converts the ranking section; the policy is chosen per
// document.
func (c Config) RankingParams() ranking.Params {
	r := c.Ranking
	return ranking.Params{
		FavoriteTags:        r.FavoriteTags,
		UnfavoriteTags:      r.UnfavoriteTags,
		PaperScoreThreshold: r.PaperScoreThreshold,
		SubjectMatch:        ranking.SubjectMatch(r.SubjectMatch),
		RequireFavorite:     r.RequireFavorite,
		Labels: ranking.Labels{
			Favorite:   r.Labels.Favorite,
			Other:      r.Labels.Other,
			Unfavorite: r.Labels.Unfavorite,
			Hot:        r.Labels.Hot,
		},
	}
}

// DisplayFilter builds the mention filter used by the renderers.
func (c Config) DisplayFilter() ranking.DisplayFilter {
	return ranking.DisplayFilter{
		MinShown:  c.Ranking.MinShown,
		MaxShown:  c.Ranking.MaxShown,
		Threshold: c.Ranking.EngagementScoreThreshold,
	}
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error

	if c.Crawl.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("crawl.pageSize must be positive, got %d", c.Crawl.PageSize))
	}
	if c.Crawl.FromDaysAgo < c.Crawl.ToDaysAgo || c.Crawl.ToDaysAgo < 0 {
		errs = append(errs, fmt.Errorf("crawl.fromDaysAgo (%d) must be >= crawl.toDaysAgo (%d) >= 0",
			c.Crawl.FromDaysAgo, c.Crawl.ToDaysAgo))
	}
	if c.Crawl.FetchRetries < 0 {
		errs = append(errs, fmt.Errorf("crawl.fetchRetries must not be negative"))
	}

	params := c.RankingParams()
	params.Policy = ranking.PolicyTagPriority
	if err := params.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ranking: %w", err))
	}
	if c.Ranking.MinShown < 0 || c.Ranking.MaxShown < 0 {
		errs = append(errs, fmt.Errorf("ranking.minShown and ranking.maxShown must not be negative"))
	}
	if c.Ranking.MinShown > c.Ranking.MaxShown {
		errs = append(errs, fmt.Errorf("ranking.minShown (%d) exceeds ranking.maxShown (%d)",
			c.Ranking.MinShown, c.Ranking.MaxShown))
	}

	for i, doc := range c.Output.Documents {
		if doc.Style == "" {
			errs = append(errs, fmt.Errorf("output.documents[%d]: style is required", i))
		}
		switch ranking.Policy(doc.Policy) {
		case "", ranking.PolicyTagPriority, ranking.PolicyScoreThreshold:
		default:
			errs = append(errs, fmt.Errorf("output.documents[%d]: unknown policy %q", i, doc.Policy))
		}
	}

	if c.Enrichment.Search.Enabled && c.Enrichment.Search.CookiesPath == "" {
		errs = append(errs, fmt.Errorf("enrichment.search.cookiesPath is required when search is enabled"))
	}

	return errors.Join(errs...)
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Tracing:   TracingConfig{Output: "result/traces.jsonl"},
		Scheduler: SchedulerConfig{CronExpression: "30 1 * * *", Timezone: defaultTimezone, location: tz},
		Crawl: CrawlConfig{
			BaseURL:      "https://arxiv.org",
			Categories:   []string{"cs", "stat.ML"},
			PageSize:     scanner.DefaultPageSize,
			Delay:        scanner.DefaultDelay,
			Timeout:      30 * time.Second,
			UserAgent:    "ArxivDigest/1.0",
			FetchRetries: 2,
			RetryDelay:   5 * time.Second,
		},
		Enrichment: EnrichmentConfig{
			Summaries: SummaryConfig{Enabled: true, APIURL: "https://export.arxiv.org/api/query", BatchSize: 100},
			Search: SearchConfig{
				Headless: true,
				Limit:    100,
				Workers:  4,
				Timeout:  2 * time.Minute,
			},
		},
		Ranking: RankingConfig{
			FavoriteTags:             []string{"cs.CV", "cs.CL", "cs.LG", "cs.DS", "cs.IR", "cs.NE", "stat.ML"},
			UnfavoriteTags:           []string{"cs.AR", "cs.CR", "cs.IT", "cs.LO", "cs.NI", "cs.PL", "cs.RO", "cs.SE"},
			PaperScoreThreshold:      50,
			EngagementScoreThreshold: 25,
			SubjectMatch:             string(ranking.MatchPrimary),
			MaxShown:                 10,
		},
		Output: OutputConfig{
			ArtifactPath: "result/papers.json",
			Documents: []DocumentConfig{
				{Style: "daily", Path: "result/daily.md", Markup: true},
				{Style: "hot", Path: "result/hot.md"},
			},
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{Style: "hot"},
		},
	}
}
