package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ArxivDigest/internal/app"
	"ArxivDigest/internal/config"
	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	subcommand, args := os.Args[1], os.Args[2:]
	if subcommand == "help" || subcommand == "--help" || subcommand == "-h" {
		printUsage()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch subcommand {
	case "crawl":
		err = handleCrawl(ctx, args)
	case "enrich":
		err = handleEnrich(ctx, args)
	case "render":
		err = handleRender(ctx, args)
	case "run":
		err = handleRun(ctx, args)
	case "schedule":
		err = handleSchedule(ctx, args)
	case "login":
		err = handleLogin(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// common holds the flags every subcommand accepts.
type common struct {
	configPath *string
	logLevel   *string
}

func newFlagSet(name string) (*flag.FlagSet, common) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return fs, common{
		configPath: fs.String("config", "", "Path to YAML config (ARXIV_DIGEST_CONFIG)"),
		logLevel:   fs.String("log-level", "", "Override logging level (ARXIV_DIGEST_LOG_LEVEL)"),
	}
}

func windowFlags(fs *flag.FlagSet) (since, until *string, from, to *int) {
	since = fs.String("since", "", "Newer exclusive bound, YYYY/MM/DD")
	until = fs.String("until", "", "Older exclusive bound, YYYY/MM/DD")
	from = fs.Int("from-days-ago", -1, "First day to include, counted back from today")
	to = fs.Int("to-days-ago", -1, "Last day to include, counted back from today")
	return since, until, from, to
}

func build(c common) (*app.Application, *slog.Logger, error) {
	cfg := config.Load(*c.configPath)
	if *c.logLevel != "" {
		cfg.Logging.Level = *c.logLevel
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	application, err := app.New(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return application, logger, nil
}

// resolveWindow prefers explicit dates, then explicit day offsets, then the
// configured offsets. Offsets count from today in the scheduler's timezone.
func resolveWindow(a *app.Application, now time.Time, since, until string, from, to int) (domain.CrawlWindow, error) {
	if since != "" || until != "" {
		s, err := domain.ParseDay(since)
		if err != nil {
			return domain.CrawlWindow{}, err
		}
		u, err := domain.ParseDay(until)
		if err != nil {
			return domain.CrawlWindow{}, err
		}
		return domain.NewCrawlWindow(s, u)
	}
	if from >= 0 || to >= 0 {
		if from < 0 {
			from = to
		}
		if to < 0 {
			to = 0
		}
		return a.WindowForDays(now, from, to)
	}
	return a.Window(now)
}

func handleCrawl(ctx context.Context, args []string) error {
	fs, c := newFlagSet("crawl")
	since, until, from, to := windowFlags(fs)
	out := fs.String("o", "", "Output run document (defaults to output.artifactPath)")
	fs.Parse(args)

	a, _, err := build(c)
	if err != nil {
		return err
	}
	defer a.Close()

	window, err := resolveWindow(a, time.Now(), *since, *until, *from, *to)
	if err != nil {
		return err
	}
	return a.Crawl(ctx, window, *out)
}

func handleEnrich(ctx context.Context, args []string) error {
	fs, c := newFlagSet("enrich")
	in := fs.String("i", "", "Input run document (defaults to output.artifactPath)")
	out := fs.String("o", "", "Output run document (defaults to the input)")
	fs.Parse(args)

	a, _, err := build(c)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Enrich(ctx, *in, *out)
}

func handleRender(ctx context.Context, args []string) error {
	fs, c := newFlagSet("render")
	in := fs.String("i", "", "Input run document (defaults to output.artifactPath)")
	notify := fs.Bool("notify", false, "Also publish the notification style")
	fs.Parse(args)

	a, logger, err := build(c)
	if err != nil {
		return err
	}
	defer a.Close()

	rendered, err := a.Render(ctx, *in, *notify)
	if err != nil {
		return err
	}
	for _, r := range rendered {
		if r.Path == "" {
			fmt.Print(r.Text)
			continue
		}
		logger.Debug("rendered", "style", r.Style, "path", r.Path)
	}
	return nil
}

func handleRun(ctx context.Context, args []string) error {
	fs, c := newFlagSet("run")
	since, until, from, to := windowFlags(fs)
	fs.Parse(args)

	a, _, err := build(c)
	if err != nil {
		return err
	}
	defer a.Close()

	window, err := resolveWindow(a, time.Now(), *since, *until, *from, *to)
	if err != nil {
		return err
	}
	return a.Run(ctx, window)
}

func handleSchedule(ctx context.Context, args []string) error {
	fs, c := newFlagSet("schedule")
	fs.Parse(args)

	a, _, err := build(c)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Schedule(ctx)
}

func handleLogin(ctx context.Context, args []string) error {
	fs, c := newFlagSet("login")
	fs.Parse(args)

	a, _, err := build(c)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Login(ctx)
}

func printUsage() {
	fmt.Println("arxivdigest - arXiv listing digest builder")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  arxivdigest <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  crawl      Crawl listings into a run document")
	fmt.Println("  enrich     Attach abstracts and social mentions to a run document")
	fmt.Println("  render     Render digests from a run document")
	fmt.Println("  run        Crawl, enrich, render and notify in one go")
	fmt.Println("  schedule   Run the pipeline on the configured cron expression")
	fmt.Println("  login      Sign in to X in a browser window and save the session cookies")
	fmt.Println()
	fmt.Println("Run 'arxivdigest <command> -h' for command flags.")
}
