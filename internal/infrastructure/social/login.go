package social

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

const (
	DefaultLoginURL     = "https://x.com/login"
	DefaultLoginTimeout = 5 * time.Minute

	loginPollInterval = 2 * time.Second
)

var homeURLs = map[string]bool{
	"https://x.com/home":       true,
	"https://twitter.com/home": true,
}

// ErrLoginTimeout is returned when nobody finishes the login in time.
var ErrLoginTimeout = errors.New("login timeout exceeded")

// LoginOptions tunes the interactive login.
type LoginOptions struct {
	LoginURL string
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Login opens a visible browser on the X login page, waits until the user
// lands on the home timeline with an auth_token cookie, and saves the
// browser's cookies to store.
func Login(ctx context.Context, store *CookieStore, opts LoginOptions) error {
	if opts.LoginURL == "" {
		opts.LoginURL = DefaultLoginURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultLoginTimeout
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false),
		chromedp.Flag("disable-gpu", false),
		chromedp.Flag("start-maximized", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	if err := chromedp.Run(browserCtx, chromedp.Navigate(opts.LoginURL)); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	if opts.Logger != nil {
		opts.Logger.Info("waiting for login in the browser window", "timeout", opts.Timeout)
	}

	cookies, err := waitForLogin(browserCtx, opts.Timeout)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := store.Save(cookies); err != nil {
		return fmt.Errorf("save cookies: %w", err)
	}
	if opts.Logger != nil {
		opts.Logger.Info("session saved", "path", store.Path(), "cookies", len(cookies))
	}
	return nil
}

func waitForLogin(ctx context.Context, timeout time.Duration) ([]*network.Cookie, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(loginPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-deadline.C:
			return nil, ErrLoginTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			var location string
			if err := chromedp.Run(ctx, chromedp.Location(&location)); err != nil {
				continue
			}
			if !homeURLs[location] {
				continue
			}
			cookies, err := browserCookies(ctx)
			if err != nil {
				continue
			}
			if hasAuthToken(cookies) {
				return cookies, nil
			}
		}
	}
}

func browserCookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	return cookies, err
}

func hasAuthToken(cookies []*network.Cookie) bool {
	for _, c := range cookies {
		if c.Name == "auth_token" && c.Value != "" {
			return true
		}
	}
	return false
}
