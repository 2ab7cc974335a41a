package social

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
)

// CookieStore keeps the X session cookies captured from a logged-in browser.
type CookieStore struct {
	path string
}

// StoredCookies is the decoded cookie file.
type StoredCookies struct {
	Cookies    []*network.Cookie
	CapturedAt time.Time
	ExpiresAt  time.Time
}

// cookieFile is the on-disk layout written by Save.
type cookieFile struct {
	Cookies    []fileCookie `json:"cookies"`
	CapturedAt time.Time    `json:"captured_at"`
	ExpiresAt  time.Time    `json:"expires_at"`
}

// fileCookie keeps only the attributes needed to replay a session. SameSite
// is a plain string so exports from browser extensions ("no_restriction",
// "unspecified") decode too.
type fileCookie struct {
	Name           string  `json:"name"`
	Value          string  `json:"value"`
	Domain         string  `json:"domain"`
	Path           string  `json:"path,omitempty"`
	Expires        float64 `json:"expires,omitempty"`
	ExpirationDate float64 `json:"expirationDate,omitempty"`
	HTTPOnly       bool    `json:"httpOnly,omitempty"`
	Secure         bool    `json:"secure,omitempty"`
	SameSite       string  `json:"sameSite,omitempty"`
}

// NewCookieStore creates a cookie store at the given path.
func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path}
}

// Path is where the cookies live.
func (cs *CookieStore) Path() string { return cs.path }

// Save persists cookies; ExpiresAt is the earliest expiry among the session
// cookies.
func (cs *CookieStore) Save(cookies []*network.Cookie) error {
	if err := os.MkdirAll(filepath.Dir(cs.path), 0o700); err != nil {
		return fmt.Errorf("create cookie dir: %w", err)
	}

	file := cookieFile{
		Cookies:    make([]fileCookie, 0, len(cookies)),
		CapturedAt: time.Now().UTC(),
		ExpiresAt:  sessionExpiry(cookies),
	}
	for _, c := range cookies {
		file.Cookies = append(file.Cookies, fromNetwork(c))
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}
	if err := os.WriteFile(cs.path, data, 0o600); err != nil {
		return fmt.Errorf("write cookies: %w", err)
	}
	return nil
}

// Load reads the cookie file. Besides the layout Save writes it accepts a
// bare JSON array as exported by browser cookie extensions.
func (cs *CookieStore) Load() (*StoredCookies, error) {
	data, err := os.ReadFile(cs.path)
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}

	var file cookieFile
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &file.Cookies)
	} else {
		err = json.Unmarshal(data, &file)
	}
	if err != nil {
		return nil, fmt.Errorf("decode cookies %s: %w", cs.path, err)
	}

	stored := &StoredCookies{
		Cookies:    make([]*network.Cookie, 0, len(file.Cookies)),
		CapturedAt: file.CapturedAt,
		ExpiresAt:  file.ExpiresAt,
	}
	for _, fc := range file.Cookies {
		stored.Cookies = append(stored.Cookies, fc.toNetwork())
	}
	if stored.ExpiresAt.IsZero() {
		stored.ExpiresAt = sessionExpiry(stored.Cookies)
	}
	return stored, nil
}

// Valid reports whether both session cookies are present and unexpired at now.
func (cs *CookieStore) Valid(now time.Time) bool {
	stored, err := cs.Load()
	if err != nil {
		return false
	}
	if !stored.ExpiresAt.IsZero() && now.After(stored.ExpiresAt) {
		return false
	}
	var auth, ct0 bool
	for _, c := range stored.Cookies {
		if c.Value == "" {
			continue
		}
		switch c.Name {
		case "auth_token":
			auth = true
		case "ct0":
			ct0 = true
		}
	}
	return auth && ct0
}

// XCookies returns only the cookies scoped to x.com.
func (cs *CookieStore) XCookies() ([]*network.Cookie, error) {
	stored, err := cs.Load()
	if err != nil {
		return nil, err
	}
	var out []*network.Cookie
	for _, c := range stored.Cookies {
		if c.Domain == ".x.com" || c.Domain == "x.com" {
			out = append(out, c)
		}
	}
	return out, nil
}

func isSessionCookie(c *network.Cookie) bool {
	return c.Name == "auth_token" || c.Name == "ct0"
}

func sessionExpiry(cookies []*network.Cookie) time.Time {
	var earliest time.Time
	for _, c := range cookies {
		if !isSessionCookie(c) || c.Expires <= 0 {
			continue
		}
		exp := time.Unix(int64(c.Expires), 0).UTC()
		if earliest.IsZero() || exp.Before(earliest) {
			earliest = exp
		}
	}
	return earliest
}

func fromNetwork(c *network.Cookie) fileCookie {
	fc := fileCookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		HTTPOnly: c.HTTPOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite.String(),
	}
	if !c.Session && c.Expires > 0 {
		fc.Expires = c.Expires
	}
	return fc
}

func (fc fileCookie) toNetwork() *network.Cookie {
	expires := fc.Expires
	if expires <= 0 {
		expires = fc.ExpirationDate
	}
	return &network.Cookie{
		Name:     fc.Name,
		Value:    fc.Value,
		Domain:   fc.Domain,
		Path:     fc.Path,
		Expires:  expires,
		HTTPOnly: fc.HTTPOnly,
		Secure:   fc.Secure,
		Session:  expires <= 0,
		SameSite: normalizeSameSite(fc.SameSite),
	}
}

// normalizeSameSite maps the spellings used by browsers and export tools to
// the protocol values; unknown ones leave the attribute unset.
func normalizeSameSite(v string) network.CookieSameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return network.CookieSameSiteStrict
	case "lax":
		return network.CookieSameSiteLax
	case "none", "no_restriction":
		return network.CookieSameSiteNone
	default:
		return ""
	}
}
