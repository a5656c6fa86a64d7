// Package browser manages the Chrome session typewatch attaches to: launch
// or connect via Rod, open the watched page with stealth applied, fetch
// pierced document snapshots, and bridge the injected page agent back to Go
// through a Runtime binding.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Config configures the browser session.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via the Rod launcher.
	RemoteURL string

	// Headful runs a visible browser window instead of headless.
	Headful bool

	// ResourceBlocking lists resource types to block (images, fonts, media,
	// stylesheets). Blocking heavy resources keeps tick latency low.
	ResourceBlocking []string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Session is one attached page: a browser handle plus the tab being watched.
type Session struct {
	Browser *rod.Browser
	Page    *rod.Page
	PageURL string
	PageID  string

	lnch   *launcher.Launcher
	logger *slog.Logger
}

// Open launches (or connects to) Chrome, creates a stealth tab, and
// navigates to the page.
func Open(ctx context.Context, cfg Config, pageURL, pageID string) (*Session, error) {
	cfg.defaults()

	var wsURL string
	var lnch *launcher.Launcher

	if cfg.RemoteURL != "" {
		wsURL = cfg.RemoteURL
		cfg.Logger.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Headless(!cfg.Headful)
		l = l.Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		lnch = l
		cfg.Logger.Info("browser: launched local chrome", "headful", cfg.Headful)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	if len(cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(page, cfg.ResourceBlocking); err != nil {
			cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	return &Session{
		Browser: b,
		Page:    page,
		PageURL: pageURL,
		PageID:  pageID,
		lnch:    lnch,
		logger:  cfg.Logger,
	}, nil
}

// Host returns the page's origin host, used for profile resolution.
func (s *Session) Host() string {
	u, err := url.Parse(s.PageURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Document fetches a pierced snapshot of the full document tree, including
// open shadow roots and iframe documents. This is the read the whole tick
// pipeline works from.
func (s *Session) Document(ctx context.Context) (*proto.DOMNode, error) {
	depth := -1
	doc, err := proto.DOMGetDocument{Depth: &depth, Pierce: true}.Call(s.Page.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("browser: get document: %w", err)
	}
	return doc.Root, nil
}

// Close shuts down the tab, browser connection, and launched Chrome.
func (s *Session) Close() {
	if s.Page != nil {
		s.Page.Close()
	}
	if s.Browser != nil {
		s.Browser.Close()
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
	}
}
