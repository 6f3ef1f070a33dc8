package cmsblog

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eringen/cmsblog/cms"
)

// SiteConfig holds all configuration for a cmsblog site.
type SiteConfig struct {
	Name        string // Site name (default "Blog")
	URL         string // Canonical URL (default "http://localhost:3000")
	Description string // Site description for RSS and meta tags
	Author      string // Author name for JSON-LD

	Addr     string // Listen address (default ":3000")
	PostType string // CMS document type of posts (default "posts")
	Locale   string // BCP 47 tag used for dates and labels (default "pt-BR")
	TimeZone string // IANA zone used to display dates (default "UTC")

	SessionSecret string // Required: preview session encryption secret
	CookieSecure  bool   // Set true for HTTPS

	// RevalidateInterval is advertised to shared caches as s-maxage on
	// published pages (default 30min).
	RevalidateInterval time.Duration

	// PreviewAttempts bounds failed preview token checks per IP within
	// PreviewWindow (defaults 10 per minute).
	PreviewAttempts int
	PreviewWindow   time.Duration
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Blog"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.PostType == "" {
		c.PostType = "posts"
	}
	if c.Locale == "" {
		c.Locale = "pt-BR"
	}
	if c.TimeZone == "" {
		c.TimeZone = "UTC"
	}
	if c.RevalidateInterval == 0 {
		c.RevalidateInterval = 30 * time.Minute
	}
	if c.PreviewAttempts == 0 {
		c.PreviewAttempts = 10
	}
	if c.PreviewWindow == 0 {
		c.PreviewWindow = time.Minute
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithRegistry sets the Prometheus registry metrics are registered on.
// By default each App gets its own registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(a *App) {
		a.registry = reg
	}
}

// WithCMS sets the content source posts are read from.
func WithCMS(client cms.Client) Option {
	return func(a *App) {
		a.CMS = client
	}
}
