// Package cmsblog is a blog front-end over a headless CMS, built with Go,
// Echo, and templ. Posts, listings, and preview drafts are read from the
// CMS on every request; nothing is stored locally.
//
// Users provide their own templ templates via the ViewFuncs struct, and
// cmsblog handles the handler logic, preview sessions, and middleware.
package cmsblog

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eringen/cmsblog/cms"
)

// ViewFuncs holds the templ components the framework calls when rendering
// pages.
type ViewFuncs struct {
	Home        func(page HomePage, cfg SiteConfig) templ.Component
	Post        func(page PostPage, cfg SiteConfig) templ.Component
	Loading     func(cfg SiteConfig) templ.Component
	NotFound    func(cfg SiteConfig) templ.Component
	ServerError func(cfg SiteConfig) templ.Component
}

// App is the central cmsblog application. It wires together the CMS
// client, page builder, handlers, middleware, and templates.
type App struct {
	Config  SiteConfig
	Echo    *echo.Echo
	CMS     cms.Client
	Builder *Builder
	Views   ViewFuncs

	registry       *prometheus.Registry
	metrics        *metrics
	previewLimiter *PreviewLimiter
	customRoutes   []func(*App)
	staticDir      string
	ready          bool
}

// New creates a new App with the given configuration and view functions.
// The CMS client is supplied with WithCMS.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Views:     views,
		staticDir: "public",
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.registry == nil {
		a.registry = prometheus.NewRegistry()
	}
	a.metrics = newMetrics(a.registry)
	if a.CMS != nil {
		a.Builder = NewBuilder(observedClient{next: a.CMS, m: a.metrics}, cfg.PostType)
	}
	return a
}

// Setup validates the configuration and installs middleware and routes.
// Start calls it; tests may call it to serve requests through a.Echo.
func (a *App) Setup() error {
	if a.ready {
		return nil
	}
	if a.Config.SessionSecret == "" {
		return errors.New("cmsblog: SessionSecret is required")
	}
	if a.Builder == nil {
		return errors.New("cmsblog: a CMS client is required")
	}

	a.previewLimiter = NewPreviewLimiter(a.Config.PreviewAttempts, a.Config.PreviewWindow)

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.ready = true
	return nil
}

// Start sets up the app and serves HTTP until the server is closed.
func (a *App) Start() error {
	if err := a.Setup(); err != nil {
		return err
	}
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("cmsblog: serve: %w", err)
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	// The embedded stylesheet is served ahead of the user's static dir.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	e.GET("/public/styles.css", echo.WrapHandler(http.StripPrefix("/public/", http.FileServer(http.FS(embeddedFS)))))
	e.Static("/public", a.staticDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)

	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/", a.handleHome)
	e.GET("/page/:page", a.handleHome)
	e.GET("/post/:slug", a.handlePost)

	e.GET("/api/preview", a.handlePreview)
	e.GET("/api/exit-preview", handleExitPreview)

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})))
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.previewLimiter != nil {
		a.previewLimiter.Stop()
	}
	return a.Echo.Close()
}
