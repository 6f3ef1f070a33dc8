package cmsblog

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/eringen/cmsblog/preview"
)

func (a *App) setupMiddleware() {
	e := a.Echo

	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)

	e.HTTPErrorHandler = a.httpErrorHandler

	e.Pre(middleware.NonWWWRedirect())
	e.Pre(middleware.RemoveTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		RedirectCode: http.StatusMovedPermanently,
	}))

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			c.Logger().Infof("%s %s -> %d (%s) id=%s", v.Method, v.URI, v.Status, v.Latency, v.RequestID)
			return nil
		},
	}))

	e.Use(middleware.Recover())

	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "cmsblog",
		Registerer: a.registry,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Request().URL.Path, "/public/")
		},
	}))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' https: data:; font-src 'self'; frame-src https:",
		HSTSMaxAge:            31536000,
		HSTSExcludeSubdomains: false,
	}))

	e.Use(session.Middleware(a.newSessionStore()))
	e.Use(preview.State())

	e.Use(a.cacheControlMiddleware)
}

// cacheControlMiddleware sets caching hints for a CDN in front of the
// site. Preview responses and the API are never cached.
func (a *App) cacheControlMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	published := fmt.Sprintf("public, s-maxage=%d, stale-while-revalidate", int(a.Config.RevalidateInterval.Seconds()))
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		h := c.Response().Header()
		switch {
		case strings.HasPrefix(path, "/api/") || path == "/metrics":
			h.Set("Cache-Control", "no-store")
		case preview.FromContext(c.Request().Context()) != "":
			h.Set("Cache-Control", "private, no-store")
		case strings.HasPrefix(path, "/public/"):
			h.Set("Cache-Control", "public, max-age=31536000, immutable")
		case path == "/sitemap.xml" || path == "/feed.xml" || path == "/robots.txt":
			h.Set("Cache-Control", "public, max-age=86400")
		default:
			h.Set("Cache-Control", published)
		}
		return next(c)
	}
}

// newSessionStore holds the preview session. The cookie lives for the
// length of a browser session.
func (a *App) newSessionStore() *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(a.Config.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.CookieSecure,
	}
	return store
}
