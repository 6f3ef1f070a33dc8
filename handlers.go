package cmsblog

import (
	"encoding/json"
	"errors"
	"html"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/eringen/cmsblog/cms"
	"github.com/eringen/cmsblog/preview"
)

func (a *App) handleHome(c echo.Context) error {
	page := 1
	if raw := c.Param("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.Config))
		}
		page = n
	}
	ref := preview.FromContext(c.Request().Context())
	home, err := a.Builder.ListPosts(c.Request().Context(), page, ref)
	if err != nil {
		if ref != "" && errors.Is(err, cms.ErrInvalidRef) {
			return leavePreview(c)
		}
		return err
	}
	if page > 1 && len(home.Posts) == 0 {
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.Config))
	}
	return Render(c, a.Views.Home(home, a.Config))
}

func (a *App) handlePost(c echo.Context) error {
	slug := c.Param("slug")
	ref := preview.FromContext(c.Request().Context())
	page, err := a.Builder.BuildPost(c.Request().Context(), slug, ref)
	if err != nil {
		switch {
		case errors.Is(err, ErrPostNotFound):
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.Config))
		case ref != "" && errors.Is(err, cms.ErrInvalidRef):
			return leavePreview(c)
		}
		return err
	}
	return Render(c, a.Views.Post(page, a.Config))
}

// leavePreview drops a preview session whose ref the CMS no longer
// accepts and reloads the page with published content.
func leavePreview(c echo.Context) error {
	c.Logger().Warnf("preview ref rejected, leaving preview")
	if err := preview.Exit(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, c.Request().URL.RequestURI())
}

type messageResponse struct {
	Message string `json:"message"`
}

// handlePreview enters preview mode. The per-IP limiter only counts and
// blocks failed attempts; a token that resolves is let through even when
// its IP is over the limit.
func (a *App) handlePreview(c echo.Context) error {
	ip := c.RealIP()
	token := c.QueryParam("token")
	target, err := cms.ResolvePreview(c.Request().Context(), a.Builder.CMS, token, c.QueryParam("documentId"), a.Builder.LinkResolver())
	if err != nil {
		a.metrics.previews.WithLabelValues("error").Inc()
		return err
	}
	if target == "" {
		if !a.previewLimiter.Check(ip) {
			a.metrics.previews.WithLabelValues("limited").Inc()
			return c.JSON(http.StatusTooManyRequests, messageResponse{Message: "Too many attempts"})
		}
		a.previewLimiter.Record(ip)
		a.metrics.previews.WithLabelValues("invalid").Inc()
		return c.JSON(http.StatusUnauthorized, messageResponse{Message: "Invalid token"})
	}

	if err := preview.Enter(c, cms.Ref(token)); err != nil {
		return err
	}
	a.metrics.previews.WithLabelValues("ok").Inc()
	return c.HTML(http.StatusOK, redirectPage(target))
}

// redirectPage sends the browser to target with both a meta refresh and a
// script, each with target escaped for its context.
func redirectPage(target string) string {
	js, err := json.Marshal(target)
	if err != nil {
		js = []byte(`"/"`)
	}
	return `<!DOCTYPE html><html><head><meta http-equiv="Refresh" content="0; url=` +
		html.EscapeString(target) + `" /><script>window.location.href = ` + string(js) +
		`</script></head><body></body></html>`
}

func handleExitPreview(c echo.Context) error {
	if err := preview.Exit(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (a *App) handleSitemap(c echo.Context) error {
	paths, err := a.Builder.EnumeratePaths(c.Request().Context())
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	return writeSitemap(c.Response(), a.Config.URL, paths)
}

func (a *App) handleFeed(c echo.Context) error {
	home, err := a.Builder.ListPosts(c.Request().Context(), 1, "")
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	return writeRSS(c.Response(), a.Config, home.Posts)
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(a.staticDir + "/favicon.svg")
}

func (a *App) handleRobots(c echo.Context) error {
	return c.File(a.staticDir + "/robots.txt")
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.Config))
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
		_ = RenderStatus(c, code, a.Views.ServerError(a.Config))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
