package cmsblog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/cmsblog"
	"github.com/eringen/cmsblog/cms"
	"github.com/eringen/cmsblog/cms/cmstest"
	"github.com/eringen/cmsblog/preview"
	"github.com/eringen/cmsblog/views"
)

const previewToken = "https://repo.prismic.io/previews/YGH9bhIAACgAWqC1?websitePreviewId=YF"

func day(n int) time.Time {
	return time.Date(2021, 3, n, 12, 0, 0, 0, time.UTC)
}

func newClient() *cmstest.Client {
	client := &cmstest.Client{}
	client.Add("",
		cmstest.Post("1", "a", "Post A", day(1), "alpha"),
		cmstest.Post("2", "b", "Post B", day(2), "beta"),
		cmstest.Post("3", "c", "Post C", day(3), "gamma"),
	)
	client.Add(previewToken,
		cmstest.Post("1", "a", "Post A", day(1), "alpha"),
		cmstest.Post("2", "b", "Post B (draft)", day(2), "beta draft"),
		cmstest.Post("3", "c", "Post C", day(3), "gamma"),
	)
	return client
}

func newTestApp(t *testing.T, client cms.Client, opts ...cmsblog.Option) *cmsblog.App {
	t.Helper()
	cfg := cmsblog.SiteConfig{
		Name:            "spacetraveling",
		URL:             "https://blog.example.com",
		SessionSecret:   "0123456789abcdef0123456789abcdef",
		PreviewAttempts: 3,
	}
	opts = append([]cmsblog.Option{cmsblog.WithCMS(client), cmsblog.WithStaticDir(t.TempDir())}, opts...)
	app := cmsblog.New(cfg, views.Funcs(), opts...)
	require.NoError(t, app.Setup())
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func serve(app *cmsblog.App, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	app.Echo.ServeHTTP(rec, req)
	return rec
}

func previewRequest(token, documentID string) *http.Request {
	q := url.Values{}
	q.Set("token", token)
	q.Set("documentId", documentID)
	return httptest.NewRequest(http.MethodGet, "/api/preview?"+q.Encode(), nil)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == preview.SessionName {
			return c
		}
	}
	return nil
}

func TestSetupRequiresSecretAndCMS(t *testing.T) {
	app := cmsblog.New(cmsblog.SiteConfig{}, views.Funcs(), cmsblog.WithCMS(newClient()))
	assert.Error(t, app.Setup())

	app = cmsblog.New(cmsblog.SiteConfig{SessionSecret: "secret"}, views.Funcs())
	assert.Error(t, app.Setup())
}

func TestPreviewRedirectsToDocument(t *testing.T) {
	app := newTestApp(t, newClient())

	rec := serve(app, previewRequest(previewToken, "2"))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<meta http-equiv="Refresh" content="0; url=/post/b" />`)
	assert.Contains(t, body, `window.location.href = "/post/b"`)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	cookie := sessionCookie(t, rec)
	require.NotNil(t, cookie, "preview session cookie should be set")

	// The session now serves the draft.
	req := httptest.NewRequest(http.MethodGet, "/post/b", nil)
	req.AddCookie(cookie)
	rec = serve(app, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Post B (draft)")
	assert.Contains(t, rec.Body.String(), `class="preview-bar"`)
	assert.Equal(t, "private, no-store", rec.Header().Get("Cache-Control"))

	// Without the cookie the published version is shown.
	rec = serve(app, httptest.NewRequest(http.MethodGet, "/post/b", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "draft")
	assert.NotContains(t, rec.Body.String(), `class="preview-bar"`)
}

func TestPreviewRejectsInvalidToken(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		documentID string
	}{
		{"unknown ref", "https://repo.prismic.io/previews/expired", "2"},
		{"missing token", "", "2"},
		{"missing document", previewToken, ""},
		{"unknown document", previewToken, "404"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, newClient())
			rec := serve(app, previewRequest(tt.token, tt.documentID))

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			var msg map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
			assert.Equal(t, map[string]string{"message": "Invalid token"}, msg)
			assert.Nil(t, sessionCookie(t, rec), "failed preview must not set a session")
		})
	}
}

func TestPreviewRateLimited(t *testing.T) {
	app := newTestApp(t, newClient())
	for i := 0; i < 3; i++ {
		rec := serve(app, previewRequest("bad", "2"))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := serve(app, previewRequest("bad", "2"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Nil(t, sessionCookie(t, rec))

	// A token that resolves still gets through from the same address.
	rec = serve(app, previewRequest(previewToken, "2"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `window.location.href = "/post/b"`)
	assert.NotNil(t, sessionCookie(t, rec))

	rec = serve(app, previewRequest("bad", "2"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestPreviewWithUndecodableCookie(t *testing.T) {
	app := newTestApp(t, newClient())
	stale := &http.Cookie{Name: preview.SessionName, Value: "not-a-valid-securecookie"}

	req := previewRequest(previewToken, "2")
	req.AddCookie(stale)
	rec := serve(app, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `window.location.href = "/post/b"`)
	cookie := sessionCookie(t, rec)
	require.NotNil(t, cookie, "stale cookie should be replaced")
	assert.NotEqual(t, stale.Value, cookie.Value)

	req = httptest.NewRequest(http.MethodGet, "/post/b", nil)
	req.AddCookie(cookie)
	rec = serve(app, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Post B (draft)")

	req = httptest.NewRequest(http.MethodGet, "/api/exit-preview", nil)
	req.AddCookie(stale)
	rec = serve(app, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	cleared := sessionCookie(t, rec)
	require.NotNil(t, cleared)
	assert.True(t, cleared.MaxAge < 0)

	// Pages render published content when the cookie can't be read.
	req = httptest.NewRequest(http.MethodGet, "/post/b", nil)
	req.AddCookie(stale)
	rec = serve(app, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "draft")
}

func TestPreviewCMSOutage(t *testing.T) {
	client := newClient()
	app := newTestApp(t, client)
	client.Err = cmstest.ErrUnavailable

	rec := serve(app, previewRequest(previewToken, "2"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Nil(t, sessionCookie(t, rec))
}

func TestExitPreview(t *testing.T) {
	app := newTestApp(t, newClient())
	cookie := sessionCookie(t, serve(app, previewRequest(previewToken, "2")))
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodGet, "/api/exit-preview", nil)
	req.AddCookie(cookie)
	rec := serve(app, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	cleared := sessionCookie(t, rec)
	require.NotNil(t, cleared)
	assert.True(t, cleared.MaxAge < 0, "session cookie should be expired")
}

func TestExpiredPreviewFallsBackToPublished(t *testing.T) {
	app := newTestApp(t, newClient())
	cookie := sessionCookie(t, serve(app, previewRequest(previewToken, "2")))
	require.NotNil(t, cookie)

	// Same secret, but the CMS no longer knows the preview ref.
	published := &cmstest.Client{}
	published.Add("", cmstest.Post("2", "b", "Post B", day(2), "beta"))
	other := newTestApp(t, published)

	req := httptest.NewRequest(http.MethodGet, "/post/b", nil)
	req.AddCookie(cookie)
	rec := serve(other, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/post/b", rec.Header().Get("Location"))
	cleared := sessionCookie(t, rec)
	require.NotNil(t, cleared)
	assert.True(t, cleared.MaxAge < 0)
}

func TestPostPage(t *testing.T) {
	app := newTestApp(t, newClient())

	rec := serve(app, httptest.NewRequest(http.MethodGet, "/post/b", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<title>Post B</title>")
	assert.Contains(t, body, `<a class="previous" href="/post/a">`)
	assert.Contains(t, body, `<a class="next" href="/post/c">`)
	assert.Contains(t, body, "1 min")
	assert.Equal(t, "public, s-maxage=1800, stale-while-revalidate", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get(echoRequestIDHeader))
}

const echoRequestIDHeader = "X-Request-Id"

func TestPostNotFound(t *testing.T) {
	app := newTestApp(t, newClient())
	rec := serve(app, httptest.NewRequest(http.MethodGet, "/post/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Página não encontrada")
}

func TestPostCMSOutage(t *testing.T) {
	client := newClient()
	app := newTestApp(t, client)
	client.Err = cmstest.ErrUnavailable

	rec := serve(app, httptest.NewRequest(http.MethodGet, "/post/a", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Algo deu errado")
}

func TestTrailingSlashRedirect(t *testing.T) {
	app := newTestApp(t, newClient())
	rec := serve(app, httptest.NewRequest(http.MethodGet, "/post/a/", nil))
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/post/a", rec.Header().Get("Location"))
}

func TestHomePages(t *testing.T) {
	client := &cmstest.Client{}
	for i := 1; i <= 25; i++ {
		client.Add("", cmstest.Post(string(rune('A'+i)), "post-"+string(rune('a'+i)), "Title", day(1)))
	}
	app := newTestApp(t, client)

	rec := serve(app, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, strings.Count(rec.Body.String(), `class="post-summary"`))
	assert.Contains(t, rec.Body.String(), `href="/page/2"`)

	rec = serve(app, httptest.NewRequest(http.MethodGet, "/page/2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, strings.Count(rec.Body.String(), `class="post-summary"`))
	assert.NotContains(t, rec.Body.String(), `class="load-more"`)

	for _, path := range []string{"/page/3", "/page/0", "/page/abc"} {
		rec = serve(app, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestSitemapAndFeed(t *testing.T) {
	app := newTestApp(t, newClient())

	rec := serve(app, httptest.NewRequest(http.MethodGet, "/sitemap.xml", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<loc>https://blog.example.com/</loc>")
	for _, slug := range []string{"a", "b", "c"} {
		assert.Contains(t, body, "<loc>https://blog.example.com/post/"+slug+"</loc>")
	}

	rec = serve(app, httptest.NewRequest(http.MethodGet, "/feed.xml", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/rss+xml")
	assert.Contains(t, rec.Body.String(), "<title>Post C</title>")
	assert.NotContains(t, rec.Body.String(), "draft")
}

func TestMetrics(t *testing.T) {
	app := newTestApp(t, newClient())
	serve(app, previewRequest(previewToken, "2"))
	serve(app, previewRequest("bad", "2"))
	serve(app, httptest.NewRequest(http.MethodGet, "/post/a", nil))

	rec := serve(app, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `cmsblog_preview_resolutions_total{result="ok"} 1`)
	assert.Contains(t, body, `cmsblog_preview_resolutions_total{result="invalid"} 1`)
	assert.Contains(t, body, `cmsblog_cms_requests_total{op="get_by_uid",result="ok"} 1`)
	assert.Contains(t, body, `cmsblog_cms_requests_total{op="get_by_id",result="invalid_ref"} 1`)
}

func TestEmbeddedStylesheet(t *testing.T) {
	app := newTestApp(t, newClient())
	rec := serve(app, httptest.NewRequest(http.MethodGet, "/public/styles.css", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".preview-bar")
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	app := cmsblog.New(cmsblog.SiteConfig{URL: "https://blog.example.com"}, views.Funcs(), cmsblog.WithCMS(newClient()))

	res, err := app.Export(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, res.HomePages)
	assert.Equal(t, 3, res.Posts)
	assert.Empty(t, res.Skipped)

	for _, name := range []string{
		"index.html",
		"post/a/index.html",
		"post/b/index.html",
		"post/c/index.html",
		"post/fallback.html",
		"404.html",
		"sitemap.xml",
		"feed.xml",
		"public/styles.css",
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	fallback, err := os.ReadFile(filepath.Join(dir, "post", "fallback.html"))
	require.NoError(t, err)
	assert.Contains(t, string(fallback), "Carregando...")

	post, err := os.ReadFile(filepath.Join(dir, "post", "b", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(post), "Post B")
	assert.NotContains(t, string(post), "draft")
}

func TestExportSkipsUnsafeUIDs(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "dist")
	client := &cmstest.Client{}
	client.Add("",
		cmstest.Post("1", "a", "Post A", day(1), "alpha"),
		cmstest.Post("2", "../../escaped", "Escaped", day(2), "beta"),
		cmstest.Post("3", `..\up`, "Backslash", day(3), "gamma"),
	)
	app := cmsblog.New(cmsblog.SiteConfig{URL: "https://blog.example.com"}, views.Funcs(), cmsblog.WithCMS(client))

	res, err := app.Export(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Posts)
	assert.ElementsMatch(t, []string{"../../escaped", `..\up`}, res.Skipped)

	_, err = os.Stat(filepath.Join(dir, "post", "a", "index.html"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "escaped", "index.html"))
	assert.True(t, os.IsNotExist(err), "export wrote outside its directory")
	_, err = os.Stat(filepath.Join(dir, "escaped"))
	assert.True(t, os.IsNotExist(err))
}
