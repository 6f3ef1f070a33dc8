package cmsblog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

// ExportResult counts what Export wrote.
type ExportResult struct {
	HomePages int
	Posts     int
	Skipped   []string // slugs gone when fetched or unusable as a directory name
}

// Export renders the published site into dir as static files: every home
// page, every enumerated post, a fallback page for posts added later, the
// not-found page, the sitemap, and the feed.
func (a *App) Export(ctx context.Context, dir string) (ExportResult, error) {
	var res ExportResult
	if a.Builder == nil {
		return res, errors.New("cmsblog: a CMS client is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return res, err
	}

	home, err := a.Builder.ListPosts(ctx, 1, "")
	if err != nil {
		return res, err
	}
	feedPosts := home.Posts
	for {
		name := "index.html"
		if home.Page > 1 {
			name = filepath.Join("page", strconv.Itoa(home.Page), "index.html")
		}
		if err := writeComponent(ctx, filepath.Join(dir, name), a.Views.Home(home, a.Config)); err != nil {
			return res, err
		}
		res.HomePages++
		if home.NextPage == 0 {
			break
		}
		if home, err = a.Builder.ListPosts(ctx, home.NextPage, ""); err != nil {
			return res, err
		}
	}

	paths, err := a.Builder.EnumeratePaths(ctx)
	if err != nil {
		return res, err
	}
	for _, p := range paths.Params {
		target, ok := postFile(dir, p.Slug)
		if !ok {
			a.Echo.Logger.Warnf("export: skipping post with unsafe uid %q", p.Slug)
			res.Skipped = append(res.Skipped, p.Slug)
			continue
		}
		page, err := a.Builder.BuildPost(ctx, p.Slug, "")
		if errors.Is(err, ErrPostNotFound) {
			res.Skipped = append(res.Skipped, p.Slug)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("export %s: %w", p.Slug, err)
		}
		if err := writeComponent(ctx, target, a.Views.Post(page, a.Config)); err != nil {
			return res, err
		}
		res.Posts++
	}

	if paths.Fallback {
		if err := writeComponent(ctx, filepath.Join(dir, "post", "fallback.html"), a.Views.Loading(a.Config)); err != nil {
			return res, err
		}
	}
	if err := writeComponent(ctx, filepath.Join(dir, "404.html"), a.Views.NotFound(a.Config)); err != nil {
		return res, err
	}
	css, err := EmbeddedAssets.ReadFile("embedded/styles.css")
	if err != nil {
		return res, err
	}
	if err := writeFile(filepath.Join(dir, "public", "styles.css"), func(w io.Writer) error {
		_, err := w.Write(css)
		return err
	}); err != nil {
		return res, err
	}
	if err := writeFile(filepath.Join(dir, "sitemap.xml"), func(w io.Writer) error {
		return writeSitemap(w, a.Config.URL, paths)
	}); err != nil {
		return res, err
	}
	if err := writeFile(filepath.Join(dir, "feed.xml"), func(w io.Writer) error {
		return writeRSS(w, a.Config, feedPosts)
	}); err != nil {
		return res, err
	}
	return res, nil
}

// postFile returns the index.html path for slug under dir/post. It
// reports false when slug is not a single clean path segment.
func postFile(dir, slug string) (string, bool) {
	if slug == "" || slug == "." || slug == ".." ||
		strings.ContainsAny(slug, `/\`) || strings.Contains(slug, "..") ||
		filepath.Clean(slug) != slug || filepath.IsAbs(slug) || filepath.VolumeName(slug) != "" {
		return "", false
	}
	base := filepath.Join(dir, "post")
	target := filepath.Join(base, slug, "index.html")
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return target, true
}

func writeComponent(ctx context.Context, path string, cmp templ.Component) error {
	return writeFile(path, func(w io.Writer) error {
		return cmp.Render(ctx, w)
	})
}

func writeFile(path string, render func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
