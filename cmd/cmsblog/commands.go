package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eringen/cmsblog"
	"github.com/eringen/cmsblog/cms/sqlite"
	"github.com/eringen/cmsblog/views"
)

// ServeCmd serves the blog over HTTP.
type ServeCmd struct {
	Addr          string        `default:":3000" help:"Listen address" env:"CMSBLOG_ADDR"`
	SessionSecret string        `name:"session-secret" required:"" help:"Preview session encryption secret" env:"CMSBLOG_SESSION_SECRET"`
	CookieSecure  bool          `name:"cookie-secure" help:"Mark cookies Secure (HTTPS only)" env:"CMSBLOG_COOKIE_SECURE"`
	Revalidate    time.Duration `default:"30m" help:"s-maxage advertised for published pages" env:"CMSBLOG_REVALIDATE"`
	StaticDir     string        `name:"static-dir" default:"public" help:"Directory of static assets" env:"CMSBLOG_STATIC_DIR"`
}

func (s *ServeCmd) Run(cli *CLI) error {
	client, closer, err := cli.openSource()
	if err != nil {
		return err
	}
	defer closer.Close()

	cfg := cli.siteConfig()
	cfg.Addr = s.Addr
	cfg.SessionSecret = s.SessionSecret
	cfg.CookieSecure = s.CookieSecure
	cfg.RevalidateInterval = s.Revalidate

	app := cmsblog.New(cfg, views.Funcs(), cmsblog.WithCMS(client), cmsblog.WithStaticDir(s.StaticDir))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- app.Start() }()
	slog.Info("serving", "addr", cfg.Addr, "source", cli.Source)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Echo.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return app.Close()
}

// BuildCmd renders the published site to static files.
type BuildCmd struct {
	Output string `short:"o" default:"dist" help:"Output directory" env:"CMSBLOG_OUTPUT"`
}

func (b *BuildCmd) Run(cli *CLI) error {
	client, closer, err := cli.openSource()
	if err != nil {
		return err
	}
	defer closer.Close()

	app := cmsblog.New(cli.siteConfig(), views.Funcs(), cmsblog.WithCMS(client))
	start := time.Now()
	res, err := app.Export(context.Background(), b.Output)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	for _, slug := range res.Skipped {
		slog.Warn("post vanished during build", "slug", slug)
	}
	slog.Info("build complete",
		"output", b.Output,
		"home_pages", res.HomePages,
		"posts", res.Posts,
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// PathsCmd prints the post routes to pre-generate.
type PathsCmd struct{}

func (PathsCmd) Run(cli *CLI) error {
	client, closer, err := cli.openSource()
	if err != nil {
		return err
	}
	defer closer.Close()

	paths, err := cmsblog.NewBuilder(client, cli.Site.PostType).EnumeratePaths(context.Background())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(paths)
}

// SeedCmd loads a fixture into the SQLite source.
type SeedCmd struct {
	Fixture string `arg:"" type:"existingfile" help:"YAML, JSON or TOML fixture file"`
}

func (s *SeedCmd) Run(cli *CLI) error {
	src, err := sqlite.NewSource(cli.Database)
	if err != nil {
		return fmt.Errorf("open %s: %w", cli.Database, err)
	}
	defer src.Close()

	n, err := src.ImportFile(context.Background(), s.Fixture)
	if err != nil {
		return err
	}
	slog.Info("seeded", "documents", n, "db", cli.Database)
	return nil
}
