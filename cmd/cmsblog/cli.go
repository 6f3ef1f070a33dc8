package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/eringen/cmsblog"
	"github.com/eringen/cmsblog/cms"
	"github.com/eringen/cmsblog/cms/prismic"
	"github.com/eringen/cmsblog/cms/sqlite"
)

// CLI holds the global flags shared by every command.
type CLI struct {
	Verbose bool             `short:"v" help:"Enable verbose logging" env:"CMSBLOG_VERBOSE"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Source      string        `enum:"prismic,sqlite" default:"prismic" help:"Content source (prismic or sqlite)" env:"CMSBLOG_SOURCE"`
	Endpoint    string        `help:"Prismic API endpoint, e.g. https://repo.cdn.prismic.io/api/v2" env:"CMSBLOG_PRISMIC_ENDPOINT"`
	AccessToken string        `name:"access-token" help:"Prismic access token" env:"CMSBLOG_PRISMIC_TOKEN"`
	RefTTL      time.Duration `name:"ref-ttl" default:"5s" help:"How long the Prismic master ref is reused; 0 disables reuse" env:"CMSBLOG_PRISMIC_REF_TTL"`
	Database    string        `name:"db" default:"data/content.db" help:"SQLite content database" env:"CMSBLOG_DB"`

	Site SiteFlags `embed:"" prefix:"site-"`

	Serve ServeCmd `cmd:"" default:"1" help:"Serve the blog over HTTP"`
	Build BuildCmd `cmd:"" help:"Render the published site to static files"`
	Paths PathsCmd `cmd:"" help:"Print the post routes to pre-generate as JSON"`
	Seed  SeedCmd  `cmd:"" help:"Load a YAML, JSON or TOML fixture into the SQLite source"`
}

// SiteFlags configure what the site shows.
type SiteFlags struct {
	Name        string `default:"Blog" help:"Site name" env:"CMSBLOG_SITE_NAME"`
	URL         string `default:"http://localhost:3000" help:"Canonical site URL" env:"CMSBLOG_SITE_URL"`
	Description string `help:"Site description" env:"CMSBLOG_SITE_DESCRIPTION"`
	Author      string `help:"Default author" env:"CMSBLOG_SITE_AUTHOR"`
	Locale      string `default:"pt-BR" help:"Locale for dates and labels" env:"CMSBLOG_SITE_LOCALE"`
	TimeZone    string `name:"timezone" default:"UTC" help:"Time zone dates are shown in" env:"CMSBLOG_SITE_TIMEZONE"`
	PostType    string `name:"post-type" default:"posts" help:"CMS document type of posts" env:"CMSBLOG_SITE_POST_TYPE"`
}

// AfterApply runs after flag parsing; set up logging once.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func (c *CLI) siteConfig() cmsblog.SiteConfig {
	return cmsblog.SiteConfig{
		Name:        c.Site.Name,
		URL:         c.Site.URL,
		Description: c.Site.Description,
		Author:      c.Site.Author,
		Locale:      c.Site.Locale,
		TimeZone:    c.Site.TimeZone,
		PostType:    c.Site.PostType,
	}
}

// openSource connects to the configured content source. The returned
// closer releases it.
func (c *CLI) openSource() (cms.Client, io.Closer, error) {
	switch c.Source {
	case "sqlite":
		src, err := sqlite.NewSource(c.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", c.Database, err)
		}
		slog.Debug("using sqlite source", "path", c.Database)
		return src, src, nil
	default:
		if c.Endpoint == "" {
			return nil, nil, errors.New("--endpoint (CMSBLOG_PRISMIC_ENDPOINT) is required for the prismic source")
		}
		slog.Debug("using prismic source", "endpoint", c.Endpoint)
		return prismic.NewClient(c.Endpoint, c.AccessToken, prismic.WithMasterRefTTL(c.RefTTL)), nopCloser{}, nil
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
