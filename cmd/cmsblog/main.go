package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: load .env: %v\n", err)
		os.Exit(1)
	}

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("cmsblog"),
		kong.Description("A blog front-end over a headless CMS"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)
	if err := ctx.Run(&cli); err != nil {
		slog.Error("command failed", "command", ctx.Command(), "error", err)
		os.Exit(1)
	}
}
