package cmsblog

import "embed"

// EmbeddedAssets contains static assets shipped with the framework:
// styles.css
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
