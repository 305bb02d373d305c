package spacetraveling

import "embed"

// EmbeddedAssets contains the static assets shipped with the site:
// spacetraveling.js and style.css
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
