package web

import "embed"

// TemplatesFS embeds the page templates; each page is rendered inside
// layout.html.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds the stylesheet.
//
//go:embed static/*
var StaticFS embed.FS
