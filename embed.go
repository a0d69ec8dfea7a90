package wooweb

import "embed"

// TemplateFS contains the embedded HTML templates used for rendering the site. Templates are split into
// layouts, pages, and partial views that are pushed to the browser over SSE.
//
//go:embed templates/*
var TemplateFS embed.FS

// StaticFS contains the embedded static assets (the SSE client script and the stylesheet).
//
//go:embed static/*
var StaticFS embed.FS
