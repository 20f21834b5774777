package views

import "embed"

// Emails holds the transactional email templates.
//
//go:embed emails/*.html
var Emails embed.FS
