// Package templates embeds the HTML page templates served by package web.
package templates

import "embed"

//go:embed *.html pages/*.html
var FS embed.FS
