// Package web holds the embedded upload page served at the service root.
package web

import "embed"

//go:embed index.html
var Content embed.FS
