// Package web holds the browser client served at the site root.
package web

import "embed"

// Assets contains index.html, app.js and styles.css.
//
//go:embed index.html app.js styles.css
var Assets embed.FS
