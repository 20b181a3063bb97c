package server

import (
	"io/fs"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"taskmanager/web"
)

var clientFiles = []string{"app.js", "styles.css", "favicon.ico"}

// mountStatic serves the browser client at the site root.
func (s *Server) mountStatic() {
	assets := s.clientAssets()

	index, err := fs.ReadFile(assets, "index.html")
	if err != nil {
		s.logger.Warn().Err(err).Msg("index.html not found; API only mode")
		return
	}
	s.engine.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", index)
	})

	for _, name := range clientFiles {
		if _, err := fs.Stat(assets, name); err == nil {
			s.engine.StaticFileFS("/"+name, name, http.FS(assets))
		}
	}
}

func (s *Server) clientAssets() fs.FS {
	if s.staticDir == "" {
		return web.Assets
	}

	info, err := os.Stat(s.staticDir)
	if err != nil || !info.IsDir() {
		s.logger.Warn().Str("path", s.staticDir).Err(err).Msg("static directory missing; using embedded client")
		return web.Assets
	}
	return os.DirFS(s.staticDir)
}
