package server

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"taskmanager/internal/apperr"
	"taskmanager/internal/models"
)

// TaskStore is the repository the task endpoints run against.
type TaskStore interface {
	Ready(ctx context.Context) bool
	ListTasks(ctx context.Context) ([]models.Task, error)
	CreateTask(ctx context.Context, in models.NewTask) (models.Task, error)
	GetTask(ctx context.Context, id string) (models.Task, error)
	UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// Options tunes the HTTP surface.
type Options struct {
	// CORSOrigins lists allowed origins; empty or "*" allows any origin.
	CORSOrigins []string
	// StaticDir overrides the embedded client bundle.
	StaticDir string
	// Mode is the gin mode; release when empty.
	Mode string
}

// Server provides HTTP handlers for the task API and the browser client.
type Server struct {
	engine    *gin.Engine
	store     TaskStore
	logger    zerolog.Logger
	staticDir string
}

// New constructs the HTTP server with routes and middleware configured.
func New(store TaskStore, logger zerolog.Logger, opts Options) *Server {
	mode := opts.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	router := gin.New()

	srv := &Server{
		engine:    router,
		store:     store,
		logger:    logger,
		staticDir: opts.StaticDir,
	}

	router.Use(srv.requestLogger())
	router.Use(cors.New(corsConfig(opts.CORSOrigins)))
	router.Use(securityHeaders())
	router.Use(srv.handleErrors)
	router.Use(gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, rec any) {
		abortWithError(c, apperr.WithStatus(http.StatusInternalServerError, "", fmt.Errorf("panic: %v", rec)))
	}))

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API and static handlers together.
func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)

	tasks := s.engine.Group("/api/tasks", s.requireStore)
	{
		tasks.POST("", s.validate(createRules), s.handleCreateTask)
		tasks.GET("", s.handleListTasks)
		tasks.GET("/:id", s.validate(idRules), s.handleGetTask)
		tasks.PUT("/:id", s.validate(updateRules), s.handleUpdateTask)
		tasks.DELETE("/:id", s.validate(idRules), s.handleDeleteTask)
	}

	s.engine.NoRoute(func(c *gin.Context) {
		abortWithError(c, apperr.RouteNotFound())
	})

	s.mountStatic()
}

const readyTimeout = 2 * time.Second

func (s *Server) ready(c *gin.Context) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()
	return s.store.Ready(ctx)
}

// handleHealth reports liveness and the datastore state.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "dbConnected": s.ready(c)})
}

// respondSuccess wraps a payload in the data envelope.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, gin.H{"data": payload})
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, requestIDHeader)
	cfg.ExposeHeaders = []string{requestIDHeader}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
