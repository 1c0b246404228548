// Package server exposes the research pipeline over HTTP and WebSocket.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/prodscout/internal/service"
)

// Server wraps the pipeline with its HTTP routes.
type Server struct {
	pipeline *service.Pipeline
	engine   *gin.Engine
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New creates a server for p. Routes are registered immediately.
func New(p *service.Pipeline, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), RequestLogger(logger))

	s := &Server{
		pipeline: p,
		engine:   engine,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.GET("/stats", s.stats)
	api.GET("/events", s.events)

	api.POST("/discover", s.discover)
	api.POST("/identify", s.identify)

	api.GET("/knowledge", s.listKnowledge)
	api.GET("/knowledge/:id", s.getRecord)

	batches := api.Group("/batches")
	batches.POST("", s.launch)
	batches.GET("", s.listBatches)
	batches.GET("/:id", s.getBatch)
	batches.DELETE("/:id", s.dismiss)
	batches.GET("/:id/review", s.review)
	batches.POST("/:id/review/toggle", s.toggle)
	batches.POST("/:id/commit", s.commit)
	batches.POST("/:id/export", s.export)
}
