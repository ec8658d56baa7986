// Package api provides the REST management API for speeddial, plus the probe
// and metrics servers that run next to it.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-speeddial/internal/api/handlers"
	"github.com/yuriy-kovalchuk/yk-speeddial/internal/api/middleware"
	"github.com/yuriy-kovalchuk/yk-speeddial/internal/config"
)

// Server is the management REST API server.
//
// Do not expose the API to untrusted networks without setting api_key.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
}

// New builds the API server for cfg on top of svc.
func New(cfg *config.Config, svc handlers.Provisioner, log logr.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(log))

	h := handlers.New(svc, log)
	RegisterRoutes(engine, h, cfg.APIKey)

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Adds and removes make several remote calls in sequence.
		WriteTimeout: 4*cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{engine: engine, httpServer: httpServer}
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
