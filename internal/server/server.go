// Package server is a reference implementation of the consumer
// notification API the tray talks to. It serves the count, list and mark
// endpoints plus the renderer templates out of a SQLite store.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nhle/notification-tray/internal/model"
	"github.com/nhle/notification-tray/internal/store"
)

// Server wires the store into a gin engine.
type Server struct {
	store  store.Store
	cfg    model.ServerConfig
	log    *zap.Logger
	engine *gin.Engine
}

// New builds a server for st. A nil logger discards output.
func New(st store.Store, cfg model.ServerConfig, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		store:  st,
		cfg:    cfg,
		log:    log,
		engine: gin.New(),
	}
	s.routes()
	return s
}

// Handler returns the HTTP handler, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.Use(
		requestID(),
		requestLogger(s.log),
		recovery(s.log),
		csrf(),
	)

	limiter := newRateLimiter(s.cfg.PostRatePerMinute, s.log)

	api := s.engine.Group(model.APIPrefix)
	api.Use(session(s.cfg))
	{
		api.GET("/notifications/count", s.countHandler)
		api.GET("/notifications", s.listHandler)
		api.GET("/notifications/:id", s.detailHandler)
		api.GET("/renderers/templates", s.templatesHandler)
		api.GET("/renderers/templates/:key", s.templateHandler)

		writes := api.Group("")
		writes.Use(limiter.middleware())
		writes.POST("/notifications/mark_notifications", s.markAllHandler)
		writes.POST("/notifications/:id", s.markOneHandler)
	}
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving on %s: %w", s.cfg.Addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
