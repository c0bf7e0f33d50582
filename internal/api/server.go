package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/heimdex/mediacrop/internal/editor"
	"github.com/heimdex/mediacrop/internal/engine"
	"github.com/heimdex/mediacrop/internal/handle"
	"github.com/heimdex/mediacrop/internal/history"
	"github.com/heimdex/mediacrop/internal/playback"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port           int
	Store          *editor.Store
	Registry       *handle.Registry
	Engine         engine.Engine
	Prober         engine.Prober
	MediaServer    playback.BlobServer
	History        *history.Log
	UploadDir      string
	MaxUploadBytes int64
	Logger         *slog.Logger
	StartTime      time.Time
	Version        string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
			// Uploads and media streams can run long.
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

// Start blocks serving on ln, or on the configured address when ln is nil.
func (s *Server) Start(ln net.Listener) error {
	var err error
	if ln == nil {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		err = s.httpServer.ListenAndServe()
	} else {
		s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
		err = s.httpServer.Serve(ln)
	}
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
