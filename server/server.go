// Package server runs the HTTP boundary of the detection funnel.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/servicefunnel/internal/observability"
	"github.com/hrygo/servicefunnel/internal/profile"
	"github.com/hrygo/servicefunnel/plugin/ai/memory"
	"github.com/hrygo/servicefunnel/plugin/ai/session"
	apiv1 "github.com/hrygo/servicefunnel/server/router/api/v1"
	"github.com/hrygo/servicefunnel/store"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	Profile    *profile.Profile
	Store      *store.Store
	Components *Components

	echoServer *echo.Echo
	window     *memory.Window
	cleanup    *session.CleanupJob
}

func NewServer(ctx context.Context, prof *profile.Profile, st *store.Store) (*Server, error) {
	metrics := observability.NewMetrics(0)
	components, err := NewComponents(prof, st, metrics, nil)
	if err != nil {
		return nil, err
	}
	if err := components.Warmup(ctx); err != nil {
		// The catalog may be filled after startup; turns report the outage meanwhile.
		slog.Warn("catalog is not available yet", slog.String("error", err.Error()))
	}

	s := &Server{
		Profile:    prof,
		Store:      st,
		Components: components,
		window:     memory.NewWindow(session.MaxHistoryEntries, time.Hour),
		cleanup: session.NewCleanupJob(components.Dialogs, session.CleanupConfig{
			Retention: prof.DialogTTL,
		}),
	}

	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	s.echoServer = echoServer

	api := apiv1.NewAPIV1Service(components.Funnel, components.Catalog, metrics, s.window)
	api.Version = prof.Version
	api.RegisterRoutes(echoServer)

	return s, nil
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", address)
	}

	s.cleanup.Start(ctx)

	go func() {
		s.echoServer.Listener = listener
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	slog.Info("server shutting down")

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	s.cleanup.Stop()
	s.window.Close()
	s.Components.Close()

	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", slog.String("error", err.Error()))
	}

	slog.Info("server stopped properly")
}
