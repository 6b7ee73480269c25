// Package health exposes the minimal liveness/readiness surface every
// long-running chatsync binary needs, the same way the teacher's
// internal/server binds an echo.Echo rather than a bare net/http mux.
package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GatewayStatus reports whether the gateway consumer is running, for the
// readiness probe.
type GatewayStatus func() bool

// Server is the HTTP health/readiness surface for cmd/chatsyncd.
type Server struct {
	echo   *echo.Echo
	addr   string
	logger *slog.Logger
}

// NewServer builds the echo server exposing /healthz.
func NewServer(log *slog.Logger, addr string, pool *pgxpool.Pool, gatewayStatus GatewayStatus) *Server {
	if addr == "" {
		addr = ":8080"
	}
	if log == nil {
		log = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		if err := pool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		gatewayConnected := true
		if gatewayStatus != nil {
			gatewayConnected = gatewayStatus()
		}
		return c.JSON(http.StatusOK, map[string]any{
			"status":            "ok",
			"gateway_connected": gatewayConnected,
		})
	})

	return &Server{
		echo:   e,
		addr:   addr,
		logger: log.With(slog.String("component", "health_server")),
	}
}

// Start starts the HTTP server; it blocks until the server is shut down.
func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
