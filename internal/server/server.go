// Package server assembles the Echo HTTP server for the chat API.
package server

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/pingline/pingline/internal/auth"
)

// Handler registers a route group on the Echo instance.
type Handler interface {
	Register(e *echo.Echo)
}

// Routes reachable without a token. Everything else, /ws included,
// goes through the JWT middleware.
var publicRoutes = map[string]bool{
	"/ping":        true,
	"/health":      true,
	"/auth/login":  true,
	"/auth/signup": true,
}

// Server wraps Echo with recovery, access logging, and JWT auth applied.
type Server struct {
	echo   *echo.Echo
	addr   string
	logger *slog.Logger
}

// NewServer builds the server and registers every handler on it.
func NewServer(log *slog.Logger, addr, jwtSecret string, handlers ...Handler) *Server {
	if addr == "" {
		addr = ":8080"
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(accessLog(log))
	e.Use(auth.JWTMiddleware(jwtSecret, func(c echo.Context) bool {
		return publicRoutes[c.Request().URL.Path]
	}))

	for _, h := range handlers {
		if h != nil {
			h.Register(e)
		}
	}

	return &Server{
		echo:   e,
		addr:   addr,
		logger: log.With(slog.String("component", "server")),
	}
}

func accessLog(log *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", c.RealIP()),
			)
			return nil
		},
	})
}

// Start blocks serving HTTP until Stop or a listener error.
func (s *Server) Start() error {
	s.logger.Info("listening", slog.String("addr", s.addr))
	return s.echo.Start(s.addr)
}

// Stop shuts the server down, waiting for in-flight requests up to ctx.
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
