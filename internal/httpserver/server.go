package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Server bundles the echo router and the interview session gateway.
type Server struct {
	Echo *echo.Echo
}

// New creates a configured server instance with routes registered.
func New(gw *Gateway) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/interview", func(c echo.Context) error {
		gw.ServeWS(c.Response(), c.Request())
		return nil
	})

	return &Server{Echo: e}
}

func (s *Server) Start(addr string) error { return s.Echo.Start(addr) }

func (s *Server) Shutdown(ctx context.Context) error { return s.Echo.Shutdown(ctx) }
