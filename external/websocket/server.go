package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/foxseedlab/livescribe/internal/config"
	"github.com/foxseedlab/livescribe/internal/session"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	cfg      *config.Config
	manager  *session.Manager
	echo     *echo.Echo
	upgrader websocket.Upgrader
}

type healthResponse struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"active_sessions"`
}

func NewServer(cfg *config.Config, manager *session.Manager, gatherer prometheus.Gatherer) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		cfg:     cfg,
		manager: manager,
		echo:    e,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	e.GET(cfg.WSPath, s.handleStream)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	slog.Info("listening for streaming connections", "addr", s.cfg.ListenAddr, "path", s.cfg.WSPath)
	if err := s.echo.Start(s.cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, then closes every running session.
func (s *Server) Shutdown(ctx context.Context) error {
	httpErr := s.echo.Shutdown(ctx)
	sessionErr := s.manager.Shutdown(ctx)
	return errors.Join(httpErr, sessionErr)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:         "ok",
		ActiveSessions: s.manager.ActiveSessions(),
	})
}

func (s *Server) handleStream(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote_addr", c.RealIP(), "error", err)
		return nil
	}
	conn := NewConn(ws, s.cfg.MaxMessageBytes)
	if err := s.manager.Serve(c.Request().Context(), conn); err != nil {
		slog.Info("connection not served", "remote_addr", conn.RemoteAddr(), "error", err)
	}
	return nil
}
