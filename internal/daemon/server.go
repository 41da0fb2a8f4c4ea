package daemon

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"zback/internal/config"
	"zback/internal/logger"
	"zback/internal/repository"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Server is the local control surface of the daemon, serving status and
// history and accepting reload/stop requests.
type Server struct {
	echo      *echo.Echo
	orch      *Orchestrator
	registry  *config.Registry
	eventRepo *repository.EventRepository
	port      int
	stopCh    chan struct{}
}

func NewServer(orch *Orchestrator, registry *config.Registry, port int) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:      e,
		orch:      orch,
		registry:  registry,
		eventRepo: repository.NewEventRepository(),
		port:      port,
		stopCh:    make(chan struct{}, 1),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/status", s.handleStatus)
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/history", s.handleHistory)
	s.echo.POST("/reload", s.handleReload)
	s.echo.POST("/stop", s.handleStop)
}

func (s *Server) Start() {
	go func() {
		addr := ":" + strconv.Itoa(s.port)
		logger.Log.Info("control server started",
			zap.String("addr", addr))

		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("control server error", zap.Error(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) StopCh() <-chan struct{} {
	return s.stopCh
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.orch.Status())
}

func (s *Server) handleHealth(c echo.Context) error {
	if !s.orch.Healthy(c.Request().Context()) {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "storage api unreachable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHistory(c echo.Context) error {
	n := 20
	if nStr := c.QueryParam("n"); nStr != "" {
		if parsed, err := strconv.Atoi(nStr); err == nil {
			n = parsed
		}
	}

	if dataset := c.QueryParam("dataset"); dataset != "" {
		events, err := s.eventRepo.GetByDataset(dataset, n)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, events)
	}

	events, err := s.eventRepo.GetRecent(n)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, events)
}

func (s *Server) handleReload(c echo.Context) error {
	s.registry.MarkPending()
	return c.JSON(http.StatusAccepted, map[string]string{"status": "reload scheduled"})
}

func (s *Server) handleStop(c echo.Context) error {
	s.stopCh <- struct{}{}
	return c.JSON(http.StatusOK, map[string]string{"status": "stopping"})
}
