package server

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
)

// RouteRegistrar регистрирует маршруты handler-а на echo-инстансе.
type RouteRegistrar interface {
	RegisterRoutes(e *echo.Echo)
}

// Server — публичный HTTP API сервиса.
type Server struct {
	echo   *echo.Echo
	addr   string
	logger *log.Entry
}

// New собирает echo-сервер с общими middleware и маршрутами handler-ов.
func New(addr string, logger *log.Entry, handlers ...RouteRegistrar) *Server {
	if logger == nil {
		logger = log.WithField("component", "http-server")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))

	for _, h := range handlers {
		h.RegisterRoutes(e)
	}

	return &Server{
		echo:   e,
		addr:   addr,
		logger: logger,
	}
}

// Echo возвращает нижележащий echo-инстанс (для тестов).
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start блокирует до остановки сервера.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.addr).Info("http server listening")
	return s.echo.Start(s.addr)
}

// Shutdown мягко останавливает сервер.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// requestLogger пишет структурированную запись на каждый запрос.
// SSE-потоки сюда попадают один раз, по завершении соединения.
func requestLogger(logger *log.Entry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			entry := logger.WithFields(log.Fields{
				"method":     c.Request().Method,
				"path":       c.Request().URL.Path,
				"status":     c.Response().Status,
				"latency_ms": time.Since(start).Milliseconds(),
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
			})
			if err != nil {
				entry.WithError(err).Warn("request failed")
				return err
			}
			entry.Debug("request served")
			return nil
		}
	}
}
