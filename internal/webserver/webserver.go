package webserver

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/talkincode/opspulse/config"
	"github.com/talkincode/opspulse/internal/monitor"
	"go.uber.org/zap"
)

// CustomValidator wires go-playground/validator into echo's c.Validate.
type CustomValidator struct {
	validate *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validate.Struct(i)
}

// WebServer hosts the monitoring API. Role/auth middleware is supplied by
// the embedding application through Use; none is built in.
type WebServer struct {
	root *echo.Echo
	api  *echo.Group
	cfg  *config.AppConfig
}

func NewWebServer(cfg *config.AppConfig, recorder *monitor.Recorder) *WebServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &CustomValidator{validate: validator.New()}
	e.Use(middleware.Recover())
	e.Use(requestObserver(recorder))

	s := &WebServer{
		root: e,
		api:  e.Group("/api/v1"),
		cfg:  cfg,
	}
	return s
}

// requestObserver logs each request and feeds the in-process request
// recorder that backs the api/application metric fragments.
func requestObserver(recorder *monitor.Recorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			elapsed := time.Since(start)
			status := c.Response().Status
			if recorder != nil {
				recorder.ObserveRequest(status, elapsed)
			}
			zap.L().Debug("http request",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", status),
				zap.Duration("elapsed", elapsed))
			return nil
		}
	}
}

// Use appends middleware to the API group (auth, roles, rate limits).
func (s *WebServer) Use(mw ...echo.MiddlewareFunc) {
	s.api.Use(mw...)
}

// ApiGroup returns the /api/v1 route group for handler registration.
func (s *WebServer) ApiGroup() *echo.Group {
	return s.api
}

// Echo exposes the underlying engine (tests).
func (s *WebServer) Echo() *echo.Echo {
	return s.root
}

// Start runs the server until it fails or is shut down.
func (s *WebServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Web.Host, s.cfg.Web.Port)
	zap.L().Info("web server listening", zap.String("addr", addr))
	return s.root.Start(addr)
}
