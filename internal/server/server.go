// Package server exposes conversations over HTTP.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"ragchat/internal/adapter/index"
	"ragchat/internal/session"
	"ragchat/internal/usecase"
)

// ReloadFunc produces a fresh index, typically by restoring the latest
// snapshot from the store.
type ReloadFunc func(ctx context.Context) (*index.Index, error)

type Options struct {
	AppName        string
	RequestTimeout time.Duration
	Logger         *slog.Logger

	// Reload enables POST /api/v1/index/reload when set.
	Reload ReloadFunc
}

type Server struct {
	app    *fiber.App
	logger *slog.Logger
}

func New(pipeline *usecase.Pipeline, sessions *session.Manager, holder *usecase.IndexHolder, opts Options) *Server {
	if opts.AppName == "" {
		opts.AppName = "ragchat"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	fcfg := fiber.Config{
		AppName:     opts.AppName,
		ReadTimeout: 30 * time.Second,
	}
	if opts.RequestTimeout > 0 {
		fcfg.WriteTimeout = opts.RequestTimeout + 10*time.Second
	}
	app := fiber.New(fcfg)

	app.Use(recover.New())
	app.Use(requestLogger(opts.Logger))

	api := app.Group("/api/v1")

	api.Get("/health", func(c fiber.Ctx) error {
		docs := 0
		if idx := holder.Current(); idx != nil {
			docs = idx.Len()
		}
		return c.JSON(fiber.Map{
			"status":    "healthy",
			"app":       opts.AppName,
			"ready":     pipeline.Ready(),
			"documents": docs,
			"sessions":  sessions.Len(),
		})
	})

	NewSessionHandler(pipeline, sessions, opts.RequestTimeout).Register(api)
	if opts.Reload != nil {
		NewIndexHandler(holder, opts.Reload, opts.Logger).Register(api)
	}

	return &Server{app: app, logger: opts.Logger}
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("HTTP API listening", "addr", addr)
	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// requestLogger logs one line per request.
func requestLogger(logger *slog.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		// Fiber reuses contexts; capture before calling the handler.
		method := c.Method()
		path := c.Path()

		err := c.Next()

		logger.Info("http request",
			"method", method,
			"path", path,
			"status", c.Response().StatusCode(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return err
	}
}
