// Package rest exposes the engine over HTTP: a thin fiber-based adapter that
// translates JSON requests into Orchestrator calls and orchestrator state
// into JSON, plus a WebSocket endpoint streaming the event bus.
package rest

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/chrisarseno/claude-swarm/internal/engine"
	"github.com/chrisarseno/claude-swarm/internal/workflow"
)

// Config configures the REST server.
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	EnableCORS   bool
}

// DefaultConfig returns sane defaults for local and container deployment.
func DefaultConfig() *Config {
	return &Config{
		Address:      ":8080",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		EnableCORS:   true,
	}
}

// Server wraps a fiber.App bound to an Orchestrator.
type Server struct {
	app    *fiber.App
	orch   *engine.Orchestrator
	wfExec *workflow.Executor
	cfg    *Config

	hub *streamHub
}

// New builds a Server. wfExec may be nil, in which case POST
// /workflows/execute responds 500 (the CLI wiring always supplies one).
func New(orch *engine.Orchestrator, wfExec *workflow.Executor, cfg *Config) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ErrorHandler: customErrorHandler,
		AppName:      "claude-swarm orchestrator",
	})

	s := &Server{
		app:    app,
		orch:   orch,
		wfExec: wfExec,
		cfg:    cfg,
		hub:    newStreamHub(orch.Bus()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.app.Use(fiberrecover.New(fiberrecover.Config{EnableStackTrace: true}))
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	if s.cfg.EnableCORS {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: "*",
			AllowMethods: "GET,POST,DELETE",
		}))
	}
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", s.health)
	s.app.Get("/status", s.status)

	s.app.Post("/instances/spawn", s.spawnInstances)
	s.app.Get("/instances", s.listInstances)
	s.app.Get("/instances/:id", s.getInstance)
	s.app.Delete("/instances/:id", s.terminateInstance)
	s.app.Post("/instances/scale", s.scaleInstances)

	s.app.Post("/tasks", s.submitTask)
	s.app.Post("/tasks/batch", s.submitTaskBatch)
	s.app.Get("/tasks", s.listTasks)
	s.app.Get("/tasks/:id", s.getTask)
	s.app.Delete("/tasks/:id", s.cancelTask)

	s.app.Post("/workflows/execute", s.executeWorkflow)

	s.app.Use("/ws/stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws/stream", websocket.New(s.hub.serve))
}

// Start begins serving and blocks until the listener returns.
func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Address)
}

// StartWithContext serves until ctx is cancelled, then shuts down.
func (s *Server) StartWithContext(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listen(s.cfg.Address) }()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	s.hub.close()
	return s.app.Shutdown()
}

// App returns the underlying fiber.App, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	return c.Status(code).JSON(ErrorResponse{Error: fmt.Sprintf("error_%d", code), Message: message})
}
