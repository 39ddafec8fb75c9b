// Package web exposes the interaction pipeline over HTTP and pushes live
// interaction events to dashboard clients over websockets.
package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlog "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/playmatelabs/go-playmate/internal/log"
	"github.com/playmatelabs/go-playmate/pkg/hub"
	"github.com/playmatelabs/go-playmate/pkg/pipeline"
)

// maxBodySize bounds uploaded audio payloads (base64-encoded).
const maxBodySize = 16 * 1024 * 1024

// maxBatchSize bounds one batch submission.
const maxBatchSize = 32

// Server is the interaction API server.
type Server struct {
	app  *fiber.App
	port string

	orchestrator *pipeline.Orchestrator
	batch        *pipeline.BatchRunner

	// Optional low-latency variant; nil when no streaming synthesizer is
	// configured.
	streaming *pipeline.Streaming

	// Hub for websocket event broadcast
	eventsHub *hub.Hub
}

// NewServer wires the pipeline behind the HTTP surface. streaming may be nil.
func NewServer(port string, orchestrator *pipeline.Orchestrator, batch *pipeline.BatchRunner, streaming *pipeline.Streaming) *Server {
	s := &Server{
		port:         port,
		orchestrator: orchestrator,
		batch:        batch,
		streaming:    streaming,
		eventsHub:    hub.New("events"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Playmate API",
		DisableStartupMessage: true,
		BodyLimit:             maxBodySize,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(fiberlog.New(fiberlog.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	app.Get("/health", s.handleHealth)

	// API routes
	api := app.Group("/api")
	api.Post("/interact", s.handleInteract)
	api.Post("/interact/batch", s.handleInteractBatch)
	api.Post("/interact/stream", s.handleInteractStream)
	api.Post("/prewarm/:toyId", s.handlePrewarm)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// Start runs the hub loop and blocks serving HTTP.
func (s *Server) Start() error {
	go s.eventsHub.Run()
	log.Info("api server listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// EventsHub returns the event hub for external broadcasters.
func (s *Server) EventsHub() *hub.Hub {
	return s.eventsHub
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// handleEventsWS registers a dashboard client and pumps events until the
// connection closes.
func (s *Server) handleEventsWS(c *websocket.Conn) {
	client := hub.NewClient(s.eventsHub, c)
	client.Run()
}
