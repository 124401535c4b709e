// Package web exposes the gripper command API and the joint state
// websocket stream.
package web

import (
	"context"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/grasplab/go-gripper/pkg/control"
	"github.com/grasplab/go-gripper/pkg/hub"
	"github.com/grasplab/go-gripper/pkg/telemetry"
)

// Server is the gripperd HTTP server. One POST endpoint per command
// kind, command status lookup, the cached device state, and a
// websocket telemetry stream.
type Server struct {
	app  *fiber.App
	addr string

	// baseCtx bounds command execution: commands outlive their HTTP
	// request but not the daemon.
	baseCtx context.Context

	dispatcher *control.Dispatcher
	cache      *telemetry.Cache

	jointStates *hub.Hub
}

// NewServer wires the routes. ctx is the daemon lifetime context.
func NewServer(ctx context.Context, addr string, dispatcher *control.Dispatcher, cache *telemetry.Cache) *Server {
	s := &Server{
		addr:        addr,
		baseCtx:     ctx,
		dispatcher:  dispatcher,
		cache:       cache,
		jointStates: hub.New("joint_states"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "gripperd",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")
	g := api.Group("/gripper")
	g.Post("/homing", s.handleHoming)
	g.Post("/stop", s.handleStop)
	g.Post("/move", s.handleMove)
	g.Post("/grasp", s.handleGrasp)
	g.Post("/gripper_action", s.handleGripperAction)

	api.Get("/commands/:id", s.handleGetCommand)
	api.Get("/state", s.handleState)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/joint_states", websocket.New(s.handleJointStatesWS))

	s.app = app
	go s.jointStates.Run(ctx)
	return s
}

// Start listens on the configured address. Blocks until Shutdown.
func (s *Server) Start() error {
	return s.app.Listen(s.addr)
}

// Serve accepts connections on ln. Used by tests to bind an
// ephemeral port.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// App exposes the fiber app for in-process testing.
func (s *Server) App() *fiber.App {
	return s.app
}

// JointStateSink returns a telemetry sink that broadcasts samples to
// all websocket subscribers.
func (s *Server) JointStateSink() telemetry.Sink {
	return telemetry.SinkFunc(func(sample telemetry.JointStateSample) error {
		return s.jointStates.BroadcastJSON(sample)
	})
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
