package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/grasplab/go-gripper/pkg/control"
	"github.com/grasplab/go-gripper/pkg/hub"
)

// commandResponse is returned by every command endpoint and the
// status lookup. Result is present once the command is terminal.
type commandResponse struct {
	ID     string          `json:"id"`
	Kind   control.Kind    `json:"kind"`
	Status control.Status  `json:"status"`
	Result *control.Result `json:"result,omitempty"`
}

func newCommandResponse(cmd *control.Command) commandResponse {
	resp := commandResponse{
		ID:     cmd.ID.String(),
		Kind:   cmd.Kind,
		Status: cmd.Status(),
	}
	if res, ok := cmd.Result(); ok {
		resp.Result = &res
	}
	return resp
}

func (s *Server) handleHoming(c *fiber.Ctx) error {
	return s.submit(c, control.KindHome, nil)
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	return s.submit(c, control.KindStop, nil)
}

func (s *Server) handleMove(c *fiber.Ctx) error {
	var req control.MoveRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid move request: "+err.Error())
	}
	return s.submit(c, control.KindMove, req)
}

func (s *Server) handleGrasp(c *fiber.Ctx) error {
	var req control.GraspRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid grasp request: "+err.Error())
	}
	return s.submit(c, control.KindGrasp, req)
}

func (s *Server) handleGripperAction(c *fiber.Ctx) error {
	var req control.GripperCommandRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid gripper action request: "+err.Error())
	}
	return s.submit(c, control.KindGripperCommand, req)
}

// submit accepts the request asynchronously. With ?wait=true the
// response carries the terminal result; otherwise 202 with the
// command id to poll.
func (s *Server) submit(c *fiber.Ctx, kind control.Kind, req any) error {
	cmd, err := s.dispatcher.Submit(s.baseCtx, kind, req)
	if err != nil {
		return badRequest(c, err.Error())
	}

	if c.QueryBool("wait") {
		if _, err := cmd.Wait(c.Context()); err != nil {
			// Client went away; the command keeps executing.
			return c.Status(fiber.StatusAccepted).JSON(newCommandResponse(cmd))
		}
		return c.JSON(newCommandResponse(cmd))
	}
	return c.Status(fiber.StatusAccepted).JSON(newCommandResponse(cmd))
}

func (s *Server) handleGetCommand(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid command id")
	}
	cmd, ok := s.dispatcher.Get(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "unknown command id",
		})
	}
	return c.JSON(newCommandResponse(cmd))
}

func (s *Server) handleState(c *fiber.Ctx) error {
	st, ok := s.cache.Load()
	if !ok {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "no device state polled yet",
		})
	}
	return c.JSON(st)
}

// handleJointStatesWS streams joint state samples to one subscriber.
func (s *Server) handleJointStatesWS(c *websocket.Conn) {
	client := hub.NewClient(s.jointStates, c)
	client.Run()
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}
