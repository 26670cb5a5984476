package web

import (
	"bytes"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-facewatch/pkg/capture"
	"github.com/teslashibe/go-facewatch/pkg/hub"
	"github.com/teslashibe/go-facewatch/pkg/overlay"
	"github.com/teslashibe/go-facewatch/pkg/scheduler"
	"github.com/teslashibe/go-facewatch/pkg/speech"
)

// NarrationRequest is the body of POST /api/narration.
type NarrationRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Status())
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	err := s.ctrl.StartDetection()
	switch {
	case err == nil, errors.Is(err, scheduler.ErrAlreadyRunning):
		return c.JSON(s.ctrl.Status())
	case errors.Is(err, capture.ErrUnavailable):
		s.AddLog("error", err.Error())
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":  err.Error(),
			"status": s.ctrl.Status(),
		})
	default:
		s.AddLog("error", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	s.ctrl.StopDetection()
	return c.JSON(s.ctrl.Status())
}

func (s *Server) handleRestartSession(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.RestartSession())
}

func (s *Server) handleNarration(c *fiber.Ctx) error {
	var req NarrationRequest
	if err := c.BodyParser(&req); err != nil || req.Enabled == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": `expected {"enabled": true|false}`,
		})
	}
	st := s.ctrl.SetNarration(*req.Enabled)
	if *req.Enabled && !st.Supported {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":     "speech synthesis is not supported on this host",
			"narration": st,
		})
	}
	return c.JSON(st)
}

func (s *Server) handleDescribe(c *fiber.Ctx) error {
	text, err := s.ctrl.Describe()
	if errors.Is(err, speech.ErrUnsupported) {
		// The description is still useful as text.
		return c.JSON(fiber.Map{"text": text, "spoken": false})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	s.AddLog("narration", text)
	return c.JSON(fiber.Map{"text": text, "spoken": true})
}

func (s *Server) handleExport(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := s.ctrl.Export(&buf); err != nil {
		if errors.Is(err, capture.ErrNotReady) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	c.Set(fiber.HeaderContentType, "image/png")
	c.Attachment(overlay.ExportFilename(time.Now()))
	return c.Send(buf.Bytes())
}

func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	return c.JSON(s.Logs())
}

// serveHub attaches a websocket to h until it disconnects.
func (s *Server) serveHub(h *hub.Hub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		if client := hub.NewClient(h, conn); client != nil {
			client.Run()
		}
	}
}

// handleLogsWS replays buffered logs, then streams new ones.
func (s *Server) handleLogsWS(conn *websocket.Conn) {
	for _, entry := range s.Logs() {
		if err := conn.WriteJSON(entry); err != nil {
			return
		}
	}
	s.serveHub(s.logHub)(conn)
}
