// Package web serves the face detection dashboard.
package web

import (
	"context"
	"embed"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-facewatch/pkg/hub"
	"github.com/teslashibe/go-facewatch/pkg/narration"
	"github.com/teslashibe/go-facewatch/pkg/scheduler"
	"github.com/teslashibe/go-facewatch/pkg/session"
)

//go:embed static
var staticFS embed.FS

const maxLogs = 500

// Status is the dashboard state pushed over /ws/status and returned by
// GET /api/status.
type Status struct {
	Source       string          `json:"source"`
	Detector     string          `json:"detector"`
	Running      bool            `json:"running"`
	CaptureError string          `json:"capture_error,omitempty"`
	Faces        int             `json:"faces"`
	FPS          float64         `json:"fps"`
	Session      session.Stats   `json:"session"`
	Narration    narration.State `json:"narration"`
	Scheduler    scheduler.Stats `json:"scheduler"`
}

// LogEntry is one line in the dashboard log panel.
type LogEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // info, narration, error, face
	Message string `json:"message"`
}

// Controller is what the dashboard drives.
type Controller interface {
	Status() Status
	StartDetection() error
	StopDetection()
	SetNarration(enabled bool) narration.State
	RestartSession() session.Stats
	Describe() (string, error)
	Export(w io.Writer) error
}

// Server is the dashboard HTTP and websocket server.
type Server struct {
	app    *fiber.App
	port   string
	ctrl   Controller
	logger *slog.Logger

	logs   []LogEntry
	logsMu sync.RWMutex

	statusHub  *hub.Hub
	logHub     *hub.Hub
	overlayHub *hub.Hub

	cancel context.CancelFunc
}

// NewServer creates the dashboard for ctrl on port.
func NewServer(port string, ctrl Controller) *Server {
	s := &Server{
		port:       port,
		ctrl:       ctrl,
		logger:     slog.Default().With("component", "web"),
		logs:       make([]LogEntry, 0, maxLogs),
		statusHub:  hub.New("status", hub.WithRetainLast()),
		logHub:     hub.New("logs"),
		overlayHub: hub.New("overlay", hub.WithRetainLast()),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Facewatch",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/detection/start", s.handleStart)
	api.Post("/detection/stop", s.handleStop)
	api.Post("/session/restart", s.handleRestartSession)
	api.Post("/narration", s.handleNarration)
	api.Post("/describe", s.handleDescribe)
	api.Get("/export", s.handleExport)
	api.Get("/logs", s.handleGetLogs)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.serveHub(s.statusHub)))
	app.Get("/ws/overlay", websocket.New(s.serveHub(s.overlayHub)))
	app.Get("/ws/logs", websocket.New(s.handleLogsWS))

	app.Use("/", filesystem.New(filesystem.Config{
		Root:       http.FS(staticFS),
		PathPrefix: "static",
		Index:      "index.html",
	}))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the hubs and listens. It blocks until the server stops.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go s.statusHub.Run(ctx)
	go s.logHub.Run(ctx)
	go s.overlayHub.Run(ctx)

	s.logger.Info("dashboard listening", "url", "http://localhost:"+s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync runs Start on a goroutine and reports a listen failure to errc.
func (s *Server) StartAsync(errc chan<- error) {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("web server stopped", "error", err)
			if errc != nil {
				errc <- err
			}
		}
	}()
}

// Shutdown stops the hubs and the HTTP server.
func (s *Server) Shutdown() error {
	if s.cancel != nil {
		s.cancel()
	}
	return s.app.ShutdownWithTimeout(5 * time.Second)
}

// PublishStatus pushes a status snapshot to /ws/status clients.
func (s *Server) PublishStatus(st Status) {
	if err := s.statusHub.BroadcastJSON(st); err != nil {
		s.logger.Warn("encode status", "error", err)
	}
}

// SendOverlayFrame pushes a JPEG frame to /ws/overlay clients.
func (s *Server) SendOverlayFrame(jpeg []byte) {
	s.overlayHub.BroadcastBinary(jpeg)
}

// AddLog records a log entry and pushes it to /ws/logs clients.
func (s *Server) AddLog(logType, message string) {
	entry := LogEntry{
		Time:    time.Now().Format("15:04:05"),
		Type:    logType,
		Message: message,
	}

	s.logsMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogs {
		s.logs = s.logs[1:]
	}
	s.logsMu.Unlock()

	s.logHub.BroadcastJSON(entry)
}

// Logs returns a copy of the buffered log entries.
func (s *Server) Logs() []LogEntry {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	return append([]LogEntry(nil), s.logs...)
}
