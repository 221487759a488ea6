// Package web serves the kikiscroll page, its HTTP API and the visitor and
// monitor sockets.
package web

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/KikinaStudio/kikiscroll/internal/log"
	"github.com/KikinaStudio/kikiscroll/pkg/engine"
	"github.com/KikinaStudio/kikiscroll/pkg/hub"
	"github.com/KikinaStudio/kikiscroll/pkg/narrative"
	"github.com/KikinaStudio/kikiscroll/pkg/visitor"
)

// maxLogs bounds the host event buffer.
const maxLogs = 500

// LogEntry represents a host event for the dashboard
type LogEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // info, visitor, error
	Message string `json:"message"`
}

// Config configures the server.
type Config struct {
	Port      string
	WebDir    string // Static files; empty disables them
	Narrative *narrative.Config
}

// Server is the HTTP host
type Server struct {
	app       *fiber.App
	port      string
	started   time.Time
	narrative *narrative.Config
	logger    *slog.Logger

	visitors *visitor.Hub
	monitor  *hub.Hub

	// Host event buffer
	logs   []LogEntry
	logsMu sync.RWMutex
}

// NewServer wires visitors and the monitor hub into a fiber app.
func NewServer(cfg Config, visitors *visitor.Hub, logger *slog.Logger) *Server {
	logger = log.Or(logger).With("component", "web")
	s := &Server{
		port:      cfg.Port,
		started:   time.Now(),
		narrative: cfg.Narrative,
		logger:    logger,
		visitors:  visitors,
		monitor:   hub.New("monitor", logger),
		logs:      make([]LogEntry, 0, maxLogs),
	}

	visitors.OnState(func(id string, snap engine.Snapshot) {
		if err := s.monitor.Publish(hub.KindVisitor, id, snap); err != nil {
			s.logger.Warn("publish snapshot failed", "visitor", id, "error", err)
		}
	})
	visitors.OnLeave(func(id string) {
		s.monitor.Forget(id)
		s.AddLog("visitor", "visitor "+id+" left")
	})

	app := fiber.New(fiber.Config{
		AppName:               "kikiscroll",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/narratives", s.handleListNarratives)
	api.Get("/narratives/:name", s.handleGetNarrative)
	api.Get("/logs", s.handleGetLogs)
	visitors.RegisterAPIRoutes(api)

	visitors.RegisterRoutes(app)
	app.Get("/ws/monitor", s.monitor.Handler())

	if cfg.WebDir != "" {
		app.Static("/", cfg.WebDir)
	}

	s.app = app
	return s
}

// Start listens on the configured port until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the monitor hub and serves on ln until ctx ends.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.monitor.Run(ctx)
	go func() {
		<-ctx.Done()
		if err := s.app.Shutdown(); err != nil {
			s.logger.Warn("shutdown failed", "error", err)
		}
	}()

	s.logger.Info("listening", "addr", ln.Addr().String(), "narrative", s.narrative.Name)
	s.AddLog("info", "listening on "+ln.Addr().String())
	return s.app.Listener(ln)
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Monitor returns the monitor hub.
func (s *Server) Monitor() *hub.Hub {
	return s.monitor
}

// AddLog adds a host event and broadcasts it to monitors
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

	if err := s.monitor.BroadcastJSON(hub.KindLog, entry); err != nil {
		s.logger.Warn("broadcast log failed", "error", err)
	}
}
