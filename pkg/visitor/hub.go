// Package visitor hosts one engine per browser visitor over WebSocket.
package visitor

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/KikinaStudio/kikiscroll/internal/log"
	"github.com/KikinaStudio/kikiscroll/pkg/engine"
	"github.com/KikinaStudio/kikiscroll/pkg/expression"
	"github.com/KikinaStudio/kikiscroll/pkg/narrative"
)

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// WithModels enables server-side expression detection on browser frames.
// Without models the browser detects and sends expression messages.
func WithModels(m *expression.Models) Option {
	return func(h *Hub) { h.models = m }
}

// WithFrameMaxAge sets how long a browser frame stays usable.
func WithFrameMaxAge(d time.Duration) Option {
	return func(h *Hub) { h.frameMaxAge = d }
}

// WithVariants lets visitors pick a built-in narrative with ?variant=.
func WithVariants() Option {
	return func(h *Hub) { h.variants = true }
}

// Hub manages visitor WebSocket sessions
type Hub struct {
	cfg         *narrative.Config
	models      *expression.Models
	frameMaxAge time.Duration
	variants    bool
	logger      *slog.Logger

	mu       sync.RWMutex
	visitors map[string]*Visitor

	// Callbacks
	onState func(id string, s engine.Snapshot)
	onLeave func(id string)

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	framesReceived   atomic.Uint64
}

// NewHub creates a hub serving cfg to every visitor. cfg is shared and
// must not be modified afterwards.
func NewHub(cfg *narrative.Config, opts ...Option) *Hub {
	h := &Hub{
		cfg:         cfg,
		frameMaxAge: DefaultFrameMaxAge,
		visitors:    make(map[string]*Visitor),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = log.Or(h.logger).With("component", "visitors")
	return h
}

// OnState sets the callback for visitor snapshots
func (h *Hub) OnState(callback func(id string, s engine.Snapshot)) {
	h.mu.Lock()
	h.onState = callback
	h.mu.Unlock()
}

// OnLeave sets the callback for disconnected visitors
func (h *Hub) OnLeave(callback func(id string)) {
	h.mu.Lock()
	h.onLeave = callback
	h.mu.Unlock()
}

// RegisterRoutes registers WebSocket routes on a Fiber app
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/visitor", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/visitor", websocket.New(h.handleVisitor))
	app.Get("/ws/visitor/:id", websocket.New(h.handleVisitor))
}

// handleVisitor runs one visitor session until the socket closes.
func (h *Hub) handleVisitor(c *websocket.Conn) {
	id := c.Params("id")
	if id == "" {
		id = uuid.NewString()
	}

	cfg, err := h.narrativeFor(c.Query("variant"))
	if err != nil {
		h.logger.Warn("visitor rejected", "visitor", id, "error", err)
		c.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
		return
	}

	h.mu.Lock()
	if _, taken := h.visitors[id]; taken {
		h.mu.Unlock()
		h.logger.Warn("visitor id in use", "visitor", id)
		c.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "visitor id in use"))
		return
	}
	v := newVisitor(h, id, c, cfg)
	h.visitors[id] = v
	count := len(h.visitors)
	h.mu.Unlock()

	h.logger.Info("visitor connected", "visitor", id, "narrative", cfg.Name, "total", count)

	defer func() {
		v.close()

		h.mu.Lock()
		delete(h.visitors, id)
		count := len(h.visitors)
		leaveCb := h.onLeave
		h.mu.Unlock()

		if leaveCb != nil {
			leaveCb(id)
		}
		h.logger.Info("visitor disconnected", "visitor", id, "total", count)
	}()

	if err := v.hello(); err != nil {
		h.logger.Warn("visitor hello failed", "visitor", id, "error", err)
		return
	}
	v.publish(true)

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			h.logger.Debug("visitor read error", "visitor", id, "error", err)
			return
		}
		h.messagesReceived.Add(1)
		v.handle(data)
	}
}

func (h *Hub) narrativeFor(variant string) (*narrative.Config, error) {
	if variant == "" || !h.variants {
		return h.cfg, nil
	}
	return narrative.Lookup(variant)
}

func (h *Hub) notifyState(id string, s engine.Snapshot) {
	h.mu.RLock()
	cb := h.onState
	h.mu.RUnlock()
	if cb != nil {
		cb(id, s)
	}
}

// Get returns a visitor by ID
func (h *Hub) Get(id string) *Visitor {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.visitors[id]
}

// Count returns the number of connected visitors
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.visitors)
}

// Stats contains hub statistics
type Stats struct {
	VisitorCount     int    `json:"visitor_count"`
	CameraCount      int    `json:"camera_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	FramesReceived   uint64 `json:"frames_received"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	h.mu.RLock()
	visitors := make([]*Visitor, 0, len(h.visitors))
	for _, v := range h.visitors {
		visitors = append(visitors, v)
	}
	h.mu.RUnlock()

	cameras := 0
	for _, v := range visitors {
		if v.engine.CameraActive() {
			cameras++
		}
	}
	return Stats{
		VisitorCount:     len(visitors),
		CameraCount:      cameras,
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		FramesReceived:   h.framesReceived.Load(),
	}
}

// Info contains info about a connected visitor
type Info struct {
	ID        string    `json:"id"`
	Narrative string    `json:"narrative"`
	Section   int       `json:"section"`
	Started   bool      `json:"started"`
	Camera    bool      `json:"camera"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// Infos returns info about all connected visitors, oldest first
func (h *Hub) Infos() []Info {
	h.mu.RLock()
	visitors := make([]*Visitor, 0, len(h.visitors))
	for _, v := range h.visitors {
		visitors = append(visitors, v)
	}
	h.mu.RUnlock()

	infos := make([]Info, 0, len(visitors))
	for _, v := range visitors {
		snap := v.Snapshot()
		infos = append(infos, Info{
			ID:        v.ID,
			Narrative: snap.Narrative,
			Section:   snap.Section,
			Started:   snap.Started,
			Camera:    snap.Camera,
			Connected: v.Connected,
			LastSeen:  v.LastSeen(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Connected.Equal(infos[j].Connected) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].Connected.Before(infos[j].Connected)
	})
	return infos
}

// RegisterAPIRoutes registers API routes for visitor inspection
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	visitors := api.Group("/visitors")

	visitors.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"visitors": h.Infos(),
			"count":    h.Count(),
		})
	})

	visitors.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})

	visitors.Get("/:id", func(c *fiber.Ctx) error {
		v := h.Get(c.Params("id"))
		if v == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "visitor not connected"})
		}
		return c.JSON(v.Snapshot())
	})
}
