package web

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/KikinaStudio/kikiscroll/pkg/narrative"
)

// Status is the /api/status payload
type Status struct {
	Narrative string  `json:"narrative"`
	Uptime    float64 `json:"uptime_seconds"`
	Visitors  int     `json:"visitors"`
	Cameras   int     `json:"cameras"`
	Monitors  int     `json:"monitors"`
}

// handleStatus returns host health and counts
func (s *Server) handleStatus(c *fiber.Ctx) error {
	stats := s.visitors.GetStats()
	return c.JSON(Status{
		Narrative: s.narrative.Name,
		Uptime:    time.Since(s.started).Seconds(),
		Visitors:  stats.VisitorCount,
		Cameras:   stats.CameraCount,
		Monitors:  s.monitor.ClientCount(),
	})
}

// handleListNarratives returns the built-in variants and the served one
func (s *Server) handleListNarratives(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"variants": narrative.Names(),
		"default":  s.narrative.Name,
	})
}

// handleGetNarrative returns one narrative. The served narrative may come
// from a file, so its name takes precedence over the built-ins.
func (s *Server) handleGetNarrative(c *fiber.Ctx) error {
	name := c.Params("name")
	if name == s.narrative.Name {
		return c.JSON(s.narrative)
	}

	cfg, err := narrative.Lookup(name)
	if errors.Is(err, narrative.ErrUnknownVariant) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(cfg)
}

// handleGetLogs returns recent host events
func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	return c.JSON(s.logs)
}
