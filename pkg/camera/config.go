// Package camera captures a local webcam with gocv for the terminal kiosk.
// It implements expression.Camera: frames are JPEG encoded so the same
// detectors serve local and browser cameras.
package camera

import "fmt"

// Config holds capture parameters.
type Config struct {
	Device    int  `json:"device"`    // VideoCapture index
	Width     int  `json:"width"`     // Frame width in pixels
	Height    int  `json:"height"`    // Frame height in pixels
	Framerate int  `json:"framerate"` // Capture rate
	Quality   int  `json:"quality"`   // JPEG quality 1-100
	Mirror    bool `json:"mirror"`    // Flip horizontally like a selfie view
}

// Capture limits.
const (
	MaxWidth     = 1920
	MaxHeight    = 1080
	MaxFramerate = 30
)

// DefaultConfig returns the expression preset for device: small frames are
// enough for a face cascade and keep encoding cheap.
func DefaultConfig(device int) Config {
	return Config{
		Device:    device,
		Width:     640,
		Height:    480,
		Framerate: 10,
		Quality:   80,
		Mirror:    true,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device < 0 {
		errors = append(errors, "device must be 0 or greater")
	}
	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between 160 and %d", MaxWidth))
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between 120 and %d", MaxHeight))
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, fmt.Sprintf("framerate must be between 1 and %d", MaxFramerate))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	return errors
}
