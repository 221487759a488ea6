// Package config resolves kikiscroll settings from an optional .env file
// and the environment. Command line flags override these values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/KikinaStudio/kikiscroll/pkg/narrative"
)

// Environment variables.
const (
	EnvPort          = "KIKISCROLL_PORT"
	EnvVariant       = "KIKISCROLL_VARIANT"
	EnvNarrativeFile = "KIKISCROLL_NARRATIVE_FILE"
	EnvTracksDir     = "KIKISCROLL_TRACKS_DIR"
	EnvWebDir        = "KIKISCROLL_WEB_DIR"
	EnvCascadeDir    = "KIKISCROLL_CASCADE_DIR"
	EnvCameraDevice  = "KIKISCROLL_CAMERA_DEVICE"
	EnvLogLevel      = "LOG_LEVEL"
)

// Defaults.
const (
	DefaultPort      = "8080"
	DefaultTracksDir = "./web/tracks"
	DefaultWebDir    = "./web"
	DefaultLogLevel  = "info"
)

// NoCamera disables the local webcam.
const NoCamera = -1

// Config holds host settings.
type Config struct {
	Port          string
	Variant       string
	NarrativeFile string
	TracksDir     string
	WebDir        string
	CascadeDir    string // Haar cascades; empty disables server-side detection
	CameraDevice  int
	LogLevel      string
}

// Load reads .env when present, then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:          env(EnvPort, DefaultPort),
		Variant:       env(EnvVariant, narrative.VariantKikina),
		NarrativeFile: env(EnvNarrativeFile, ""),
		TracksDir:     env(EnvTracksDir, DefaultTracksDir),
		WebDir:        env(EnvWebDir, DefaultWebDir),
		CascadeDir:    env(EnvCascadeDir, ""),
		CameraDevice:  NoCamera,
		LogLevel:      env(EnvLogLevel, DefaultLogLevel),
	}

	if raw := env(EnvCameraDevice, ""); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvCameraDevice, err)
		}
		cfg.CameraDevice = n
	}
	return cfg, cfg.Validate()
}

// Validate checks the settings.
func (c Config) Validate() error {
	var problems []string
	if p, err := strconv.Atoi(c.Port); err != nil || p < 0 || p > 65535 {
		problems = append(problems, fmt.Sprintf("port %q is not a valid port", c.Port))
	}
	if c.NarrativeFile == "" && c.Variant == "" {
		problems = append(problems, "either a variant or a narrative file is required")
	}
	if c.CameraDevice < NoCamera {
		problems = append(problems, fmt.Sprintf("camera device %d is invalid", c.CameraDevice))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Narrative resolves the configured narrative. A file wins over a variant.
func (c Config) Narrative() (*narrative.Config, error) {
	return narrative.Resolve(c.Variant, c.NarrativeFile)
}

// CameraEnabled reports whether a local webcam is configured.
func (c Config) CameraEnabled() bool {
	return c.CameraDevice != NoCamera
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
