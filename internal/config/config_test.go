package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/KikinaStudio/kikiscroll/pkg/narrative"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvPort, EnvVariant, EnvNarrativeFile, EnvTracksDir, EnvWebDir, EnvCascadeDir, EnvCameraDevice, EnvLogLevel} {
		t.Setenv(k, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Expected port %s, got %s", DefaultPort, cfg.Port)
	}
	if cfg.Variant != narrative.VariantKikina {
		t.Errorf("Expected variant %s, got %s", narrative.VariantKikina, cfg.Variant)
	}
	if cfg.CameraEnabled() {
		t.Error("Camera should be disabled by default")
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("Expected log level %s, got %s", DefaultLogLevel, cfg.LogLevel)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPort, "9000")
	t.Setenv(EnvVariant, narrative.VariantScenography)
	t.Setenv(EnvCameraDevice, "0")
	t.Setenv(EnvCascadeDir, "/usr/share/opencv4/haarcascades")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("Expected port 9000, got %s", cfg.Port)
	}
	if !cfg.CameraEnabled() || cfg.CameraDevice != 0 {
		t.Errorf("Expected camera device 0, got %d", cfg.CameraDevice)
	}

	n, err := cfg.Narrative()
	if err != nil {
		t.Fatalf("Narrative error: %v", err)
	}
	if n.Name != narrative.VariantScenography {
		t.Errorf("Expected %s, got %s", narrative.VariantScenography, n.Name)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Port: "8080", Variant: "kikina", CameraDevice: NoCamera}, false},
		{"bad port", Config{Port: "http", Variant: "kikina", CameraDevice: NoCamera}, true},
		{"port out of range", Config{Port: "70000", Variant: "kikina", CameraDevice: NoCamera}, true},
		{"no narrative", Config{Port: "8080", CameraDevice: NoCamera}, true},
		{"file only", Config{Port: "8080", NarrativeFile: "show.yaml", CameraDevice: NoCamera}, false},
		{"bad camera", Config{Port: "8080", Variant: "kikina", CameraDevice: -2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBadCameraDevice(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvCameraDevice, "front")

	if _, err := FromEnv(); err == nil {
		t.Error("Expected error for non-numeric camera device")
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides variables that are set, even to "".
	os.Unsetenv(EnvPort)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("KIKISCROLL_PORT=9100\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Port != "9100" {
		t.Errorf("Expected port from .env, got %s", cfg.Port)
	}
}
