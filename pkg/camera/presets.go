package camera

import "sort"

// Preset names for common configurations
const (
	PresetDefault = "default"
	PresetLow     = "low"
	Preset720p    = "720p"
)

// Presets returns all available preset configurations for device.
func Presets(device int) map[string]Config {
	return map[string]Config{
		PresetDefault: DefaultConfig(device),
		PresetLow:     LowConfig(device),
		Preset720p:    HD720Config(device),
	}
}

// PresetNames returns the sorted preset names.
func PresetNames() []string {
	names := make([]string, 0, 3)
	for name := range Presets(0) {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string, device int) *Config {
	if cfg, ok := Presets(device)[name]; ok {
		return &cfg
	}
	return nil
}

// LowConfig is for slow machines.
func LowConfig(device int) Config {
	cfg := DefaultConfig(device)
	cfg.Width = 320
	cfg.Height = 240
	cfg.Framerate = 5
	cfg.Quality = 70
	return cfg
}

// HD720Config trades CPU for detection range.
func HD720Config(device int) Config {
	cfg := DefaultConfig(device)
	cfg.Width = 1280
	cfg.Height = 720
	return cfg
}
