package narrative

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/KikinaStudio/kikiscroll/internal/httpc"
)

// header is decoded first so a file can start from a built-in variant and
// override only what it names.
type header struct {
	Extends string `yaml:"extends"`
}

// Parse decodes a YAML narrative. Durations are written as strings ("300ms").
func Parse(data []byte) (*Config, error) {
	var h header
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parse narrative: %w", err)
	}

	cfg := &Config{}
	if h.Extends != "" {
		base, err := Lookup(h.Extends)
		if err != nil {
			return nil, err
		}
		cfg = base
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse narrative: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads and validates a YAML narrative file. http and https
// locations are fetched instead.
func LoadFile(path string) (*Config, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return LoadURL(context.Background(), path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read narrative %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Resolve picks the narrative for a host: the file when one is given,
// otherwise the named variant.
func Resolve(variant, file string) (*Config, error) {
	if file != "" {
		return LoadFile(file)
	}
	cfg, err := Lookup(variant)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadURL fetches and validates a YAML narrative.
func LoadURL(ctx context.Context, url string) (*Config, error) {
	data, err := httpc.Fetch(ctx, url, 0)
	if err != nil {
		return nil, fmt.Errorf("fetch narrative: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}
	return cfg, nil
}
