package director

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/KikinaStudio/kikiscroll/pkg/narrative"
)

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestVisualSectionMaterials(t *testing.T) {
	v := NewVisual(narrative.Kikina())

	tests := []struct {
		name    string
		section int
		iso     IsolationState
		hex     string
		deform  float64
		rough   float64
		trans   float64
		rot     float64
	}{
		{"intro", 0, Ambient, "#0a0a0a", -0.3, 0.15, 0, 0.05},
		{"ambient", 1, Ambient, "#1a0a0a", 0.8, 0.4, 0, 0.4},
		{"isolated", 1, Isolated, "#1a1a2a", -0.1, 0.05, 0.3, 0.02},
		{"webcam", 3, Ambient, "#0a0a1a", 0.1, 0.1, 0.4, 0.03},
		{"density", 4, Ambient, "#0a0a0a", -0.25, 0.15, 0, 0.08},
		{"out of range", 7, Ambient, "#0a0a0a", 0.2, 0.15, 0, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := v.Target(tt.section, 0.5, tt.iso, 1).Main.Material
			if m.Color.Hex() != tt.hex {
				t.Errorf("color %s, want %s", m.Color.Hex(), tt.hex)
			}
			if !near(m.Deform, tt.deform) || !near(m.Roughness, tt.rough) || !near(m.Transmission, tt.trans) || !near(m.RotationSpeed, tt.rot) {
				t.Errorf("unexpected material %+v", m)
			}
		})
	}
}

func TestVisualEnvironmentBlend(t *testing.T) {
	v := NewVisual(narrative.Kikina())

	tests := []struct {
		p      float64
		hex    string
		deform float64
		rough  float64
		trans  float64
	}{
		{0, "#1a3a1a", 0.3, 0.8, 0},
		{0.165, "#1a3a1a", 0.55, 0.8, 0},
		{0.66, "#2a1a3a", 1.2, 0.5, 0.2},
		{1, "#0a2a3a", 2.0, 0.1, 0.6},
	}

	for _, tt := range tests {
		m := v.Target(2, tt.p, Ambient, 1).Main.Material
		if m.Color.Hex() != tt.hex {
			t.Errorf("p=%v: color %s, want %s", tt.p, m.Color.Hex(), tt.hex)
		}
		if !near(m.Deform, tt.deform) || !near(m.Roughness, tt.rough) || !near(m.Transmission, tt.trans) {
			t.Errorf("p=%v: unexpected material %+v", tt.p, m)
		}
	}

	mid := v.Target(2, 0.495, Ambient, 1).Main.Material
	if !near(mid.Deform, 1.0) || !near(mid.Roughness, 0.65) || !near(mid.Transmission, 0.1) {
		t.Errorf("midpoint material %+v", mid)
	}
}

func TestVisualDensityLayout(t *testing.T) {
	v := NewVisual(narrative.Kikina())

	f := v.Target(4, 0.5, Ambient, 3)
	if f.Main.Scale != 0.7 || f.Main.Position != (Vec3{X: 3}) {
		t.Errorf("unexpected main blob %+v", f.Main)
	}
	if len(f.Clones) != 2 {
		t.Fatalf("Expected 2 clones, got %d", len(f.Clones))
	}

	wantPos := []Vec3{{Z: 3}, {X: -3}}
	wantScale := []float64{0.5, 0.45}
	for i, c := range f.Clones {
		idx := i + 1
		if c.Index != idx || c.Position != wantPos[i] || c.Scale != wantScale[i] {
			t.Errorf("clone %d: %+v", idx, c)
		}
		if !near(c.Material.RotationSpeed, 0.04+float64(idx)*0.015) {
			t.Errorf("clone %d rotation %v", idx, c.Material.RotationSpeed)
		}
		if !near(c.RotationOffset, float64(idx)*0.7) || c.TimeOffset != float64(idx)*3 {
			t.Errorf("clone %d offsets %v/%v", idx, c.RotationOffset, c.TimeOffset)
		}
	}

	if got := len(v.Target(4, 1, Ambient, 9).Blobs()); got != 4 {
		t.Errorf("Expected instances clamped to 4, got %d", got)
	}
}

func TestVisualCamera(t *testing.T) {
	v := NewVisual(narrative.Kikina())

	for _, tt := range []struct {
		p, y float64
	}{{0, 6}, {0.5, 7.5}, {1, 9}} {
		c := v.Target(4, tt.p, Ambient, 1).Camera
		if !near(c.Position.Y, tt.y) || c.Position.Z != 0.01 || c.LookAt != (Vec3{}) {
			t.Errorf("p=%v: camera %+v", tt.p, c)
		}
	}

	c := v.Target(2, 0.5, Ambient, 1).Camera
	if c.Position != (Vec3{Z: 12}) {
		t.Errorf("Expected default camera, got %+v", c)
	}
	if v.Target(1, 0.5, Ambient, 4).Main.Scale != 1 || len(v.Target(1, 0.5, Ambient, 4).Clones) != 0 {
		t.Error("Expected a single full-size blob outside the density section")
	}
}

func TestShaderScroll(t *testing.T) {
	v := NewVisual(narrative.Kikina())
	if v.ShaderScroll(2, 0.42) != 0.42 {
		t.Error("Expected global scroll outside density")
	}
	if v.ShaderScroll(4, 0.9) != 0 {
		t.Error("Expected zero shader scroll in density")
	}
}

func TestFrameJSON(t *testing.T) {
	v := NewVisual(narrative.Kikina())
	data, err := json.Marshal(v.Target(1, 0.8, Isolated, 1))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"color":"#1a1a2a"`) {
		t.Errorf("Expected hex color in %s", data)
	}

	var c Color
	if err := json.Unmarshal([]byte(`"#0a2a3a"`), &c); err != nil || c.Hex() != "#0a2a3a" {
		t.Errorf("Unmarshal color: %v %s", err, c.Hex())
	}
	if err := json.Unmarshal([]byte(`"teal"`), &c); err == nil {
		t.Error("Expected error for non-hex color")
	}
}

func TestHex(t *testing.T) {
	c := Hex("#1a0a0a")
	if got := c.Hex(); got != "#1a0a0a" {
		t.Errorf("Expected #1a0a0a, got %s", got)
	}

	for _, bad := range []string{"", "1a0a0a", "#zzzzzz"} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("Hex(%q) should panic", bad)
				}
			}()
			Hex(bad)
		}()
	}
}
