package director

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/KikinaStudio/kikiscroll/pkg/blend"
	"github.com/KikinaStudio/kikiscroll/pkg/narrative"
)

// Color is an sRGB color serialized as "#rrggbb".
type Color struct {
	colorful.Color
}

// Hex parses a "#rrggbb" literal. It panics on malformed input and is meant
// for package-level presets.
func Hex(s string) Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(fmt.Sprintf("director: bad color %q: %v", s, err))
	}
	return Color{c}
}

// Blend interpolates linearly in RGB space.
func (c Color) Blend(to Color, t float64) Color {
	return Color{c.BlendRgb(to.Color, t).Clamped()}
}

// MarshalJSON implements json.Marshaler.
func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Hex())
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Color) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := colorful.Hex(s)
	if err != nil {
		return fmt.Errorf("color %q: %w", s, err)
	}
	c.Color = parsed
	return nil
}

// Vec3 is a position in scene units.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Material is the target surface of one blob.
type Material struct {
	Color         Color   `json:"color"`
	Deform        float64 `json:"deform"`
	Roughness     float64 `json:"roughness"`
	Transmission  float64 `json:"transmission"`
	RotationSpeed float64 `json:"rotation_speed"`
}

// Blob is one rendered blob instance.
type Blob struct {
	Index          int      `json:"index"`
	Position       Vec3     `json:"position"`
	Scale          float64  `json:"scale"`
	RotationOffset float64  `json:"rotation_offset"`
	TimeOffset     float64  `json:"time_offset"`
	Material       Material `json:"material"`
}

// CameraPose is where the scene camera heads and what it looks at.
type CameraPose struct {
	Position Vec3 `json:"position"`
	LookAt   Vec3 `json:"look_at"`
}

// Frame is the full visual target for one scroll state.
type Frame struct {
	Section      int        `json:"section"`
	Main         Blob       `json:"main"`
	Clones       []Blob     `json:"clones,omitempty"`
	Camera       CameraPose `json:"camera"`
	ShaderScroll float64    `json:"shader_scroll"`
}

// Blobs returns the main blob followed by any clones.
func (f Frame) Blobs() []Blob {
	return append([]Blob{f.Main}, f.Clones...)
}

var (
	introMaterial   = Material{Color: Hex("#0a0a0a"), Deform: -0.3, Roughness: 0.15, RotationSpeed: 0.05}
	ambientMaterial = Material{Color: Hex("#1a0a0a"), Deform: 0.8, Roughness: 0.4, RotationSpeed: 0.4}
	isolatedMat     = Material{Color: Hex("#1a1a2a"), Deform: -0.1, Roughness: 0.05, Transmission: 0.3, RotationSpeed: 0.02}
	webcamMaterial  = Material{Color: Hex("#0a0a1a"), Deform: 0.1, Roughness: 0.1, Transmission: 0.4, RotationSpeed: 0.03}
	densityMaterial = Material{Color: Hex("#0a0a0a"), Deform: -0.25, Roughness: 0.15, RotationSpeed: 0.08}
	defaultMaterial = Material{Color: Hex("#0a0a0a"), Deform: 0.2, Roughness: 0.15, RotationSpeed: 0.1}

	// Environment presets, one per crossfade target.
	environmentMaterials = [3]Material{
		{Color: Hex("#1a3a1a"), Roughness: 0.8, Transmission: 0.0},
		{Color: Hex("#2a1a3a"), Roughness: 0.5, Transmission: 0.2},
		{Color: Hex("#0a2a3a"), Roughness: 0.1, Transmission: 0.6},
	}

	// Deformation climbs 0.3 -> 0.8 -> 1.2 -> 2.0 across the three stages.
	environmentDeform = [4]float64{0.3, 0.8, 1.2, 2.0}

	defaultCamera = CameraPose{Position: Vec3{Z: 12}}
)

const (
	cloneBaseRotation = 0.04
	cloneRotationStep = 0.015
	rotationPhaseStep = 0.7
	timeOffsetStep    = 3
	overheadLow       = 6
	overheadHigh      = 9
)

// VisualDirector computes blob and camera targets. It mirrors AudioDirector:
// the environments section blends its presets on the same ThreeStage split
// that drives the audio crossfade.
type VisualDirector struct {
	cfg    *narrative.Config
	stages blend.ThreeStage
}

// NewVisual creates a VisualDirector over cfg.
func NewVisual(cfg *narrative.Config) *VisualDirector {
	return &VisualDirector{
		cfg: cfg,
		stages: blend.ThreeStage{
			First:  cfg.Environments.FirstStage,
			Second: cfg.Environments.SecondStage,
		},
	}
}

// Target returns the frame for the given section state. level is the
// density level and only matters in the density section.
func (v *VisualDirector) Target(section int, p float64, iso IsolationState, level int) Frame {
	p = blend.Clamp01(p)
	feature := v.cfg.Feature(section)

	f := Frame{
		Section: section,
		Main: Blob{
			Position: v.position(0),
			Scale:    1,
			Material: v.material(feature, p, iso),
		},
		Camera: defaultCamera,
	}

	if feature == narrative.FeatureDensity {
		f.Main.Scale = v.scale(0)
		f.Clones = v.clones(level)
		f.Camera = CameraPose{Position: Vec3{Y: blend.Lerp(overheadLow, overheadHigh, p), Z: 0.01}}
	}
	return f
}

// ShaderScroll is the global scroll fed to the blob shader. The density
// section holds it at 0 to keep the overhead view calm.
func (v *VisualDirector) ShaderScroll(section int, scroll float64) float64 {
	if v.cfg.Feature(section) == narrative.FeatureDensity {
		return 0
	}
	return blend.Clamp01(scroll)
}

func (v *VisualDirector) material(feature narrative.Feature, p float64, iso IsolationState) Material {
	switch feature {
	case narrative.FeatureIntro:
		return introMaterial
	case narrative.FeatureIsolation:
		if iso == Isolated {
			return isolatedMat
		}
		return ambientMaterial
	case narrative.FeatureEnvironments:
		return v.environment(p)
	case narrative.FeatureWebcam:
		return webcamMaterial
	case narrative.FeatureDensity:
		return densityMaterial
	}
	return defaultMaterial
}

func (v *VisualDirector) environment(p float64) Material {
	stage, t := v.stages.Locate(p)
	m := Material{RotationSpeed: defaultMaterial.RotationSpeed}

	switch stage {
	case 0:
		env := environmentMaterials[0]
		m.Color, m.Roughness, m.Transmission = env.Color, env.Roughness, env.Transmission
	default:
		from, to := environmentMaterials[stage-1], environmentMaterials[stage]
		m.Color = from.Color.Blend(to.Color, t)
		m.Roughness = blend.Lerp(from.Roughness, to.Roughness, t)
		m.Transmission = blend.Lerp(from.Transmission, to.Transmission, t)
	}
	m.Deform = blend.Lerp(environmentDeform[stage], environmentDeform[stage+1], t)
	return m
}

func (v *VisualDirector) clones(level int) []Blob {
	n := level
	if slots := len(v.cfg.Density.Scales); n > slots {
		n = slots
	}

	var out []Blob
	for i := 1; i < n; i++ {
		out = append(out, Blob{
			Index:          i,
			Position:       v.position(i),
			Scale:          v.scale(i),
			RotationOffset: float64(i) * rotationPhaseStep,
			TimeOffset:     float64(i) * timeOffsetStep,
			Material: Material{
				Color:         densityMaterial.Color,
				Deform:        densityMaterial.Deform,
				Roughness:     densityMaterial.Roughness,
				RotationSpeed: cloneBaseRotation + float64(i)*cloneRotationStep,
			},
		})
	}
	return out
}

// position places instance i on the density circle, starting due east and
// turning towards +Z.
func (v *VisualDirector) position(i int) Vec3 {
	r := v.cfg.Density.Radius
	slots := len(v.cfg.Density.Scales)
	if slots == 0 {
		return Vec3{X: r}
	}
	theta := 2 * math.Pi * float64(i) / float64(slots)
	return Vec3{X: snap(r * math.Cos(theta)), Z: snap(r * math.Sin(theta))}
}

func (v *VisualDirector) scale(i int) float64 {
	if i < len(v.cfg.Density.Scales) {
		return v.cfg.Density.Scales[i]
	}
	return 1
}

// snap removes floating point residue such as cos(pi/2).
func snap(x float64) float64 {
	return math.Round(x*1e9) / 1e9
}
