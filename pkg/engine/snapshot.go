package engine

import (
	"github.com/KikinaStudio/kikiscroll/pkg/director"
	"github.com/KikinaStudio/kikiscroll/pkg/mixer"
	"github.com/KikinaStudio/kikiscroll/pkg/narrative"
)

// Snapshot is a JSON view of an engine for dashboards and clients.
type Snapshot struct {
	Narrative string            `json:"narrative"`
	Started   bool              `json:"started"`
	Section   int               `json:"section"`
	Key       string            `json:"key"`
	Feature   narrative.Feature `json:"feature"`
	Progress  float64           `json:"progress"`
	Scroll    float64           `json:"scroll"`
	Isolation string            `json:"isolation"`
	Density   int               `json:"density"`

	// Environment is the dominant environment (0..2) in the environments
	// section and -1 elsewhere.
	Environment int `json:"environment"`

	Camera bool   `json:"camera"`
	Signal string `json:"signal"`

	// More is true while there is a further section to scroll to.
	More bool `json:"more"`

	Tracks []mixer.TrackState `json:"tracks"`
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		Narrative:   e.cfg.Name,
		Started:     e.started,
		Section:     e.section,
		Key:         e.cfg.Sections[e.section].Key,
		Feature:     e.cfg.Feature(e.section),
		Progress:    e.progress,
		Scroll:      e.scroll,
		Isolation:   e.isolation.State().String(),
		Density:     e.density.Level(),
		Environment: -1,
		Camera:      e.camActive,
		Signal:      e.signal.String(),
		More:        e.started && e.section < e.cfg.Last(),
		Tracks:      e.mix.Snapshot(),
	}
	if s.Feature == narrative.FeatureEnvironments {
		s.Environment = e.audio.Environment(e.progress)
	}
	return s
}

// Section returns the active section index and its progress.
func (e *Engine) Section() (int, float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.section, e.progress
}

// Isolation returns the isolation state.
func (e *Engine) Isolation() director.IsolationState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isolation.State()
}

// DensityLevel returns the last evaluated density level.
func (e *Engine) DensityLevel() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.density.Level()
}
