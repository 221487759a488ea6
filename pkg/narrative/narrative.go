// Package narrative describes a scrollytelling narrative as data: its
// sections, its closed set of audio tracks and the parameters of every
// per-section audio/visual rule.
//
// Narrative variants differ only in this data; one engine runs them all.
package narrative

import (
	"fmt"
	"time"
)

// Feature identifies the interactive behavior hosted by a section.
type Feature string

const (
	// FeatureIntro is the opening section: drone only.
	FeatureIntro Feature = "intro"
	// FeatureIsolation hosts the crowd/isolation toggle.
	FeatureIsolation Feature = "isolation"
	// FeatureEnvironments hosts the three-way environment crossfade.
	FeatureEnvironments Feature = "environments"
	// FeatureWebcam hosts the expression-reactive layer.
	FeatureWebcam Feature = "webcam"
	// FeatureDensity hosts the stem accumulation.
	FeatureDensity Feature = "density"
)

// Section is one pinned-scroll narrative beat.
type Section struct {
	Index   int     `yaml:"index" json:"index"`
	Key     string  `yaml:"key" json:"key"`
	Title   string  `yaml:"title" json:"title"`
	Body    string  `yaml:"body" json:"body"`
	Feature Feature `yaml:"feature" json:"feature"`
}

// IsolationRule parameterizes the isolation section.
type IsolationRule struct {
	Track          Track         `yaml:"track" json:"track"`
	Threshold      float64       `yaml:"threshold" json:"threshold"`
	IsolatedVolume float64       `yaml:"isolated_volume" json:"isolated_volume"`
	IsolatedFade   time.Duration `yaml:"isolated_fade" json:"isolated_fade"`
	AmbientVolume  float64       `yaml:"ambient_volume" json:"ambient_volume"`
	AmbientFade    time.Duration `yaml:"ambient_fade" json:"ambient_fade"`
	EnterVolume    float64       `yaml:"enter_volume" json:"enter_volume"`
	EnterFade      time.Duration `yaml:"enter_fade" json:"enter_fade"`
}

// EnvironmentRule parameterizes the three-way crossfade section.
type EnvironmentRule struct {
	Tracks      [3]Track      `yaml:"tracks" json:"tracks"`
	Labels      [3]string     `yaml:"labels" json:"labels"`
	Ceiling     float64       `yaml:"ceiling" json:"ceiling"`
	Fade        time.Duration `yaml:"fade" json:"fade"`
	FirstStage  float64       `yaml:"first_stage" json:"first_stage"`
	SecondStage float64       `yaml:"second_stage" json:"second_stage"`
	EnterVolume float64       `yaml:"enter_volume" json:"enter_volume"`
	EnterFade   time.Duration `yaml:"enter_fade" json:"enter_fade"`
}

// DensityRule parameterizes the stem accumulation section.
type DensityRule struct {
	Stems []Track `yaml:"stems" json:"stems"`

	// MaxLayers is N in level = min(floor(p*N)+1, N).
	MaxLayers int `yaml:"max_layers" json:"max_layers"`

	// DroneIsLayer counts the drone as layer 1, so one fewer stem plays.
	DroneIsLayer bool `yaml:"drone_is_layer" json:"drone_is_layer"`

	LayerVolume float64       `yaml:"layer_volume" json:"layer_volume"`
	Fade        time.Duration `yaml:"fade" json:"fade"`

	// Radius and Scales lay out the blob instances.
	Radius float64   `yaml:"radius" json:"radius"`
	Scales []float64 `yaml:"scales" json:"scales"`
}

// ExpressionRule parameterizes the webcam expression bridge.
type ExpressionRule struct {
	Happy          Track         `yaml:"happy" json:"happy"`
	Sad            Track         `yaml:"sad" json:"sad"`
	Volume         float64       `yaml:"volume" json:"volume"`
	Fade           time.Duration `yaml:"fade" json:"fade"`
	UnknownFade    time.Duration `yaml:"unknown_fade" json:"unknown_fade"`
	ToggleOffFade  time.Duration `yaml:"toggle_off_fade" json:"toggle_off_fade"`
	ExitFade       time.Duration `yaml:"exit_fade" json:"exit_fade"`
	PollInterval   time.Duration `yaml:"poll_interval" json:"poll_interval"`
	SmileThreshold float64       `yaml:"smile_threshold" json:"smile_threshold"`
}

// TransitionRule parameterizes the non-drone reset between sections.
type TransitionRule struct {
	// ChangeFade is used when the active section index changes.
	ChangeFade time.Duration `yaml:"change_fade" json:"change_fade"`
	// LeaveFade is used by leave / leave-back lifecycle events.
	LeaveFade time.Duration `yaml:"leave_fade" json:"leave_fade"`
}

// Config is a complete narrative.
type Config struct {
	Name         string          `yaml:"name" json:"name"`
	Sections     []Section       `yaml:"sections" json:"sections"`
	Tracks       []TrackSpec     `yaml:"tracks" json:"tracks"`
	Drone        Track           `yaml:"drone" json:"drone"`
	Isolation    IsolationRule   `yaml:"isolation" json:"isolation"`
	Environments EnvironmentRule `yaml:"environments" json:"environments"`
	Density      DensityRule     `yaml:"density" json:"density"`
	Expression   ExpressionRule  `yaml:"expression" json:"expression"`
	Transition   TransitionRule  `yaml:"transition" json:"transition"`
}

// Feature returns the feature hosted by section i, or "" when i is out of range.
func (c *Config) Feature(i int) Feature {
	if i < 0 || i >= len(c.Sections) {
		return ""
	}
	return c.Sections[i].Feature
}

// IndexOf returns the index of the first section hosting f, or -1.
func (c *Config) IndexOf(f Feature) int {
	for i, s := range c.Sections {
		if s.Feature == f {
			return i
		}
	}
	return -1
}

// Last returns the index of the final section.
func (c *Config) Last() int {
	return len(c.Sections) - 1
}

// HasTrack reports whether t belongs to the narrative's track set.
func (c *Config) HasTrack(t Track) bool {
	_, ok := c.Spec(t)
	return ok
}

// Spec returns the spec of track t.
func (c *Config) Spec(t Track) (TrackSpec, bool) {
	for _, s := range c.Tracks {
		if s.Name == t {
			return s, true
		}
	}
	return TrackSpec{}, false
}

// TrackNames returns every track name in declaration order.
func (c *Config) TrackNames() []Track {
	names := make([]Track, 0, len(c.Tracks))
	for _, s := range c.Tracks {
		names = append(names, s.Name)
	}
	return names
}

// NonDrone returns every track except the drone, in declaration order.
func (c *Config) NonDrone() []Track {
	names := make([]Track, 0, len(c.Tracks))
	for _, s := range c.Tracks {
		if s.Name != c.Drone {
			names = append(names, s.Name)
		}
	}
	return names
}

// Validate checks that the narrative is internally consistent.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(c.Sections) == 0 {
		add("no sections")
	}
	seen := map[Feature]bool{}
	for i, s := range c.Sections {
		if s.Index != i {
			add("section %d has index %d", i, s.Index)
		}
		switch s.Feature {
		case FeatureIntro, FeatureIsolation, FeatureEnvironments, FeatureWebcam, FeatureDensity:
		default:
			add("section %d has unknown feature %q", i, s.Feature)
		}
		if s.Feature != FeatureIntro && seen[s.Feature] {
			add("feature %q hosted twice", s.Feature)
		}
		seen[s.Feature] = true
	}

	names := map[Track]bool{}
	for _, t := range c.Tracks {
		if t.Name == "" {
			add("track with empty name")
		}
		if names[t.Name] {
			add("duplicate track %q", t.Name)
		}
		names[t.Name] = true
		if !inUnit(t.InitialVolume) {
			add("track %q initial volume %v outside [0,1]", t.Name, t.InitialVolume)
		}
	}
	requireTrack := func(role string, t Track) {
		if !names[t] {
			add("%s track %q is not in the track set", role, t)
		}
	}
	requireTrack("drone", c.Drone)

	if seen[FeatureIsolation] {
		r := c.Isolation
		requireTrack("isolation", r.Track)
		if r.Threshold <= 0 || r.Threshold >= 1 {
			add("isolation threshold %v outside (0,1)", r.Threshold)
		}
		for _, v := range []float64{r.IsolatedVolume, r.AmbientVolume, r.EnterVolume} {
			if !inUnit(v) {
				add("isolation volume %v outside [0,1]", v)
			}
		}
	}
	if seen[FeatureEnvironments] {
		r := c.Environments
		for _, t := range r.Tracks {
			requireTrack("environment", t)
		}
		if !(0 < r.FirstStage && r.FirstStage < r.SecondStage && r.SecondStage < 1) {
			add("environment stages %v/%v must satisfy 0 < first < second < 1", r.FirstStage, r.SecondStage)
		}
		if !inUnit(r.Ceiling) || !inUnit(r.EnterVolume) {
			add("environment volumes outside [0,1]")
		}
	}
	if seen[FeatureDensity] {
		r := c.Density
		if len(r.Stems) == 0 {
			add("density has no stems")
		}
		for _, t := range r.Stems {
			requireTrack("density stem", t)
		}
		if r.MaxLayers < 1 {
			add("density max layers %d < 1", r.MaxLayers)
		}
		if !inUnit(r.LayerVolume) {
			add("density layer volume %v outside [0,1]", r.LayerVolume)
		}
	}
	if seen[FeatureWebcam] {
		r := c.Expression
		requireTrack("happy", r.Happy)
		requireTrack("sad", r.Sad)
		if !inUnit(r.Volume) {
			add("expression volume %v outside [0,1]", r.Volume)
		}
		if r.PollInterval <= 0 {
			add("expression poll interval must be positive")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, problems)
	}
	return nil
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}
