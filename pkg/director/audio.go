// Package director maps scroll state to targets. AudioDirector produces
// track fades, VisualDirector produces blob and camera targets, and the two
// small controllers (Isolation, Density) hold the only state layered on top
// of section progress. Nothing here animates: fades and renderers do.
package director

import (
	"math"
	"time"

	"github.com/KikinaStudio/kikiscroll/pkg/blend"
	"github.com/KikinaStudio/kikiscroll/pkg/mixer"
	"github.com/KikinaStudio/kikiscroll/pkg/narrative"
)

// AudioDirector computes per-section track targets for one narrative.
type AudioDirector struct {
	cfg    *narrative.Config
	stages blend.ThreeStage
}

// NewAudio creates an AudioDirector over cfg.
func NewAudio(cfg *narrative.Config) *AudioDirector {
	return &AudioDirector{
		cfg: cfg,
		stages: blend.ThreeStage{
			First:  cfg.Environments.FirstStage,
			Second: cfg.Environments.SecondStage,
		},
	}
}

// Targets returns the fades implied by progress p in section. Sections whose
// audio is owned elsewhere (intro, isolation, webcam) return nil.
func (a *AudioDirector) Targets(section int, p float64) []mixer.Fade {
	switch a.cfg.Feature(section) {
	case narrative.FeatureEnvironments:
		return a.environments(p)
	case narrative.FeatureDensity:
		return a.density(DensityLevel(p, a.cfg.Density.MaxLayers))
	}
	return nil
}

// environments is an energy-preserving linear crossfade: the active pair
// always sums to the ceiling.
func (a *AudioDirector) environments(p float64) []mixer.Fade {
	r := a.cfg.Environments
	w := a.stages.Weights(p)

	fades := make([]mixer.Fade, 0, len(r.Tracks))
	for i, t := range r.Tracks {
		fades = append(fades, mixer.Fade{Track: t, Volume: r.Ceiling * w[i], Duration: r.Fade})
	}
	return fades
}

// Environment returns which environment label is lit at p: the progress
// third it falls in.
func (a *AudioDirector) Environment(p float64) int {
	return a.stages.Active(p)
}

func (a *AudioDirector) density(level int) []mixer.Fade {
	r := a.cfg.Density
	active := ActiveStems(r, level)

	fades := make([]mixer.Fade, 0, len(r.Stems))
	for i, t := range r.Stems {
		v := 0.0
		if i < active {
			v = r.LayerVolume
		}
		fades = append(fades, mixer.Fade{Track: t, Volume: v, Duration: r.Fade})
	}
	return fades
}

// ResetFades silences every non-drone track over d.
func (a *AudioDirector) ResetFades(d time.Duration) []mixer.Fade {
	tracks := a.cfg.NonDrone()
	fades := make([]mixer.Fade, 0, len(tracks))
	for _, t := range tracks {
		fades = append(fades, mixer.Fade{Track: t, Volume: 0, Duration: d})
	}
	return fades
}

// EnterFades returns the fades issued when section is entered: the crowd
// swells in the isolation section and the first environment opens the
// environments section.
func (a *AudioDirector) EnterFades(section int) []mixer.Fade {
	switch a.cfg.Feature(section) {
	case narrative.FeatureIsolation:
		r := a.cfg.Isolation
		return []mixer.Fade{{Track: r.Track, Volume: r.EnterVolume, Duration: r.EnterFade}}
	case narrative.FeatureEnvironments:
		r := a.cfg.Environments
		return []mixer.Fade{{Track: r.Tracks[0], Volume: r.EnterVolume, Duration: r.EnterFade}}
	}
	return nil
}

// DensityLevel is min(floor(p*n)+1, n), never below 1.
func DensityLevel(p float64, n int) int {
	if n < 1 {
		return 1
	}
	level := int(math.Floor(blend.Clamp01(p)*float64(n))) + 1
	if level > n {
		level = n
	}
	return level
}

// ActiveStems is the number of stems audible at level. When the drone
// counts as the first layer, one fewer stem plays.
func ActiveStems(r narrative.DensityRule, level int) int {
	n := level
	if r.DroneIsLayer {
		n--
	}
	if n < 0 {
		n = 0
	}
	if n > len(r.Stems) {
		n = len(r.Stems)
	}
	return n
}
