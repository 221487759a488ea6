package narrative

import (
	"fmt"
	"sort"
	"time"
)

// Built-in variant names.
const (
	VariantKikina      = "kikina"
	VariantScenography = "scenography"
)

var variants = map[string]func() *Config{
	VariantKikina:      Kikina,
	VariantScenography: Scenography,
}

// Lookup returns a fresh copy of the named built-in variant.
func Lookup(name string) (*Config, error) {
	build, ok := variants[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownVariant, name, Names())
	}
	return build(), nil
}

// Names lists the built-in variants in sorted order.
func Names() []string {
	names := make([]string, 0, len(variants))
	for n := range variants {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Kikina is the default narrative: the neuro-sonic environments end on
// pulsatingWave and focusCognitif, and density accumulates four layers.
func Kikina() *Config {
	c := base(VariantKikina, TrackPulsatingWave, TrackFocusCognitif)
	c.Sections[2].Body = "La composition agit sur le cerveau sans sacrifier la qualité musicale: relaxation, régulation, focus."
	c.Environments.Labels = [3]string{"Relaxation", "Régulation émotionnelle", "Focus cognitif"}
	c.Density.MaxLayers = 4
	return c
}

// Scenography swaps the second and third environments for thunderstorm and
// sea, and counts the drone as the first of five density layers.
func Scenography() *Config {
	c := base(VariantScenography, TrackThunderstorm, TrackSea)
	c.Sections[2].Title = "Une scénographie sonore qui transforme le lieu"
	c.Sections[2].Body = "Jungle, orage, mer: le même espace traverse trois climats au fil du scroll."
	c.Environments.Labels = [3]string{"Jungle", "Orage", "Mer"}
	c.Density.MaxLayers = 5
	c.Density.DroneIsLayer = true
	c.Density.Scales = []float64{0.7, 0.5, 0.45, 0.4, 0.35}
	return c
}

func base(name string, envB, envC Track) *Config {
	tracks := []TrackSpec{
		{Name: TrackDrone, Source: "0 Drone.mp3", InitialVolume: 0.5},
		{Name: TrackStrings, Source: "1 Strings.mp3"},
		{Name: TrackBass, Source: "2 Bass.mp3"},
		{Name: TrackDrums, Source: "3 Drums.mp3"},
		{Name: TrackKeyboard, Source: "4 Keyboard.mp3"},
		{Name: TrackCrowd, Source: "Crowd.mp3"},
		{Name: TrackJungle, Source: "Jungle.mp3"},
		{Name: envB, Source: sourceFor(envB)},
		{Name: envC, Source: sourceFor(envC)},
		{Name: TrackHappy, Source: "HAPPY.mp3"},
		{Name: TrackSad, Source: "SAD.mp3"},
	}

	return &Config{
		Name: name,
		Sections: []Section{
			{Index: 0, Key: "intro", Feature: FeatureIntro,
				Title: "Le son change tout",
				Body:  "Ce que vous entendez façonne votre humeur et votre attention. Scrollez pour comprendre pourquoi."},
			{Index: 1, Key: "isolation", Feature: FeatureIsolation,
				Title: "Dans la foule, le silence peut exister",
				Body:  "Au milieu du chaos d'un salon, une bulle sonore où tout devient clair, en dirigeant le son."},
			{Index: 2, Key: "environments", Feature: FeatureEnvironments,
				Title: "Un espace peut changer d'âme en quelques secondes"},
			{Index: 3, Key: "webcam", Feature: FeatureWebcam,
				Title: "Et si la musique vous écoutait, vous ?",
				Body:  "Une musique qui perçoit ce que vous vivez et s'y adapte en temps réel."},
			{Index: 4, Key: "density", Feature: FeatureDensity,
				Title: "Plus vous êtes nombreux, plus la musique vit",
				Body:  "Chaque présence ajoute une couche. L'œuvre se compose en direct, écrite par le public."},
		},
		Tracks: tracks,
		Drone:  TrackDrone,
		Isolation: IsolationRule{
			Track:          TrackCrowd,
			Threshold:      0.4,
			IsolatedVolume: 0.05,
			IsolatedFade:   800 * time.Millisecond,
			AmbientVolume:  0.6,
			AmbientFade:    400 * time.Millisecond,
			EnterVolume:    0.6,
			EnterFade:      500 * time.Millisecond,
		},
		Environments: EnvironmentRule{
			Tracks:      [3]Track{TrackJungle, envB, envC},
			Ceiling:     0.6,
			Fade:        150 * time.Millisecond,
			FirstStage:  0.33,
			SecondStage: 0.66,
			EnterVolume: 0.6,
			EnterFade:   500 * time.Millisecond,
		},
		Density: DensityRule{
			Stems:       []Track{TrackStrings, TrackBass, TrackDrums, TrackKeyboard},
			LayerVolume: 0.4,
			Fade:        300 * time.Millisecond,
			Radius:      3,
			Scales:      []float64{0.7, 0.5, 0.45, 0.4},
		},
		Expression: ExpressionRule{
			Happy:          TrackHappy,
			Sad:            TrackSad,
			Volume:         0.5,
			Fade:           600 * time.Millisecond,
			UnknownFade:    400 * time.Millisecond,
			ToggleOffFade:  400 * time.Millisecond,
			ExitFade:       300 * time.Millisecond,
			PollInterval:   500 * time.Millisecond,
			SmileThreshold: 0.5,
		},
		Transition: TransitionRule{
			ChangeFade: 300 * time.Millisecond,
			LeaveFade:  500 * time.Millisecond,
		},
	}
}

func sourceFor(t Track) string {
	switch t {
	case TrackPulsatingWave:
		return "Pulsating Wave.mp3"
	case TrackFocusCognitif:
		return "Focus Cognitif.mp3"
	case TrackThunderstorm:
		return "Thunderstorm.mp3"
	case TrackSea:
		return "Sea.mp3"
	}
	return string(t) + ".mp3"
}
