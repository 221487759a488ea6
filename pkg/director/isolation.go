package director

import (
	"github.com/KikinaStudio/kikiscroll/pkg/mixer"
	"github.com/KikinaStudio/kikiscroll/pkg/narrative"
)

// IsolationState is the mood of the isolation section.
type IsolationState int

const (
	// Ambient is the crowded default.
	Ambient IsolationState = iota
	// Isolated is the hushed bubble past the threshold.
	Isolated
)

// String returns the state name.
func (s IsolationState) String() string {
	switch s {
	case Ambient:
		return "ambient"
	case Isolated:
		return "isolated"
	default:
		return "unknown"
	}
}

// Isolation toggles between ambient and isolated as progress crosses the
// threshold. Only edges produce fades.
type Isolation struct {
	rule  narrative.IsolationRule
	state IsolationState
}

// NewIsolation creates a controller in the ambient state.
func NewIsolation(rule narrative.IsolationRule) *Isolation {
	return &Isolation{rule: rule}
}

// Update feeds section progress and returns the crowd fade for a transition.
func (i *Isolation) Update(p float64) (mixer.Fade, bool) {
	switch {
	case i.state == Ambient && p >= i.rule.Threshold:
		i.state = Isolated
		return mixer.Fade{Track: i.rule.Track, Volume: i.rule.IsolatedVolume, Duration: i.rule.IsolatedFade}, true
	case i.state == Isolated && p < i.rule.Threshold:
		i.state = Ambient
		return mixer.Fade{Track: i.rule.Track, Volume: i.rule.AmbientVolume, Duration: i.rule.AmbientFade}, true
	}
	return mixer.Fade{}, false
}

// Reset returns to ambient without issuing a fade.
func (i *Isolation) Reset() {
	i.state = Ambient
}

// State returns the current state.
func (i *Isolation) State() IsolationState {
	return i.state
}
