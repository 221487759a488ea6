package expression

import (
	"time"

	"github.com/KikinaStudio/kikiscroll/pkg/mixer"
	"github.com/KikinaStudio/kikiscroll/pkg/narrative"
)

// Bridge maps signals to the happy/sad crossfade.
type Bridge struct {
	rule narrative.ExpressionRule
}

// NewBridge creates a Bridge for rule.
func NewBridge(rule narrative.ExpressionRule) *Bridge {
	return &Bridge{rule: rule}
}

// Fades returns the happy and sad fades for s, happy first.
func (b *Bridge) Fades(s Signal) []mixer.Fade {
	r := b.rule
	switch s {
	case Smiling:
		return b.pair(r.Volume, 0, r.Fade)
	case NotSmiling:
		return b.pair(0, r.Volume, r.Fade)
	default:
		return b.pair(0, 0, r.UnknownFade)
	}
}

// Silence fades both tracks out over d.
func (b *Bridge) Silence(d time.Duration) []mixer.Fade {
	return b.pair(0, 0, d)
}

func (b *Bridge) pair(happy, sad float64, d time.Duration) []mixer.Fade {
	return []mixer.Fade{
		{Track: b.rule.Happy, Volume: happy, Duration: d},
		{Track: b.rule.Sad, Volume: sad, Duration: d},
	}
}
