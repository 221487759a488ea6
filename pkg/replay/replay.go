package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/KikinaStudio/kikiscroll/pkg/mixer"
	"github.com/KikinaStudio/kikiscroll/pkg/protocol"
	"github.com/KikinaStudio/kikiscroll/pkg/scroll"
)

// Pass is a scripted scroll from one position to another.
type Pass struct {
	From     float64       // Start position in viewport heights
	To       float64       // Target position; beyond the page is clamped
	Step     float64       // Distance per tick (default 0.05)
	Interval time.Duration // Pause between ticks (default 33ms)
}

// Run scrolls page through p, pausing between ticks, until p.To is reached
// or ctx ends. The page dispatches to whatever listener it was built with.
func (p Pass) Run(ctx context.Context, page *scroll.Page) error {
	step := p.Step
	if step <= 0 {
		step = 0.05
	}
	interval := p.Interval
	if interval <= 0 {
		interval = 33 * time.Millisecond
	}
	if p.To < p.From {
		step = -step
	}

	page.ScrollTo(p.From)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for y := p.From; ; {
		y += step
		if (step > 0 && y >= p.To) || (step < 0 && y <= p.To) {
			page.ScrollTo(p.To)
			return nil
		}
		page.ScrollTo(y)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Mirror applies the host's audio commands to a local backend, so a
// terminal can hear what the browser would play.
func Mirror(backend mixer.Backend, msg *protocol.Message) error {
	switch msg.Type {
	case protocol.TypePlay:
		var d protocol.PlayData
		if err := msg.ParseData(&d); err != nil {
			return err
		}
		return backend.Play(d.Track, d.Volume)
	case protocol.TypeFade:
		d, err := protocol.ParseFadeData(msg)
		if err != nil {
			return err
		}
		return backend.Ramp(d.Track, d.From, d.Volume, d.Duration())
	case protocol.TypeStop:
		var d protocol.StopData
		if err := msg.ParseData(&d); err != nil {
			return err
		}
		return backend.Stop(d.Track)
	}
	return nil
}

// Describe renders a host message as one terminal line.
func Describe(msg *protocol.Message) string {
	switch msg.Type {
	case protocol.TypePlay:
		var d protocol.PlayData
		if msg.ParseData(&d) == nil {
			return fmt.Sprintf("play  %-15s %.2f", d.Track, d.Volume)
		}
	case protocol.TypeFade:
		if d, err := protocol.ParseFadeData(msg); err == nil {
			return fmt.Sprintf("fade  %-15s %.2f → %.2f in %s", d.Track, d.From, d.Volume, d.Duration())
		}
	case protocol.TypeStop:
		var d protocol.StopData
		if msg.ParseData(&d) == nil {
			return fmt.Sprintf("stop  %s", d.Track)
		}
	case protocol.TypeState:
		var d protocol.StateData
		if msg.ParseData(&d) == nil {
			return fmt.Sprintf("state section=%d progress=%.2f isolation=%s density=%d camera=%v",
				d.Section, d.Progress, d.Isolation, d.Density, d.Camera)
		}
	case protocol.TypeError:
		var d protocol.ErrorData
		if msg.ParseData(&d) == nil {
			return fmt.Sprintf("error %s: %s", d.Request, d.Message)
		}
	case protocol.TypeNarrative:
		var d protocol.NarrativeData
		if msg.ParseData(&d) == nil {
			return fmt.Sprintf("narrative %s visitor=%s sections=%d tracks=%d", d.Name, d.Visitor, len(d.Sections), len(d.Tracks))
		}
	}
	return string(msg.Type)
}
