// Package scroll simulates a page of pinned sections for hosts without a
// browser. Each section pins for a fixed distance, and a gap of ordinary
// scrolling separates consecutive pins. Positions are in viewport heights.
package scroll

import (
	"fmt"
	"sync"

	"github.com/KikinaStudio/kikiscroll/pkg/blend"
)

// Default page geometry in viewport heights.
const (
	DefaultPin = 1.5
	DefaultGap = 1.0
)

// Listener receives scroll callbacks. *engine.Engine implements it.
type Listener interface {
	OnSectionProgress(section int, p float64)
	OnEnter(section int)
	OnLeave(section int)
	OnLeaveBack(section int)
	OnScroll(p float64)
}

// Kind is the type of a scroll event.
type Kind int

const (
	Progress Kind = iota
	Enter
	Leave
	LeaveBack
)

func (k Kind) String() string {
	switch k {
	case Progress:
		return "progress"
	case Enter:
		return "enter"
	case Leave:
		return "leave"
	case LeaveBack:
		return "leave_back"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one section callback.
type Event struct {
	Kind     Kind
	Section  int
	Progress float64
}

// Page tracks a scroll position over pinned sections.
type Page struct {
	sections int
	pin, gap float64
	listener Listener

	mu sync.Mutex
	y  float64
}

// NewPage creates a page of n sections. l may be nil.
func NewPage(n int, pin, gap float64, l Listener) *Page {
	if pin <= 0 {
		pin = DefaultPin
	}
	if gap < 0 {
		gap = DefaultGap
	}
	if n < 1 {
		n = 1
	}
	return &Page{sections: n, pin: pin, gap: gap, listener: l}
}

func (p *Page) start(i int) float64 { return float64(i) * (p.pin + p.gap) }
func (p *Page) end(i int) float64   { return p.start(i) + p.pin }

func (p *Page) progress(i int, y float64) float64 {
	return blend.Clamp01((y - p.start(i)) / p.pin)
}

// Max is the furthest position: the end of the last pin.
func (p *Page) Max() float64 {
	return p.end(p.sections - 1)
}

// Position returns the current position.
func (p *Page) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.y
}

// Global returns page progress in [0, 1].
func (p *Page) Global() float64 {
	return p.Position() / p.Max()
}

// Section returns the last section whose pin has started and its progress.
func (p *Page) Section() (int, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := 0
	for i+1 < p.sections && p.y >= p.start(i+1) {
		i++
	}
	return i, p.progress(i, p.y)
}

// Begin announces the first section, pinned at the top of the page.
func (p *Page) Begin() []Event {
	p.mu.Lock()
	p.y = 0
	p.mu.Unlock()

	events := []Event{{Kind: Enter}, {Kind: Progress}}
	p.dispatch(events, 0)
	return events
}

// ScrollBy moves by dy viewport heights.
func (p *Page) ScrollBy(dy float64) []Event {
	return p.ScrollTo(p.Position() + dy)
}

// ScrollTo moves to y, clamped to the page, and returns the callbacks the
// move triggers in the order they fire. A section only reports progress
// when its clamped progress changed, so jumping past a section reports it
// completed before it leaves.
func (p *Page) ScrollTo(y float64) []Event {
	p.mu.Lock()
	y = blend.Clamp(y, 0, p.Max())
	y0 := p.y
	p.y = y
	p.mu.Unlock()

	if y == y0 {
		return nil
	}

	var events []Event
	if y > y0 {
		for i := 0; i < p.sections; i++ {
			if y0 < p.start(i) && y >= p.start(i) {
				events = append(events, Event{Kind: Enter, Section: i})
			}
			if p0, p1 := p.progress(i, y0), p.progress(i, y); p1 != p0 {
				events = append(events, Event{Kind: Progress, Section: i, Progress: p1})
			}
			if y0 <= p.end(i) && y > p.end(i) {
				events = append(events, Event{Kind: Leave, Section: i})
			}
		}
	} else {
		for i := p.sections - 1; i >= 0; i-- {
			if p0, p1 := p.progress(i, y0), p.progress(i, y); p1 != p0 {
				events = append(events, Event{Kind: Progress, Section: i, Progress: p1})
			}
			if y0 >= p.start(i) && y < p.start(i) {
				events = append(events, Event{Kind: LeaveBack, Section: i})
			}
		}
	}

	p.dispatch(events, y/p.Max())
	return events
}

func (p *Page) dispatch(events []Event, global float64) {
	if p.listener == nil {
		return
	}
	for _, ev := range events {
		switch ev.Kind {
		case Enter:
			p.listener.OnEnter(ev.Section)
		case Progress:
			p.listener.OnSectionProgress(ev.Section, ev.Progress)
		case Leave:
			p.listener.OnLeave(ev.Section)
		case LeaveBack:
			p.listener.OnLeaveBack(ev.Section)
		}
	}
	p.listener.OnScroll(global)
}
