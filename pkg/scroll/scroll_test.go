package scroll

import (
	"fmt"
	"reflect"
	"testing"
)

type recorder struct {
	calls  []string
	global float64
}

func (r *recorder) OnSectionProgress(s int, p float64) {
	r.calls = append(r.calls, fmt.Sprintf("progress %d %.2f", s, p))
}
func (r *recorder) OnEnter(s int)      { r.calls = append(r.calls, fmt.Sprintf("enter %d", s)) }
func (r *recorder) OnLeave(s int)      { r.calls = append(r.calls, fmt.Sprintf("leave %d", s)) }
func (r *recorder) OnLeaveBack(s int)  { r.calls = append(r.calls, fmt.Sprintf("leave_back %d", s)) }
func (r *recorder) OnScroll(p float64) { r.global = p }

// Pin 1, gap 1: section i pins over [2i, 2i+1].
func newPage(l Listener) *Page {
	return NewPage(3, 1, 1, l)
}

func TestGeometry(t *testing.T) {
	p := newPage(nil)
	if p.Max() != 5 {
		t.Errorf("Expected max 5, got %v", p.Max())
	}
	p.ScrollTo(2.5)
	if s, prog := p.Section(); s != 1 || prog != 0.5 {
		t.Errorf("Expected section 1 at 0.5, got %d at %v", s, prog)
	}
	p.ScrollTo(1.5)
	if s, prog := p.Section(); s != 0 || prog != 1 {
		t.Errorf("Expected section 0 completed in the gap, got %d at %v", s, prog)
	}
	p.ScrollTo(99)
	if p.Position() != 5 || p.Global() != 1 {
		t.Errorf("Expected clamp to the end, got %v (%v)", p.Position(), p.Global())
	}
}

func TestWithinPinOnlyProgress(t *testing.T) {
	r := &recorder{}
	p := newPage(r)
	p.ScrollTo(2.2)
	r.calls = nil

	p.ScrollTo(2.6)
	want := []string{"progress 1 0.60"}
	if !reflect.DeepEqual(r.calls, want) {
		t.Errorf("Expected %v, got %v", want, r.calls)
	}
	if r.global != 2.6/5 {
		t.Errorf("Expected global %v, got %v", 2.6/5, r.global)
	}
}

func TestForwardPass(t *testing.T) {
	r := &recorder{}
	p := newPage(r)
	p.Begin()
	for y := 0.5; y <= 5; y += 0.5 {
		p.ScrollTo(y)
	}

	want := []string{
		"enter 0", "progress 0 0.00",
		"progress 0 0.50",
		"progress 0 1.00",
		"leave 0",
		"enter 1",
		"progress 1 0.50",
		"progress 1 1.00",
		"leave 1",
		"enter 2",
		"progress 2 0.50",
		"progress 2 1.00",
	}
	if !reflect.DeepEqual(r.calls, want) {
		t.Errorf("Expected\n%v\ngot\n%v", want, r.calls)
	}
}

func TestBackwardLeavesBack(t *testing.T) {
	r := &recorder{}
	p := newPage(r)
	p.ScrollTo(5)
	r.calls = nil

	p.ScrollTo(0)
	want := []string{
		"progress 2 0.00", "leave_back 2",
		"progress 1 0.00", "leave_back 1",
		"progress 0 0.00",
	}
	if !reflect.DeepEqual(r.calls, want) {
		t.Errorf("Expected %v, got %v", want, r.calls)
	}
}

func TestJumpCompletesSkippedSections(t *testing.T) {
	p := newPage(nil)
	events := p.ScrollTo(4.5)

	want := []Event{
		{Kind: Progress, Section: 0, Progress: 1},
		{Kind: Leave, Section: 0},
		{Kind: Enter, Section: 1},
		{Kind: Progress, Section: 1, Progress: 1},
		{Kind: Leave, Section: 1},
		{Kind: Enter, Section: 2},
		{Kind: Progress, Section: 2, Progress: 0.5},
	}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("Expected %v, got %v", want, events)
	}
}

func TestNoMoveNoEvents(t *testing.T) {
	p := newPage(nil)
	if events := p.ScrollBy(-1); events != nil {
		t.Errorf("Expected no events at the top, got %v", events)
	}
}

func TestKindString(t *testing.T) {
	if LeaveBack.String() != "leave_back" {
		t.Errorf("Expected leave_back, got %s", LeaveBack)
	}
	if Kind(9).String() != "kind(9)" {
		t.Errorf("Expected kind(9), got %s", Kind(9))
	}
}
