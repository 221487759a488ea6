package beepout

import (
	"math"
	"testing"
)

// constant streams full-scale samples forever.
type constant struct{}

func (constant) Stream(samples [][2]float64) (int, bool) {
	for i := range samples {
		samples[i] = [2]float64{1, 1}
	}
	return len(samples), true
}

func (constant) Err() error { return nil }

func TestGainSet(t *testing.T) {
	g := &gain{streamer: constant{}}
	g.set(0.5)

	buf := make([][2]float64, 8)
	g.Stream(buf)
	for _, s := range buf {
		if s[0] != 0.5 || s[1] != 0.5 {
			t.Fatalf("Expected 0.5, got %v", s)
		}
	}
}

func TestGainRamp(t *testing.T) {
	g := &gain{streamer: constant{}}
	g.ramp(0, 1, 4)

	buf := make([][2]float64, 6)
	g.Stream(buf)

	want := []float64{0.25, 0.5, 0.75, 1, 1, 1}
	for i, s := range buf {
		if math.Abs(s[0]-want[i]) > 1e-9 {
			t.Errorf("sample %d: expected %v, got %v", i, want[i], s[0])
		}
	}
}

func TestGainZeroLengthRamp(t *testing.T) {
	g := &gain{streamer: constant{}}
	g.ramp(0.2, 0.7, 0)
	if g.level != 0.7 || g.left != 0 {
		t.Errorf("Expected immediate jump to 0.7, got level=%v left=%d", g.level, g.left)
	}
}
