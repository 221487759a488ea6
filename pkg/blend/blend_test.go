package blend

import (
	"math"
	"testing"
)

var thirds = ThreeStage{First: 0.33, Second: 0.66}

func TestWeightsBoundaries(t *testing.T) {
	tests := []struct {
		p    float64
		want [3]float64
	}{
		{0, [3]float64{1, 0, 0}},
		{0.2, [3]float64{1, 0, 0}},
		{0.33, [3]float64{1, 0, 0}},
		{0.66, [3]float64{0, 1, 0}},
		{1, [3]float64{0, 0, 1}},
		{1.4, [3]float64{0, 0, 1}},
		{-0.2, [3]float64{1, 0, 0}},
	}

	for _, tt := range tests {
		got := thirds.Weights(tt.p)
		for i := range got {
			if math.Abs(got[i]-tt.want[i]) > 1e-9 {
				t.Errorf("Weights(%v) = %v, want %v", tt.p, got, tt.want)
				break
			}
		}
	}
}

func TestWeightsSumToOne(t *testing.T) {
	for i := 0; i <= 1000; i++ {
		p := float64(i) / 1000
		w := thirds.Weights(p)
		sum := w[0] + w[1] + w[2]
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("Weights(%v) sum to %v", p, sum)
		}
		nonZero := 0
		for _, v := range w {
			if v < 0 {
				t.Fatalf("Weights(%v) has negative weight %v", p, w)
			}
			if v > 0 {
				nonZero++
			}
		}
		if nonZero > 2 {
			t.Fatalf("Weights(%v) has %d active targets", p, nonZero)
		}
	}
}

func TestLocateMidpoints(t *testing.T) {
	stage, f := thirds.Locate(0.495)
	if stage != 1 || math.Abs(f-0.5) > 1e-9 {
		t.Errorf("Locate(0.495) = %d, %v", stage, f)
	}
	stage, f = thirds.Locate(0.83)
	if stage != 2 || math.Abs(f-0.5) > 1e-9 {
		t.Errorf("Locate(0.83) = %d, %v", stage, f)
	}
}

func TestActive(t *testing.T) {
	tests := []struct {
		p    float64
		want int
	}{
		{0, 0}, {0.1, 0}, {0.329, 0},
		{0.33, 1}, {0.34, 1}, {0.4, 1}, {0.6, 1}, {0.659, 1},
		{0.66, 2}, {0.7, 2}, {0.95, 2}, {1, 2},
	}
	for _, tt := range tests {
		if got := thirds.Active(tt.p); got != tt.want {
			t.Errorf("Active(%v): expected %d, got %d", tt.p, tt.want, got)
		}
	}
}

func TestLocateFirstStageRamps(t *testing.T) {
	stage, tt := thirds.Locate(0.165)
	if stage != 0 || math.Abs(tt-0.5) > 1e-9 {
		t.Errorf("Locate(0.165): expected stage 0 at t=0.5, got %d at %v", stage, tt)
	}
}

func TestLerpClamp(t *testing.T) {
	if got := Lerp(6, 9, 0.5); got != 7.5 {
		t.Errorf("Lerp = %v", got)
	}
	if Clamp(5, 1, 4) != 4 || Clamp(0, 1, 4) != 1 || Clamp(2, 1, 4) != 2 {
		t.Error("Clamp out of range")
	}
}
