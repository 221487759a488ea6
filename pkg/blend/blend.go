// Package blend holds the progress interpolation helpers shared by the audio
// and visual directors, so what is heard and what is seen move on the same
// schedule.
package blend

// ThreeStage splits [0,1] progress into three stages at First and Second.
// Stage 0 holds the first target, stage 1 crossfades first->second and
// stage 2 crossfades second->third.
type ThreeStage struct {
	First  float64
	Second float64
}

// Locate returns the stage index for p and the local fraction t within it.
// In stage 0, t runs from 0 to 1 over [0, First]; Weights ignores it but
// visual ramps use it. The final stage reaches t=1 exactly at p=1.
func (s ThreeStage) Locate(p float64) (stage int, t float64) {
	p = Clamp01(p)
	switch {
	case p < s.First:
		return 0, p / s.First
	case p < s.Second:
		return 1, (p - s.First) / (s.Second - s.First)
	default:
		return 2, Clamp01((p - s.Second) / (1 - s.Second))
	}
}

// Weights returns linear weights for the three targets at p. Exactly two
// weights are non-zero during a crossfade and they always sum to 1.
func (s ThreeStage) Weights(p float64) [3]float64 {
	stage, t := s.Locate(p)
	switch stage {
	case 0:
		return [3]float64{1, 0, 0}
	case 1:
		return [3]float64{1 - t, t, 0}
	default:
		return [3]float64{0, 1 - t, t}
	}
}

// Active returns the stage p falls in: 0 below First, 1 below Second, 2
// from Second on. Labels light by stage, not by crossfade weight.
func (s ThreeStage) Active(p float64) int {
	stage, _ := s.Locate(p)
	return stage
}

// Lerp interpolates linearly from a to b.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Clamp01 clamps v to [0,1].
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Clamp clamps v to [lo,hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
