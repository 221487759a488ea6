package beepout

import "github.com/gopxl/beep"

// gain scales a streamer by a linear volume that can ramp over a number of
// samples. It is only touched under speaker.Lock or from the audio callback.
type gain struct {
	streamer beep.Streamer

	level  float64
	target float64
	step   float64
	left   int
}

func (g *gain) set(v float64) {
	g.level, g.target, g.step, g.left = v, v, 0, 0
}

func (g *gain) ramp(from, to float64, samples int) {
	if samples <= 0 {
		g.set(to)
		return
	}
	g.level = from
	g.target = to
	g.step = (to - from) / float64(samples)
	g.left = samples
}

// Stream implements beep.Streamer.
func (g *gain) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = g.streamer.Stream(samples)
	for i := range samples[:n] {
		if g.left > 0 {
			g.level += g.step
			g.left--
			if g.left == 0 {
				g.level = g.target
			}
		}
		samples[i][0] *= g.level
		samples[i][1] *= g.level
	}
	return n, ok
}

// Err implements beep.Streamer.
func (g *gain) Err() error {
	return g.streamer.Err()
}
