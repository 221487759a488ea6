package mixer

import (
	"sync"
	"time"

	"github.com/KikinaStudio/kikiscroll/pkg/narrative"
)

// Op names a backend call.
type Op string

// Backend operations seen by a Recorder.
const (
	OpPlay Op = "play"
	OpRamp Op = "ramp"
	OpStop Op = "stop"
)

// Call is one recorded backend call.
type Call struct {
	Op       Op
	Track    narrative.Track
	From     float64
	To       float64
	Duration time.Duration
}

// Recorder is a Backend that records calls instead of playing audio.
// It is safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
	err   error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes every later call return err.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	return r.err
}

// Play implements Backend.
func (r *Recorder) Play(track narrative.Track, volume float64) error {
	return r.record(Call{Op: OpPlay, Track: track, To: volume})
}

// Ramp implements Backend.
func (r *Recorder) Ramp(track narrative.Track, from, to float64, d time.Duration) error {
	return r.record(Call{Op: OpRamp, Track: track, From: from, To: to, Duration: d})
}

// Stop implements Backend.
func (r *Recorder) Stop(track narrative.Track) error {
	return r.record(Call{Op: OpStop, Track: track})
}

// Calls returns a copy of every recorded call.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Ramps returns recorded ramps, optionally restricted to the given tracks.
func (r *Recorder) Ramps(tracks ...narrative.Track) []Call {
	want := make(map[narrative.Track]bool, len(tracks))
	for _, t := range tracks {
		want[t] = true
	}

	var out []Call
	for _, c := range r.Calls() {
		if c.Op != OpRamp {
			continue
		}
		if len(want) > 0 && !want[c.Track] {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Reset forgets every recorded call.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
