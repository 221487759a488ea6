// Package mixer owns the fixed set of looping narrative tracks and their
// volumes. Directors never touch playback directly: they ask the mixer to
// fade a track to a target, and the mixer forwards non-redundant ramps to a
// Backend (local speaker, remote browser, Howler, or a recorder in tests).
package mixer

import (
	"errors"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/KikinaStudio/kikiscroll/internal/log"
	"github.com/KikinaStudio/kikiscroll/pkg/narrative"
)

// DefaultEpsilon is the distance under which a fade target counts as reached.
const DefaultEpsilon = 0.01

// ErrUnknownTrack is logged when a fade names a track outside the mix.
var ErrUnknownTrack = errors.New("unknown track")

// Fade is a request to move one track to Volume over Duration.
type Fade struct {
	Track    narrative.Track `json:"track"`
	Volume   float64         `json:"volume"`
	Duration time.Duration   `json:"duration"`
}

// Fader is the part of the mixer the directors depend on.
type Fader interface {
	Fade(track narrative.Track, volume float64, d time.Duration) bool
}

// Backend performs the actual playback.
type Backend interface {
	// Play starts a track looping at volume.
	Play(track narrative.Track, volume float64) error
	// Ramp moves a playing track linearly from one volume to another.
	Ramp(track narrative.Track, from, to float64, d time.Duration) error
	// Stop halts a track.
	Stop(track narrative.Track) error
}

// TrackState is a point-in-time view of one track.
type TrackState struct {
	Track  narrative.Track `json:"track"`
	Volume float64         `json:"volume"`
	Target float64         `json:"target"`
	Fading bool            `json:"fading"`
}

type level struct {
	spec  narrative.TrackSpec
	from  float64
	to    float64
	start time.Time
	dur   time.Duration
}

// at returns the ramp value at now.
func (l *level) at(now time.Time) float64 {
	if l.dur <= 0 {
		return l.to
	}
	elapsed := now.Sub(l.start)
	if elapsed >= l.dur {
		return l.to
	}
	if elapsed <= 0 {
		return l.from
	}
	return l.from + (l.to-l.from)*float64(elapsed)/float64(l.dur)
}

// Mixer tracks current and target volume for a closed set of tracks.
type Mixer struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
	epsilon float64

	mu      sync.Mutex
	order   []narrative.Track
	levels  map[narrative.Track]*level
	playing bool
}

// Option configures a Mixer.
type Option func(*Mixer)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Mixer) {
		m.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mixer) {
		m.logger = l
	}
}

// WithEpsilon overrides DefaultEpsilon.
func WithEpsilon(eps float64) Option {
	return func(m *Mixer) {
		m.epsilon = eps
	}
}

// New creates a mixer over specs. Every track starts silent until StartAll.
func New(specs []narrative.TrackSpec, backend Backend, opts ...Option) *Mixer {
	m := &Mixer{
		backend: backend,
		now:     time.Now,
		epsilon: DefaultEpsilon,
		levels:  make(map[narrative.Track]*level, len(specs)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = log.Or(m.logger).With("component", "mixer")

	for _, s := range specs {
		m.order = append(m.order, s.Name)
		m.levels[s.Name] = &level{spec: s}
	}
	return m
}

// StartAll plays every track at its initial volume. It is a no-op while the
// mix is already playing and reports whether it started anything.
func (m *Mixer) StartAll() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.playing {
		return false
	}
	m.playing = true

	now := m.now()
	for _, name := range m.order {
		l := m.levels[name]
		v := l.spec.InitialVolume
		*l = level{spec: l.spec, from: v, to: v, start: now}
		if err := m.backend.Play(name, v); err != nil {
			m.logger.Warn("play failed", "track", name, "error", err)
		}
	}
	m.logger.Info("all tracks started", "tracks", len(m.order))
	return true
}

// Fade ramps track to volume over d. Requests whose target is already
// within epsilon of the current target are dropped, so repeating the same
// fade every frame issues a single ramp. Unknown tracks are logged and
// ignored. Fade reports whether a ramp was issued.
func (m *Mixer) Fade(track narrative.Track, volume float64, d time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.levels[track]
	if !ok {
		m.logger.Warn("fade ignored", "track", track, "error", ErrUnknownTrack)
		return false
	}

	volume = math.Max(0, math.Min(1, volume))
	if math.Abs(l.to-volume) < m.epsilon {
		return false
	}

	now := m.now()
	from := l.at(now)
	l.from, l.to, l.start, l.dur = from, volume, now, d

	if err := m.backend.Ramp(track, from, volume, d); err != nil {
		m.logger.Warn("ramp failed", "track", track, "error", err)
	}
	m.logger.Debug("fade", "track", track, "from", round(from), "to", volume, "duration", d)
	return true
}

// Apply issues every fade in order and returns how many produced a ramp.
func (m *Mixer) Apply(fades []Fade) int {
	n := 0
	for _, f := range fades {
		if m.Fade(f.Track, f.Volume, f.Duration) {
			n++
		}
	}
	return n
}

// Volume returns the current, possibly mid-ramp, volume of track.
func (m *Mixer) Volume(track narrative.Track) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.levels[track]
	if !ok {
		return 0, false
	}
	return l.at(m.now()), true
}

// Target returns the volume track is at or heading to.
func (m *Mixer) Target(track narrative.Track) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.levels[track]
	if !ok {
		return 0, false
	}
	return l.to, true
}

// Has reports whether track belongs to the mix.
func (m *Mixer) Has(track narrative.Track) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.levels[track]
	return ok
}

// Playing reports whether StartAll has run since the last StopAll.
func (m *Mixer) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

// StopAll halts every track and silences the mix. A later StartAll
// restarts from the initial volumes.
func (m *Mixer) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.playing {
		return
	}
	m.playing = false

	for _, name := range m.order {
		l := m.levels[name]
		*l = level{spec: l.spec}
		if err := m.backend.Stop(name); err != nil {
			m.logger.Warn("stop failed", "track", name, "error", err)
		}
	}
	m.logger.Info("all tracks stopped")
}

// Snapshot returns the state of every track, sorted by name.
func (m *Mixer) Snapshot() []TrackState {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	out := make([]TrackState, 0, len(m.levels))
	for name, l := range m.levels {
		v := l.at(now)
		out = append(out, TrackState{
			Track:  name,
			Volume: round(v),
			Target: l.to,
			Fading: math.Abs(v-l.to) > 1e-9,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Track < out[j].Track })
	return out
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
