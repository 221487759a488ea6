// Package beepout plays the narrative tracks on the local sound card with
// gopxl/beep. Each track is decoded once, looped forever and routed through
// a gain stage that the mixer ramps.
package beepout

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/wav"

	"github.com/KikinaStudio/kikiscroll/pkg/narrative"
)

const sampleRate = beep.SampleRate(48000)

type voice struct {
	source beep.StreamSeekCloser
	gain   *gain
	ctrl   *beep.Ctrl
	added  bool
}

// Backend is a mixer.Backend on the default audio device.
type Backend struct {
	mu     sync.Mutex
	mixer  *beep.Mixer
	voices map[narrative.Track]*voice
	closed bool
}

// Open decodes every track from dir and starts the speaker.
func Open(dir string, specs []narrative.TrackSpec) (*Backend, error) {
	b := &Backend{
		mixer:  &beep.Mixer{},
		voices: make(map[narrative.Track]*voice, len(specs)),
	}

	for _, s := range specs {
		v, err := load(filepath.Join(dir, s.Source))
		if err != nil {
			b.closeVoices()
			return nil, fmt.Errorf("track %s: %w", s.Name, err)
		}
		b.voices[s.Name] = v
	}

	if err := speaker.Init(sampleRate, sampleRate.N(100*time.Millisecond)); err != nil {
		b.closeVoices()
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	speaker.Play(b.mixer)
	return b, nil
}

func load(path string) (*voice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var (
		s      beep.StreamSeekCloser
		format beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		s, format, err = mp3.Decode(f)
	case ".wav":
		s, format, err = wav.Decode(f)
	default:
		err = fmt.Errorf("unsupported audio format %q", filepath.Ext(path))
	}
	if err != nil {
		f.Close()
		return nil, err
	}

	var looped beep.Streamer = beep.Loop(-1, s)
	if format.SampleRate != sampleRate {
		looped = beep.Resample(4, format.SampleRate, sampleRate, looped)
	}
	g := &gain{streamer: looped}
	return &voice{
		source: s,
		gain:   g,
		ctrl:   &beep.Ctrl{Streamer: g, Paused: true},
	}, nil
}

func (b *Backend) voice(track narrative.Track) (*voice, error) {
	if b.closed {
		return nil, fmt.Errorf("backend closed")
	}
	v, ok := b.voices[track]
	if !ok {
		return nil, fmt.Errorf("no audio for track %s", track)
	}
	return v, nil
}

// Play implements mixer.Backend.
func (b *Backend) Play(track narrative.Track, volume float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, err := b.voice(track)
	if err != nil {
		return err
	}

	speaker.Lock()
	defer speaker.Unlock()
	v.gain.set(volume)
	v.ctrl.Paused = false
	if !v.added {
		b.mixer.Add(v.ctrl)
		v.added = true
	}
	return nil
}

// Ramp implements mixer.Backend.
func (b *Backend) Ramp(track narrative.Track, from, to float64, d time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, err := b.voice(track)
	if err != nil {
		return err
	}

	speaker.Lock()
	v.gain.ramp(from, to, sampleRate.N(d))
	speaker.Unlock()
	return nil
}

// Stop implements mixer.Backend. The track rewinds so a later Play starts
// from the top.
func (b *Backend) Stop(track narrative.Track) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, err := b.voice(track)
	if err != nil {
		return err
	}

	speaker.Lock()
	defer speaker.Unlock()
	v.ctrl.Paused = true
	v.gain.set(0)
	return v.source.Seek(0)
}

// Close silences the speaker and releases decoders.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	speaker.Clear()
	b.closeVoices()
	return nil
}

func (b *Backend) closeVoices() {
	for _, v := range b.voices {
		v.source.Close()
	}
}
