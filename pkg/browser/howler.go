// Package browser binds the engine to the page when it is compiled with
// GopherJS: Howler plays the tracks, GSAP ScrollTrigger reports the pinned
// sections, getUserMedia opens the webcam and face-api.js reads smiles.
package browser

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gopherjs/gopherjs/js"

	"github.com/KikinaStudio/kikiscroll/pkg/narrative"
)

// Howler is a mixer.Backend over howler.js. Every track is a looping Howl
// created up front so the browser preloads it before the visitor starts.
type Howler struct {
	mu    sync.Mutex
	howls map[narrative.Track]*js.Object
}

// NewHowler creates one Howl per track, loading sources from base.
func NewHowler(base string, specs []narrative.TrackSpec) (*Howler, error) {
	ctor := js.Global.Get("Howl")
	if ctor == nil || ctor == js.Undefined {
		return nil, fmt.Errorf("howler.js is not loaded")
	}

	h := &Howler{howls: make(map[narrative.Track]*js.Object, len(specs))}
	for _, s := range specs {
		h.howls[s.Name] = ctor.New(howlOptions(base, s))
	}
	return h, nil
}

func howlOptions(base string, s narrative.TrackSpec) map[string]any {
	return map[string]any{
		"src":     []string{TrackURL(base, s.Source)},
		"loop":    true,
		"volume":  0,
		"preload": true,
	}
}

// TrackURL joins a base URL and a track source.
func TrackURL(base, source string) string {
	if base == "" {
		return source
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(source, "/")
}

func (h *Howler) howl(track narrative.Track) (*js.Object, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	howl, ok := h.howls[track]
	if !ok {
		return nil, fmt.Errorf("unknown track %s", track)
	}
	return howl, nil
}

// Play implements mixer.Backend.
func (h *Howler) Play(track narrative.Track, volume float64) error {
	howl, err := h.howl(track)
	if err != nil {
		return err
	}
	howl.Call("volume", volume)
	if !howl.Call("playing").Bool() {
		howl.Call("play")
	}
	return nil
}

// Ramp implements mixer.Backend with Howl.fade.
func (h *Howler) Ramp(track narrative.Track, from, to float64, d time.Duration) error {
	howl, err := h.howl(track)
	if err != nil {
		return err
	}
	howl.Call("fade", from, to, FadeMillis(d))
	return nil
}

// Stop implements mixer.Backend.
func (h *Howler) Stop(track narrative.Track) error {
	howl, err := h.howl(track)
	if err != nil {
		return err
	}
	howl.Call("stop")
	return nil
}

// Unload frees every Howl.
func (h *Howler) Unload() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for t, howl := range h.howls {
		howl.Call("unload")
		delete(h.howls, t)
	}
}

// FadeMillis converts a fade length for Howl.fade, which takes whole
// milliseconds and treats 0 as a jump.
func FadeMillis(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	ms := int(d / time.Millisecond)
	if ms == 0 {
		ms = 1
	}
	return ms
}
