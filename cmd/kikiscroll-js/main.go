//go:build js
// +build js

// kikiscroll-js runs the engine inside the page. Build it with
// `gopherjs build ./cmd/kikiscroll-js -o web/kikiscroll.js`; the page must
// load howler.js, gsap with ScrollTrigger and face-api.js first.
package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gopherjs/gopherjs/js"

	"github.com/KikinaStudio/kikiscroll/internal/log"
	"github.com/KikinaStudio/kikiscroll/pkg/browser"
	"github.com/KikinaStudio/kikiscroll/pkg/engine"
	"github.com/KikinaStudio/kikiscroll/pkg/expression"
	"github.com/KikinaStudio/kikiscroll/pkg/mixer"
	"github.com/KikinaStudio/kikiscroll/pkg/narrative"
	"github.com/KikinaStudio/kikiscroll/pkg/scroll"
)

// Page settings, overridable from window.KIKISCROLL before the script loads.
type settings struct {
	Variant  string
	Tracks   string
	Models   string
	Sections string
	Video    string
}

func readSettings() settings {
	s := settings{
		Variant:  narrative.VariantKikina,
		Tracks:   "/tracks",
		Models:   "/models",
		Sections: ".section",
		Video:    "webcam",
	}
	cfg := js.Global.Get("KIKISCROLL")
	if cfg == js.Undefined {
		return s
	}
	for key, dst := range map[string]*string{
		"variant": &s.Variant, "tracks": &s.Tracks, "models": &s.Models,
		"sections": &s.Sections, "video": &s.Video,
	} {
		if v := cfg.Get(key); v != js.Undefined && v != nil {
			*dst = v.String()
		}
	}
	return s
}

func main() {
	log.Init("info")
	logger := log.With("component", "browser")
	s := readSettings()

	story, err := narrative.Lookup(s.Variant)
	if err != nil {
		logger.Error("narrative", "error", err)
		return
	}

	howler, err := browser.NewHowler(s.Tracks, story.Tracks)
	if err != nil {
		logger.Error("audio", "error", err)
		return
	}
	mix := mixer.New(story.Tracks, howler, mixer.WithLogger(logger))

	opts := []engine.Option{
		engine.WithRenderer(browser.VisualHook("kikiscrollVisual")),
		engine.WithLogger(logger),
	}
	cam, err := browser.NewMediaCamera(s.Video)
	if err != nil {
		logger.Warn("camera disabled", "error", err)
	} else {
		// Detection runs in the page; the engine only owns the camera.
		opts = append(opts, engine.WithCamera(cam, nil))
	}
	eng := engine.New(story, mix, opts...)

	n, err := browser.BindSections(s.Sections, scroll.DefaultPin, eng)
	if err != nil {
		logger.Error("scroll", "error", err)
		return
	}
	if n != len(story.Sections) {
		logger.Warn("section count mismatch", "page", n, "narrative", len(story.Sections))
	}

	c := &camera{
		engine:    eng,
		cam:       cam,
		models:    s.Models,
		threshold: story.Expression.SmileThreshold,
		interval:  story.Expression.PollInterval,
	}
	browser.OnClick("start", eng.Start)
	browser.OnClick("camera", c.toggle)
	browser.Export("kikiscroll", eng, c.toggle)

	js.Global.Get("window").Call("addEventListener", "pagehide", func() {
		eng.Close()
		howler.Unload()
	})
	logger.Info("ready", "narrative", story.Name, "sections", n)
}

// camera toggles the webcam and runs face-api while it is on.
type camera struct {
	engine    *engine.Engine
	cam       *browser.MediaCamera
	models    string
	threshold float64
	interval  time.Duration

	mu     sync.Mutex
	face   *browser.FaceAPI
	cancel context.CancelFunc
}

func (c *camera) toggle() {
	if c.cam == nil {
		return
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
		c.mu.Unlock()
		c.engine.DeactivateCamera()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	if err := c.engine.ActivateCamera(ctx); err != nil {
		c.stop(cancel)
		if !errors.Is(err, context.Canceled) && !errors.Is(err, expression.ErrSessionSuperseded) {
			log.Warn("camera unavailable", "error", err)
		}
		return
	}

	face, err := c.detector(ctx)
	if err != nil {
		log.Warn("expression detection unavailable", "error", err)
		return
	}
	go face.Watch(ctx, c.interval, func(sig expression.Signal) {
		// The engine releases the camera on its own when the visitor
		// scrolls out of the webcam section.
		if !c.engine.CameraActive() {
			c.stop(cancel)
			return
		}
		c.engine.OnExpression(sig)
	})
}

func (c *camera) stop(cancel context.CancelFunc) {
	cancel()
	c.mu.Lock()
	c.cancel = nil
	c.mu.Unlock()
}

// detector loads face-api once.
func (c *camera) detector(ctx context.Context) (*browser.FaceAPI, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.face != nil {
		return c.face, nil
	}
	face, err := browser.LoadFaceAPI(ctx, c.models, c.cam.Video(), c.threshold)
	if err != nil {
		return nil, err
	}
	c.face = face
	return face, nil
}
