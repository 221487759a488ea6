// Package engine runs one scrollytelling narrative: it receives scroll and
// camera events, asks the directors for targets and pushes fades to the
// mixer and frames to the renderer.
//
// All event handlers serialize on one mutex, so hosts may deliver events
// from any goroutine. Camera activation is the only call that blocks; it
// waits on the permission prompt without holding the lock.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/KikinaStudio/kikiscroll/internal/log"
	"github.com/KikinaStudio/kikiscroll/pkg/blend"
	"github.com/KikinaStudio/kikiscroll/pkg/director"
	"github.com/KikinaStudio/kikiscroll/pkg/expression"
	"github.com/KikinaStudio/kikiscroll/pkg/mixer"
	"github.com/KikinaStudio/kikiscroll/pkg/narrative"
)

// ErrCameraUnavailable is returned when the camera is requested outside the
// webcam section or no camera is configured.
var ErrCameraUnavailable = errors.New("camera unavailable")

// Renderer consumes visual targets and smooths towards them itself.
type Renderer interface {
	Render(f director.Frame)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(director.Frame)

// Render implements Renderer.
func (f RendererFunc) Render(frame director.Frame) { f(frame) }

// Option configures an Engine.
type Option func(*Engine)

// WithRenderer sets the frame consumer.
func WithRenderer(r Renderer) Option {
	return func(e *Engine) {
		e.renderer = r
	}
}

// WithCamera enables the webcam section. models may be nil when signals
// are fed through OnExpression by an external detector.
func WithCamera(cam expression.Camera, models *expression.Models) Option {
	return func(e *Engine) {
		e.camera = cam
		e.models = models
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// Engine is the scroll-to-audio/visual state machine of one visitor.
type Engine struct {
	cfg      *narrative.Config
	mix      *mixer.Mixer
	audio    *director.AudioDirector
	visual   *director.VisualDirector
	bridge   *expression.Bridge
	renderer Renderer
	logger   *slog.Logger

	camera  expression.Camera
	models  *expression.Models
	session *expression.Session

	mu        sync.Mutex
	started   bool
	closed    bool
	section   int
	progress  float64
	scroll    float64
	isolation *director.Isolation
	density   *director.Density
	camActive bool
	signal    expression.Signal

	// dirty is set when a non-drone track was raised since the last
	// reset; resets are skipped while it is clear so a transition that
	// fires leave, leave-back and a section change resets once.
	dirty bool
}

// New creates an engine for cfg playing through mix. The engine starts in
// section 0 and stays silent until Start.
func New(cfg *narrative.Config, mix *mixer.Mixer, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		mix:       mix,
		audio:     director.NewAudio(cfg),
		visual:    director.NewVisual(cfg),
		bridge:    expression.NewBridge(cfg.Expression),
		isolation: director.NewIsolation(cfg.Isolation),
		density:   director.NewDensity(cfg.Density),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = log.Or(e.logger).With("component", "engine", "narrative", cfg.Name)

	if e.camera != nil {
		e.session = expression.NewSession(e.camera, e.models, cfg.Expression.PollInterval, e.OnExpression,
			expression.WithSessionLogger(e.logger))
	}
	return e
}

// Config returns the narrative being played.
func (e *Engine) Config() *narrative.Config {
	return e.cfg
}

// Start launches the sound experience: every track starts at its initial
// volume and the directors begin to act. Later calls are no-ops.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.started || e.closed {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mix.StartAll()
	e.logger.Info("experience started", "section", e.section)
	e.evaluate()
	frame := e.frame()
	e.mu.Unlock()

	e.render(frame)
}

// OnSectionProgress handles a per-frame (section, progress) update.
func (e *Engine) OnSectionProgress(section int, p float64) {
	e.mu.Lock()
	if !e.accept(section) {
		e.mu.Unlock()
		return
	}
	e.moveTo(section)
	e.progress = blend.Clamp01(p)
	e.evaluate()
	frame := e.frame()
	e.mu.Unlock()

	e.render(frame)
}

// OnEnter handles a section becoming pinned. Controllers of the section
// restart from their initial state and the section's entry fades play.
func (e *Engine) OnEnter(section int) {
	e.mu.Lock()
	if !e.accept(section) {
		e.mu.Unlock()
		return
	}
	e.moveTo(section)
	e.resetControllers(section)
	if e.started {
		e.apply(e.audio.EnterFades(section))
	}
	frame := e.frame()
	e.mu.Unlock()

	e.render(frame)
}

// OnLeave handles scrolling forward past a section.
func (e *Engine) OnLeave(section int) {
	e.leave(section, "leave")
}

// OnLeaveBack handles scrolling back above a section.
func (e *Engine) OnLeaveBack(section int) {
	e.leave(section, "leave_back")
}

func (e *Engine) leave(section int, event string) {
	e.mu.Lock()
	if !e.accept(section) {
		e.mu.Unlock()
		return
	}
	e.logger.Debug("section lifecycle", "event", event, "section", section)
	e.reset(e.cfg.Transition.LeaveFade)
	e.resetControllers(section)
	frame := e.frame()
	e.mu.Unlock()

	e.render(frame)
}

// OnScroll handles global page progress. It only affects visuals.
func (e *Engine) OnScroll(p float64) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.scroll = blend.Clamp01(p)
	frame := e.frame()
	e.mu.Unlock()

	e.render(frame)
}

// OnExpression handles one detector tick. Ticks are dropped unless the
// webcam section is active with the camera on.
func (e *Engine) OnExpression(s expression.Signal) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started || e.closed || !e.camActive || e.cfg.Feature(e.section) != narrative.FeatureWebcam {
		e.logger.Debug("expression discarded", "signal", s, "section", e.section, "camera", e.camActive)
		return
	}
	if s != e.signal {
		e.logger.Debug("expression changed", "from", e.signal, "to", s)
	}
	e.signal = s
	e.apply(e.bridge.Fades(s))
}

// ActivateCamera asks for camera access and starts expression polling. It
// blocks until the user answers. Denial is logged and leaves the camera
// off; a section change while the prompt is open makes the late answer
// return expression.ErrSessionSuperseded.
func (e *Engine) ActivateCamera(ctx context.Context) error {
	e.mu.Lock()
	if e.session == nil || e.closed || e.cfg.Feature(e.section) != narrative.FeatureWebcam {
		section := e.section
		e.mu.Unlock()
		e.logger.Warn("camera requested outside webcam section", "section", section)
		return ErrCameraUnavailable
	}
	if e.camActive {
		e.mu.Unlock()
		return nil
	}
	session := e.session
	e.mu.Unlock()

	if err := session.Activate(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || !session.Active() || e.cfg.Feature(e.section) != narrative.FeatureWebcam {
		session.Deactivate()
		return expression.ErrSessionSuperseded
	}
	e.camActive = true
	e.signal = expression.Unknown
	e.logger.Info("camera activated")
	return nil
}

// DeactivateCamera is the user toggling the camera off. It reports whether
// the camera was on.
func (e *Engine) DeactivateCamera() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return false
	}
	wasActive := e.camActive
	e.stopCamera(e.cfg.Expression.ToggleOffFade)
	return wasActive
}

// CameraActive reports whether the camera is on.
func (e *Engine) CameraActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.camActive
}

// Close tears the experience down: the camera is released and every track
// stops. The engine ignores events afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	if e.session != nil {
		e.stopCamera(e.cfg.Expression.ExitFade)
	}
	e.closed = true
	e.mix.StopAll()
	e.logger.Info("engine closed")
}

// Frame returns the current visual target.
func (e *Engine) Frame() director.Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frame()
}

// accept validates a section index. Caller holds mu.
func (e *Engine) accept(section int) bool {
	if e.closed {
		return false
	}
	if section < 0 || section >= len(e.cfg.Sections) {
		e.logger.Warn("section out of range", "section", section, "sections", len(e.cfg.Sections))
		return false
	}
	return true
}

// moveTo switches the active section. Leaving the webcam section stops the
// camera (and supersedes a pending request); every change resets the
// non-drone tracks. Caller holds mu.
func (e *Engine) moveTo(section int) {
	if section == e.section {
		return
	}
	prev := e.section
	e.section = section
	e.progress = 0
	e.logger.Debug("section changed", "from", prev, "to", section)

	if e.cfg.Feature(prev) == narrative.FeatureWebcam && e.session != nil {
		e.stopCamera(e.cfg.Expression.ExitFade)
	}
	e.resetControllers(prev)
	e.resetControllers(section)
	e.reset(e.cfg.Transition.ChangeFade)
}

// resetControllers returns the controller hosted by section to its
// initial state. Caller holds mu.
func (e *Engine) resetControllers(section int) {
	switch e.cfg.Feature(section) {
	case narrative.FeatureIsolation:
		e.isolation.Reset()
	case narrative.FeatureDensity:
		e.density.Reset()
	}
}

// evaluate applies the progress-driven rules of the active section. Caller
// holds mu.
func (e *Engine) evaluate() {
	if !e.started {
		return
	}
	switch e.cfg.Feature(e.section) {
	case narrative.FeatureIsolation:
		if fade, ok := e.isolation.Update(e.progress); ok {
			e.logger.Debug("isolation toggled", "state", e.isolation.State(), "progress", e.progress)
			e.apply([]mixer.Fade{fade})
		}
	case narrative.FeatureDensity:
		if level, changed := e.density.Update(e.progress); changed {
			e.logger.Debug("density level", "level", level, "stems", e.density.Stems())
		}
	}
	e.apply(e.audio.Targets(e.section, e.progress))
}

// reset fades every non-drone track to zero unless nothing was raised
// since the previous reset. Caller holds mu.
func (e *Engine) reset(d time.Duration) {
	if !e.started || !e.dirty {
		return
	}
	e.dirty = false
	n := e.mix.Apply(e.audio.ResetFades(d))
	e.logger.Debug("non-drone reset", "fades", n, "duration", d)
}

// apply forwards director fades to the mixer. Caller holds mu.
func (e *Engine) apply(fades []mixer.Fade) {
	if !e.started {
		return
	}
	for _, f := range fades {
		if f.Volume > 0 && f.Track != e.cfg.Drone {
			e.dirty = true
		}
	}
	e.mix.Apply(fades)
}

// stopCamera releases the stream and silences the expression pair over d.
// Caller holds mu.
func (e *Engine) stopCamera(d time.Duration) {
	e.session.Deactivate()
	if !e.camActive {
		return
	}
	e.camActive = false
	e.signal = expression.Unknown
	e.apply(e.bridge.Silence(d))
	e.logger.Info("camera deactivated", "fade", d)
}

// frame computes the visual target. Caller holds mu.
func (e *Engine) frame() director.Frame {
	iso := e.isolation.State()
	level := e.density.Level()
	if !e.started {
		iso, level = director.Ambient, 1
	}
	f := e.visual.Target(e.section, e.progress, iso, level)
	f.ShaderScroll = e.visual.ShaderScroll(e.section, e.scroll)
	return f
}

func (e *Engine) render(f director.Frame) {
	if e.renderer != nil {
		e.renderer.Render(f)
	}
}
