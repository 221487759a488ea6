// kikiscroll-tui plays a narrative in the terminal: the arrow keys or the
// mouse wheel scroll through the sections, the tracks play on the local
// sound card and the blob scene is drawn as live meters.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/KikinaStudio/kikiscroll/internal/config"
	"github.com/KikinaStudio/kikiscroll/internal/log"
	"github.com/KikinaStudio/kikiscroll/pkg/camera"
	"github.com/KikinaStudio/kikiscroll/pkg/engine"
	"github.com/KikinaStudio/kikiscroll/pkg/expression"
	"github.com/KikinaStudio/kikiscroll/pkg/expression/cascade"
	"github.com/KikinaStudio/kikiscroll/pkg/mixer"
	"github.com/KikinaStudio/kikiscroll/pkg/mixer/beepout"
	"github.com/KikinaStudio/kikiscroll/pkg/scroll"
	"github.com/KikinaStudio/kikiscroll/pkg/smooth"
)

const (
	fps      = 30
	lineStep = 0.05 // Viewport heights per arrow key or wheel notch
	pageStep = 0.5
)

var (
	variant  = flag.String("variant", "", "Built-in narrative (kikina, scenography)")
	file     = flag.String("narrative", "", "Narrative YAML file; overrides -variant")
	tracks   = flag.String("tracks", "", "Directory holding the audio tracks")
	device   = flag.Int("camera", config.NoCamera, "Webcam device index, -1 disables the camera")
	preset   = flag.String("preset", camera.PresetLow, "Camera preset")
	cascades = flag.String("cascades", "", "Directory holding the Haar cascades")
	mute     = flag.Bool("mute", false, "Drive a silent backend instead of the sound card")
	logFile  = flag.String("log", "kikiscroll-tui.log", "Log file")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "kikiscroll-tui: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	overrides(&cfg)

	f, err := os.Create(*logFile)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer f.Close()
	log.InitWriter(cfg.LogLevel, f)
	logger := log.With("component", "tui")

	story, err := cfg.Narrative()
	if err != nil {
		return err
	}

	var backend mixer.Backend = mixer.NewRecorder()
	if !*mute {
		out, err := beepout.Open(cfg.TracksDir, story.Tracks)
		if err != nil {
			return fmt.Errorf("open audio: %w", err)
		}
		defer out.Close()
		backend = out
	}
	mix := mixer.New(story.Tracks, backend, mixer.WithLogger(logger))

	follower := smooth.New(fps)
	opts := []engine.Option{
		engine.WithRenderer(follower),
		engine.WithLogger(logger),
	}
	if cfg.CameraEnabled() {
		camCfg := camera.GetPreset(*preset, cfg.CameraDevice)
		if camCfg == nil {
			return fmt.Errorf("unknown camera preset %q (have %v)", *preset, camera.PresetNames())
		}
		cam, err := camera.New(*camCfg, logger)
		if err != nil {
			return err
		}
		var models *expression.Models
		if cfg.CascadeDir != "" {
			models = expression.NewModels(cascade.Loader(cascade.DefaultConfig(cfg.CascadeDir)))
			defer models.Close()
		}
		opts = append(opts, engine.WithCamera(cam, models))
	}
	eng := engine.New(story, mix, opts...)
	defer eng.Close()

	page := scroll.NewPage(len(story.Sections), scroll.DefaultPin, scroll.DefaultGap, eng)
	page.Begin()

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer screen.Fini()
	screen.EnableMouse()
	screen.Clear()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &ui{
		screen: screen,
		engine: eng,
		page:   page,
		logger: logger,
	}
	return app.loop(ctx, follower)
}

func overrides(cfg *config.Config) {
	if *variant != "" {
		cfg.Variant = *variant
	}
	if *file != "" {
		cfg.NarrativeFile = *file
	}
	if *tracks != "" {
		cfg.TracksDir = *tracks
	}
	if *device != config.NoCamera {
		cfg.CameraDevice = *device
	}
	if *cascades != "" {
		cfg.CascadeDir = *cascades
	}
}

type ui struct {
	screen tcell.Screen
	engine *engine.Engine
	page   *scroll.Page
	logger *slog.Logger

	status     string
	camCtx     context.CancelFunc
	camPending atomic.Bool
}

func (u *ui) loop(ctx context.Context, follower *smooth.Follower) error {
	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := u.screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(time.Second / fps)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if quit := u.handle(ctx, ev); quit {
				return nil
			}
		case <-ticker.C:
			view := follower.Step()
			u.draw(u.engine.Snapshot(), view)
		}
	}
}

// handle applies one terminal event and reports whether to quit.
func (u *ui) handle(ctx context.Context, ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		u.screen.Sync()
	case *tcell.EventMouse:
		switch {
		case ev.Buttons()&tcell.WheelUp != 0:
			u.page.ScrollBy(-lineStep)
		case ev.Buttons()&tcell.WheelDown != 0:
			u.page.ScrollBy(lineStep)
		}
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return true
		case tcell.KeyUp:
			u.page.ScrollBy(-lineStep)
		case tcell.KeyDown:
			u.page.ScrollBy(lineStep)
		case tcell.KeyPgUp:
			u.page.ScrollBy(-pageStep)
		case tcell.KeyPgDn:
			u.page.ScrollBy(pageStep)
		case tcell.KeyHome:
			u.page.ScrollTo(0)
		case tcell.KeyEnd:
			u.page.ScrollTo(u.page.Max())
		case tcell.KeyEnter:
			u.engine.Start()
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return true
			case ' ':
				u.engine.Start()
			case 'k':
				u.page.ScrollBy(-lineStep)
			case 'j':
				u.page.ScrollBy(lineStep)
			case 'c':
				u.toggleCamera(ctx)
			}
		}
	}
	return false
}

// toggleCamera asks for the webcam in the background; a second press
// cancels a pending request or releases an active camera.
func (u *ui) toggleCamera(ctx context.Context) {
	if u.camCtx != nil {
		u.camCtx()
		u.camCtx = nil
	}
	if u.camPending.Load() {
		u.status = "camera request canceled"
		return
	}
	if u.engine.DeactivateCamera() {
		u.status = "camera released"
		return
	}

	reqCtx, cancel := context.WithCancel(ctx)
	u.camCtx = cancel
	u.camPending.Store(true)
	u.status = "requesting camera"
	go func() {
		defer u.camPending.Store(false)
		err := u.engine.ActivateCamera(reqCtx)
		switch {
		case err == nil:
			u.logger.Info("camera active")
		case errors.Is(err, context.Canceled), errors.Is(err, expression.ErrSessionSuperseded):
		default:
			u.logger.Warn("camera unavailable", "error", err)
		}
	}()
}
