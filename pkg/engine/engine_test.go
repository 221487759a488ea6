package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/KikinaStudio/kikiscroll/internal/log"
	"github.com/KikinaStudio/kikiscroll/pkg/director"
	"github.com/KikinaStudio/kikiscroll/pkg/expression"
	"github.com/KikinaStudio/kikiscroll/pkg/mixer"
	"github.com/KikinaStudio/kikiscroll/pkg/narrative"
)

const ms = time.Millisecond

type testCamera struct {
	grant     chan error
	requested chan struct{}

	mu       sync.Mutex
	released int
}

type testStream struct{}

func (testStream) Frame() ([]byte, bool) { return nil, false }

func (c *testCamera) RequestAccess(ctx context.Context) (expression.Stream, error) {
	select {
	case c.requested <- struct{}{}:
	default:
	}
	select {
	case err := <-c.grant:
		if err != nil {
			return nil, err
		}
		return testStream{}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *testCamera) ReleaseAccess(expression.Stream) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released++
	return nil
}

func (c *testCamera) releases() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}

type frames struct {
	mu  sync.Mutex
	got []director.Frame
}

func (f *frames) Render(fr director.Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, fr)
}

func (f *frames) last() director.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.got[len(f.got)-1]
}

type harness struct {
	eng    *Engine
	rec    *mixer.Recorder
	mix    *mixer.Mixer
	cam    *testCamera
	frames *frames
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := narrative.Kikina()
	now := time.Unix(1700000000, 0)
	rec := mixer.NewRecorder()
	mix := mixer.New(cfg.Tracks, rec, mixer.WithClock(func() time.Time { return now }), mixer.WithLogger(log.Discard()))
	cam := &testCamera{grant: make(chan error, 1), requested: make(chan struct{}, 1)}
	fr := &frames{}
	eng := New(cfg, mix, WithCamera(cam, nil), WithRenderer(fr), WithLogger(log.Discard()))
	return &harness{eng: eng, rec: rec, mix: mix, cam: cam, frames: fr}
}

// rampsTo counts ramps per track that end at volume v.
func rampsTo(calls []mixer.Call, v float64) map[narrative.Track]int {
	out := map[narrative.Track]int{}
	for _, c := range calls {
		if c.To == v {
			out[c.Track]++
		}
	}
	return out
}

func TestStartGate(t *testing.T) {
	h := newHarness(t)

	h.eng.OnEnter(1)
	h.eng.OnSectionProgress(1, 0.8)
	h.eng.OnSectionProgress(2, 0.5)
	if calls := h.rec.Calls(); len(calls) != 0 {
		t.Fatalf("Expected no audio before start, got %v", calls)
	}
	if got := h.frames.last().Section; got != 2 {
		t.Errorf("Expected visuals to follow scroll before start, got section %d", got)
	}

	h.eng.Start()
	h.eng.Start()
	plays := 0
	for _, c := range h.rec.Calls() {
		if c.Op == mixer.OpPlay {
			plays++
		}
	}
	if plays != len(h.eng.Config().Tracks) {
		t.Errorf("Expected %d plays, got %d", len(h.eng.Config().Tracks), plays)
	}

	// Start evaluates the section the visitor is already in.
	if v, _ := h.mix.Target(narrative.TrackJungle); v <= 0 {
		t.Errorf("Expected environments crossfade after start, jungle target %v", v)
	}
}

func TestIsolationFlow(t *testing.T) {
	h := newHarness(t)
	h.eng.Start()

	h.eng.OnEnter(1)
	for i := 0; i <= 50; i++ {
		h.eng.OnSectionProgress(1, float64(i)/50)
	}

	crowd := h.rec.Ramps(narrative.TrackCrowd)
	if len(crowd) != 2 {
		t.Fatalf("Expected enter and isolate ramps, got %+v", crowd)
	}
	if crowd[0].To != 0.6 || crowd[0].Duration != 500*ms {
		t.Errorf("unexpected enter ramp %+v", crowd[0])
	}
	if crowd[1].To != 0.05 || crowd[1].Duration != 800*ms {
		t.Errorf("unexpected isolation ramp %+v", crowd[1])
	}
	if h.eng.Isolation() != director.Isolated {
		t.Errorf("Expected isolated, got %s", h.eng.Isolation())
	}
	if got := h.frames.last().Main.Material.Color.Hex(); got != "#1a1a2a" {
		t.Errorf("Expected isolated color, got %s", got)
	}

	h.eng.OnSectionProgress(1, 0.2)
	crowd = h.rec.Ramps(narrative.TrackCrowd)
	if last := crowd[len(crowd)-1]; last.To != 0.6 || last.Duration != 400*ms {
		t.Errorf("unexpected ambient ramp %+v", last)
	}
}

func TestLeavingIsolationResetsState(t *testing.T) {
	h := newHarness(t)
	h.eng.Start()
	h.eng.OnEnter(1)
	h.eng.OnSectionProgress(1, 0.9)

	h.eng.OnLeave(1)
	if h.eng.Isolation() != director.Ambient {
		t.Error("Expected ambient after leaving the isolation section")
	}
}

func TestSectionExitCleanupOncePerTransition(t *testing.T) {
	h := newHarness(t)
	h.eng.Start()
	h.eng.OnEnter(4)
	h.eng.OnSectionProgress(4, 0.9)
	h.rec.Reset()

	h.eng.OnLeaveBack(4)
	h.eng.OnLeave(4)
	h.eng.OnSectionProgress(3, 0)
	h.eng.OnEnter(3)

	got := rampsTo(h.rec.Ramps(), 0)
	stems := h.eng.Config().Density.Stems
	for _, s := range stems {
		if got[s] != 1 {
			t.Errorf("%s: expected exactly one fade to 0, got %d", s, got[s])
		}
	}
	for _, c := range h.rec.Ramps() {
		if c.Duration != 500*ms {
			t.Errorf("Expected leave fade of 500ms, got %+v", c)
		}
		if c.Track == narrative.TrackDrone {
			t.Error("drone must never be reset")
		}
	}
	if len(h.rec.Ramps()) != len(stems) {
		t.Errorf("Expected %d ramps, got %+v", len(stems), h.rec.Ramps())
	}
}

func TestSectionChangeResetsWithoutLifecycleEvents(t *testing.T) {
	h := newHarness(t)
	h.eng.Start()
	h.eng.OnSectionProgress(2, 0.5)
	h.rec.Reset()

	h.eng.OnSectionProgress(3, 0.1)

	got := h.rec.Ramps()
	if len(got) != 2 {
		t.Fatalf("Expected jungle and pulsatingWave reset, got %+v", got)
	}
	for _, c := range got {
		if c.To != 0 || c.Duration != 300*ms {
			t.Errorf("unexpected reset ramp %+v", c)
		}
	}
}

func TestResetAfterReRaise(t *testing.T) {
	h := newHarness(t)
	h.eng.Start()
	h.eng.OnEnter(4)
	h.eng.OnSectionProgress(4, 0.3)
	h.eng.OnLeave(4)

	// Scrolling back into the same section raises stems again; the next
	// transition must reset them again.
	h.eng.OnSectionProgress(4, 0.3)
	h.rec.Reset()
	h.eng.OnSectionProgress(3, 0.9)

	if got := rampsTo(h.rec.Ramps(), 0); got[narrative.TrackStrings] != 1 || got[narrative.TrackBass] != 1 {
		t.Errorf("Expected strings and bass reset, got %v", got)
	}
}

func TestDensityReentry(t *testing.T) {
	h := newHarness(t)
	h.eng.Start()
	h.eng.OnEnter(4)
	h.eng.OnSectionProgress(4, 0.9)
	if h.eng.DensityLevel() != 4 {
		t.Fatalf("Expected level 4, got %d", h.eng.DensityLevel())
	}

	h.eng.OnLeaveBack(4)
	h.eng.OnSectionProgress(3, 0.9)
	h.eng.OnEnter(4)
	if h.eng.DensityLevel() != 1 {
		t.Errorf("Expected level 1 right after re-entry, got %d", h.eng.DensityLevel())
	}
	if n := len(h.frames.last().Clones); n != 0 {
		t.Errorf("Expected no clones right after re-entry, got %d", n)
	}

	h.eng.OnSectionProgress(4, 0.9)
	if h.eng.DensityLevel() != 4 {
		t.Errorf("Expected level 4 once progress is evaluated, got %d", h.eng.DensityLevel())
	}
	if n := len(h.frames.last().Clones); n != 3 {
		t.Errorf("Expected 3 clones, got %d", n)
	}
}

func TestEnvironmentsEnterAndCrossfade(t *testing.T) {
	h := newHarness(t)
	h.eng.Start()
	h.eng.OnEnter(2)

	jungle := h.rec.Ramps(narrative.TrackJungle)
	if len(jungle) != 1 || jungle[0].To != 0.6 || jungle[0].Duration != 500*ms {
		t.Fatalf("unexpected jungle enter ramps %+v", jungle)
	}

	h.eng.OnSectionProgress(2, 1)
	if v, _ := h.mix.Target(narrative.TrackFocusCognitif); v != 0.6 {
		t.Errorf("Expected focusCognitif at ceiling, got %v", v)
	}
	if v, _ := h.mix.Target(narrative.TrackJungle); v != 0 {
		t.Errorf("Expected jungle silent, got %v", v)
	}
	if snap := h.eng.Snapshot(); snap.Environment != 2 || !snap.More {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestEnvironmentLabelFollowsThirds(t *testing.T) {
	h := newHarness(t)
	h.eng.Start()
	h.eng.OnEnter(2)

	tests := []struct {
		p    float64
		want int
	}{
		{0.1, 0}, {0.34, 1}, {0.4, 1}, {0.66, 2}, {0.7, 2},
	}
	for _, tt := range tests {
		h.eng.OnSectionProgress(2, tt.p)
		if got := h.eng.Snapshot().Environment; got != tt.want {
			t.Errorf("progress %v: expected environment %d, got %d", tt.p, tt.want, got)
		}
	}
}

func TestCameraOutsideWebcamSection(t *testing.T) {
	h := newHarness(t)
	h.eng.Start()
	h.eng.OnSectionProgress(2, 0.5)

	if err := h.eng.ActivateCamera(context.Background()); !errors.Is(err, ErrCameraUnavailable) {
		t.Errorf("Expected ErrCameraUnavailable, got %v", err)
	}
}

func TestExpressionFlow(t *testing.T) {
	h := newHarness(t)
	h.eng.Start()
	h.eng.OnSectionProgress(3, 0.2)

	// Signals before the camera is on are discarded.
	h.eng.OnExpression(expression.Smiling)
	if len(h.rec.Ramps(narrative.TrackHappy, narrative.TrackSad)) != 0 {
		t.Fatal("Expected expression ignored while camera is off")
	}

	h.cam.grant <- nil
	if err := h.eng.ActivateCamera(context.Background()); err != nil {
		t.Fatalf("ActivateCamera failed: %v", err)
	}

	h.eng.OnExpression(expression.Smiling)
	h.eng.OnExpression(expression.Unknown)
	h.eng.OnExpression(expression.NotSmiling)

	want := []mixer.Call{
		{Op: mixer.OpRamp, Track: narrative.TrackHappy, From: 0, To: 0.5, Duration: 600 * ms},
		{Op: mixer.OpRamp, Track: narrative.TrackHappy, From: 0, To: 0, Duration: 400 * ms},
		{Op: mixer.OpRamp, Track: narrative.TrackSad, From: 0, To: 0.5, Duration: 600 * ms},
	}
	got := h.rec.Ramps(narrative.TrackHappy, narrative.TrackSad)
	if len(got) != len(want) {
		t.Fatalf("Expected %d ramps, got %+v", len(want), got)
	}
	for i := range want {
		if got[i].Track != want[i].Track || got[i].To != want[i].To || got[i].Duration != want[i].Duration {
			t.Errorf("ramp %d: got %+v, want %+v", i, got[i], want[i])
		}
	}

	if !h.eng.DeactivateCamera() {
		t.Error("Expected camera to have been active")
	}
	sad := h.rec.Ramps(narrative.TrackSad)
	if last := sad[len(sad)-1]; last.To != 0 || last.Duration != 400*ms {
		t.Errorf("Expected toggle-off fade of 400ms, got %+v", last)
	}
	if h.cam.releases() != 1 {
		t.Errorf("Expected stream released once, got %d", h.cam.releases())
	}
}

func TestLeavingWebcamSectionStopsCamera(t *testing.T) {
	h := newHarness(t)
	h.eng.Start()
	h.eng.OnSectionProgress(3, 0.5)
	h.cam.grant <- nil
	if err := h.eng.ActivateCamera(context.Background()); err != nil {
		t.Fatalf("ActivateCamera failed: %v", err)
	}
	h.eng.OnExpression(expression.Smiling)
	h.rec.Reset()

	h.eng.OnSectionProgress(4, 0)

	if h.eng.CameraActive() {
		t.Error("Expected camera off after leaving the webcam section")
	}
	if h.cam.releases() != 1 {
		t.Errorf("Expected stream released, got %d", h.cam.releases())
	}
	happy := h.rec.Ramps(narrative.TrackHappy)
	if len(happy) != 1 || happy[0].To != 0 || happy[0].Duration != 300*ms {
		t.Errorf("Expected a single 300ms happy fade-out, got %+v", happy)
	}

	// A late tick from the old poll is dropped.
	h.eng.OnExpression(expression.NotSmiling)
	if len(h.rec.Ramps(narrative.TrackSad)) != 0 {
		t.Error("Expected stale expression tick to be discarded")
	}
}

func TestSectionChangeSupersedesPendingCamera(t *testing.T) {
	h := newHarness(t)
	h.eng.Start()
	h.eng.OnSectionProgress(3, 0.5)

	errc := make(chan error, 1)
	go func() { errc <- h.eng.ActivateCamera(context.Background()) }()

	// Let the request reach the permission prompt before scrolling away.
	select {
	case <-h.cam.requested:
	case <-time.After(2 * time.Second):
		t.Fatal("camera was never requested")
	}
	h.eng.OnSectionProgress(4, 0.1)
	h.cam.grant <- nil

	if err := <-errc; !errors.Is(err, expression.ErrSessionSuperseded) {
		t.Fatalf("Expected ErrSessionSuperseded, got %v", err)
	}
	if h.eng.CameraActive() {
		t.Error("Late grant revived the camera")
	}
	if h.cam.releases() != 1 {
		t.Errorf("Expected the late stream to be released, got %d releases", h.cam.releases())
	}
}

func TestPermissionDenied(t *testing.T) {
	h := newHarness(t)
	h.eng.Start()
	h.eng.OnSectionProgress(3, 0.5)
	h.rec.Reset()

	h.cam.grant <- expression.ErrPermissionDenied
	if err := h.eng.ActivateCamera(context.Background()); !errors.Is(err, expression.ErrPermissionDenied) {
		t.Fatalf("Expected ErrPermissionDenied, got %v", err)
	}
	if h.eng.CameraActive() {
		t.Error("Expected camera inactive")
	}
	if len(h.rec.Calls()) != 0 {
		t.Errorf("Expected no audio action, got %v", h.rec.Calls())
	}
}

func TestOutOfRangeSectionIgnored(t *testing.T) {
	h := newHarness(t)
	h.eng.Start()
	h.eng.OnSectionProgress(9, 0.5)
	h.eng.OnEnter(-1)

	if s, _ := h.eng.Section(); s != 0 {
		t.Errorf("Expected to stay in section 0, got %d", s)
	}
}

func TestScrollOnlyAffectsVisuals(t *testing.T) {
	h := newHarness(t)
	h.eng.Start()
	h.rec.Reset()

	h.eng.OnScroll(0.37)
	if len(h.rec.Calls()) != 0 {
		t.Error("Expected no audio from global scroll")
	}
	if got := h.frames.last().ShaderScroll; got != 0.37 {
		t.Errorf("Expected shader scroll 0.37, got %v", got)
	}

	h.eng.OnSectionProgress(4, 0.5)
	if got := h.eng.Frame().ShaderScroll; got != 0 {
		t.Errorf("Expected shader scroll 0 in density, got %v", got)
	}
}

func TestCloseStopsEverything(t *testing.T) {
	h := newHarness(t)
	h.eng.Start()
	h.eng.OnSectionProgress(3, 0.5)
	h.cam.grant <- nil
	if err := h.eng.ActivateCamera(context.Background()); err != nil {
		t.Fatalf("ActivateCamera failed: %v", err)
	}

	h.eng.Close()
	if h.cam.releases() != 1 {
		t.Errorf("Expected camera released on close, got %d", h.cam.releases())
	}
	if h.mix.Playing() {
		t.Error("Expected mixer stopped")
	}

	h.rec.Reset()
	h.eng.OnSectionProgress(4, 0.9)
	if len(h.rec.Calls()) != 0 {
		t.Error("Expected closed engine to ignore events")
	}
	snap := h.eng.Snapshot()
	if snap.Camera || snap.Section != 3 {
		t.Errorf("unexpected snapshot after close %+v", snap)
	}
}
