package expression

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/KikinaStudio/kikiscroll/internal/log"
)

// Session is one camera activation: it acquires a stream, polls the
// detector on a fixed interval and hands every signal to a callback.
//
// A generation counter guards acquisition. Deactivate bumps it, so a grant
// that resolves afterwards is released on the spot instead of reviving the
// session. Stream release is synchronous on every exit path.
type Session struct {
	camera   Camera
	models   *Models
	interval time.Duration
	onSignal func(Signal)
	logger   *slog.Logger

	mu     sync.Mutex
	gen    uint64
	stream Stream
	cancel context.CancelFunc
	last   Signal
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the logger.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

// NewSession creates an inactive session. onSignal is called from the poll
// goroutine without any session lock held. With nil models the session only
// manages the stream and never polls.
func NewSession(camera Camera, models *Models, interval time.Duration, onSignal func(Signal), opts ...SessionOption) *Session {
	s := &Session{
		camera:   camera,
		models:   models,
		interval: interval,
		onSignal: onSignal,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.Or(s.logger).With("component", "camera_session")
	return s
}

// Activate requests camera access and starts polling. It blocks while the
// permission prompt is outstanding. Activating an active session is a
// no-op. If Deactivate runs before the request resolves, the late stream is
// released and ErrSessionSuperseded is returned.
func (s *Session) Activate(ctx context.Context) error {
	s.mu.Lock()
	if s.stream != nil {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	stream, err := s.camera.RequestAccess(ctx)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			s.logger.Warn("camera permission denied")
		} else {
			s.logger.Warn("camera request failed", "error", err)
		}
		return err
	}

	s.mu.Lock()
	if gen != s.gen || s.stream != nil {
		s.mu.Unlock()
		s.release(stream)
		s.logger.Debug("late camera grant released", "generation", gen)
		return ErrSessionSuperseded
	}
	pollCtx, cancel := context.WithCancel(context.Background())
	s.stream = stream
	s.cancel = cancel
	s.last = Unknown
	s.mu.Unlock()

	if s.models == nil {
		// Signals arrive from an external detector instead.
		s.logger.Info("camera session started", "polling", false)
		return nil
	}
	s.logger.Info("camera session started", "interval", s.interval)
	go s.poll(pollCtx, gen, stream)
	return nil
}

// Deactivate stops polling, releases the stream and supersedes any pending
// request. It reports whether an active stream was released.
func (s *Session) Deactivate() bool {
	s.mu.Lock()
	s.gen++
	stream, cancel := s.stream, s.cancel
	s.stream, s.cancel = nil, nil
	s.last = Unknown
	s.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	s.release(stream)
	s.logger.Info("camera session stopped")
	return true
}

// Active reports whether a stream is held.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

// Last returns the most recent signal of the current activation.
func (s *Session) Last() Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Session) release(stream Stream) {
	if err := s.camera.ReleaseAccess(stream); err != nil {
		s.logger.Warn("camera release failed", "error", err)
	}
}

func (s *Session) poll(ctx context.Context, gen uint64, stream Stream) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sig := s.detect(ctx, stream)
			if !s.record(gen, sig) {
				return
			}
			if s.onSignal != nil {
				s.onSignal(sig)
			}
		}
	}
}

// detect never fails: every problem degrades to Unknown.
func (s *Session) detect(ctx context.Context, stream Stream) Signal {
	det, err := s.models.Detector(ctx)
	if err != nil {
		s.logger.Debug("detector unavailable", "error", err)
		return Unknown
	}
	frame, ok := stream.Frame()
	if !ok {
		return Unknown
	}
	sig, err := det.Detect(frame)
	if err != nil {
		s.logger.Debug("detection failed", "error", err)
		return Unknown
	}
	return sig
}

func (s *Session) record(gen uint64, sig Signal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	s.last = sig
	return true
}
