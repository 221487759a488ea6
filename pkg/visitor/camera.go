package visitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KikinaStudio/kikiscroll/pkg/expression"
	"github.com/KikinaStudio/kikiscroll/pkg/protocol"
)

// DefaultFrameMaxAge is how long a browser frame stays usable for detection.
const DefaultFrameMaxAge = time.Second

type answer struct {
	granted    bool
	reason     string
	superseded bool
}

// RemoteCamera is the visitor's webcam, reached through the browser. A
// request sends camera_request and waits for camera_permission; frames
// pushed by the browser feed the granted stream.
type RemoteCamera struct {
	send   Sender
	maxAge time.Duration
	now    func() time.Time

	mu      sync.Mutex
	pending chan answer
	stream  *remoteStream
}

// NewRemoteCamera creates a camera writing through send.
func NewRemoteCamera(send Sender, maxAge time.Duration) *RemoteCamera {
	if maxAge <= 0 {
		maxAge = DefaultFrameMaxAge
	}
	return &RemoteCamera{send: send, maxAge: maxAge, now: time.Now}
}

// RequestAccess implements expression.Camera. A newer request supersedes
// one still waiting for an answer.
func (c *RemoteCamera) RequestAccess(ctx context.Context) (expression.Stream, error) {
	ch := make(chan answer, 1)
	c.mu.Lock()
	if c.pending != nil {
		c.pending <- answer{superseded: true}
	}
	c.pending = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.pending == ch {
			c.pending = nil
		}
		c.mu.Unlock()
	}()

	msg, err := protocol.NewMessage(protocol.TypeCameraRequest, nil)
	if err != nil {
		return nil, err
	}
	if err := c.send(msg); err != nil {
		return nil, fmt.Errorf("camera request: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case a := <-ch:
		switch {
		case a.superseded:
			return nil, expression.ErrSessionSuperseded
		case !a.granted:
			if a.reason == "" {
				return nil, expression.ErrPermissionDenied
			}
			return nil, fmt.Errorf("%w: %s", expression.ErrPermissionDenied, a.reason)
		}
	}

	s := &remoteStream{maxAge: c.maxAge, now: c.now}
	c.mu.Lock()
	if c.stream != nil {
		c.stream.end()
	}
	c.stream = s
	c.mu.Unlock()
	return s, nil
}

// ReleaseAccess implements expression.Camera.
func (c *RemoteCamera) ReleaseAccess(s expression.Stream) error {
	rs, ok := s.(*remoteStream)
	if !ok {
		return errors.New("stream not issued by this camera")
	}
	rs.end()

	c.mu.Lock()
	if c.stream == rs {
		c.stream = nil
	}
	c.mu.Unlock()

	msg, err := protocol.NewMessage(protocol.TypeCameraRelease, nil)
	if err != nil {
		return err
	}
	return c.send(msg)
}

// Answer delivers the browser's permission answer. It reports whether a
// request was waiting for it.
func (c *RemoteCamera) Answer(granted bool, reason string) bool {
	c.mu.Lock()
	ch := c.pending
	c.pending = nil
	c.mu.Unlock()

	if ch == nil {
		return false
	}
	ch <- answer{granted: granted, reason: reason}
	return true
}

// Push stores a browser frame. Frames arriving without a granted stream
// are dropped.
func (c *RemoteCamera) Push(frame []byte) bool {
	c.mu.Lock()
	s := c.stream
	c.mu.Unlock()

	if s == nil {
		return false
	}
	return s.put(frame)
}

// Streaming reports whether a granted stream is open.
func (c *RemoteCamera) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}

type remoteStream struct {
	maxAge time.Duration
	now    func() time.Time

	mu    sync.Mutex
	frame []byte
	at    time.Time
	ended bool
}

// Frame returns the latest frame while it is fresh.
func (s *remoteStream) Frame() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended || s.frame == nil || s.now().Sub(s.at) > s.maxAge {
		return nil, false
	}
	return s.frame, true
}

func (s *remoteStream) put(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return false
	}
	s.frame = frame
	s.at = s.now()
	return true
}

func (s *remoteStream) end() {
	s.mu.Lock()
	s.ended = true
	s.frame = nil
	s.mu.Unlock()
}
