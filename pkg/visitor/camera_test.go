package visitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/KikinaStudio/kikiscroll/pkg/expression"
	"github.com/KikinaStudio/kikiscroll/pkg/protocol"
)

type outbox struct {
	mu   sync.Mutex
	msgs []protocol.MessageType
	sent chan struct{}
}

func newOutbox() *outbox {
	return &outbox{sent: make(chan struct{}, 8)}
}

func (o *outbox) send(msg *protocol.Message) error {
	o.mu.Lock()
	o.msgs = append(o.msgs, msg.Type)
	o.mu.Unlock()
	o.sent <- struct{}{}
	return nil
}

func (o *outbox) types() []protocol.MessageType {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]protocol.MessageType(nil), o.msgs...)
}

func (o *outbox) wait(t *testing.T) {
	t.Helper()
	select {
	case <-o.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a message")
	}
}

func TestRemoteCameraGrant(t *testing.T) {
	out := newOutbox()
	cam := NewRemoteCamera(out.send, time.Second)

	type result struct {
		s   expression.Stream
		err error
	}
	done := make(chan result, 1)
	go func() {
		s, err := cam.RequestAccess(context.Background())
		done <- result{s, err}
	}()
	out.wait(t)

	if !cam.Answer(true, "") {
		t.Fatal("Answer should reach the pending request")
	}
	r := <-done
	if r.err != nil {
		t.Fatalf("RequestAccess error: %v", r.err)
	}
	if !cam.Streaming() {
		t.Error("Expected an open stream")
	}

	if _, ok := r.s.Frame(); ok {
		t.Error("Expected no frame before the first push")
	}
	cam.Push([]byte{1, 2, 3})
	if f, ok := r.s.Frame(); !ok || len(f) != 3 {
		t.Errorf("Expected pushed frame, got %v %v", f, ok)
	}

	if err := cam.ReleaseAccess(r.s); err != nil {
		t.Fatalf("ReleaseAccess error: %v", err)
	}
	if cam.Push([]byte{4}) {
		t.Error("Push after release should be dropped")
	}
	if _, ok := r.s.Frame(); ok {
		t.Error("Released stream should yield no frames")
	}
	got := out.types()
	if len(got) != 2 || got[0] != protocol.TypeCameraRequest || got[1] != protocol.TypeCameraRelease {
		t.Errorf("Expected request then release, got %v", got)
	}
}

func TestRemoteCameraDenied(t *testing.T) {
	out := newOutbox()
	cam := NewRemoteCamera(out.send, 0)

	errc := make(chan error, 1)
	go func() {
		_, err := cam.RequestAccess(context.Background())
		errc <- err
	}()
	out.wait(t)
	cam.Answer(false, "NotAllowedError")

	if err := <-errc; !errors.Is(err, expression.ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied, got %v", err)
	}
	if cam.Streaming() {
		t.Error("Denied request should not open a stream")
	}
}

func TestRemoteCameraSupersede(t *testing.T) {
	out := newOutbox()
	cam := NewRemoteCamera(out.send, 0)

	first := make(chan error, 1)
	go func() {
		_, err := cam.RequestAccess(context.Background())
		first <- err
	}()
	out.wait(t)

	second := make(chan error, 1)
	go func() {
		_, err := cam.RequestAccess(context.Background())
		second <- err
	}()
	out.wait(t)

	if err := <-first; !errors.Is(err, expression.ErrSessionSuperseded) {
		t.Errorf("Expected first request superseded, got %v", err)
	}
	cam.Answer(true, "")
	if err := <-second; err != nil {
		t.Errorf("Expected second request granted, got %v", err)
	}
}

func TestRemoteCameraContextCancel(t *testing.T) {
	out := newOutbox()
	cam := NewRemoteCamera(out.send, 0)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := cam.RequestAccess(ctx)
		errc <- err
	}()
	out.wait(t)
	cancel()

	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if cam.Answer(true, "") {
		t.Error("Answer after cancel should find no pending request")
	}
}

func TestRemoteStreamStaleFrame(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := &remoteStream{maxAge: time.Second, now: func() time.Time { return now }}

	s.put([]byte{1})
	if _, ok := s.Frame(); !ok {
		t.Fatal("Expected fresh frame")
	}
	now = now.Add(1500 * time.Millisecond)
	if _, ok := s.Frame(); ok {
		t.Error("Expected stale frame to be withheld")
	}
}

func TestPushWithoutStream(t *testing.T) {
	cam := NewRemoteCamera(newOutbox().send, 0)
	if cam.Push([]byte{1}) {
		t.Error("Push without a granted stream should be dropped")
	}
	if err := cam.ReleaseAccess(nil); err == nil {
		t.Error("ReleaseAccess should reject foreign streams")
	}
}
