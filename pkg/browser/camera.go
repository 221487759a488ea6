package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gopherjs/gopherjs/js"

	"github.com/KikinaStudio/kikiscroll/pkg/expression"
)

// MediaCamera is an expression.Camera over getUserMedia. The stream plays
// in a (usually hidden) video element that face-api reads from.
type MediaCamera struct {
	video   *js.Object
	quality float64

	mu     sync.Mutex
	active *mediaStream
}

// NewMediaCamera uses the video element with the given id.
func NewMediaCamera(videoID string) (*MediaCamera, error) {
	video := js.Global.Get("document").Call("getElementById", videoID)
	if video == nil || video == js.Undefined {
		return nil, fmt.Errorf("video element #%s not found", videoID)
	}
	return &MediaCamera{video: video, quality: 0.8}, nil
}

// Video returns the element the stream plays in.
func (c *MediaCamera) Video() *js.Object {
	return c.video
}

// RequestAccess prompts the visitor. A refusal wraps
// expression.ErrPermissionDenied; a grant that arrives after ctx ended is
// stopped immediately.
func (c *MediaCamera) RequestAccess(ctx context.Context) (expression.Stream, error) {
	devices := js.Global.Get("navigator").Get("mediaDevices")
	if devices == js.Undefined {
		return nil, fmt.Errorf("%w: getUserMedia unavailable", expression.ErrPermissionDenied)
	}

	c.mu.Lock()
	busy := c.active != nil
	c.mu.Unlock()
	if busy {
		return nil, expression.ErrCameraBusy
	}

	promise := devices.Call("getUserMedia", map[string]any{
		"audio": false,
		"video": map[string]any{"facingMode": "user", "width": 640, "height": 480},
	})
	media, err := await(ctx, promise)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			go stopLate(promise)
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", expression.ErrPermissionDenied, err)
	}

	c.video.Set("srcObject", media)
	c.video.Set("muted", true)
	c.video.Call("play")

	s := &mediaStream{media: media, video: c.video, quality: c.quality}
	c.mu.Lock()
	c.active = s
	c.mu.Unlock()
	return s, nil
}

// stopLate releases a stream granted after its request was abandoned.
func stopLate(promise *js.Object) {
	if media, err := await(context.Background(), promise); err == nil {
		stopTracks(media)
	}
}

// ReleaseAccess stops every track of the stream.
func (c *MediaCamera) ReleaseAccess(s expression.Stream) error {
	ms, ok := s.(*mediaStream)
	if !ok {
		return fmt.Errorf("not a media stream")
	}

	c.mu.Lock()
	if c.active == ms {
		c.active = nil
	}
	c.mu.Unlock()

	ms.stop()
	return nil
}

func stopTracks(media *js.Object) {
	tracks := media.Call("getTracks")
	for i := 0; i < tracks.Length(); i++ {
		tracks.Index(i).Call("stop")
	}
}

type mediaStream struct {
	media   *js.Object
	video   *js.Object
	quality float64

	mu     sync.Mutex
	canvas *js.Object
	ended  bool
}

// Frame grabs the current video frame as JPEG.
func (s *mediaStream) Frame() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil, false
	}

	w, h := s.video.Get("videoWidth").Int(), s.video.Get("videoHeight").Int()
	if w == 0 || h == 0 {
		return nil, false
	}
	if s.canvas == nil {
		s.canvas = js.Global.Get("document").Call("createElement", "canvas")
	}
	s.canvas.Set("width", w)
	s.canvas.Set("height", h)
	s.canvas.Call("getContext", "2d").Call("drawImage", s.video, 0, 0, w, h)

	data, err := DecodeDataURL(s.canvas.Call("toDataURL", "image/jpeg", s.quality).String())
	if err != nil {
		return nil, false
	}
	return data, true
}

func (s *mediaStream) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	stopTracks(s.media)
	s.video.Call("pause")
	s.video.Set("srcObject", nil)
}

// DecodeDataURL returns the payload of a base64 data URL.
func DecodeDataURL(url string) ([]byte, error) {
	if !strings.HasPrefix(url, "data:") {
		return nil, fmt.Errorf("not a data URL")
	}
	_, payload, ok := strings.Cut(url, ";base64,")
	if !ok {
		return nil, fmt.Errorf("data URL is not base64")
	}
	return base64.StdEncoding.DecodeString(payload)
}
