package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/KikinaStudio/kikiscroll/internal/log"
	"github.com/KikinaStudio/kikiscroll/pkg/expression"
)

// Webcam grants access to one local capture device at a time.
type Webcam struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	active *capture
}

// New creates a webcam. The device opens on RequestAccess.
func New(cfg Config, logger *slog.Logger) (*Webcam, error) {
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("invalid camera config: %v", problems)
	}
	return &Webcam{
		cfg:    cfg,
		logger: log.Or(logger).With("component", "camera", "device", cfg.Device),
	}, nil
}

// RequestAccess opens the device and starts capturing. A device that
// cannot be opened is reported as a denial: locally that is how the OS
// refuses access.
func (w *Webcam) RequestAccess(ctx context.Context) (expression.Stream, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.active != nil {
		return nil, expression.ErrCameraBusy
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vc, err := gocv.OpenVideoCapture(w.cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("%w: open device %d: %v", expression.ErrPermissionDenied, w.cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: device %d not opened", expression.ErrPermissionDenied, w.cfg.Device)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(w.cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(w.cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(w.cfg.Framerate))

	c := &capture{
		cfg:    w.cfg,
		vc:     vc,
		logger: w.logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.run()
	w.active = c
	w.logger.Info("capture started", "width", w.cfg.Width, "height", w.cfg.Height)
	return c, nil
}

// ReleaseAccess stops capture and closes the device.
func (w *Webcam) ReleaseAccess(s expression.Stream) error {
	c, ok := s.(*capture)
	if !ok {
		return errors.New("stream not issued by this webcam")
	}

	w.mu.Lock()
	if w.active == c {
		w.active = nil
	}
	w.mu.Unlock()

	err := c.close()
	w.logger.Info("capture stopped")
	return err
}

// Active reports whether the device is held.
func (w *Webcam) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active != nil
}

type capture struct {
	cfg    Config
	vc     *gocv.VideoCapture
	logger *slog.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu    sync.Mutex
	frame []byte
}

// Frame returns the latest encoded frame.
func (c *capture) Frame() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame, c.frame != nil
}

func (c *capture) run() {
	defer close(c.done)

	img := gocv.NewMat()
	defer img.Close()

	ticker := time.NewTicker(time.Second / time.Duration(c.cfg.Framerate))
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if ok := c.vc.Read(&img); !ok || img.Empty() {
				continue
			}
			if c.cfg.Mirror {
				gocv.Flip(img, &img, 1)
			}
			data, err := encode(img, c.cfg.Quality)
			if err != nil {
				c.logger.Debug("encode failed", "error", err)
				continue
			}
			c.mu.Lock()
			c.frame = data
			c.mu.Unlock()
		}
	}
}

func (c *capture) close() error {
	var err error
	c.stopOnce.Do(func() {
		close(c.stop)
		<-c.done
		err = c.vc.Close()
		c.mu.Lock()
		c.frame = nil
		c.mu.Unlock()
	})
	return err
}

func encode(img gocv.Mat, quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}
