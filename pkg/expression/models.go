package expression

import (
	"context"
	"fmt"
	"sync"
)

// Loader builds a Detector, typically by reading model files.
type Loader func(ctx context.Context) (Detector, error)

// Models owns the detector lifecycle: it loads once, on first use, and
// remembers the outcome. A failed load keeps failing for the lifetime of
// the Models so the signal degrades to Unknown instead of retrying every
// poll.
type Models struct {
	load Loader

	mu        sync.Mutex
	attempted bool
	detector  Detector
	err       error
}

// NewModels wraps load.
func NewModels(load Loader) *Models {
	return &Models{load: load}
}

// Ready wraps an already-built detector.
func Ready(d Detector) *Models {
	return &Models{attempted: true, detector: d}
}

// Detector returns the loaded detector, loading it on the first call.
func (m *Models) Detector(ctx context.Context) (Detector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.attempted {
		m.attempted = true
		if m.load == nil {
			m.err = ErrDetectorUnavailable
		} else if d, err := m.load(ctx); err != nil {
			m.err = fmt.Errorf("%w: %v", ErrDetectorUnavailable, err)
		} else {
			m.detector = d
		}
	}
	return m.detector, m.err
}

// Loaded reports whether a detector is available.
func (m *Models) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detector != nil
}

// Close releases the detector if one was loaded.
func (m *Models) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.detector == nil {
		return nil
	}
	err := m.detector.Close()
	m.detector = nil
	m.err = ErrDetectorUnavailable
	return err
}
