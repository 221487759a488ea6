// Package cascade detects smiles with OpenCV Haar cascades: the largest
// frontal face is located first, then the smile cascade runs on the lower
// half of that face.
package cascade

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"

	"github.com/KikinaStudio/kikiscroll/pkg/expression"
)

// Config holds detector configuration
type Config struct {
	FaceCascade    string  // Path to the frontal face cascade
	SmileCascade   string  // Path to the smile cascade
	ScaleFactor    float64 // Face pyramid step (default 1.1)
	FaceNeighbors  int     // Face min neighbors (default 5)
	SmileScale     float64 // Smile pyramid step (default 1.7)
	SmileNeighbors int     // Smile min neighbors; higher is stricter (default 20)
	MinFace        int     // Smallest face side in pixels (default 60)
}

// DefaultConfig returns defaults for the stock OpenCV cascade files in dir.
func DefaultConfig(dir string) Config {
	return Config{
		FaceCascade:    filepath.Join(dir, "haarcascade_frontalface_default.xml"),
		SmileCascade:   filepath.Join(dir, "haarcascade_smile.xml"),
		ScaleFactor:    1.1,
		FaceNeighbors:  5,
		SmileScale:     1.7,
		SmileNeighbors: 20,
		MinFace:        60,
	}
}

// Detector is an expression.Detector backed by two cascade classifiers.
type Detector struct {
	face  gocv.CascadeClassifier
	smile gocv.CascadeClassifier
	cfg   Config
	mu    sync.Mutex // Protects inference
}

// New loads both cascades.
func New(cfg Config) (*Detector, error) {
	for _, p := range []string{cfg.FaceCascade, cfg.SmileCascade} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("cascade file: %w", err)
		}
	}

	face := gocv.NewCascadeClassifier()
	if !face.Load(cfg.FaceCascade) {
		face.Close()
		return nil, fmt.Errorf("load face cascade %s", cfg.FaceCascade)
	}
	smile := gocv.NewCascadeClassifier()
	if !smile.Load(cfg.SmileCascade) {
		face.Close()
		smile.Close()
		return nil, fmt.Errorf("load smile cascade %s", cfg.SmileCascade)
	}

	return &Detector{face: face, smile: smile, cfg: cfg}, nil
}

// Detect classifies the largest face in a JPEG frame.
func (d *Detector) Detect(jpeg []byte) (expression.Signal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := gocv.IMDecode(jpeg, gocv.IMReadGrayScale)
	if err != nil {
		return expression.Unknown, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return expression.Unknown, fmt.Errorf("empty image")
	}
	gocv.EqualizeHist(img, &img)

	faces := d.face.DetectMultiScaleWithParams(img, d.cfg.ScaleFactor, d.cfg.FaceNeighbors, 0,
		image.Pt(d.cfg.MinFace, d.cfg.MinFace), image.Pt(0, 0))
	face, ok := Largest(faces)
	if !ok {
		return expression.Unknown, nil
	}

	mouth := LowerHalf(face)
	roi := img.Region(mouth)
	defer roi.Close()

	smiles := d.smile.DetectMultiScaleWithParams(roi, d.cfg.SmileScale, d.cfg.SmileNeighbors, 0,
		image.Pt(mouth.Dx()/4, mouth.Dy()/4), image.Pt(0, 0))
	if len(smiles) > 0 {
		return expression.Smiling, nil
	}
	return expression.NotSmiling, nil
}

// Close releases the classifiers.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.face.Close()
	d.smile.Close()
	return nil
}

// Largest picks the face with the biggest area.
func Largest(rects []image.Rectangle) (image.Rectangle, bool) {
	if len(rects) == 0 {
		return image.Rectangle{}, false
	}
	best := rects[0]
	for _, r := range rects[1:] {
		if r.Dx()*r.Dy() > best.Dx()*best.Dy() {
			best = r
		}
	}
	return best, true
}

// LowerHalf returns the part of a face box where a smile can appear.
func LowerHalf(face image.Rectangle) image.Rectangle {
	return image.Rect(face.Min.X, face.Min.Y+face.Dy()/2, face.Max.X, face.Max.Y)
}

// Loader adapts New to expression.Loader so models load on first use.
func Loader(cfg Config) expression.Loader {
	return func(_ context.Context) (expression.Detector, error) {
		return New(cfg)
	}
}
