package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/gopherjs/gopherjs/js"

	"github.com/KikinaStudio/kikiscroll/internal/log"
	"github.com/KikinaStudio/kikiscroll/pkg/expression"
)

// FaceAPI reads facial expressions from a video element with face-api.js.
type FaceAPI struct {
	api       *js.Object
	video     *js.Object
	threshold float64
}

// LoadFaceAPI loads the tiny face detector and the expression net from
// modelURL.
func LoadFaceAPI(ctx context.Context, modelURL string, video *js.Object, threshold float64) (*FaceAPI, error) {
	api := js.Global.Get("faceapi")
	if api == js.Undefined {
		return nil, fmt.Errorf("%w: face-api.js is not loaded", expression.ErrDetectorUnavailable)
	}

	nets := api.Get("nets")
	for _, net := range []string{"tinyFaceDetector", "faceExpressionNet"} {
		if _, err := await(ctx, nets.Get(net).Call("loadFromUri", modelURL)); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", expression.ErrDetectorUnavailable, net, err)
		}
	}
	return &FaceAPI{api: api, video: video, threshold: threshold}, nil
}

// Detect classifies the current video frame.
func (f *FaceAPI) Detect(ctx context.Context) (expression.Signal, error) {
	opts := f.api.Get("TinyFaceDetectorOptions").New()
	task := f.api.Call("detectSingleFace", f.video, opts).Call("withFaceExpressions")
	result, err := await(ctx, task)
	if err != nil {
		return expression.Unknown, err
	}
	if result == nil || result == js.Undefined {
		return expression.FromScore(false, 0, f.threshold), nil
	}
	happy := result.Get("expressions").Get("happy").Float()
	return expression.FromScore(true, happy, f.threshold), nil
}

// Watch detects every interval until ctx ends and reports each result.
// Failed detections are reported as Unknown.
func (f *FaceAPI) Watch(ctx context.Context, interval time.Duration, report func(expression.Signal)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		sig, err := f.Detect(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Debug("face detection failed", "error", err)
			sig = expression.Unknown
		}
		report(sig)
	}
}
