package browser

import (
	"context"
	"errors"

	"github.com/gopherjs/gopherjs/js"
)

// await blocks the calling goroutine until promise settles or ctx ends.
// Never call it from a JS callback; start a goroutine first.
func await(ctx context.Context, promise *js.Object) (*js.Object, error) {
	done := make(chan *js.Object, 1)
	failed := make(chan error, 1)
	promise.Call("then", func(v *js.Object) {
		done <- v
	}, func(reason *js.Object) {
		failed <- jsError(reason)
	})

	select {
	case v := <-done:
		return v, nil
	case err := <-failed:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func jsError(reason *js.Object) error {
	if reason == nil || reason == js.Undefined {
		return errors.New("promise rejected")
	}
	if msg := reason.Get("message"); msg != js.Undefined {
		return errors.New(msg.String())
	}
	return errors.New(reason.String())
}
