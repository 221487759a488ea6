package expression

import "context"

// Camera grants and revokes access to a frame source.
type Camera interface {
	// RequestAccess blocks until the user grants or denies access, or ctx
	// ends. Denial returns an error wrapping ErrPermissionDenied.
	RequestAccess(ctx context.Context) (Stream, error)

	// ReleaseAccess stops capture and frees the device.
	ReleaseAccess(s Stream) error
}

// Stream yields the latest encoded frame (JPEG) of an active capture.
type Stream interface {
	// Frame returns false when no frame is ready yet or the stream ended.
	Frame() ([]byte, bool)
}

// Detector classifies a single frame.
type Detector interface {
	Detect(frame []byte) (Signal, error)
	Close() error
}
