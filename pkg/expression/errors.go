package expression

import "errors"

var (
	// ErrPermissionDenied is returned when the user refuses camera access.
	ErrPermissionDenied = errors.New("camera permission denied")

	// ErrDetectorUnavailable is returned when the expression models cannot load.
	ErrDetectorUnavailable = errors.New("expression detector unavailable")

	// ErrSessionSuperseded is returned when a camera request resolves after
	// the session it belonged to was stopped or replaced.
	ErrSessionSuperseded = errors.New("camera request superseded")

	// ErrCameraBusy is returned when the device is held by another session.
	ErrCameraBusy = errors.New("camera busy")
)
