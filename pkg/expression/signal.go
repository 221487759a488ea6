// Package expression turns webcam frames into a tri-state smile signal and
// the signal into happy/sad fades. The camera session owns stream lifetime
// and the periodic detection task; the Bridge is a pure mapping.
package expression

// Signal is the polled expression state.
type Signal int

const (
	// Unknown means no face, no frame or no working detector.
	Unknown Signal = iota
	// Smiling means the largest face is smiling.
	Smiling
	// NotSmiling means a face was found without a smile.
	NotSmiling
)

// String returns the signal name.
func (s Signal) String() string {
	switch s {
	case Smiling:
		return "smiling"
	case NotSmiling:
		return "notSmiling"
	default:
		return "unknown"
	}
}

// Smiling returns the nullable boolean form used on the wire.
func (s Signal) Smiling() *bool {
	var b bool
	switch s {
	case Smiling:
		b = true
	case NotSmiling:
		b = false
	default:
		return nil
	}
	return &b
}

// FromSmiling converts the nullable boolean form.
func FromSmiling(smiling *bool) Signal {
	switch {
	case smiling == nil:
		return Unknown
	case *smiling:
		return Smiling
	default:
		return NotSmiling
	}
}

// FromScore classifies a detector's happy score. A face smiles when its
// score is strictly above threshold.
func FromScore(face bool, happy, threshold float64) Signal {
	if !face {
		return Unknown
	}
	if happy > threshold {
		return Smiling
	}
	return NotSmiling
}
