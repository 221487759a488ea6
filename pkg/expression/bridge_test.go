package expression

import (
	"testing"
	"time"

	"github.com/KikinaStudio/kikiscroll/pkg/mixer"
	"github.com/KikinaStudio/kikiscroll/pkg/narrative"
)

func TestBridgeSequence(t *testing.T) {
	b := NewBridge(narrative.Kikina().Expression)

	var got []mixer.Fade
	for _, s := range []Signal{Smiling, Unknown, NotSmiling} {
		got = append(got, b.Fades(s)...)
	}

	ms := time.Millisecond
	want := []mixer.Fade{
		{Track: narrative.TrackHappy, Volume: 0.5, Duration: 600 * ms},
		{Track: narrative.TrackSad, Volume: 0, Duration: 600 * ms},
		{Track: narrative.TrackHappy, Volume: 0, Duration: 400 * ms},
		{Track: narrative.TrackSad, Volume: 0, Duration: 400 * ms},
		{Track: narrative.TrackHappy, Volume: 0, Duration: 600 * ms},
		{Track: narrative.TrackSad, Volume: 0.5, Duration: 600 * ms},
	}

	if len(got) != len(want) {
		t.Fatalf("Expected %d fades, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("fade %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestBridgeSilence(t *testing.T) {
	b := NewBridge(narrative.Kikina().Expression)
	for _, f := range b.Silence(300 * time.Millisecond) {
		if f.Volume != 0 || f.Duration != 300*time.Millisecond {
			t.Errorf("unexpected silence fade %+v", f)
		}
	}
}

func TestSignalConversions(t *testing.T) {
	for _, s := range []Signal{Unknown, Smiling, NotSmiling} {
		if got := FromSmiling(s.Smiling()); got != s {
			t.Errorf("round trip of %s gave %s", s, got)
		}
	}

	tests := []struct {
		face  bool
		happy float64
		want  Signal
	}{
		{false, 0.9, Unknown},
		{true, 0.9, Smiling},
		{true, 0.5, NotSmiling},
		{true, 0.1, NotSmiling},
	}
	for _, tt := range tests {
		if got := FromScore(tt.face, tt.happy, 0.5); got != tt.want {
			t.Errorf("FromScore(%v, %v) = %s, want %s", tt.face, tt.happy, got, tt.want)
		}
	}
}
