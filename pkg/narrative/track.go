package narrative

// Track names a looping audio layer.
type Track string

// Known track names. A narrative picks a closed subset of these.
const (
	TrackDrone         Track = "drone"
	TrackStrings       Track = "strings"
	TrackBass          Track = "bass"
	TrackDrums         Track = "drums"
	TrackKeyboard      Track = "keyboard"
	TrackCrowd         Track = "crowd"
	TrackJungle        Track = "jungle"
	TrackPulsatingWave Track = "pulsatingWave"
	TrackThunderstorm  Track = "thunderstorm"
	TrackFocusCognitif Track = "focusCognitif"
	TrackSea           Track = "sea"
	TrackHappy         Track = "happy"
	TrackSad           Track = "sad"
)

// String returns the track name.
func (t Track) String() string {
	return string(t)
}

// TrackSpec describes one track of the mix.
type TrackSpec struct {
	// Name is the track identity used by every director.
	Name Track `yaml:"name" json:"name"`

	// Source is the audio file, relative to the tracks directory.
	Source string `yaml:"source" json:"source"`

	// InitialVolume is applied when all tracks start playing.
	InitialVolume float64 `yaml:"initial_volume" json:"initial_volume"`
}
