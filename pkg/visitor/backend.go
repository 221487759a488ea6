package visitor

import (
	"time"

	"github.com/KikinaStudio/kikiscroll/pkg/narrative"
	"github.com/KikinaStudio/kikiscroll/pkg/protocol"
)

// Sender delivers one message to the browser.
type Sender func(msg *protocol.Message) error

// RemoteBackend plays the mix in the browser by streaming play, fade and
// stop commands over the visitor socket.
type RemoteBackend struct {
	send Sender
}

// NewRemoteBackend creates a backend writing through send.
func NewRemoteBackend(send Sender) *RemoteBackend {
	return &RemoteBackend{send: send}
}

// Play implements mixer.Backend.
func (b *RemoteBackend) Play(track narrative.Track, volume float64) error {
	msg, err := protocol.NewPlayMessage(track, volume)
	if err != nil {
		return err
	}
	return b.send(msg)
}

// Ramp implements mixer.Backend.
func (b *RemoteBackend) Ramp(track narrative.Track, from, to float64, d time.Duration) error {
	msg, err := protocol.NewFadeMessage(track, from, to, d)
	if err != nil {
		return err
	}
	return b.send(msg)
}

// Stop implements mixer.Backend.
func (b *RemoteBackend) Stop(track narrative.Track) error {
	msg, err := protocol.NewStopMessage(track)
	if err != nil {
		return err
	}
	return b.send(msg)
}
