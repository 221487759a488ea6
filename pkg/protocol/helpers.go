package protocol

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/KikinaStudio/kikiscroll/pkg/narrative"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewProgressMessage creates a section progress message
func NewProgressMessage(section int, progress float64) (*Message, error) {
	return NewMessage(TypeProgress, ProgressData{Section: section, Progress: progress})
}

// NewSectionMessage creates an enter, leave or leave_back message
func NewSectionMessage(t MessageType, section int) (*Message, error) {
	switch t {
	case TypeEnter, TypeLeave, TypeLeaveBack:
	default:
		return nil, fmt.Errorf("not a section lifecycle type: %s", t)
	}
	return NewMessage(t, SectionData{Section: section})
}

// NewScrollMessage creates a global scroll message
func NewScrollMessage(progress float64) (*Message, error) {
	return NewMessage(TypeScroll, ScrollData{Progress: progress})
}

// NewFrameMessage creates a frame message from raw JPEG data
func NewFrameMessage(width, height int, jpegData []byte) (*Message, error) {
	return NewMessage(TypeFrame, FrameData{
		Width:  width,
		Height: height,
		Format: "jpeg",
		Data:   base64.StdEncoding.EncodeToString(jpegData),
	})
}

// NewPlayMessage creates a play message
func NewPlayMessage(track narrative.Track, volume float64) (*Message, error) {
	return NewMessage(TypePlay, PlayData{Track: track, Volume: volume})
}

// NewFadeMessage creates a fade message
func NewFadeMessage(track narrative.Track, from, to float64, d time.Duration) (*Message, error) {
	return NewMessage(TypeFade, FadeData{
		Track:      track,
		From:       from,
		Volume:     to,
		DurationMs: d.Milliseconds(),
	})
}

// NewStopMessage creates a stop message
func NewStopMessage(track narrative.Track) (*Message, error) {
	return NewMessage(TypeStop, StopData{Track: track})
}

// NewErrorMessage creates an error message for a rejected request
func NewErrorMessage(request MessageType, err error) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Request: request, Message: err.Error()})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
	})
}

// NewPongMessage creates a pong response to a ping
func NewPongMessage(ping *PingData) (*Message, error) {
	now := time.Now().UnixMilli()
	return NewMessage(TypePong, PongData{
		ID:        ping.ID,
		PingTS:    ping.Timestamp,
		PongTS:    now,
		LatencyMs: now - ping.Timestamp,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// DecodeFrame decodes the base64 payload of a frame message
func DecodeFrame(f *FrameData) ([]byte, error) {
	if f.Format != "" && f.Format != "jpeg" {
		return nil, fmt.Errorf("unsupported frame format: %s", f.Format)
	}
	data, err := base64.StdEncoding.DecodeString(f.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return data, nil
}

// ParseProgressData extracts ProgressData from a message
func ParseProgressData(msg *Message) (*ProgressData, error) {
	if msg.Type != TypeProgress {
		return nil, fmt.Errorf("expected progress message, got %s", msg.Type)
	}
	var data ProgressData
	if err := msg.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ParseSectionData extracts SectionData from a lifecycle message
func ParseSectionData(msg *Message) (*SectionData, error) {
	switch msg.Type {
	case TypeEnter, TypeLeave, TypeLeaveBack:
	default:
		return nil, fmt.Errorf("expected section lifecycle message, got %s", msg.Type)
	}
	var data SectionData
	if err := msg.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ParseFadeData extracts FadeData from a message
func ParseFadeData(msg *Message) (*FadeData, error) {
	if msg.Type != TypeFade {
		return nil, fmt.Errorf("expected fade message, got %s", msg.Type)
	}
	var data FadeData
	if err := msg.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
