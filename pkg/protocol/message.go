// Package protocol defines the WebSocket messages exchanged between a
// visitor's browser and the kikiscroll host.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/KikinaStudio/kikiscroll/pkg/director"
	"github.com/KikinaStudio/kikiscroll/pkg/engine"
	"github.com/KikinaStudio/kikiscroll/pkg/narrative"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Browser → Host messages
	TypeStart            MessageType = "start"             // Visitor pressed the start button
	TypeProgress         MessageType = "progress"          // Pinned section progress
	TypeEnter            MessageType = "enter"             // Section pinned
	TypeLeave            MessageType = "leave"             // Scrolled past a section
	TypeLeaveBack        MessageType = "leave_back"        // Scrolled back above a section
	TypeScroll           MessageType = "scroll"            // Global page progress
	TypeCamera           MessageType = "camera"            // Camera toggle request
	TypeCameraPermission MessageType = "camera_permission" // Answer to camera_request
	TypeFrame            MessageType = "frame"             // Webcam frame
	TypeExpression       MessageType = "expression"        // Client-side detection result

	// Host → Browser messages
	TypeNarrative     MessageType = "narrative"      // Sections and tracks, sent on connect
	TypePlay          MessageType = "play"           // Start a looping track
	TypeFade          MessageType = "fade"           // Ramp a track
	TypeStop          MessageType = "stop"           // Stop a track
	TypeVisual        MessageType = "visual"         // Visual targets
	TypeCameraRequest MessageType = "camera_request" // Ask the browser for getUserMedia
	TypeCameraRelease MessageType = "camera_release" // Stop the capture stream
	TypeState         MessageType = "state"          // Engine snapshot
	TypeError         MessageType = "error"          // Rejected request

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Browser → Host Message Types
// =============================================================================

// ProgressData is one scroll-driven frame of a pinned section
type ProgressData struct {
	Section  int     `json:"section"`
	Progress float64 `json:"progress"` // 0.0 to 1.0
}

// SectionData names a section in a lifecycle event
type SectionData struct {
	Section int `json:"section"`
}

// ScrollData carries global page progress
type ScrollData struct {
	Progress float64 `json:"progress"` // 0.0 to 1.0
}

// CameraData toggles the camera
type CameraData struct {
	Active bool `json:"active"`
}

// CameraPermissionData answers a camera_request
type CameraPermissionData struct {
	Granted bool   `json:"granted"`
	Reason  string `json:"reason,omitempty"`
}

// FrameData contains a webcam frame
type FrameData struct {
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Format string `json:"format"` // "jpeg"
	Data   string `json:"data"`   // base64 encoded
}

// ExpressionData is a detection computed in the browser.
// Smiling is null when no face was found.
type ExpressionData struct {
	Smiling *bool   `json:"smiling"`
	Happy   float64 `json:"happy,omitempty"` // Raw happy score, informational
}

// =============================================================================
// Host → Browser Message Types
// =============================================================================

// NarrativeData describes the experience to a newly connected browser
type NarrativeData struct {
	Visitor  string                `json:"visitor"`
	Name     string                `json:"name"`
	Sections []narrative.Section   `json:"sections"`
	Tracks   []narrative.TrackSpec `json:"tracks"`
	Camera   bool                  `json:"camera"` // Server-side detection available
}

// PlayData starts a looping track
type PlayData struct {
	Track  narrative.Track `json:"track"`
	Volume float64         `json:"volume"`
}

// FadeData ramps a track linearly
type FadeData struct {
	Track      narrative.Track `json:"track"`
	From       float64         `json:"from"`
	Volume     float64         `json:"volume"`
	DurationMs int64           `json:"duration_ms"`
}

// Duration returns the fade length.
func (f FadeData) Duration() time.Duration {
	return time.Duration(f.DurationMs) * time.Millisecond
}

// StopData stops a track
type StopData struct {
	Track narrative.Track `json:"track"`
}

// VisualData carries the visual targets
type VisualData = director.Frame

// StateData carries an engine snapshot
type StateData = engine.Snapshot

// ErrorData explains a rejected request
type ErrorData struct {
	Request MessageType `json:"request"`
	Message string      `json:"message"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
