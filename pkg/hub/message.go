// Package hub fans monitor events out to dashboard websocket clients
// using the channel-based register/unregister/broadcast pattern.
package hub

import "encoding/json"

// Event kinds published by the host.
const (
	KindVisitor = "visitor" // Visitor snapshot changed
	KindLeft    = "left"    // Visitor disconnected
	KindLog     = "log"     // Human-readable host event
)

// Event is one monitor update. Events with a Key are retained until the
// key is forgotten, so clients connecting late catch up.
type Event struct {
	Kind string          `json:"kind"`
	Key  string          `json:"key,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Message is an encoded event queued for clients
type Message struct {
	Kind string
	Key  string
	Data []byte
}

func encode(kind, key string, v any) (Message, error) {
	var raw json.RawMessage
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			return Message{}, err
		}
		raw = b
	}
	data, err := json.Marshal(Event{Kind: kind, Key: key, Data: raw})
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: kind, Key: key, Data: data}, nil
}
