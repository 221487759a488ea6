package hub

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/KikinaStudio/kikiscroll/internal/log"
)

type retain struct {
	key string
	msg *Message // nil forgets key
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	name   string
	logger *slog.Logger

	// Registered clients
	clients map[*Client]bool

	// Last message per key, replayed to new clients
	retained map[string]Message

	broadcast  chan Message
	retains    chan retain
	register   chan *Client
	unregister chan *Client

	// Guards clients for ClientCount and Keys
	mu sync.RWMutex

	running atomic.Bool
	done    chan struct{}
}

// New creates a new Hub
func New(name string, logger *slog.Logger) *Hub {
	return &Hub{
		name:       name,
		logger:     log.Or(logger).With("hub", name),
		clients:    make(map[*Client]bool),
		retained:   make(map[string]Message),
		broadcast:  make(chan Message, 256),
		retains:    make(chan retain, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the hub's main loop. It returns when ctx ends, after closing
// every client. A hub runs at most once.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.replay(client)
			h.logger.Info("client connected", "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", "clients", count)

		case r := <-h.retains:
			h.mu.Lock()
			if r.msg == nil {
				delete(h.retained, r.key)
			} else {
				h.retained[r.key] = *r.msg
			}
			h.mu.Unlock()
			if r.msg != nil {
				h.fanOut(*r.msg)
			}

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

func (h *Hub) fanOut(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if !client.wants(message) {
			continue
		}
		select {
		case client.send <- message:
		default:
			// Too slow to keep up
			close(client.send)
			delete(h.clients, client)
			h.logger.Warn("dropped slow client")
		}
	}
}

func (h *Hub) replay(client *Client) {
	h.mu.RLock()
	keys := make([]string, 0, len(h.retained))
	for k := range h.retained {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]Message, 0, len(keys))
	for _, k := range keys {
		if m := h.retained[k]; client.wants(m) {
			msgs = append(msgs, m)
		}
	}
	h.mu.RUnlock()

	for _, m := range msgs {
		select {
		case client.send <- m:
		default:
			h.logger.Warn("replay truncated", "retained", len(msgs))
			return
		}
	}
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// Publish encodes v as an event, retains it under key and broadcasts it.
func (h *Hub) Publish(kind, key string, v any) error {
	msg, err := encode(kind, key, v)
	if err != nil {
		return err
	}
	select {
	case h.retains <- retain{key: key, msg: &msg}:
	default:
		h.logger.Warn("retain channel full, dropping event", "key", key)
	}
	return nil
}

// Forget drops the retained event for key and broadcasts a KindLeft event.
func (h *Hub) Forget(key string) {
	select {
	case h.retains <- retain{key: key}:
	default:
		h.logger.Warn("retain channel full, dropping forget", "key", key)
	}
	if msg, err := encode(KindLeft, key, nil); err == nil {
		h.Broadcast(msg)
	}
}

// BroadcastJSON encodes and broadcasts an unretained event
func (h *Hub) BroadcastJSON(kind string, v any) error {
	msg, err := encode(kind, "", v)
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Keys returns the retained keys in order.
func (h *Hub) Keys() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	keys := make([]string, 0, len(h.retained))
	for k := range h.retained {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsRunning returns whether the hub is running
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// Handler upgrades a request into a monitor client. Run must be active,
// registration blocks on it. ?kinds=visitor,left narrows the feed.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		var kinds []string
		if q := c.Query("kinds"); q != "" {
			kinds = strings.Split(q, ",")
		}
		NewClient(h, c, kinds...).Run()
	})
}
