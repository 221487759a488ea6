// Package replay drives a kikiscroll host the way a browser does, over the
// visitor WebSocket. It is used for scripted passes, soak tests and for
// listening to a host from the terminal.
package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/KikinaStudio/kikiscroll/internal/log"
	"github.com/KikinaStudio/kikiscroll/pkg/protocol"
)

const (
	handshakeTimeout = 10 * time.Second
	writeWait        = 5 * time.Second
)

// ErrClosed is returned by Send after Close or a lost connection.
var ErrClosed = errors.New("replay: connection closed")

// Client is one scripted visitor. It implements scroll.Listener so a
// scroll.Page can drive it directly.
type Client struct {
	ws     *websocket.Conn
	wsMu   sync.Mutex
	logger *slog.Logger

	messages chan *protocol.Message
	done     chan struct{}
	quit     chan struct{}

	mu     sync.Mutex
	err    error // First send failure from a Listener callback
	closed bool
}

// Dial connects to a visitor endpoint such as ws://host:8080/ws/visitor.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		ws:       ws,
		logger:   log.Or(logger).With("component", "replay"),
		messages: make(chan *protocol.Message, 256),
		done:     make(chan struct{}),
		quit:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Messages yields every host message. The channel closes when the
// connection ends.
func (c *Client) Messages() <-chan *protocol.Message {
	return c.messages
}

// Done is closed when the read side ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.messages)

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !c.isClosed() {
				c.logger.Debug("read ended", "error", err)
			}
			return
		}
		msg, err := protocol.ParseMessage(raw)
		if err != nil {
			c.logger.Warn("bad message", "error", err)
			continue
		}
		select {
		case c.messages <- msg:
		case <-c.quit:
			return
		}
	}
}

// Send writes one message.
func (c *Client) Send(t protocol.MessageType, data any) error {
	msg, err := protocol.NewMessage(t, data)
	if err != nil {
		return err
	}
	return c.write(msg)
}

func (c *Client) write(msg *protocol.Message) error {
	raw, err := msg.Bytes()
	if err != nil {
		return err
	}

	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	if c.isClosed() {
		return ErrClosed
	}
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("write %s: %w", msg.Type, err)
	}
	return nil
}

// Start presses the start button.
func (c *Client) Start() error {
	return c.Send(protocol.TypeStart, nil)
}

// Camera toggles the camera.
func (c *Client) Camera(active bool) error {
	return c.Send(protocol.TypeCamera, protocol.CameraData{Active: active})
}

// Answer replies to a camera_request.
func (c *Client) Answer(granted bool, reason string) error {
	return c.Send(protocol.TypeCameraPermission, protocol.CameraPermissionData{Granted: granted, Reason: reason})
}

// Expression reports a browser-side detection; nil means no face.
func (c *Client) Expression(smiling *bool) error {
	return c.Send(protocol.TypeExpression, protocol.ExpressionData{Smiling: smiling})
}

// Ping sends a health check.
func (c *Client) Ping(id string) error {
	msg, err := protocol.NewPingMessage(id)
	if err != nil {
		return err
	}
	return c.write(msg)
}

// OnSectionProgress sends a progress message.
func (c *Client) OnSectionProgress(section int, p float64) {
	c.keep(protocol.NewProgressMessage(section, p))
}

// OnEnter sends an enter message.
func (c *Client) OnEnter(section int) {
	c.keep(protocol.NewSectionMessage(protocol.TypeEnter, section))
}

// OnLeave sends a leave message.
func (c *Client) OnLeave(section int) {
	c.keep(protocol.NewSectionMessage(protocol.TypeLeave, section))
}

// OnLeaveBack sends a leave_back message.
func (c *Client) OnLeaveBack(section int) {
	c.keep(protocol.NewSectionMessage(protocol.TypeLeaveBack, section))
}

// OnScroll sends a scroll message.
func (c *Client) OnScroll(p float64) {
	c.keep(protocol.NewScrollMessage(p))
}

// keep sends msg and records the first failure for Err.
func (c *Client) keep(msg *protocol.Message, err error) {
	if err == nil {
		err = c.write(msg)
	}
	if err == nil {
		return
	}
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
}

// Err returns the first failure of a scroll callback.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close sends a close frame and waits briefly for the host to hang up.
func (c *Client) Close() error {
	c.wsMu.Lock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.wsMu.Unlock()
		return nil
	}
	c.closed = true
	close(c.quit)
	c.mu.Unlock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.wsMu.Unlock()

	select {
	case <-c.done:
	case <-time.After(time.Second):
	}
	return c.ws.Close()
}
