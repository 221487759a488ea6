package visitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/KikinaStudio/kikiscroll/pkg/director"
	"github.com/KikinaStudio/kikiscroll/pkg/engine"
	"github.com/KikinaStudio/kikiscroll/pkg/expression"
	"github.com/KikinaStudio/kikiscroll/pkg/mixer"
	"github.com/KikinaStudio/kikiscroll/pkg/narrative"
	"github.com/KikinaStudio/kikiscroll/pkg/protocol"
)

// publishEvery throttles snapshots caused by continuous scroll input.
const publishEvery = 250 * time.Millisecond

// Visitor is one browser session running its own engine.
type Visitor struct {
	ID        string
	Connected time.Time

	conn   *websocket.Conn
	hub    *Hub
	logger *slog.Logger

	engine *engine.Engine
	mixer  *mixer.Mixer
	camera *RemoteCamera

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex // Guards writes and the fields below
	lastSeen    time.Time
	lastPublish time.Time
}

func newVisitor(h *Hub, id string, conn *websocket.Conn, cfg *narrative.Config) *Visitor {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	v := &Visitor{
		ID:        id,
		Connected: now,
		conn:      conn,
		hub:       h,
		logger:    h.logger.With("visitor", id),
		ctx:       ctx,
		cancel:    cancel,
		lastSeen:  now,
	}

	v.mixer = mixer.New(cfg.Tracks, NewRemoteBackend(v.Send), mixer.WithLogger(v.logger))
	v.camera = NewRemoteCamera(v.Send, h.frameMaxAge)
	v.engine = engine.New(cfg, v.mixer,
		engine.WithLogger(v.logger),
		engine.WithCamera(v.camera, h.models),
		engine.WithRenderer(engine.RendererFunc(v.render)),
	)
	return v
}

// Send writes a message to the browser.
func (v *Visitor) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	v.hub.messagesSent.Add(1)
	return nil
}

// Snapshot returns the engine state.
func (v *Visitor) Snapshot() engine.Snapshot {
	return v.engine.Snapshot()
}

// LastSeen returns when the browser last sent a message.
func (v *Visitor) LastSeen() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastSeen
}

func (v *Visitor) render(f director.Frame) {
	msg, err := protocol.NewMessage(protocol.TypeVisual, f)
	if err != nil {
		v.logger.Warn("encode visual failed", "error", err)
		return
	}
	if err := v.Send(msg); err != nil {
		v.logger.Debug("send visual failed", "error", err)
	}
}

func (v *Visitor) hello() error {
	cfg := v.engine.Config()
	msg, err := protocol.NewMessage(protocol.TypeNarrative, protocol.NarrativeData{
		Visitor:  v.ID,
		Name:     cfg.Name,
		Sections: cfg.Sections,
		Tracks:   cfg.Tracks,
		Camera:   v.hub.models != nil,
	})
	if err != nil {
		return err
	}
	return v.Send(msg)
}

// handle dispatches one browser message. Malformed payloads are logged and
// answered with an error message; they never end the session.
func (v *Visitor) handle(data []byte) {
	v.mu.Lock()
	v.lastSeen = time.Now()
	v.mu.Unlock()

	msg, err := protocol.ParseMessage(data)
	if err != nil {
		v.logger.Debug("parse error", "error", err)
		return
	}

	if err := v.dispatch(msg); err != nil {
		v.logger.Debug("rejected message", "type", msg.Type, "error", err)
		v.sendError(msg.Type, err)
	}
}

func (v *Visitor) dispatch(msg *protocol.Message) error {
	switch msg.Type {
	case protocol.TypeStart:
		v.engine.Start()
		v.publish(true)

	case protocol.TypeProgress:
		d, err := protocol.ParseProgressData(msg)
		if err != nil {
			return err
		}
		v.engine.OnSectionProgress(d.Section, d.Progress)
		v.publish(false)

	case protocol.TypeEnter, protocol.TypeLeave, protocol.TypeLeaveBack:
		d, err := protocol.ParseSectionData(msg)
		if err != nil {
			return err
		}
		switch msg.Type {
		case protocol.TypeEnter:
			v.engine.OnEnter(d.Section)
		case protocol.TypeLeave:
			v.engine.OnLeave(d.Section)
		default:
			v.engine.OnLeaveBack(d.Section)
		}
		v.publish(true)

	case protocol.TypeScroll:
		var d protocol.ScrollData
		if err := msg.ParseData(&d); err != nil {
			return err
		}
		v.engine.OnScroll(d.Progress)
		v.publish(false)

	case protocol.TypeCamera:
		var d protocol.CameraData
		if err := msg.ParseData(&d); err != nil {
			return err
		}
		if d.Active {
			go v.activateCamera()
			return nil
		}
		v.engine.DeactivateCamera()
		v.publish(true)

	case protocol.TypeCameraPermission:
		var d protocol.CameraPermissionData
		if err := msg.ParseData(&d); err != nil {
			return err
		}
		if !v.camera.Answer(d.Granted, d.Reason) {
			v.logger.Debug("unsolicited camera permission", "granted", d.Granted)
		}

	case protocol.TypeFrame:
		var d protocol.FrameData
		if err := msg.ParseData(&d); err != nil {
			return err
		}
		frame, err := protocol.DecodeFrame(&d)
		if err != nil {
			return err
		}
		v.hub.framesReceived.Add(1)
		v.camera.Push(frame)

	case protocol.TypeExpression:
		var d protocol.ExpressionData
		if err := msg.ParseData(&d); err != nil {
			return err
		}
		v.engine.OnExpression(expression.FromSmiling(d.Smiling))
		v.publish(false)

	case protocol.TypePing:
		var d protocol.PingData
		if err := msg.ParseData(&d); err != nil {
			return err
		}
		pong, err := protocol.NewPongMessage(&d)
		if err != nil {
			return err
		}
		return v.Send(pong)

	default:
		v.logger.Debug("ignored message", "type", msg.Type)
	}
	return nil
}

func (v *Visitor) activateCamera() {
	err := v.engine.ActivateCamera(v.ctx)
	switch {
	case err == nil:
	case errors.Is(err, expression.ErrSessionSuperseded), errors.Is(err, context.Canceled):
		v.logger.Debug("camera request dropped", "error", err)
	default:
		v.sendError(protocol.TypeCamera, err)
	}
	v.publish(true)
}

func (v *Visitor) sendError(request protocol.MessageType, err error) {
	msg, merr := protocol.NewErrorMessage(request, err)
	if merr != nil {
		return
	}
	if err := v.Send(msg); err != nil {
		v.logger.Debug("send error failed", "error", err)
	}
}

// publish sends the snapshot to the browser and the state hook. Continuous
// input is throttled; lifecycle events force it.
func (v *Visitor) publish(force bool) {
	now := time.Now()
	v.mu.Lock()
	if !force && now.Sub(v.lastPublish) < publishEvery {
		v.mu.Unlock()
		return
	}
	v.lastPublish = now
	v.mu.Unlock()

	snap := v.engine.Snapshot()
	if msg, err := protocol.NewMessage(protocol.TypeState, snap); err == nil {
		if err := v.Send(msg); err != nil {
			v.logger.Debug("send state failed", "error", err)
		}
	}
	v.hub.notifyState(v.ID, snap)
}

func (v *Visitor) close() {
	v.cancel()
	v.engine.Close()
}
