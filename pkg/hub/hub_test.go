package hub

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"github.com/KikinaStudio/kikiscroll/internal/log"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	h := New("test", log.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	waitFor(t, "hub running", h.IsRunning)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws/monitor", h.Handler())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go app.Listener(ln)

	t.Cleanup(func() {
		cancel()
		app.Shutdown()
	})
	return h, "ws://" + ln.Addr().String() + "/ws/monitor"
}

func readEvent(t *testing.T, ws *websocket.Conn) Event {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	return ev
}

func TestNewHub(t *testing.T) {
	h := New("test", log.Discard())

	if h.ClientCount() != 0 {
		t.Errorf("Expected 0 clients, got %d", h.ClientCount())
	}
	if h.IsRunning() {
		t.Error("Hub should not run before Run")
	}
	if len(h.Keys()) != 0 {
		t.Errorf("Expected no retained keys, got %v", h.Keys())
	}
}

func TestPublishReplaysToLateClient(t *testing.T) {
	h, url := startHub(t)

	if err := h.Publish(KindVisitor, "b", map[string]int{"section": 2}); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if err := h.Publish(KindVisitor, "a", map[string]int{"section": 1}); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	waitFor(t, "retained keys", func() bool { return len(h.Keys()) == 2 })

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	first := readEvent(t, ws)
	second := readEvent(t, ws)
	if first.Key != "a" || second.Key != "b" {
		t.Errorf("Expected replay in key order a, b; got %s, %s", first.Key, second.Key)
	}
	if first.Kind != KindVisitor {
		t.Errorf("Expected kind %s, got %s", KindVisitor, first.Kind)
	}
	var data map[string]int
	if err := json.Unmarshal(first.Data, &data); err != nil || data["section"] != 1 {
		t.Errorf("Expected section 1, got %v (err %v)", data, err)
	}
}

func TestForgetBroadcastsLeft(t *testing.T) {
	h, url := startHub(t)

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()
	waitFor(t, "client registered", func() bool { return h.ClientCount() == 1 })

	h.Publish(KindVisitor, "v1", map[string]bool{"started": true})
	if ev := readEvent(t, ws); ev.Kind != KindVisitor || ev.Key != "v1" {
		t.Fatalf("Expected visitor v1, got %s %s", ev.Kind, ev.Key)
	}

	h.Forget("v1")
	if ev := readEvent(t, ws); ev.Kind != KindLeft || ev.Key != "v1" {
		t.Errorf("Expected left v1, got %s %s", ev.Kind, ev.Key)
	}
	waitFor(t, "key forgotten", func() bool { return len(h.Keys()) == 0 })
}

func TestBroadcastJSONNotRetained(t *testing.T) {
	h, url := startHub(t)

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()
	waitFor(t, "client registered", func() bool { return h.ClientCount() == 1 })

	if err := h.BroadcastJSON(KindLog, "visitor connected"); err != nil {
		t.Fatalf("BroadcastJSON error: %v", err)
	}
	ev := readEvent(t, ws)
	if ev.Kind != KindLog {
		t.Errorf("Expected kind %s, got %s", KindLog, ev.Kind)
	}
	if len(h.Keys()) != 0 {
		t.Errorf("Log events should not be retained, got %v", h.Keys())
	}
}

func TestClientDisconnect(t *testing.T) {
	h, url := startHub(t)

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	waitFor(t, "client registered", func() bool { return h.ClientCount() == 1 })

	ws.Close()
	waitFor(t, "client unregistered", func() bool { return h.ClientCount() == 0 })
}

func TestRunStopsOnCancel(t *testing.T) {
	h := New("test", log.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	waitFor(t, "hub running", h.IsRunning)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if h.IsRunning() {
		t.Error("Hub should report stopped")
	}
}

func TestEncodeUnmarshalable(t *testing.T) {
	h := New("test", log.Discard())
	if err := h.Publish(KindVisitor, "x", make(chan int)); err == nil {
		t.Error("Publish should fail on unmarshalable data")
	}
}

func TestKindsFilter(t *testing.T) {
	h, url := startHub(t)

	h.Publish(KindVisitor, "v1", map[string]int{"section": 0})
	waitFor(t, "retained key", func() bool { return len(h.Keys()) == 1 })

	ws, _, err := websocket.DefaultDialer.Dial(url+"?kinds=log", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()
	waitFor(t, "client registered", func() bool { return h.ClientCount() == 1 })

	h.Publish(KindVisitor, "v2", map[string]int{"section": 1})
	h.Forget("v1")
	if err := h.BroadcastJSON(KindLog, map[string]string{"message": "hello"}); err != nil {
		t.Fatalf("BroadcastJSON error: %v", err)
	}

	if ev := readEvent(t, ws); ev.Kind != KindLog {
		t.Errorf("Expected only log events, got %s %s", ev.Kind, ev.Key)
	}
}
