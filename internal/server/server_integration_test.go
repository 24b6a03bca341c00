package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/martingsewell/e-nor/internal/extension"
	"github.com/martingsewell/e-nor/internal/state"
)

// newWSClient dials the test server's WebSocket endpoint.
func newWSClient(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) state.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg state.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	return msg
}

func TestWS_ClientLifecycle(t *testing.T) {
	extension.RegisterHandler("ws_dragon", func(api *extension.API) extension.Handler {
		return extension.HandlerFunc(func(ctx context.Context, action string, params map[string]any) (any, error) {
			if action != "activate" {
				return nil, extension.ErrUnknownAction
			}
			api.SetEmotion("fierce")
			return "Dragon mode activated!", nil
		})
	})

	root := t.TempDir()
	writeTestBundle(t, root, "ws_dragon", `{
		"id": "ws_dragon",
		"name": "WS Dragon",
		"type": "mode",
		"provides": {"handler": true}
	}`)

	hub := state.NewHub()
	stops := extension.NewStopFlags()
	registry := extension.NewRegistry(root, hub, stops, nil)
	if _, err := registry.Scan(); err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}

	srv := httptest.NewServer(New(Config{
		Hub:        hub,
		Registry:   registry,
		Dispatcher: extension.NewDispatcher(registry),
		Stops:      stops,
	}))
	defer srv.Close()

	conn := newWSClient(t, srv)

	// The first frame is always a full state snapshot
	msg := readWS(t, conn)
	if msg.Type() != "state" {
		t.Fatalf("expected a state snapshot first, got %v", msg)
	}

	t.Run("ping pong", func(t *testing.T) {
		if err := conn.WriteJSON(state.Message{"type": "ping"}); err != nil {
			t.Fatalf("failed to write: %v", err)
		}
		if msg := readWS(t, conn); msg.Type() != "pong" {
			t.Fatalf("expected pong, got %v", msg)
		}
	})

	t.Run("set_mode rebroadcast", func(t *testing.T) {
		if err := conn.WriteJSON(state.Message{"type": "set_mode", "mode": "ws_dragon", "enabled": true}); err != nil {
			t.Fatalf("failed to write: %v", err)
		}
		msg := readWS(t, conn)
		if msg.Type() != "mode_change" {
			t.Fatalf("expected mode_change, got %v", msg)
		}
		modes, _ := msg["active_modes"].([]any)
		if len(modes) != 1 || modes[0] != "ws_dragon" {
			t.Errorf("expected active modes in broadcast, got %v", msg["active_modes"])
		}
	})

	t.Run("run_extension", func(t *testing.T) {
		if err := conn.WriteJSON(state.Message{
			"type":         "run_extension",
			"extension_id": "ws_dragon",
			"action":       "activate",
		}); err != nil {
			t.Fatalf("failed to write: %v", err)
		}

		// The handler's delta arrives before the dispatch result
		if msg := readWS(t, conn); msg.Type() != "emotion" {
			t.Fatalf("expected emotion delta, got %v", msg)
		}
		msg := readWS(t, conn)
		if msg.Type() != "extension_result" {
			t.Fatalf("expected extension_result, got %v", msg)
		}
		result, _ := msg["result"].(map[string]any)
		if result["success"] != true {
			t.Errorf("expected a successful result, got %v", msg["result"])
		}
	})

	t.Run("emergency stop", func(t *testing.T) {
		if err := conn.WriteJSON(state.Message{"type": "emergency_stop"}); err != nil {
			t.Fatalf("failed to write: %v", err)
		}

		msg := readWS(t, conn)
		if msg.Type() != "emergency_stop" {
			t.Fatalf("expected emergency_stop broadcast, got %v", msg)
		}
		if !stops.IsStopped("ws_dragon") {
			t.Error("emergency stop should raise every extension's stop flag")
		}
		if snap := hub.Snapshot(); snap.Emotion != state.DefaultEmotion {
			t.Errorf("emergency stop should reset state, got emotion %q", snap.Emotion)
		}
	})

	t.Run("passthrough and unknown types", func(t *testing.T) {
		if err := conn.WriteJSON(state.Message{"type": "emotion", "emotion": "excited"}); err != nil {
			t.Fatalf("failed to write: %v", err)
		}
		if msg := readWS(t, conn); msg["emotion"] != "excited" {
			t.Fatalf("expected the emotion rebroadcast, got %v", msg)
		}

		// Unknown types are ignored, not broadcast and not fatal
		if err := conn.WriteJSON(state.Message{"type": "teleport"}); err != nil {
			t.Fatalf("failed to write: %v", err)
		}
		if err := conn.WriteJSON(state.Message{"type": "disco", "enabled": true}); err != nil {
			t.Fatalf("failed to write: %v", err)
		}
		if msg := readWS(t, conn); msg.Type() != "disco" {
			t.Fatalf("unknown type should be skipped, got %v", msg)
		}
	})
}

// TestWS_DisconnectUnderBroadcastLoad churns client connections while the hub
// broadcasts continuously. Teardown of a departing client must never race the
// hub forwarding path into a send on a closed channel, which would take down
// the whole process.
func TestWS_DisconnectUnderBroadcastLoad(t *testing.T) {
	hub := state.NewHub()
	srv := httptest.NewServer(New(Config{Hub: hub}))
	defer srv.Close()

	done := make(chan struct{})
	var applied sync.WaitGroup
	applied.Add(1)
	go func() {
		defer applied.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			hub.Apply(state.Message{"type": "emotion", "emotion": "happy"})
		}
	}()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	for i := 0; i < 200; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("dial %d failed: %v", i, err)
		}
		// Read a frame or two so the writer is mid-stream, then drop the
		// connection abruptly.
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		conn.ReadMessage()
		if i%2 == 0 {
			conn.ReadMessage()
		}
		conn.Close()
	}
	close(done)
	applied.Wait()

	// The server must still be fully functional afterwards.
	conn := newWSClient(t, srv)
	if msg := readWS(t, conn); msg.Type() != "state" {
		t.Fatalf("expected a state snapshot, got %v", msg)
	}
	if err := conn.WriteJSON(state.Message{"type": "ping"}); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	for {
		msg := readWS(t, conn)
		if msg.Type() == "pong" {
			break
		}
	}
}

func TestWS_TwoClientsShareState(t *testing.T) {
	hub := state.NewHub()
	srv := httptest.NewServer(New(Config{Hub: hub}))
	defer srv.Close()

	a := newWSClient(t, srv)
	readWS(t, a)

	// State changed before the second client connects
	hub.Apply(state.Message{"type": "emotion", "emotion": "sleepy"})
	readWS(t, a)

	b := newWSClient(t, srv)
	msg := readWS(t, b)
	data, _ := msg["data"].(map[string]any)
	if data["emotion"] != "sleepy" {
		t.Errorf("late joiner should see accumulated state, got %v", data["emotion"])
	}

	// A broadcast reaches both clients
	hub.Apply(state.Message{"type": "emotion", "emotion": "happy"})
	for _, conn := range []*websocket.Conn{a, b} {
		if msg := readWS(t, conn); msg["emotion"] != "happy" {
			t.Errorf("expected broadcast on both clients, got %v", msg)
		}
	}
}
