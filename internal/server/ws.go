package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/martingsewell/e-nor/internal/state"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Trusted local network only
	},
}

// ClientHandler serves the persistent WebSocket channel to display clients.
// Each connection is subscribed to the state hub (snapshot first, then
// ordered deltas) and its inbound messages feed the hub, the dispatcher and
// the chat service.
type ClientHandler struct {
	config Config
}

// NewClientHandler creates a ClientHandler over the server configuration.
func NewClientHandler(config Config) *ClientHandler {
	return &ClientHandler{config: config}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *ClientHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade error: %v", err)
		return
	}
	defer conn.Close()

	sub := h.config.Hub.Subscribe()
	log.Printf("ws: client connected (total %d)", h.config.Hub.ClientCount())

	// All writes to the connection go through one channel so the hub stream
	// and direct replies (pong) never interleave mid-frame. The forwarder is
	// the sole closer of outbound, and it closes only after the subscription
	// channel is drained; the reader's direct sends all happen before
	// Unsubscribe, so no send can ever hit a closed channel.
	outbound := make(chan []byte, 16)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range outbound {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				conn.Close() // unblocks the read loop
				break
			}
		}
		for range outbound {
			// Drain until the forwarder closes, so it never blocks on a
			// dead writer.
		}
	}()

	go func() {
		defer close(outbound)
		for msg := range sub.Messages() {
			outbound <- msg
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var msg state.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("ws: bad client message: %v", err)
			continue
		}
		h.handleMessage(r.Context(), msg, outbound)
	}

	h.config.Hub.Unsubscribe(sub)
	<-writerDone
	log.Printf("ws: client disconnected (total %d)", h.config.Hub.ClientCount())
}

// handleMessage routes one inbound client message.
func (h *ClientHandler) handleMessage(ctx context.Context, msg state.Message, outbound chan []byte) {
	hub := h.config.Hub

	switch msg.Type() {
	case "ping":
		// Heartbeat reply goes only to the sender, not the broadcast path.
		reply, _ := json.Marshal(state.Message{"type": "pong"})
		select {
		case outbound <- reply:
		default:
		}

	case "set_mode":
		// Inbound mode toggles are rebroadcast as mode_change events.
		mode, _ := msg["mode"].(string)
		enabled, ok := msg["enabled"].(bool)
		if !ok {
			enabled = true
		}
		hub.Apply(state.Message{"type": "mode_change", "mode": mode, "enabled": enabled})

	case "emergency_stop":
		if h.config.Stops != nil && h.config.Registry != nil {
			h.config.Stops.StopAll(h.config.Registry.IDs())
		}
		log.Printf("ws: EMERGENCY STOP triggered")
		hub.Reset()

	case "run_extension":
		extID, _ := msg["extension_id"].(string)
		action, _ := msg["action"].(string)
		params, _ := msg["params"].(map[string]any)
		if h.config.Dispatcher == nil || extID == "" {
			return
		}
		// Dispatch off the read loop so a slow handler cannot stall the
		// heartbeat; the result travels back as a broadcast.
		go func() {
			result := h.config.Dispatcher.Dispatch(context.Background(), extID, action, params)
			if !result.Success {
				log.Printf("ws: run_extension %s/%s failed: %s", extID, action, result.Error)
			}
			hub.Apply(state.Message{
				"type":         "extension_result",
				"extension_id": extID,
				"action":       action,
				"result":       result,
			})
		}()

	case "voice_input":
		text, _ := msg["text"].(string)
		if h.config.Chat == nil || text == "" {
			return
		}
		go func() {
			reply := h.config.Chat.Process(context.Background(), text)
			hub.Apply(state.Message{"type": "speak", "text": reply.Text, "source": "chat"})
		}()

	case "emotion", "disco", "show_overlay", "hide_overlay", "speak",
		"panel_opened", "panel_closed", "close_panel", "play_honk",
		"action", "game_control", "game_action", "launch_game",
		"start_voice_mode", "stop_voice_mode":
		hub.Apply(msg)

	default:
		log.Printf("ws: ignoring unknown message type %q", msg.Type())
	}
}
