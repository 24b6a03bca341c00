package state

import (
	"encoding/json"
	"log"
	"sync"
)

// Message is one state delta or event on the display channel. Every message
// carries a "type" discriminator; the remaining fields depend on the type.
type Message map[string]any

// Type returns the message's type discriminator.
func (m Message) Type() string {
	t, _ := m["type"].(string)
	return t
}

func (m Message) str(key string) string {
	s, _ := m[key].(string)
	return s
}

func (m Message) boolean(key string) bool {
	b, _ := m[key].(bool)
	return b
}

// subscriberBuffer is the per-client delta queue length. A client that falls
// this far behind is dropped and picks up a fresh snapshot on reconnect.
const subscriberBuffer = 64

// Subscriber is one connected display client's ordered delta stream. The
// first message on the channel is always a full state snapshot.
type Subscriber struct {
	ch     chan []byte
	closed bool
}

// Messages returns the subscriber's ordered message stream. The channel is
// closed when the subscriber is unsubscribed or pruned.
func (s *Subscriber) Messages() <-chan []byte {
	return s.ch
}

// Hub owns the runtime State and fans deltas out to subscribers. Mutation and
// enqueueing happen inside one mutex scope, so each subscriber observes
// deltas in exactly the order they were applied.
type Hub struct {
	mu    sync.Mutex
	state State
	subs  map[*Subscriber]bool
}

// NewHub creates a hub with the default startup state and no subscribers.
func NewHub() *Hub {
	return &Hub{
		state: newState(),
		subs:  make(map[*Subscriber]bool),
	}
}

// Subscribe registers a new display client. Its stream is seeded with a full
// state snapshot before any delta applied after this call.
func (h *Hub) Subscribe() *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscriber{ch: make(chan []byte, subscriberBuffer)}
	sub.ch <- encode(Message{"type": "state", "data": h.state.data()})
	h.subs[sub] = true
	return sub
}

// Unsubscribe removes a display client and closes its stream.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(sub)
}

func (h *Hub) dropLocked(sub *Subscriber) {
	if !h.subs[sub] {
		return
	}
	delete(h.subs, sub)
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Snapshot returns a copy of the current state.
func (h *Hub) Snapshot() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.clone()
}

// Apply mutates the state according to the message type and broadcasts the
// message to every subscriber. Messages whose type carries no state (speak,
// play_sound, action, panel updates, raw extension events) are broadcast
// unchanged. Conflicting writers are serialized here; last write wins.
func (h *Hub) Apply(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.applyLocked(msg)
	h.broadcastLocked(encode(msg))
}

// Reset restores the startup state (keeping subscribers) and broadcasts an
// emergency_stop message carrying the reset state. Used by the emergency stop.
func (h *Hub) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state = newState()
	h.broadcastLocked(encode(Message{"type": "emergency_stop", "state": h.state.data()}))
}

func (h *Hub) applyLocked(msg Message) {
	switch msg.Type() {
	case "emotion":
		emotion := msg.str("emotion")
		if emotion == "" {
			emotion = DefaultEmotion
		}
		h.state.Emotion = emotion

	case "disco":
		h.state.Disco = msg.boolean("enabled")

	case "set_mode", "mode_change":
		mode := msg.str("mode")
		if mode == "" {
			return
		}
		if msg.boolean("enabled") {
			h.state.Modes[mode] = true
		} else {
			delete(h.state.Modes, mode)
		}
		msg["active_modes"] = h.state.ActiveModes()

	case "show_overlay":
		overlay := msg.str("overlay_id")
		if overlay == "" {
			return
		}
		h.state.Overlays[overlay] = msg.str("extension_id")
		msg["overlays"] = h.state.ActiveOverlays()

	case "hide_overlay":
		overlay := msg.str("overlay_id")
		if overlay == "" {
			// No id hides everything, matching the display protocol.
			h.state.Overlays = make(map[string]string)
		} else {
			delete(h.state.Overlays, overlay)
		}
		msg["overlays"] = h.state.ActiveOverlays()

	case "show_panel", "panel_opened":
		panelID := msg.str("panel_id")
		if panelID == "" {
			return
		}
		h.state.Panels[panelID] = Panel{
			ExtensionID: msg.str("extension_id"),
			Type:        msg.str("panel_type"),
		}
		h.refreshGameActiveLocked()

	case "hide_panel", "panel_closed":
		delete(h.state.Panels, msg.str("panel_id"))
		h.refreshGameActiveLocked()

	case "close_panel":
		h.state.Panels = make(map[string]Panel)
		h.state.GameActive = false
	}
}

func (h *Hub) refreshGameActiveLocked() {
	h.state.GameActive = false
	for _, p := range h.state.Panels {
		if p.Type == "game" {
			h.state.GameActive = true
			return
		}
	}
}

// broadcastLocked enqueues data on every subscriber, pruning any whose buffer
// is full. Delivery is best-effort: a pruned client reconnects and self-heals
// from the snapshot.
func (h *Hub) broadcastLocked(data []byte) {
	for sub := range h.subs {
		select {
		case sub.ch <- data:
		default:
			log.Printf("state: dropping slow display client")
			h.dropLocked(sub)
		}
	}
}

func encode(msg Message) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("state: failed to encode message type %q: %v", msg.Type(), err)
		return []byte(`{}`)
	}
	return data
}
