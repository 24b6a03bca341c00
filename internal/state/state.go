// Package state holds the robot's shared runtime state and broadcasts state
// deltas to every connected display client.
package state

import "sort"

// Panel records an open UI panel and which extension owns it.
type Panel struct {
	ExtensionID string `json:"extension_id"`
	Type        string `json:"type"`
}

// State is the authoritative runtime state of the robot. It is ephemeral:
// initialized at process start and never persisted. All mutation goes through
// Hub.Apply; display clients never write it directly.
type State struct {
	Emotion    string
	Disco      bool
	Modes      map[string]bool
	Overlays   map[string]string // overlay id -> owning extension id
	Panels     map[string]Panel
	GameActive bool
}

// DefaultEmotion is the face shown at startup and after an emergency stop.
const DefaultEmotion = "happy"

// newState returns the startup state.
func newState() State {
	return State{
		Emotion:  DefaultEmotion,
		Modes:    make(map[string]bool),
		Overlays: make(map[string]string),
		Panels:   make(map[string]Panel),
	}
}

// clone returns a deep copy so callers can read a snapshot without racing
// later mutations.
func (s State) clone() State {
	c := s
	c.Modes = make(map[string]bool, len(s.Modes))
	for k, v := range s.Modes {
		c.Modes[k] = v
	}
	c.Overlays = make(map[string]string, len(s.Overlays))
	for k, v := range s.Overlays {
		c.Overlays[k] = v
	}
	c.Panels = make(map[string]Panel, len(s.Panels))
	for k, v := range s.Panels {
		c.Panels[k] = v
	}
	return c
}

// ActiveModes returns the active mode ids in sorted order.
func (s State) ActiveModes() []string {
	modes := make([]string, 0, len(s.Modes))
	for m, on := range s.Modes {
		if on {
			modes = append(modes, m)
		}
	}
	sort.Strings(modes)
	return modes
}

// ActiveOverlays returns the visible overlay ids in sorted order.
func (s State) ActiveOverlays() []string {
	overlays := make([]string, 0, len(s.Overlays))
	for o := range s.Overlays {
		overlays = append(overlays, o)
	}
	sort.Strings(overlays)
	return overlays
}

// data returns the wire form of the state used in "state" messages and
// emergency-stop broadcasts. Slices are sorted for reproducible output.
func (s State) data() map[string]any {
	return map[string]any{
		"emotion":         s.Emotion,
		"disco_mode":      s.Disco,
		"active_modes":    s.ActiveModes(),
		"active_overlays": s.ActiveOverlays(),
		"panels":          s.Panels,
		"game_active":     s.GameActive,
	}
}
