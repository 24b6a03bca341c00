package extension

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/martingsewell/e-nor/internal/state"
)

// Completer is the external chat/LLM collaborator as seen by extension
// handlers. Implemented by the chat client; stubbed in tests.
type Completer interface {
	Complete(ctx context.Context, prompt, context string) (string, error)
}

// API is the fixed capability surface an extension handler may call. Each
// registered extension gets its own instance, bound to its id, bundle
// directory and namespace-isolated data store. Every state-mutating call
// funnels into the broadcaster hub.
type API struct {
	extensionID string
	bundleDir   string
	hub         *state.Hub
	data        *DataStore
	stops       *StopFlags
	llm         Completer
}

// ExtensionID returns the id of the extension this surface is bound to.
func (a *API) ExtensionID() string {
	return a.extensionID
}

// Speak makes the robot say text via the face UI's text-to-speech.
func (a *API) Speak(text string) {
	a.hub.Apply(state.Message{
		"type":   "speak",
		"text":   text,
		"source": a.extensionID,
	})
}

// ShowMessage displays text in the chat area of the face UI.
func (a *API) ShowMessage(text string) {
	a.hub.Apply(state.Message{
		"type":         "message",
		"text":         text,
		"message_type": "extension",
		"source":       a.extensionID,
	})
}

// Broadcast sends an arbitrary payload to all connected display clients. The
// payload is stamped with the sending extension's id.
func (a *API) Broadcast(msg map[string]any) {
	if msg == nil {
		return
	}
	msg["_extension"] = a.extensionID
	a.hub.Apply(state.Message(msg))
}

// SetEmotion changes the robot's facial expression.
func (a *API) SetEmotion(emotion string) {
	a.hub.Apply(state.Message{
		"type":    "emotion",
		"emotion": emotion,
	})
}

// ShowOverlay shows this extension's face overlay.
func (a *API) ShowOverlay(overlayID string) {
	a.hub.Apply(state.Message{
		"type":         "show_overlay",
		"overlay_id":   overlayID,
		"extension_id": a.extensionID,
	})
}

// HideOverlay hides a face overlay. An empty id hides all overlays.
func (a *API) HideOverlay(overlayID string) {
	a.hub.Apply(state.Message{
		"type":         "hide_overlay",
		"overlay_id":   overlayID,
		"extension_id": a.extensionID,
	})
}

// SetMode toggles a persistent mode such as "dragon_mode".
func (a *API) SetMode(mode string, enabled bool) {
	a.hub.Apply(state.Message{
		"type":         "set_mode",
		"mode":         mode,
		"enabled":      enabled,
		"extension_id": a.extensionID,
	})
}

// ShowPanel displays a fullscreen UI panel. An empty panelID defaults to
// "<extension id>_panel"; panelType tags the panel for state tracking
// ("game" panels inhibit motor movement).
func (a *API) ShowPanel(html, panelID, panelType string) {
	if panelID == "" {
		panelID = a.extensionID + "_panel"
	}
	if panelType == "" {
		panelType = "feature"
	}
	a.hub.Apply(state.Message{
		"type":         "show_panel",
		"html":         html,
		"panel_id":     panelID,
		"panel_type":   panelType,
		"extension_id": a.extensionID,
	})
}

// UpdatePanel pushes a partial update into a displayed panel.
func (a *API) UpdatePanel(updates map[string]any, panelID string) {
	if panelID == "" {
		panelID = a.extensionID + "_panel"
	}
	a.hub.Apply(state.Message{
		"type":     "update_panel",
		"updates":  updates,
		"panel_id": panelID,
	})
}

// HidePanel closes a displayed panel.
func (a *API) HidePanel(panelID string) {
	if panelID == "" {
		panelID = a.extensionID + "_panel"
	}
	a.hub.Apply(state.Message{
		"type":         "hide_panel",
		"panel_id":     panelID,
		"extension_id": a.extensionID,
	})
}

// PlaySound plays a sound file from the extension's own sounds directory.
// The file name must resolve inside that directory; traversal outside the
// bundle is rejected.
func (a *API) PlaySound(file string) error {
	clean := filepath.Clean(file)
	if clean == "" || clean == "." || filepath.IsAbs(clean) ||
		clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("sound file %q escapes the extension's sounds directory", file)
	}
	path := filepath.Join(a.bundleDir, "sounds", clean)

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("sound file %q: %w", file, err)
	}

	a.hub.Apply(state.Message{
		"type":         "play_sound",
		"path":         path,
		"extension_id": a.extensionID,
	})
	return nil
}

// GetData returns a value from the extension's data store, or def when the
// key has never been written.
func (a *API) GetData(key string, def any) any {
	return a.data.Get(key, def)
}

// SetData stores a JSON-serializable value in the extension's data store.
func (a *API) SetData(key string, value any) error {
	return a.data.Set(key, value)
}

// DeleteData removes a key from the extension's data store.
func (a *API) DeleteData(key string) error {
	return a.data.Delete(key)
}

// GetAllData returns everything in the extension's data store.
func (a *API) GetAllData() map[string]any {
	return a.data.GetAll()
}

// IsStopped reports whether the emergency stop has been raised for this
// extension. Long-running handler loops must poll this between steps.
func (a *API) IsStopped() bool {
	return a.stops.IsStopped(a.extensionID)
}

// ClearStopFlag lowers this extension's stop flag. Call before starting a new
// repeated action.
func (a *API) ClearStopFlag() {
	a.stops.Clear(a.extensionID)
}

// AskLLM forwards a prompt to the chat collaborator and returns its text
// reply. Fails when no collaborator is configured.
func (a *API) AskLLM(ctx context.Context, prompt string) (string, error) {
	if a.llm == nil {
		return "", fmt.Errorf("no language model configured")
	}
	llmContext := fmt.Sprintf("You are helping the %s robot extension. Be concise and kid-friendly.", a.extensionID)
	return a.llm.Complete(ctx, prompt, llmContext)
}
