// Package api provides the management HTTP API for the E-NOR robot.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/martingsewell/e-nor/internal/config"
	"github.com/martingsewell/e-nor/internal/extension"
)

// ExtensionHandler handles HTTP requests for the extension catalog.
type ExtensionHandler struct {
	registry *extension.Registry
	robot    *config.Manager
}

// NewExtensionHandler creates a new ExtensionHandler.
func NewExtensionHandler(registry *extension.Registry, robot *config.Manager) *ExtensionHandler {
	return &ExtensionHandler{registry: registry, robot: robot}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

type extensionSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Version      string `json:"version"`
	Author       string `json:"author"`
	Type         string `json:"type"`
	Category     string `json:"category"`
	Enabled      bool   `json:"enabled"`
	HasHandler   bool   `json:"has_handler"`
	HasOverlay   bool   `json:"has_overlay"`
	HasSounds    bool   `json:"has_sounds"`
	TriggerCount int    `json:"trigger_count"`
}

func summarize(ext *extension.Extension) extensionSummary {
	m := ext.Manifest
	return extensionSummary{
		ID:           m.ID,
		Name:         m.Name,
		Description:  m.Description,
		Version:      m.Version,
		Author:       m.Author,
		Type:         string(m.Type),
		Category:     m.Category,
		Enabled:      ext.Enabled(),
		HasHandler:   ext.Handler != nil,
		HasOverlay:   m.Provides.Overlay,
		HasSounds:    m.Provides.Sounds,
		TriggerCount: len(m.VoiceTriggers),
	}
}

// ServeHTTP routes extension API requests.
// Paths: /api/extensions, /api/extensions/{id} (GET and DELETE),
// /api/extensions/{id}/enabled, and the collection views categories,
// by-category/{category}, modes, games, overlays/all, emotions/all,
// jokes/all, reload.
func (h *ExtensionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/extensions")
	path = strings.Trim(path, "/")

	switch {
	case path == "":
		h.list(w, r)
	case path == "reload":
		h.reload(w, r)
	case path == "categories":
		h.categories(w, r)
	case strings.HasPrefix(path, "by-category/"):
		h.byCategory(w, r, strings.TrimPrefix(path, "by-category/"))
	case path == "modes":
		h.modes(w, r)
	case path == "games":
		h.games(w, r)
	case path == "overlays/all":
		h.overlays(w, r)
	case path == "emotions/all":
		h.emotions(w, r)
	case path == "jokes/all":
		h.jokes(w, r)
	case strings.HasSuffix(path, "/enabled"):
		h.setEnabled(w, r, strings.TrimSuffix(path, "/enabled"))
	default:
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, path)
		case http.MethodDelete:
			h.remove(w, r, path)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

// list handles GET /api/extensions.
func (h *ExtensionHandler) list(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	all := h.registry.List()
	summaries := make([]extensionSummary, 0, len(all))
	enabled := 0
	for _, ext := range all {
		if ext.Enabled() {
			enabled++
		}
		summaries = append(summaries, summarize(ext))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"extensions":    summaries,
		"total":         len(summaries),
		"enabled_count": enabled,
	})
}

// get handles GET /api/extensions/{id}.
func (h *ExtensionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ext, ok := h.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "extension not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"extension":      summarize(ext),
		"ui":             ext.Manifest.UI,
		"provides":       ext.Manifest.Provides,
		"voice_triggers": ext.Manifest.VoiceTriggers,
	})
}

// remove handles DELETE /api/extensions/{id} by deleting the bundle from
// disk and dropping it from the catalog.
func (h *ExtensionHandler) remove(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.registry.Remove(id); err != nil {
		if err == extension.ErrExtensionNotFound {
			writeError(w, http.StatusNotFound, "extension not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Extension " + id + " deleted successfully",
	})
}

type setEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// setEnabled handles PUT /api/extensions/{id}/enabled.
func (h *ExtensionHandler) setEnabled(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req setEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.registry.SetEnabled(id, req.Enabled); err != nil {
		if err == extension.ErrExtensionNotFound {
			writeError(w, http.StatusNotFound, "extension not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"id":      id,
		"enabled": req.Enabled,
	})
}

// reload handles POST /api/extensions/reload by rescanning the bundle root.
func (h *ExtensionHandler) reload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	loaded, err := h.registry.Scan()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"loaded":  loaded,
	})
}

// categorySlot is one of the launcher's eight category buttons.
type categorySlot struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Fixed bool   `json:"fixed"`
	Count int    `json:"count"`
}

// defaultCategories defines the four fixed slots and four configurable ones.
var defaultCategories = []categorySlot{
	{ID: "games", Name: "Games", Icon: "🎮", Fixed: true},
	{ID: "modes", Name: "Modes", Icon: "🎭", Fixed: true},
	{ID: "tools", Name: "Tools", Icon: "🛠️", Fixed: true},
	{ID: "quizzes", Name: "Quizzes", Icon: "🧠", Fixed: true},
	{ID: "custom1", Name: "Stories", Icon: "📖"},
	{ID: "custom2", Name: "Creative", Icon: "🎨"},
	{ID: "custom3", Name: "Learning", Icon: "📚"},
	{ID: "custom4", Name: "Fun", Icon: "😂"},
}

// categories handles GET /api/extensions/categories.
func (h *ExtensionHandler) categories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	counts := h.registry.CategoryCounts()
	var configured map[string]config.Category
	if h.robot != nil {
		configured = h.robot.Get().UICategories
	}

	slots := make([]categorySlot, len(defaultCategories))
	total := 0
	for i, slot := range defaultCategories {
		if c, ok := configured[slot.ID]; ok {
			if c.Name != "" {
				slot.Name = c.Name
			}
			if c.Icon != "" {
				slot.Icon = c.Icon
			}
		}
		slot.Count = counts[slot.ID]
		total += slot.Count
		slots[i] = slot
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"categories":       slots,
		"total_extensions": total,
	})
}

// categoryEntry is one extension on a launcher category page.
type categoryEntry struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Version          string   `json:"version"`
	Type             string   `json:"type"`
	Category         string   `json:"category"`
	Icon             string   `json:"icon"`
	Color            string   `json:"color"`
	HasVoiceTriggers bool     `json:"has_voice_triggers"`
	VoiceTriggers    []string `json:"voice_triggers"`
}

// byCategory handles GET /api/extensions/by-category/{category} for the
// launcher's category pages. Only the eight launcher category ids are valid.
func (h *ExtensionHandler) byCategory(w http.ResponseWriter, r *http.Request, category string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	known := false
	for _, slot := range defaultCategories {
		if slot.ID == category {
			known = true
			break
		}
	}
	if !known {
		writeError(w, http.StatusNotFound, "unknown category "+category)
		return
	}

	entries := make([]categoryEntry, 0)
	for _, ext := range h.registry.ByCategory(category) {
		m := ext.Manifest
		// A preview of up to three spoken phrases, one per trigger
		var phrases []string
		for _, trigger := range m.VoiceTriggers {
			if len(phrases) == 3 {
				break
			}
			if len(trigger.Phrases) > 0 {
				phrases = append(phrases, trigger.Phrases[0])
			}
		}
		entries = append(entries, categoryEntry{
			ID:               m.ID,
			Name:             m.Name,
			Description:      m.Description,
			Version:          m.Version,
			Type:             string(m.Type),
			Category:         m.Category,
			Icon:             orDefault(m.UI.ButtonEmoji, "⭐"),
			Color:            orDefault(m.UI.ButtonColor, "#00ffff"),
			HasVoiceTriggers: len(m.VoiceTriggers) > 0,
			VoiceTriggers:    phrases,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"category":   category,
		"extensions": entries,
		"count":      len(entries),
	})
}

type modeEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ButtonLabel string `json:"button_label"`
	ButtonEmoji string `json:"button_emoji"`
	ButtonColor string `json:"button_color"`
	HasOverlay  bool   `json:"has_overlay"`
	HasSounds   bool   `json:"has_sounds"`
}

// modes handles GET /api/extensions/modes for the mode selector UI.
func (h *ExtensionHandler) modes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var out []modeEntry
	for _, ext := range h.registry.Enabled() {
		m := ext.Manifest
		if m.Type != extension.TypeMode && m.Category != "modes" {
			continue
		}
		out = append(out, modeEntry{
			ID:          m.ID,
			Name:        m.Name,
			Description: m.Description,
			ButtonLabel: buttonLabel(m, " Mode"),
			ButtonEmoji: orDefault(m.UI.ButtonEmoji, "🎭"),
			ButtonColor: orDefault(m.UI.ButtonColor, "#00ffff"),
			HasOverlay:  m.Provides.Overlay,
			HasSounds:   ext.HasSounds(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"modes": out, "total": len(out)})
}

type gameEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ButtonLabel string `json:"button_label"`
	ButtonEmoji string `json:"button_emoji"`
	ButtonColor string `json:"button_color"`
	HasUI       bool   `json:"has_ui"`
}

// games handles GET /api/extensions/games for the games list UI.
func (h *ExtensionHandler) games(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var out []gameEntry
	for _, ext := range h.registry.Enabled() {
		m := ext.Manifest
		if m.Type != extension.TypeGame && m.Category != "games" {
			continue
		}
		out = append(out, gameEntry{
			ID:          m.ID,
			Name:        m.Name,
			Description: m.Description,
			ButtonLabel: buttonLabel(m, " Game"),
			ButtonEmoji: orDefault(m.UI.ButtonEmoji, "🎮"),
			ButtonColor: orDefault(m.UI.ButtonColor, "#00ffff"),
			HasUI:       m.Provides.UI,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"games": out, "total": len(out)})
}

// overlays handles GET /api/extensions/overlays/all.
func (h *ExtensionHandler) overlays(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"overlays": h.registry.Overlays()})
}

// emotions handles GET /api/extensions/emotions/all.
func (h *ExtensionHandler) emotions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"emotions": h.registry.Emotions()})
}

// jokes handles GET /api/extensions/jokes/all, the pooled custom jokes from
// every enabled bundle.
func (h *ExtensionHandler) jokes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jokes": h.registry.Jokes()})
}

func buttonLabel(m *extension.Manifest, suffix string) string {
	if m.UI.ButtonLabel != "" {
		return m.UI.ButtonLabel
	}
	return strings.TrimSuffix(m.Name, suffix)
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
