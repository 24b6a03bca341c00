package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/martingsewell/e-nor/internal/config"
	"github.com/martingsewell/e-nor/internal/extension"
	"github.com/martingsewell/e-nor/internal/state"
)

func writeTestBundle(t *testing.T, root, id, manifest string) string {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create bundle dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, extension.ManifestFileName), []byte(manifest), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return dir
}

func newTestHandler(t *testing.T, robot *config.Manager) (*ExtensionHandler, *extension.Registry) {
	t.Helper()

	root := t.TempDir()
	dir := writeTestBundle(t, root, "dragon_mode", `{
		"id": "dragon_mode",
		"name": "Dragon Mode",
		"description": "Roar like a dragon",
		"type": "mode",
		"voice_triggers": [
			{"phrases": ["dragon mode"], "action": "activate", "handler": "handle_action"}
		],
		"ui": {"button_label": "Dragon", "button_emoji": "🐉", "button_color": "#ff4400"},
		"provides": {"overlay": true, "handler": true}
	}`)
	if err := os.WriteFile(filepath.Join(dir, "overlay.svg"), []byte("<svg/>"), 0644); err != nil {
		t.Fatalf("failed to write overlay: %v", err)
	}
	writeTestBundle(t, root, "quiz_game", `{
		"id": "quiz_game",
		"name": "Quiz Game",
		"type": "game",
		"provides": {"ui": true}
	}`)

	registry := extension.NewRegistry(root, state.NewHub(), extension.NewStopFlags(), nil)
	if _, err := registry.Scan(); err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}

	return NewExtensionHandler(registry, robot), registry
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func TestExtensions_List(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/extensions", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	body := decodeBody(t, rec)
	if body["total"] != float64(2) || body["enabled_count"] != float64(2) {
		t.Errorf("unexpected counts: %v", body)
	}
	exts, _ := body["extensions"].([]any)
	if len(exts) != 2 {
		t.Fatalf("expected 2 extensions, got %d", len(exts))
	}
	first, _ := exts[0].(map[string]any)
	if first["id"] != "dragon_mode" || first["has_overlay"] != true {
		t.Errorf("unexpected first summary: %v", first)
	}
}

func TestExtensions_Get(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/extensions/dragon_mode", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	body := decodeBody(t, rec)
	ext, _ := body["extension"].(map[string]any)
	if ext["name"] != "Dragon Mode" {
		t.Errorf("unexpected extension: %v", ext)
	}
	triggers, _ := body["voice_triggers"].([]any)
	if len(triggers) != 1 {
		t.Errorf("expected voice triggers in detail view, got %v", body["voice_triggers"])
	}
}

func TestExtensions_GetNotFound(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/extensions/ghost", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestExtensions_SetEnabled(t *testing.T) {
	h, registry := newTestHandler(t, nil)

	body := bytes.NewBufferString(`{"enabled": false}`)
	req := httptest.NewRequest(http.MethodPut, "/api/extensions/dragon_mode/enabled", body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	ext, _ := registry.Get("dragon_mode")
	if ext.Enabled() {
		t.Error("extension should be disabled")
	}

	// Unknown id
	req = httptest.NewRequest(http.MethodPut, "/api/extensions/ghost/enabled", bytes.NewBufferString(`{"enabled": true}`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}

	// Wrong method
	req = httptest.NewRequest(http.MethodGet, "/api/extensions/dragon_mode/enabled", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}

func TestExtensions_Reload(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/extensions/reload", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	body := decodeBody(t, rec)
	if body["loaded"] != float64(2) {
		t.Errorf("expected 2 loaded, got %v", body["loaded"])
	}
}

func TestExtensions_Categories(t *testing.T) {
	robot := config.NewManager(filepath.Join(t.TempDir(), "config.json"))
	if err := robot.Update(config.Config{
		UICategories: map[string]config.Category{
			"custom1": {Name: "Dragon Tales", Icon: "🐲"},
		},
	}); err != nil {
		t.Fatalf("failed to update config: %v", err)
	}

	h, _ := newTestHandler(t, robot)

	req := httptest.NewRequest(http.MethodGet, "/api/extensions/categories", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	body := decodeBody(t, rec)
	slots, _ := body["categories"].([]any)
	if len(slots) != 8 {
		t.Fatalf("expected 8 category slots, got %d", len(slots))
	}

	byID := make(map[string]map[string]any)
	for _, s := range slots {
		slot, _ := s.(map[string]any)
		byID[slot["id"].(string)] = slot
	}
	if byID["games"]["count"] != float64(1) || byID["modes"]["count"] != float64(1) {
		t.Errorf("unexpected counts: %v", slots)
	}
	if byID["custom1"]["name"] != "Dragon Tales" || byID["custom1"]["icon"] != "🐲" {
		t.Errorf("configured slot not applied: %v", byID["custom1"])
	}
}

func TestExtensions_Modes(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/extensions/modes", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	body := decodeBody(t, rec)
	modes, _ := body["modes"].([]any)
	if len(modes) != 1 {
		t.Fatalf("expected 1 mode, got %d", len(modes))
	}
	mode, _ := modes[0].(map[string]any)
	if mode["id"] != "dragon_mode" || mode["button_emoji"] != "🐉" {
		t.Errorf("unexpected mode entry: %v", mode)
	}
}

func TestExtensions_Games(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/extensions/games", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	body := decodeBody(t, rec)
	games, _ := body["games"].([]any)
	if len(games) != 1 {
		t.Fatalf("expected 1 game, got %d", len(games))
	}
	game, _ := games[0].(map[string]any)
	if game["id"] != "quiz_game" {
		t.Errorf("unexpected game entry: %v", game)
	}
	// Defaults fill in for games without UI config
	if game["button_emoji"] != "🎮" || game["button_label"] != "Quiz" {
		t.Errorf("unexpected defaults: %v", game)
	}
}

func TestExtensions_DisabledLeaveCollectionViews(t *testing.T) {
	h, registry := newTestHandler(t, nil)
	if err := registry.SetEnabled("dragon_mode", false); err != nil {
		t.Fatalf("SetEnabled() failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/extensions/modes", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	body := decodeBody(t, rec)
	if body["total"] != float64(0) {
		t.Errorf("disabled mode should leave the selector, got %v", body)
	}
}

func TestExtensions_Overlays(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/extensions/overlays/all", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	body := decodeBody(t, rec)
	overlays, _ := body["overlays"].([]any)
	if len(overlays) != 1 {
		t.Fatalf("expected 1 overlay, got %d", len(overlays))
	}
}

func TestExtensions_ByCategory(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/extensions/by-category/modes", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	body := decodeBody(t, rec)
	if body["category"] != "modes" || body["count"] != float64(1) {
		t.Errorf("unexpected page: %v", body)
	}
	entries, _ := body["extensions"].([]any)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry, _ := entries[0].(map[string]any)
	if entry["id"] != "dragon_mode" || entry["icon"] != "🐉" {
		t.Errorf("unexpected entry: %v", entry)
	}
	if entry["has_voice_triggers"] != true {
		t.Errorf("expected voice triggers flagged, got %v", entry)
	}
	triggers, _ := entry["voice_triggers"].([]any)
	if len(triggers) != 1 || triggers[0] != "dragon mode" {
		t.Errorf("expected the first trigger phrase as preview, got %v", triggers)
	}

	// An empty valid category returns an empty page, not an error
	req = httptest.NewRequest(http.MethodGet, "/api/extensions/by-category/quizzes", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if body := decodeBody(t, rec); body["count"] != float64(0) {
		t.Errorf("expected an empty page, got %v", body)
	}

	// Unknown categories are rejected
	req = httptest.NewRequest(http.MethodGet, "/api/extensions/by-category/mysteries", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestExtensions_Delete(t *testing.T) {
	h, registry := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/extensions/quiz_game", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["success"] != true {
		t.Errorf("unexpected response: %v", body)
	}
	if _, ok := registry.Get("quiz_game"); ok {
		t.Error("deleted extension should leave the catalog")
	}
	if _, err := os.Stat(filepath.Join(registry.Root(), "quiz_game")); !os.IsNotExist(err) {
		t.Errorf("bundle directory should be deleted, stat err = %v", err)
	}

	// Unknown id
	req = httptest.NewRequest(http.MethodDelete, "/api/extensions/ghost", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestExtensions_JokesAll(t *testing.T) {
	h, registry := newTestHandler(t, nil)
	path := filepath.Join(registry.Root(), "dragon_mode", "jokes.json")
	if err := os.WriteFile(path, []byte(`["What do dragons eat? Firewood."]`), 0644); err != nil {
		t.Fatalf("failed to write jokes: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/extensions/jokes/all", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	body := decodeBody(t, rec)
	jokes, _ := body["jokes"].([]any)
	if len(jokes) != 1 || jokes[0] != "What do dragons eat? Firewood." {
		t.Errorf("unexpected jokes: %v", body)
	}
}
