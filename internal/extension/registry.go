package extension

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/martingsewell/e-nor/internal/state"
)

// ErrExtensionNotFound is returned when a requested extension id is not in
// the catalog.
var ErrExtensionNotFound = errors.New("extension not found")

// Extension is one registered bundle: its validated manifest, bundle
// directory, enabled flag and (when provided) loaded handler. The scan order
// index drives deterministic trigger tie-breaking.
type Extension struct {
	Manifest *Manifest
	Dir      string
	Handler  Handler
	API      *API

	// enabled is toggled at runtime while dispatches and API handlers read
	// it concurrently, so it lives behind an atomic rather than the registry
	// lock.
	enabled   atomic.Bool
	scanOrder int
}

// ID returns the extension's unique id.
func (e *Extension) ID() string {
	return e.Manifest.ID
}

// Enabled reports whether the extension is currently enabled.
func (e *Extension) Enabled() bool {
	return e.enabled.Load()
}

// HasSounds reports whether the bundle ships a sounds directory.
func (e *Extension) HasSounds() bool {
	info, err := os.Stat(filepath.Join(e.Dir, "sounds"))
	return err == nil && info.IsDir()
}

// Registry owns the in-memory extension catalog. The catalog is read-mostly:
// scans build a fresh catalog and swap it in atomically, so readers never
// observe a half-built one.
type Registry struct {
	root  string
	hub   *state.Hub
	stops *StopFlags
	llm   Completer

	mu      sync.RWMutex
	catalog []*Extension
	byID    map[string]*Extension
}

// NewRegistry creates a registry over the given bundle root directory.
// The hub, stop flags and completer are threaded into each extension's
// capability surface at scan time.
func NewRegistry(root string, hub *state.Hub, stops *StopFlags, llm Completer) *Registry {
	return &Registry{
		root:  root,
		hub:   hub,
		stops: stops,
		llm:   llm,
		byID:  make(map[string]*Extension),
	}
}

// Root returns the bundle root directory.
func (r *Registry) Root() string {
	return r.root
}

// Scan walks one directory level below the bundle root and rebuilds the
// catalog. Malformed bundles and duplicate ids are logged and skipped; they
// never abort the scan. Rescanning is idempotent: the previous catalog and
// its handler references are replaced wholesale. Returns the number of
// extensions registered.
func (r *Registry) Scan() (int, error) {
	info, err := os.Stat(r.root)
	if os.IsNotExist(err) || (err == nil && !info.IsDir()) {
		// No bundle directory means an empty catalog, not a failure.
		r.swap(nil)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("stat bundle root: %w", err)
	}

	entries, err := os.ReadDir(r.root)
	if err != nil {
		return 0, fmt.Errorf("read bundle root: %w", err)
	}

	var catalog []*Extension
	seen := make(map[string]bool)

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		dir := filepath.Join(r.root, entry.Name())
		manifest, err := LoadManifest(dir)
		if err != nil {
			// A subdirectory without a manifest is not a bundle at all;
			// anything else is a rejected bundle worth logging.
			if !errors.Is(err, ErrNoManifest) {
				log.Printf("extension: skipping %s: %v", entry.Name(), err)
			}
			continue
		}

		if seen[manifest.ID] {
			log.Printf("extension: skipping %s: duplicate id %q", entry.Name(), manifest.ID)
			continue
		}
		seen[manifest.ID] = true

		ext := &Extension{
			Manifest:  manifest,
			Dir:       dir,
			scanOrder: len(catalog),
		}
		ext.enabled.Store(manifest.IsEnabled())
		ext.API = &API{
			extensionID: manifest.ID,
			bundleDir:   dir,
			hub:         r.hub,
			data:        NewDataStore(manifest.ID, dir),
			stops:       r.stops,
			llm:         r.llm,
		}

		if manifest.Provides.Handler {
			if factory, ok := lookupHandler(manifest.ID); ok {
				ext.Handler = factory(ext.API)
			} else {
				// Handler capability declared but no code registered; the
				// extension stays usable for everything else and dispatch
				// reports the failure later.
				log.Printf("extension: %s declares a handler but none is registered", manifest.ID)
			}
		}

		catalog = append(catalog, ext)
		log.Printf("extension: loaded %s (v%s)", manifest.Name, manifest.Version)
	}

	r.swap(catalog)
	return len(catalog), nil
}

func (r *Registry) swap(catalog []*Extension) {
	byID := make(map[string]*Extension, len(catalog))
	for _, ext := range catalog {
		byID[ext.ID()] = ext
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalog = catalog
	r.byID = byID
}

// List returns all registered extensions in scan order, including disabled
// ones.
func (r *Registry) List() []*Extension {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Extension, len(r.catalog))
	copy(out, r.catalog)
	return out
}

// Enabled returns the enabled extensions in scan order.
func (r *Registry) Enabled() []*Extension {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Extension
	for _, ext := range r.catalog {
		if ext.Enabled() {
			out = append(out, ext)
		}
	}
	return out
}

// Get returns the extension with the given id.
func (r *Registry) Get(id string) (*Extension, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ext, ok := r.byID[id]
	return ext, ok
}

// IDs returns every registered extension id in scan order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, len(r.catalog))
	for i, ext := range r.catalog {
		ids[i] = ext.ID()
	}
	return ids
}

// SetEnabled toggles an extension. Disabled extensions stay in the catalog
// (management UIs still see them) but are excluded from trigger matching and
// dispatch. The flag is persisted back into the bundle's manifest so it
// survives rescans and restarts.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	ext, ok := r.Get(id)
	if !ok {
		return ErrExtensionNotFound
	}
	ext.enabled.Store(enabled)

	return persistEnabled(ext.Dir, enabled)
}

// Remove deletes an extension's bundle directory from disk and drops it from
// the catalog. Unlike disabling, removal is permanent; a rescan will not bring
// the extension back.
func (r *Registry) Remove(id string) error {
	ext, ok := r.Get(id)
	if !ok {
		return ErrExtensionNotFound
	}
	if err := os.RemoveAll(ext.Dir); err != nil {
		return fmt.Errorf("remove bundle: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	catalog := make([]*Extension, 0, len(r.catalog))
	for _, e := range r.catalog {
		if e.ID() != id {
			catalog = append(catalog, e)
		}
	}
	r.catalog = catalog

	log.Printf("extension: removed %s", id)
	return nil
}

// persistEnabled rewrites the manifest's enabled field in place, preserving
// any fields the validator does not model.
func persistEnabled(dir string, enabled bool) error {
	path := filepath.Join(dir, ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}
	raw["enabled"] = enabled

	out, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ByCategory returns the enabled extensions in a UI category, in scan order.
func (r *Registry) ByCategory(category string) []*Extension {
	var out []*Extension
	for _, ext := range r.Enabled() {
		if ext.Manifest.Category == category {
			out = append(out, ext)
		}
	}
	return out
}

// CategoryCounts returns how many enabled extensions each category holds.
func (r *Registry) CategoryCounts() map[string]int {
	counts := make(map[string]int)
	for _, ext := range r.Enabled() {
		counts[ext.Manifest.Category]++
	}
	return counts
}

// Overlay is a face overlay contributed by an extension bundle.
type Overlay struct {
	ExtensionID string `json:"extension_id"`
	Type        string `json:"type"`
	Content     string `json:"content"`
}

// Overlays collects overlay.svg content from every enabled bundle that
// provides one.
func (r *Registry) Overlays() []Overlay {
	var out []Overlay
	for _, ext := range r.Enabled() {
		if !ext.Manifest.Provides.Overlay {
			continue
		}
		data, err := os.ReadFile(filepath.Join(ext.Dir, "overlay.svg"))
		if err != nil {
			continue
		}
		out = append(out, Overlay{
			ExtensionID: ext.ID(),
			Type:        "svg",
			Content:     string(data),
		})
	}
	return out
}

// Jokes collects custom jokes (jokes.json) from every enabled bundle that
// ships one. The file holds either a bare array of jokes or an object with a
// "jokes" array; anything else is logged and skipped.
func (r *Registry) Jokes() []string {
	var out []string
	for _, ext := range r.Enabled() {
		data, err := os.ReadFile(filepath.Join(ext.Dir, "jokes.json"))
		if err != nil {
			continue
		}
		var jokes []string
		if err := json.Unmarshal(data, &jokes); err != nil {
			var wrapped struct {
				Jokes []string `json:"jokes"`
			}
			if err := json.Unmarshal(data, &wrapped); err != nil {
				log.Printf("extension: %s has malformed jokes.json: %v", ext.ID(), err)
				continue
			}
			jokes = wrapped.Jokes
		}
		out = append(out, jokes...)
	}
	return out
}

// Emotions collects custom emotion definitions (emotion.json) from every
// enabled bundle that provides them. Each definition is stamped with the
// owning extension's id.
func (r *Registry) Emotions() []map[string]any {
	var out []map[string]any
	for _, ext := range r.Enabled() {
		if !ext.Manifest.Provides.Emotions {
			continue
		}
		data, err := os.ReadFile(filepath.Join(ext.Dir, "emotion.json"))
		if err != nil {
			continue
		}
		var emotion map[string]any
		if err := json.Unmarshal(data, &emotion); err != nil {
			continue
		}
		emotion["_extension_id"] = ext.ID()
		out = append(out, emotion)
	}
	return out
}
