// Package extension implements the E-NOR extension runtime: bundle discovery
// and validation, voice trigger matching, action dispatch, and the capability
// surface handlers use to drive the robot.
package extension

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Type enumerates the kinds of extensions a bundle can declare.
type Type string

const (
	TypeFeature Type = "feature"
	TypeGame    Type = "game"
	TypeMode    Type = "mode"
	TypeContent Type = "content"
	TypeVisual  Type = "visual"
	TypeSound   Type = "sound"
	TypeUtility Type = "utility"
)

// Trigger binds spoken phrase variants to an action serviced by a handler
// entry point. Phrase order is preserved from the manifest.
type Trigger struct {
	Phrases []string `json:"phrases"`
	Action  string   `json:"action"`
	Handler string   `json:"handler"`
}

// UIConfig describes how the extension appears in the launcher UI.
type UIConfig struct {
	ButtonLabel string `json:"button_label"`
	ButtonEmoji string `json:"button_emoji"`
	ButtonColor string `json:"button_color"`
}

// Provides declares which capabilities a bundle ships content for.
type Provides struct {
	Emotions bool `json:"emotions"`
	Overlay  bool `json:"overlay"`
	Sounds   bool `json:"sounds"`
	Handler  bool `json:"handler"`
	UI       bool `json:"ui"`
}

// Manifest is the structured descriptor every bundle must carry as
// manifest.json. Unknown fields are ignored for forward compatibility.
type Manifest struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Version       string    `json:"version"`
	Author        string    `json:"author"`
	Type          Type      `json:"type"`
	Category      string    `json:"category"`
	Enabled       *bool     `json:"enabled"`
	VoiceTriggers []Trigger `json:"voice_triggers"`
	UI            UIConfig  `json:"ui"`
	Provides      Provides  `json:"provides"`
}

// BundleError describes why a candidate bundle was rejected. Scans log these
// and continue; they never abort discovery of sibling bundles.
type BundleError struct {
	Bundle string
	Err    error
}

func (e *BundleError) Error() string {
	return fmt.Sprintf("bundle %s: %v", e.Bundle, e.Err)
}

func (e *BundleError) Unwrap() error {
	return e.Err
}

// ErrNoManifest is returned when a candidate directory has no manifest.json.
var ErrNoManifest = errors.New("no manifest.json")

// ManifestFileName is the required descriptor file in every bundle.
const ManifestFileName = "manifest.json"

// inferCategory maps an extension type to its default UI category when the
// manifest does not name one explicitly.
func inferCategory(t Type) string {
	switch t {
	case TypeGame:
		return "games"
	case TypeMode, TypeVisual:
		return "modes"
	case TypeSound, TypeContent:
		return "tools"
	case TypeUtility, TypeFeature:
		return "tools"
	default:
		return "tools"
	}
}

// validTypes is the closed set of accepted manifest type strings.
var validTypes = map[Type]bool{
	TypeFeature: true,
	TypeGame:    true,
	TypeMode:    true,
	TypeContent: true,
	TypeVisual:  true,
	TypeSound:   true,
	TypeUtility: true,
}

// LoadManifest reads and validates the manifest of the bundle at dir.
// The manifest id must match the directory name so a bundle cannot claim
// another extension's storage namespace.
func LoadManifest(dir string) (*Manifest, error) {
	bundle := filepath.Base(dir)

	manifestPath := filepath.Join(dir, ManifestFileName)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &BundleError{Bundle: bundle, Err: ErrNoManifest}
		}
		return nil, &BundleError{Bundle: bundle, Err: fmt.Errorf("unreadable manifest: %w", err)}
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &BundleError{Bundle: bundle, Err: fmt.Errorf("invalid manifest JSON: %w", err)}
	}

	if m.ID == "" {
		return nil, &BundleError{Bundle: bundle, Err: errors.New("manifest missing required field: id")}
	}
	if m.ID != bundle {
		return nil, &BundleError{Bundle: bundle, Err: fmt.Errorf("manifest id %q does not match bundle directory", m.ID)}
	}
	if m.Name == "" {
		return nil, &BundleError{Bundle: bundle, Err: errors.New("manifest missing required field: name")}
	}
	if m.Type == "" {
		return nil, &BundleError{Bundle: bundle, Err: errors.New("manifest missing required field: type")}
	}
	if !validTypes[m.Type] {
		return nil, &BundleError{Bundle: bundle, Err: fmt.Errorf("unknown extension type %q", m.Type)}
	}

	if m.Version == "" {
		m.Version = "1.0.0"
	}
	if m.Author == "" {
		m.Author = "unknown"
	}
	if m.Category == "" {
		m.Category = inferCategory(m.Type)
	}

	return &m, nil
}

// IsEnabled reports the manifest's enabled flag, defaulting to true when the
// field is absent.
func (m *Manifest) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}
