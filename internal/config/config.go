// Package config manages the robot's JSON configuration file and secrets.
// The file is edited through the admin dashboard; this layer is plain load,
// save and lookup with defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Category customizes one launcher category slot in the face UI.
type Category struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// Config is the robot's persistent configuration.
type Config struct {
	RobotName     string              `json:"robot_name"`
	ChildName     string              `json:"child_name"`
	ChildAge      int                 `json:"child_age,omitempty"`
	SetupComplete bool                `json:"setup_complete"`
	UICategories  map[string]Category `json:"ui_categories,omitempty"`
}

// defaults returns the configuration used before setup has run.
func defaults() Config {
	return Config{
		RobotName: "E-NOR",
		ChildName: "friend",
	}
}

// Manager loads and saves the configuration file, serializing access so
// concurrent readers never observe a partial write.
type Manager struct {
	path string
	mu   sync.RWMutex
	cfg  Config
}

// NewManager loads the configuration at path, falling back to defaults when
// the file is missing or unreadable.
func NewManager(path string) *Manager {
	m := &Manager{path: path, cfg: defaults()}

	data, err := os.ReadFile(path)
	if err != nil {
		return m
	}

	cfg := defaults()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return m
	}
	m.cfg = cfg
	return m
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// RobotName returns the robot's display name.
func (m *Manager) RobotName() string {
	return m.Get().RobotName
}

// ChildName returns the child's name.
func (m *Manager) ChildName() string {
	return m.Get().ChildName
}

// Update replaces the configuration and persists it.
func (m *Manager) Update(cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cfg.RobotName == "" {
		cfg.RobotName = defaults().RobotName
	}
	if cfg.ChildName == "" {
		cfg.ChildName = defaults().ChildName
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	m.cfg = cfg
	return nil
}
