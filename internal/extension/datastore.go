package extension

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DataStore persists keyed values for a single extension under its bundle's
// data/ directory, one JSON file per key. Stores are namespace-isolated: each
// extension can only reach the store created for its own id.
type DataStore struct {
	extensionID string
	dir         string
	mu          sync.Mutex
}

// NewDataStore creates a store rooted at <bundleDir>/data. The directory is
// created lazily on first write.
func NewDataStore(extensionID, bundleDir string) *DataStore {
	return &DataStore{
		extensionID: extensionID,
		dir:         filepath.Join(bundleDir, "data"),
	}
}

// validKey rejects keys that could escape the store's directory.
func validKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty data key")
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." || strings.Contains(key, "..") {
		return fmt.Errorf("invalid data key %q", key)
	}
	return nil
}

type dataRecord struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (d *DataStore) keyPath(key string) string {
	return filepath.Join(d.dir, key+".json")
}

// Get returns the stored value for key, or def when the key has never been
// written or cannot be read.
func (d *DataStore) Get(key string, def any) any {
	if err := validKey(key); err != nil {
		return def
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := os.ReadFile(d.keyPath(key))
	if err != nil {
		return def
	}

	var rec dataRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return def
	}
	if rec.Value == nil {
		return def
	}
	return rec.Value
}

// Set stores a JSON-serializable value under key.
func (d *DataStore) Set(key string, value any) error {
	if err := validKey(key); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	data, err := json.MarshalIndent(dataRecord{Key: key, Value: value}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode value for %q: %w", key, err)
	}

	if err := os.WriteFile(d.keyPath(key), data, 0644); err != nil {
		return fmt.Errorf("write value for %q: %w", key, err)
	}
	return nil
}

// Delete removes a stored key. Deleting a key that does not exist is not an
// error.
func (d *DataStore) Delete(key string) error {
	if err := validKey(key); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	err := os.Remove(d.keyPath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// GetAll returns every stored key/value pair for this extension. Unreadable
// entries are skipped.
func (d *DataStore) GetAll() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string]any)

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return out
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(d.dir, entry.Name()))
		if err != nil {
			continue
		}
		var rec dataRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		key := rec.Key
		if key == "" {
			key = strings.TrimSuffix(entry.Name(), ".json")
		}
		out[key] = rec.Value
	}

	return out
}
