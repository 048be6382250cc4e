// Package config implements the configuration registry described in
// spec.md §4.K: a fixed-order table of named integer knobs with
// compile-time defaults, JSON persistence via a storage hook, a dotted
// name lookup API, and fsnotify-based hot reload — modeled on
// stlalpha-vision3's internal/config JSON-backed config structs and its
// cmd/vision3/config_watcher.go reload path.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Key is the stable, O(1)-lookup index of one configuration knob.
type Key int

// Entry is one row of the fixed-order knob table.
type Entry struct {
	Key     Key
	Name    string // dotted name, e.g. "pulse.rate"
	Default int
}

// Registry holds the live values for every registered Entry plus the
// path it persists to (spec §4.K: "the storage hook may override
// values"; this core uses a JSON file as that hook, matching vision3's
// StringsConfig/ServerConfig file-backed pattern).
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
	values  []int
	byName  map[string]Key
	path    string
}

// NewRegistry builds a registry from a fixed-order entry table. Values
// are initialized in-place from each entry's Default.
func NewRegistry(entries []Entry, path string) *Registry {
	r := &Registry{
		entries: entries,
		values:  make([]int, len(entries)),
		byName:  make(map[string]Key, len(entries)),
		path:    path,
	}
	for _, e := range entries {
		r.values[e.Key] = e.Default
		r.byName[e.Name] = e.Key
	}
	return r
}

// Load overrides defaults from the registry's JSON file, if present. A
// missing file is not an error; the registry keeps its compile-time
// defaults (spec §4.K: "then the storage hook may override values").
func (r *Registry) Load() error {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", r.path, err)
	}
	var stored map[string]int
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("config: parsing %s: %w", r.path, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, v := range stored {
		if k, ok := r.byName[name]; ok {
			r.values[k] = v
		}
	}
	return nil
}

// Save persists the current values to the registry's JSON file.
func (r *Registry) Save() error {
	r.mu.RLock()
	stored := make(map[string]int, len(r.entries))
	for _, e := range r.entries {
		stored[e.Name] = r.values[e.Key]
	}
	r.mu.RUnlock()

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshaling: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", r.path, err)
	}
	return nil
}

// GetByEnum is the O(1) lookup path.
func (r *Registry) GetByEnum(k Key) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.values[k]
}

// GetByName is the admin-only dotted-name lookup, via the name-to-key map.
func (r *Registry) GetByName(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.byName[name]
	if !ok {
		return 0, false
	}
	return r.values[k], true
}

// SetByEnum sets a value and persists it via Save.
func (r *Registry) SetByEnum(k Key, value int) error {
	r.mu.Lock()
	r.values[k] = value
	r.mu.Unlock()
	return r.Save()
}

// SetByName sets a value by dotted name.
func (r *Registry) SetByName(name string, value int) error {
	r.mu.RLock()
	k, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("config: unknown key %q", name)
	}
	return r.SetByEnum(k, value)
}

// ResetAll restores every value to its compile-time default.
func (r *Registry) ResetAll() error {
	r.mu.Lock()
	for _, e := range r.entries {
		r.values[e.Key] = e.Default
	}
	r.mu.Unlock()
	return r.Save()
}

// Reset restores a single key's default.
func (r *Registry) Reset(name string) error {
	r.mu.Lock()
	k, ok := r.byName[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("config: unknown key %q", name)
	}
	for _, e := range r.entries {
		if e.Key == k {
			r.values[k] = e.Default
			break
		}
	}
	r.mu.Unlock()
	return r.Save()
}

// Entries returns a copy of the fixed-order entry table (keys, names,
// defaults; live values are read with GetByEnum), for the `cfg` admin
// command's listing/prefix-drill view.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
