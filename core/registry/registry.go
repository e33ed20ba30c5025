// Package registry persists the mapping from wristband tag identifiers to
// guest ids. Registration volume is low and human-paced, so every mutation
// is written through to disk immediately and the previous file generation is
// kept as a rollback against partial writes.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
)

type Registry struct {
	mu   sync.Mutex
	path string
	tags map[string]int
}

// Open loads the registry at path. A missing or corrupt primary file falls
// back to the backup generation, and failing that an empty registry: callers
// never see a load error, the failure is logged and the system degrades.
func Open(path string) *Registry {
	r := &Registry{
		path: path,
		tags: map[string]int{},
	}
	r.load()
	return r
}

func (r *Registry) backupPath() string {
	return r.path + ".backup"
}

func (r *Registry) load() {
	if loaded, err := readTagFile(r.path); err == nil {
		r.tags = loaded
		return
	} else if !os.IsNotExist(err) {
		zap.L().Warn("Tag registry unreadable, trying backup",
			zap.String("path", r.path),
			zap.Error(err))
	}

	if loaded, err := readTagFile(r.backupPath()); err == nil {
		r.tags = loaded
		zap.L().Warn("Tag registry recovered from backup",
			zap.String("path", r.backupPath()),
			zap.Int("mappings", len(loaded)))
		return
	} else if !os.IsNotExist(err) {
		zap.L().Warn("Tag registry backup unreadable, starting empty", zap.Error(err))
	}

	r.tags = map[string]int{}
}

func readTagFile(path string) (map[string]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tags map[string]int
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if tags == nil {
		tags = map[string]int{}
	}

	return tags, nil
}

// save copies the current non-empty primary to the backup location, then
// atomically replaces the primary. Caller holds the mutex.
func (r *Registry) save() error {
	if prev, err := os.ReadFile(r.path); err == nil && len(prev) > 0 {
		if err := os.WriteFile(r.backupPath(), prev, 0o644); err != nil {
			return fmt.Errorf("write registry backup: %w", err)
		}
	}

	data, err := json.MarshalIndent(r.tags, "", "  ")
	if err != nil {
		return err
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace registry: %w", err)
	}

	return nil
}

// Register binds a tag to a guest, overwriting any prior binding. Pointing a
// tag at a different guest is an identity change and is logged with both
// ids, never silently dropped.
func (r *Registry) Register(tagID string, guestID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prior, ok := r.tags[tagID]; ok && prior != guestID {
		zap.L().Warn("Tag reassigned to a different guest",
			zap.String("tag", tagID),
			zap.Int("prior_guest", prior),
			zap.Int("new_guest", guestID))
	}

	r.tags[tagID] = guestID
	return r.save()
}

// Lookup returns the guest a tag is bound to.
func (r *Registry) Lookup(tagID string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	guestID, ok := r.tags[tagID]
	return guestID, ok
}

// Clear removes a binding and returns the prior owner so the caller can
// report it.
func (r *Registry) Clear(tagID string) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prior, ok := r.tags[tagID]
	if !ok {
		return 0, false, nil
	}

	delete(r.tags, tagID)
	zap.L().Info("Tag binding cleared",
		zap.String("tag", tagID),
		zap.Int("prior_guest", prior))

	return prior, true, r.save()
}

// Len reports the number of registered tags.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tags)
}
