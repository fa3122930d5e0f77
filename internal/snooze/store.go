// Package snooze persists per-item snooze expirations.
package snooze

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spiffcs/reviewdeck/internal/log"
)

// Store maps item ids to snooze expiration times. Expired entries are
// purged lazily on read and mutation, so a restart after the expiration
// behaves the same as a running process crossing it.
type Store struct {
	mu      sync.RWMutex
	path    string
	entries map[string]time.Time
	now     func() time.Time
}

// NewStore opens the snooze store in the user cache directory.
func NewStore() (*Store, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(cacheDir, "reviewdeck")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return NewStoreAt(filepath.Join(dir, "snoozed.json")), nil
}

// NewStoreAt opens a snooze store backed by the given file.
func NewStoreAt(path string) *Store {
	s := &Store{
		path:    path,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
	if err := s.load(); err != nil {
		log.Debug("could not load snooze store, starting fresh", "error", err)
	}
	return s
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return err
	}
	s.purgeLocked()
	return nil
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}

// purgeLocked drops expired entries. Caller holds the write lock.
func (s *Store) purgeLocked() bool {
	now := s.now()
	changed := false
	for id, until := range s.entries {
		if !until.After(now) {
			delete(s.entries, id)
			changed = true
		}
	}
	return changed
}

// Snooze hides an item for the given duration.
func (s *Store) Snooze(id string, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[id] = s.now().Add(d)
	s.purgeLocked()
	return s.save()
}

// SnoozeUntil hides an item until the given time.
func (s *Store) SnoozeUntil(id string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !until.After(s.now()) {
		delete(s.entries, id)
	} else {
		s.entries[id] = until
	}
	s.purgeLocked()
	return s.save()
}

// Unsnooze makes an item visible again.
func (s *Store) Unsnooze(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, id)
	return s.save()
}

// IsSnoozed reports whether an item is currently hidden.
func (s *Store) IsSnoozed(id string) bool {
	s.mu.RLock()
	until, ok := s.entries[id]
	s.mu.RUnlock()
	return ok && until.After(s.now())
}

// Until returns the expiration for a snoozed item.
func (s *Store) Until(id string) (time.Time, bool) {
	s.mu.RLock()
	until, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok || !until.After(s.now()) {
		return time.Time{}, false
	}
	return until, true
}

// Purge removes expired entries, saving when anything changed.
func (s *Store) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.purgeLocked() {
		if err := s.save(); err != nil {
			log.Warn("could not save snooze store", "error", err)
		}
	}
}

// IDs returns the ids of all active snoozes, sorted.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeLocked()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of active snoozes.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeLocked()
	return len(s.entries)
}

// TomorrowMorning returns 09:00 local time on the following day, the
// target of the "snooze until tomorrow" shortcut.
func TomorrowMorning(now time.Time) time.Time {
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 9, 0, 0, 0, now.Location())
}
