// Package repos persists the set of monitored repositories.
package repos

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spiffcs/reviewdeck/internal/log"
	"github.com/spiffcs/reviewdeck/internal/model"
)

// Store holds the monitored repository list. Uniqueness is by the
// composite (id, provider) key; numeric ids collide across providers.
// Mutations invoke the change callback, which the scheduler uses to
// debounce a refresh.
type Store struct {
	mu       sync.RWMutex
	path     string
	repos    []model.Repository
	onChange func()
}

// NewStore opens the repository store in the user config directory.
func NewStore() (*Store, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(configDir, "reviewdeck")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return NewStoreAt(filepath.Join(dir, "repositories.json")), nil
}

// NewStoreAt opens a repository store backed by the given file.
func NewStoreAt(path string) *Store {
	s := &Store{path: path}
	if err := s.load(); err != nil {
		log.Debug("could not load repository store, starting fresh", "error", err)
	}
	return s
}

// OnChange registers the callback invoked after every successful
// mutation.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, &s.repos)
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.repos, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}

// Add starts monitoring a repository. Adding an already-monitored
// repository is a no-op and does not fire the change callback.
func (s *Store) Add(repo model.Repository) error {
	s.mu.Lock()
	if s.contains(repo.ID, repo.Provider) {
		s.mu.Unlock()
		return nil
	}
	s.repos = append(s.repos, repo)
	err := s.save()
	onChange := s.onChange
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if onChange != nil {
		onChange()
	}
	return nil
}

// Remove stops monitoring a repository.
func (s *Store) Remove(id string, p model.Provider) error {
	s.mu.Lock()
	kept := s.repos[:0]
	removed := false
	for _, r := range s.repos {
		if r.ID == id && r.Provider == p {
			removed = true
			continue
		}
		kept = append(kept, r)
	}
	if !removed {
		s.mu.Unlock()
		return nil
	}
	s.repos = kept
	err := s.save()
	onChange := s.onChange
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if onChange != nil {
		onChange()
	}
	return nil
}

// IsMonitored reports whether a repository is in the monitored set.
func (s *Store) IsMonitored(id string, p model.Provider) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contains(id, p)
}

func (s *Store) contains(id string, p model.Provider) bool {
	for _, r := range s.repos {
		if r.ID == id && r.Provider == p {
			return true
		}
	}
	return false
}

// All returns the monitored repositories sorted by provider then name.
func (s *Store) All() []model.Repository {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Repository, len(s.repos))
	copy(out, s.repos)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].FullName < out[j].FullName
	})
	return out
}

// Count returns the number of monitored repositories.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.repos)
}
