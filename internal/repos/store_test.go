package repos

import (
	"path/filepath"
	"testing"

	"github.com/spiffcs/reviewdeck/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStoreAt(filepath.Join(t.TempDir(), "repositories.json"))
}

func bbRepo(id, fullName string) model.Repository {
	return model.Repository{ID: id, FullName: fullName, Name: fullName, Provider: model.ProviderBitbucket}
}

func TestAddAndRemove(t *testing.T) {
	s := newTestStore(t)

	if err := s.Add(bbRepo("1", "team/api")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if !s.IsMonitored("1", model.ProviderBitbucket) {
		t.Error("IsMonitored = false after add")
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1", s.Count())
	}

	if err := s.Remove("1", model.ProviderBitbucket); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if s.IsMonitored("1", model.ProviderBitbucket) {
		t.Error("IsMonitored = true after remove")
	}
}

func TestCompositeKeyAllowsSameIDAcrossProviders(t *testing.T) {
	s := newTestStore(t)

	if err := s.Add(bbRepo("42", "team/api")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	gl := model.Repository{ID: "42", FullName: "group/api", Provider: model.ProviderGitLab}
	if err := s.Add(gl); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if s.Count() != 2 {
		t.Fatalf("Count() = %d, want 2 (ids only collide within a provider)", s.Count())
	}

	if err := s.Remove("42", model.ProviderGitLab); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if !s.IsMonitored("42", model.ProviderBitbucket) {
		t.Error("bitbucket entry removed by gitlab key")
	}
}

func TestDuplicateAddIsNoop(t *testing.T) {
	s := newTestStore(t)

	changes := 0
	s.OnChange(func() { changes++ })

	if err := s.Add(bbRepo("1", "team/api")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Add(bbRepo("1", "team/api")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1", s.Count())
	}
	if changes != 1 {
		t.Errorf("change callbacks = %d, want 1", changes)
	}
}

func TestChangeCallbackFires(t *testing.T) {
	s := newTestStore(t)

	changes := 0
	s.OnChange(func() { changes++ })

	_ = s.Add(bbRepo("1", "team/api"))
	_ = s.Remove("1", model.ProviderBitbucket)
	_ = s.Remove("1", model.ProviderBitbucket)

	if changes != 2 {
		t.Errorf("change callbacks = %d, want 2 (no-op remove must not fire)", changes)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repositories.json")

	s := NewStoreAt(path)
	_ = s.Add(bbRepo("1", "team/api"))
	_ = s.Add(model.Repository{ID: "2", FullName: "group/web", Provider: model.ProviderGitLab})

	reopened := NewStoreAt(path)
	if reopened.Count() != 2 {
		t.Fatalf("Count() = %d after reopen, want 2", reopened.Count())
	}
	if !reopened.IsMonitored("2", model.ProviderGitLab) {
		t.Error("gitlab entry lost across reopen")
	}
}

func TestAllSortsByProviderThenName(t *testing.T) {
	s := newTestStore(t)
	_ = s.Add(model.Repository{ID: "3", FullName: "group/web", Provider: model.ProviderGitLab})
	_ = s.Add(bbRepo("2", "team/zeta"))
	_ = s.Add(bbRepo("1", "team/api"))

	all := s.All()
	want := []string{"team/api", "team/zeta", "group/web"}
	for i, repo := range all {
		if repo.FullName != want[i] {
			t.Errorf("All()[%d] = %s, want %s", i, repo.FullName, want[i])
		}
	}
}
