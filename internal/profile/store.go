package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/vnmchuo/quill/internal/apperr"
	"github.com/vnmchuo/quill/internal/logger"
)

// Storage owns the per-profile document directories.
type Storage interface {
	Ensure(id string) error
	Purge(id string) error
}

// Store keeps the authoritative copy of all profiles in memory and rewrites the whole
// file on every mutation. Mutations are serialized by mu, so concurrent writers never
// overwrite each other's changes.
type Store struct {
	mu      sync.Mutex
	path    string
	storage Storage
	data    Snapshot
}

// Open loads the store at path. A missing or unreadable file yields the default store.
func Open(ctx context.Context, path string, storage Storage) (*Store, error) {
	s := &Store{path: path, storage: storage}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.data = defaultSnapshot()
	case err != nil:
		return nil, fmt.Errorf("failed to read profile store: %w", err)
	default:
		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			logger.Warn(ctx, "profile store unreadable, starting from defaults", "path", path, "error", err)
			snap = defaultSnapshot()
		}
		snap.repair()
		s.data = snap
	}

	if err := storage.Ensure(DefaultID); err != nil {
		return nil, fmt.Errorf("failed to prepare default profile storage: %w", err)
	}
	return s, nil
}

func (s *Store) List() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.clone()
}

func (s *Store) Get(id string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.data.Profiles[id]
	if !ok {
		return Profile{}, apperr.NotFound("profile %q not found", id)
	}
	return p.clone(), nil
}

// Active returns the active profile id and its record.
func (s *Store) Active() (string, Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.data.ActiveProfile
	return id, s.data.Profiles[id].clone()
}

// Upsert inserts or fully replaces the profile at id.
func (s *Store) Upsert(ctx context.Context, id string, p Profile) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if p.Name == "" {
		return apperr.Validation("profile name is required")
	}
	for _, name := range p.DocFiles {
		if err := ValidateFilename(name); err != nil {
			return err
		}
	}

	return s.mutate(ctx, func(snap *Snapshot) error {
		if err := s.storage.Ensure(id); err != nil {
			return apperr.Internal("failed to prepare profile storage", err)
		}
		snap.Profiles[id] = p.clone()
		return nil
	})
}

// Create adds an empty profile whose id is derived from name. The store never
// disambiguates: a taken id is a validation error.
func (s *Store) Create(ctx context.Context, name string) (string, error) {
	return s.insertNamed(ctx, name, func(Snapshot) (Profile, error) {
		return Profile{Name: name}, nil
	})
}

// Duplicate copies srcID's instructions into a new profile named name. Attached
// documents are not copied.
func (s *Store) Duplicate(ctx context.Context, srcID, name string) (string, error) {
	return s.insertNamed(ctx, name, func(snap Snapshot) (Profile, error) {
		src, ok := snap.Profiles[srcID]
		if !ok {
			return Profile{}, apperr.NotFound("profile %q not found", srcID)
		}
		return Profile{
			Name:              name,
			CreateInstruction: src.CreateInstruction,
			EditInstruction:   src.EditInstruction,
		}, nil
	})
}

func (s *Store) insertNamed(ctx context.Context, name string, build func(Snapshot) (Profile, error)) (string, error) {
	if name == "" {
		return "", apperr.Validation("profile name is required")
	}
	id := Slug(name)
	if err := ValidateID(id); err != nil {
		return "", err
	}

	err := s.mutate(ctx, func(snap *Snapshot) error {
		if _, exists := snap.Profiles[id]; exists {
			return apperr.Validation("a profile with id %q already exists, choose another name", id)
		}
		p, err := build(*snap)
		if err != nil {
			return err
		}
		p.DocFiles = []string{}
		if err := s.storage.Ensure(id); err != nil {
			return apperr.Internal("failed to prepare profile storage", err)
		}
		snap.Profiles[id] = p
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Remove deletes a profile and its documents. Removing the active profile resets the
// active pointer to the default profile.
func (s *Store) Remove(ctx context.Context, id string) error {
	if id == DefaultID {
		return apperr.Protected("the default profile cannot be deleted")
	}

	purge := func() {
		if err := s.storage.Purge(id); err != nil {
			logger.Warn(ctx, "failed to purge profile documents", "profile_id", id, "error", err)
		}
	}
	return s.mutateThen(ctx, func(snap *Snapshot) error {
		if _, ok := snap.Profiles[id]; !ok {
			return apperr.NotFound("profile %q not found", id)
		}
		delete(snap.Profiles, id)
		if snap.ActiveProfile == id {
			snap.ActiveProfile = DefaultID
		}
		return nil
	}, purge)
}

func (s *Store) SetActive(ctx context.Context, id string) error {
	if id == "" {
		return apperr.Validation("profileId is required")
	}
	return s.mutate(ctx, func(snap *Snapshot) error {
		if _, ok := snap.Profiles[id]; !ok {
			return apperr.NotFound("profile %q not found", id)
		}
		snap.ActiveProfile = id
		return nil
	})
}

// Update applies fn to a copy of the profile at id and persists the result.
func (s *Store) Update(ctx context.Context, id string, fn func(p *Profile) error) error {
	return s.mutate(ctx, func(snap *Snapshot) error {
		p, ok := snap.Profiles[id]
		if !ok {
			return apperr.NotFound("profile %q not found", id)
		}
		if err := fn(&p); err != nil {
			return err
		}
		if p.DocFiles == nil {
			p.DocFiles = []string{}
		}
		snap.Profiles[id] = p
		return nil
	})
}

// mutate runs fn against a copy of the store and commits it only once it has been
// written to disk.
func (s *Store) mutate(ctx context.Context, fn func(snap *Snapshot) error) error {
	return s.mutateThen(ctx, fn, nil)
}

// mutateThen is mutate with a hook that runs after the commit, still under the lock,
// so storage side effects cannot interleave with another writer.
func (s *Store) mutateThen(ctx context.Context, fn func(snap *Snapshot) error, after func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.data.clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := s.save(next); err != nil {
		logger.Error(ctx, "failed to save profile store", err, "path", s.path)
		return apperr.Internal("failed to save profiles", err)
	}
	s.data = next
	if after != nil {
		after()
	}
	return nil
}

func (s *Store) save(snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode profiles: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp := filepath.Join(dir, "."+filepath.Base(s.path)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write profiles: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace profile store: %w", err)
	}
	return nil
}
