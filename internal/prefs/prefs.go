// Package prefs persists the little state that outlives a session: whether
// the user has completed onboarding.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// OnboardingKey is the fixed key of the onboarding flag.
const OnboardingKey = "tracevision-has-visited"

// FileName is the name of the preferences file inside the state directory.
const FileName = "prefs.json"

// Store is a JSON key-value file. Writes replace the whole file, so the last
// writer wins.
type Store struct {
	mu   sync.Mutex
	path string
}

// Open returns a Store writing to dir/prefs.json. The directory is created on
// first write.
func Open(dir string) *Store {
	return &Store{path: filepath.Join(dir, FileName)}
}

// Path returns the file backing the store.
func (s *Store) Path() string { return s.path }

// OnboardingComplete reports whether the onboarding flag is set. A missing
// file means onboarding has not happened yet.
func (s *Store) OnboardingComplete() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return false, err
	}
	return values[OnboardingKey] == "true", nil
}

// SetOnboardingComplete stores the onboarding flag.
func (s *Store) SetOnboardingComplete(done bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	if done {
		values[OnboardingKey] = "true"
	} else {
		delete(values, OnboardingKey)
	}
	return s.write(values)
}

func (s *Store) read() (map[string]string, error) {
	values := make(map[string]string)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return values, nil
		}
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse preferences: %w", err)
	}
	// A file holding JSON null decodes to a nil map.
	if values == nil {
		values = make(map[string]string)
	}
	return values, nil
}

func (s *Store) write(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), FileName+".*")
	if err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}
