// Package jsonfile persists the user collection as an indented JSON array in a
// single file.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/zhouzirui/user-api/backend/internal/model/user"
)

// Store implements user.Store on top of a JSON file.
type Store struct {
	path string

	mu       sync.Mutex
	lastHash uint64
	known    bool
}

// New returns a Store backed by the file at path. The file does not need to
// exist yet.
func New(path string) *Store {
	return &Store{path: filepath.Clean(path)}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the whole collection. A missing or blank file is an empty
// collection; a file that cannot be decoded yields an error wrapping
// user.ErrCorrupt.
func (s *Store) Load(ctx context.Context) ([]user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []user.User{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []user.User{}, nil
	}

	var users []user.User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", user.ErrCorrupt, s.path, err)
	}
	if users == nil {
		users = []user.User{}
	}
	return users, nil
}

// Save overwrites the file with users. The data goes to a temporary file in
// the same directory which is then renamed over the target.
func (s *Store) Save(ctx context.Context, users []user.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if users == nil {
		users = []user.User{}
	}

	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(s.path), uuid.NewString()))
	if err := writeSynced(tmpPath, data); err != nil {
		os.Remove(tmpPath)
		return err
	}

	// The watcher may see the rename before Save returns.
	prevHash, prevKnown := s.swap(xxhash.Sum64(data), true)
	if err := os.Rename(tmpPath, s.path); err != nil {
		s.swap(prevHash, prevKnown)
		os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// Changed reports whether data differs from the latest known content and
// records data as the latest known content. Only Save, Seed and Changed
// update it; Load does not.
func (s *Store) Changed(data []byte) bool {
	sum := xxhash.Sum64(data)
	prev, known := s.swap(sum, true)
	return !known || prev != sum
}

// Seed records the current file content as known. A missing file is known
// as empty content.
func (s *Store) Seed() error {
	data, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read %s: %w", s.path, err)
	}
	s.swap(xxhash.Sum64(data), true)
	return nil
}

func (s *Store) swap(sum uint64, known bool) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, prevKnown := s.lastHash, s.known
	s.lastHash, s.known = sum, known
	return prev, prevKnown
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return nil
}
