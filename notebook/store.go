package notebook

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/fatehu/research-assistant-sub001/protocol"
)

// Store is a file-backed notebook document: an ordered artifact list
// persisted as JSON. Writes go through a temp file and rename so readers
// never observe a half-written document. Refresh reloads from disk, which
// is also how external edits (picked up by Watch) are absorbed.
type Store struct {
	mu        sync.RWMutex
	path      string
	artifacts []protocol.Artifact
	watcher   *fsnotify.Watcher
	logger    *slog.Logger
}

// NewStore opens the notebook at path, loading it if it exists.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{path: path, logger: logger}
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// Insert appends the artifact unless one with the same identity exists.
// Retried deliveries of the same observation are therefore harmless.
func (s *Store) Insert(artifact protocol.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.artifacts {
		if existing.ID == artifact.ID {
			return nil
		}
	}
	s.artifacts = append(s.artifacts, artifact)
	return s.saveLocked()
}

// Update replaces the artifact with matching identity, inserting when no
// match exists.
func (s *Store) Update(artifact protocol.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.artifacts {
		if existing.ID == artifact.ID {
			s.artifacts[i] = artifact
			return s.saveLocked()
		}
	}
	s.artifacts = append(s.artifacts, artifact)
	return s.saveLocked()
}

// Refresh reloads the document from its backing file. A missing file is an
// empty notebook, not an error.
func (s *Store) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.artifacts = nil
			return nil
		}
		return err
	}

	var artifacts []protocol.Artifact
	if err := json.Unmarshal(data, &artifacts); err != nil {
		return err
	}
	s.artifacts = artifacts
	return nil
}

// Artifacts returns a snapshot of the document's artifacts in order.
func (s *Store) Artifacts() []protocol.Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]protocol.Artifact, len(s.artifacts))
	copy(out, s.artifacts)
	return out
}

// Watch reloads the document whenever its backing file is modified by
// another process. Close stops the watcher.
func (s *Store) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: editors commonly replace files via rename, which
	// drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return err
	}

	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != s.path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := s.Refresh(); err != nil {
					s.logger.Warn("notebook reload after external change failed",
						"path", s.path, "error", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("notebook watcher error", "error", err)
			}
		}
	}()
	return nil
}

// Close stops the file watcher, if running.
func (s *Store) Close() error {
	s.mu.Lock()
	watcher := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if watcher != nil {
		return watcher.Close()
	}
	return nil
}

// saveLocked persists the document atomically. Callers hold s.mu.
func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.artifacts, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
