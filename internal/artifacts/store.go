// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package artifacts persists rendered outputs for the current session and
// watches the processed-data directory for new FFT arrays.
package artifacts

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/util"
)

// Store writes installed artifacts (plot PNGs, report text) under one
// session directory. The UI consumer owns the store; workers never touch
// it and only hand payloads over through the mailbox.
type Store struct {
	dir string

	mu    sync.Mutex
	saved []string
}

// NewStore creates a store rooted at dir. The directory is created lazily
// on first save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Save writes data under a sanitized file name and remembers the path.
// Writes are atomic so a crash never leaves a truncated artifact.
func (s *Store) Save(name string, data []byte) (string, error) {
	clean := sanitize(name)
	if clean == "" {
		return "", fmt.Errorf("artifact name %q is empty after sanitizing", name)
	}
	path := filepath.Join(s.dir, clean)
	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save artifact %s: %w", clean, err)
	}

	s.mu.Lock()
	s.saved = append(s.saved, path)
	s.mu.Unlock()
	return path, nil
}

// Paths returns the artifacts saved this session, in save order.
func (s *Store) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.saved))
	copy(out, s.saved)
	return out
}

// ReleaseAll forgets the retained artifact handles. Files stay on disk;
// this only drops the in-memory references at shutdown.
func (s *Store) ReleaseAll() {
	s.mu.Lock()
	s.saved = nil
	s.mu.Unlock()
}

// sanitize strips path separators so artifact names cannot escape the
// store directory.
func sanitize(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}
