// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later

package artifacts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSaveAndRelease(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	s := NewStore(dir)

	path, err := s.Save("fft.png", []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "fft.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	require.Len(t, s.Paths(), 1)

	s.ReleaseAll()
	assert.Empty(t, s.Paths())
	// Disk files survive the release.
	assert.FileExists(t, path)
}

func TestStoreSanitizesNames(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	path, err := s.Save("../../escape.png", []byte{1})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.png"), path)

	_, err = s.Save("   ", []byte{1})
	assert.Error(t, err)
}

func TestWatcherReportsNpyWrites(t *testing.T) {
	dir := t.TempDir()

	changes := make(chan string, 8)
	w, err := NewWatcher(dir, func(path string) { changes <- path })
	require.NoError(t, err)
	defer w.Close()

	npy := filepath.Join(dir, "new.npy")
	require.NoError(t, os.WriteFile(npy, []byte("x"), 0644))

	select {
	case got := <-changes:
		assert.Equal(t, npy, got)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher never reported the new array")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()

	changes := make(chan string, 8)
	w, err := NewWatcher(dir, func(path string) { changes <- path })
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	select {
	case got := <-changes:
		t.Fatalf("unexpected change report: %s", got)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcherCloseIdempotent(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir, func(string) {})
	require.NoError(t, err)
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
