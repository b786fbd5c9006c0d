// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later

package notebook

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleNotebook = `{
  "cells": [
    {
      "cell_type": "markdown",
      "metadata": {"tags": ["log_cm"]},
      "source": ["# Results\n", "Confusion matrix below."]
    },
    {
      "cell_type": "code",
      "metadata": {},
      "source": "print('untagged')",
      "outputs": [
        {"output_type": "stream", "text": "should not appear"}
      ]
    },
    {
      "cell_type": "code",
      "metadata": {"tags": ["log_cm", "other"]},
      "source": "print(cm)",
      "outputs": [
        {"output_type": "stream", "text": ["[[10  1]\n", " [ 2 12]]"]},
        {"output_type": "execute_result", "data": {"text/plain": "0.93"}},
        {"output_type": "error", "traceback": ["Traceback", "ValueError: bad"]}
      ]
    },
    {
      "cell_type": "code",
      "metadata": {"tags": ["log_cm"]},
      "source": "pass",
      "outputs": []
    }
  ]
}`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "executed_train.ipynb")
	require.NoError(t, os.WriteFile(path, []byte(sampleNotebook), 0644))
	return path
}

func TestDerivedPath(t *testing.T) {
	got := DerivedPath("/nb/Training/train model.ipynb")
	assert.Equal(t, "/nb/Training/executed_train model.ipynb", got)
}

func TestExtractTagged(t *testing.T) {
	path := writeSample(t)
	text, err := ExtractTaggedFile(path, "log_cm")
	require.NoError(t, err)

	// Tagged markdown cell, joined from its string list.
	assert.Contains(t, text, "--- Cell 0 (markdown) ---")
	assert.Contains(t, text, "# Results\nConfusion matrix below.")

	// Untagged cell is skipped entirely.
	assert.NotContains(t, text, "untagged")
	assert.NotContains(t, text, "should not appear")

	// Tagged code cell: stream, plain result, traceback.
	assert.Contains(t, text, "--- Cell 2 (code) ---")
	assert.Contains(t, text, "[[10  1]\n [ 2 12]]")
	assert.Contains(t, text, "0.93")
	assert.Contains(t, text, "ValueError: bad")

	// Empty output collection yields the placeholder.
	assert.Contains(t, text, "--- Cell 3 (code) ---")
	assert.Contains(t, text, "[no outputs]")

	// Document order preserved.
	assert.Less(t, strings.Index(text, "Cell 0"), strings.Index(text, "Cell 2"))
	assert.Less(t, strings.Index(text, "Cell 2"), strings.Index(text, "Cell 3"))
}

func TestExtractNoMatches(t *testing.T) {
	path := writeSample(t)
	text, err := ExtractTaggedFile(path, "nonexistent_tag")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "absent.ipynb"))
	assert.Error(t, err)
}

func TestReadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ipynb")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	_, err := Read(path)
	assert.Error(t, err)
}
