// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package notebook reads executed Jupyter notebooks and extracts the cell
// outputs marked for reporting.
package notebook

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DerivedPrefix is prepended to a notebook's base name to form the
// executed-artifact path in the same directory.
const DerivedPrefix = "executed_"

// DerivedPath returns the deterministic output path for an input
// notebook: same directory, "executed_" prefix on the base name.
func DerivedPath(input string) string {
	dir := filepath.Dir(input)
	base := filepath.Base(input)
	return filepath.Join(dir, DerivedPrefix+base)
}

// =============================================================================
// NOTEBOOK DOCUMENT MODEL
// =============================================================================

// multiline is nbformat's string-or-list-of-strings shape.
type multiline string

func (m *multiline) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = multiline(s)
		return nil
	}
	var parts []string
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	*m = multiline(strings.Join(parts, ""))
	return nil
}

// Cell is one notebook cell. Only the fields the report extractor needs
// are modelled.
type Cell struct {
	Type     string    `json:"cell_type"`
	Source   multiline `json:"source"`
	Metadata struct {
		Tags []string `json:"tags"`
	} `json:"metadata"`
	Outputs []Output `json:"outputs"`
}

// HasTag reports whether the cell carries the given metadata tag.
func (c *Cell) HasTag(tag string) bool {
	for _, t := range c.Metadata.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Output is one entry in a code cell's output collection.
type Output struct {
	Type      string               `json:"output_type"`
	Text      multiline            `json:"text"`
	Data      map[string]multiline `json:"data"`
	Traceback []string             `json:"traceback"`
}

// Notebook is a parsed .ipynb document.
type Notebook struct {
	Cells []Cell `json:"cells"`
}

// Read parses the notebook at path.
func Read(path string) (*Notebook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read notebook: %w", err)
	}
	var nb Notebook
	if err := json.Unmarshal(data, &nb); err != nil {
		return nil, fmt.Errorf("failed to parse notebook %s: %w", filepath.Base(path), err)
	}
	return &nb, nil
}

// =============================================================================
// REPORT EXTRACTION
// =============================================================================

// ExtractTagged assembles the textual report: every cell carrying tag, in
// document order. Markdown cells contribute their source; code cells
// contribute their stream text, plain-text results, and error tracebacks.
func (nb *Notebook) ExtractTagged(tag string) string {
	var b strings.Builder

	for idx, cell := range nb.Cells {
		if !cell.HasTag(tag) {
			continue
		}

		fmt.Fprintf(&b, "--- Cell %d (%s) ---\n", idx, cell.Type)

		switch cell.Type {
		case "markdown":
			b.WriteString(string(cell.Source))
			b.WriteString("\n")
		case "code":
			if len(cell.Outputs) == 0 {
				b.WriteString("[no outputs]\n")
				break
			}
			for _, out := range cell.Outputs {
				switch out.Type {
				case "stream":
					b.WriteString(string(out.Text))
					b.WriteString("\n")
				case "execute_result", "display_data":
					if text, ok := out.Data["text/plain"]; ok && text != "" {
						b.WriteString(string(text))
						b.WriteString("\n")
					}
				case "error":
					if len(out.Traceback) > 0 {
						b.WriteString(strings.Join(out.Traceback, "\n"))
						b.WriteString("\n")
					}
				}
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

// ExtractTaggedFile is Read followed by ExtractTagged.
func ExtractTaggedFile(path, tag string) (string, error) {
	nb, err := Read(path)
	if err != nil {
		return "", err
	}
	return nb.ExtractTagged(tag), nil
}
