// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package plot renders frequency/magnitude charts from saved NumPy FFT
// arrays. Rendering happens on the calling (background) goroutine and
// produces encoded bytes only; nothing here touches presentation state.
package plot

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/sbinet/npyio"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Series is one FFT curve: x is frequency, y is magnitude. Extra columns
// in the source array are ignored.
type Series struct {
	Name string
	X    []float64
	Y    []float64
}

// =============================================================================
// NUMPY LOADING
// =============================================================================

// LoadSeries reads a .npy array of shape (N, >=2) and takes the first two
// columns as frequency and magnitude.
func LoadSeries(path string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open array: %w", err)
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read npy header: %w", err)
	}

	shape := r.Header.Descr.Shape
	if len(shape) != 2 || shape[1] < 2 {
		return nil, fmt.Errorf("array %s has shape %v, want (N, >=2)", filepath.Base(path), shape)
	}
	rows, cols := shape[0], shape[1]

	data, err := readFloats(r, rows*cols)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}

	s := &Series{
		Name: filepath.Base(path),
		X:    make([]float64, rows),
		Y:    make([]float64, rows),
	}
	if r.Header.Descr.Fortran {
		// Column-major: each column is contiguous.
		copy(s.X, data[:rows])
		copy(s.Y, data[rows:2*rows])
	} else {
		for i := 0; i < rows; i++ {
			s.X[i] = data[i*cols]
			s.Y[i] = data[i*cols+1]
		}
	}
	return s, nil
}

// readFloats decodes the raw buffer into float64 regardless of the stored
// numeric dtype.
func readFloats(r *npyio.Reader, n int) ([]float64, error) {
	dtype := r.Header.Descr.Type
	switch {
	case strings.Contains(dtype, "f8"):
		data := make([]float64, n)
		if err := r.Read(&data); err != nil {
			return nil, err
		}
		return data, nil
	case strings.Contains(dtype, "f4"):
		raw := make([]float32, n)
		if err := r.Read(&raw); err != nil {
			return nil, err
		}
		data := make([]float64, n)
		for i, v := range raw {
			data[i] = float64(v)
		}
		return data, nil
	case strings.Contains(dtype, "i8"):
		raw := make([]int64, n)
		if err := r.Read(&raw); err != nil {
			return nil, err
		}
		data := make([]float64, n)
		for i, v := range raw {
			data[i] = float64(v)
		}
		return data, nil
	case strings.Contains(dtype, "i4"):
		raw := make([]int32, n)
		if err := r.Read(&raw); err != nil {
			return nil, err
		}
		data := make([]float64, n)
		for i, v := range raw {
			data[i] = float64(v)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported dtype %q", dtype)
	}
}

// =============================================================================
// RENDERING
// =============================================================================

// RenderPNG draws the series as a line chart and returns the encoded PNG.
// The layout mirrors the exploration notebooks: wide aspect, grid,
// frequency/magnitude axis labels, file name as title.
func (s *Series) RenderPNG() ([]byte, error) {
	p := plot.New()
	p.Title.Text = s.Name
	p.X.Label.Text = "Frequency (Hz)"
	p.Y.Label.Text = "Magnitude"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(s.X))
	for i := range s.X {
		pts[i].X = s.X[i]
		pts[i].Y = s.Y[i]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to build line plot: %w", err)
	}
	p.Add(line)

	wt, err := p.WriterTo(8*vg.Inch, 3*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("failed to encode plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write plot: %w", err)
	}
	return buf.Bytes(), nil
}

// sparks are the eight vertical-resolution steps of the text preview.
var sparks = []rune("▁▂▃▄▅▆▇█")

// Sparkline returns a width-column text preview of the magnitude curve
// for display inside the terminal gallery. Columns are bucketed maxima.
func (s *Series) Sparkline(width int) string {
	if width <= 0 || len(s.Y) == 0 {
		return ""
	}
	if width > len(s.Y) {
		width = len(s.Y)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range s.Y {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	out := make([]rune, width)
	per := float64(len(s.Y)) / float64(width)
	for c := 0; c < width; c++ {
		start := int(float64(c) * per)
		end := int(float64(c+1) * per)
		if end > len(s.Y) {
			end = len(s.Y)
		}
		if start >= end {
			start = end - 1
		}
		bucket := math.Inf(-1)
		for _, v := range s.Y[start:end] {
			bucket = math.Max(bucket, v)
		}
		idx := int((bucket - lo) / span * float64(len(sparks)-1))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparks) {
			idx = len(sparks) - 1
		}
		out[c] = sparks[idx]
	}
	return string(out)
}
