// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pipeline composes named tasks into ordered stages and executes
// them on background workers, posting results to the UI mailbox.
package pipeline

import (
	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/config"
)

// =============================================================================
// STAGE MODEL
// =============================================================================

// StageKind selects what a stage does.
type StageKind int

const (
	// StageProcess runs one papermill subprocess per notebook.
	StageProcess StageKind = iota

	// StageRender turns saved FFT arrays into plot artifacts.
	StageRender

	// StageReport extracts tagged outputs from an executed notebook.
	StageReport
)

// Stage is one phase of a task pipeline. Stages execute strictly in
// declared order; a stage starts only after the previous one completed.
type Stage struct {
	Kind StageKind

	// Label names the stage in the task log ("" = no banner line).
	Label string

	// Notebooks are absolute input paths (StageProcess).
	Notebooks []string

	// Arrays are absolute .npy paths (StageRender).
	Arrays []string

	// Source is the absolute notebook path whose executed artifact feeds
	// the report (StageReport).
	Source string
}

// Spec is a named pipeline of stages.
type Spec struct {
	// Task is the stable task identifier.
	Task string

	// Title is the human-readable description.
	Title string

	Stages []Stage
}

// FromConfig builds the pipeline for one configured task: conversion
// notebooks, FFT plots, training notebooks, then the training report.
func FromConfig(cfg *config.Config, t config.TaskConfig) Spec {
	var stages []Stage

	if len(t.ConversionNotebooks) > 0 {
		paths := make([]string, len(t.ConversionNotebooks))
		for i, nb := range t.ConversionNotebooks {
			paths[i] = cfg.ConversionPath(nb)
		}
		stages = append(stages, Stage{
			Kind:      StageProcess,
			Label:     "ADC -> FFT conversion",
			Notebooks: paths,
		})
	}

	if len(t.FFTArrays) > 0 {
		paths := make([]string, len(t.FFTArrays))
		for i, npy := range t.FFTArrays {
			paths[i] = cfg.ProcessedPath(npy)
		}
		stages = append(stages, Stage{
			Kind:   StageRender,
			Arrays: paths,
		})
	}

	if len(t.TrainingNotebooks) > 0 {
		paths := make([]string, len(t.TrainingNotebooks))
		for i, nb := range t.TrainingNotebooks {
			paths[i] = cfg.TrainingPath(nb)
		}
		stages = append(stages, Stage{
			Kind:      StageProcess,
			Label:     "Notebook-based model training",
			Notebooks: paths,
		})
		stages = append(stages, Stage{
			Kind:   StageReport,
			Source: paths[0],
		})
	}

	return Spec{Task: t.Name, Title: t.Title, Stages: stages}
}
