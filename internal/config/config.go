// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading for the workbench.
//
// Supports TOML configuration with sensible defaults, environment variable
// overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - $FIUS_CONFIG
//   - ~/.fius/config.toml
//   - Built-in defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete workbench configuration.
type Config struct {
	// Python is the interpreter used to invoke papermill.
	Python string `toml:"python"`

	// ProjectRoot anchors all relative notebook and data paths.
	ProjectRoot string `toml:"project_root"`

	// ConversionDir holds the ADC->FFT exploration notebooks.
	ConversionDir string `toml:"conversion_dir"`

	// TrainingDir holds the model training notebooks.
	TrainingDir string `toml:"training_dir"`

	// ProcessedDir holds the saved NumPy FFT arrays.
	ProcessedDir string `toml:"processed_dir"`

	// Tasks are the runnable pipelines, in display order.
	Tasks []TaskConfig `toml:"tasks"`

	Report   ReportConfig   `toml:"report"`
	Shutdown ShutdownConfig `toml:"shutdown"`
	UI       UIConfig       `toml:"ui"`
}

// TaskConfig describes one named pipeline.
type TaskConfig struct {
	// Name is the stable task identifier (e.g. "Task1").
	Name string `toml:"name"`

	// Title is the human-readable description shown in the UI.
	Title string `toml:"title"`

	// ConversionNotebooks are executed first, relative to ConversionDir.
	ConversionNotebooks []string `toml:"conversion_notebooks"`

	// FFTArrays are NumPy files plotted after conversion, relative to
	// ProcessedDir.
	FFTArrays []string `toml:"fft_arrays"`

	// TrainingNotebooks are executed after plotting, relative to
	// TrainingDir. The first one feeds the report stage.
	TrainingNotebooks []string `toml:"training_notebooks"`
}

// ReportConfig controls notebook output extraction.
type ReportConfig struct {
	// Tag marks the cells whose outputs appear in the report tab.
	Tag string `toml:"tag"`
}

// ShutdownConfig holds the termination budgets.
type ShutdownConfig struct {
	// ProcessGraceMs is how long terminated children get before a kill.
	ProcessGraceMs int `toml:"process_grace_ms"`

	// ProcessPollMs is the liveness poll interval during the grace window.
	ProcessPollMs int `toml:"process_poll_ms"`

	// WorkerJoinMs is the per-worker join budget at shutdown.
	WorkerJoinMs int `toml:"worker_join_ms"`

	// PanelReadyMs bounds how long a worker waits for the UI to finish
	// rebuilding a results panel before skipping artifact delivery.
	PanelReadyMs int `toml:"panel_ready_ms"`
}

// UIConfig holds presentation options.
type UIConfig struct {
	// MaxLogLines caps the task log scrollback.
	MaxLogLines int `toml:"max_log_lines"`

	// ArtifactDir is where rendered plots and reports are written.
	ArtifactDir string `toml:"artifact_dir"`

	// WatchProcessed enables the FFT array directory watcher.
	WatchProcessed bool `toml:"watch_processed"`
}

// ProcessGrace returns the graceful-termination deadline as a duration.
func (s ShutdownConfig) ProcessGrace() time.Duration {
	return time.Duration(s.ProcessGraceMs) * time.Millisecond
}

// ProcessPoll returns the liveness poll interval as a duration.
func (s ShutdownConfig) ProcessPoll() time.Duration {
	return time.Duration(s.ProcessPollMs) * time.Millisecond
}

// WorkerJoin returns the per-worker join budget as a duration.
func (s ShutdownConfig) WorkerJoin() time.Duration {
	return time.Duration(s.WorkerJoinMs) * time.Millisecond
}

// PanelReady returns the panel-ready wait bound as a duration.
func (s ShutdownConfig) PanelReady() time.Duration {
	return time.Duration(s.PanelReadyMs) * time.Millisecond
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration, mirroring the original
// project layout.
func Default() *Config {
	return &Config{
		Python:        "python3",
		ProjectRoot:   "~/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/source_code",
		ConversionDir: "Notebooks/Exploration",
		TrainingDir:   "Notebooks/Training",
		ProcessedDir:  "Data/Processed",
		Tasks: []TaskConfig{
			{
				Name:  "Task1",
				Title: "Empty seat vs carrier seat",
				ConversionNotebooks: []string{
					"ADC to FFT Emptyseat.ipynb",
					"ADC to FFT Carrierseat.ipynb",
				},
				FFTArrays: []string{
					"Emptyseat_npy_array_Lowpassfiltered_label.npy",
					"CarrierSeat_withoutBaby_Lowpassfilered_Label_0.npy",
				},
				TrainingNotebooks: []string{
					"Task1_Empty seat or carrier seat Classification using XG Boost model and MLP model.ipynb",
				},
			},
			{
				Name:  "Task2",
				Title: "With or without baby",
				ConversionNotebooks: []string{
					"ADC to FFT Withbaby.ipynb",
				},
				FFTArrays: []string{
					"Emptyseat_npy_array_Lowpassfiltered_label.npy",
					"CarrierSeat_withoutBaby_Lowpassfilered_Label_0.npy",
				},
				TrainingNotebooks: []string{
					"Task2_With or without baby Detection using RanFor model and SVM model.ipynb",
				},
			},
			{
				Name:  "Task3",
				Title: "Presence under blanket or sunscreen",
				ConversionNotebooks: []string{
					"ADC to FFT Blanket and Sunscreen.ipynb",
				},
				FFTArrays: []string{
					"Emptyseat_npy_array_Lowpassfiltered_label.npy",
					"CarrierSeat_withoutBaby_Lowpassfilered_Label_0.npy",
				},
				TrainingNotebooks: []string{
					"Task3_Baby presence detection when covered in blanket or sunscreen.ipynb",
				},
			},
		},
		Report: ReportConfig{
			Tag: "log_cm",
		},
		Shutdown: ShutdownConfig{
			ProcessGraceMs: 3000,
			ProcessPollMs:  50,
			WorkerJoinMs:   1000,
			PanelReadyMs:   2000,
		},
		UI: UIConfig{
			MaxLogLines:    2000,
			ArtifactDir:    "~/.fius/artifacts",
			WatchProcessed: true,
		},
	}
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration from disk, applying defaults for anything
// the file leaves unset and environment overrides on top.
func Load() (*Config, error) {
	cfg := Default()

	path := configPath()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configPath returns the first config file that exists, or "".
func configPath() string {
	if p := os.Getenv("FIUS_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	p := filepath.Join(home, ".fius", "config.toml")
	if util.FileExists(p) {
		return p
	}
	return ""
}

// applyEnvOverrides applies single-value environment overrides.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FIUS_PYTHON"); v != "" {
		cfg.Python = v
	}
	if v := os.Getenv("FIUS_PROJECT_ROOT"); v != "" {
		cfg.ProjectRoot = v
	}
}

// normalize expands home-relative paths and fills zero budgets from the
// defaults so a partial config file cannot produce an unbounded shutdown.
func (c *Config) normalize() {
	c.ProjectRoot = util.ExpandHome(c.ProjectRoot)
	c.UI.ArtifactDir = util.ExpandHome(c.UI.ArtifactDir)

	def := Default()
	if c.Shutdown.ProcessGraceMs <= 0 {
		c.Shutdown.ProcessGraceMs = def.Shutdown.ProcessGraceMs
	}
	if c.Shutdown.ProcessPollMs <= 0 {
		c.Shutdown.ProcessPollMs = def.Shutdown.ProcessPollMs
	}
	if c.Shutdown.WorkerJoinMs <= 0 {
		c.Shutdown.WorkerJoinMs = def.Shutdown.WorkerJoinMs
	}
	if c.Shutdown.PanelReadyMs <= 0 {
		c.Shutdown.PanelReadyMs = def.Shutdown.PanelReadyMs
	}
	if c.UI.MaxLogLines <= 0 {
		c.UI.MaxLogLines = def.UI.MaxLogLines
	}
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.Python == "" {
		return errors.New("config: python interpreter must not be empty")
	}
	if len(c.Tasks) == 0 {
		return errors.New("config: at least one task must be defined")
	}
	seen := make(map[string]bool, len(c.Tasks))
	for _, t := range c.Tasks {
		if t.Name == "" {
			return errors.New("config: task with empty name")
		}
		if seen[t.Name] {
			return fmt.Errorf("config: duplicate task name %q", t.Name)
		}
		seen[t.Name] = true
	}
	if c.Report.Tag == "" {
		return errors.New("config: report tag must not be empty")
	}
	return nil
}

// Task returns the task with the given name, or false.
func (c *Config) Task(name string) (TaskConfig, bool) {
	for _, t := range c.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return TaskConfig{}, false
}

// ConversionPath resolves a conversion notebook to an absolute path.
func (c *Config) ConversionPath(nb string) string {
	return filepath.Join(c.ProjectRoot, c.ConversionDir, nb)
}

// TrainingPath resolves a training notebook to an absolute path.
func (c *Config) TrainingPath(nb string) string {
	return filepath.Join(c.ProjectRoot, c.TrainingDir, nb)
}

// ProcessedPath resolves an FFT array to an absolute path.
func (c *Config) ProcessedPath(npy string) string {
	return filepath.Join(c.ProjectRoot, c.ProcessedDir, npy)
}

// LogPath returns the debug log location.
func LogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".fius", "debug.log")
}
