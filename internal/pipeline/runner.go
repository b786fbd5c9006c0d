// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/lifecycle"
	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/mailbox"
	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/notebook"
	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/plot"
	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/proc"
	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/util"
)

// errCancelled marks a clean early exit at a cancellation point. It is
// not an error condition; it only short-circuits the remaining stages.
var errCancelled = errors.New("cancellation requested")

// sparklineWidth is the column budget for plot previews in the gallery.
const sparklineWidth = 48

// Options carries the explicit dependencies of a Runner. Everything is
// injected; the runner holds no ambient global state.
type Options struct {
	// Python is the interpreter used for papermill invocations.
	Python string

	// ReportTag marks notebook cells included in the report.
	ReportTag string

	// PanelWait bounds the wait for the UI to finish rebuilding a results
	// panel before an artifact is skipped.
	PanelWait time.Duration

	Flag      *lifecycle.Flag
	Processes *proc.Registry
	Mailbox   *mailbox.Mailbox
}

// Runner executes task pipelines. A Runner is stateless across runs and
// safe to share between concurrent workers.
type Runner struct {
	opts Options
}

// NewRunner creates a runner over the shared flag, registry, and mailbox.
func NewRunner(opts Options) *Runner {
	if opts.PanelWait <= 0 {
		opts.PanelWait = 2 * time.Second
	}
	return &Runner{opts: opts}
}

// =============================================================================
// PIPELINE EXECUTION
// =============================================================================

// Run executes the pipeline on the calling goroutine and posts exactly
// one completion message before returning. Intended to run inside a
// worker spawned from the worker registry.
//
// panelReady, when non-nil, is closed by the UI once the results panels
// for this run exist; the report stage waits for it (bounded) before
// installing its artifact.
func (r *Runner) Run(spec Spec, run mailbox.RunID, panelReady <-chan struct{}) mailbox.Status {
	if r.opts.Flag.IsSet() {
		return r.finish(spec, run, mailbox.StatusCancelled, 0)
	}

	failures := 0
	for _, st := range spec.Stages {
		if r.opts.Flag.IsSet() {
			return r.finish(spec, run, mailbox.StatusCancelled, failures)
		}

		var (
			n   int
			err error
		)
		switch st.Kind {
		case StageProcess:
			n, err = r.runProcessStage(spec.Task, run, st)
		case StageRender:
			n, err = r.runRenderStage(spec.Task, run, st)
		case StageReport:
			n, err = r.runReportStage(spec.Task, run, st, panelReady)
		}
		failures += n
		if errors.Is(err, errCancelled) {
			return r.finish(spec, run, mailbox.StatusCancelled, failures)
		}
	}

	status := mailbox.StatusCompleted
	if failures > 0 {
		status = mailbox.StatusDegraded
	}
	return r.finish(spec, run, status, failures)
}

// finish posts the single terminal message and returns the status.
func (r *Runner) finish(spec Spec, run mailbox.RunID, status mailbox.Status, failures int) mailbox.Status {
	detail := ""
	if status == mailbox.StatusDegraded {
		detail = fmt.Sprintf("(%d failed items)", failures)
	}
	// Completion is posted even when cancellation is already in flight;
	// only a closed mailbox drops it.
	r.opts.Mailbox.PostCompletion(run, spec.Task, status, detail)
	slog.Info("task finished", "task", spec.Task, "status", status.String(), "failures", failures)
	return status
}

// log posts one line to the task log, unless cancellation is in flight.
func (r *Runner) log(run mailbox.RunID, task, line string) {
	if r.opts.Flag.IsSet() {
		return
	}
	r.opts.Mailbox.PostLog(run, task, line)
}

// =============================================================================
// PROCESS STAGE
// =============================================================================

// runProcessStage executes each declared notebook in order. One item
// failing does not abort the stage; remaining items still run and the
// failure count aggregates into a degraded status.
func (r *Runner) runProcessStage(task string, run mailbox.RunID, st Stage) (int, error) {
	failures := 0
	for _, input := range st.Notebooks {
		if r.opts.Flag.IsSet() {
			return failures, errCancelled
		}
		if err := r.execNotebook(task, run, input); err != nil {
			if errors.Is(err, errCancelled) {
				return failures, err
			}
			failures++
		}
	}
	if st.Label != "" {
		r.log(run, task, st.Label+" finished")
	}
	return failures, nil
}

// execNotebook runs one papermill subprocess, streaming its combined
// output line-by-line into the task log. The command is registered
// before the first read and unregistered only after it has been reaped.
func (r *Runner) execNotebook(task string, run mailbox.RunID, input string) error {
	output := notebook.DerivedPath(input)
	base := filepath.Base(input)
	r.log(run, task, fmt.Sprintf("Running notebook: %s ...", base))

	cmd := exec.Command(r.opts.Python, "-m", "papermill", input, output)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.log(run, task, fmt.Sprintf("Failed to start papermill for %s: %v", base, err))
		return err
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		r.log(run, task, fmt.Sprintf("Failed to start papermill for %s: %v", base, err))
		return err
	}
	r.opts.Processes.Register(cmd)

	cancelled := false
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if r.opts.Flag.IsSet() {
			// Stop the in-flight child; shutdown will escalate to a kill
			// if it lingers.
			_ = cmd.Process.Signal(syscall.SIGTERM)
			cancelled = true
			break
		}
		r.log(run, task, scanner.Text())
	}

	readErr := scanner.Err()
	if readErr != nil && !cancelled {
		// The pipe is no longer being drained (e.g. a single output line
		// overflowed the scanner buffer). Kill the child so Wait cannot
		// block forever on a writer stuck against a full pipe.
		_ = cmd.Process.Kill()
		r.log(run, task, fmt.Sprintf("Error reading output of %s: %v", base, readErr))
	}

	waitErr := cmd.Wait()
	r.opts.Processes.Unregister(cmd)

	if cancelled || r.opts.Flag.IsSet() {
		return errCancelled
	}
	if readErr != nil {
		return fmt.Errorf("papermill output for %s: %w", base, readErr)
	}
	if waitErr != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		}
		r.log(run, task, fmt.Sprintf("Error running %s, return code: %d", base, code))
		return fmt.Errorf("papermill failed for %s: %w", base, waitErr)
	}

	r.log(run, task, fmt.Sprintf("Finished notebook: %s", base))
	return nil
}

// =============================================================================
// RENDER STAGE
// =============================================================================

// runRenderStage renders each FFT array to a PNG artifact on the calling
// goroutine and posts one install message per array. Malformed arrays are
// per-item failures; remaining items are still attempted.
func (r *Runner) runRenderStage(task string, run mailbox.RunID, st Stage) (int, error) {
	failures := 0
	for _, path := range st.Arrays {
		if r.opts.Flag.IsSet() {
			return failures, errCancelled
		}
		if !util.FileExists(path) {
			r.log(run, task, fmt.Sprintf("FFT array not found: %s", path))
			failures++
			continue
		}

		series, err := plot.LoadSeries(path)
		if err != nil {
			r.log(run, task, fmt.Sprintf("Error plotting %s: %v", path, err))
			failures++
			continue
		}
		png, err := series.RenderPNG()
		if err != nil {
			r.log(run, task, fmt.Sprintf("Error plotting %s: %v", path, err))
			failures++
			continue
		}

		r.opts.Mailbox.PostArtifact(run, task, mailbox.RegionPlots,
			series.Name, png, series.Sparkline(sparklineWidth))
	}
	return failures, nil
}

// =============================================================================
// REPORT STAGE
// =============================================================================

// runReportStage assembles the tagged-output report from the executed
// training notebook. An already-present executed artifact is used as-is
// (cache by presence, no staleness check); otherwise papermill produces
// it first.
func (r *Runner) runReportStage(task string, run mailbox.RunID, st Stage, panelReady <-chan struct{}) (int, error) {
	executed := notebook.DerivedPath(st.Source)

	if util.FileExists(executed) {
		r.log(run, task, fmt.Sprintf("Found existing executed notebook: %s", executed))
	} else {
		if err := r.execNotebook(task, run, st.Source); err != nil {
			if errors.Is(err, errCancelled) {
				return 0, err
			}
			// Fall through: a partial papermill run may still have
			// written the executed file.
		}
	}

	if r.opts.Flag.IsSet() {
		return 0, errCancelled
	}

	if !util.FileExists(executed) {
		missing := fmt.Sprintf("Executed notebook not found: %s", executed)
		r.log(run, task, missing)
		r.installReport(task, run, executed, missing, panelReady)
		return 1, nil
	}

	text, err := notebook.ExtractTaggedFile(executed, r.opts.ReportTag)
	if err != nil {
		r.log(run, task, fmt.Sprintf("Error while producing notebook output: %v", err))
		return 1, nil
	}
	if text == "" {
		text = fmt.Sprintf("No cells tagged %q in %s\n", r.opts.ReportTag, filepath.Base(executed))
	}

	r.installReport(task, run, executed, text, panelReady)
	return 0, nil
}

// installReport waits (bounded) for the UI panel, then posts the report
// text as a single artifact. A panel that never turns ready is logged and
// skipped rather than blocking the pipeline.
func (r *Runner) installReport(task string, run mailbox.RunID, executed, text string, panelReady <-chan struct{}) {
	if panelReady != nil {
		select {
		case <-panelReady:
		case <-time.After(r.opts.PanelWait):
			r.log(run, task, fmt.Sprintf("Report panel not ready after %s, skipping display", r.opts.PanelWait))
			return
		}
	}
	r.opts.Mailbox.PostArtifact(run, task, mailbox.RegionReport,
		filepath.Base(executed), []byte(text), "")
}
