// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/lifecycle"
	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/mailbox"
	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/proc"
)

const taggedNotebook = `{
  "cells": [
    {
      "cell_type": "code",
      "metadata": {"tags": ["log_cm"]},
      "source": "print(cm)",
      "outputs": [
        {"output_type": "execute_result", "data": {"text/plain": "accuracy 0.93"}}
      ]
    }
  ]
}`

// fakePapermill writes a shell stub that mimics "python -m papermill
// input output": it streams a few lines, copies the input notebook to
// the output path, and fails for inputs containing "broken".
func fakePapermill(t *testing.T) string {
	t.Helper()
	script := `#!/bin/sh
in="$3"
out="$4"
echo "papermill start: $in"
case "$in" in
  *broken*)
    echo "kernel died"
    exit 3
    ;;
  *slow*)
    i=0
    while [ $i -lt 200 ]; do
      echo "tick $i"
      i=$((i+1))
      sleep 0.05
    done
    ;;
  *longline*)
    head -c 3145728 /dev/zero | tr '\0' 'a'
    echo
    echo "after the long line"
    ;;
esac
cp "$in" "$out" 2>/dev/null || echo '{"cells":[]}' > "$out"
echo "papermill done: $in"
`
	path := filepath.Join(t.TempDir(), "fakepython")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

// failingPapermill records an invocation marker and exits non-zero, for
// asserting that a cached artifact suppressed the subprocess entirely.
func failingPapermill(t *testing.T, marker string) string {
	t.Helper()
	script := fmt.Sprintf("#!/bin/sh\ntouch %q\nexit 77\n", marker)
	path := filepath.Join(t.TempDir(), "fakepython-fail")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func newTestRunner(t *testing.T, python string) (*Runner, *mailbox.Mailbox, *lifecycle.Flag) {
	t.Helper()
	flag := &lifecycle.Flag{}
	mb := mailbox.New()
	r := NewRunner(Options{
		Python:    python,
		ReportTag: "log_cm",
		PanelWait: 200 * time.Millisecond,
		Flag:      flag,
		Processes: proc.New(time.Second, 10*time.Millisecond),
		Mailbox:   mb,
	})
	return r, mb, flag
}

func drain(mb *mailbox.Mailbox) []mailbox.Message {
	var msgs []mailbox.Message
	for {
		msg, ok := mb.TryNext()
		if !ok {
			return msgs
		}
		msgs = append(msgs, msg)
	}
}

func logLines(msgs []mailbox.Message) []string {
	var lines []string
	for _, m := range msgs {
		if m.Kind == mailbox.KindLog {
			lines = append(lines, m.Line)
		}
	}
	return lines
}

func completions(msgs []mailbox.Message) []mailbox.Message {
	var out []mailbox.Message
	for _, m := range msgs {
		if m.Kind == mailbox.KindCompletion {
			out = append(out, m)
		}
	}
	return out
}

func closedChan() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}

func writeNotebook(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(taggedNotebook), 0644))
	return path
}

func TestRunAllItemsSucceed(t *testing.T) {
	dir := t.TempDir()
	a := writeNotebook(t, dir, "a.ipynb")
	b := writeNotebook(t, dir, "b.ipynb")

	r, mb, _ := newTestRunner(t, fakePapermill(t))
	run := mb.BeginRun("Task1")

	spec := Spec{Task: "Task1", Stages: []Stage{
		{Kind: StageProcess, Label: "ADC -> FFT conversion", Notebooks: []string{a, b}},
	}}
	status := r.Run(spec, run, closedChan())
	assert.Equal(t, mailbox.StatusCompleted, status)

	msgs := drain(mb)
	lines := strings.Join(logLines(msgs), "\n")
	assert.Contains(t, lines, "Finished notebook: a.ipynb")
	assert.Contains(t, lines, "Finished notebook: b.ipynb")
	assert.Contains(t, lines, "ADC -> FFT conversion finished")
	assert.NotContains(t, lines, "return code")

	done := completions(msgs)
	require.Len(t, done, 1, "exactly one completion message")
	assert.Equal(t, mailbox.StatusCompleted, done[0].Status)

	// Derived artifacts exist next to the inputs.
	assert.FileExists(t, filepath.Join(dir, "executed_a.ipynb"))
	assert.FileExists(t, filepath.Join(dir, "executed_b.ipynb"))
}

func TestRunDegradedOnItemFailure(t *testing.T) {
	dir := t.TempDir()
	broken := writeNotebook(t, dir, "broken.ipynb")
	good := writeNotebook(t, dir, "good.ipynb")

	r, mb, _ := newTestRunner(t, fakePapermill(t))
	run := mb.BeginRun("Task1")

	// Failing item first: the stage must still attempt the second item.
	spec := Spec{Task: "Task1", Stages: []Stage{
		{Kind: StageProcess, Notebooks: []string{broken, good}},
	}}
	status := r.Run(spec, run, closedChan())
	assert.Equal(t, mailbox.StatusDegraded, status)

	msgs := drain(mb)
	lines := strings.Join(logLines(msgs), "\n")
	assert.Contains(t, lines, "Error running broken.ipynb, return code: 3")
	assert.Contains(t, lines, "Finished notebook: good.ipynb")

	done := completions(msgs)
	require.Len(t, done, 1)
	assert.Equal(t, mailbox.StatusDegraded, done[0].Status)
	assert.Contains(t, done[0].Detail, "1 failed item")
}

func TestRunOverlongOutputLineFailsItem(t *testing.T) {
	dir := t.TempDir()
	longline := writeNotebook(t, dir, "longline.ipynb")

	r, mb, _ := newTestRunner(t, fakePapermill(t))
	run := mb.BeginRun("Task1")

	// The stub emits a single 3MB line, past the scanner's buffer cap.
	// The run must finish with the item marked failed, not stall on a
	// child blocked writing into an undrained pipe.
	spec := Spec{Task: "Task1", Stages: []Stage{
		{Kind: StageProcess, Notebooks: []string{longline}},
	}}

	done := make(chan mailbox.Status, 1)
	go func() { done <- r.Run(spec, run, closedChan()) }()

	var status mailbox.Status
	select {
	case status = <-done:
	case <-time.After(15 * time.Second):
		t.Fatal("pipeline did not finish after an over-long output line")
	}
	assert.Equal(t, mailbox.StatusDegraded, status)

	msgs := drain(mb)
	lines := strings.Join(logLines(msgs), "\n")
	assert.Contains(t, lines, "Error reading output of longline.ipynb")

	comps := completions(msgs)
	require.Len(t, comps, 1)
	assert.Equal(t, mailbox.StatusDegraded, comps[0].Status)
}

func TestReportPrefersCachedExecuted(t *testing.T) {
	dir := t.TempDir()
	train := writeNotebook(t, dir, "train.ipynb")
	writeNotebook(t, dir, "executed_train.ipynb")

	marker := filepath.Join(dir, "papermill-ran")
	r, mb, _ := newTestRunner(t, failingPapermill(t, marker))
	run := mb.BeginRun("Task1")

	spec := Spec{Task: "Task1", Stages: []Stage{
		{Kind: StageReport, Source: train},
	}}
	status := r.Run(spec, run, closedChan())
	assert.Equal(t, mailbox.StatusCompleted, status)

	msgs := drain(mb)
	lines := strings.Join(logLines(msgs), "\n")
	assert.Contains(t, lines, "Found existing executed notebook")
	assert.NoFileExists(t, marker, "papermill must not run when the executed artifact exists")

	var report *mailbox.Message
	for i := range msgs {
		if msgs[i].Kind == mailbox.KindArtifact && msgs[i].Region == mailbox.RegionReport {
			report = &msgs[i]
		}
	}
	require.NotNil(t, report)
	assert.Contains(t, string(report.Payload), "accuracy 0.93")
}

func TestReportExecutesWhenNoCache(t *testing.T) {
	dir := t.TempDir()
	train := writeNotebook(t, dir, "train.ipynb")

	r, mb, _ := newTestRunner(t, fakePapermill(t))
	run := mb.BeginRun("Task1")

	spec := Spec{Task: "Task1", Stages: []Stage{
		{Kind: StageReport, Source: train},
	}}
	status := r.Run(spec, run, closedChan())
	assert.Equal(t, mailbox.StatusCompleted, status)

	assert.FileExists(t, filepath.Join(dir, "executed_train.ipynb"))

	msgs := drain(mb)
	found := false
	for _, m := range msgs {
		if m.Kind == mailbox.KindArtifact && m.Region == mailbox.RegionReport {
			found = true
			assert.Contains(t, string(m.Payload), "accuracy 0.93")
		}
	}
	assert.True(t, found, "report artifact must be posted")
}

func TestCancelledBeforeStart(t *testing.T) {
	dir := t.TempDir()
	a := writeNotebook(t, dir, "a.ipynb")

	r, mb, flag := newTestRunner(t, fakePapermill(t))
	run := mb.BeginRun("Task1")
	flag.Set()

	spec := Spec{Task: "Task1", Stages: []Stage{
		{Kind: StageProcess, Notebooks: []string{a}},
	}}
	status := r.Run(spec, run, closedChan())
	assert.Equal(t, mailbox.StatusCancelled, status)

	msgs := drain(mb)
	require.Len(t, msgs, 1, "no stage may start after cancellation")
	assert.Equal(t, mailbox.KindCompletion, msgs[0].Kind)
	assert.Equal(t, mailbox.StatusCancelled, msgs[0].Status)

	assert.NoFileExists(t, filepath.Join(dir, "executed_a.ipynb"))
}

func TestCancelDuringStreaming(t *testing.T) {
	dir := t.TempDir()
	slow := writeNotebook(t, dir, "slow.ipynb")

	r, mb, flag := newTestRunner(t, fakePapermill(t))
	run := mb.BeginRun("Task1")

	spec := Spec{Task: "Task1", Stages: []Stage{
		{Kind: StageProcess, Notebooks: []string{slow}},
	}}

	statusCh := make(chan mailbox.Status, 1)
	go func() { statusCh <- r.Run(spec, run, closedChan()) }()

	// Wait until output is streaming, then request cancellation; the
	// worker observes the flag on the next line and terminates the child.
	deadline := time.After(10 * time.Second)
	for {
		msg, ok := mb.TryNext()
		if ok && msg.Kind == mailbox.KindLog && strings.HasPrefix(msg.Line, "tick") {
			break
		}
		select {
		case <-deadline:
			t.Fatal("never saw streaming output")
		case <-time.After(10 * time.Millisecond):
		}
	}
	flag.Set()

	select {
	case status := <-statusCh:
		assert.Equal(t, mailbox.StatusCancelled, status)
	case <-time.After(10 * time.Second):
		t.Fatal("runner did not stop after cancellation")
	}
}

func TestPanelReadyTimeoutSkipsReport(t *testing.T) {
	dir := t.TempDir()
	train := writeNotebook(t, dir, "train.ipynb")
	writeNotebook(t, dir, "executed_train.ipynb")

	r, mb, _ := newTestRunner(t, fakePapermill(t))
	run := mb.BeginRun("Task1")

	neverReady := make(chan struct{})
	defer close(neverReady)

	spec := Spec{Task: "Task1", Stages: []Stage{
		{Kind: StageReport, Source: train},
	}}
	r.Run(spec, run, neverReady)

	msgs := drain(mb)
	for _, m := range msgs {
		assert.NotEqual(t, mailbox.KindArtifact, m.Kind, "artifact must be skipped when the panel never turns ready")
	}
	lines := strings.Join(logLines(msgs), "\n")
	assert.Contains(t, lines, "Report panel not ready")
}
