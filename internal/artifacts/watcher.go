// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later

package artifacts

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// Watcher reports new or rewritten .npy arrays in the processed-data
// directory so the plot gallery can offer a refresh. Event bursts (NumPy
// writes arrive as many partial writes) are coalesced through a rate
// limiter.
type Watcher struct {
	fsw      *fsnotify.Watcher
	limiter  *rate.Limiter
	onChange func(path string)

	done      chan struct{}
	closeOnce sync.Once
}

// NewWatcher watches dir (non-recursive; the processed directory is
// flat) and invokes onChange with the changed path, at most twice per
// second. onChange is called from the watcher goroutine; callers
// marshal into their own loop.
func NewWatcher(dir string, onChange func(path string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		limiter:  rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		onChange: onChange,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("artifact watcher panicked", "panic", r)
		}
	}()

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(ev.Name, ".npy") {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !w.limiter.Allow() {
				continue // coalesce the burst
			}
			w.onChange(ev.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("artifact watcher error", "err", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
	})
	return err
}
