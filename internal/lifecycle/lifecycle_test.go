// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later

package lifecycle

import (
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/proc"
	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/worker"
)

func newCoordinator(joinBudget time.Duration) (*Coordinator, *Flag, *proc.Registry, *worker.Registry) {
	flag := &Flag{}
	procs := proc.New(300*time.Millisecond, 10*time.Millisecond)
	workers := worker.NewRegistry()
	return NewCoordinator(flag, procs, workers, joinBudget), flag, procs, workers
}

func TestFlagSetOnce(t *testing.T) {
	var f Flag
	assert.False(t, f.IsSet())
	f.Set()
	assert.True(t, f.IsSet())
	f.Set() // no-op
	assert.True(t, f.IsSet())
}

func TestInitiateSequence(t *testing.T) {
	c, flag, procs, workers := newCoordinator(time.Second)

	// A cooperative worker that exits once the flag flips.
	workers.Spawn(func() {
		for !flag.IsSet() {
			time.Sleep(5 * time.Millisecond)
		}
	})

	// A live child process to terminate.
	cmd := exec.Command("sleep", "60")
	require.NoError(t, cmd.Start())
	procs.Register(cmd)
	go cmd.Wait() // reap like a streaming worker would

	released := false
	c.OnShutdown(func() { released = true })

	c.Initiate()

	assert.True(t, flag.IsSet())
	assert.Equal(t, 0, procs.Len())
	assert.Equal(t, 0, workers.Len())
	assert.True(t, released)

	select {
	case <-c.Done():
	default:
		t.Fatal("Done channel should be closed after Initiate")
	}
}

func TestInitiateIdempotent(t *testing.T) {
	c, _, _, _ := newCoordinator(100 * time.Millisecond)

	var releases atomic.Int32
	c.OnShutdown(func() { releases.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Initiate()
		}()
	}
	wg.Wait()
	c.Initiate() // and once more after completion

	assert.Equal(t, int32(1), releases.Load(), "release hooks must run exactly once")
}

func TestInitiateBoundedByJoinBudget(t *testing.T) {
	c, _, _, workers := newCoordinator(150 * time.Millisecond)

	// A worker that ignores cancellation entirely.
	release := make(chan struct{})
	defer close(release)
	workers.Spawn(func() { <-release })

	start := time.Now()
	c.Initiate()
	elapsed := time.Since(start)

	// Shutdown proceeds despite the stuck worker.
	assert.Less(t, elapsed, 2*time.Second)
	select {
	case <-c.Done():
	default:
		t.Fatal("shutdown did not complete")
	}
}

func TestOnShutdownAfterInitiateIgnored(t *testing.T) {
	c, _, _, _ := newCoordinator(50 * time.Millisecond)
	c.Initiate()

	var called atomic.Bool
	c.OnShutdown(func() { called.Store(true) })
	c.Initiate()
	assert.False(t, called.Load())
}
