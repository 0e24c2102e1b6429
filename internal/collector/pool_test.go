// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package collector

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolLifecycle(t *testing.T) {
	var sum atomic.Int64
	pool := NewPool(2, 8, func(_ context.Context, n int) error {
		sum.Add(int64(n))
		if n < 0 {
			return errors.New("negative")
		}
		return nil
	})

	if err := pool.Submit(1); !errors.Is(err, ErrPoolNotStarted) {
		t.Fatalf("Submit before Start = %v, want ErrPoolNotStarted", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := pool.Start(ctx); !errors.Is(err, ErrPoolAlreadyStarted) {
		t.Errorf("second Start = %v", err)
	}

	for _, n := range []int{1, 2, 3, -1} {
		if err := pool.Submit(n); err != nil {
			t.Fatalf("Submit(%d): %v", n, err)
		}
	}
	if err := pool.Stop(time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if sum.Load() != 5 {
		t.Errorf("sum = %d, want 5", sum.Load())
	}
	stats := pool.Stats()
	if stats.Submitted != 4 || stats.Processed != 4 || stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if err := pool.Submit(1); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("Submit after Stop = %v, want ErrPoolStopped", err)
	}
	if err := pool.Stop(time.Second); err != nil {
		t.Errorf("second Stop = %v", err)
	}
}

func TestPoolQueueFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	pool := NewPool(1, 1, func(_ context.Context, _ int) error {
		started <- struct{}{}
		<-release
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := pool.Start(ctx); err != nil {
		t.Fatal(err)
	}

	// The worker holds the first item, the queue holds the second.
	if err := pool.Submit(1); err != nil {
		t.Fatal(err)
	}
	<-started
	if err := pool.Submit(2); err != nil {
		t.Fatal(err)
	}
	if err := pool.Submit(3); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Submit on full queue = %v, want ErrQueueFull", err)
	}
	if got := pool.Stats().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}

	close(release)
	if err := pool.Stop(time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestPoolStopTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	pool := NewPool(1, 1, func(_ context.Context, _ int) error {
		<-block
		return nil
	})
	if err := pool.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := pool.Submit(1); err != nil {
		t.Fatal(err)
	}
	if err := pool.Stop(20 * time.Millisecond); !errors.Is(err, ErrStopTimeout) {
		t.Errorf("Stop = %v, want ErrStopTimeout", err)
	}
}
