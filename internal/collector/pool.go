// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package collector

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/hivekeeper/internal/metrics"
)

// Pool runs a fixed number of workers over a bounded queue of T.
// Submit never blocks: a full queue drops the item.
type Pool[T any] struct {
	workers   int
	queueSize int
	process   func(context.Context, T) error

	work chan T
	wg   sync.WaitGroup

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// PoolStats is a snapshot of pool counters.
type PoolStats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

// NewPool creates a pool. Non-positive sizes fall back to 4 workers and a
// queue of 1024.
func NewPool[T any](workers, queueSize int, process func(context.Context, T) error) *Pool[T] {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	if process == nil {
		panic("collector: nil pool processor")
	}
	return &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		process:   process,
		work:      make(chan T, queueSize),
	}
}

// Submit queues item for a worker.
func (p *Pool[T]) Submit(item T) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.work <- item:
		p.submitted.Add(1)
		metrics.CollectorQueueDepth.Set(float64(len(p.work)))
		return nil
	default:
		p.dropped.Add(1)
		return ErrQueueFull
	}
}

// Start launches the workers. They exit when ctx is canceled or Stop is called.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.started = true
	return nil
}

// Stop closes the queue and waits up to timeout for queued items to finish.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started || p.stopped {
		return nil
	}
	p.stopped = true
	close(p.work)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		metrics.CollectorQueueDepth.Set(0)
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Stats returns the current counters.
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.work),
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Failed:     p.failed.Load(),
		Dropped:    p.dropped.Load(),
	}
}

func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-p.work:
			if !ok {
				return
			}
			metrics.CollectorQueueDepth.Set(float64(len(p.work)))
			err := p.process(ctx, item)
			p.processed.Add(1)
			if err != nil {
				p.failed.Add(1)
			}
		}
	}
}
