// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package installer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/hivekeeper/internal/logging"
	"github.com/tomtom215/hivekeeper/internal/metrics"
)

var (
	// ErrTaskInFlight is returned when a task for the same name has not finished.
	ErrTaskInFlight = errors.New("install task already in flight")

	// ErrQueueFull is returned when the worker's backlog is at capacity.
	ErrQueueFull = errors.New("install queue full")
)

// Job is a unit of background work. It receives a context that is not
// cancelled when the worker stops, only when the job timeout elapses.
type Job func(ctx context.Context) error

// Task is the handle returned by Submit.
type Task struct {
	ID          string
	Name        string
	SubmittedAt time.Time

	job  Job
	done chan struct{}
	err  error
}

// Done is closed once the task has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the job's result. It is nil until Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Worker executes jobs sequentially in submission order.
type Worker struct {
	queue   chan *Task
	timeout time.Duration

	mu       sync.Mutex
	inflight map[string]*Task
}

// NewWorker creates a worker with a backlog of queueSize tasks. A zero
// timeout lets jobs run until they return.
func NewWorker(queueSize int, timeout time.Duration) *Worker {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Worker{
		queue:    make(chan *Task, queueSize),
		timeout:  timeout,
		inflight: make(map[string]*Task),
	}
}

// Submit enqueues fn under name. Only one task per name may be queued or
// running at a time.
func (w *Worker) Submit(name string, fn Job) (*Task, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, busy := w.inflight[name]; busy {
		return nil, fmt.Errorf("%w: %s", ErrTaskInFlight, name)
	}
	t := &Task{
		ID:          uuid.NewString(),
		Name:        name,
		SubmittedAt: time.Now().UTC(),
		job:         fn,
		done:        make(chan struct{}),
	}
	select {
	case w.queue <- t:
	default:
		return nil, ErrQueueFull
	}
	w.inflight[name] = t
	metrics.InstallTasksInFlight.Inc()
	return t, nil
}

// InFlight returns the queued or running task for name.
func (w *Worker) InFlight(name string) (*Task, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.inflight[name]
	return t, ok
}

// Serve runs queued jobs until ctx is done. Tasks still queued stay queued
// and are picked up if Serve is started again. Implements suture.Service.
func (w *Worker) Serve(ctx context.Context) error {
	logging.Info().Msg("Install worker started")
	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Install worker stopped")
			return ctx.Err()
		case t := <-w.queue:
			w.run(ctx, t)
		}
	}
}

func (w *Worker) run(parent context.Context, t *Task) {
	ctx := context.WithoutCancel(parent)
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	start := time.Now()
	err := safeRun(ctx, t.job)

	logger := logging.Info()
	if err != nil {
		logger = logging.Warn().Err(err)
	}
	logger.Str("task_id", t.ID).Str("name", t.Name).Dur("duration", time.Since(start)).Msg("Install task finished")

	w.mu.Lock()
	delete(w.inflight, t.Name)
	w.mu.Unlock()
	metrics.InstallTasksInFlight.Dec()

	t.err = err
	close(t.done)
}

func safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("install task panicked: %v", r)
		}
	}()
	return job(ctx)
}

// String implements fmt.Stringer for suture logging.
func (w *Worker) String() string {
	return "install-worker"
}
