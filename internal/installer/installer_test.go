// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package installer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/hivekeeper/internal/plugin"
)

func startWorker(t *testing.T, w *Worker) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func waitTask(t *testing.T, task *Task) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := task.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("task %s did not finish", task.Name)
	}
	return err
}

func TestWorker_RunsJobsInOrder(t *testing.T) {
	t.Parallel()
	w := NewWorker(8, 0)
	startWorker(t, w)

	var mu sync.Mutex
	var order []string
	var tasks []*Task
	for _, name := range []string{"a", "b", "c"} {
		name := name
		task, err := w.Submit(name, func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
		if err != nil {
			t.Fatalf("Submit(%s) error = %v", name, err)
		}
		tasks = append(tasks, task)
	}
	for _, task := range tasks {
		if err := waitTask(t, task); err != nil {
			t.Errorf("task %s error = %v", task.Name, err)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != "a" || order[2] != "c" {
		t.Errorf("order = %v", order)
	}
}

func TestWorker_OneTaskPerName(t *testing.T) {
	t.Parallel()
	w := NewWorker(8, 0)

	release := make(chan struct{})
	first, err := w.Submit("Pager", func(context.Context) error {
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := w.Submit("Pager", func(context.Context) error { return nil }); !errors.Is(err, ErrTaskInFlight) {
		t.Fatalf("second Submit() error = %v, want ErrTaskInFlight", err)
	}
	if got, ok := w.InFlight("Pager"); !ok || got != first {
		t.Error("InFlight() did not return the queued task")
	}

	startWorker(t, w)
	close(release)
	if err := waitTask(t, first); err != nil {
		t.Fatalf("first task error = %v", err)
	}
	again, err := w.Submit("Pager", func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("Submit() after completion error = %v", err)
	}
	_ = waitTask(t, again)
}

func TestWorker_ErrorsAndPanics(t *testing.T) {
	t.Parallel()
	w := NewWorker(4, 0)
	startWorker(t, w)

	boom := errors.New("apt exploded")
	failing, _ := w.Submit("fail", func(context.Context) error { return boom })
	panicking, _ := w.Submit("panic", func(context.Context) error { panic("bad hook") })

	if err := waitTask(t, failing); !errors.Is(err, boom) {
		t.Errorf("failing task error = %v, want %v", err, boom)
	}
	if err := waitTask(t, panicking); err == nil {
		t.Error("panicking task returned nil error")
	}
	if err := failing.Err(); !errors.Is(err, boom) {
		t.Errorf("Err() = %v", err)
	}
}

func TestWorker_QueueFull(t *testing.T) {
	t.Parallel()
	w := NewWorker(1, 0)
	if _, err := w.Submit("a", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := w.Submit("b", func(context.Context) error { return nil }); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Submit() error = %v, want ErrQueueFull", err)
	}
	if _, ok := w.InFlight("b"); ok {
		t.Error("rejected task registered as in flight")
	}
}

func TestWorker_JobSurvivesStop(t *testing.T) {
	t.Parallel()
	w := NewWorker(1, 0)
	cancel := startWorker(t, w)

	started := make(chan struct{})
	release := make(chan struct{})
	task, err := w.Submit("slow", func(ctx context.Context) error {
		close(started)
		<-release
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-started
	cancel()
	close(release)
	if err := waitTask(t, task); err != nil {
		t.Errorf("job context was cancelled with the worker: %v", err)
	}
}

func TestTask_ErrBeforeDone(t *testing.T) {
	t.Parallel()
	w := NewWorker(1, 0)
	task, _ := w.Submit("x", func(context.Context) error { return errors.New("later") })
	if task.Err() != nil {
		t.Error("Err() non-nil before completion")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := task.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

type recordingInstaller struct {
	calls []string
	fail  string
}

func (r *recordingInstaller) Install(_ context.Context, manager string, packages []string) error {
	r.calls = append(r.calls, manager)
	if manager == r.fail {
		return errors.New("install failed")
	}
	return nil
}

func TestInstallAll_StopsAtFirstFailure(t *testing.T) {
	t.Parallel()
	inst := &recordingInstaller{fail: "apt"}
	deps := []plugin.Dependency{
		{Manager: "pip", Packages: []string{"requests"}},
		{Manager: "apt", Packages: []string{"libssl-dev"}},
		{Manager: "pip", Packages: []string{"six"}},
	}
	if err := InstallAll(context.Background(), inst, deps); err == nil {
		t.Fatal("InstallAll() succeeded despite failure")
	}
	if len(inst.calls) != 2 {
		t.Errorf("calls = %v, want stop after apt", inst.calls)
	}
}

func TestExecInstaller(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ok := NewExecInstaller([]string{"true"}, []string{"false"}, time.Minute)
	if err := ok.Install(ctx, "apt", []string{"telnetd"}); err != nil {
		t.Errorf("Install(apt) error = %v", err)
	}
	if err := ok.Install(ctx, "pip", []string{"requests"}); err == nil {
		t.Error("Install(pip) with failing command succeeded")
	}
	if err := ok.Install(ctx, "brew", []string{"x"}); err == nil {
		t.Error("Install(brew) succeeded without a command")
	}
	if err := ok.Install(ctx, "apt", []string{"--allow-unauthenticated"}); err == nil {
		t.Error("Install() accepted a flag as a package name")
	}
	if err := ok.Install(ctx, "apt", nil); err != nil {
		t.Errorf("Install() with no packages error = %v", err)
	}
}
