package scheduler

import (
	"context"
	"testing"
	"time"
)

func newTestScheduler(t *testing.T, queues ...string) *Scheduler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, queues)
}

func TestScheduleImmediate(t *testing.T) {
	s := newTestScheduler(t, "parse")

	if err := s.Schedule(Task{Queue: "parse", Path: "a.pem"}); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	task, ok := s.NextReady("parse", time.Second)
	if !ok {
		t.Fatal("expected an immediate task")
	}
	if task.Path != "a.pem" {
		t.Errorf("Path = %q, want a.pem", task.Path)
	}
}

func TestScheduleImmediateNeverBlocks(t *testing.T) {
	s := newTestScheduler(t, "parse")

	// A large scan admits everything before any worker runs. Far more
	// tasks than the ready channel holds must still be accepted without
	// blocking the caller.
	total := defaultQueueDepth + 50
	scheduled := make(chan struct{})
	go func() {
		for i := 0; i < total; i++ {
			if err := s.Schedule(Task{Queue: "parse", Path: "a.pem"}); err != nil {
				t.Errorf("Schedule #%d: %v", i, err)
				return
			}
		}
		close(scheduled)
	}()

	select {
	case <-scheduled:
	case <-time.After(5 * time.Second):
		t.Fatal("Schedule blocked with no consumer on a full ready channel")
	}

	// Every overflowed task must still come out once a consumer drains.
	for i := 0; i < total; i++ {
		if _, ok := s.NextReady("parse", 2*time.Second); !ok {
			t.Fatalf("task %d of %d never dispatched", i+1, total)
		}
		s.TaskDone()
	}
	if !s.Idle() {
		t.Fatalf("Pending = %d after full drain, want 0", s.Pending())
	}
}

func TestScheduleUnknownQueue(t *testing.T) {
	s := newTestScheduler(t, "parse")

	if err := s.Schedule(Task{Queue: "nope"}); err == nil {
		t.Fatal("expected error for unknown queue")
	}
}

func TestNotReturnedBeforeTargetTime(t *testing.T) {
	s := newTestScheduler(t, "renew")

	target := time.Now().Add(300 * time.Millisecond)
	if err := s.Schedule(Task{Queue: "renew", Path: "a.pem", NotBefore: target}); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	if _, ok := s.NextReady("renew", 100*time.Millisecond); ok {
		t.Fatal("task returned before its target time")
	}
	task, ok := s.NextReady("renew", time.Second)
	if !ok {
		t.Fatal("task never became ready")
	}
	if now := time.Now(); now.Before(target) {
		t.Errorf("task dispatched at %v, before target %v", now, target)
	}
	if task.Path != "a.pem" {
		t.Errorf("Path = %q, want a.pem", task.Path)
	}
}

func TestEqualTimesDispatchFIFO(t *testing.T) {
	s := newTestScheduler(t, "renew")

	target := time.Now().Add(150 * time.Millisecond)
	paths := []string{"a.pem", "b.pem", "c.pem"}
	for _, p := range paths {
		if err := s.Schedule(Task{Queue: "renew", Path: p, NotBefore: target}); err != nil {
			t.Fatalf("Schedule(%s): %v", p, err)
		}
	}

	for _, want := range paths {
		task, ok := s.NextReady("renew", time.Second)
		if !ok {
			t.Fatalf("missing task %s", want)
		}
		if task.Path != want {
			t.Errorf("got %s, want %s", task.Path, want)
		}
	}
}

func TestHeapOrdering(t *testing.T) {
	s := newTestScheduler(t, "renew")

	now := time.Now()
	// Scheduled out of order; must come back in time order.
	if err := s.Schedule(Task{Queue: "renew", Path: "late.pem", NotBefore: now.Add(400 * time.Millisecond)}); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if err := s.Schedule(Task{Queue: "renew", Path: "early.pem", NotBefore: now.Add(100 * time.Millisecond)}); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	first, ok := s.NextReady("renew", time.Second)
	if !ok || first.Path != "early.pem" {
		t.Fatalf("first = %v %v, want early.pem", first.Path, ok)
	}
	second, ok := s.NextReady("renew", time.Second)
	if !ok || second.Path != "late.pem" {
		t.Fatalf("second = %v %v, want late.pem", second.Path, ok)
	}
}

func TestNextReadyTimeout(t *testing.T) {
	s := newTestScheduler(t, "parse")

	start := time.Now()
	if _, ok := s.NextReady("parse", 100*time.Millisecond); ok {
		t.Fatal("unexpected task")
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("NextReady returned after %v, before the timeout", elapsed)
	}
}

func TestPendingDrain(t *testing.T) {
	s := newTestScheduler(t, "parse")

	if !s.Idle() {
		t.Fatal("fresh scheduler should be idle")
	}
	_ = s.Schedule(Task{Queue: "parse", Path: "a.pem"})
	if s.Idle() {
		t.Fatal("scheduler with queued work reported idle")
	}

	if _, ok := s.NextReady("parse", time.Second); !ok {
		t.Fatal("task not dispatched")
	}
	// Still in flight until the worker marks it done.
	if s.Idle() {
		t.Fatal("in-flight task reported idle")
	}
	s.TaskDone()
	if !s.Idle() {
		t.Fatal("drained scheduler should be idle")
	}
}
