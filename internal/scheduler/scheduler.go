package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// maxSleepCap bounds how long the dispatcher sleeps in one stretch.
	maxSleepCap = 60 * time.Second

	// retryDispatch is how long the dispatcher backs off when a ready
	// channel is full.
	retryDispatch = 50 * time.Millisecond

	// defaultQueueDepth is the ready-channel buffer per queue.
	defaultQueueDepth = 1024
)

// Scheduler manages time-ordered tasks for a fixed set of named queues.
// A background goroutine sleeps until the next task's target time and
// then moves it into the queue's ready channel.
type Scheduler struct {
	ctx     context.Context
	queues  map[string]chan Task
	addChan chan Task
	seq     atomic.Uint64

	// pending counts tasks in the heap, in ready channels, and handed
	// to workers but not yet marked done. Drain detection for one-off
	// mode reads it.
	pending atomic.Int64

	mu   sync.Mutex
	heap taskHeap
}

// New creates and starts a Scheduler with a ready channel per queue
// name. The dispatcher goroutine exits when ctx is cancelled.
func New(ctx context.Context, queueNames []string) *Scheduler {
	s := &Scheduler{
		ctx:     ctx,
		queues:  make(map[string]chan Task, len(queueNames)),
		addChan: make(chan Task, 64),
	}
	for _, name := range queueNames {
		s.queues[name] = make(chan Task, defaultQueueDepth)
	}
	heap.Init(&s.heap)
	go s.run()
	return s
}

// Schedule inserts a task. Tasks with a zero NotBefore go straight into
// their ready channel, overflowing into the heap when the channel is
// full; everything else waits in the heap until due. Schedule never
// blocks on queue congestion. Scheduling into an unknown queue is an
// error.
func (s *Scheduler) Schedule(t Task) error {
	ch, ok := s.queues[t.Queue]
	if !ok {
		return fmt.Errorf("no such queue %q", t.Queue)
	}
	t.seq = s.seq.Add(1)
	s.pending.Add(1)

	if t.NotBefore.IsZero() {
		select {
		case ch <- t:
			return nil
		default:
			// Ready channel full. Park the task in the heap instead of
			// blocking the caller; the dispatcher moves it over as soon
			// as a worker drains the channel. A zero NotBefore sorts
			// before every timed task, so FIFO order holds.
		}
	}

	select {
	case s.addChan <- t:
	case <-s.ctx.Done():
		s.pending.Add(-1)
	}
	return nil
}

// Ready returns the ready channel for a queue, for use in worker select
// loops. Returns nil for unknown queues (a nil channel never fires).
func (s *Scheduler) Ready(queue string) <-chan Task {
	return s.queues[queue]
}

// NextReady blocks until a task from the queue is due or the timeout
// elapses. The second return is false on timeout or shutdown.
func (s *Scheduler) NextReady(queue string, timeout time.Duration) (Task, bool) {
	ch, ok := s.queues[queue]
	if !ok {
		return Task{}, false
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case t := <-ch:
		return t, true
	case <-timer.C:
		return Task{}, false
	case <-s.ctx.Done():
		return Task{}, false
	}
}

// TaskDone marks one previously dispatched task as fully processed,
// including any follow-up scheduling the stage performed. Workers call
// it exactly once per task they received.
func (s *Scheduler) TaskDone() {
	s.pending.Add(-1)
}

// Pending returns the number of tasks scheduled but not yet done.
func (s *Scheduler) Pending() int64 {
	return s.pending.Load()
}

// Idle reports whether no work is queued, scheduled or in flight.
func (s *Scheduler) Idle() bool {
	return s.pending.Load() == 0
}

// run is the dispatcher goroutine. It maintains the min-heap and sleeps
// with a capped timer until the earliest task is due, then moves every
// due task into its ready channel.
func (s *Scheduler) run() {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	resetTimer := func() <-chan time.Time {
		if timer != nil {
			timer.Stop()
		}
		s.mu.Lock()
		empty := s.heap.Len() == 0
		var next time.Time
		if !empty {
			next = s.heap[0].NotBefore
		}
		s.mu.Unlock()
		if empty {
			// Nothing scheduled; block on the add channel only.
			return nil
		}
		dur := time.Until(next)
		if dur > maxSleepCap {
			dur = maxSleepCap
		}
		if dur < 0 {
			dur = 0
		}
		timer = time.NewTimer(dur)
		return timer.C
	}

	timerCh := resetTimer()

	for {
		select {
		case <-s.ctx.Done():
			return

		case t := <-s.addChan:
			s.mu.Lock()
			heapPush(&s.heap, t)
			s.mu.Unlock()
			timerCh = resetTimer()

		case <-timerCh:
			s.dispatchDue()
			timerCh = resetTimer()
		}
	}
}

// dispatchDue moves all tasks whose time has arrived into their ready
// channels. A full channel leaves the task in the heap; the dispatcher
// retries shortly instead of blocking, so one congested queue cannot
// stall the others.
func (s *Scheduler) dispatchDue() {
	now := time.Now()
	for {
		s.mu.Lock()
		if s.heap.Len() == 0 || s.heap[0].NotBefore.After(now) {
			s.mu.Unlock()
			return
		}
		t := heapPop(&s.heap)
		s.mu.Unlock()

		select {
		case s.queues[t.Queue] <- t:
		default:
			// Channel full: put it back and let the capped timer retry.
			s.mu.Lock()
			heapPush(&s.heap, t)
			s.mu.Unlock()
			time.Sleep(retryDispatch)
			return
		}
	}
}
