package scheduler

import "time"

// Task is an opaque unit of scheduled work: which queue it belongs to,
// which certificate file it concerns, and the earliest time it may run.
// Tasks are immutable once scheduled; rescheduling means submitting a
// new Task.
type Task struct {
	// Queue names the stage that will execute the task.
	Queue string

	// Path identifies the certificate record the task operates on.
	Path string

	// NotBefore is the earliest dispatch time. The zero value means
	// "as soon as possible": the task bypasses the heap and goes
	// straight into its ready channel.
	NotBefore time.Time

	// Generation snapshots the record's re-admission generation at
	// scheduling time, letting stages detect stale tasks.
	Generation uint64

	// seq preserves submission order among tasks with equal NotBefore.
	seq uint64
}
