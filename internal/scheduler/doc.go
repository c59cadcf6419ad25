// Package scheduler provides the time-ordered task queue shared by all
// pipeline stages. It implements a single-goroutine dispatcher over a
// min-heap of Tasks sorted by target time (submission order breaks
// ties), with a 60-second max-sleep-cap to handle NTP steps, DST
// transitions, and system sleep.
//
// Due tasks move into per-queue ready channels that worker goroutines
// consume. The scheduler knows when a task should run, never what it
// does; that isolation is why all four stages can share it. There is no
// cancellation: a task that went stale runs anyway and the receiving
// stage re-validates the record before acting.
package scheduler
