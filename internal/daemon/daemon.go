// Package daemon wires the pipeline together: the finder on its own
// timer goroutine, a shared worker pool draining the parse, renew and
// proxy-add queues, the control server, and the optional journal. It
// owns process lifecycle: graceful shutdown on context cancellation and
// drain-once termination in one-off mode.
package daemon

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/greenhost/stapled/common"
	"github.com/greenhost/stapled/internal/certfinder"
	"github.com/greenhost/stapled/internal/certparser"
	"github.com/greenhost/stapled/internal/journal"
	"github.com/greenhost/stapled/internal/scheduler"
	"github.com/greenhost/stapled/internal/server"
	"github.com/greenhost/stapled/internal/stapleadder"
	"github.com/greenhost/stapled/internal/staplerenewer"
	"github.com/greenhost/stapled/pkg/logger"
	"github.com/greenhost/stapled/pkg/staplelib"
)

// drainPoll is how often one-off mode checks whether all work drained.
const drainPoll = 100 * time.Millisecond

// stageFunc processes one task of one queue.
type stageFunc func(ctx context.Context, task scheduler.Task)

// Daemon is the assembled renewal pipeline.
type Daemon struct {
	log logger.Logger
	fs  afero.Fs
	cfg Config

	mgr      *staplelib.Manager
	sched    *scheduler.Scheduler
	finder   *certfinder.Finder
	adder    *stapleadder.Adder
	journal  *journal.Journal
	control  *server.Server
	handlers map[string]stageFunc
}

// New validates cfg and assembles a daemon on the OS filesystem.
func New(log logger.Logger, cfg Config) (*Daemon, error) {
	return newWithFs(log, afero.NewOsFs(), cfg)
}

func newWithFs(log logger.Logger, fs afero.Fs, cfg Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Daemon{log: log, fs: fs, cfg: cfg}, nil
}

// Run executes the pipeline until ctx is cancelled, or, in one-off
// mode, until all work drained.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.sched = scheduler.New(ctx, []string{common.QueueParse, common.QueueRenew, common.QueueAdd})
	d.mgr = staplelib.NewManager()

	if d.cfg.JournalPath != "" {
		j, err := journal.Open(d.cfg.JournalPath)
		if err != nil {
			return err
		}
		d.journal = j
		defer d.journal.Close()
	}

	d.finder = certfinder.New(d.fs, d.log, d.mgr, d.sched, certfinder.Config{
		Paths:           d.cfg.Paths,
		Recursive:       d.cfg.Recursive,
		Extensions:      d.cfg.Extensions,
		IgnorePatterns:  d.cfg.IgnorePatterns,
		Targets:         d.cfg.Targets,
		RefreshInterval: d.cfg.RefreshInterval,
		RefreshCron:     d.cfg.RefreshCron,
	})
	parser := certparser.New(d.fs, d.log, d.mgr, d.sched, certparser.Config{
		MinimumValidity: d.cfg.MinimumValidity,
		NoRecycle:       d.cfg.NoRecycle,
		OneOff:          d.cfg.OneOff,
	})
	var rec staplerenewer.Recorder
	if d.journal != nil {
		rec = d.journal
	}
	renewer := staplerenewer.New(d.fs, d.log, d.mgr, d.sched,
		staplelib.NewOCSPClient(0), rec, staplerenewer.Config{
			MinimumValidity: d.cfg.MinimumValidity,
			Intervals:       staplelib.DefaultRetryIntervals(),
			OneOff:          d.cfg.OneOff,
		})
	d.adder = stapleadder.New(d.log, d.mgr, d.cfg.SocketKeepalive, common.MinSocketKeepalive)
	defer d.adder.Close()

	d.handlers = map[string]stageFunc{
		common.QueueParse: parser.Handle,
		common.QueueRenew: renewer.Handle,
		common.QueueAdd:   d.adder.Handle,
	}

	g, gctx := errgroup.WithContext(ctx)

	if d.cfg.OneOff {
		// Single synchronous scan; the watcher stops the group once
		// every derived task ran to completion.
		d.finder.Scan()
		g.Go(func() error {
			d.watchDrain(gctx, cancel)
			return nil
		})
	} else {
		g.Go(func() error {
			return d.finder.Run(gctx)
		})
		var hist server.Historian
		if d.journal != nil {
			hist = d.journal
		}
		d.control = server.New(d.log, d.mgr, d.sched, hist, d.cfg.Version)
		g.Go(func() error {
			return d.control.Start(gctx)
		})
	}

	for i := 0; i < d.cfg.Workers; i++ {
		g.Go(func() error {
			d.worker(gctx)
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// worker drains the three stage queues until the context ends.
func (d *Daemon) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-d.sched.Ready(common.QueueParse):
			d.dispatch(ctx, t)
		case t := <-d.sched.Ready(common.QueueRenew):
			d.dispatch(ctx, t)
		case t := <-d.sched.Ready(common.QueueAdd):
			d.dispatch(ctx, t)
		}
	}
}

func (d *Daemon) dispatch(ctx context.Context, t scheduler.Task) {
	defer d.sched.TaskDone()
	h, ok := d.handlers[t.Queue]
	if !ok {
		d.log.Error("no handler for queue %q", t.Queue)
		return
	}
	h(ctx, t)
}

// watchDrain cancels the run once the scheduler has no queued or
// in-flight work left.
func (d *Daemon) watchDrain(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if d.sched.Idle() {
				d.log.Info("all work drained, shutting down")
				cancel()
				return
			}
		}
	}
}
