// Package certparser implements the chain-parsing stage of the renewal
// pipeline. It turns an admitted certificate file into a validated
// chain on the record and decides how the record enters the renewal
// loop: through an immediate renewal, or by adopting a still-valid
// staple left on disk by a previous run.
package certparser

import (
	"context"
	"time"

	"github.com/spf13/afero"

	"github.com/greenhost/stapled/common"
	"github.com/greenhost/stapled/internal/scheduler"
	"github.com/greenhost/stapled/pkg/logger"
	"github.com/greenhost/stapled/pkg/staplelib"
)

// Config carries the parsing stage settings.
type Config struct {
	// MinimumValidity is how long a staple must remain valid for an
	// on-disk staple to be adopted instead of renewed.
	MinimumValidity time.Duration

	// NoRecycle disables adoption of on-disk staples; every parsed
	// certificate goes through a fresh renewal.
	NoRecycle bool

	// OneOff suppresses future-dated renewal tasks so a drain-once run
	// terminates.
	OneOff bool
}

// Parser is the chain-parsing stage.
type Parser struct {
	fs    afero.Fs
	log   logger.Logger
	mgr   *staplelib.Manager
	sched *scheduler.Scheduler
	cfg   Config
}

// New creates a Parser.
func New(fs afero.Fs, log logger.Logger, mgr *staplelib.Manager, sched *scheduler.Scheduler, cfg Config) *Parser {
	return &Parser{fs: fs, log: log, mgr: mgr, sched: sched, cfg: cfg}
}

// Handle processes one parse task.
func (p *Parser) Handle(ctx context.Context, task scheduler.Task) {
	rec, ok := p.mgr.Get(task.Path)
	if !ok {
		// Dropped since the task was scheduled.
		return
	}
	if task.Generation != rec.Generation() {
		// The finder re-admitted the file and scheduled a fresh parse.
		return
	}

	fp, err := staplelib.FileFingerprint(p.fs, task.Path)
	if err != nil || !fp.Equal(rec.Fingerprint()) {
		// The file moved on under us; the next finder pass deals with
		// it.
		return
	}

	data, err := afero.ReadFile(p.fs, task.Path)
	if err != nil {
		p.log.Warning("cannot read %s: %v", task.Path, err)
		rec.RecordFailure(staplelib.KindTerminal, err)
		return
	}

	chain, err := staplelib.ParseChain(data)
	if err != nil {
		// Usually a mid-write file; only a subsequent write is a
		// meaningful retry signal, so no task is scheduled.
		p.log.Warning("cannot parse %s: %v", task.Path, err)
		rec.RecordFailure(staplelib.KindTerminal, err)
		return
	}
	rec.SetChain(chain)

	if len(chain.OCSPURLs) == 0 {
		p.log.Warning("%s carries no OCSP responder URL, not renewable", task.Path)
		rec.RecordFailure(staplelib.KindTerminal, staplelib.ErrNoOCSPURLs)
		return
	}

	if !p.cfg.NoRecycle {
		if p.recycle(rec, chain) {
			return
		}
	}
	p.scheduleRenew(rec)
}

// recycle tries to adopt an existing staple file for the record. It
// returns true when a usable staple was adopted and follow-up tasks were
// scheduled.
func (p *Parser) recycle(rec *staplelib.Record, chain *staplelib.Chain) bool {
	staple, err := staplelib.LoadStaple(p.fs, rec.Path(), chain.Leaf, chain.Issuer())
	if err != nil {
		// No staple file, or one we cannot trust. Renew instead.
		return false
	}
	now := time.Now()
	if !staple.ValidFor(now, p.cfg.MinimumValidity) {
		return false
	}

	rec.SetStaple(staple)
	p.log.Info("recycled staple for %s, valid until %s", rec.Path(), staple.NextUpdate.Format(time.RFC3339))

	p.schedule(scheduler.Task{
		Queue:      common.QueueAdd,
		Path:       rec.Path(),
		Generation: rec.Generation(),
	})
	if p.cfg.OneOff {
		return true
	}
	renewAt := staple.NextUpdate.Add(-p.cfg.MinimumValidity)
	if renewAt.Before(now) {
		renewAt = now
	}
	rec.SetNextAction(renewAt)
	p.schedule(scheduler.Task{
		Queue:      common.QueueRenew,
		Path:       rec.Path(),
		NotBefore:  renewAt,
		Generation: rec.Generation(),
	})
	return true
}

func (p *Parser) scheduleRenew(rec *staplelib.Record) {
	p.schedule(scheduler.Task{
		Queue:      common.QueueRenew,
		Path:       rec.Path(),
		Generation: rec.Generation(),
	})
}

func (p *Parser) schedule(t scheduler.Task) {
	if err := p.sched.Schedule(t); err != nil {
		p.log.Error("scheduling %s task for %s: %v", t.Queue, t.Path, err)
	}
}
