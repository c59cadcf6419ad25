// Package staplerenewer implements the renewal stage of the pipeline:
// it fetches a fresh OCSP response for a record, validates it against
// the chain, persists it atomically next to the certificate, schedules
// the next renewal and hands the staple to the proxy-add queue. Failed
// attempts are classified and rescheduled per the tiered retry policy.
package staplerenewer

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/crypto/ocsp"

	"github.com/greenhost/stapled/common"
	"github.com/greenhost/stapled/internal/journal"
	"github.com/greenhost/stapled/internal/scheduler"
	"github.com/greenhost/stapled/pkg/logger"
	"github.com/greenhost/stapled/pkg/staplelib"
)

// Recorder receives one journal entry per renewal attempt. A nil
// Recorder disables journaling.
type Recorder interface {
	Record(e journal.Entry) error
}

// Config carries the renewal stage settings.
type Config struct {
	// MinimumValidity is subtracted from a staple's nextUpdate to find
	// the next renewal time.
	MinimumValidity time.Duration

	// Intervals is the retry tier table.
	Intervals staplelib.RetryIntervals

	// OneOff suppresses follow-up and retry scheduling so a drain-once
	// run terminates.
	OneOff bool
}

// Renewer is the renewal stage.
type Renewer struct {
	fs      afero.Fs
	log     logger.Logger
	mgr     *staplelib.Manager
	sched   *scheduler.Scheduler
	client  *staplelib.OCSPClient
	journal Recorder
	cfg     Config
}

// New creates a Renewer. journal may be nil.
func New(fs afero.Fs, log logger.Logger, mgr *staplelib.Manager, sched *scheduler.Scheduler, client *staplelib.OCSPClient, journal Recorder, cfg Config) *Renewer {
	return &Renewer{
		fs:      fs,
		log:     log,
		mgr:     mgr,
		sched:   sched,
		client:  client,
		journal: journal,
		cfg:     cfg,
	}
}

// Handle processes one renew task.
func (r *Renewer) Handle(ctx context.Context, task scheduler.Task) {
	rec, ok := r.mgr.Get(task.Path)
	if !ok {
		return
	}
	if task.Generation != rec.Generation() || rec.Terminal() {
		return
	}
	fp, err := staplelib.FileFingerprint(r.fs, task.Path)
	if err != nil || !fp.Equal(rec.Fingerprint()) {
		// The file moved on; the finder re-admits it with a fresh
		// parse, which supersedes this task.
		return
	}
	chain := rec.Chain()
	if chain == nil {
		return
	}

	now := time.Now()
	if chain.Expired(now) {
		r.fail(rec, &staplelib.RenewalError{
			Kind: staplelib.KindTerminal,
			Err:  fmt.Errorf("certificate expired %s", chain.Leaf.NotAfter.Format(time.RFC3339)),
		}, true)
		return
	}

	staple, rerr := r.fetch(ctx, chain)
	if rerr != nil {
		// A revoked certificate invalidates whatever staple is on
		// disk; other terminal failures leave the last one alone.
		zero := rerr.Kind == staplelib.KindTerminal && staple != nil && staple.Status == ocsp.Revoked
		r.fail(rec, rerr, zero)
		return
	}

	if err := staplelib.WriteStaple(r.fs, rec.Path(), staple.Raw); err != nil {
		r.fail(rec, &staplelib.RenewalError{Kind: staplelib.KindPersist, Err: err}, false)
		return
	}

	rec.SetStaple(staple)
	r.log.Info("renewed staple for %s, valid until %s", rec.Path(), staple.NextUpdate.Format(time.RFC3339))
	r.recordEntry(journal.Entry{
		Path:       rec.Path(),
		Outcome:    journal.OutcomeSuccess,
		ThisUpdate: staple.ThisUpdate,
		NextUpdate: staple.NextUpdate,
	})

	r.schedule(scheduler.Task{
		Queue:      common.QueueAdd,
		Path:       rec.Path(),
		Generation: rec.Generation(),
	})

	if r.cfg.OneOff {
		return
	}
	renewAt := staple.NextUpdate.Add(-r.cfg.MinimumValidity)
	if renewAt.Before(now) {
		renewAt = now
	}
	rec.SetNextAction(renewAt)
	r.schedule(scheduler.Task{
		Queue:      common.QueueRenew,
		Path:       rec.Path(),
		NotBefore:  renewAt,
		Generation: rec.Generation(),
	})
}

// fetch tries every responder URL in AIA order within this one attempt.
// The first validated response wins; a revoked or otherwise terminal
// result stops the iteration since no other responder will disagree.
// On exhaustion the last error is returned for classification. The
// staple accompanying a non-nil error, when present, carries the parsed
// but unacceptable response.
func (r *Renewer) fetch(ctx context.Context, chain *staplelib.Chain) (*staplelib.Staple, *staplelib.RenewalError) {
	var lastErr *staplelib.RenewalError
	for _, url := range chain.OCSPURLs {
		staple, rerr := r.client.Fetch(ctx, url, chain)
		if rerr != nil {
			r.log.Debug("responder %s: %v", url, rerr)
			lastErr = rerr
			if rerr.Kind.Terminal() {
				return nil, rerr
			}
			continue
		}
		switch staple.Status {
		case ocsp.Good:
			return staple, nil
		case ocsp.Revoked:
			return staple, &staplelib.RenewalError{
				Kind: staplelib.KindTerminal,
				Err:  fmt.Errorf("certificate revoked per %s", url),
			}
		default:
			// "Unknown" means the responder does not know the
			// certificate; worth retrying, possibly elsewhere.
			lastErr = &staplelib.RenewalError{
				Kind: staplelib.KindBadResponse,
				Err:  fmt.Errorf("responder %s returned status %s", url, staplelib.StatusString(staple.Status)),
			}
		}
	}
	if lastErr == nil {
		lastErr = &staplelib.RenewalError{
			Kind: staplelib.KindTerminal,
			Err:  staplelib.ErrNoOCSPURLs,
		}
	}
	return nil, lastErr
}

// fail records a classified failure, journals it and schedules the next
// attempt per the retry tier table. zero additionally truncates the
// staple file so the proxy cannot keep serving a staple for an invalid
// certificate.
func (r *Renewer) fail(rec *staplelib.Record, rerr *staplelib.RenewalError, zero bool) {
	failures := rec.RecordFailure(rerr.Kind, rerr.Err)
	r.recordEntry(journal.Entry{
		Path:      rec.Path(),
		Outcome:   journal.OutcomeFailure,
		ErrorKind: rerr.Kind.String(),
		Message:   rerr.Err.Error(),
	})

	if zero {
		if err := staplelib.ZeroStaple(r.fs, rec.Path()); err != nil {
			r.log.Error("zeroing staple for %s: %v", rec.Path(), err)
		}
	}

	delay, retry := r.cfg.Intervals.NextDelay(rerr.Kind, failures)
	if !retry {
		r.log.Warning("giving up on %s until the file changes: %v", rec.Path(), rerr)
		return
	}
	switch {
	case r.cfg.Intervals.Escalated(rerr.Kind, failures):
		r.log.Error("staple for %s cannot be persisted after %d attempts: %v", rec.Path(), failures, rerr)
	case rerr.Kind == staplelib.KindHTTPBadRequest:
		r.log.Warning("responder rejected the request for %s (attempt %d), the certificate itself is the likely cause: %v", rec.Path(), failures, rerr)
	default:
		r.log.Warning("renewal of %s failed (attempt %d): %v", rec.Path(), failures, rerr)
	}

	if r.cfg.OneOff {
		return
	}
	next := time.Now().Add(delay)
	rec.SetNextAction(next)
	r.schedule(scheduler.Task{
		Queue:      common.QueueRenew,
		Path:       rec.Path(),
		NotBefore:  next,
		Generation: rec.Generation(),
	})
}

func (r *Renewer) recordEntry(e journal.Entry) {
	if r.journal == nil {
		return
	}
	if err := r.journal.Record(e); err != nil {
		r.log.Warning("journal: %v", err)
	}
}

func (r *Renewer) schedule(t scheduler.Task) {
	if err := r.sched.Schedule(t); err != nil {
		r.log.Error("scheduling %s task for %s: %v", t.Queue, t.Path, err)
	}
}
