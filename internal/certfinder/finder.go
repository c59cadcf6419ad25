// Package certfinder implements the discovery stage of the renewal
// pipeline. It walks the configured certificate paths on a schedule,
// admits new and changed chain files as records, drops records whose
// files disappeared, and hands each admitted file to the parse queue.
// It is the only component that creates or destroys records.
package certfinder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/spf13/afero"

	"github.com/greenhost/stapled/common"
	"github.com/greenhost/stapled/internal/scheduler"
	"github.com/greenhost/stapled/pkg/logger"
	"github.com/greenhost/stapled/pkg/staplelib"
)

// Config carries the discovery settings.
type Config struct {
	// Paths are the configured certificate roots. A root may be a
	// directory or a single chain file.
	Paths []string

	// Recursive walks directory roots into subdirectories.
	Recursive bool

	// Extensions are the file extensions admitted as chain files,
	// without leading dots.
	Extensions []string

	// IgnorePatterns are glob patterns; a file matching any of them
	// (by full path or base name) is skipped.
	IgnorePatterns []string

	// Targets maps a root to the proxy admin sockets serving the
	// certificates under it.
	Targets map[string][]string

	// RefreshInterval is the pause between two scans.
	RefreshInterval time.Duration

	// RefreshCron, when non-empty, replaces the fixed interval with
	// cron-expression occurrences.
	RefreshCron string
}

// ValidateIgnorePatterns rejects patterns that look like relative paths.
// Matching happens against absolute paths and base names, so a leading
// "./" or "../" can never match anything and always signals a config
// mistake.
func ValidateIgnorePatterns(patterns []string) error {
	for _, p := range patterns {
		if strings.HasPrefix(p, "./") || strings.HasPrefix(p, "../") {
			return fmt.Errorf("ignore pattern %q is a relative path, use a glob or an absolute path", p)
		}
	}
	return nil
}

// ValidateRefreshCron checks a cron expression at config time.
func ValidateRefreshCron(expr string) error {
	if expr == "" {
		return nil
	}
	if !gronx.IsValid(expr) {
		return fmt.Errorf("invalid cron expression %q", expr)
	}
	return nil
}

// Finder is the discovery stage.
type Finder struct {
	fs    afero.Fs
	log   logger.Logger
	mgr   *staplelib.Manager
	sched *scheduler.Scheduler
	cfg   Config

	exts map[string]bool
}

// New creates a Finder over the given filesystem and record registry.
func New(fs afero.Fs, log logger.Logger, mgr *staplelib.Manager, sched *scheduler.Scheduler, cfg Config) *Finder {
	exts := make(map[string]bool, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		exts[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}
	return &Finder{
		fs:    fs,
		log:   log,
		mgr:   mgr,
		sched: sched,
		cfg:   cfg,
		exts:  exts,
	}
}

// Run scans once immediately and then on the configured schedule until
// the context is cancelled. When a scan overruns the interval, the next
// one starts right away.
func (f *Finder) Run(ctx context.Context) error {
	for {
		start := time.Now()
		f.Scan()

		next, err := f.nextScan(start)
		if err != nil {
			return err
		}
		wait := time.Until(next)
		if wait <= 0 {
			// Overran the interval; go again without sleeping, but
			// still honor cancellation.
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// nextScan computes when the scan after one started at start is due.
func (f *Finder) nextScan(start time.Time) (time.Time, error) {
	if f.cfg.RefreshCron != "" {
		next, err := gronx.NextTickAfter(f.cfg.RefreshCron, start, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("computing next scan from cron expression: %w", err)
		}
		return next, nil
	}
	return start.Add(f.cfg.RefreshInterval), nil
}

// Scan performs one discovery pass over all roots.
func (f *Finder) Scan() {
	seen := make(map[string]bool)
	for _, root := range f.cfg.Paths {
		f.scanRoot(root, seen)
	}
	f.dropMissing(seen)
}

// scanRoot collects the candidate files under one root and admits them.
func (f *Finder) scanRoot(root string, seen map[string]bool) {
	fi, err := f.fs.Stat(root)
	if err != nil {
		f.log.Warning("cannot read certificate path %s: %v", root, err)
		return
	}

	if !fi.IsDir() {
		// A root that is itself a file is admitted directly, without
		// the extension filter.
		f.admit(root, root, seen)
		return
	}

	if f.cfg.Recursive {
		err = afero.Walk(f.fs, root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				f.log.Warning("skipping %s: %v", path, err)
				return nil
			}
			if info.IsDir() {
				return nil
			}
			if f.candidate(path) {
				f.admit(path, root, seen)
			}
			return nil
		})
		if err != nil {
			f.log.Warning("walking %s: %v", root, err)
		}
		return
	}

	entries, err := afero.ReadDir(f.fs, root)
	if err != nil {
		f.log.Warning("reading directory %s: %v", root, err)
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(root, e.Name())
		if f.candidate(path) {
			f.admit(path, root, seen)
		}
	}
}

// candidate applies the extension and ignore filters to a file path.
func (f *Finder) candidate(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if !f.exts[ext] {
		return false
	}
	return !f.ignored(path)
}

// ignored reports whether path matches any ignore pattern, by full path
// or by base name.
func (f *Finder) ignored(path string) bool {
	base := filepath.Base(path)
	for _, pat := range f.cfg.IgnorePatterns {
		if ok, _ := filepath.Match(pat, path); ok {
			return true
		}
		if ok, _ := filepath.Match(pat, base); ok {
			return true
		}
	}
	return false
}

// admit creates or refreshes the record for a candidate file and, when
// the file is new or changed, schedules an immediate parse.
func (f *Finder) admit(path, root string, seen map[string]bool) {
	if seen[path] {
		return
	}
	seen[path] = true

	fp, err := staplelib.FileFingerprint(f.fs, path)
	if err != nil {
		f.log.Warning("cannot stat %s: %v", path, err)
		return
	}

	rec, ok := f.mgr.Get(path)
	if !ok {
		rec = staplelib.NewRecord(path, root, fp, f.cfg.Targets[root])
		f.mgr.Add(rec)
		f.log.Info("tracking new certificate %s", path)
		f.scheduleParse(rec)
		return
	}

	if rec.Fingerprint().Equal(fp) {
		return
	}
	rec.Readmit(fp)
	f.log.Info("certificate %s changed, re-parsing", path)
	f.scheduleParse(rec)
}

// dropMissing destroys records whose file was not seen this pass and no
// longer exists. The staple file on disk is left alone.
func (f *Finder) dropMissing(seen map[string]bool) {
	for _, path := range f.mgr.Paths() {
		if seen[path] {
			continue
		}
		// An unreadable root hides its files for one pass; only drop
		// the record when the file itself is gone.
		if _, err := f.fs.Stat(path); err == nil {
			continue
		}
		f.mgr.Remove(path)
		f.log.Info("certificate %s disappeared, dropped", path)
	}
}

func (f *Finder) scheduleParse(rec *staplelib.Record) {
	t := scheduler.Task{
		Queue:      common.QueueParse,
		Path:       rec.Path(),
		Generation: rec.Generation(),
	}
	if err := f.sched.Schedule(t); err != nil {
		f.log.Error("scheduling parse of %s: %v", rec.Path(), err)
	}
}
