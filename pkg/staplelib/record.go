// Package staplelib holds the data model of the staple renewal pipeline:
// certificate records, chain parsing, staple files, the OCSP client and
// the tiered retry policy. The pipeline stages in internal/ drive these
// types; this package owns no scheduling.
package staplelib

import (
	"sync"
	"time"
)

// Record is the per-certificate state threaded through every pipeline
// stage. A record is owned by at most one stage at a time; ownership
// moves by handing the record through the scheduler. The mutex protects
// against the few cross-stage reads (status snapshots, overlapping tasks
// for the same file) that the ownership convention cannot rule out.
type Record struct {
	mu sync.Mutex

	// path is the certificate chain file; certPath is the configured
	// root under which it was found. Both are immutable after creation.
	path     string
	certPath string

	// sockets are the proxy admin sockets serving this certificate,
	// resolved once at discovery time.
	sockets []string

	fingerprint Fingerprint
	chain       *Chain
	staple      *Staple

	failures    int
	failureKind ErrorKind
	lastError   string
	terminal    bool

	nextAction time.Time

	// generation counts re-admissions by the finder. A stage that kept
	// a generation number can detect that its task went stale.
	generation uint64
}

// NewRecord creates a record for a newly discovered certificate file.
func NewRecord(path, certPath string, fp Fingerprint, sockets []string) *Record {
	return &Record{
		path:        path,
		certPath:    certPath,
		fingerprint: fp,
		sockets:     sockets,
	}
}

// Path returns the certificate chain file path.
func (r *Record) Path() string { return r.path }

// CertPath returns the configured root the file was found under.
func (r *Record) CertPath() string { return r.certPath }

// Sockets returns the proxy admin sockets for this certificate.
func (r *Record) Sockets() []string { return r.sockets }

// Fingerprint returns the last recorded file fingerprint.
func (r *Record) Fingerprint() Fingerprint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fingerprint
}

// Generation returns the current re-admission generation.
func (r *Record) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// Readmit records a fresh fingerprint after the finder saw the file
// change. It clears failure state and the parsed chain so the record
// goes through the full pipeline again, and bumps the generation so
// tasks scheduled against the old file state identify themselves as
// stale.
func (r *Record) Readmit(fp Fingerprint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fingerprint = fp
	r.chain = nil
	r.staple = nil
	r.failures = 0
	r.failureKind = KindNone
	r.lastError = ""
	r.terminal = false
	r.generation++
}

// Chain returns the parsed chain, or nil before the parser succeeded.
func (r *Record) Chain() *Chain {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chain
}

// SetChain stores a freshly parsed chain.
func (r *Record) SetChain(c *Chain) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chain = c
}

// Staple returns the current staple, or nil before the first renewal.
func (r *Record) Staple() *Staple {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.staple
}

// SetStaple stores a validated staple and clears failure state.
func (r *Record) SetStaple(s *Staple) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staple = s
	r.failures = 0
	r.failureKind = KindNone
	r.lastError = ""
	r.terminal = false
}

// RecordFailure increments the consecutive-failure counter, stores the
// classification and returns the new count. Terminal kinds also mark the
// record as parked until the source file changes.
func (r *Record) RecordFailure(kind ErrorKind, err error) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
	r.failureKind = kind
	r.lastError = err.Error()
	if kind.Terminal() {
		r.terminal = true
	}
	return r.failures
}

// Failures returns the consecutive-failure count and its classification.
func (r *Record) Failures() (int, ErrorKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures, r.failureKind
}

// Terminal reports whether the record is parked until a file change.
func (r *Record) Terminal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.terminal
}

// SetNextAction records when the next scheduled task for this record is
// due. Purely informational, surfaced by the control socket.
func (r *Record) SetNextAction(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextAction = t
}

// Status summarizes the record for the control socket.
type Status struct {
	Path       string
	CertPath   string
	State      string
	OCSPURLs   []string
	ThisUpdate time.Time
	NextUpdate time.Time
	NextAction time.Time
	Failures   int
	LastError  string
	Sockets    []string
}

// Snapshot returns a consistent status summary of the record.
func (r *Record) Snapshot() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{
		Path:       r.path,
		CertPath:   r.certPath,
		NextAction: r.nextAction,
		Failures:   r.failures,
		LastError:  r.lastError,
		Sockets:    r.sockets,
	}
	if r.chain != nil {
		st.OCSPURLs = r.chain.OCSPURLs
	}
	if r.staple != nil {
		st.ThisUpdate = r.staple.ThisUpdate
		st.NextUpdate = r.staple.NextUpdate
	}
	switch {
	case r.terminal:
		st.State = "terminal"
	case r.failures > 0:
		st.State = "failing"
	case r.staple != nil:
		st.State = "stapled"
	case r.chain != nil:
		st.State = "parsed"
	default:
		st.State = "waiting"
	}
	return st
}
