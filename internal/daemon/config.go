package daemon

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/greenhost/stapled/common"
	"github.com/greenhost/stapled/internal/certfinder"
)

// ErrNoCertPaths is the only unrecoverable startup condition: without
// certificate paths there is nothing to do.
var ErrNoCertPaths = errors.New("no certificate paths configured")

// Config is the validated configuration snapshot the daemon runs on.
// The CLI layer builds it; the daemon never reads flags or files.
type Config struct {
	// Paths are the certificate roots (directories or files).
	Paths []string

	// Recursive walks directory roots into subdirectories.
	Recursive bool

	// Extensions are the admitted file extensions, without dots.
	Extensions []string

	// IgnorePatterns are glob patterns for files to skip.
	IgnorePatterns []string

	// Targets maps a root to the HAProxy admin sockets serving it. An
	// empty map disables staple injection.
	Targets map[string][]string

	// RefreshInterval is the pause between finder scans.
	RefreshInterval time.Duration

	// RefreshCron, when set, replaces the interval with cron
	// occurrences.
	RefreshCron string

	// MinimumValidity is the staple renewal lead time.
	MinimumValidity time.Duration

	// Workers is the size of the shared stage worker pool.
	Workers int

	// OneOff drains all work once and exits instead of running
	// forever.
	OneOff bool

	// NoRecycle disables adoption of staples found on disk.
	NoRecycle bool

	// SocketKeepalive is the CLI timeout requested on admin sockets.
	SocketKeepalive time.Duration

	// JournalPath enables the SQLite renewal journal when non-empty.
	JournalPath string

	// Version is reported over the control socket.
	Version common.VersionResult
}

// Validate normalizes the config and rejects unusable settings.
func (c *Config) Validate() error {
	if len(c.Paths) == 0 {
		return ErrNoCertPaths
	}
	if err := certfinder.ValidateIgnorePatterns(c.IgnorePatterns); err != nil {
		return err
	}
	if err := certfinder.ValidateRefreshCron(c.RefreshCron); err != nil {
		return err
	}
	if c.MinimumValidity <= 0 {
		return fmt.Errorf("minimum validity must be positive, got %s", c.MinimumValidity)
	}
	if c.RefreshCron == "" && c.RefreshInterval <= 0 {
		c.RefreshInterval = common.DefaultRefreshInterval
	}
	if c.Workers <= 0 {
		c.Workers = common.DefaultRenewalWorkers
	}
	if c.SocketKeepalive < common.MinSocketKeepalive {
		c.SocketKeepalive = common.MinSocketKeepalive
	}
	if len(c.Extensions) == 0 {
		c.Extensions = strings.Split(common.DefaultFileExtensions, ",")
	}
	return nil
}
