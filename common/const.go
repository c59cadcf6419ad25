package common

import "time"

// Method names understood by the control server.
const (
	MethodStapleList    = "staple.list"
	MethodStapleRenew   = "staple.renew"
	MethodStapleHistory = "staple.history"
	MethodVersion       = "daemon.version"
)

// Scheduler queue names, one per worker-driven pipeline stage.
const (
	QueueParse = "parse"
	QueueRenew = "renew"
	QueueAdd   = "proxy-add"
)

// Defaults for the renewal pipeline.
const (
	// DefaultFileExtensions are the file extensions treated as
	// certificate chain files.
	DefaultFileExtensions = "crt,pem,cer"

	// DefaultRefreshInterval is the minimum time between two Finder
	// scans of the certificate paths.
	DefaultRefreshInterval = 60 * time.Second

	// DefaultMinimumValidity is how long a staple must remain valid
	// before a renewal is considered due.
	DefaultMinimumValidity = 7200 * time.Second

	// DefaultRenewalWorkers is the size of the shared worker pool that
	// executes parse, renew and proxy-add tasks.
	DefaultRenewalWorkers = 2

	// DefaultSocketKeepalive is the CLI timeout requested on HAProxy
	// admin sockets.
	DefaultSocketKeepalive = 3600 * time.Second

	// MinSocketKeepalive is the lowest accepted keepalive. Protocol
	// round-trips are never instantaneous, so zero makes no sense.
	MinSocketKeepalive = 1 * time.Second
)
