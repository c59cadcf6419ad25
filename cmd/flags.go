package cmd

import (
	"github.com/urfave/cli"

	"github.com/greenhost/stapled/common"
)

var (
	recursive       bool
	extensions      string
	ignorePatterns  cli.StringSlice
	haproxySockets  cli.StringSlice
	minimumValidity int
	refreshInterval int
	refreshCron     string
	renewalThreads  int
	oneOff          bool
	noRecycle       bool
	socketKeepalive int
	journalPath     string
	logFile         string
	verbose         bool
	quiet           bool

	historyLimit int
)

var runFlags = []cli.Flag{
	cli.BoolFlag{
		Name:        "recursive, r",
		Usage:       "descend into subdirectories of the certificate paths",
		Destination: &recursive,
	},
	cli.StringFlag{
		Name:        "extensions, e",
		Usage:       "comma separated file extensions treated as certificates",
		Value:       common.DefaultFileExtensions,
		Destination: &extensions,
	},
	cli.StringSliceFlag{
		Name:  "ignore",
		Usage: "glob pattern of files to skip (repeatable)",
		Value: &ignorePatterns,
	},
	cli.StringSliceFlag{
		Name:  "haproxy-socket, s",
		Usage: "HAProxy admin socket to push staples into (repeatable)",
		Value: &haproxySockets,
	},
	cli.IntFlag{
		Name:        "minimum-validity, m",
		Usage:       "renew staples this many seconds before they expire",
		Value:       int(common.DefaultMinimumValidity.Seconds()),
		Destination: &minimumValidity,
	},
	cli.IntFlag{
		Name:        "refresh-interval, i",
		Usage:       "seconds between certificate directory scans",
		Value:       int(common.DefaultRefreshInterval.Seconds()),
		Destination: &refreshInterval,
	},
	cli.StringFlag{
		Name:        "refresh-cron",
		Usage:       "cron expression for directory scans, replaces --refresh-interval",
		Destination: &refreshCron,
	},
	cli.IntFlag{
		Name:        "renewal-threads, t",
		Usage:       "number of parallel staple workers",
		Value:       common.DefaultRenewalWorkers,
		Destination: &renewalThreads,
	},
	cli.BoolFlag{
		Name:        "one-off",
		Usage:       "renew everything once, then exit",
		Destination: &oneOff,
	},
	cli.BoolFlag{
		Name:        "no-recycle",
		Usage:       "ignore existing staple files, always fetch fresh ones",
		Destination: &noRecycle,
	},
	cli.IntFlag{
		Name:        "socket-keepalive",
		Usage:       "idle timeout in seconds requested on HAProxy admin sockets",
		Value:       int(common.DefaultSocketKeepalive.Seconds()),
		Destination: &socketKeepalive,
	},
	cli.StringFlag{
		Name:        "journal",
		Usage:       "path of the SQLite renewal journal (disabled when empty)",
		Destination: &journalPath,
	},
	cli.StringFlag{
		Name:        "log-file",
		Usage:       "append logs to this file in addition to the console",
		Destination: &logFile,
	},
	cli.BoolFlag{
		Name:        "verbose, v",
		Usage:       "log debug messages",
		EnvVar:      common.DebugEnv,
		Destination: &verbose,
	},
	cli.BoolFlag{
		Name:        "quiet, q",
		Usage:       "log errors only",
		Destination: &quiet,
	},
}

var historyFlags = []cli.Flag{
	cli.IntFlag{
		Name:        "limit, n",
		Usage:       "maximum number of entries to show",
		Value:       20,
		Destination: &historyLimit,
	},
}
