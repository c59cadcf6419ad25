package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/greenhost/stapled/common"
	"github.com/greenhost/stapled/internal/daemon"
	"github.com/greenhost/stapled/pkg/logger"
)

// runDaemon is the default action: it builds the validated config
// snapshot from the flags and runs the pipeline until a signal arrives.
func runDaemon(ctx *cli.Context) error {
	paths := ctx.Args()
	if len(paths) == 0 {
		cli.ShowAppHelp(ctx)
		return errors.New("at least one certificate path is required")
	}

	lg, err := buildLogger()
	if err != nil {
		return err
	}
	defer lg.Close()

	cfg := daemon.Config{
		Paths:           paths,
		Recursive:       recursive,
		Extensions:      splitExtensions(extensions),
		IgnorePatterns:  ignorePatterns,
		Targets:         socketTargets(paths, haproxySockets),
		RefreshInterval: time.Duration(refreshInterval) * time.Second,
		RefreshCron:     refreshCron,
		MinimumValidity: time.Duration(minimumValidity) * time.Second,
		Workers:         renewalThreads,
		OneOff:          oneOff,
		NoRecycle:       noRecycle,
		SocketKeepalive: time.Duration(socketKeepalive) * time.Second,
		JournalPath:     journalPath,
		Version: common.VersionResult{
			Version:   currentBuildArgs.Version,
			Commit:    currentBuildArgs.Commit,
			BuildType: currentBuildArgs.BuildType,
		},
	}

	d, err := daemon.New(lg, cfg)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lg.Info("stapled %s starting, watching %s", currentBuildArgs.Version, strings.Join(paths, ", "))
	return d.Run(runCtx)
}

func buildLogger() (logger.Logger, error) {
	var lg logger.Logger = logger.NewStandardLogger(log.New(os.Stderr, "", log.LstdFlags), verbose)
	if logFile != "" {
		fl, err := logger.NewFileLogger(logFile, verbose)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		lg = logger.NewMultiLogger(lg, fl)
	}
	if quiet {
		return logger.NewQuietLogger(lg), nil
	}
	return lg, nil
}

func splitExtensions(s string) []string {
	var out []string
	for _, e := range strings.Split(s, ",") {
		e = strings.TrimSpace(e)
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

// socketTargets maps every certificate root to the full socket list.
func socketTargets(paths, sockets []string) map[string][]string {
	if len(sockets) == 0 {
		return nil
	}
	targets := make(map[string][]string, len(paths))
	for _, p := range paths {
		targets[p] = sockets
	}
	return targets
}
