// Package cmd is the command line surface of stapled. The bare
// invocation runs the daemon; subcommands talk to a running daemon over
// its control socket.
package cmd

import (
	"fmt"

	"github.com/urfave/cli"
)

// BuildArgs carries version information injected at link time.
type BuildArgs struct {
	Version   string
	Commit    string
	Date      string
	BuildType string
}

var currentBuildArgs BuildArgs

// Execute runs the CLI with the given process arguments.
func Execute(args []string, bArgs BuildArgs) error {
	if bArgs.Version == "" {
		bArgs.Version = "dev"
	}
	currentBuildArgs = bArgs

	// The default version flag is "version, v"; its "v" shorthand
	// collides with --verbose and panics during flag registration.
	cli.VersionFlag = cli.BoolFlag{Name: "version", Usage: "print the version"}

	app := cli.App{
		Name:      "stapled",
		HelpName:  "stapled",
		Usage:     "Keeps TLS certificates supplied with fresh OCSP staples.",
		Version:   fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText: "stapled [options] <certificate path>...",
		Description: "stapled watches certificate directories, fetches OCSP responses\n" +
			"   for every chain it finds, writes them as staple files next to the\n" +
			"   certificates and pushes them into running HAProxy instances over\n" +
			"   their admin sockets.",
		Action: runDaemon,
		Flags:  runFlags,
		Commands: []cli.Command{
			{
				Name:      "status",
				Usage:     "list tracked certificates and their staples",
				UsageText: "stapled status",
				Action:    status,
			},
			{
				Name:      "renew",
				Usage:     "force an immediate renewal",
				UsageText: "stapled renew [certificate file]",
				Action:    renew,
			},
			{
				Name:      "history",
				Usage:     "show recent renewal attempts from the journal",
				UsageText: "stapled history [certificate file]",
				Action:    history,
				Flags:     historyFlags,
			},
			{
				Name:      "version",
				Usage:     "show client and daemon versions",
				UsageText: "stapled version",
				Action:    versionCmd,
			},
		},
	}
	return app.Run(args)
}
