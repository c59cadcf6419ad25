package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli"

	"github.com/greenhost/stapled/pkg/staplecli"
)

// clientTimeout bounds one control-socket call.
const clientTimeout = 10 * time.Second

// withClient connects to the daemon and runs fn with a bounded context.
func withClient(fn func(ctx context.Context, c *staplecli.Client) error) error {
	c, err := staplecli.NewClient()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), clientTimeout)
	defer cancel()
	return fn(ctx, c)
}

func status(_ *cli.Context) error {
	return withClient(func(ctx context.Context, c *staplecli.Client) error {
		res, err := c.List(ctx)
		if err != nil {
			return err
		}
		if len(res.Staples) == 0 {
			fmt.Println("no certificates tracked")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "CERTIFICATE\tSTATE\tVALID UNTIL\tNEXT ACTION\tFAILURES\tLAST ERROR")
		for _, s := range res.Staples {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				s.Path, s.Status,
				formatTime(s.NextUpdate), formatTime(s.NextAction),
				s.Failures, oneLine(s.LastError))
		}
		return w.Flush()
	})
}

func renew(ctx *cli.Context) error {
	path := ctx.Args().First()
	return withClient(func(cctx context.Context, c *staplecli.Client) error {
		res, err := c.Renew(cctx, path)
		if err != nil {
			return err
		}
		fmt.Printf("scheduled %d renewal(s)\n", res.Scheduled)
		return nil
	})
}

func history(ctx *cli.Context) error {
	path := ctx.Args().First()
	return withClient(func(cctx context.Context, c *staplecli.Client) error {
		res, err := c.History(cctx, path, historyLimit)
		if err != nil {
			return err
		}
		if len(res.Entries) == 0 {
			fmt.Println("no renewal history")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tCERTIFICATE\tOUTCOME\tDETAIL")
		for _, e := range res.Entries {
			detail := oneLine(e.Message)
			if e.Outcome == "success" {
				detail = "valid until " + formatTime(e.NextUpdate)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				formatTime(e.At), e.Path, e.Outcome, detail)
		}
		return w.Flush()
	})
}

func versionCmd(_ *cli.Context) error {
	fmt.Printf("client: %s-%s\n", currentBuildArgs.Version, currentBuildArgs.BuildType)
	return withClient(func(ctx context.Context, c *staplecli.Client) error {
		res, err := c.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("daemon: %s-%s\n", res.Version, res.BuildType)
		return nil
	})
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func oneLine(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "\n", " ")
}
