package cmd

import (
	"fmt"

	"github.com/productdevbook/whichport/internal/query"
	"github.com/productdevbook/whichport/internal/scanner"
	"github.com/spf13/cobra"
)

// killProcess is swapped out in tests
var killProcess = scanner.Kill

func newKillCmd(opts *options) *cobra.Command {
	killCmd := &cobra.Command{
		Use:   "kill <port>",
		Short: "Kill processes listening on a port",
		Long:  `Kill every process listening on the specified port. Uses SIGTERM by default, SIGKILL with --force.`,
		Args:  portArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKill(cmd, opts, args)
		},
	}
	killCmd.Flags().BoolVarP(&opts.force, "force", "f", false, "Force kill with SIGKILL")
	return killCmd
}

func runKill(cmd *cobra.Command, opts *options, args []string) error {
	port, err := query.ParsePort(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(cmd, opts)
	if err != nil {
		return err
	}

	res, err := a.engine.Query(query.Request{Ports: []int{port}})
	if err != nil {
		return err
	}

	report := res.Ports[0]
	if !report.Listening {
		return fmt.Errorf("no process found listening on port %d", port)
	}

	action := "Killed"
	if opts.force {
		action = "Force killed"
	}

	killed := make(map[uint32]bool)
	for _, l := range report.Listeners {
		if !l.PID.Known {
			a.log.WithField("command", l.Command).Warn("pid not reported, cannot kill")
			continue
		}
		if killed[l.PID.ID] {
			continue
		}

		if err := killProcess(l.PID.ID, opts.force); err != nil {
			return fmt.Errorf("failed to kill process %d: %w", l.PID.ID, err)
		}
		killed[l.PID.ID] = true
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (PID %d) on port %d\n", action, l.Command, l.PID.ID, port)
	}

	if len(killed) == 0 {
		return fmt.Errorf("no process with a known pid listens on port %d", port)
	}
	return nil
}
