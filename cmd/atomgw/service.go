package main

import (
	"fmt"
	"os"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// program adapts the start command to the system service lifecycle. The
// service manager is the intended recovery mechanism: the gateway itself
// never restarts a dead plugin.
type program struct {
	args []string
	exit chan struct{}
}

func (p *program) Start(service.Service) error {
	go p.run()
	return nil
}

func (p *program) run() {
	root := rootCmd()
	root.SetArgs(append([]string{"start"}, p.args...))
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	close(p.exit)
}

func (p *program) Stop(service.Service) error {
	// The start command handles SIGTERM itself; the service manager sends
	// it before calling Stop. Wait for the run loop to drain.
	select {
	case <-p.exit:
	default:
	}
	return nil
}

func serviceCmd() *cobra.Command {
	var startArgs []string

	cmd := &cobra.Command{
		Use:       "service [install|uninstall|start|stop|run]",
		Short:     "Manage atomgw as a system service",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"install", "uninstall", "start", "stop", "run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			svcConfig := &service.Config{
				Name:        "atomgw",
				DisplayName: "Atom Message Gateway",
				Description: "Bridges chat channels to the task runtime",
				Arguments:   append([]string{"service", "run", "--"}, startArgs...),
			}

			prg := &program{args: startArgs, exit: make(chan struct{})}
			svc, err := service.New(prg, svcConfig)
			if err != nil {
				return err
			}

			action := args[0]
			if action == "run" {
				return svc.Run()
			}
			if err := service.Control(svc, action); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "service %s: done\n", action)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&startArgs, "start-arg", nil,
		"Argument passed through to \"atomgw start\" (repeatable)")
	return cmd
}
