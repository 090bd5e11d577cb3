// Package app wires the command line surface to the runtime: argument
// parsing, logger setup and command dispatch.
package app

import (
	"fmt"
	"os"

	"github.com/venlark/ticktree/pkg/cli"
	"github.com/venlark/ticktree/pkg/logger"
	"github.com/venlark/ticktree/pkg/playground"
)

// Run executes the command selected by args and returns an error when
// the process should exit non-zero.
func Run(args []string) error {
	config, err := cli.ParseArgs(args)
	if err != nil {
		return err
	}

	if config.ShowHelp {
		fmt.Fprint(os.Stdout, cli.Usage)
		return nil
	}

	if err := logger.Init(config.LogLevel); err != nil {
		return err
	}

	switch config.Command {
	case "test":
		return runSelfTests(os.Stdout)
	case "demo":
		return playground.Run(config.Headless, config.Ticks)
	case "":
		fmt.Fprint(os.Stderr, cli.Usage)
		return fmt.Errorf("no command given")
	default:
		fmt.Fprint(os.Stderr, cli.Usage)
		return fmt.Errorf("unknown command %q", config.Command)
	}
}
