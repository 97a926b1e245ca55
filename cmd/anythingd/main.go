// Command anythingd runs the file-system activity backend daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"anything/internal/backend"
	"anything/internal/busguard"
	"anything/internal/config"
	"anything/internal/daemonrun"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := flag.NewFlagSet("anythingd", flag.ContinueOnError)
	configPath := flags.String("config", "", "configuration file path")
	logLevel := flags.String("log-level", "", "override the configured log level")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "anythingd: load config: %v\n", err)
		return 1
	}

	err = daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "anythingd: %v\n", err)
	}
	return exitCode(err)
}

// exitCode maps run errors onto the documented process exit codes: 2 when
// another instance already holds the service identity, 3 when the control
// object could not be published.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, backend.ErrAlreadyRunning):
		return 2
	case errors.Is(err, busguard.ErrPublishObject):
		return 3
	default:
		return 1
	}
}
