package main

import (
	"github.com/spf13/cobra"

	"anything/internal/config"
)

func newRootCommand() *cobra.Command {
	defaults := config.Default()

	var serviceFlag string
	var objectPathFlag string
	var sessionFlag bool

	client := &busClient{
		service:    &serviceFlag,
		objectPath: &objectPathFlag,
		session:    &sessionFlag,
	}

	rootCmd := &cobra.Command{
		Use:           "anythingctl",
		Short:         "Control the anythingd daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&serviceFlag, "service", defaults.Bus.ServiceName, "Bus service name of the daemon")
	rootCmd.PersistentFlags().StringVar(&objectPathFlag, "object-path", defaults.Bus.ObjectPath, "Object path of the daemon control object")
	rootCmd.PersistentFlags().BoolVar(&sessionFlag, "session", false, "Use the session bus instead of the system bus")

	rootCmd.AddCommand(newStatusCommand(client))
	rootCmd.AddCommand(newPluginsCommand(client))
	rootCmd.AddCommand(newRefreshMountInfoCommand(client))

	return rootCmd
}
