package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPluginsCommand(client *busClient) *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List registered plugin keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			var keys []string
			if err := client.call("PluginKeys", &keys); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(keys) == 0 {
				fmt.Fprintln(out, "No plugins registered")
				return nil
			}

			fmt.Fprintln(out, keyListTable(keys))
			return nil
		},
	}
}

func newRefreshMountInfoCommand(client *busClient) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-mountinfo",
		Short: "Re-run the kernel mount-info relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			var outcome string
			if err := client.call("RefreshMountInfo", &outcome); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Mount relay outcome: %s\n", outcomeLabel(outcome))
			if outcome != "success" {
				return fmt.Errorf("mount relay reported %s", outcome)
			}
			return nil
		},
	}
}
