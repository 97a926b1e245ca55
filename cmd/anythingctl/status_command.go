package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type daemonStatus struct {
	Connected        bool     `json:"connected"`
	PluginKeys       []string `json:"plugin_keys"`
	StuckPluginKeys  []string `json:"stuck_plugin_keys"`
	LastRelayOutcome string   `json:"last_relay_outcome"`
}

func newStatusCommand(client *busClient) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload string
			if err := client.call("Status", &payload); err != nil {
				return err
			}
			if jsonOutput {
				fmt.Fprintln(cmd.OutOrStdout(), payload)
				return nil
			}

			var status daemonStatus
			if err := json.Unmarshal([]byte(payload), &status); err != nil {
				return fmt.Errorf("decode status payload: %w", err)
			}
			renderStatus(cmd, status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw JSON payload")
	return cmd
}

func renderStatus(cmd *cobra.Command, status daemonStatus) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	connectedKind := statusError
	connectedMsg := "daemon not connected"
	if status.Connected {
		connectedKind = statusOK
		connectedMsg = "daemon connected"
	}
	fmt.Fprintln(out, renderStatusLine("Backend", connectedKind, connectedMsg, colorize))

	relayKind := statusOK
	if status.LastRelayOutcome != "success" {
		relayKind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Mount relay", relayKind, outcomeLabel(status.LastRelayOutcome), colorize))

	pluginMsg := "none"
	if len(status.PluginKeys) > 0 {
		pluginMsg = strings.Join(status.PluginKeys, ", ")
	}
	fmt.Fprintln(out, renderStatusLine("Plugins", statusInfo, pluginMsg, colorize))

	if len(status.StuckPluginKeys) > 0 {
		fmt.Fprintln(out, renderStatusLine("Stuck workers", statusError,
			strings.Join(status.StuckPluginKeys, ", "), colorize))
	}
}

// outcomeLabel turns a snake_case relay outcome into a readable label.
func outcomeLabel(outcome string) string {
	if outcome == "" {
		return "Unknown"
	}
	words := strings.ReplaceAll(outcome, "_", " ")
	return cases.Title(language.Und).String(words)
}
