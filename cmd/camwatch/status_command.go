package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"camwatch/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and camera status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			client, err := ctx.dialClient()
			if err != nil {
				if asJSON {
					return err
				}
				for _, line := range renderSectionHeader("Daemon", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout, renderStatusLine("Daemon", statusError, "Not running", colorize))
				return nil
			}
			defer client.Close()

			status, err := client.Status()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, status)
			}

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range daemonLines(status, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Cameras", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if len(status.Cameras) == 0 {
				fmt.Fprintln(stdout, "No cameras configured")
				return nil
			}
			for _, st := range status.Cameras {
				kind, message := cameraHealth(st)
				fmt.Fprintln(stdout, renderStatusLine(st.Name, kind, message, colorize))
			}
			fmt.Fprintln(stdout)
			fmt.Fprint(stdout, renderTable(
				[]string{"Camera", "Kind", "State", "FPS", "Frames", "Dropped", "Restarts", "Last Frame"},
				cameraRows(status.Cameras, time.Now()),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw status as JSON")
	return cmd
}

func daemonLines(status *ipc.StatusResponse, colorize bool) []string {
	lines := make([]string, 0, 5)
	if status.Running {
		lines = append(lines, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "Socket up but daemon not started", colorize))
	}
	if status.APIAddress != "" {
		lines = append(lines, renderStatusLine("HTTP API", statusOK, status.APIAddress, colorize))
	} else {
		lines = append(lines, renderStatusLine("HTTP API", statusInfo, "Disabled", colorize))
	}
	if status.Hotplug {
		lines = append(lines, renderStatusLine("Hotplug", statusOK, "Listening for udev events", colorize))
	} else {
		lines = append(lines, renderStatusLine("Hotplug", statusWarn, "Not listening", colorize))
	}
	lines = append(lines, renderStatusLine("Journal", statusInfo, status.JournalPath, colorize))
	hostKind := statusOK
	if status.Host.Reclaim {
		hostKind = statusWarn
	}
	lines = append(lines, renderStatusLine("Host Load", hostKind,
		fmt.Sprintf("CPU %.1f%%, memory %.1f%%", status.Host.CPU, status.Host.Memory), colorize))
	return lines
}
