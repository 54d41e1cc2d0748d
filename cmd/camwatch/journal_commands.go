package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"camwatch/internal/ipc"
	"camwatch/internal/journal"
)

const journalTimeLayout = "2006-01-02 15:04:05"

func newCapturesCommand(ctx *commandContext) *cobra.Command {
	var camera string
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "captures",
		Short: "List saved captures, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Captures(camera, limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Captures)
				}
				if len(resp.Captures) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No captures recorded")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Saved", "Camera", "Label", "Size", "Path"},
					captureRows(resp.Captures),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&camera, "camera", "", "Only list captures from this camera")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum rows to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print rows as JSON")
	return cmd
}

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var camera string
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List camera lifecycle events, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Events(camera, limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Events)
				}
				if len(resp.Events) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No events recorded")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Time", "Camera", "Event", "Reason", "Detail"},
					eventRows(resp.Events),
					nil,
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&camera, "camera", "", "Only list events from this camera")
	cmd.Flags().IntVarP(&limit, "limit", "n", 30, "Maximum rows to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print rows as JSON")
	return cmd
}

func captureRows(items []journal.Capture) [][]string {
	rows := make([][]string, 0, len(items))
	for _, c := range items {
		label := c.Label
		if label == "" {
			label = "-"
		}
		rows = append(rows, []string{
			c.SavedAt.Local().Format(journalTimeLayout),
			c.Camera,
			label,
			strconv.Itoa(c.Width) + "x" + strconv.Itoa(c.Height),
			c.Path,
		})
	}
	return rows
}

func eventRows(items []journal.Event) [][]string {
	rows := make([][]string, 0, len(items))
	for _, ev := range items {
		rows = append(rows, []string{
			ev.CreatedAt.In(time.Local).Format(journalTimeLayout),
			ev.Camera,
			humanize(string(ev.Kind)),
			ev.Reason,
			ev.Detail,
		})
	}
	return rows
}
