package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"camwatch/internal/display"
	"camwatch/internal/ipc"
)

func newViewCommands(ctx *commandContext) []*cobra.Command {
	zoomCmd := &cobra.Command{
		Use:   "zoom <camera> <in|out|delta>",
		Short: "Change the live view zoom",
		Long:  "Zoom in or out by one configured step, or by an explicit delta. Negative deltas need a leading `--`.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := parseZoomDelta(args[1], ctx.configValue().Display.ZoomStep)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Zoom(args[0], delta)
				if err != nil {
					return err
				}
				printView(cmd, resp.View)
				return nil
			})
		},
	}

	var dx, dy float64
	panCmd := &cobra.Command{
		Use:   "pan <camera>",
		Short: "Move the zoomed live view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Pan(args[0], dx, dy)
				if err != nil {
					return err
				}
				printView(cmd, resp.View)
				return nil
			})
		},
	}
	panCmd.Flags().Float64Var(&dx, "dx", 0, "Horizontal offset in source pixels")
	panCmd.Flags().Float64Var(&dy, "dy", 0, "Vertical offset in source pixels")

	resetCmd := &cobra.Command{
		Use:   "reset-view <camera>",
		Short: "Clear zoom and pan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ResetView(args[0])
				if err != nil {
					return err
				}
				printView(cmd, resp.View)
				return nil
			})
		},
	}

	return []*cobra.Command{zoomCmd, panCmd, resetCmd}
}

func parseZoomDelta(arg string, step float64) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "in", "+":
		return step, nil
	case "out", "-":
		return -step, nil
	}
	delta, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid zoom %q: use in, out, or a number", arg)
	}
	return delta, nil
}

func printView(cmd *cobra.Command, v display.ViewState) {
	fmt.Fprintf(cmd.OutOrStdout(), "Zoom %.1fx, pan (%.0f, %.0f)\n", v.Zoom, v.PanX, v.PanY)
}
