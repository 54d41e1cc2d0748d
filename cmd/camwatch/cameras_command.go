package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"camwatch/internal/device"
	"camwatch/internal/device/opencv"
	"camwatch/internal/preflight"
)

func newCamerasCommand(ctx *commandContext) *cobra.Command {
	camerasCmd := &cobra.Command{
		Use:   "cameras",
		Short: "Camera discovery utilities",
	}

	var maxIndex int
	detectCmd := &cobra.Command{
		Use:         "detect",
		Short:       "Probe local video devices and list the ones that deliver frames",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			found := opencv.Detect(cmd.Context(), maxIndex)
			out := cmd.OutOrStdout()
			if len(found) == 0 {
				fmt.Fprintln(out, "No working cameras found")
				return nil
			}
			rows := make([][]string, 0, len(found))
			for _, cam := range found {
				rows = append(rows, []string{
					strconv.Itoa(cam.Index),
					preflight.DeviceNode(cam.Index),
					fmt.Sprintf("%dx%d", cam.Width, cam.Height),
				})
			}
			fmt.Fprint(out, renderTable([]string{"Index", "Device", "Resolution"}, rows,
				[]columnAlignment{alignRight, alignLeft, alignRight}))
			return nil
		},
	}
	detectCmd.Flags().IntVar(&maxIndex, "max", 10, "Number of device indices to probe")
	camerasCmd.AddCommand(detectCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List configured cameras",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(cfg.Cameras) == 0 {
				fmt.Fprintln(out, "No cameras configured")
				return nil
			}
			rows := make([][]string, 0, len(cfg.Cameras))
			for _, cam := range cfg.Cameras {
				rows = append(rows, []string{cam.Name, humanize(cam.Kind), device.Redact(cam.ResolvedSource()), yesNo(cam.StartsAutomatically())})
			}
			fmt.Fprint(out, renderTable([]string{"Camera", "Kind", "Source", "Auto Start"}, rows, nil))
			return nil
		},
	}
	camerasCmd.AddCommand(listCmd)

	return camerasCmd
}
