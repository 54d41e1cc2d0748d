package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"camwatch/internal/config"
	"camwatch/internal/fileutil"
	"camwatch/internal/ipc"
)

func newCaptureCommands(ctx *commandContext) []*cobra.Command {
	var label string
	captureCmd := &cobra.Command{
		Use:   "capture <camera>",
		Short: "Hold the camera's current frame for a later save",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Capture(args[0], label)
				if err != nil {
					return err
				}
				if !resp.Captured {
					return fmt.Errorf("no frame available from %s yet", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Frame held for %s; run `camwatch save %s` to write it\n", args[0], args[0])
				return nil
			})
		},
	}
	captureCmd.Flags().StringVarP(&label, "label", "l", "", "Label stored with the capture and used in its filename")

	var saveLabel string
	var capture bool
	saveCmd := &cobra.Command{
		Use:   "save <camera>",
		Short: "Write the held capture to the capture directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if capture {
					resp, err := client.Capture(args[0], saveLabel)
					if err != nil {
						return err
					}
					if !resp.Captured {
						return fmt.Errorf("no frame available from %s yet", args[0])
					}
				}
				resp, err := client.Save(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %dx%d capture to %s\n", resp.Width, resp.Height, resp.Path)
				return nil
			})
		},
	}
	saveCmd.Flags().BoolVar(&capture, "capture", false, "Hold the current frame first, then save it")
	saveCmd.Flags().StringVarP(&saveLabel, "label", "l", "", "Label used with --capture")

	var output string
	var width, height int
	snapshotCmd := &cobra.Command{
		Use:   "snapshot <camera>",
		Short: "Fetch the latest frame as JPEG without touching the held capture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(output)
			if target == "" {
				return errors.New("--output is required")
			}
			path, err := config.ExpandPath(target)
			if err != nil {
				return fmt.Errorf("resolve output path: %w", err)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Frame(args[0], width, height)
				if err != nil {
					return err
				}
				if err := fileutil.WriteFileAtomic(path, resp.JPEG, 0o644); err != nil {
					return fmt.Errorf("write snapshot: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes to %s\n", len(resp.JPEG), path)
				return nil
			})
		},
	}
	snapshotCmd.Flags().StringVarP(&output, "output", "o", "", "Destination JPEG file")
	snapshotCmd.Flags().IntVar(&width, "width", 0, "Fit the live view into this viewport width")
	snapshotCmd.Flags().IntVar(&height, "height", 0, "Fit the live view into this viewport height")

	return []*cobra.Command{captureCmd, saveCmd, snapshotCmd}
}
