package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"camwatch/internal/ipc"
	"camwatch/internal/session"
)

func newCameraCommands(ctx *commandContext) []*cobra.Command {
	printCamera := func(cmd *cobra.Command, st session.Status) {
		kind, message := cameraHealth(st)
		fmt.Fprintln(cmd.OutOrStdout(), renderStatusLine(st.Name, kind, message, shouldColorize(cmd.OutOrStdout())))
	}

	startCmd := &cobra.Command{
		Use:   "start <camera>",
		Short: "Start capturing from a camera",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Start(args[0])
				if err != nil {
					return err
				}
				printCamera(cmd, resp.Camera)
				return nil
			})
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop <camera>",
		Short: "Stop capturing from a camera and release the device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stop(args[0])
				if err != nil {
					return err
				}
				printCamera(cmd, resp.Camera)
				return nil
			})
		},
	}

	var reason string
	restartCmd := &cobra.Command{
		Use:   "restart <camera>",
		Short: "Restart a camera's capture loop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Restart(args[0], reason)
				if err != nil {
					return err
				}
				printCamera(cmd, resp.Camera)
				return nil
			})
		},
	}
	restartCmd.Flags().StringVar(&reason, "reason", "manual", "Reason recorded in the event journal")

	toggleCmd := &cobra.Command{
		Use:   "toggle <camera>",
		Short: "Start a stopped camera or stop a running one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Toggle(args[0])
				if err != nil {
					return err
				}
				printCamera(cmd, resp.Camera)
				return nil
			})
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, toggleCmd}
}
