package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"camwatch/internal/daemonctl"
	"camwatch/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var opts daemonrun.Options
	var detach bool
	var waitTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the camwatch daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !detach {
				if ctx.socketFlag != nil {
					opts.SocketPath = strings.TrimSpace(*ctx.socketFlag)
				}
				return daemonrun.Run(cmd.Context(), cfg, opts)
			}
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			launch := daemonctl.LaunchOptions{
				SocketPath: ctx.socketPath(),
				LogLevel:   opts.LogLevel,
				NoHotplug:  opts.NoHotplug,
			}
			if ctx.configSeen {
				launch.ConfigPath = ctx.configPath
			}
			result, err := daemonctl.EnsureStarted(exe, launch, waitTimeout)
			if err != nil {
				return err
			}
			if result.AlreadyRunning {
				fmt.Fprintf(cmd.OutOrStdout(), "Daemon already running (pid %d)\n", result.PID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daemon started (pid %d)\n", result.PID)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&opts.Development, "dev", false, "Enable development logging with source locations")
	cmd.Flags().BoolVar(&opts.NoHotplug, "no-hotplug", false, "Disable the udev hotplug listener")
	cmd.Flags().BoolVarP(&detach, "detach", "d", false, "Start the daemon in the background and return")
	cmd.Flags().DurationVar(&waitTimeout, "wait", 10*time.Second, "How long --detach waits for the daemon socket")
	return cmd
}

func newShutdownCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "shutdown",
		Short: "Stop every camera and exit the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath := ""
			if cfg := ctx.configValue(); cfg != nil {
				pidPath = cfg.PIDPath()
			}
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), pidPath, grace, force)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			switch {
			case result.ForcedKill:
				fmt.Fprintf(cmd.OutOrStdout(), "Daemon killed (pid %d)\n", result.PID)
			case result.Acknowledged:
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon shutting down")
			default:
				return errors.New("daemon refused shutdown")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Kill the daemon if it has not exited after the grace period")
	cmd.Flags().DurationVar(&grace, "grace", 10*time.Second, "How long to wait for the daemon to exit")
	return cmd
}
