package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"monad/internal/config"
	"monad/internal/daemonctl"
	"monad/internal/preflight"
	"monad/internal/statusapi"
)

const (
	startWaitTimeout = 10 * time.Second
	stopWaitTimeout  = 10 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the monad daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if pid, err := daemonctl.LivePID(cfg.PIDPath()); err != nil {
				return err
			} else if pid > 0 {
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", pid)
				return nil
			}

			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Daemon not running, launching...")
			if err := daemonctl.Launch(exe, daemonLaunchOptions(ctx)); err != nil {
				return err
			}
			pid, err := daemonctl.WaitForStart(cfg.PIDPath(), startWaitTimeout)
			if err != nil {
				return fmt.Errorf("%w; check %s", err, cfg.Paths.LogDir)
			}
			fmt.Fprintf(stdout, "Daemon started (pid %d)\n", pid)
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the monad daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result, err := daemonctl.Stop(cfg.PIDPath(), stopWaitTimeout)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Daemon Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range statusLines(snap, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range preflightLines(cfg, snap.Running, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Runtime Files", colorize) {
				fmt.Fprintln(stdout, line)
			}
			rows := [][]string{
				{"Config", displayConfigPath(ctx.configPath)},
				{"PID file", snap.PIDFile},
				{"Lock file", snap.LockFile},
				{"Log directory", cfg.Paths.LogDir},
			}
			fmt.Fprintln(stdout, renderTable([]string{"File", "Path"}, rows, []columnAlignment{alignLeft, alignLeft}))
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func statusLines(snap *daemonctl.Snapshot, colorize bool) []string {
	lines := make([]string, 0, 4)
	if snap.Running {
		lines = append(lines, renderStatusLine("Daemon", statusOK, "Running (pid "+strconv.Itoa(snap.PID)+")", colorize))
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusInfo, "Not running", colorize))
	}
	lines = append(lines, renderStatusLine("Mode", statusInfo, snap.Mode, colorize))

	switch {
	case snap.Mode != config.ModeHTTP:
		lines = append(lines, renderStatusLine("Status API", statusInfo, "Not used in loop mode", colorize))
	case snap.Status == nil:
		lines = append(lines, renderStatusLine("Status API", statusInfo, "Offline ("+snap.StatusBind+")", colorize))
	case snap.Status.Err != nil:
		lines = append(lines, renderStatusLine("Status API", statusError, snap.Status.Err.Error(), colorize))
	case snap.Status.Code == 200 && snap.Status.Body == statusapi.StatusBody:
		lines = append(lines, renderStatusLine("Status API", statusOK, snap.Status.Body+" ("+snap.StatusBind+")", colorize))
	default:
		detail := fmt.Sprintf("unexpected response %d %q", snap.Status.Code, snap.Status.Body)
		lines = append(lines, renderStatusLine("Status API", statusWarn, detail, colorize))
	}

	if snap.MetricsBind == "" {
		lines = append(lines, renderStatusLine("Metrics", statusInfo, "Disabled", colorize))
	} else {
		lines = append(lines, renderStatusLine("Metrics", statusInfo, "http://"+snap.MetricsBind+"/metrics", colorize))
	}
	return lines
}

func preflightLines(cfg *config.Config, running bool, colorize bool) []string {
	results := preflight.RunAll(cfg)
	if !running && cfg.Daemon.Mode == config.ModeHTTP {
		results = append(results, preflight.CheckBindAvailable("Status bind", cfg.Server.Bind))
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		kind := statusOK
		if !r.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	return lines
}

func displayConfigPath(path string) string {
	if path == "" {
		return "(defaults)"
	}
	if _, err := os.Stat(path); err != nil {
		return path + " (missing, defaults used)"
	}
	return path
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{ConfigPath: ctx.configFlagValue()}
	if ctx.logLevelFlag != nil {
		opts.LogLevel = *ctx.logLevelFlag
	}
	return opts
}
