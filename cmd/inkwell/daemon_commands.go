package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"inkwell/internal/daemonctl"
	"inkwell/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the inkwell daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}

			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Message) != "" {
					fmt.Fprintln(stdout, result.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the inkwell daemon (completely terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			} else {
				fmt.Fprintln(stdout, "Stopping daemon workflow...")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and job status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				statusResp, err := client.Status()
				if err != nil {
					return err
				}

				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)

				for _, line := range renderSectionHeader("Daemon", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, line := range daemonStatusLines(statusResp, colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout)

				for _, line := range renderSectionHeader("Stage Health", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, line := range stageHealthLines(statusResp.StageHealth, colorize) {
					fmt.Fprintln(stdout, line)
				}

				fmt.Fprintln(stdout)
				for _, line := range renderSectionHeader("Job Status", colorize) {
					fmt.Fprintln(stdout, line)
				}

				rows := buildJobStatusRows(statusResp.JobStats)
				if len(rows) == 0 {
					fmt.Fprintln(stdout, "No jobs")
					return nil
				}

				table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(stdout, table)
				return nil
			})
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the inkwell daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx),
				5*time.Second,
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}

			switch result.Start.State {
			case daemonctl.StartStateStarted, daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon restarted")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Start.Message) != "" {
					fmt.Fprintln(stdout, result.Start.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func daemonStatusLines(status *ipc.StatusResponse, colorize bool) []string {
	lines := make([]string, 0, 4)
	if status.Running {
		detail := ""
		if status.PID > 0 {
			detail = fmt.Sprintf("pid %d", status.PID)
		}
		lines = append(lines, renderStatusLine("Workflow", statusOK, detail, colorize))
	} else {
		lines = append(lines, renderStatusLine("Workflow", statusWarn, "not running", colorize))
	}
	if strings.TrimSpace(status.DBPath) != "" {
		lines = append(lines, renderStatusLine("Database", statusInfo, status.DBPath, colorize))
	}
	if strings.TrimSpace(status.LastError) != "" {
		lines = append(lines, renderStatusLine("Last error", statusError, status.LastError, colorize))
	}
	if status.LastJob != nil {
		detail := fmt.Sprintf("%s (%s)", status.LastJob.ID, status.LastJob.Status)
		lines = append(lines, renderStatusLine("Last job", statusInfo, detail, colorize))
	}
	return lines
}

func stageHealthLines(health []ipc.StageHealth, colorize bool) []string {
	if len(health) == 0 {
		return []string{renderStatusLine("Stages", statusWarn, "no stages registered", colorize)}
	}
	lines := make([]string, 0, len(health))
	for _, entry := range health {
		if entry.Ready {
			lines = append(lines, renderStatusLine(formatStatusLabel(entry.Name), statusOK, "Ready", colorize))
			continue
		}
		detail := strings.TrimSpace(entry.Detail)
		if detail == "" {
			detail = "not ready"
		}
		lines = append(lines, renderStatusLine(formatStatusLabel(entry.Name), statusError, detail, colorize))
	}
	return lines
}

// daemonExecutable resolves the inkwelld binary, preferring a sibling of the
// current executable before falling back to PATH lookup.
func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	sibling := filepath.Join(filepath.Dir(exe), "inkwelld")
	if info, statErr := os.Stat(sibling); statErr == nil && !info.IsDir() {
		return sibling, nil
	}
	return "inkwelld", nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{}
	if ctx.configFlag != nil {
		if config := strings.TrimSpace(*ctx.configFlag); config != "" {
			opts.ConfigPath = config
		}
	}
	return opts
}
