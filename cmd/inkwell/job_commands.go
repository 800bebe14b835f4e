package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"inkwell/internal/ipc"
	"inkwell/internal/jobs"
	"inkwell/internal/progress"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Submit and manage generation jobs",
	}

	jobCmd.AddCommand(newJobSubmitCommand(ctx))
	jobCmd.AddCommand(newJobListCommand(ctx))
	jobCmd.AddCommand(newJobShowCommand(ctx))
	jobCmd.AddCommand(newJobCancelCommand(ctx))
	jobCmd.AddCommand(newJobDecideCommand(ctx))
	jobCmd.AddCommand(newJobWatchCommand(ctx))
	jobCmd.AddCommand(newJobHealthCommand(ctx))

	return jobCmd
}

func newJobSubmitCommand(ctx *commandContext) *cobra.Command {
	var owner string
	var theme string
	var titleStyle string
	var authorStyle string
	var depth string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a new generation job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobSubmit(ipc.JobSubmitRequest{
					OwnerID:       owner,
					Theme:         theme,
					TitleStyle:    titleStyle,
					AuthorStyle:   authorStyle,
					ResearchDepth: depth,
				})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Job)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Submitted job %s\n", resp.Job.ID)
				fmt.Fprintf(out, "Status: %s\n", formatStatusLabel(resp.Job.Status))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owner identifier for the job")
	cmd.Flags().StringVar(&theme, "theme", "", "Content theme")
	cmd.Flags().StringVar(&titleStyle, "title-style", "", "Title style preference")
	cmd.Flags().StringVar(&authorStyle, "author-style", "", "Author style preference")
	cmd.Flags().StringVar(&depth, "depth", jobs.DepthMedium, "Research depth (light, medium, deep)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the created job as JSON")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newJobListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var listOwner string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobList(ipc.JobListRequest{Statuses: listStatuses, OwnerID: listOwner})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Status", "Stage", "Progress", "Title", "Updated"},
					buildJobListRows(resp.Jobs),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by job status (repeatable)")
	cmd.Flags().StringVar(&listOwner, "owner", "", "Filter by owner identifier")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the job list as JSON")
	return cmd
}

func newJobShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show job details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobDescribe(args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Job)
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range jobDetailLines(resp.Job, colorize) {
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the job as JSON")
	return cmd
}

func newJobCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Request cancellation of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobCancel(args[0])
				if err != nil {
					return err
				}
				if resp.Requested {
					fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for job %s\n", args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Job %s was not cancelled\n", args[0])
				}
				return nil
			})
		},
	}
}

func newJobDecideCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "decide <job-id> <choice>",
		Short: "Resolve a pending title decision",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobDecide(args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Decision resolved: %s\n", resp.Decision.ResolvedValue)
				return nil
			})
		},
	}
}

func newJobWatchCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <job-id>",
		Short: "Stream live progress for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				jobID := args[0]
				var cursor uint64
				for {
					if err := cmd.Context().Err(); err != nil {
						return err
					}
					resp, err := client.JobEvents(ipc.JobEventsRequest{
						JobID:      jobID,
						Since:      cursor,
						Follow:     true,
						WaitMillis: 5000,
					})
					if err != nil {
						return err
					}
					cursor = resp.Next
					for _, event := range resp.Events {
						fmt.Fprintln(out, formatWatchEvent(event))
						if watchIsTerminal(event.Type) {
							return nil
						}
					}
				}
			})
		},
	}
	return cmd
}

func newJobHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show job health summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				health, err := client.JobsHealth()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Total: %d\nWaiting: %d\nProcessing: %d\nAwaiting decision: %d\nFailed: %d\nCompleted: %d\nCancelled: %d\n",
					health.Total,
					health.Waiting,
					health.Processing,
					health.AwaitingDecision,
					health.Failed,
					health.Completed,
					health.Cancelled,
				)
				return nil
			})
		},
	}
}

func jobDetailLines(job ipc.Job, colorize bool) []string {
	lines := renderSectionHeader(fmt.Sprintf("Job %s", shortJobID(job.ID)), colorize)
	lines = append(lines, renderStatusLine("Status", jobStatusKind(job.Status), formatStatusLabel(job.Status), colorize))
	lines = append(lines, renderStatusLine("Stage", statusInfo, formatStatusLabel(job.Progress.Stage), colorize))
	lines = append(lines, renderStatusLine("Progress", statusInfo, fmt.Sprintf("%.0f%% %s", job.Progress.Percent, job.Progress.Message), colorize))
	lines = append(lines, renderStatusLine("Owner", statusInfo, job.OwnerID, colorize))
	if theme := strings.TrimSpace(job.Preferences.Theme); theme != "" {
		lines = append(lines, renderStatusLine("Theme", statusInfo, theme, colorize))
	}
	if title := strings.TrimSpace(job.SelectedTitle); title != "" {
		lines = append(lines, renderStatusLine("Title", statusInfo, title, colorize))
	}
	if artifact := strings.TrimSpace(job.ArtifactPath); artifact != "" {
		lines = append(lines, renderStatusLine("Artifact", statusOK, artifact, colorize))
	}
	if errMsg := strings.TrimSpace(job.ErrorMessage); errMsg != "" {
		detail := errMsg
		if kind := strings.TrimSpace(job.ErrorKind); kind != "" {
			detail = fmt.Sprintf("%s (%s)", errMsg, kind)
		}
		lines = append(lines, renderStatusLine("Error", statusError, detail, colorize))
	}
	lines = append(lines, renderStatusLine("Created", statusInfo, formatDisplayTime(job.CreatedAt), colorize))
	lines = append(lines, renderStatusLine("Updated", statusInfo, formatDisplayTime(job.UpdatedAt), colorize))
	if job.Decision != nil {
		lines = append(lines, renderStatusLine("Decision", statusWait, "awaiting choice", colorize))
		for i, option := range job.Decision.Options {
			lines = append(lines, fmt.Sprintf("%s%d. %s", statusIndent+statusIndent, i+1, option))
		}
	}
	return lines
}

func jobStatusKind(status string) statusKind {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed":
		return statusOK
	case "failed":
		return statusError
	case "awaiting_decision":
		return statusWait
	case "cancelled":
		return statusWarn
	default:
		return statusInfo
	}
}

func formatWatchEvent(event ipc.ProgressEvent) string {
	var b strings.Builder
	b.WriteString(formatDisplayTime(event.Timestamp))
	b.WriteString("  ")
	b.WriteString(fmt.Sprintf("%-18s", event.Type))
	if stage := strings.TrimSpace(event.Stage); stage != "" {
		b.WriteString(fmt.Sprintf(" %-12s", formatStatusLabel(stage)))
	}
	b.WriteString(fmt.Sprintf(" %3.0f%%", event.Percent))
	if message := strings.TrimSpace(event.Message); message != "" {
		b.WriteString("  ")
		b.WriteString(message)
	}
	return b.String()
}

func watchIsTerminal(eventType string) bool {
	switch progress.EventType(eventType) {
	case progress.EventJobComplete, progress.EventJobError, progress.EventJobCancelled:
		return true
	default:
		return false
	}
}
