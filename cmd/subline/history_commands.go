package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"subline/internal/history"
	"subline/internal/logging"
	"subline/internal/logs"
)

const followInterval = 500 * time.Millisecond

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past transcription jobs",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryStatsCommand(ctx))
	historyCmd.AddCommand(newHistoryLogsCommand(ctx))
	return historyCmd
}

func openHistory(ctx *commandContext) (*history.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := history.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open job history: %w", err)
	}
	return store, nil
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			jobs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs recorded")
				return nil
			}
			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, []string{
					shortID(job.ID),
					job.Status,
					displayOrDash(job.Stage),
					displayOrDash(jobLanguage(job)),
					strconv.Itoa(job.SegmentCount),
					job.CreatedAt.Local().Format("2006-01-02 15:04"),
					truncate(job.Source, 48),
				})
			}
			headers := []string{"ID", "Status", "Stage", "Lang", "Segments", "Started", "Source"}
			fmt.Fprintln(out, renderTable(headers, rows, 4))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to show (0 for all)")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job by ID or unique ID prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			job, err := store.FindByPrefix(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printJob(cmd.OutOrStdout(), job)
			return nil
		},
	}
}

func printJob(out io.Writer, job *history.Job) {
	fields := [][2]string{
		{"ID", job.ID},
		{"Status", job.Status},
		{"Stage", displayOrDash(job.Stage)},
		{"Source", job.Source},
		{"Language", displayOrDash(job.Language)},
		{"Detected", displayOrDash(job.DetectedLanguage)},
		{"Chunks", strconv.Itoa(job.ChunkCount)},
		{"Segments", strconv.Itoa(job.SegmentCount)},
		{"Output", displayOrDash(job.OutputPath)},
		{"Started", job.CreatedAt.Local().Format(time.RFC3339)},
		{"Updated", job.UpdatedAt.Local().Format(time.RFC3339)},
	}
	if job.Error != "" {
		fields = append(fields, [2]string{"Error", job.Error})
	}
	for _, f := range fields {
		fmt.Fprintf(out, "%-10s %s\n", f[0]+":", f[1])
	}
}

func newHistoryStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count jobs by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Status", "Jobs"}, statsRows(stats), 1))
			return nil
		},
	}
}

func newHistoryLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	cmd := &cobra.Command{
		Use:   "logs <id>",
		Short: "Print the log of one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			job, err := store.FindByPrefix(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			path := logging.JobLogPath(ctx.config.Paths.LogDir, job.ID)
			tail, offset, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(tail) == 0 && !follow {
				fmt.Fprintf(out, "No log lines for job %s (%s)\n", shortID(job.ID), path)
				return nil
			}
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			if !follow || job.Terminal() {
				return nil
			}
			finished := func() bool {
				current, err := store.Get(cmd.Context(), job.ID)
				return err != nil || current.Terminal()
			}
			return logs.Follow(cmd.Context(), path, offset, followInterval, finished, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to print (0 for all)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until the job ends")
	return cmd
}

func statsRows(stats map[string]int) [][]string {
	statuses := make([]string, 0, len(stats))
	total := 0
	for status, count := range stats {
		statuses = append(statuses, status)
		total += count
	}
	sort.Strings(statuses)
	rows := make([][]string, 0, len(statuses)+1)
	for _, status := range statuses {
		rows = append(rows, []string{status, strconv.Itoa(stats[status])})
	}
	return append(rows, []string{"total", strconv.Itoa(total)})
}

func jobLanguage(job *history.Job) string {
	if job.DetectedLanguage != "" {
		return job.DetectedLanguage
	}
	return job.Language
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}
