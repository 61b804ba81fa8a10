package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"subline/internal/history"
	"subline/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check tools, directories, providers and job history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			color := isTerminal(out)

			fmt.Fprintln(out, renderHeading("Configuration", color))
			fmt.Fprintln(out, renderCheckLine("Config file", levelInfo, displayOrDash(ctx.configPath), color))
			fmt.Fprintln(out, renderCheckLine("Engine", levelInfo, cfg.Transcription.Engine, color))
			for _, dir := range []struct{ name, path string }{
				{"Work dir", cfg.Paths.WorkDir},
				{"Output dir", cfg.Paths.OutputDir},
				{"Log dir", cfg.Paths.LogDir},
			} {
				writeResult(out, preflight.CheckDirectoryAccess(dir.name, dir.path), color)
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, renderHeading("Tools", color))
			for _, status := range preflight.CheckSystemDeps(cmd.Context(), cfg) {
				level := levelOK
				detail := status.Version
				switch {
				case !status.Available && status.Optional:
					level, detail = levelWarn, status.Detail
				case !status.Available:
					level, detail = levelError, status.Detail
				case detail == "":
					detail = status.Command
				}
				fmt.Fprintln(out, renderCheckLine(status.Name, level, detail, color))
			}

			if !offline {
				if results := preflight.CheckProviders(cmd.Context(), cfg); len(results) > 0 {
					fmt.Fprintln(out)
					fmt.Fprintln(out, renderHeading("Providers", color))
					for _, result := range results {
						writeResult(out, result, color)
					}
				}
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, renderHeading("History", color))
			store, err := history.Open(cfg)
			if err != nil {
				fmt.Fprintln(out, renderCheckLine("Database", levelError, err.Error(), color))
				return nil
			}
			defer store.Close()
			stats, err := store.Stats(cmd.Context())
			if err != nil {
				fmt.Fprintln(out, renderCheckLine("Database", levelError, err.Error(), color))
				return nil
			}
			fmt.Fprintln(out, renderCheckLine("Database", levelOK, store.Path(), color))
			fmt.Fprintln(out, renderCheckLine("Jobs", levelInfo, summarizeStats(stats), color))
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the remote provider checks")
	return cmd
}

func writeResult(out io.Writer, result preflight.Result, color bool) {
	level := levelOK
	if !result.Passed {
		level = levelError
	}
	fmt.Fprintln(out, renderCheckLine(result.Name, level, result.Detail, color))
}

func summarizeStats(stats map[string]int) string {
	if len(stats) == 0 {
		return "none recorded"
	}
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, stats[k]))
	}
	return strings.Join(parts, " ")
}
