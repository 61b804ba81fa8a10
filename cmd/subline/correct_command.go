package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"subline/internal/fileutil"
	"subline/internal/subtitles"
)

func newCorrectCommand() *cobra.Command {
	var output string
	var backup bool

	cmd := &cobra.Command{
		Use:         "correct <file.srt>",
		Short:       "Fix ordering, overlaps and numbering in an SRT file",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read subtitles: %w", err)
			}
			before, err := subtitles.Parse(string(raw))
			if err != nil {
				return err
			}
			corrected, err := subtitles.Correct(string(raw))
			if err != nil {
				return err
			}

			target := strings.TrimSpace(output)
			if target == "" {
				target = path
			}
			if backup && target == path {
				if err := fileutil.CopyFile(path, path+".bak"); err != nil {
					return fmt.Errorf("write backup: %w", err)
				}
			}
			if err := fileutil.WriteFileAtomic(target, []byte(corrected), 0o644); err != nil {
				return fmt.Errorf("write subtitles: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Corrected %d entries -> %s\n", len(before), target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the corrected file here instead of in place")
	cmd.Flags().BoolVar(&backup, "backup", false, "Keep a .bak copy when correcting in place")
	return cmd
}
