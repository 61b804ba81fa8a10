package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"subline/internal/config"
	"subline/internal/recognition"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the model variants for the configured engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			engine := cfg.Transcription.Engine
			current := recognition.Variant(cfg)
			cacheDir := huggingFaceCache()

			headers := []string{"Variant", "Selected"}
			if engine == config.EngineWhisperX {
				headers = append(headers, "Downloaded")
			}
			var rows [][]string
			for _, variant := range recognition.KnownVariants(engine) {
				selected := ""
				if variant == current {
					selected = "*"
				}
				row := []string{variant, selected}
				if engine == config.EngineWhisperX {
					row = append(row, yesNo(modelCached(cacheDir, variant)))
				}
				rows = append(rows, row)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Engine: %s\n", engine)
			fmt.Fprintln(out, renderTable(headers, rows))
			if engine == config.EngineWhisperX && cacheDir != "" {
				fmt.Fprintf(out, "Model cache: %s\n", cacheDir)
			}
			return nil
		},
	}
}

// huggingFaceCache returns the hub cache directory whisperx downloads into.
func huggingFaceCache() string {
	if dir := strings.TrimSpace(os.Getenv("HF_HUB_CACHE")); dir != "" {
		return dir
	}
	if home := strings.TrimSpace(os.Getenv("HF_HOME")); home != "" {
		return filepath.Join(home, "hub")
	}
	if xdg := strings.TrimSpace(os.Getenv("XDG_CACHE_HOME")); xdg != "" {
		return filepath.Join(xdg, "huggingface", "hub")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cache", "huggingface", "hub")
}

func modelCached(cacheDir, variant string) bool {
	if cacheDir == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(cacheDir, "models--Systran--faster-whisper-"+variant))
	return err == nil && info.IsDir()
}
