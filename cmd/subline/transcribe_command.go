package main

import (
	"context"
	"fmt"
	"io"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"subline/internal/cancel"
	"subline/internal/config"
	"subline/internal/history"
	"subline/internal/logging"
	"subline/internal/metrics"
	"subline/internal/pipeline"
	"subline/internal/progress"
	"subline/internal/services"
)

type transcribeOptions struct {
	language    string
	format      string
	output      string
	title       string
	translateTo string
	noTranslate bool
	model       string
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var opts transcribeOptions

	cmd := &cobra.Command{
		Use:   "transcribe <url|file>",
		Short: "Generate a subtitle file from a media URL or local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscribe(cmd, ctx, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Spoken language (name or code); default auto-detect")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "Output format: srt, vtt or txt")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file path")
	cmd.Flags().StringVar(&opts.title, "title", "", "Title used to name the output file")
	cmd.Flags().StringVarP(&opts.translateTo, "translate", "t", "", "Translate lines into this language")
	cmd.Flags().BoolVar(&opts.noTranslate, "no-translate", false, "Skip translation even when enabled in config")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Model variant for this run")
	return cmd
}

func runTranscribe(cmd *cobra.Command, ctx *commandContext, source string, opts transcribeOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if model := strings.TrimSpace(opts.model); model != "" {
		cfgCopy := *cfg
		if cfgCopy.Transcription.Engine == config.EngineOpenAI {
			cfgCopy.OpenAI.TranscriptionModel = model
		} else {
			cfgCopy.Transcription.ModelVariant = model
		}
		cfg = &cfgCopy
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	logging.PruneJobLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays)

	store, err := history.Open(cfg)
	if err != nil {
		return fmt.Errorf("open job history: %w", err)
	}
	defer store.Close()

	runCtx, stop := context.WithCancel(cmd.Context())
	defer stop()

	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.New()
		srv, err := metrics.Listen(cfg.Metrics.Bind, recorder, logger)
		if err != nil {
			return fmt.Errorf("start metrics endpoint: %w", err)
		}
		go func() {
			if err := srv.Serve(runCtx); err != nil {
				logger.Warn("metrics endpoint stopped", logging.Error(err))
			}
		}()
	}

	runnerOpts := append([]pipeline.Option{
		pipeline.WithHistory(store),
		pipeline.WithMetrics(recorder),
	}, ctx.runnerOptions...)
	runner := pipeline.New(cfg, logger, runnerOpts...)

	signal := cancel.NewSignal()
	stopSignals := watchSignals(signal, stop, cmd.ErrOrStderr())
	defer stopSignals()

	sink := progress.NewChannelSink(16)
	req := pipeline.Request{
		Source:      source,
		Title:       opts.title,
		Language:    opts.language,
		Format:      opts.format,
		OutputPath:  opts.output,
		TranslateTo: opts.translateTo,
		NoTranslate: opts.noTranslate,
		Progress:    progress.Multi(sink, progress.NewLogSink(logger, 10)),
		Signal:      signal,
	}

	type outcome struct {
		res pipeline.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := runner.Run(runCtx, req)
		sink.Close()
		done <- outcome{res: res, err: err}
	}()

	renderer := newProgressRenderer(cmd.ErrOrStderr())
	for event := range sink.Events() {
		renderer.Report(event)
	}
	renderer.Finish()
	result := <-done

	out := cmd.OutOrStdout()
	if result.err != nil {
		if services.Retryable(result.err) {
			return fmt.Errorf("job %s failed (retryable): %w", shortID(result.res.JobID), result.err)
		}
		return fmt.Errorf("job %s failed: %w", shortID(result.res.JobID), result.err)
	}
	if result.res.Cancelled {
		fmt.Fprintf(out, "Job %s stopped; no subtitles written\n", shortID(result.res.JobID))
		return nil
	}
	fmt.Fprintf(out, "Subtitles written to %s\n", result.res.OutputPath)
	fmt.Fprintf(out, "Language: %s | Segments: %d | Chunks: %d | Job: %s\n",
		displayOrDash(result.res.Language), result.res.Segments, result.res.Chunks, shortID(result.res.JobID))
	if result.res.Filtered > 0 {
		fmt.Fprintf(out, "Dropped %d hallucinated lines\n", result.res.Filtered)
	}
	return nil
}

// watchSignals sets signal on the first SIGINT/SIGTERM so the run stops at
// the next chunk or line boundary. A second signal aborts immediately.
func watchSignals(signal *cancel.Signal, abort context.CancelFunc, out io.Writer) func() {
	ch := make(chan os.Signal, 2)
	ossignal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	quit := make(chan struct{})
	go func() {
		count := 0
		for {
			select {
			case <-quit:
				return
			case <-ch:
				count++
				if count == 1 {
					signal.Set()
					fmt.Fprintln(out, "\nStopping after the current step (press Ctrl+C again to abort)")
					continue
				}
				abort()
				return
			}
		}
	}()
	return func() {
		ossignal.Stop(ch)
		close(quit)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func displayOrDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
