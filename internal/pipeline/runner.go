package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"subline/internal/cancel"
	"subline/internal/config"
	"subline/internal/downloader"
	"subline/internal/fileutil"
	"subline/internal/history"
	"subline/internal/logging"
	"subline/internal/media/audio"
	"subline/internal/media/ffprobe"
	"subline/internal/metrics"
	"subline/internal/notifications"
	"subline/internal/preflight"
	"subline/internal/progress"
	"subline/internal/recognition"
	"subline/internal/segmenter"
	"subline/internal/services"
	"subline/internal/subtitles"
	"subline/internal/textutil"
	"subline/internal/transcription"
	"subline/internal/translation"
)

// Stage names recorded in job history and log fields.
const (
	StageAcquisition   = "Acquisition"
	StageConversion    = "Conversion"
	StageSegmentation  = progress.StageChunkCreation
	StageTranscription = progress.StageTranscription
	StageFiltering     = "Filtering"
	StageTranslation   = progress.StageTranslation
	StageOutput        = "Output"
)

// Acquirer resolves a source (URL or local path) into a local media file.
type Acquirer interface {
	Acquire(ctx context.Context, source, workDir string) (downloader.Source, error)
}

// MediaConverter converts media into recognizer-ready audio and cuts chunks
// out of it.
type MediaConverter interface {
	Convert(ctx context.Context, source, dest string, opts audio.Options) (string, error)
	segmenter.Prober
	segmenter.Extractor
}

// Request describes one run. Zero fields fall back to the configuration.
type Request struct {
	Source string
	// Title names the output file; the acquired title is used when empty.
	Title string
	// Language is a recognition hint; "" or "auto" detects it.
	Language string
	Format   string
	// OutputPath overrides <output_dir>/<title>.<format>.
	OutputPath string
	// TranslateTo enables translation into the given language for this run.
	TranslateTo string
	NoTranslate bool

	Progress progress.Sink
	Signal   *cancel.Signal
}

// Result summarizes a finished run.
type Result struct {
	JobID      string
	Status     string
	Title      string
	Language   string
	OutputPath string
	Chunks     int
	Segments   int
	Filtered   int
	Cancelled  bool
	Elapsed    time.Duration
}

type providerPair struct {
	primary  translation.Provider
	fallback translation.Provider
}

// Runner executes transcription jobs against one configuration. Runs are
// serialized by the recognition Host; a Runner may be shared.
type Runner struct {
	cfg       *config.Config
	logger    *slog.Logger
	acquirer  Acquirer
	converter MediaConverter
	host      *recognition.Host
	history   *history.Store
	metrics   *metrics.Recorder
	notifier  notifications.Notifier
	providers *providerPair
	sleep     translation.Sleeper
	checks    func(context.Context) error
	newID     func() string
	beat      time.Duration
}

// Option customizes a Runner.
type Option func(*Runner)

// WithAcquirer replaces the downloader.
func WithAcquirer(a Acquirer) Option {
	return func(r *Runner) { r.acquirer = a }
}

// WithConverter replaces the ffmpeg-backed converter.
func WithConverter(c MediaConverter) Option {
	return func(r *Runner) { r.converter = c }
}

// WithHost replaces the recognition model host.
func WithHost(h *recognition.Host) Option {
	return func(r *Runner) { r.host = h }
}

// WithHistory records jobs in store.
func WithHistory(store *history.Store) Option {
	return func(r *Runner) { r.history = store }
}

// WithMetrics feeds run metrics to rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(r *Runner) { r.metrics = rec }
}

// WithNotifier replaces the ntfy notifier built from the config.
func WithNotifier(n notifications.Notifier) Option {
	return func(r *Runner) { r.notifier = n }
}

// WithTranslationProviders replaces the configured translation providers.
func WithTranslationProviders(primary, fallback translation.Provider) Option {
	return func(r *Runner) { r.providers = &providerPair{primary: primary, fallback: fallback} }
}

// WithSleeper replaces the wait between translation attempts.
func WithSleeper(fn translation.Sleeper) Option {
	return func(r *Runner) { r.sleep = fn }
}

// WithPreflight replaces the readiness checks run before each job. nil
// disables them.
func WithPreflight(check func(context.Context) error) Option {
	return func(r *Runner) { r.checks = check }
}

// WithIDGenerator replaces the job ID source.
func WithIDGenerator(fn func() string) Option {
	return func(r *Runner) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// New builds a Runner wired to the real external tools described by cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Runner{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		newID:  uuid.NewString,
		beat:   heartbeatInterval,
	}
	r.acquirer = downloader.New(cfg.Download.YTDLPBinary, cfg.Download.AudioFormat, logger)
	r.converter = audio.NewConverter(cfg.FFmpegBinary(), ffprobe.New(cfg.FFprobeBinary()), logger)
	r.host = recognition.NewHost(recognition.NewLoader(cfg, ""), cfg.LockDir(), logger)
	r.notifier = notifications.NewService(cfg)
	r.checks = func(ctx context.Context) error {
		return preflight.Err(preflight.RunAll(ctx, cfg))
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Host returns the recognition model host.
func (r *Runner) Host() *recognition.Host { return r.host }

// Run executes req. A run stopped by the cancellation signal returns a nil
// error with Result.Cancelled set and writes no output file.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Source) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "Pipeline", "run", "source is required", nil)
	}
	started := time.Now()
	jobID := r.newID()
	ctx = services.WithJobID(ctx, jobID)

	var closer io.Closer = io.NopCloser(nil)
	logger, jobCloser, err := logging.OpenJobLog(r.logger, r.cfg.Paths.LogDir, jobID)
	if err != nil {
		logging.WarnWithContext(r.logger, "job log unavailable", "job_log_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this run is only logged to the main log"),
		)
		logger = r.logger.With(logging.String(logging.FieldJobID, jobID))
	} else {
		closer = jobCloser
	}
	defer closer.Close()

	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = r.cfg.Transcription.Language
	}
	res := Result{JobID: jobID}

	if r.history != nil {
		reclaimAbandoned(ctx, r.history, logger)
		if _, err := r.history.Create(ctx, jobID, req.Source, language); err != nil {
			return res, services.Wrap(services.ErrConfiguration, "Pipeline", "record job", "Could not write job history", err)
		}
		beatCtx, stopBeat := context.WithCancel(ctx)
		defer stopBeat()
		go heartbeat(beatCtx, r.history, jobID, r.beat, logger)
	}
	finishRun := func(string) {}
	if r.metrics != nil {
		finishRun = r.metrics.RunStarted()
	}

	logger.Info("job started",
		logging.String("source", req.Source),
		logging.String("language", language),
		logging.String(logging.FieldEventType, "job_started"),
	)

	runErr := r.execute(ctx, req, language, &res, logger)
	res.Elapsed = time.Since(started)
	res.Status = services.FailureStatus(runErr)
	if res.Cancelled && runErr == nil {
		res.Status = services.StatusCancelled
	}
	finishRun(res.Status)
	r.record(context.WithoutCancel(ctx), &res, runErr, logger)
	r.notify(context.WithoutCancel(ctx), req, res, runErr, logger)

	switch {
	case runErr != nil:
		logging.ErrorWithContext(logger, "job failed", "job_failed",
			logging.String("status", res.Status),
			logging.String("failure_kind", services.FailureKind(runErr)),
			logging.Bool("retryable", services.Retryable(runErr)),
			logging.Error(runErr),
		)
	case res.Cancelled:
		logger.Info("job cancelled",
			logging.Duration("elapsed", res.Elapsed),
			logging.String(logging.FieldEventType, "job_cancelled"),
		)
	default:
		logger.Info("job completed",
			logging.String("output", res.OutputPath),
			logging.String("language", res.Language),
			logging.Int("segments", res.Segments),
			logging.Duration("elapsed", res.Elapsed),
			logging.String(logging.FieldEventType, "job_completed"),
		)
	}
	return res, runErr
}

func (r *Runner) execute(ctx context.Context, req Request, language string, res *Result, logger *slog.Logger) error {
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = r.cfg.Output.Format
	}
	switch format {
	case config.FormatSRT, config.FormatVTT, config.FormatTXT:
	default:
		return services.Wrap(services.ErrValidation, "Pipeline", "format", fmt.Sprintf("unsupported output format %q", format), nil)
	}

	if err := r.cfg.EnsureDirectories(); err != nil {
		return services.Wrap(services.ErrAcquisition, StageAcquisition, "ensure directories", "Could not create configured directories", err)
	}
	if r.checks != nil {
		if err := r.checks(ctx); err != nil {
			return err
		}
	}

	sink := progress.OrDiscard(req.Progress)
	signal := req.Signal
	stopped := func() bool {
		if cancel.Requested(ctx, signal) {
			res.Cancelled = true
			return true
		}
		return false
	}

	target, reason, translate := r.translationTarget(req)
	var translator *translation.Stage
	if translate {
		translator = r.translationStage(sink, signal, logger.With(logging.String(logging.FieldStage, StageTranslation)))
		if translator == nil {
			translate, reason = false, "no usable translation provider"
		}
	}
	decision := "skip"
	if translate {
		decision = "translate"
	}
	logger.Info("translation decision", logging.Args(logging.DecisionAttrs("translation", decision, reason)...)...)

	workDir := filepath.Join(r.cfg.Paths.WorkDir, res.JobID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return services.Wrap(services.ErrAcquisition, StageAcquisition, "ensure work dir", "Could not create working directory", err)
	}
	if r.cfg.Output.DeleteTempFiles {
		defer func() {
			if err := os.RemoveAll(workDir); err != nil {
				logger.Warn("temp cleanup failed", logging.String("dir", workDir), logging.Error(err))
			}
		}()
	}
	if stopped() {
		return nil
	}

	stageLogger := r.enterStage(ctx, res.JobID, StageAcquisition, logger)
	src, err := r.acquirer.Acquire(ctx, req.Source, workDir)
	if err != nil {
		return err
	}
	res.Title = strings.TrimSpace(req.Title)
	if res.Title == "" {
		res.Title = src.Title
	}
	stageLogger.Info("source ready", logging.String("path", src.Path), logging.Bool("remote", src.Remote))
	if stopped() {
		return nil
	}

	r.enterStage(ctx, res.JobID, StageConversion, logger)
	wav, err := r.converter.Convert(ctx, src.Path, filepath.Join(workDir, "audio.wav"), audio.Options{
		Normalize:    r.cfg.Audio.Normalize,
		ReduceNoise:  r.cfg.Audio.ReduceNoise,
		TrimSilence:  r.cfg.Audio.TrimSilence,
		LanguageHint: language,
	})
	if err != nil {
		return err
	}
	if stopped() {
		return nil
	}

	stageLogger = r.enterStage(ctx, res.JobID, StageSegmentation, logger)
	split := segmenter.New(r.converter, r.converter,
		segmenter.WithDir(filepath.Join(workDir, "chunks")),
		segmenter.WithProgress(sink),
		segmenter.WithSignal(signal),
		segmenter.WithLogger(stageLogger),
	)
	chunks, err := split.Split(ctx, wav, float64(r.cfg.Transcription.ChunkLength))
	removeChunks := func() {
		if err := segmenter.Remove(chunks); err != nil {
			logger.Warn("chunk cleanup failed", logging.Error(err))
		}
	}
	defer removeChunks()
	res.Chunks = len(chunks)
	if err != nil {
		return err
	}
	if stopped() {
		return nil
	}

	stageLogger = r.enterStage(ctx, res.JobID, StageTranscription, logger)
	segments, detected, err := r.transcribe(ctx, chunks, language, sink, signal, stageLogger)
	removeChunks()
	res.Language = detected
	if err != nil {
		return err
	}
	if stopped() {
		return nil
	}

	if r.cfg.Output.FilterHallucinations {
		stageLogger = r.enterStage(ctx, res.JobID, StageFiltering, logger)
		var stats subtitles.FilterStats
		segments, stats = subtitles.FilterHallucinations(segments, audioSpan(chunks))
		res.Filtered = stats.Removed()
		subtitles.LogFilterStats(stageLogger, stats, len(segments))
	}
	res.Segments = len(segments)

	if translate && len(segments) > 0 {
		r.enterStage(ctx, res.JobID, StageTranslation, logger)
		segments = translator.Translate(ctx, segments, target)
		if stopped() {
			return nil
		}
	}

	stageLogger = r.enterStage(ctx, res.JobID, StageOutput, logger)
	doc, err := subtitles.Build(format, segments)
	if err != nil {
		if errors.Is(err, services.ErrSubtitleStructure) {
			logging.WarnWithContext(stageLogger, "no usable subtitle entries", "empty_transcript",
				logging.Int("segments", len(segments)),
				logging.String(logging.FieldErrorHint, "check the language hint and audio filters"),
				logging.String(logging.FieldImpact, "no subtitle file is written"),
			)
		}
		return err
	}
	outPath := strings.TrimSpace(req.OutputPath)
	if outPath == "" {
		outPath = filepath.Join(r.cfg.Paths.OutputDir, textutil.OutputBase(res.Title, req.Source)+"."+subtitles.Extension(format))
	}
	if err := fileutil.WriteFileAtomic(outPath, []byte(doc), 0o644); err != nil {
		return services.Wrap(services.ErrAcquisition, StageOutput, "write subtitles", "Could not write the subtitle file", err)
	}
	res.OutputPath = outPath
	stageLogger.Info("subtitles written",
		logging.String("path", outPath),
		logging.String("format", format),
		logging.String(logging.FieldEventType, "output_written"),
	)
	return nil
}

func (r *Runner) enterStage(ctx context.Context, jobID, stage string, logger *slog.Logger) *slog.Logger {
	stageLogger := logger.With(logging.String(logging.FieldStage, stage))
	stageLogger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
	if r.history != nil {
		if err := r.history.SetStage(ctx, jobID, stage); err != nil {
			stageLogger.Warn("failed to record stage", logging.Error(err))
		}
	}
	return stageLogger
}

func (r *Runner) transcribe(ctx context.Context, chunks []segmenter.AudioChunk, language string, sink progress.Sink, signal *cancel.Signal, logger *slog.Logger) ([]transcription.Segment, string, error) {
	lease, err := r.host.Acquire(ctx, recognition.Variant(r.cfg))
	if err != nil {
		return nil, "", err
	}
	defer lease.Release()

	opts := []transcription.Option{
		transcription.WithProgress(sink),
		transcription.WithSignal(signal),
		transcription.WithLogger(logger),
	}
	if r.metrics != nil {
		opts = append(opts, transcription.WithObserver(r.metrics))
	}
	segments, detected, err := transcription.NewOrchestrator(lease, opts...).Transcribe(ctx, chunks, language)
	lease.Release()
	if errors.Is(err, services.ErrEngineFault) {
		// A faulted engine may hold bad state; reload it on the next run.
		if invErr := r.host.Invalidate(context.WithoutCancel(ctx)); invErr != nil {
			logger.Warn("model invalidation failed", logging.Error(invErr))
		}
	}
	return segments, detected, err
}

// translationTarget resolves the target language and the reason for the
// choice. Request flags override the config.
func (r *Runner) translationTarget(req Request) (string, string, bool) {
	if req.NoTranslate {
		return "", "disabled for this run", false
	}
	if target := strings.TrimSpace(req.TranslateTo); target != "" {
		return target, "requested for this run", true
	}
	if r.cfg.Translation.Enabled {
		return r.cfg.Translation.TargetLanguage, "enabled in config", true
	}
	return "", "disabled in config", false
}

// translationStage builds the translation stage for one run. Providers that
// cannot be built are reported and left out; nil means no provider is usable
// and every line keeps its original text.
func (r *Runner) translationStage(sink progress.Sink, signal *cancel.Signal, logger *slog.Logger) *translation.Stage {
	opts := []translation.Option{
		translation.WithProgress(sink),
		translation.WithSignal(signal),
		translation.WithLogger(logger),
	}
	if r.metrics != nil {
		opts = append(opts, translation.WithObserver(r.metrics))
	}
	if r.sleep != nil {
		opts = append(opts, translation.WithSleeper(r.sleep))
	}
	if r.providers != nil {
		if r.providers.primary == nil && r.providers.fallback == nil {
			return nil
		}
		base := []translation.Option{
			translation.WithProviderNames(r.cfg.Translation.Primary, r.cfg.Translation.Fallback),
			translation.WithRetries(r.cfg.Translation.Retries),
			translation.WithRetryDelay(time.Duration(r.cfg.Translation.RetryDelaySeconds) * time.Second),
		}
		return translation.NewStage(r.providers.primary, r.providers.fallback, append(base, opts...)...)
	}
	stage, err := translation.NewStageFromConfig(r.cfg, opts...)
	if err != nil {
		impact := "lines go to the remaining provider"
		if stage == nil {
			impact = "subtitles keep the transcribed language"
		}
		logging.WarnWithContext(logger, "translation provider unavailable", "translation_provider_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "set the provider api_key or pick another provider in [translation]"),
			logging.String(logging.FieldImpact, impact),
		)
	}
	return stage
}

func (r *Runner) record(ctx context.Context, res *Result, runErr error, logger *slog.Logger) {
	if r.history == nil {
		return
	}
	update := history.Update{
		DetectedLanguage: &res.Language,
		ChunkCount:       &res.Chunks,
		SegmentCount:     &res.Segments,
		OutputPath:       &res.OutputPath,
	}
	if err := r.history.Apply(ctx, res.JobID, update); err != nil {
		logger.Warn("failed to record job result", logging.Error(err))
	}
	if err := r.history.Finish(ctx, res.JobID, runErr, res.Cancelled); err != nil {
		logger.Warn("failed to record job status", logging.Error(err))
	}
}

func (r *Runner) notify(ctx context.Context, req Request, res Result, runErr error, logger *slog.Logger) {
	if r.notifier == nil {
		return
	}
	err := r.notifier.JobFinished(ctx, notifications.Summary{
		JobID:      res.JobID,
		Title:      res.Title,
		Source:     req.Source,
		Status:     res.Status,
		OutputPath: res.OutputPath,
		Segments:   res.Segments,
		Elapsed:    res.Elapsed,
		Err:        runErr,
	})
	if err != nil {
		logging.WarnWithContext(logger, "job notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the job result is unaffected"),
		)
	}
}

// audioSpan is the total audio length covered by chunks, in seconds.
func audioSpan(chunks []segmenter.AudioChunk) float64 {
	if len(chunks) == 0 {
		return 0
	}
	last := chunks[len(chunks)-1]
	return last.StartOffset + last.Duration
}
