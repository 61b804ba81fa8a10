package translation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"subline/internal/cancel"
	"subline/internal/logging"
	"subline/internal/progress"
	"subline/internal/transcription"
)

// Defaults for the primary provider retry policy.
const (
	DefaultRetries    = 3
	DefaultRetryDelay = time.Second
)

// Observer is told about every provider call.
type Observer interface {
	TranslationAttempt(provider string, err error)
}

// Sleeper waits d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Stage translates transcript segments one at a time, in order.
type Stage struct {
	primary      Provider
	fallback     Provider
	primaryName  string
	fallbackName string
	retries      int
	delay        time.Duration
	sleep        Sleeper
	sink         progress.Sink
	signal       *cancel.Signal
	observer     Observer
	logger       *slog.Logger
}

// Option customizes a Stage.
type Option func(*Stage)

// WithRetries sets how many times the primary provider is tried per segment.
func WithRetries(n int) Option {
	return func(s *Stage) {
		if n > 0 {
			s.retries = n
		}
	}
}

// WithRetryDelay sets the fixed wait between primary attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Stage) {
		if d >= 0 {
			s.delay = d
		}
	}
}

// WithSleeper replaces the wait between attempts.
func WithSleeper(fn Sleeper) Option {
	return func(s *Stage) {
		if fn != nil {
			s.sleep = fn
		}
	}
}

// WithProviderNames labels the providers in logs and metrics.
func WithProviderNames(primary, fallback string) Option {
	return func(s *Stage) {
		s.primaryName = primary
		s.fallbackName = fallback
	}
}

// WithProgress sets the sink that receives "Translation" events.
func WithProgress(sink progress.Sink) Option {
	return func(s *Stage) { s.sink = progress.OrDiscard(sink) }
}

// WithSignal sets the cancellation signal checked before each segment.
func WithSignal(signal *cancel.Signal) Option {
	return func(s *Stage) { s.signal = signal }
}

// WithObserver sets the provider call observer.
func WithObserver(obs Observer) Option {
	return func(s *Stage) { s.observer = obs }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stage) { s.logger = logging.NewComponentLogger(logger, "translation") }
}

// NewStage builds a Stage. Either provider may be nil to skip it.
func NewStage(primary, fallback Provider, opts ...Option) *Stage {
	s := &Stage{
		primary:      primary,
		fallback:     fallback,
		primaryName:  "primary",
		fallbackName: "fallback",
		retries:      DefaultRetries,
		delay:        DefaultRetryDelay,
		sleep:        sleepContext,
		sink:         progress.Discard,
		logger:       logging.NewComponentLogger(nil, "translation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Translate returns a copy of segments with TranslatedText filled in. Each
// segment gets the primary provider's output, else the fallback's, else its
// own Text. It never fails. When cancellation is observed, the remaining
// segments keep a nil TranslatedText.
func (s *Stage) Translate(ctx context.Context, segments []transcription.Segment, target string) []transcription.Segment {
	out := append([]transcription.Segment(nil), segments...)
	total := len(out)
	var fallbacks, passthrough int
	for i := range out {
		if cancel.Requested(ctx, s.signal) {
			s.logger.Info("translation cancelled",
				logging.Int("completed", i),
				logging.Int("segments", total),
				logging.String(logging.FieldEventType, "translation_cancelled"),
			)
			return out
		}
		text, source := s.translateOne(ctx, out[i].Text, target)
		switch source {
		case s.fallbackName:
			fallbacks++
		case "":
			passthrough++
		}
		out[i].TranslatedText = &text
		s.sink.Report(progress.NewEvent(progress.StageTranslation, i+1, total))
	}
	if fallbacks > 0 || passthrough > 0 {
		logging.WarnWithContext(s.logger, "some lines were not translated by the primary provider", "translation_degraded",
			logging.Int("segments", total),
			logging.Int("fallback", fallbacks),
			logging.Int("untranslated", passthrough),
			logging.String(logging.FieldErrorHint, "check provider credentials and quota"),
			logging.String(logging.FieldImpact, "untranslated lines keep their original text"),
		)
	}
	return out
}

// translateOne returns the translated text and the name of the provider that
// produced it, or the original text and "" when every provider failed.
// Blank lines are returned as-is without calling a provider.
func (s *Stage) translateOne(ctx context.Context, text, target string) (string, string) {
	if strings.TrimSpace(text) == "" {
		return text, "blank"
	}
	if s.primary != nil {
		for attempt := 1; attempt <= s.retries; attempt++ {
			translated, err := s.primary.Translate(ctx, text, target)
			s.observe(s.primaryName, err)
			if err == nil {
				return translated, s.primaryName
			}
			s.logger.Debug("primary translation attempt failed",
				logging.String("provider", s.primaryName),
				logging.Int("attempt", attempt),
				logging.Int("max_attempts", s.retries),
				logging.Error(err),
			)
			if attempt < s.retries {
				if err := s.sleep(ctx, s.delay); err != nil {
					break
				}
			}
		}
	}
	if s.fallback != nil {
		translated, err := s.fallback.Translate(ctx, text, target)
		s.observe(s.fallbackName, err)
		if err == nil {
			return translated, s.fallbackName
		}
		s.logger.Debug("fallback translation failed",
			logging.String("provider", s.fallbackName),
			logging.Error(err),
		)
	}
	return text, ""
}

func (s *Stage) observe(provider string, err error) {
	if s.observer != nil {
		s.observer.TranslationAttempt(provider, err)
	}
}
