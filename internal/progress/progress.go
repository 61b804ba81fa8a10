// Package progress defines the progress events a job emits and the sinks
// that receive them.
//
// Stages write progress and never read it back. A Sink implementation decides
// what happens to the event: a callback, a channel feeding a terminal
// renderer, or sampled log lines.
package progress

import (
	"log/slog"
	"sync"

	"subline/internal/logging"
)

// Stage names reported in Event.Stage.
const (
	StageChunkCreation = "Chunk Creation"
	StageTranscription = "Transcription"
	StageTranslation   = "Translation"
)

// Event is a single progress report for one completed unit of work.
type Event struct {
	Percent float64
	Current int
	Total   int
	Stage   string
}

// NewEvent builds the event reported after unit current (1-based) of total.
func NewEvent(stage string, current, total int) Event {
	pct := 100.0
	if total > 0 {
		pct = float64(current) / float64(total) * 100
	}
	return Event{Percent: pct, Current: current, Total: total, Stage: stage}
}

// Sink receives progress events. Report is called synchronously from the
// stage goroutine, in order.
type Sink interface {
	Report(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Report calls f(e).
func (f SinkFunc) Report(e Event) {
	if f != nil {
		f(e)
	}
}

// Discard drops every event.
var Discard Sink = SinkFunc(nil)

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

// ChannelSink forwards events to a channel. Report blocks until the consumer
// receives, so every event is delivered; the consumer must drain Events until
// Close is called.
type ChannelSink struct {
	ch     chan Event
	mu     sync.Mutex
	closed bool
}

// NewChannelSink creates a channel sink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelSink{ch: make(chan Event, buffer)}
}

// Report sends e to the channel. Events reported after Close are dropped.
func (c *ChannelSink) Report(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.ch <- e
}

// Events returns the receive side of the sink.
func (c *ChannelSink) Events() <-chan Event {
	return c.ch
}

// Close closes the channel. It is safe to call more than once.
func (c *ChannelSink) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

// LogSink writes sampled progress events to a logger.
type LogSink struct {
	logger  *slog.Logger
	sampler *logging.ProgressSampler
	mu      sync.Mutex
}

// NewLogSink logs progress at info level, once per stage change and once per
// bucketPercent step.
func NewLogSink(logger *slog.Logger, bucketPercent float64) *LogSink {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LogSink{logger: logger, sampler: logging.NewProgressSampler(bucketPercent)}
}

// Report implements Sink.
func (l *LogSink) Report(e Event) {
	l.mu.Lock()
	emit := l.sampler.ShouldLog(e.Stage, e.Percent)
	l.mu.Unlock()
	if !emit {
		return
	}
	l.logger.Info("progress",
		logging.String(logging.FieldStage, e.Stage),
		logging.Int("current", e.Current),
		logging.Int("total", e.Total),
		logging.Float64("percent", e.Percent),
		logging.String(logging.FieldEventType, "progress"),
	)
}

type multiSink []Sink

func (m multiSink) Report(e Event) {
	for _, s := range m {
		s.Report(e)
	}
}

// Multi returns a sink that reports to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

// Recorder keeps every reported event. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Report implements Sink.
func (r *Recorder) Report(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Stage returns the recorded events for one stage.
func (r *Recorder) Stage(stage string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Stage == stage {
			out = append(out, e)
		}
	}
	return out
}
