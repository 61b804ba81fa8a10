package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// infoAttrLimit caps how many fields an INFO line renders before collapsing
// the rest into a "+N more fields hidden" footer.
const infoAttrLimit = 8

var infoHighlightKeys = []string{
	FieldEventType,
	FieldDecisionType,
	"decision_result",
	"decision_reason",
	FieldErrorHint,
	FieldImpact,
	"error",
	"source",
	"output",
	"language",
	"chunk",
	"chunks",
	"segments",
	"provider",
}

type prettyHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &prettyHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	fields := newFieldSet(record.NumAttrs() + len(h.attrs))
	fields.addAll(h.groups, h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		fields.add(h.groups, attr)
		return true
	})
	component := fields.take(FieldComponent)
	subject := composeSubject(fields.take(FieldJobID), fields.take(FieldStage))

	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s", ts.Format("2006-01-02 15:04:05"), levelLabel(record.Level))
	if component != "" {
		fmt.Fprintf(&buf, " [%s]", component)
	}
	if subject != "" {
		buf.WriteString(" " + subject)
	}
	buf.WriteString(" - " + message)
	if h.addSource && record.PC != 0 {
		if src := record.Source(); src != nil {
			fmt.Fprintf(&buf, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	buf.WriteByte('\n')

	ordered := fields.ordered()
	shown := len(ordered)
	if record.Level >= slog.LevelInfo && shown > infoAttrLimit {
		shown = infoAttrLimit
	}
	for _, item := range ordered[:shown] {
		fmt.Fprintf(&buf, "    - %s: %s\n", item.key, formatValue(item.value))
	}
	switch hidden := len(ordered) - shown; {
	case hidden == 1:
		buf.WriteString("    + 1 more field hidden\n")
	case hidden > 1:
		fmt.Fprintf(&buf, "    + %d more fields hidden\n", hidden)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

// composeSubject renders "Job <id8> (<stage>)" with whichever parts exist.
func composeSubject(jobID, stage string) string {
	jobID = strings.TrimSpace(jobID)
	if len(jobID) > 8 {
		jobID = jobID[:8]
	}
	stage = strings.TrimSpace(stage)
	switch {
	case jobID == "":
		return stage
	case stage == "":
		return "Job " + jobID
	default:
		return fmt.Sprintf("Job %s (%s)", jobID, stage)
	}
}

type kv struct {
	key   string
	value slog.Value
}

// fieldSet keeps flattened attributes in first-seen order; a repeated key
// overwrites the earlier value in place.
type fieldSet struct {
	items []kv
	index map[string]int
}

func newFieldSet(capacity int) *fieldSet {
	return &fieldSet{items: make([]kv, 0, capacity), index: make(map[string]int, capacity)}
}

func (f *fieldSet) addAll(prefix []string, attrs []slog.Attr) {
	for _, attr := range attrs {
		f.add(prefix, attr)
	}
}

func (f *fieldSet) add(prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		if attr.Key != "" {
			prefix = append(append([]string(nil), prefix...), attr.Key)
		}
		f.addAll(prefix, attr.Value.Group())
		return
	}
	key := attr.Key
	if len(prefix) > 0 {
		key = strings.Join(prefix, ".") + "." + key
	}
	if key == "" {
		return
	}
	if pos, ok := f.index[key]; ok {
		f.items[pos].value = attr.Value
		return
	}
	f.index[key] = len(f.items)
	f.items = append(f.items, kv{key: key, value: attr.Value})
}

// take removes key from the set and returns its value as plain text.
func (f *fieldSet) take(key string) string {
	pos, ok := f.index[key]
	if !ok {
		return ""
	}
	value := f.items[pos].value
	f.items[pos].key = ""
	delete(f.index, key)
	return plainValue(value)
}

// ordered lists highlighted keys first, then the rest in arrival order.
func (f *fieldSet) ordered() []kv {
	out := make([]kv, 0, len(f.items))
	highlighted := make(map[string]bool, len(infoHighlightKeys))
	for _, key := range infoHighlightKeys {
		highlighted[key] = true
		if pos, ok := f.index[key]; ok {
			out = append(out, f.items[pos])
		}
	}
	for _, item := range f.items {
		if item.key != "" && !highlighted[item.key] {
			out = append(out, item)
		}
	}
	return out
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func plainValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	default:
		return v.String()
	}
}

// formatValue is plainValue with strings quoted when empty or when they hold
// control characters or quotes.
func formatValue(v slog.Value) string {
	s := plainValue(v)
	if v.Kind() != slog.KindString && v.Kind() != slog.KindAny {
		return s
	}
	if s == "" || strings.IndexFunc(s, func(r rune) bool { return r < ' ' || r == '"' }) >= 0 {
		return strconv.Quote(s)
	}
	return s
}
