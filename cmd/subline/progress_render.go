package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	bars "github.com/jedib0t/go-pretty/v6/progress"

	"subline/internal/progress"
)

const (
	barWidth       = 24
	stageNameWidth = 15
)

// progressRenderer prints progress events. On a terminal each stage gets a
// live go-pretty tracker; otherwise it prints one line per stage change and
// per 10% step.
type progressRenderer struct {
	out     io.Writer
	stage   string
	bucket  int
	bars    bars.Writer
	tracker *bars.Tracker
}

func newProgressRenderer(out io.Writer) *progressRenderer {
	return newRenderer(out, isTerminal(out))
}

func newRenderer(out io.Writer, interactive bool) *progressRenderer {
	r := &progressRenderer{out: out, bucket: -1}
	if interactive {
		r.bars = newBarWriter(out)
		go r.bars.Render()
		for !r.bars.IsRenderInProgress() {
			time.Sleep(time.Millisecond)
		}
	}
	return r
}

func newBarWriter(out io.Writer) bars.Writer {
	pw := bars.NewWriter()
	pw.SetOutputWriter(out)
	pw.SetAutoStop(false)
	pw.SetMessageLength(stageNameWidth)
	pw.SetTrackerLength(barWidth)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.SetStyle(bars.StyleDefault)
	pw.Style().Options.PercentFormat = "%5.1f%%"
	pw.Style().Visibility.ETA = false
	pw.Style().Visibility.Speed = false
	pw.Style().Visibility.Time = true
	pw.Style().Visibility.Value = true
	return pw
}

func (r *progressRenderer) Report(e progress.Event) {
	if r.bars != nil {
		r.track(e)
		return
	}
	if e.Stage != r.stage {
		r.stage = e.Stage
		r.bucket = -1
	}
	bucket := int(e.Percent) / 10
	if bucket == r.bucket {
		return
	}
	r.bucket = bucket
	fmt.Fprintln(r.out, formatProgress(e))
}

// track feeds e to the tracker of its stage, closing the previous stage's
// tracker when the stage changes.
func (r *progressRenderer) track(e progress.Event) {
	if e.Stage != r.stage || r.tracker == nil {
		r.markDone()
		r.stage = e.Stage
		r.tracker = &bars.Tracker{Message: e.Stage, Total: int64(e.Total)}
		r.bars.AppendTracker(r.tracker)
	}
	if total := int64(e.Total); total > 0 && total != r.tracker.Total {
		r.tracker.UpdateTotal(total)
	}
	r.tracker.SetValue(int64(e.Current))
}

func (r *progressRenderer) markDone() {
	if r.tracker != nil && !r.tracker.IsDone() {
		r.tracker.MarkAsDone()
	}
}

// Finish stops the live display after its last render. Safe to call twice.
func (r *progressRenderer) Finish() {
	if r.bars == nil {
		return
	}
	r.markDone()
	r.bars.Stop()
	for r.bars.IsRenderInProgress() {
		time.Sleep(10 * time.Millisecond)
	}
	r.bars = nil
}

func formatProgress(e progress.Event) string {
	pct := e.Percent
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct / 100 * barWidth)
	bar := strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled)
	return fmt.Sprintf("%-*s [%s] %5.1f%% (%d/%d)", stageNameWidth, e.Stage, bar, pct, e.Current, e.Total)
}
