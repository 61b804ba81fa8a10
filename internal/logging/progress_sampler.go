package logging

import (
	"math"
	"strings"
)

// ProgressSampler thins progress logging to one line per percent bucket,
// always letting the first event of a new stage through.
type ProgressSampler struct {
	bucketSize float64
	stage      string
	bucket     int
}

// NewProgressSampler returns a sampler with the given bucket width in
// percent; non-positive widths fall back to 5.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	s := &ProgressSampler{bucketSize: bucketSize}
	s.Reset()
	return s
}

// ShouldLog reports whether an event is worth a log line. Negative percents
// are unknown progress and only count for stage changes. A nil sampler logs
// everything.
func (s *ProgressSampler) ShouldLog(stage string, percent float64) bool {
	if s == nil {
		return true
	}
	changed := false
	if stage = strings.TrimSpace(stage); stage != s.stage {
		s.stage, s.bucket = stage, -1
		changed = true
	}
	if percent < 0 {
		return changed
	}
	bucket := int(math.Min(percent, 100) / s.bucketSize)
	if bucket <= s.bucket {
		return changed
	}
	s.bucket = bucket
	return true
}

func (s *ProgressSampler) Reset() {
	if s != nil {
		s.stage, s.bucket = "", -1
	}
}
