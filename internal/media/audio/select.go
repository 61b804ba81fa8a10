package audio

import (
	"strconv"
	"strings"

	"subline/internal/language"
	"subline/internal/media/ffprobe"
)

// Selection describes the audio stream chosen for transcription.
type Selection struct {
	Primary      ffprobe.Stream
	PrimaryIndex int
	Candidates   int
}

// Label returns a human-readable summary of the selected stream.
func (s Selection) Label() string {
	if s.PrimaryIndex < 0 {
		return ""
	}
	return formatStreamSummary(s.Primary)
}

// Select picks the audio stream to transcribe. Streams tagged with the
// language hint win; without a hint (or a match) the default-flagged stream is
// preferred, then higher channel counts, then container order. PrimaryIndex is
// -1 when there are no audio streams.
func Select(streams []ffprobe.Stream, languageHint string) Selection {
	candidates := buildCandidates(streams)
	if len(candidates) == 0 {
		return Selection{PrimaryIndex: -1}
	}

	pool := candidates
	if !language.IsAuto(languageHint) {
		if matched := candidates.matching(languageHint); len(matched) > 0 {
			pool = matched
		}
	}

	best := pool[0]
	bestScore := scorePrimary(best)
	for _, cand := range pool[1:] {
		if score := scorePrimary(cand); score > bestScore {
			best, bestScore = cand, score
		}
	}
	return Selection{Primary: best.stream, PrimaryIndex: best.stream.Index, Candidates: len(candidates)}
}

type candidate struct {
	stream         ffprobe.Stream
	order          int
	language       string
	channels       int
	defaultFlagged bool
	commentary     bool
}

type candidateList []candidate

func (c candidateList) matching(hint string) candidateList {
	var result candidateList
	for _, cand := range c {
		if cand.language != "" && language.Same(cand.language, hint) {
			result = append(result, cand)
		}
	}
	return result
}

func scorePrimary(cand candidate) float64 {
	score := 0.0
	if cand.defaultFlagged {
		score += 1000
	}
	// Commentary and description tracks talk over the program audio.
	if cand.commentary {
		score -= 2000
	}
	// Speech intelligibility is best on a full mix; a stereo downmix is close
	// enough that it only edges out mono.
	switch {
	case cand.channels >= 6:
		score += 300
	case cand.channels >= 2:
		score += 200
	case cand.channels == 1:
		score += 100
	}
	score -= float64(cand.order) * 0.1
	return score
}

func buildCandidates(streams []ffprobe.Stream) candidateList {
	var result candidateList
	order := 0
	for _, stream := range streams {
		if !strings.EqualFold(stream.CodecType, "audio") {
			continue
		}
		title := strings.ToLower(stream.Tags["title"])
		result = append(result, candidate{
			stream:         stream,
			order:          order,
			language:       language.ExtractFromTags(stream.Tags),
			channels:       channelCount(stream),
			defaultFlagged: stream.Disposition["default"] == 1,
			commentary: stream.Disposition["comment"] == 1 ||
				stream.Disposition["visual_impaired"] == 1 ||
				strings.Contains(title, "commentary") ||
				strings.Contains(title, "description"),
		})
		order++
	}
	return result
}

func channelCount(stream ffprobe.Stream) int {
	if stream.Channels > 0 {
		return stream.Channels
	}
	layout := strings.ToLower(strings.TrimSpace(stream.ChannelLayout))
	switch {
	case layout == "":
		return 0
	case layout == "mono":
		return 1
	case layout == "stereo":
		return 2
	}
	total := 0
	for _, part := range strings.Split(layout, ".") {
		part = strings.Trim(part, "abcdefghijklmnopqrstuvwxyz ()")
		if n, err := strconv.Atoi(part); err == nil {
			total += n
		}
	}
	return total
}

func formatStreamSummary(stream ffprobe.Stream) string {
	parts := make([]string, 0, 4)
	if lang := language.ExtractFromTags(stream.Tags); lang != "" {
		parts = append(parts, lang)
	}
	codec := stream.CodecLong
	if codec == "" {
		codec = stream.CodecName
	}
	if codec != "" {
		parts = append(parts, codec)
	}
	if stream.Channels > 0 {
		parts = append(parts, strconv.Itoa(stream.Channels)+"ch")
	}
	if title := strings.TrimSpace(stream.Tags["title"]); title != "" {
		parts = append(parts, title)
	}
	if len(parts) == 0 {
		return "audio"
	}
	return strings.Join(parts, " | ")
}
