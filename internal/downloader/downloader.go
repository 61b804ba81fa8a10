// Package downloader resolves a job's media source to a local file, fetching
// remote URLs with yt-dlp.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"subline/internal/cmdrun"
	"subline/internal/logging"
	"subline/internal/services"
)

const stageName = "Acquisition"

// Kind classifies an acquisition failure.
type Kind string

// Failure kinds.
const (
	KindNetwork         Kind = "network"
	KindDownloader      Kind = "downloader"
	KindAudioConversion Kind = "audio_conversion"
	KindLocalFile       Kind = "local_file"
)

// Error is an acquisition failure. It matches services.ErrAcquisition.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", services.ErrAcquisition, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the acquisition marker and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrAcquisition}
	}
	return []error{services.ErrAcquisition, e.Err}
}

// Temporary reports whether the failure may clear up on retry.
func (e *Error) Temporary() bool {
	return e.Kind == KindNetwork
}

// networkMarkers appear in yt-dlp output when the host could not be reached.
var networkMarkers = []string{
	"unable to download webpage",
	"name or service not known",
	"temporary failure in name resolution",
	"nodename nor servname provided",
	"getaddrinfo failed",
	"network is unreachable",
	"connection refused",
	"connection reset",
	"timed out",
	"http error 5",
	"http error 429",
}

var conversionMarkers = []string{
	"postprocessing",
	"ffprobe and ffmpeg not found",
	"audio conversion failed",
}

// Source is a media file ready for conversion.
type Source struct {
	Path string
	// Title names the media for the output file: the remote title, or the
	// local file's base name.
	Title  string
	ID     string
	Remote bool
}

// Downloader fetches remote media and validates local files.
type Downloader struct {
	binary      string
	audioFormat string
	run         cmdrun.Runner
	logger      *slog.Logger
}

// New builds a Downloader. binary defaults to yt-dlp and audioFormat to mp3.
func New(binary, audioFormat string, logger *slog.Logger) *Downloader {
	if strings.TrimSpace(binary) == "" {
		binary = "yt-dlp"
	}
	if strings.TrimSpace(audioFormat) == "" {
		audioFormat = "mp3"
	}
	return &Downloader{
		binary:      binary,
		audioFormat: audioFormat,
		run:         cmdrun.Exec,
		logger:      logging.NewComponentLogger(logger, "downloader"),
	}
}

// WithRunner swaps the command runner (tests).
func (d *Downloader) WithRunner(r cmdrun.Runner) *Downloader {
	d.run = cmdrun.OrExec(r)
	return d
}

// IsURL reports whether source is an http(s) URL rather than a file path.
func IsURL(source string) bool {
	u, err := url.Parse(strings.TrimSpace(source))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Acquire returns a local file for source, downloading into workDir when
// source is a URL.
func (d *Downloader) Acquire(ctx context.Context, source, workDir string) (Source, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return Source{}, services.Wrap(services.ErrValidation, stageName, "acquire", "source is required", nil)
	}
	if IsURL(source) {
		return d.Download(ctx, source, workDir)
	}
	return Local(source)
}

// Local validates a local media file.
func Local(path string) (Source, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return Source{}, &Error{Kind: KindLocalFile, Message: fmt.Sprintf("file %q does not exist", path)}
	case err != nil:
		return Source{}, &Error{Kind: KindLocalFile, Message: fmt.Sprintf("stat %q", path), Err: err}
	case info.IsDir():
		return Source{}, &Error{Kind: KindLocalFile, Message: fmt.Sprintf("%q is a directory", path)}
	}
	f, err := os.Open(path)
	if err != nil {
		return Source{}, &Error{Kind: KindLocalFile, Message: fmt.Sprintf("file %q is not readable", path), Err: err}
	}
	_ = f.Close()
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	base := filepath.Base(abs)
	return Source{Path: abs, Title: strings.TrimSuffix(base, filepath.Ext(base))}, nil
}

// Download extracts the best audio track of url into workDir as
// <id>.<audio format>.
func (d *Downloader) Download(ctx context.Context, rawURL, workDir string) (Source, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return Source{}, &Error{Kind: KindDownloader, Message: fmt.Sprintf("failed to create directory %q", workDir), Err: err}
	}
	d.logger.Info("downloading audio",
		logging.String("url", rawURL),
		logging.String("work_dir", workDir),
		logging.String(logging.FieldEventType, "download_started"),
	)
	output, err := d.run(ctx, d.binary, d.args(rawURL, workDir)...)
	if err != nil {
		return Source{}, classify(err)
	}

	src, ok := parsePrinted(string(output))
	if !ok || src.Path == "" {
		return Source{}, &Error{Kind: KindDownloader, Message: "yt-dlp did not report the downloaded file"}
	}
	if src.ID != "" {
		// Post-processing renames to the requested extension.
		expected := filepath.Join(workDir, src.ID+"."+d.audioFormat)
		if _, statErr := os.Stat(expected); statErr == nil {
			src.Path = expected
		}
	}
	if _, err := os.Stat(src.Path); err != nil {
		return Source{}, &Error{Kind: KindAudioConversion, Message: "audio conversion failed", Err: err}
	}
	src.Remote = true
	if src.Title == "" {
		src.Title = src.ID
	}
	d.logger.Info("download complete",
		logging.String("path", src.Path),
		logging.String("title", src.Title),
		logging.String(logging.FieldEventType, "download_completed"),
	)
	return src, nil
}

func (d *Downloader) args(rawURL, workDir string) []string {
	return []string{
		"--format", "bestaudio/best",
		"--no-playlist",
		"--restrict-filenames",
		"--extract-audio",
		"--audio-format", d.audioFormat,
		"--audio-quality", "192K",
		"--output", filepath.Join(workDir, "%(id)s.%(ext)s"),
		"--no-simulate",
		"--print", "after_move:%(id)s\t%(filepath)s\t%(title)s",
		"--no-progress",
		"--no-warnings",
		rawURL,
	}
}

// parsePrinted finds the id/path/title line printed after post-processing.
func parsePrinted(output string) (Source, bool) {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		parts := strings.SplitN(strings.TrimRight(lines[i], "\r"), "\t", 3)
		if len(parts) != 3 {
			continue
		}
		return Source{ID: strings.TrimSpace(parts[0]), Path: strings.TrimSpace(parts[1]), Title: strings.TrimSpace(parts[2])}, true
	}
	return Source{}, false
}

func classify(err error) error {
	text := strings.ToLower(cmdrun.Output(err) + " " + err.Error())
	for _, marker := range networkMarkers {
		if strings.Contains(text, marker) {
			return &Error{Kind: KindNetwork, Message: "network error while downloading", Err: err}
		}
	}
	for _, marker := range conversionMarkers {
		if strings.Contains(text, marker) {
			return &Error{Kind: KindAudioConversion, Message: "audio conversion failed", Err: err}
		}
	}
	return &Error{Kind: KindDownloader, Message: "yt-dlp failed", Err: err}
}
