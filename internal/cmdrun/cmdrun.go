// Package cmdrun executes external tools (ffmpeg, ffprobe, yt-dlp, uvx) and
// lets tests substitute a fake runner.
package cmdrun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Runner executes name with args and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Exec runs the command with the current environment.
func Exec(ctx context.Context, name string, args ...string) ([]byte, error) {
	return run(ctx, nil, name, args...)
}

// WithEnv returns a Runner that appends extra to the process environment.
func WithEnv(extra ...string) Runner {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return run(ctx, extra, name, args...)
	}
}

// OrExec returns r, or Exec when r is nil.
func OrExec(r Runner) Runner {
	if r == nil {
		return Exec
	}
	return r
}

// Error reports a failed command together with its trimmed output.
type Error struct {
	Name   string
	Output string
	Err    error
}

func (e *Error) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Name, e.Err, e.Output)
}

func (e *Error) Unwrap() error { return e.Err }

// Output returns the captured output of a failed command, if err carries one.
func Output(err error) string {
	var cmdErr *Error
	if errors.As(err, &cmdErr) {
		return cmdErr.Output
	}
	return ""
}

func run(ctx context.Context, extraEnv []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if len(extraEnv) > 0 {
		cmd.Env = append(os.Environ(), extraEnv...)
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, &Error{Name: name, Output: strings.TrimSpace(string(output)), Err: err}
	}
	return output, nil
}
