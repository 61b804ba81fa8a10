// Package deps reports whether the external binaries subline shells out to
// are installed.
package deps

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"subline/internal/cmdrun"
)

// Requirement defines an external binary subline relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// VersionArgs, when set, are passed to the binary to capture a version line.
	VersionArgs []string
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Version     string
	Detail      string
}

// Checker resolves and probes requirements.
type Checker struct {
	lookPath func(string) (string, error)
	run      cmdrun.Runner
}

// NewChecker returns a Checker backed by PATH lookups and real processes.
func NewChecker() *Checker {
	return &Checker{lookPath: exec.LookPath, run: cmdrun.Exec}
}

// WithRunner overrides the runner used for version probes.
func (c *Checker) WithRunner(run cmdrun.Runner) *Checker {
	c.run = cmdrun.OrExec(run)
	return c
}

// CheckBinaries evaluates requirements using PATH lookups.
func CheckBinaries(ctx context.Context, requirements []Requirement) []Status {
	return NewChecker().Check(ctx, requirements)
}

// Check evaluates the provided requirements and reports availability.
func (c *Checker) Check(ctx context.Context, requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, c.check(ctx, req))
	}
	return results
}

func (c *Checker) check(ctx context.Context, req Requirement) Status {
	cmd := strings.TrimSpace(req.Command)
	status := Status{
		Name:        req.Name,
		Command:     cmd,
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if cmd == "" {
		status.Detail = "command not configured"
		return status
	}
	resolved, err := c.lookPath(cmd)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", cmd)
		return status
	}
	status.Command = resolved
	status.Available = true
	if len(req.VersionArgs) > 0 {
		status.Version = c.version(ctx, resolved, req.VersionArgs)
	}
	return status
}

func (c *Checker) version(ctx context.Context, command string, args []string) string {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out, err := c.run(probeCtx, command, args...)
	if err != nil {
		return ""
	}
	line, _, _ := bytes.Cut(bytes.TrimSpace(out), []byte("\n"))
	return strings.TrimSpace(string(line))
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}
