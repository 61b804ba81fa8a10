package preflight

import (
	"context"
	"fmt"
	"strings"

	"subline/internal/config"
	"subline/internal/deps"
	"subline/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks a run cannot proceed without: writable
// directories and required binaries for the configured engine.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
	}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	for _, status := range deps.Missing(CheckSystemDeps(ctx, cfg)) {
		results = append(results, Result{Name: status.Name, Detail: status.Detail})
	}
	return results
}

// Err folds failed results into a single configuration error, or nil.
func Err(results []Result) error {
	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "Preflight", "checks", strings.Join(failed, "; "), nil)
}
