package preflight

import (
	"context"
	"strings"

	"bookclub/internal/config"
)

// Result is one check's outcome. Required checks stop the daemon from
// starting; the rest only show up in status output.
type Result struct {
	Name     string
	Passed   bool
	Detail   string
	Required bool
}

// RunAll executes every applicable check for cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		required(CheckDirectoryAccess("Data directory", cfg.Paths.DataDir)),
		required(CheckDirectoryAccess("Log directory", cfg.Paths.LogDir)),
		required(CheckDatabaseFile(cfg.DatabasePath())),
	}
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		results = append(results, CheckNtfy(ctx, cfg.Notifications.BaseURL))
	}
	return results
}

// FirstFailure returns the first failed required check, if any.
func FirstFailure(results []Result) (Result, bool) {
	for _, r := range results {
		if r.Required && !r.Passed {
			return r, true
		}
	}
	return Result{}, false
}

func required(r Result) Result {
	r.Required = true
	return r
}
