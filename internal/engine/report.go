package engine

import (
	"log/slog"
	"time"
)

// Report summarizes a run.
type Report struct {
	RunID     string
	Rendered  int
	Unchanged int
	Skipped   int
	Retracted int
	Failed    int
	Tags      int

	// Duplicates counts sources shadowed by a later source with the same id.
	Duplicates int

	Writes   int
	Deletes  int
	Duration time.Duration

	// Errors holds the per-file load failures and failed deletions. None of
	// them aborted the run.
	Errors []error
}

// LogValue implements slog.LogValuer.
func (r *Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("run_id", r.RunID),
		slog.Int("rendered", r.Rendered),
		slog.Int("unchanged", r.Unchanged),
		slog.Int("skipped", r.Skipped),
		slog.Int("retracted", r.Retracted),
		slog.Int("failed", r.Failed),
		slog.Int("tags", r.Tags),
		slog.Int("duplicates", r.Duplicates),
		slog.Int("writes", r.Writes),
		slog.Int("deletes", r.Deletes),
		slog.Duration("duration", r.Duration),
	)
}
