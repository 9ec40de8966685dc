// Package capture brackets a function call and hands the statements it
// executed to the profiler as a flat snapshot.
package capture

import (
	"context"
	"fmt"
	"log/slog"

	"sql-profiler/pkg/profile"
)

// Source is a running query log. Mark returns a position in the log and Since
// returns every record appended after that position.
type Source interface {
	Mark() int
	Since(mark int) ([]profile.RawQueryRecord, error)
}

// Profile runs fn and profiles the statements src saw while it ran.
//
// Whatever was captured is analyzed even when fn fails; fn's error is then
// returned unchanged alongside the (possibly nil) report.
func Profile[T any](ctx context.Context, src Source, opts profile.Options, fn func(context.Context) (T, error)) (T, *profile.Report, error) {
	mark := src.Mark()
	result, fnErr := fn(ctx)

	report, err := analyzeSince(src, mark, opts)
	if fnErr != nil {
		if err != nil {
			slog.Warn("failed to analyze queries of failed call", "error", err)
		}
		return result, report, fnErr
	}
	if err != nil {
		return result, nil, err
	}

	slog.Debug("profiled call", "queries", report.TotalQueries(), "groups", len(report.Groups))
	return result, report, nil
}

// ProfileFunc is Profile for functions without a result.
func ProfileFunc(ctx context.Context, src Source, opts profile.Options, fn func(context.Context) error) (*profile.Report, error) {
	_, report, err := Profile(ctx, src, opts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return report, err
}

func analyzeSince(src Source, mark int, opts profile.Options) (*profile.Report, error) {
	records, err := src.Since(mark)
	if err != nil {
		return nil, fmt.Errorf("failed to read captured queries: %w", err)
	}
	report, err := profile.Analyze(records, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze captured queries: %w", err)
	}
	return report, nil
}
