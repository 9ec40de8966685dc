package logs

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"sql-profiler/pkg/profile"
)

// ExecutionTimeMarker terminates a statement in captured stdout.
const ExecutionTimeMarker = "Execution time:"

var numberRegex = regexp.MustCompile(`[0-9.]+`)

// ParseExecutionLog rebuilds raw records from captured output where each SQL
// statement is followed by an "Execution time: ..." line. Lines after the
// last marker belong to no statement and are dropped.
//
// The duration is the first run of digits and dots after the marker, not the
// first in the line, so a timestamp prefix such as "12:00:01 Execution time:
// 3ms" yields 3.
func ParseExecutionLog(r io.Reader) ([]profile.RawQueryRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var records []profile.RawQueryRecord
	var pending []string
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if !strings.Contains(line, ExecutionTimeMarker) {
			pending = append(pending, line)
			continue
		}

		sql := strings.Join(pending, "\n")
		pending = pending[:0]

		duration, err := extractDuration(line)
		if err != nil {
			return nil, &profile.RecordError{
				Index: len(records),
				SQL:   sql,
				Err:   fmt.Errorf("line %d: %w", lineNo, err),
			}
		}
		records = append(records, profile.RawQueryRecord{SQL: sql, Time: duration})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read execution log: %w", err)
	}

	if len(pending) > 0 {
		slog.Debug("discarding unterminated statement", "lines", len(pending), "records", len(records))
	}
	return records, nil
}

// ParseExecutionLogString is ParseExecutionLog over an in-memory capture.
func ParseExecutionLogString(s string) ([]profile.RawQueryRecord, error) {
	return ParseExecutionLog(strings.NewReader(s))
}

// extractDuration keeps the first run of digits and dots from a marker line.
func extractDuration(line string) (string, error) {
	digits := numberRegex.FindString(line[strings.Index(line, ExecutionTimeMarker):])
	if digits == "" || strings.Count(digits, ".") > 1 || strings.Trim(digits, ".") == "" {
		return "", fmt.Errorf("%w: invalid execution time in %q", profile.ErrMalformedRecord, strings.TrimSpace(line))
	}
	return digits, nil
}
