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

// gorm's default logger prints "[0.490ms] [rows:0] SELECT ..." after the caller line
var gormTraceRegex = regexp.MustCompile(`(?s)^\[(\d+(?:\.\d+)?)ms\]\s+\[rows:(?:-|\d+)\]\s+(.*)$`)

var durationFields = []string{"duration", "duration_ms", "elapsed", "elapsed_ms"}

// ExtractQueries reads application log output and returns one raw record per
// logged SQL statement. It understands "[sql]: <statement> duration=..."
// entries, entries with type=query, JSON lines carrying a "sql" field and
// gorm's "[1.2ms] [rows:N] <statement>" trace lines. Indented lines continue
// the previous entry.
func ExtractQueries(r io.Reader) ([]profile.RawQueryRecord, error) {
	entries, err := readEntries(r)
	if err != nil {
		return nil, err
	}

	var records []profile.RawQueryRecord
	for _, raw := range entries {
		rec, ok, err := queryFromEntry(raw)
		if err != nil {
			return nil, &profile.RecordError{Index: len(records), SQL: raw, Err: err}
		}
		if ok {
			records = append(records, rec)
		}
	}

	slog.Debug("extracted queries from log", "entries", len(entries), "queries", len(records))
	return records, nil
}

func readEntries(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var entries []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			entries = append(entries, current.String())
			current.Reset()
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if current.Len() > 0 && (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) {
			current.WriteString("\n")
			current.WriteString(line)
			continue
		}
		flush()
		current.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	flush()
	return entries, nil
}

func queryFromEntry(raw string) (profile.RawQueryRecord, bool, error) {
	if m := gormTraceRegex.FindStringSubmatch(strings.TrimSpace(stripANSI(raw))); m != nil {
		return profile.RawQueryRecord{SQL: m[2], Time: m[1]}, true, nil
	}

	entry := ParseLogLine(raw)

	var sql string
	switch {
	case entry.IsJSON:
		sql = firstString(entry.JSONFields, "sql", "query", "statement")
	case strings.Contains(entry.Message, "[sql]:"):
		sql = entry.Message[strings.Index(entry.Message, "[sql]:")+len("[sql]:"):]
	case entry.Fields["type"] == "query":
		sql = entry.Message
	}
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return profile.RawQueryRecord{}, false, nil
	}

	for _, key := range durationFields {
		if d, ok := entry.Fields[key]; ok {
			return profile.RawQueryRecord{SQL: sql, Time: d}, true, nil
		}
	}
	return profile.RawQueryRecord{}, false, fmt.Errorf("%w: no duration field on logged statement", profile.ErrMalformedRecord)
}
