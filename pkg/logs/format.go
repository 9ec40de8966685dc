package logs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"sql-profiler/pkg/profile"
)

// Format names a layout of captured query input.
type Format string

const (
	// FormatJSON is a JSON array of {"sql": ..., "time": ...} objects.
	FormatJSON Format = "json"
	// FormatLog is statements each followed by an "Execution time:" line.
	FormatLog Format = "log"
	// FormatLines is application log output read with ExtractQueries.
	FormatLines Format = "lines"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatLog, FormatLines:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want json, log or lines)", s)
}

// ReadRecords decodes captured query input in the given format.
func ReadRecords(r io.Reader, format Format) ([]profile.RawQueryRecord, error) {
	switch format {
	case FormatLog:
		return ParseExecutionLog(r)
	case FormatLines:
		return ExtractQueries(r)
	case FormatJSON, "":
		return decodeJSONRecords(r)
	}
	return nil, fmt.Errorf("unknown format %q", format)
}

func decodeJSONRecords(r io.Reader) ([]profile.RawQueryRecord, error) {
	var records []profile.RawQueryRecord
	dec := json.NewDecoder(r)
	if err := dec.Decode(&records); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if errors.Is(err, profile.ErrMalformedRecord) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: failed to decode records: %w", profile.ErrMalformedRecord, err)
	}
	var trailing json.RawMessage
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after record array")
		}
		return nil, fmt.Errorf("%w: failed to decode records: %w", profile.ErrMalformedRecord, err)
	}
	return records, nil
}
