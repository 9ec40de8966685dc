package logs

import (
	"encoding/json"
	"regexp"
	"strings"
)

// LogEntry is one (possibly multi-line) application log entry.
type LogEntry struct {
	Raw        string                 `json:"raw"`
	Timestamp  string                 `json:"timestamp"`
	Level      string                 `json:"level"`
	File       string                 `json:"file"`
	Message    string                 `json:"message"`
	Fields     map[string]string      `json:"fields"`
	IsJSON     bool                   `json:"isJson"`
	JSONFields map[string]interface{} `json:"jsonFields,omitempty"`
}

var (
	timestampRegex = regexp.MustCompile(`^(\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}(?:\.\d+)?|\d{4}[-/]\d{2}[-/]\d{2}[T\s]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})?|\d{2}:\d{2}:\d{2}(?:\.\d+)?)`)
	levelRegex     = regexp.MustCompile(`^(FATAL|ERROR|WARN|INFO|DEBUG|TRACE|ERR|WRN|INF|DBG|TRC)\b`)
	fileRegex      = regexp.MustCompile(`^([\w./-]+\.go:\d+)`)
	ansiRegex      = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]|\x1b\][^\x07]*\x07|\x1b[>=]`)
	fieldKeyRegex  = regexp.MustCompile(`(?:^|\s)([A-Za-z_][\w.-]*)=`)
)

func stripANSI(s string) string {
	cleaned := ansiRegex.ReplaceAllString(s, "")
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, cleaned)
}

// ParseLogLine splits a log entry into timestamp, level, source file, message
// and trailing key=value fields. JSON lines are decoded as-is.
func ParseLogLine(line string) *LogEntry {
	entry := &LogEntry{
		Raw:    line,
		Fields: make(map[string]string),
	}

	line = strings.TrimSpace(stripANSI(line))
	if line == "" {
		return entry
	}

	if strings.HasPrefix(line, "{") && json.Valid([]byte(line)) {
		parseJSONEntry(entry, line)
		return entry
	}

	remaining := line
	if m := timestampRegex.FindString(remaining); m != "" {
		entry.Timestamp = m
		remaining = strings.TrimSpace(remaining[len(m):])
	}
	if m := levelRegex.FindString(remaining); m != "" {
		entry.Level = m
		remaining = strings.TrimSpace(remaining[len(m):])
	}
	if m := fileRegex.FindString(remaining); m != "" {
		entry.File = m
		remaining = strings.TrimSpace(remaining[len(m):])
	}
	remaining = strings.TrimSpace(strings.TrimPrefix(remaining, ">"))

	message, fields := splitFields(remaining, anyKey)
	if strings.Contains(message, "[sql]:") || fields["type"] == "query" {
		// SQL text carries its own col=val predicates
		message, fields = splitFields(remaining, isLogFieldKey)
	}
	entry.Message = message
	if fields != nil {
		entry.Fields = fields
	}
	return entry
}

func parseJSONEntry(entry *LogEntry, line string) {
	entry.IsJSON = true
	entry.JSONFields = make(map[string]interface{})
	_ = json.Unmarshal([]byte(line), &entry.JSONFields)

	entry.Timestamp = firstString(entry.JSONFields, "timestamp", "@timestamp", "time", "ts")
	entry.Level = firstString(entry.JSONFields, "level", "severity", "lvl")
	entry.Message = firstString(entry.JSONFields, "message", "msg")

	for k, v := range entry.JSONFields {
		switch val := v.(type) {
		case string:
			entry.Fields[k] = val
		case float64, bool:
			b, _ := json.Marshal(val)
			entry.Fields[k] = string(b)
		}
	}
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			return s
		}
	}
	return ""
}

var logFieldKeys = map[string]bool{
	"duration": true, "duration_ms": true, "elapsed": true, "elapsed_ms": true,
	"trace_id": true, "span_id": true, "parent_id": true, "request_id": true,
	"type": true, "location": true, "caller": true, "error": true, "latency": true,
}

var logFieldPrefixes = []string{"db.", "http.", "net.", "otel."}

func anyKey(string) bool { return true }

// isLogFieldKey reports whether key is one the application logger attaches,
// as opposed to a column compared inside the logged statement.
func isLogFieldKey(key string) bool {
	if logFieldKeys[key] {
		return true
	}
	for _, prefix := range logFieldPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// splitFields finds the leftmost position from which the rest of s parses
// completely as key=value pairs with allowed keys. Everything before it is the
// message.
func splitFields(s string, allow func(string) bool) (string, map[string]string) {
	for _, loc := range fieldKeyRegex.FindAllStringSubmatchIndex(s, -1) {
		start := loc[2]
		if fields, ok := parseFields(s[start:], allow); ok {
			return strings.TrimSpace(s[:start]), fields
		}
	}
	return s, nil
}

func parseFields(s string, allow func(string) bool) (map[string]string, bool) {
	fields := make(map[string]string)
	i := 0
	for {
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i >= len(s) {
			return fields, len(fields) > 0
		}

		keyStart := i
		for i < len(s) && isKeyByte(s[i], i == keyStart) {
			i++
		}
		if i == keyStart || i >= len(s) || s[i] != '=' {
			return nil, false
		}
		key := s[keyStart:i]
		if !allow(key) {
			return nil, false
		}
		i++

		value, next := readValue(s, i)
		fields[key] = value
		i = next
	}
}

func readValue(s string, i int) (string, int) {
	if i >= len(s) {
		return "", i
	}

	switch s[i] {
	case '"':
		start := i + 1
		i++
		for i < len(s) && s[i] != '"' {
			if s[i] == '\\' {
				i++
			}
			i++
		}
		end := min(i, len(s))
		return s[start:end], min(i+1, len(s))
	case '[', '{':
		open, closing := s[i], byte(']')
		if open == '{' {
			closing = '}'
		}
		start := i
		depth := 0
		for i < len(s) {
			if s[i] == open {
				depth++
			} else if s[i] == closing {
				depth--
				if depth == 0 {
					i++
					break
				}
			}
			i++
		}
		return s[start:i], i
	}

	start := i
	for i < len(s) && !isSpace(s[i]) {
		i++
	}
	return s[start:i], i
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func isKeyByte(b byte, first bool) bool {
	switch {
	case b == '_', b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z':
		return true
	case b == '.', b == '-', b >= '0' && b <= '9':
		return !first
	}
	return false
}
