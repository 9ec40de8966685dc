package profile

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	// id or *_id, optionally qualified and quoted, compared to a numeric literal
	idLiteralRegex = regexp.MustCompile("(?i)\\b((?:\\w+_)?id[\"`]?)\\s*=\\s*(\\d+(?:\\.\\d+)?)\\b")
)

// Normalizer turns raw records into canonical ones. The zero value only
// collapses whitespace; StripIDs also replaces integer id filters with "?".
type Normalizer struct {
	StripIDs bool
}

// Clean applies the whitespace and (optionally) literal-id policies.
func (n Normalizer) Clean(text string) string {
	cleaned := strings.TrimSpace(whitespaceRegex.ReplaceAllString(text, " "))
	if n.StripIDs {
		cleaned = idLiteralRegex.ReplaceAllStringFunc(cleaned, stripIDLiteral)
	}
	return cleaned
}

// stripIDLiteral replaces integer literals only; decimals are left alone.
func stripIDLiteral(match string) string {
	m := idLiteralRegex.FindStringSubmatch(match)
	if strings.Contains(m[2], ".") {
		return match
	}
	return m[1] + " = ?"
}

// Normalize cleans, hashes and times a single record.
func (n Normalizer) Normalize(raw RawQueryRecord) (CanonicalRecord, error) {
	duration, err := parseDuration(raw.Time)
	if err != nil {
		return CanonicalRecord{}, err
	}

	text := n.Clean(raw.SQL)
	return CanonicalRecord{
		Raw:      raw.SQL,
		Text:     text,
		Hash:     Hash(text),
		Duration: duration,
		Joins:    strings.Count(text, "JOIN"),
	}, nil
}

// NormalizeAll normalizes a snapshot in order. The first malformed record
// aborts the run.
func (n Normalizer) NormalizeAll(records []RawQueryRecord) ([]CanonicalRecord, error) {
	out := make([]CanonicalRecord, 0, len(records))
	for i, raw := range records {
		rec, err := n.Normalize(raw)
		if err != nil {
			return nil, &RecordError{Index: i, SQL: raw.SQL, Err: err}
		}
		out = append(out, rec)
	}
	return out, nil
}

// Hash returns the hex SHA-1 of the cleaned statement. It is only used as a
// grouping key.
func Hash(text string) string {
	sum := sha1.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}
