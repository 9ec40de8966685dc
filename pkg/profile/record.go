package profile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMalformedRecord is returned when a captured record has a missing,
// non-numeric or negative duration.
var ErrMalformedRecord = errors.New("malformed query record")

// RawQueryRecord is one executed statement as reported by the instrumentation
// layer. Time is the duration as text, in whatever unit the source reports.
type RawQueryRecord struct {
	SQL  string `json:"sql"`
	Time string `json:"time"`
}

// UnmarshalJSON accepts the duration either as a JSON string or a JSON number.
func (r *RawQueryRecord) UnmarshalJSON(data []byte) error {
	var aux struct {
		SQL  string          `json:"sql"`
		Time json.RawMessage `json:"time"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.SQL = aux.SQL
	r.Time = ""

	t := bytes.TrimSpace(aux.Time)
	if len(t) == 0 || bytes.Equal(t, []byte("null")) {
		return nil
	}
	if t[0] == '"' {
		var s string
		if err := json.Unmarshal(t, &s); err != nil {
			return err
		}
		r.Time = s
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(t, &n); err != nil {
		return fmt.Errorf("%w: time must be a string or number, got %s", ErrMalformedRecord, t)
	}
	r.Time = n.String()
	return nil
}

// CanonicalRecord is a normalized statement ready for grouping.
type CanonicalRecord struct {
	Raw      string          `json:"raw"`
	Text     string          `json:"text"`
	Hash     string          `json:"hash"`
	Duration decimal.Decimal `json:"duration"`
	Joins    int             `json:"joins"`
}

func (c CanonicalRecord) String() string {
	return fmt.Sprintf("%s: %s", c.Duration, c.Text)
}

// ProfileGroup aggregates every canonical record sharing a hash.
type ProfileGroup struct {
	Count          int             `json:"count"`
	IndividualTime decimal.Decimal `json:"individualTime"`
	TotalTime      decimal.Decimal `json:"totalTime"`
	Representative CanonicalRecord `json:"statement"`
}

// RecordError reports which record of a snapshot failed to normalize.
type RecordError struct {
	Index int
	SQL   string
	Err   error
}

func (e *RecordError) Error() string {
	sql := strings.Join(strings.Fields(e.SQL), " ")
	if r := []rune(sql); len(r) > 80 {
		sql = string(r[:80]) + "..."
	}
	return fmt.Sprintf("record %d (%q): %v", e.Index, sql, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// parseDuration converts a reported duration into a non-negative decimal.
func parseDuration(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: missing duration", ErrMalformedRecord)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid duration %q", ErrMalformedRecord, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative duration %q", ErrMalformedRecord, s)
	}
	return d, nil
}
