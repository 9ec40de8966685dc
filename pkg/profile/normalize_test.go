package profile

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name     string
		strip    bool
		query    string
		expected string
	}{
		{
			name:     "tab expansion",
			query:    "SELECT *\n       FROM users\n       WHERE id = 1",
			expected: "SELECT * FROM users WHERE id = 1",
		},
		{
			name:     "tabs and trailing space",
			query:    "\tSELECT  id\t\tFROM users  ",
			expected: "SELECT id FROM users",
		},
		{
			name:     "ids kept without stripping",
			query:    "SELECT * FROM posts WHERE user_id = 42",
			expected: "SELECT * FROM posts WHERE user_id = 42",
		},
		{
			name:     "strip foreign key",
			strip:    true,
			query:    "SELECT * FROM posts WHERE user_id = 42",
			expected: "SELECT * FROM posts WHERE user_id = ?",
		},
		{
			name:     "strip quoted qualified id",
			strip:    true,
			query:    `SELECT * FROM "users" WHERE "users"."id"=7 LIMIT 1`,
			expected: `SELECT * FROM "users" WHERE "users"."id" = ? LIMIT 1`,
		},
		{
			name:     "strip uppercase",
			strip:    true,
			query:    "SELECT * FROM t WHERE T.ID = 3 AND ACCOUNT_ID = 9",
			expected: "SELECT * FROM t WHERE T.ID = ? AND ACCOUNT_ID = ?",
		},
		{
			name:     "decimal literal untouched",
			strip:    true,
			query:    "SELECT * FROM t WHERE user_id = 5.5 AND id=12",
			expected: "SELECT * FROM t WHERE user_id = 5.5 AND id = ?",
		},
		{
			name:     "non id columns untouched",
			strip:    true,
			query:    "SELECT * FROM t WHERE valid = 1 AND uuid = 2 AND idx = 3",
			expected: "SELECT * FROM t WHERE valid = 1 AND uuid = 2 AND idx = 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Normalizer{StripIDs: tt.strip}
			result := n.Clean(tt.query)
			if result != tt.expected {
				t.Errorf("Clean() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestCleanIsFixedPoint(t *testing.T) {
	queries := []string{
		"SELECT *\n       FROM users\n       WHERE id = 1",
		"SELECT a.id FROM a INNER JOIN b ON b.a_id = a.id WHERE b.owner_id=5",
		"  UPDATE t SET x = 1 WHERE id = 10  ",
	}

	for _, strip := range []bool{false, true} {
		n := Normalizer{StripIDs: strip}
		for _, q := range queries {
			once := n.Clean(q)
			twice := n.Clean(once)
			if once != twice {
				t.Errorf("Clean not idempotent (strip=%v): %q -> %q", strip, once, twice)
			}
		}
	}
}

func TestNormalizeHash(t *testing.T) {
	n := Normalizer{}

	a, err := n.Normalize(RawQueryRecord{SQL: "SELECT *\n       FROM a", Time: "0.002"})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	again, err := n.Normalize(RawQueryRecord{SQL: "SELECT *\n       FROM a", Time: "0.002"})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if a.Hash != again.Hash {
		t.Errorf("Expected identical hashes for identical input, got %s and %s", a.Hash, again.Hash)
	}

	reindented, err := n.Normalize(RawQueryRecord{SQL: "SELECT *   FROM\ta", Time: "0.5"})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if a.Hash != reindented.Hash {
		t.Errorf("Expected whitespace-only difference to hash identically, got %s and %s", a.Hash, reindented.Hash)
	}

	if len(a.Hash) != 40 {
		t.Errorf("Expected 40 character hash, got %d", len(a.Hash))
	}
	if a.Text != "SELECT * FROM a" {
		t.Errorf("Expected cleaned text %q, got %q", "SELECT * FROM a", a.Text)
	}
	if a.Raw != "SELECT *\n       FROM a" {
		t.Errorf("Expected raw text to be kept, got %q", a.Raw)
	}
}

func TestNormalizeStripIDsCollapse(t *testing.T) {
	q5 := RawQueryRecord{SQL: `SELECT * FROM foo WHERE foo_id = 5`, Time: "0.001"}
	q9 := RawQueryRecord{SQL: `SELECT * FROM foo WHERE foo_id = 9`, Time: "0.001"}

	plain := Normalizer{}
	a, _ := plain.Normalize(q5)
	b, _ := plain.Normalize(q9)
	if a.Hash == b.Hash {
		t.Error("Expected different hashes without id stripping")
	}

	strict := Normalizer{StripIDs: true}
	a, _ = strict.Normalize(q5)
	b, _ = strict.Normalize(q9)
	if a.Hash != b.Hash {
		t.Errorf("Expected same hash with id stripping, got %s and %s", a.Hash, b.Hash)
	}
}

func TestNormalizeJoins(t *testing.T) {
	tests := []struct {
		query    string
		expected int
	}{
		{"SELECT * FROM a", 0},
		{"SELECT * FROM a INNER JOIN b ON a.id = b.a_id LEFT OUTER JOIN c ON c.id = b.c_id", 2},
		{"SELECT * FROM a join b ON a.id = b.a_id", 0},
		{"SELECT 'JOIN' FROM a", 1},
	}

	n := Normalizer{}
	for _, tt := range tests {
		rec, err := n.Normalize(RawQueryRecord{SQL: tt.query, Time: "1"})
		if err != nil {
			t.Fatalf("Normalize(%q) failed: %v", tt.query, err)
		}
		if rec.Joins != tt.expected {
			t.Errorf("Normalize(%q).Joins = %d, want %d", tt.query, rec.Joins, tt.expected)
		}
	}
}

func TestNormalizeMalformed(t *testing.T) {
	tests := []struct {
		name string
		time string
	}{
		{"missing", ""},
		{"blank", "   "},
		{"text", "fast"},
		{"two decimal points", "1.2.3"},
		{"negative", "-0.5"},
	}

	n := Normalizer{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(RawQueryRecord{SQL: "SELECT 1", Time: tt.time})
			if !errors.Is(err, ErrMalformedRecord) {
				t.Errorf("Expected ErrMalformedRecord for %q, got %v", tt.time, err)
			}
		})
	}
}

func TestNormalizeAllReportsIndex(t *testing.T) {
	records := []RawQueryRecord{
		{SQL: "SELECT 1", Time: "0.1"},
		{SQL: "SELECT 2", Time: "oops"},
	}

	_, err := Normalizer{}.NormalizeAll(records)
	var recErr *RecordError
	if !errors.As(err, &recErr) {
		t.Fatalf("Expected *RecordError, got %v", err)
	}
	if recErr.Index != 1 {
		t.Errorf("Expected failing index 1, got %d", recErr.Index)
	}
	if !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("Expected error to wrap ErrMalformedRecord, got %v", err)
	}
}

func TestRawQueryRecordUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"string time", `{"sql": "SELECT 1", "time": "0.002"}`, "0.002", false},
		{"number time", `{"sql": "SELECT 1", "time": 0.004}`, "0.004", false},
		{"missing time", `{"sql": "SELECT 1"}`, "", false},
		{"null time", `{"sql": "SELECT 1", "time": null}`, "", false},
		{"object time", `{"sql": "SELECT 1", "time": {"ms": 3}}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec RawQueryRecord
			err := json.Unmarshal([]byte(tt.input), &rec)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got record %+v", rec)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if rec.Time != tt.expected {
				t.Errorf("Time = %q, want %q", rec.Time, tt.expected)
			}
			if rec.SQL != "SELECT 1" {
				t.Errorf("SQL = %q, want %q", rec.SQL, "SELECT 1")
			}
		})
	}
}
