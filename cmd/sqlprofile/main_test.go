package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sql-profiler/pkg/explain"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const sampleJSON = `[
  {"sql": "SELECT * FROM a WHERE user_id = 1", "time": "0.002"},
  {"sql": "SELECT * FROM b", "time": "0.001"},
  {"sql": "SELECT * FROM a WHERE user_id = 2", "time": "0.004"}
]`

func TestAnalyzeCommand(t *testing.T) {
	tests := []struct {
		name      string
		stdin     string
		args      []string
		wantLines int
		contains  []string
	}{
		{
			name:      "json from stdin",
			stdin:     sampleJSON,
			args:      []string{"analyze"},
			wantLines: 9,
			contains:  []string{"SELECT * FROM a WHERE user_id = 2;"},
		},
		{
			name:      "strip ids with top view",
			stdin:     sampleJSON,
			args:      []string{"analyze", "-", "--strip-ids", "--view", "top", "--top", "1"},
			wantLines: 3,
			contains:  []string{"-- count: 2 | individual: 0.004 | total: 0.008 | joins: 0", "SELECT * FROM a WHERE user_id = ?;"},
		},
		{
			name:      "execution log",
			stdin:     "SELECT 1\nExecution time: 12.5ms\nSELECT 2\n",
			args:      []string{"analyze", "--format", "log"},
			wantLines: 3,
			contains:  []string{"individual: 12.5", "SELECT 1;"},
		},
		{
			name:      "summary",
			stdin:     sampleJSON,
			args:      []string{"analyze", "--strip-ids", "--summary"},
			wantLines: 14,
			contains:  []string{"Queries analyzed:     3", "Repeated statements:  1", "Captured time:        0.007"},
		},
		{
			name:      "empty input",
			stdin:     "[]",
			args:      []string{"analyze"},
			wantLines: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, tt.stdin, tt.args...)
			if err != nil {
				t.Fatalf("analyze failed: %v", err)
			}
			lines := 0
			if out != "" {
				lines = len(strings.Split(strings.TrimSuffix(out, "\n"), "\n"))
			}
			if lines != tt.wantLines {
				t.Errorf("Expected %d lines, got %d:\n%s", tt.wantLines, lines, out)
			}
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("Expected %q in output:\n%s", want, out)
				}
			}
		})
	}
}

func TestAnalyzeCommandFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.json")
	if err := os.WriteFile(path, []byte(sampleJSON), 0o644); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}

	out, err := runCLI(t, "", "analyze", path, "--output", "json", "--strip-ids", "--sort", "count", "--order", "desc")
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}

	var resp struct {
		Groups []struct {
			Count int `json:"count"`
		} `json:"groups"`
		SortBy string `json:"sortBy"`
		Order  string `json:"order"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("failed to decode output: %v\n%s", err, out)
	}
	if len(resp.Groups) != 2 || resp.Groups[0].Count != 2 {
		t.Errorf("Expected the repeated group first, got %+v", resp.Groups)
	}
	if resp.SortBy != "count" || resp.Order != "desc" {
		t.Errorf("Expected count desc, got %s %s", resp.SortBy, resp.Order)
	}
}

func TestAnalyzeCommandErrors(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{"malformed record", `[{"sql": "SELECT 1", "time": "abc"}]`, []string{"analyze"}},
		{"unknown sort", sampleJSON, []string{"analyze", "--sort", "rows"}},
		{"unknown output", sampleJSON, []string{"analyze", "--output", "xml"}},
		{"negative top", sampleJSON, []string{"analyze", "--top", "-1"}},
		{"missing file", "", []string{"analyze", filepath.Join(os.TempDir(), "does-not-exist.json")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCLI(t, tt.stdin, tt.args...); err == nil {
				t.Errorf("Expected error for %v", tt.args)
			}
		})
	}
}

func TestDemoCommand(t *testing.T) {
	for _, via := range []string{"recorder", "logger"} {
		t.Run(via, func(t *testing.T) {
			out, err := runCLI(t, "", "demo", "--posts", "8", "--via", via)
			if err != nil {
				t.Fatalf("demo failed: %v", err)
			}
			for _, want := range []string{"Queries analyzed:     9", "-- count: 8 |"} {
				if !strings.Contains(out, want) {
					t.Errorf("Expected %q in output:\n%s", want, out)
				}
			}
		})
	}
}

func TestExplainCommandRejectsPlaceholders(t *testing.T) {
	_, err := runCLI(t, "", "explain", "SELECT * FROM users WHERE id = $1")
	if err == nil || !strings.Contains(err.Error(), "placeholders") {
		t.Errorf("Expected placeholder error, got %v", err)
	}
}

func TestFormatPlans(t *testing.T) {
	plans := []explain.GroupPlan{
		{
			Statement: "SELECT * FROM comments WHERE post_id = 7",
			Count:     12,
			Plan:      &explain.Plan{NodeType: "Seq Scan", RelationName: "comments", Filter: "(post_id = 7)", TotalCost: 25},
		},
		{Statement: "SELECT * FROM users WHERE id = $1", Count: 3, Skipped: "statement has bind placeholders"},
	}

	out := formatPlans(plans)
	for _, want := range []string{
		"-- count: 12",
		"Seq Scan on comments",
		"sequential scans: comments",
		"skipped: statement has bind placeholders",
		"[high] CREATE INDEX idx_comments_post_id ON comments (post_id);  -- 12 executions",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in:\n%s", want, out)
		}
	}
}
