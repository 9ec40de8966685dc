package profile

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestAnalyze(t *testing.T) {
	report, err := Analyze([]RawQueryRecord{
		{SQL: "SELECT * FROM comments WHERE post_id = 1", Time: "0.001"},
		{SQL: "SELECT * FROM comments WHERE post_id = 2", Time: "0.002"},
		{SQL: "SELECT * FROM comments WHERE post_id = 3", Time: "0.001"},
		{SQL: "SELECT * FROM posts", Time: "0.004"},
	}, Options{StripIDs: true, SortBy: SortByCount, Order: Descending, TopN: 1})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if report.TotalQueries() != 4 {
		t.Errorf("Expected 4 analyzed queries, got %d", report.TotalQueries())
	}
	if len(report.Groups) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(report.Groups))
	}
	if len(report.Top) != 1 {
		t.Fatalf("Expected 1 top group, got %d", len(report.Top))
	}
	if report.Top[0].Count != 3 {
		t.Errorf("Expected the N+1 group on top, got count %d", report.Top[0].Count)
	}
	if report.Top[0].Representative.Text != "SELECT * FROM comments WHERE post_id = ?" {
		t.Errorf("Unexpected representative %q", report.Top[0].Representative.Text)
	}

	if got := report.TotalTime().String(); got != "0.008" {
		t.Errorf("Expected total time 0.008, got %s", got)
	}

	dups := report.Duplicates()
	if len(dups) != 1 || dups[0].Count != 3 {
		t.Errorf("Expected one duplicated group, got %+v", dups)
	}
}

func TestAnalyzeMalformedAbortsRun(t *testing.T) {
	report, err := Analyze([]RawQueryRecord{
		{SQL: "SELECT 1", Time: "0.001"},
		{SQL: "SELECT 2"},
	}, Options{})
	if !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("Expected ErrMalformedRecord, got %v", err)
	}
	if report != nil {
		t.Errorf("Expected no partial report, got %+v", report)
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	report, err := Analyze([]RawQueryRecord{}, Options{})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(report.Groups) != 0 || len(report.Top) != 0 {
		t.Errorf("Expected empty report, got %d groups and %d top", len(report.Groups), len(report.Top))
	}
}

func TestReportJSON(t *testing.T) {
	report, err := Analyze([]RawQueryRecord{
		{SQL: "SELECT * FROM a", Time: "0.002"},
		{SQL: "SELECT * FROM a", Time: "0.004"},
	}, Options{SortBy: SortByCount, Order: Descending})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded struct {
		SortBy string `json:"sortBy"`
		Order  string `json:"order"`
		Groups []struct {
			Count          int    `json:"count"`
			IndividualTime string `json:"individualTime"`
			TotalTime      string `json:"totalTime"`
			Statement      struct {
				Text string `json:"text"`
				Hash string `json:"hash"`
			} `json:"statement"`
		} `json:"groups"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded.SortBy != "count" || decoded.Order != "desc" {
		t.Errorf("Unexpected sort metadata: %s %s", decoded.SortBy, decoded.Order)
	}
	if len(decoded.Groups) != 1 {
		t.Fatalf("Expected 1 group, got %d", len(decoded.Groups))
	}
	g := decoded.Groups[0]
	if g.Count != 2 || g.IndividualTime != "0.004" || g.TotalTime != "0.008" {
		t.Errorf("Unexpected group %+v", g)
	}
	if g.Statement.Text != "SELECT * FROM a" || g.Statement.Hash == "" {
		t.Errorf("Unexpected statement %+v", g.Statement)
	}
}
