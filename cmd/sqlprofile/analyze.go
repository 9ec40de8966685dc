package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sql-profiler/pkg/explain"
	"sql-profiler/pkg/logs"
	"sql-profiler/pkg/profile"
)

type analyzeConfig struct {
	Format   string
	Sort     string
	Order    string
	Top      int
	StripIDs bool
	View     string
	Output   string
	Summary  bool
	Explain  bool
	DBURL    string
}

func (c analyzeConfig) options() (profile.Options, profile.View, error) {
	sortBy, err := profile.ParseSortKey(c.Sort)
	if err != nil {
		return profile.Options{}, 0, err
	}
	order, err := profile.ParseOrder(c.Order)
	if err != nil {
		return profile.Options{}, 0, err
	}
	view, err := profile.ParseView(c.View)
	if err != nil {
		return profile.Options{}, 0, err
	}
	if c.Top < 0 {
		return profile.Options{}, 0, fmt.Errorf("--top must not be negative, got %d", c.Top)
	}
	if c.Output != "text" && c.Output != "json" {
		return profile.Options{}, 0, fmt.Errorf("unknown output %q (want text or json)", c.Output)
	}
	return profile.Options{StripIDs: c.StripIDs, SortBy: sortBy, Order: order, TopN: c.Top}, view, nil
}

func analyzeCmd() *cobra.Command {
	var cfg analyzeConfig

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Profile a captured query log",
		Long: `Reads captured statements from a file (or stdin when the file is omitted or "-")
and prints the profile groups.

Input formats:
  json   a JSON array of {"sql": "...", "time": "0.002"} records
  log    statements each followed by an "Execution time: 1.2ms" line
  lines  application log output with [sql]: entries, JSON lines or gorm traces`,
		Example: `  sqlprofile analyze queries.json --strip-ids
  go test ./... 2>&1 | sqlprofile analyze --format lines --sort count --order desc`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, view, err := cfg.options()
			if err != nil {
				return err
			}
			format, err := logs.ParseFormat(cfg.Format)
			if err != nil {
				return err
			}

			in, err := openInput(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer in.Close()

			records, err := logs.ReadRecords(in, format)
			if err != nil {
				return fmt.Errorf("failed to read queries: %w", err)
			}
			report, err := profile.Analyze(records, opts)
			if err != nil {
				return err
			}

			var plans []explain.GroupPlan
			if cfg.Explain {
				plans, err = explainTop(cmd, cfg.DBURL, report.Top)
				if err != nil {
					return err
				}
			}

			return writeReport(cmd.OutOrStdout(), cfg, report, view, plans)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.Format, "format", "json", "input format: json, log or lines")
	flags.StringVar(&cfg.Sort, "sort", "total", "rank groups by total or count")
	flags.StringVar(&cfg.Order, "order", "asc", "ranking direction: asc or desc")
	flags.IntVar(&cfg.Top, "top", profile.DefaultTopN, "number of groups in the top view")
	flags.BoolVar(&cfg.StripIDs, "strip-ids", false, "replace id = <number> comparisons with a placeholder")
	flags.StringVar(&cfg.View, "view", "all", "groups to print: all or top")
	flags.StringVar(&cfg.Output, "output", "text", "output format: text or json")
	flags.BoolVar(&cfg.Summary, "summary", false, "print totals before the groups (text output)")
	flags.BoolVar(&cfg.Explain, "explain", false, "run EXPLAIN on the top groups")
	flags.StringVar(&cfg.DBURL, "db", "", "PostgreSQL connection string for --explain (default DATABASE_URL)")

	return cmd
}

func openInput(args []string, stdin io.Reader) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(stdin), nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, nil
}

func explainTop(cmd *cobra.Command, dbURL string, top []profile.ProfileGroup) ([]explain.GroupPlan, error) {
	e, err := explain.Open(dbURL)
	if err != nil {
		return nil, err
	}
	defer e.Close()
	return e.ExplainGroups(cmd.Context(), top)
}

type analyzeOutput struct {
	*profile.Report
	Plans   []explain.GroupPlan `json:"plans,omitempty"`
	Indexes []explain.IndexHint `json:"indexes,omitempty"`
}

func writeReport(w io.Writer, cfg analyzeConfig, report *profile.Report, view profile.View, plans []explain.GroupPlan) error {
	if cfg.Output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(analyzeOutput{Report: report, Plans: plans, Indexes: explain.SuggestIndexes(plans)})
	}

	if cfg.Summary {
		if _, err := io.WriteString(w, formatSummary(report)); err != nil {
			return err
		}
	}
	if err := report.Print(w, view); err != nil {
		return err
	}
	if len(plans) > 0 {
		_, err := io.WriteString(w, formatPlans(plans))
		return err
	}
	return nil
}

func formatSummary(report *profile.Report) string {
	var sb strings.Builder
	sb.WriteString("SQL PROFILE\n")
	sb.WriteString(strings.Repeat("-", 50) + "\n")
	sb.WriteString(fmt.Sprintf("Queries analyzed:     %d\n", report.TotalQueries()))
	sb.WriteString(fmt.Sprintf("Distinct statements:  %d\n", len(report.Groups)))
	sb.WriteString(fmt.Sprintf("Repeated statements:  %d\n", len(report.Duplicates())))
	sb.WriteString(fmt.Sprintf("Captured time:        %s\n", report.TotalTime()))
	sb.WriteString(fmt.Sprintf("Ranked by:            %s %s\n", report.SortBy, report.Order))
	sb.WriteString(strings.Repeat("-", 50) + "\n")
	return sb.String()
}

func formatPlans(plans []explain.GroupPlan) string {
	var sb strings.Builder
	sb.WriteString("\nQUERY PLANS\n")
	sb.WriteString(strings.Repeat("-", 50) + "\n")
	for _, p := range plans {
		sb.WriteString(fmt.Sprintf("-- count: %d\n%s\n", p.Count, strings.TrimSpace(p.Statement)))
		switch {
		case p.Skipped != "":
			sb.WriteString("skipped: " + p.Skipped + "\n")
		case p.Error != "":
			sb.WriteString("error: " + p.Error + "\n")
		case p.Plan != nil:
			sb.WriteString(p.Plan.Text() + "\n")
			if scans := p.Plan.SeqScans(); len(scans) > 0 {
				sb.WriteString(fmt.Sprintf("sequential scans: %s\n", strings.Join(scans, ", ")))
			}
		}
		sb.WriteString(strings.Repeat("-", 50) + "\n")
	}

	hints := explain.SuggestIndexes(plans)
	if len(hints) > 0 {
		sb.WriteString("\nINDEX SUGGESTIONS\n")
		sb.WriteString(strings.Repeat("-", 50) + "\n")
		for _, h := range hints {
			sb.WriteString(fmt.Sprintf("[%s] %s  -- %d executions\n", h.Priority, h.SQL, h.Occurrences))
		}
	}
	return sb.String()
}
