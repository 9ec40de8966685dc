// Package profile turns a snapshot of executed SQL statements into a
// deduplicated, time-ranked profile for spotting repeated (N+1) and expensive
// queries.
package profile

import (
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

// Options controls normalization and ranking.
type Options struct {
	StripIDs bool
	SortBy   SortKey
	Order    Order
	TopN     int
}

// Report is the result of one profiling run.
type Report struct {
	Analyzed []CanonicalRecord `json:"analyzed"`
	Groups   []ProfileGroup    `json:"groups"`
	Top      []ProfileGroup    `json:"top"`
	SortBy   SortKey           `json:"sortBy"`
	Order    Order             `json:"order"`
}

// Analyze normalizes and aggregates a snapshot of raw records. A malformed
// record fails the whole run; an empty snapshot yields an empty report.
func Analyze(raw []RawQueryRecord, opts Options) (*Report, error) {
	normalizer := Normalizer{StripIDs: opts.StripIDs}
	analyzed, err := normalizer.NormalizeAll(raw)
	if err != nil {
		return nil, err
	}

	groups := Aggregate(analyzed, opts.SortBy, opts.Order)
	return &Report{
		Analyzed: analyzed,
		Groups:   groups,
		Top:      TopN(groups, opts.TopN, opts.Order),
		SortBy:   opts.SortBy,
		Order:    opts.Order,
	}, nil
}

// TotalQueries is the number of statements analyzed.
func (r *Report) TotalQueries() int {
	return len(r.Analyzed)
}

// TotalTime is the summed duration of every analyzed statement.
func (r *Report) TotalTime() decimal.Decimal {
	total := decimal.Zero
	for _, rec := range r.Analyzed {
		total = total.Add(rec.Duration)
	}
	return total
}

// Duplicates returns the groups executed more than once, in report order.
func (r *Report) Duplicates() []ProfileGroup {
	var dups []ProfileGroup
	for _, g := range r.Groups {
		if g.Count > 1 {
			dups = append(dups, g)
		}
	}
	return dups
}

// Lines renders the selected view.
func (r *Report) Lines(view View) []string {
	if view == ViewTop {
		return Render(r.Top)
	}
	return Render(r.Groups)
}

// Print writes the rendered view to w, one line per row.
func (r *Report) Print(w io.Writer, view View) error {
	lines := r.Lines(view)
	if len(lines) == 0 {
		return nil
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}
