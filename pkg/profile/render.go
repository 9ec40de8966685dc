package profile

import (
	"fmt"
	"strings"
)

// View selects which groups of a report are rendered.
type View int

const (
	ViewAll View = iota
	ViewTop
)

// ParseView accepts "all" or "top" (also "topN").
func ParseView(s string) (View, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return ViewAll, nil
	case "top", "topn":
		return ViewTop, nil
	}
	return ViewAll, fmt.Errorf("unknown view %q (want all or top)", s)
}

var separator = "-- " + strings.Repeat("-", 47)

// Render formats groups as SQL-comment headed blocks so the output can be
// pasted back into a SQL shell.
func Render(groups []ProfileGroup) []string {
	lines := make([]string, 0, len(groups)*3)
	for _, g := range groups {
		lines = append(lines,
			separator,
			fmt.Sprintf("-- count: %d | individual: %s | total: %s | joins: %d",
				g.Count, g.IndividualTime, g.TotalTime, g.Representative.Joins),
			terminate(g.Representative.Text),
		)
	}
	return lines
}

func terminate(sql string) string {
	if strings.HasSuffix(sql, ";") {
		return sql
	}
	return sql + ";"
}
