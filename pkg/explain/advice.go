package explain

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// IndexHint suggests an index for a relation that a profiled statement reads
// with a filtered sequential scan.
type IndexHint struct {
	Table       string   `json:"table"`
	Columns     []string `json:"columns"`
	Occurrences int      `json:"occurrences"`
	Cost        float64  `json:"cost"`
	Priority    string   `json:"priority"`
	SQL         string   `json:"sql"`
}

var comparisonOps = map[string]bool{"=": true, "IS": true, ">": true, "<": true, ">=": true, "<=": true, "!=": true, "<>": true}

// SuggestIndexes looks for filtered sequential scans in explained groups. A
// group's count weighs in, so a cheap scan repeated by an N+1 loop ranks
// above an expensive one-off.
func SuggestIndexes(plans []GroupPlan) []IndexHint {
	byKey := map[string]*IndexHint{}
	var order []string

	for _, gp := range plans {
		if gp.Plan == nil {
			continue
		}
		walkPlan(gp.Plan, func(n *Plan) {
			if n.NodeType != "Seq Scan" || n.RelationName == "" {
				return
			}
			columns := filterColumns(n.Filter)
			if len(columns) == 0 {
				return
			}

			key := n.RelationName + "(" + strings.Join(columns, ",") + ")"
			hint, ok := byKey[key]
			if !ok {
				hint = &IndexHint{
					Table:   n.RelationName,
					Columns: columns,
					SQL: fmt.Sprintf("CREATE INDEX idx_%s_%s ON %s (%s);",
						n.RelationName, strings.Join(columns, "_"), n.RelationName, strings.Join(columns, ", ")),
				}
				byKey[key] = hint
				order = append(order, key)
			}
			hint.Occurrences += gp.Count
			hint.Cost = max(hint.Cost, n.TotalCost)
		})
	}

	hints := make([]IndexHint, 0, len(order))
	for _, key := range order {
		hint := byKey[key]
		hint.Priority = priority(hint.Occurrences, hint.Cost)
		hints = append(hints, *hint)
	}
	slices.SortStableFunc(hints, func(a, b IndexHint) int {
		return cmp.Compare(priorityRank[a.Priority], priorityRank[b.Priority])
	})
	return hints
}

var priorityRank = map[string]int{"high": 0, "medium": 1, "low": 2}

func priority(occurrences int, cost float64) string {
	score := 0
	switch {
	case occurrences >= 10:
		score += 3
	case occurrences >= 5:
		score += 2
	case occurrences > 1:
		score++
	}
	switch {
	case cost > 10000:
		score += 3
	case cost > 1000:
		score += 2
	case cost > 100:
		score++
	}

	switch {
	case score >= 3:
		return "high"
	case score >= 1:
		return "medium"
	}
	return "low"
}

func walkPlan(n *Plan, fn func(*Plan)) {
	fn(n)
	for i := range n.Plans {
		walkPlan(&n.Plans[i], fn)
	}
}

// filterColumns pulls column names out of a plan filter such as
// "((status)::text = 'active'::text)" or "(`app`.`users`.`email` = 'x')".
func filterColumns(filter string) []string {
	if filter == "" {
		return nil
	}
	for _, cast := range []string{"::text", "::integer", "::bigint", "::uuid"} {
		filter = strings.ReplaceAll(filter, cast, "")
	}

	var columns []string
	words := strings.Fields(filter)
	for i := 0; i < len(words)-1; i++ {
		if !comparisonOps[words[i+1]] {
			continue
		}
		word := strings.Trim(words[i], "()[]`\"")
		if dot := strings.LastIndexByte(word, '.'); dot >= 0 {
			word = strings.Trim(word[dot+1:], "`\"")
		}
		if isColumnName(word) && !slices.Contains(columns, word) {
			columns = append(columns, word)
		}
	}
	return columns
}

func isColumnName(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
