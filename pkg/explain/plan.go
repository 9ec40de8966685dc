package explain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Plan is one node of a PostgreSQL JSON plan.
type Plan struct {
	NodeType     string  `json:"Node Type"`
	RelationName string  `json:"Relation Name,omitempty"`
	Alias        string  `json:"Alias,omitempty"`
	IndexName    string  `json:"Index Name,omitempty"`
	StartupCost  float64 `json:"Startup Cost"`
	TotalCost    float64 `json:"Total Cost"`
	PlanRows     float64 `json:"Plan Rows"`
	PlanWidth    int     `json:"Plan Width"`
	Filter       string  `json:"Filter,omitempty"`
	IndexCond    string  `json:"Index Cond,omitempty"`
	HashCond     string  `json:"Hash Cond,omitempty"`
	Plans        []Plan  `json:"Plans,omitempty"`
}

// ParsePlan decodes the output of EXPLAIN (FORMAT JSON) and returns its root
// node.
func ParsePlan(data []byte) (*Plan, error) {
	var wrapped []struct {
		Plan *Plan `json:"Plan"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse EXPLAIN JSON: %w", err)
	}
	if len(wrapped) == 0 || wrapped[0].Plan == nil {
		return nil, errors.New("EXPLAIN output has no plan")
	}
	return wrapped[0].Plan, nil
}

// SeqScans lists the relations read with a sequential scan anywhere in the
// plan, in plan order.
func (p *Plan) SeqScans() []string {
	var out []string
	var walk func(n *Plan)
	walk = func(n *Plan) {
		if n.NodeType == "Seq Scan" {
			out = append(out, n.RelationName)
		}
		for i := range n.Plans {
			walk(&n.Plans[i])
		}
	}
	walk(p)
	return out
}

// Text renders the plan as an indented tree.
func (p *Plan) Text() string {
	var output []string

	var formatNode func(node *Plan, depth int, isLast bool, prefix string)
	formatNode = func(node *Plan, depth int, isLast bool, prefix string) {
		line := ""
		if depth > 0 {
			if isLast {
				line = prefix + "└─ "
			} else {
				line = prefix + "├─ "
			}
		}

		line += node.NodeType
		if node.RelationName != "" {
			line += " on " + node.RelationName
			if node.Alias != "" && node.Alias != node.RelationName {
				line += " " + node.Alias
			}
		}
		if node.IndexName != "" {
			line += " using " + node.IndexName
		}
		line += fmt.Sprintf("  (cost=%.2f..%.2f rows=%.0f width=%d)",
			node.StartupCost, node.TotalCost, node.PlanRows, node.PlanWidth)
		output = append(output, line)

		childPrefix := prefix
		if depth > 0 {
			if isLast {
				childPrefix += "   "
			} else {
				childPrefix += "│  "
			}
		}

		if node.Filter != "" {
			output = append(output, childPrefix+"Filter: "+node.Filter)
		}
		if node.IndexCond != "" {
			output = append(output, childPrefix+"Index Cond: "+node.IndexCond)
		}
		if node.HashCond != "" {
			output = append(output, childPrefix+"Hash Cond: "+node.HashCond)
		}

		for i := range node.Plans {
			formatNode(&node.Plans[i], depth+1, i == len(node.Plans)-1, childPrefix)
		}
	}

	formatNode(p, 0, true, "")
	return strings.Join(output, "\n")
}
