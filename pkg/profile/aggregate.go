package profile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultTopN is the size of the "worst offenders" slice.
const DefaultTopN = 10

// SortKey selects the ranking key for a report.
type SortKey int

const (
	// SortByTotalTime ranks groups by count × individual time.
	SortByTotalTime SortKey = iota
	// SortByCount ranks groups by number of occurrences.
	SortByCount
)

func (k SortKey) String() string {
	switch k {
	case SortByCount:
		return "count"
	default:
		return "total"
	}
}

func (k SortKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseSortKey accepts "total", "total_time" or "count". An empty string
// selects SortByTotalTime.
func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "total", "total_time", "totaltime":
		return SortByTotalTime, nil
	case "count":
		return SortByCount, nil
	}
	return SortByTotalTime, fmt.Errorf("unknown sort key %q (want total or count)", s)
}

// Order is the direction groups are listed in.
type Order int

const (
	Ascending Order = iota
	Descending
)

func (o Order) String() string {
	if o == Descending {
		return "desc"
	}
	return "asc"
}

func (o Order) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// ParseOrder accepts "asc"/"ascending" and "desc"/"descending".
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	}
	return Ascending, fmt.Errorf("unknown order %q (want asc or desc)", s)
}

func (g ProfileGroup) key(by SortKey) decimal.Decimal {
	if by == SortByCount {
		return decimal.NewFromInt(int64(g.Count))
	}
	return g.TotalTime
}

// Aggregate groups records by hash and returns the groups ordered by the
// chosen key.
//
// Records are first stably sorted by duration, then grouped in one pass where
// every occurrence overwrites the group's representative. IndividualTime is
// therefore the duration of the slowest occurrence, the latest one in input
// order winning ties.
func Aggregate(records []CanonicalRecord, by SortKey, order Order) []ProfileGroup {
	sorted := make([]CanonicalRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Duration.LessThan(sorted[j].Duration)
	})

	counts := make(map[string]int)
	latest := make(map[string]CanonicalRecord)
	var hashes []string
	for _, rec := range sorted {
		if _, seen := counts[rec.Hash]; !seen {
			hashes = append(hashes, rec.Hash)
		}
		counts[rec.Hash]++
		latest[rec.Hash] = rec
	}

	groups := make([]ProfileGroup, 0, len(hashes))
	for _, h := range hashes {
		rep := latest[h]
		count := counts[h]
		groups = append(groups, ProfileGroup{
			Count:          count,
			IndividualTime: rep.Duration,
			TotalTime:      rep.Duration.Mul(decimal.NewFromInt(int64(count))),
			Representative: rep,
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if order == Descending {
			return groups[j].key(by).LessThan(groups[i].key(by))
		}
		return groups[i].key(by).LessThan(groups[j].key(by))
	})
	return groups
}

// TopN returns the n groups with the highest key from a list produced by
// Aggregate with the same order. n <= 0 means DefaultTopN.
func TopN(groups []ProfileGroup, n int, order Order) []ProfileGroup {
	if n <= 0 {
		n = DefaultTopN
	}
	if n > len(groups) {
		n = len(groups)
	}
	top := make([]ProfileGroup, n)
	if order == Descending {
		copy(top, groups[:n])
	} else {
		copy(top, groups[len(groups)-n:])
	}
	return top
}
