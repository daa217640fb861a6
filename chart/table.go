package chart

import (
	"fmt"
	"sort"
)

// Table is a minimal row-oriented frame for counting and grouping.
type Table struct {
	Columns []string
	Rows    []map[string]any
}

// NewTable builds a table from rows. Columns are the union of row keys,
// sorted.
func NewTable(rows []map[string]any) *Table {
	seen := map[string]bool{}
	var cols []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return &Table{Columns: cols, Rows: rows}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Column returns the values of col, or an error if it does not exist.
func (t *Table) Column(col string) ([]any, error) {
	if !t.hasColumn(col) {
		return nil, fmt.Errorf("column %q not found", col)
	}
	out := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[col]
	}
	return out, nil
}

func (t *Table) hasColumn(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Count is a value and how often it occurs.
type Count struct {
	Value string
	N     int
}

// ValueCounts counts the distinct values of col, most frequent first and
// ties broken by value.
func (t *Table) ValueCounts(col string) ([]Count, error) {
	vals, err := t.Column(col)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, v := range vals {
		counts[fmt.Sprint(v)]++
	}
	out := make([]Count, 0, len(counts))
	for v, n := range counts {
		out = append(out, Count{Value: v, N: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Value < out[j].Value
	})
	return out, nil
}

// GroupCount counts rows per distinct value of col, ordered by value.
func (t *Table) GroupCount(col string) ([]Count, error) {
	counts, err := t.ValueCounts(col)
	if err != nil {
		return nil, err
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Value < counts[j].Value })
	return counts, nil
}
