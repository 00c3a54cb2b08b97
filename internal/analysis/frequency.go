package analysis

import (
	"sort"

	"github.com/KaramelBytes/dataloom-cli/internal/dataset"
)

// CategoryCount is one entry of a frequency table.
type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// freqTable counts values in first-seen order.
type freqTable struct {
	entries []CategoryCount
	first   map[string]dataset.Value
	index   map[string]int
}

// frequencies counts a column's values. Missing and blank values count under "Unknown".
func frequencies(ds *dataset.Dataset, col string) *freqTable {
	ft := &freqTable{first: map[string]dataset.Value{}, index: map[string]int{}}
	for _, r := range ds.Rows {
		v := r.Value(col)
		if v.IsBlank() {
			v = dataset.Text(unknownKey)
		}
		key := v.String()
		if i, ok := ft.index[key]; ok {
			ft.entries[i].Count++
			continue
		}
		ft.index[key] = len(ft.entries)
		ft.first[key] = v
		ft.entries = append(ft.entries, CategoryCount{Value: key, Count: 1})
	}
	return ft
}

// mode returns the most frequent value; the first-seen value wins a tie.
func (ft *freqTable) mode() dataset.Value {
	best, cnt := "", -1
	for _, e := range ft.entries {
		if e.Count > cnt {
			best, cnt = e.Value, e.Count
		}
	}
	if cnt < 0 {
		return dataset.Text(unknownKey)
	}
	return ft.first[best]
}

// top returns up to n entries by descending count, ties kept in first-seen order.
// n <= 0 returns all entries.
func (ft *freqTable) top(n int) []CategoryCount {
	out := make([]CategoryCount, len(ft.entries))
	copy(out, ft.entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func (ft *freqTable) unique() int { return len(ft.entries) }
