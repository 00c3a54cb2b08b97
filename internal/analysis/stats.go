package analysis

import (
	"math"
	"sort"

	"github.com/KaramelBytes/dataloom-cli/internal/dataset"
)

// Stats is the statistics block of a result.
type Stats struct {
	Shape              [2]int          `json:"shape"`
	Columns            []string        `json:"columns"`
	NumericColumns     []string        `json:"numeric_columns"`
	CategoricalColumns []string        `json:"categorical_columns"`
	Correlation        *CorrMatrix     `json:"correlation,omitempty"`
	Summaries          []ColumnSummary `json:"column_summaries,omitempty"`
}

// ColumnSummary captures per-column aggregates over the cleaned data.
type ColumnSummary struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Filled  int    `json:"filled"`
	Clamped int    `json:"clamped,omitempty"`
	// Numeric stats
	Min    float64 `json:"min,omitempty"`
	Max    float64 `json:"max,omitempty"`
	Mean   float64 `json:"mean,omitempty"`
	Median float64 `json:"median,omitempty"`
	Std    float64 `json:"std,omitempty"`
	// Categorical top values
	Unique    int             `json:"unique,omitempty"`
	TopValues []CategoryCount `json:"top_values,omitempty"`
}

// CorrMatrix holds a symmetric Pearson correlation matrix across numeric columns.
type CorrMatrix struct {
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"` // row-major, Values[i][j]
}

// PairCorr is a simple correlation pair summary.
type PairCorr struct {
	A, B string
	R    float64
}

// TopPairs lists off-diagonal pairs by descending |r|, at most n (n <= 0 means all).
// Ties keep matrix order.
func (m *CorrMatrix) TopPairs(n int) []PairCorr {
	if m == nil {
		return nil
	}
	var pairs []PairCorr
	for i := range m.Columns {
		for j := i + 1; j < len(m.Columns); j++ {
			pairs = append(pairs, PairCorr{A: m.Columns[i], B: m.Columns[j], R: m.Values[i][j]})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return math.Abs(pairs[i].R) > math.Abs(pairs[j].R) })
	if n > 0 && len(pairs) > n {
		pairs = pairs[:n]
	}
	return pairs
}

// ComputeStats builds the stats block from the cleaned dataset.
func ComputeStats(clean *dataset.Dataset, cls Classification, infos []CleanInfo, opt Options) Stats {
	opt = opt.normalized()
	st := Stats{
		Shape:              [2]int{clean.Len(), len(cls.Columns)},
		Columns:            append([]string{}, cls.Columns...),
		NumericColumns:     append([]string{}, cls.Numeric...),
		CategoricalColumns: append([]string{}, cls.Categorical...),
	}
	byCol := make(map[string]CleanInfo, len(infos))
	for _, in := range infos {
		byCol[in.Column] = in
	}
	for _, col := range cls.Columns {
		in := byCol[col]
		s := ColumnSummary{Name: col, Filled: in.Filled, Clamped: in.Clamped}
		if cls.IsNumeric(col) {
			s.Kind = "numeric"
			vals := numericColumn(clean, col)
			s.Mean, s.Std = meanStd(vals)
			sorted := sortedCopy(vals)
			s.Median = quantile(sorted, 0.5)
			if len(sorted) > 0 {
				s.Min, s.Max = sorted[0], sorted[len(sorted)-1]
			}
		} else {
			s.Kind = "categorical"
			ft := frequencies(clean, col)
			s.Unique = ft.unique()
			s.TopValues = ft.top(8)
		}
		st.Summaries = append(st.Summaries, s)
	}
	if len(cls.Numeric) >= 2 {
		st.Correlation = Correlate(clean, cls.Numeric, opt.StdEpsilon)
	}
	return st
}

// numericColumn reads a column as numbers; non-coercible cells become 0.
func numericColumn(ds *dataset.Dataset, col string) []float64 {
	out := make([]float64, ds.Len())
	for i, r := range ds.Rows {
		out[i] = coerceOr(r.Value(col), 0)
	}
	return out
}

// Correlate computes Pearson r for every pair of cols as
// sum((x-mx)(y-my)) / ((n-1)*sx*sy), with population standard deviations and
// zero deviations replaced by eps. The diagonal is therefore n/(n-1), not 1.
// A zero denominator yields 0.
func Correlate(ds *dataset.Dataset, cols []string, eps float64) *CorrMatrix {
	n := len(cols)
	data := make([][]float64, n)
	means := make([]float64, n)
	stds := make([]float64, n)
	for i, c := range cols {
		data[i] = numericColumn(ds, c)
		means[i], stds[i] = meanStd(data[i])
		if stds[i] == 0 {
			stds[i] = eps
		}
	}
	rows := float64(ds.Len())
	mat := make([][]float64, n)
	for i := range mat {
		mat[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var sum float64
			for k := range data[i] {
				sum += (data[i][k] - means[i]) * (data[j][k] - means[j])
			}
			den := (rows - 1) * stds[i] * stds[j]
			var r float64
			if den != 0 {
				r = sum / den
			}
			if math.IsNaN(r) || math.IsInf(r, 0) {
				r = 0
			}
			mat[i][j] = r
			mat[j][i] = r
		}
	}
	return &CorrMatrix{Columns: append([]string{}, cols...), Values: mat}
}
