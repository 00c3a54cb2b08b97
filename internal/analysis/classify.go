package analysis

import (
	"math"
	"strconv"
	"strings"

	"github.com/KaramelBytes/dataloom-cli/internal/dataset"
)

// Coerce converts a field to a finite number. Text is trimmed and parsed;
// missing, empty, and non-finite values are not numeric.
func Coerce(v dataset.Value) (float64, bool) {
	switch v.Kind() {
	case dataset.KindNumber:
		f := v.Num()
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	case dataset.KindText:
		s := strings.TrimSpace(v.RawText())
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// coerceOr returns the coerced number or def.
func coerceOr(v dataset.Value, def float64) float64 {
	if f, ok := Coerce(v); ok {
		return f
	}
	return def
}

// Classification partitions the first row's columns into numeric and categorical.
// It is computed once per dataset and shared by every later stage.
type Classification struct {
	Columns     []string
	Numeric     []string
	Categorical []string
	numeric     map[string]bool
}

// Classify marks a column numeric when at least threshold of the rows coerce to
// a finite number. Absent keys count as non-numeric.
func Classify(ds *dataset.Dataset, threshold float64) Classification {
	cols := ds.Columns()
	c := Classification{
		Columns:     cols,
		Numeric:     []string{},
		Categorical: []string{},
		numeric:     make(map[string]bool, len(cols)),
	}
	n := float64(ds.Len())
	for _, col := range cols {
		ok := 0
		for _, r := range ds.Rows {
			if _, isNum := Coerce(r.Value(col)); isNum {
				ok++
			}
		}
		if n > 0 && float64(ok) >= threshold*n {
			c.Numeric = append(c.Numeric, col)
			c.numeric[col] = true
		} else {
			c.Categorical = append(c.Categorical, col)
		}
	}
	return c
}

// IsNumeric reports whether col was classified numeric.
func (c Classification) IsNumeric(col string) bool { return c.numeric[col] }
