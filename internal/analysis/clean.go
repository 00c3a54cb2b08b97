package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/dataloom-cli/internal/dataset"
)

// unknownKey is the frequency key for missing or blank categorical values.
const unknownKey = "Unknown"

// CleanInfo records what cleaning did to one column.
type CleanInfo struct {
	Column  string        `json:"column"`
	Kind    string        `json:"kind"`
	Fill    dataset.Value `json:"fill"`
	Filled  int           `json:"filled"`
	Clamped int           `json:"clamped,omitempty"`
	Lo      float64       `json:"lo,omitempty"`
	Hi      float64       `json:"hi,omitempty"`
}

// Clean returns a new dataset where numeric columns are median-filled then
// clamped to the IQR fence, and categorical columns are mode-filled.
// The input rows are not modified.
func Clean(ds *dataset.Dataset, cls Classification, opt Options) (*dataset.Dataset, []CleanInfo) {
	opt = opt.normalized()
	out := &dataset.Dataset{Name: ds.Name, Rows: make([]*dataset.Row, ds.Len())}
	if len(ds.Warnings) > 0 {
		out.Warnings = append([]string(nil), ds.Warnings...)
	}
	cells := make([]map[string]dataset.Value, ds.Len())
	for i := range cells {
		cells[i] = make(map[string]dataset.Value, len(cls.Columns))
	}

	infos := make([]CleanInfo, 0, len(cls.Columns))
	for _, col := range cls.Columns {
		var info CleanInfo
		if cls.IsNumeric(col) {
			info = cleanNumeric(ds, col, opt.IQRMultiplier, cells)
		} else {
			info = cleanCategorical(ds, col, cells)
		}
		infos = append(infos, info)
	}

	for i, r := range ds.Rows {
		row := dataset.NewRow(len(cls.Columns))
		for _, col := range cls.Columns {
			row.Set(col, cells[i][col])
		}
		// keys outside the first row's column set pass through untouched
		for _, k := range r.Keys() {
			if _, ok := cells[i][k]; !ok {
				row.Set(k, r.Value(k))
			}
		}
		out.Rows[i] = row
	}
	return out, infos
}

func cleanNumeric(ds *dataset.Dataset, col string, k float64, cells []map[string]dataset.Value) CleanInfo {
	info := CleanInfo{Column: col, Kind: "numeric"}
	present := make([]float64, 0, ds.Len())
	for _, r := range ds.Rows {
		if f, ok := Coerce(r.Value(col)); ok {
			present = append(present, f)
		}
	}
	med := median(present)
	info.Fill = dataset.Number(med)

	filled := make([]float64, ds.Len())
	for i, r := range ds.Rows {
		f, ok := Coerce(r.Value(col))
		if !ok {
			f = med
			info.Filled++
		}
		filled[i] = f
	}
	info.Lo, info.Hi = iqrBounds(filled, k)
	for i, f := range filled {
		c := math.Min(math.Max(f, info.Lo), info.Hi)
		if c != f {
			info.Clamped++
		}
		cells[i][col] = dataset.Number(c)
	}
	return info
}

func cleanCategorical(ds *dataset.Dataset, col string, cells []map[string]dataset.Value) CleanInfo {
	info := CleanInfo{Column: col, Kind: "categorical"}
	freq := frequencies(ds, col)
	info.Fill = freq.mode()
	for i, r := range ds.Rows {
		v := r.Value(col)
		if v.IsBlank() {
			v = info.Fill
			info.Filled++
		}
		cells[i][col] = v
	}
	return info
}

// iqrBounds returns [Q1-k*IQR, Q3+k*IQR] over vals.
func iqrBounds(vals []float64, k float64) (lo, hi float64) {
	sorted := sortedCopy(vals)
	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1
	return q1 - k*iqr, q3 + k*iqr
}

// median interpolates the middle of vals; empty input yields 0.
func median(vals []float64) float64 {
	return quantile(sortedCopy(vals), 0.5)
}

func sortedCopy(vals []float64) []float64 {
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	return cp
}

// quantile interpolates linearly at position (n-1)*q of a sorted slice.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo] + w*(sorted[hi]-sorted[lo])
}

// meanStd returns the mean and population standard deviation of vals.
func meanStd(vals []float64) (mean, std float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(vals, nil)
}
