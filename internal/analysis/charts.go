package analysis

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/dataloom-cli/internal/dataset"
)

// Chart names shared by the image and Plotly paths.
const (
	ChartHistogram = "histogram"
	ChartHeatmap   = "correlation_heatmap"
	ChartTrendLine = "trend_line"
	ChartBar       = "bar_categorical"
	ChartPie       = "pie_proportions"
	heatmapTitle   = "Correlation Heatmap"
)

// ChartNames lists chart names in build order.
var ChartNames = []string{ChartHistogram, ChartHeatmap, ChartTrendLine, ChartBar, ChartPie}

// ChartKind tags the variant carried by a Chart.
type ChartKind string

const (
	KindHistogram ChartKind = "histogram"
	KindHeatmap   ChartKind = "heatmap"
	KindLine      ChartKind = "line"
	KindBar       ChartKind = "bar"
	KindPie       ChartKind = "pie"
)

// Chart is a renderer-agnostic chart description. Which data field is set
// depends on Kind: Values for histograms, Matrix for heatmaps, Points for
// lines, Categories for bars and pies.
type Chart struct {
	Name       string          `json:"name"`
	Kind       ChartKind       `json:"kind"`
	Title      string          `json:"title"`
	XLabel     string          `json:"x_label,omitempty"`
	YLabel     string          `json:"y_label,omitempty"`
	Values     []float64       `json:"values,omitempty"`
	Matrix     *CorrMatrix     `json:"matrix,omitempty"`
	Points     []TrendPoint    `json:"points,omitempty"`
	Categories []CategoryCount `json:"categories,omitempty"`
}

// TrendPoint is one (time, value) pair of a line chart.
type TrendPoint struct {
	At    time.Time `json:"at"`
	Value float64   `json:"value"`
}

// Renderer draws a chart into image bytes.
type Renderer interface {
	Render(c Chart) ([]byte, error)
}

// BuildCharts derives every chart whose preconditions hold, in ChartNames order.
func BuildCharts(clean *dataset.Dataset, cls Classification, corr *CorrMatrix, opt Options) []Chart {
	opt = opt.normalized()
	var charts []Chart
	if len(cls.Numeric) > 0 {
		col := cls.Numeric[0]
		charts = append(charts, Chart{
			Name:   ChartHistogram,
			Kind:   KindHistogram,
			Title:  fmt.Sprintf("Distribution of %s", col),
			XLabel: col,
			Values: numericColumn(clean, col),
		})
	}
	if len(cls.Numeric) >= 2 {
		if corr == nil {
			corr = Correlate(clean, cls.Numeric, opt.StdEpsilon)
		}
		charts = append(charts, Chart{Name: ChartHeatmap, Kind: KindHeatmap, Title: heatmapTitle, Matrix: corr})
	}
	if dt, ok := timeColumn(cls.Columns); ok && len(cls.Numeric) > 0 {
		val := cls.Numeric[0]
		charts = append(charts, Chart{
			Name:   ChartTrendLine,
			Kind:   KindLine,
			Title:  fmt.Sprintf("Trend of %s over %s", val, dt),
			XLabel: dt,
			YLabel: val,
			Points: trendPoints(clean, dt, val),
		})
	}
	if len(cls.Categorical) > 0 {
		col := cls.Categorical[0]
		ft := frequencies(clean, col)
		charts = append(charts,
			Chart{Name: ChartBar, Kind: KindBar, Title: fmt.Sprintf("Top %s categories", col), YLabel: col, Categories: ft.top(opt.BarTopN)},
			Chart{Name: ChartPie, Kind: KindPie, Title: fmt.Sprintf("%s proportions", col), Categories: ft.top(opt.PieTopN)},
		)
	}
	return charts
}

// trendPoints pairs parsed dates with the value column, dropping unparseable
// dates, sorted ascending by time.
func trendPoints(ds *dataset.Dataset, dateCol, valCol string) []TrendPoint {
	pts := make([]TrendPoint, 0, ds.Len())
	for _, r := range ds.Rows {
		v := r.Value(dateCol)
		if !v.IsText() {
			continue
		}
		t, ok := parseTimeMaybe(strings.TrimSpace(v.RawText()))
		if !ok {
			continue
		}
		pts = append(pts, TrendPoint{At: t, Value: coerceOr(r.Value(valCol), 0)})
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].At.Before(pts[j].At) })
	return pts
}

// timeLayouts are tried in order; slashed dates read month-first, with
// day-first only as a fallback for values like 25/12/2024.
var timeLayouts = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "01/02/2006", "1/2/2006", "02/01/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
	"2006-01-02T15:04:05", "2006-01", "Jan 2, 2006", "2 Jan 2006",
}

func parseTimeMaybe(s string) (time.Time, bool) {
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// PlotlySpec is the declarative {data, layout} shape consumed by plotly.js.
type PlotlySpec struct {
	Data   []PlotlyTrace `json:"data"`
	Layout PlotlyLayout  `json:"layout"`
}

// PlotlyTrace is a single trace object.
type PlotlyTrace map[string]any

// PlotlyLayout carries the title and margins of a figure.
type PlotlyLayout struct {
	Title  string       `json:"title"`
	Margin PlotlyMargin `json:"margin"`
}

// PlotlyMargin is in pixels.
type PlotlyMargin struct {
	T int `json:"t"`
	R int `json:"r"`
	L int `json:"l"`
	B int `json:"b"`
}

const (
	primaryColor = "#5b7cfa"
	lineColor    = "#4b6cf0"
)

// PlotlySpec adapts c to a plotly.js figure.
func (c Chart) PlotlySpec() PlotlySpec {
	margin := PlotlyMargin{T: 40, R: 10, L: 40, B: 40}
	var trace PlotlyTrace
	switch c.Kind {
	case KindHistogram:
		trace = PlotlyTrace{"type": "histogram", "x": c.Values, "marker": map[string]any{"color": primaryColor}}
	case KindHeatmap:
		var z [][]float64
		var axis []string
		if c.Matrix != nil {
			z, axis = c.Matrix.Values, c.Matrix.Columns
		}
		trace = PlotlyTrace{"type": "heatmap", "z": z, "x": axis, "y": axis, "colorscale": "RdBu", "reversescale": true}
		margin.L = 80
	case KindLine:
		xs := make([]string, len(c.Points))
		ys := make([]float64, len(c.Points))
		for i, p := range c.Points {
			xs[i] = p.At.UTC().Format("2006-01-02T15:04:05.000Z")
			ys[i] = p.Value
		}
		trace = PlotlyTrace{"type": "scatter", "mode": "lines", "x": xs, "y": ys, "line": map[string]any{"color": lineColor}}
	case KindBar:
		counts, labels := splitCounts(c.Categories)
		trace = PlotlyTrace{"type": "bar", "x": counts, "y": labels, "orientation": "h", "marker": map[string]any{"color": primaryColor}}
		margin.L = 120
	case KindPie:
		counts, labels := splitCounts(c.Categories)
		trace = PlotlyTrace{"type": "pie", "values": counts, "labels": labels}
		margin = PlotlyMargin{T: 40, R: 10, L: 10, B: 10}
	default:
		trace = PlotlyTrace{}
	}
	return PlotlySpec{Data: []PlotlyTrace{trace}, Layout: PlotlyLayout{Title: c.Title, Margin: margin}}
}

func splitCounts(cc []CategoryCount) ([]int, []string) {
	counts := make([]int, len(cc))
	labels := make([]string, len(cc))
	for i, e := range cc {
		counts[i], labels[i] = e.Count, e.Value
	}
	return counts, labels
}
