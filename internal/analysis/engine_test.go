package analysis

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/KaramelBytes/dataloom-cli/internal/dataset"
)

func scenarioA() *dataset.Dataset {
	return dataset.New("a.csv",
		dataset.RowOf("amount", "10", "city", "NY"),
		dataset.RowOf("amount", "20", "city", "NY"),
		dataset.RowOf("amount", "", "city", "LA"),
	)
}

func TestAnalyzeScenarioA(t *testing.T) {
	ds := scenarioA()
	res, err := Analyze(ds, DefaultOptions())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if got := strings.Join(res.Stats.NumericColumns, ","); got != "amount" {
		t.Fatalf("numeric = %q", got)
	}
	if got := strings.Join(res.Stats.CategoricalColumns, ","); got != "city" {
		t.Fatalf("categorical = %q", got)
	}
	if v := res.Cleaned.Rows[2].Value("amount"); !v.IsNumber() || v.Num() != 15 {
		t.Fatalf("filled amount = %#v, want 15", v)
	}
	if res.Insights[0] != "Key metric amount: mean 15.00, median 15.00." {
		t.Fatalf("insight[0] = %q", res.Insights[0])
	}
	wantSummary := "Executive summary: Key metric amount: mean 15.00, median 15.00.; Category city dominated by NY (~66.7%)."
	if res.ReportSummary != wantSummary {
		t.Fatalf("summary = %q", res.ReportSummary)
	}
	if len(res.Strategies) != 3 {
		t.Fatalf("strategies = %d", len(res.Strategies))
	}
	if res.Stats.Shape != [2]int{3, 2} {
		t.Fatalf("shape = %v", res.Stats.Shape)
	}
	if res.ID == "" {
		t.Fatalf("expected result id")
	}
	// input untouched
	if v := ds.Rows[2].Value("amount"); !v.IsText() || v.RawText() != "" {
		t.Fatalf("input mutated: %#v", v)
	}
}

func TestCategoricalFillUsesMode(t *testing.T) {
	ds := dataset.New("m",
		dataset.RowOf("amount", 1, "city", "NY"),
		dataset.RowOf("amount", 2, "city", nil),
		dataset.RowOf("amount", 3, "city", "NY"),
		dataset.RowOf("amount", 4, "city", "  "),
	)
	res, err := Analyze(ds, DefaultOptions())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	for i, r := range res.Cleaned.Rows {
		if v := r.Value("city"); v.IsBlank() || v.String() != "NY" {
			t.Fatalf("row %d city = %#v", i, v)
		}
	}
}

func TestClassifyScenarioB(t *testing.T) {
	ds := dataset.New("b",
		dataset.RowOf("mixed", "x"),
		dataset.RowOf("mixed", "10"),
		dataset.RowOf("mixed", "y"),
		dataset.RowOf("mixed", "z"),
	)
	cls := Classify(ds, 0.5)
	if len(cls.Numeric) != 0 || len(cls.Categorical) != 1 {
		t.Fatalf("classification = %+v", cls)
	}
}

func TestClassifyThresholdTieFavorsNumeric(t *testing.T) {
	ds := dataset.New("tie",
		dataset.RowOf("v", "1"),
		dataset.RowOf("v", "oops"),
	)
	if cls := Classify(ds, 0.5); !cls.IsNumeric("v") {
		t.Fatalf("2-row 50%% column should be numeric")
	}
}

func TestClassifyIdempotentAndPartition(t *testing.T) {
	ds := dataset.New("p",
		dataset.RowOf("a", 1, "b", "x", "c", "2.5"),
		dataset.RowOf("a", nil, "b", "y", "c", "nan"),
		dataset.RowOf("b", "z"),
	)
	c1 := Classify(ds, 0.5)
	c2 := Classify(ds, 0.5)
	if strings.Join(c1.Numeric, ",") != strings.Join(c2.Numeric, ",") ||
		strings.Join(c1.Categorical, ",") != strings.Join(c2.Categorical, ",") {
		t.Fatalf("classification not deterministic: %+v vs %+v", c1, c2)
	}
	seen := map[string]int{}
	for _, c := range c1.Numeric {
		seen[c]++
	}
	for _, c := range c1.Categorical {
		seen[c]++
	}
	if len(seen) != len(c1.Columns) {
		t.Fatalf("partition misses columns: %v", seen)
	}
	for c, n := range seen {
		if n != 1 {
			t.Fatalf("column %s appears %d times", c, n)
		}
	}
	// a: 1/3 numeric (absent key and null count as not numeric)
	if c1.IsNumeric("a") {
		t.Fatalf("a should be categorical")
	}
}

func TestCoerce(t *testing.T) {
	cases := []struct {
		in   dataset.Value
		want float64
		ok   bool
	}{
		{dataset.Number(3), 3, true},
		{dataset.Text(" 4.5 "), 4.5, true},
		{dataset.Text("1e3"), 1000, true},
		{dataset.Text(""), 0, false},
		{dataset.Text("NaN"), 0, false},
		{dataset.Text("Infinity"), 0, false},
		{dataset.Text("12abc"), 0, false},
		{dataset.Number(math.Inf(1)), 0, false},
		{dataset.Missing(), 0, false},
	}
	for _, c := range cases {
		got, ok := Coerce(c.in)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("Coerce(%#v) = %v,%v want %v,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestCleanClampsToIQRBounds(t *testing.T) {
	ds := dataset.New("c",
		dataset.RowOf("v", 1), dataset.RowOf("v", 2), dataset.RowOf("v", 3),
		dataset.RowOf("v", 4), dataset.RowOf("v", 100), dataset.RowOf("v", nil),
	)
	cls := Classify(ds, 0.5)
	clean, infos := Clean(ds, cls, DefaultOptions())
	// filled with median 3: [1,2,3,4,100,3] -> sorted [1,2,3,3,4,100]
	// Q1 = 2.25, Q3 = 3.75, IQR = 1.5, bounds [0, 6]
	in := infos[0]
	if in.Filled != 1 || in.Lo != 0 || in.Hi != 6 {
		t.Fatalf("info = %+v", in)
	}
	if in.Clamped != 1 {
		t.Fatalf("clamped = %d, want 1", in.Clamped)
	}
	for i, r := range clean.Rows {
		v := r.Value("v")
		if !v.IsNumber() {
			t.Fatalf("row %d not numeric: %#v", i, v)
		}
		if v.Num() < in.Lo || v.Num() > in.Hi {
			t.Fatalf("row %d value %v outside [%v,%v]", i, v.Num(), in.Lo, in.Hi)
		}
	}
	if got := clean.Rows[4].Value("v").Num(); got != 6 {
		t.Fatalf("outlier clamped to %v, want 6", got)
	}
}

func TestCleanAllMissingNumericDefaultsToZero(t *testing.T) {
	ds := dataset.New("z", dataset.RowOf("v", 1, "w", nil), dataset.RowOf("v", 2, "w", nil))
	cls := Classification{Columns: []string{"v", "w"}, Numeric: []string{"v", "w"}, numeric: map[string]bool{"v": true, "w": true}}
	clean, _ := Clean(ds, cls, DefaultOptions())
	for _, r := range clean.Rows {
		if v := r.Value("w"); !v.IsNumber() || v.Num() != 0 {
			t.Fatalf("w = %#v, want 0", v)
		}
	}
}

func TestModeTieScenarioE(t *testing.T) {
	ds := dataset.New("e",
		dataset.RowOf("tier", "silver"),
		dataset.RowOf("tier", "gold"),
		dataset.RowOf("tier", "bronze"),
		dataset.RowOf("tier", "gold"),
		dataset.RowOf("tier", "bronze"),
		dataset.RowOf("tier", "silver"),
		dataset.RowOf("tier", nil),
	)
	clean, infos := Clean(ds, Classify(ds, 0.5), DefaultOptions())
	if infos[0].Fill.String() != "silver" {
		t.Fatalf("mode = %q, want silver", infos[0].Fill.String())
	}
	if v := clean.Rows[6].Value("tier"); v.String() != "silver" {
		t.Fatalf("filled = %#v", v)
	}
}

func TestCorrelationMatrix(t *testing.T) {
	ds := dataset.New("r",
		dataset.RowOf("x", 1, "y", 2, "z", 4, "k", 5),
		dataset.RowOf("x", 2, "y", 4, "z", 3, "k", 5),
		dataset.RowOf("x", 3, "y", 6, "z", 2, "k", 5),
		dataset.RowOf("x", 4, "y", 8, "z", 1, "k", 5),
	)
	m := Correlate(ds, []string{"x", "y", "z", "k"}, 1e-6)
	near := func(a, b float64) bool { return math.Abs(a-b) < 1e-9 }
	for i := range m.Columns {
		for j := range m.Columns {
			if m.Values[i][j] != m.Values[j][i] {
				t.Fatalf("not symmetric at %d,%d", i, j)
			}
		}
	}
	// population std over (n-1) scales a perfect correlation to n/(n-1)
	for i := 0; i < 3; i++ {
		if !near(m.Values[i][i], 4.0/3) {
			t.Fatalf("diag[%d] = %v", i, m.Values[i][i])
		}
	}
	if !near(m.Values[0][1], 4.0/3) || !near(m.Values[0][2], -4.0/3) {
		t.Fatalf("r(x,y)=%v r(x,z)=%v", m.Values[0][1], m.Values[0][2])
	}
	// constant column is guarded, not NaN
	if m.Values[3][3] != 0 || m.Values[0][3] != 0 {
		t.Fatalf("constant column row = %v", m.Values[3])
	}
}

func TestCorrelationUsesPopulationStd(t *testing.T) {
	ds := dataset.New("p",
		dataset.RowOf("x", 1, "y", 2),
		dataset.RowOf("x", 2, "y", 1),
		dataset.RowOf("x", 3, "y", 3),
	)
	m := Correlate(ds, []string{"x", "y"}, 1e-6)
	if math.Abs(m.Values[0][1]-0.75) > 1e-9 {
		t.Fatalf("r(x,y) = %v, want 0.75", m.Values[0][1])
	}
	if math.Abs(m.Values[0][0]-1.5) > 1e-9 || math.Abs(m.Values[1][1]-1.5) > 1e-9 {
		t.Fatalf("diag = %v, %v, want 1.5", m.Values[0][0], m.Values[1][1])
	}
}

func TestColumnSummaryStdMatchesInsightCV(t *testing.T) {
	ds := dataset.New("s",
		dataset.RowOf("v", 0),
		dataset.RowOf("v", 0),
		dataset.RowOf("v", 10),
		dataset.RowOf("v", 10),
	)
	res, err := Analyze(ds, DefaultOptions())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	s := res.Stats.Summaries[0]
	if s.Mean != 5 || s.Std != 5 {
		t.Fatalf("mean=%v std=%v, want 5 and 5", s.Mean, s.Std)
	}
	if want := "High variability detected in v (CV ~ 1.00)."; res.Insights[1] != want {
		t.Fatalf("insight = %q, want %q", res.Insights[1], want)
	}
}

func TestInsightsVariabilityAndCorrelation(t *testing.T) {
	ds := dataset.New("v",
		dataset.RowOf("v", 0, "w", 0),
		dataset.RowOf("v", 0, "w", 1),
		dataset.RowOf("v", 10, "w", 10),
		dataset.RowOf("v", 10, "w", 11),
	)
	opt := DefaultOptions()
	opt.CorrelationInsight = true
	res, err := Analyze(ds, opt)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	want := []string{
		"Key metric v: mean 5.00, median 5.00.",
		"High variability detected in v (CV ~ 1.00).",
	}
	for i, w := range want {
		if res.Insights[i] != w {
			t.Fatalf("insight[%d] = %q, want %q", i, res.Insights[i], w)
		}
	}
	if len(res.Insights) != 3 || !strings.HasPrefix(res.Insights[2], "Strong relationship between v and w (|corr|=") {
		t.Fatalf("insights = %#v", res.Insights)
	}
	opt.CorrelationInsight = false
	res, _ = Analyze(ds, opt)
	if len(res.Insights) != 2 {
		t.Fatalf("correlation insight should be off by default: %#v", res.Insights)
	}
}

func TestTrendLineScenarioC(t *testing.T) {
	ds := dataset.New("c",
		dataset.RowOf("order_date", "2024-03-01", "amount", 30),
		dataset.RowOf("order_date", "2024-01-15", "amount", 10),
		dataset.RowOf("order_date", "not a date", "amount", 99),
		dataset.RowOf("order_date", "2024-02-10", "amount", 20),
	)
	res, err := Analyze(ds, DefaultOptions())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var line *Chart
	for i := range res.Specs {
		if res.Specs[i].Name == ChartTrendLine {
			line = &res.Specs[i]
		}
	}
	if line == nil {
		t.Fatalf("trend_line missing: %v", res.ChartTitles())
	}
	if line.Title != "Trend of amount over order_date" {
		t.Fatalf("title = %q", line.Title)
	}
	if len(line.Points) != 3 {
		t.Fatalf("points = %d, want 3", len(line.Points))
	}
	for i := 1; i < len(line.Points); i++ {
		if line.Points[i].At.Before(line.Points[i-1].At) {
			t.Fatalf("points not sorted: %v", line.Points)
		}
	}
	if line.Points[0].Value != 10 || line.Points[2].Value != 30 {
		t.Fatalf("values = %v", line.Points)
	}
	found := false
	for _, in := range res.Insights {
		if in == "Time dimension detected in order_date. Trend analysis included." {
			found = true
		}
	}
	if !found {
		t.Fatalf("time insight missing: %#v", res.Insights)
	}
	spec := res.PlotlyCharts[ChartTrendLine]
	xs, _ := spec.Data[0]["x"].([]string)
	if len(xs) != 3 || xs[0] != "2024-01-15T00:00:00.000Z" {
		t.Fatalf("plotly x = %v", xs)
	}
}

func TestAnalyzeEmptyScenarioD(t *testing.T) {
	_, err := Analyze(dataset.New("empty.csv"), DefaultOptions())
	if !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("expected ErrEmptyDataset, got %v", err)
	}
	var ee *EmptyDatasetError
	if !errors.As(err, &ee) || ee.Name != "empty.csv" {
		t.Fatalf("expected EmptyDatasetError with name, got %#v", err)
	}
	if _, err := Analyze(nil, DefaultOptions()); !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("nil dataset: %v", err)
	}
}

func TestSummarizeFallback(t *testing.T) {
	summary, strategies := Summarize(nil, DefaultOptions())
	if summary != FallbackSummary {
		t.Fatalf("summary = %q", summary)
	}
	if len(strategies) != 3 || strategies[0] != DefaultStrategies[0] {
		t.Fatalf("strategies = %#v", strategies)
	}
	strategies[0] = "changed"
	if DefaultStrategies[0] == "changed" {
		t.Fatalf("strategies must be a copy")
	}
}

func TestSummarizeUsesFirstThree(t *testing.T) {
	summary, _ := Summarize([]string{"a", "b", "c", "d"}, DefaultOptions())
	if summary != "Executive summary: a; b; c." {
		t.Fatalf("summary = %q", summary)
	}
}

type fakeRenderer struct{ fail string }

func (f fakeRenderer) Render(c Chart) ([]byte, error) {
	if c.Name == f.fail {
		return nil, errors.New("boom")
	}
	return []byte("img:" + c.Name), nil
}

func TestAnalyzeWithRenderer(t *testing.T) {
	opt := DefaultOptions()
	opt.Renderer = fakeRenderer{fail: ChartPie}
	res, err := Analyze(scenarioA(), opt)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.PlotlyCharts != nil {
		t.Fatalf("plotlyCharts should be nil on the image path")
	}
	if string(res.Charts[ChartHistogram]) != "img:histogram" {
		t.Fatalf("charts = %v", res.Charts)
	}
	if _, ok := res.Charts[ChartPie]; ok {
		t.Fatalf("failed chart should be absent")
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], ChartPie) {
		t.Fatalf("warnings = %v", res.Warnings)
	}
}

func TestResultJSONShape(t *testing.T) {
	res, err := Analyze(scenarioA(), DefaultOptions())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"report_summary", "strategies", "insights", "stats", "charts", "plotlyCharts"} {
		if _, ok := m[k]; !ok {
			t.Fatalf("missing key %s in %s", k, b)
		}
	}
	if m["charts"] != nil {
		t.Fatalf("charts should be null")
	}
	stats := m["stats"].(map[string]any)
	if shape := stats["shape"].([]any); len(shape) != 2 || shape[0].(float64) != 3 {
		t.Fatalf("shape = %v", shape)
	}
}
