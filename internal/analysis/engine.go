package analysis

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/KaramelBytes/dataloom-cli/internal/dataset"
)

// Result is the terminal aggregate of one analysis. It is not modified after Analyze returns.
type Result struct {
	ID            string                `json:"id"`
	Name          string                `json:"name,omitempty"`
	ReportSummary string                `json:"report_summary"`
	Strategies    []string              `json:"strategies"`
	Insights      []string              `json:"insights"`
	Stats         Stats                 `json:"stats"`
	Charts        map[string][]byte     `json:"charts"`
	PlotlyCharts  map[string]PlotlySpec `json:"plotlyCharts"`
	Cleaning      []CleanInfo           `json:"cleaning,omitempty"`
	Warnings      []string              `json:"warnings,omitempty"`

	// Cleaned is the cleaned dataset; it is not serialized.
	Cleaned *dataset.Dataset `json:"-"`
	// Specs are the chart descriptors behind Charts or PlotlyCharts.
	Specs []Chart `json:"-"`
}

// Analyze runs Classify, Clean, then stats, insights, and charts over the
// cleaned data, and finally the report. ds is not modified.
func Analyze(ds *dataset.Dataset, opt Options) (*Result, error) {
	if ds.Len() == 0 {
		name := ""
		if ds != nil {
			name = ds.Name
		}
		return nil, &EmptyDatasetError{Name: name}
	}
	opt = opt.normalized()

	cls := Classify(ds, opt.NumericThreshold)
	clean, infos := Clean(ds, cls, opt)
	stats := ComputeStats(clean, cls, infos, opt)
	insights := DeriveInsights(clean, cls, stats.Correlation, opt)
	specs := BuildCharts(clean, cls, stats.Correlation, opt)
	summary, strategies := Summarize(insights, opt)

	res := &Result{
		ID:            uuid.NewString(),
		Name:          ds.Name,
		ReportSummary: summary,
		Strategies:    strategies,
		Insights:      insights,
		Stats:         stats,
		Cleaning:      infos,
		Cleaned:       clean,
		Specs:         specs,
	}
	if len(ds.Warnings) > 0 {
		res.Warnings = append([]string(nil), ds.Warnings...)
	}
	if opt.Renderer != nil {
		res.Charts = make(map[string][]byte, len(specs))
		for _, c := range specs {
			b, err := opt.Renderer.Render(c)
			if err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("chart %s not rendered: %v", c.Name, err))
				continue
			}
			res.Charts[c.Name] = b
		}
		return res, nil
	}
	res.PlotlyCharts = make(map[string]PlotlySpec, len(specs))
	for _, c := range specs {
		res.PlotlyCharts[c.Name] = c.PlotlySpec()
	}
	return res, nil
}

// ChartTitles maps each present chart name to its title.
func (r *Result) ChartTitles() map[string]string {
	out := map[string]string{}
	for _, c := range r.Specs {
		out[c.Name] = c.Title
	}
	for name, spec := range r.PlotlyCharts {
		if _, ok := out[name]; !ok {
			out[name] = spec.Layout.Title
		}
	}
	for name := range r.Charts {
		if _, ok := out[name]; !ok {
			out[name] = ""
		}
	}
	return out
}
