package analysis

// DefaultStrategies is the fixed advisory list attached to every report.
var DefaultStrategies = []string{
	"Improve retention with incentives and onboarding for risk segments.",
	"Optimize pricing versus competitors and regional elasticity.",
	"Reduce refunds via root-cause analysis and proactive support.",
}

// Options controls the engine's business constants.
type Options struct {
	// NumericThreshold is the share of coercible values at which a column is numeric.
	NumericThreshold float64
	// IQRMultiplier scales the interquartile range when computing clamp bounds.
	IQRMultiplier float64
	// StdEpsilon replaces a zero standard deviation in correlation.
	StdEpsilon float64
	// BarTopN and PieTopN cap the categories shown in bar and pie charts.
	BarTopN int
	PieTopN int
	// SummaryInsights is how many leading insights the executive summary joins.
	SummaryInsights int
	// Strategies is the advisory list copied into every result.
	Strategies []string
	// CorrelationInsight adds a "Strong relationship" insight for |r| >= 0.5.
	CorrelationInsight bool
	// Renderer, when set, turns chart specs into image bytes instead of Plotly specs.
	Renderer Renderer
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		NumericThreshold: 0.5,
		IQRMultiplier:    1.5,
		StdEpsilon:       1e-6,
		BarTopN:          10,
		PieTopN:          6,
		SummaryInsights:  3,
		Strategies:       append([]string(nil), DefaultStrategies...),
	}
}

// normalized fills zero fields from DefaultOptions.
func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.NumericThreshold <= 0 || o.NumericThreshold > 1 {
		o.NumericThreshold = d.NumericThreshold
	}
	if o.IQRMultiplier <= 0 {
		o.IQRMultiplier = d.IQRMultiplier
	}
	if o.StdEpsilon <= 0 {
		o.StdEpsilon = d.StdEpsilon
	}
	if o.BarTopN <= 0 {
		o.BarTopN = d.BarTopN
	}
	if o.PieTopN <= 0 {
		o.PieTopN = d.PieTopN
	}
	if o.SummaryInsights <= 0 {
		o.SummaryInsights = d.SummaryInsights
	}
	if len(o.Strategies) == 0 {
		o.Strategies = d.Strategies
	}
	return o
}
