package analysis

import "strings"

// FallbackSummary is used when no insight was derived.
const FallbackSummary = "The dataset was analyzed. No strong trends detected."

// Summarize joins the leading insights into the executive summary and returns
// a copy of the strategy list.
func Summarize(insights []string, opt Options) (string, []string) {
	opt = opt.normalized()
	n := opt.SummaryInsights
	if n > len(insights) {
		n = len(insights)
	}
	summary := FallbackSummary
	if joined := strings.Join(insights[:n], "; "); joined != "" {
		summary = "Executive summary: " + joined + "."
	}
	return summary, append([]string(nil), opt.Strategies...)
}
