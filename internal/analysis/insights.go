package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/dataloom-cli/internal/dataset"
)

// minStrongCorr is the |r| at which the optional correlation insight fires.
const minStrongCorr = 0.5

// DeriveInsights applies the fixed rule set in order: key metric, variability,
// optional correlation, time dimension, dominant category.
func DeriveInsights(clean *dataset.Dataset, cls Classification, corr *CorrMatrix, opt Options) []string {
	insights := []string{}
	if len(cls.Numeric) > 0 {
		col := cls.Numeric[0]
		vals := numericColumn(clean, col)
		mean, std := meanStd(vals)
		insights = append(insights, fmt.Sprintf("Key metric %s: mean %.2f, median %.2f.", col, mean, median(vals)))
		if std > 0 && mean != 0 {
			if cv := std / math.Abs(mean); cv > 0.8 {
				insights = append(insights, fmt.Sprintf("High variability detected in %s (CV ~ %.2f).", col, cv))
			}
		}
	}
	if opt.CorrelationInsight {
		if p, ok := strongestPair(corr); ok {
			insights = append(insights, fmt.Sprintf("Strong relationship between %s and %s (|corr|=%.2f).", p.A, p.B, math.Abs(p.R)))
		}
	}
	if col, ok := timeColumn(cls.Columns); ok {
		insights = append(insights, fmt.Sprintf("Time dimension detected in %s. Trend analysis included.", col))
	}
	if len(cls.Categorical) > 0 && clean.Len() > 0 {
		col := cls.Categorical[0]
		if top := frequencies(clean, col).top(1); len(top) == 1 {
			pct := float64(top[0].Count) / float64(clean.Len()) * 100
			insights = append(insights, fmt.Sprintf("Category %s dominated by %s (~%.1f%%).", col, top[0].Value, pct))
		}
	}
	return insights
}

// strongestPair returns the first pair with the largest |r|, if it reaches minStrongCorr.
func strongestPair(m *CorrMatrix) (PairCorr, bool) {
	pairs := m.TopPairs(1)
	if len(pairs) == 0 || math.Abs(pairs[0].R) < minStrongCorr {
		return PairCorr{}, false
	}
	return pairs[0], true
}

// timeColumn returns the first column whose name mentions a date or time.
func timeColumn(cols []string) (string, bool) {
	for _, c := range cols {
		lc := strings.ToLower(c)
		if strings.Contains(lc, "date") || strings.Contains(lc, "time") {
			return c, true
		}
	}
	return "", false
}
