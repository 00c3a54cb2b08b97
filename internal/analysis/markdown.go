package analysis

import (
	"fmt"
	"strings"
)

// Markdown renders a compact report suitable for prompts or standalone docs.
// sampleRows limits the head table; 0 omits it.
func (r *Result) Markdown(sampleRows int) string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", r.Stats.Shape[0]))
	b.WriteString(fmt.Sprintf("Columns: %d (numeric %d, categorical %d)\n\n",
		r.Stats.Shape[1], len(r.Stats.NumericColumns), len(r.Stats.CategoricalColumns)))

	b.WriteString("[SCHEMA]\n")
	if len(r.Stats.Summaries) > 0 {
		for _, c := range r.Stats.Summaries {
			b.WriteString(fmt.Sprintf("- %s: %s (filled %d", safeName(c.Name), c.Kind, c.Filled))
			if c.Clamped > 0 {
				b.WriteString(fmt.Sprintf(", clamped %d", c.Clamped))
			}
			b.WriteString(")")
			switch c.Kind {
			case "numeric":
				b.WriteString(fmt.Sprintf(" — min %.4g, max %.4g, mean %.4g, median %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Median, c.Std))
			case "categorical":
				if len(c.TopValues) > 0 {
					b.WriteString(" — top: ")
					for i, kv := range c.TopValues {
						if i > 0 {
							b.WriteString(", ")
						}
						b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
					}
					if c.Unique > len(c.TopValues) {
						b.WriteString(fmt.Sprintf("; unique=%d", c.Unique))
					}
				}
			}
			b.WriteString("\n")
		}
	} else {
		for _, c := range r.Stats.NumericColumns {
			b.WriteString(fmt.Sprintf("- %s: numeric\n", safeName(c)))
		}
		for _, c := range r.Stats.CategoricalColumns {
			b.WriteString(fmt.Sprintf("- %s: categorical\n", safeName(c)))
		}
	}

	if pairs := r.Stats.Correlation.TopPairs(10); len(pairs) > 0 {
		b.WriteString("\n[CORRELATIONS]\n")
		for _, p := range pairs {
			b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f\n", p.A, p.B, p.R))
		}
	}

	if len(r.Insights) > 0 {
		b.WriteString("\n[INSIGHTS]\n")
		for _, in := range r.Insights {
			b.WriteString("- " + in + "\n")
		}
	}
	b.WriteString("\n[EXECUTIVE SUMMARY]\n")
	b.WriteString(r.ReportSummary + "\n")
	if len(r.Strategies) > 0 {
		b.WriteString("\n[STRATEGIES]\n")
		for i, s := range r.Strategies {
			b.WriteString(fmt.Sprintf("%d. %s\n", i+1, s))
		}
	}

	titles := r.ChartTitles()
	if len(titles) > 0 {
		b.WriteString("\n[CHARTS]\n")
		for _, name := range ChartNames {
			title, ok := titles[name]
			if !ok {
				continue
			}
			if title == "" {
				b.WriteString(fmt.Sprintf("- %s\n", name))
				continue
			}
			b.WriteString(fmt.Sprintf("- %s: %s\n", name, title))
		}
	}

	if head := r.Cleaned.Head(sampleRows); len(head) > 0 {
		cols := r.Cleaned.Columns()
		b.WriteString("\n[HEAD AND SAMPLE ROWS]\n")
		b.WriteString("| ")
		for i, c := range cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeName(c))
		}
		b.WriteString(" |\n| ")
		for i := range cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString("---")
		}
		b.WriteString(" |\n")
		for _, row := range head {
			b.WriteString("| ")
			for i, val := range row {
				if i > 0 {
					b.WriteString(" | ")
				}
				if len(val) > 80 {
					val = val[:77] + "..."
				}
				b.WriteString(safeVal(val))
			}
			b.WriteString(" |\n")
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
