package utils

// Token estimation uses the 1 token ~= 4 characters heuristic.

// CountTokens estimates the number of tokens in the given text.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len([]rune(text)) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

// TruncateToTokenLimit truncates text to roughly fit within a token limit.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	charLimit := limit * 4
	if charLimit >= len(runes) {
		return text
	}
	return string(runes[:charLimit])
}

// Section is a named block of prompt text.
type Section struct {
	Name string
	Text string
}

// FitSections trims sections from the last to the first until the total fits
// within limit tokens. Earlier sections have priority.
func FitSections(sections []Section, limit int) []Section {
	out := make([]Section, len(sections))
	copy(out, sections)
	total := 0
	for _, s := range out {
		total += CountTokens(s.Text)
	}
	for i := len(out) - 1; i >= 0 && total > limit; i-- {
		n := CountTokens(out[i].Text)
		keep := n - (total - limit)
		if keep < 0 {
			keep = 0
		}
		out[i].Text = TruncateToTokenLimit(out[i].Text, keep)
		total -= n - CountTokens(out[i].Text)
	}
	return out
}

// TokenBreakdown returns a map of section names to token counts.
func TokenBreakdown(sections []Section) map[string]int {
	out := make(map[string]int, len(sections))
	for _, s := range sections {
		out[s.Name] += CountTokens(s.Text)
	}
	return out
}
