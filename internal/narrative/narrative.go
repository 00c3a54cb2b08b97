// Package narrative asks a language model to write the executive summary and
// strategies for an analysis result. The deterministic report stays the
// fallback whenever the model is unavailable or answers badly.
package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/dataloom-cli/internal/ai"
	"github.com/KaramelBytes/dataloom-cli/internal/analysis"
	"github.com/KaramelBytes/dataloom-cli/internal/utils"
)

const instructions = `Business Intelligence Analyst Assistant
You are given data (snippet and stats) and auto-generated insights. Extract the primary strengths and weaknesses, list 5 thoughtful business insights, and recommend advanced business strategies to improve results. Use professional business language and avoid trivial descriptive stats.`

const task = `Give answers in this JSON:
{"summary": "...", "insights": ["..."], "strengths": "...", "weaknesses": "...", "strategies": ["..."]}`

// Narrative is the model's structured answer.
type Narrative struct {
	Summary    string   `json:"summary"`
	Insights   []string `json:"insights"`
	Strengths  string   `json:"strengths"`
	Weaknesses string   `json:"weaknesses"`
	Strategies []string `json:"strategies"`
}

// Narrator builds prompts from results and calls a Runtime.
type Narrator struct {
	Runtime     ai.Runtime
	Model       string
	MaxTokens   int
	Temperature float64
	// PromptTokenLimit caps the prompt; 0 derives it from the model's context window.
	PromptTokenLimit int
	// SampleRows is how many cleaned rows go into the data sample.
	SampleRows int
}

// ErrNoRuntime is returned when the narrator has nothing to call.
var ErrNoRuntime = errors.New("narrative: no runtime configured")

// Prompt renders the sections sent to the model, trimmed to the token budget.
func (n *Narrator) Prompt(res *analysis.Result) string {
	sample := n.SampleRows
	if sample <= 0 {
		sample = 10
	}
	secs := []utils.Section{
		{Name: "instructions", Text: "[INSTRUCTIONS]\n" + instructions + "\n\n"},
		{Name: "task", Text: "[TASK]\n" + task + "\n\n"},
		{Name: "insights", Text: "[AUTO-INSIGHTS]\n" + strings.Join(res.Insights, "\n") + "\n\n"},
		{Name: "stats", Text: "[STATS]\n" + statsBlock(res) + "\n"},
		{Name: "sample", Text: "[DATA SAMPLE]\n" + sampleBlock(res, sample) + "\n"},
	}
	secs = utils.FitSections(secs, n.promptLimit())
	var b strings.Builder
	for _, s := range secs {
		b.WriteString(s.Text)
	}
	return strings.TrimSpace(b.String())
}

func (n *Narrator) promptLimit() int {
	if n.PromptTokenLimit > 0 {
		return n.PromptTokenLimit
	}
	budget := ai.ContextWindow(n.Model) - n.maxTokens()
	if budget < 512 {
		budget = 512
	}
	return budget
}

func (n *Narrator) maxTokens() int {
	if n.MaxTokens > 0 {
		return n.MaxTokens
	}
	return 800
}

// Narrate asks the model for a narrative of res.
func (n *Narrator) Narrate(ctx context.Context, res *analysis.Result) (*Narrative, error) {
	if n == nil || n.Runtime == nil {
		return nil, ErrNoRuntime
	}
	temp := n.Temperature
	if temp <= 0 {
		temp = 0.35
	}
	req := ai.GenerateRequest{
		Model:       n.Model,
		Messages:    []ai.Message{{Role: "user", Content: n.Prompt(res)}},
		MaxTokens:   n.maxTokens(),
		Temperature: temp,
	}.JSONMode()
	resp, err := n.Runtime.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("narrative: generate: %w", err)
	}
	return Parse(resp.Text())
}

// Parse decodes the model's JSON answer, tolerating code fences and prose around it.
func Parse(text string) (*Narrative, error) {
	body := extractJSON(text)
	if body == "" {
		return nil, errors.New("narrative: no JSON object in reply")
	}
	var out Narrative
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, fmt.Errorf("narrative: decode reply: %w", err)
	}
	out.Summary = strings.TrimSpace(out.Summary)
	out.Strategies = compact(out.Strategies)
	out.Insights = compact(out.Insights)
	return &out, nil
}

func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func compact(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Apply returns a copy of res with the narrative's summary (when non-empty) and
// strategies. Strategies are normalized to the length of res.Strategies,
// padding from res's own list when the model returned too few.
func Apply(res *analysis.Result, n *Narrative) *analysis.Result {
	out := *res
	out.Strategies = append([]string(nil), res.Strategies...)
	if n == nil {
		return &out
	}
	if n.Summary != "" {
		out.ReportSummary = n.Summary
	}
	want := len(res.Strategies)
	if want == 0 {
		want = len(analysis.DefaultStrategies)
	}
	merged := make([]string, 0, want)
	merged = append(merged, n.Strategies...)
	fallback := res.Strategies
	if len(fallback) == 0 {
		fallback = analysis.DefaultStrategies
	}
	for i := len(merged); i < want && i < len(fallback); i++ {
		merged = append(merged, fallback[i])
	}
	if len(merged) > want {
		merged = merged[:want]
	}
	out.Strategies = merged
	return &out
}

func statsBlock(res *analysis.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "rows=%d columns=%d\n", res.Stats.Shape[0], res.Stats.Shape[1])
	for _, s := range res.Stats.Summaries {
		switch s.Kind {
		case "numeric":
			fmt.Fprintf(&b, "- %s: mean %.4g, median %.4g, std %.4g, min %.4g, max %.4g\n", s.Name, s.Mean, s.Median, s.Std, s.Min, s.Max)
		default:
			fmt.Fprintf(&b, "- %s: %d distinct", s.Name, s.Unique)
			if len(s.TopValues) > 0 {
				fmt.Fprintf(&b, ", top %s (%d)", s.TopValues[0].Value, s.TopValues[0].Count)
			}
			b.WriteString("\n")
		}
	}
	for _, p := range res.Stats.Correlation.TopPairs(5) {
		fmt.Fprintf(&b, "- corr %s ~ %s: %.3f\n", p.A, p.B, p.R)
	}
	return b.String()
}

func sampleBlock(res *analysis.Result, n int) string {
	head := res.Cleaned.Head(n)
	if len(head) == 0 {
		return "(no sample available)\n"
	}
	var b strings.Builder
	b.WriteString("| " + strings.Join(res.Cleaned.Columns(), " | ") + " |\n")
	for _, row := range head {
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	return b.String()
}
