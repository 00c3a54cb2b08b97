package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	anaOutputPath  string
	anaFormat      string
	anaRemote      string
	anaNarrate     bool
	anaProvider    string
	anaModel       string
	anaDelimiter   string
	anaSampleRows  int
	anaMaxRows     int
	anaSheetName   string
	anaSheetIndex  int
	anaCorrInsight bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a CSV/TSV/XLSX/JSON dataset and produce insights, charts and a summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		c, err := ensureConfig()
		if err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		opt := c.AnalysisOptions()
		if cmd.Flags().Changed("correlation-insight") {
			opt.CorrelationInsight = anaCorrInsight
		}
		dopt := c.DecodeOptions()
		if dopt.Delimiter, err = parseDelimiter(anaDelimiter); err != nil {
			return err
		}
		if cmd.Flags().Changed("max-rows") {
			dopt.MaxRows = anaMaxRows
		}
		dopt.SheetName = anaSheetName
		if anaSheetIndex > 0 {
			dopt.SheetIndex = anaSheetIndex
		}
		sampleRows := c.SampleRows
		if cmd.Flags().Changed("sample-rows") {
			sampleRows = anaSampleRows
		}
		remoteURL := c.RemoteURL
		if cmd.Flags().Changed("remote") {
			remoteURL = anaRemote
		}

		body, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		debugf("analyzing %s (%d bytes, remote=%q)", path, len(body), remoteURL)
		analyzer := buildAnalyzer(c, dopt, opt, remoteURL, cmd.ErrOrStderr())
		res, err := analyzer.Analyze(cmd.Context(), path, body)
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ %s\n", w)
		}
		if anaNarrate || c.Narrate {
			res = narrateResult(cmd.Context(), c, res, narrateOptions{Provider: anaProvider, Model: anaModel, Warn: cmd.ErrOrStderr()})
		}
		return formatAndWriteOutput(res, outputOptions{
			Format:     anaFormat,
			SampleRows: sampleRows,
			OutputPath: anaOutputPath,
			Writer:     cmd.OutOrStdout(),
		})
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the analysis")
	analyzeCmd.Flags().StringVar(&anaFormat, "format", "md", "output format: md|json")
	analyzeCmd.Flags().StringVar(&anaRemote, "remote", "", "remote analysis service base URL (falls back to local analysis)")
	analyzeCmd.Flags().BoolVar(&anaNarrate, "narrate", false, "ask the configured AI provider to write the summary and strategies")
	analyzeCmd.Flags().StringVar(&anaProvider, "provider", "", "AI provider for --narrate: openrouter|openai|ollama")
	analyzeCmd.Flags().StringVar(&anaModel, "model", "", "model for --narrate (defaults to default_model)")
	analyzeCmd.Flags().StringVar(&anaDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | '|' | 'tab'")
	analyzeCmd.Flags().IntVar(&anaSampleRows, "sample-rows", 5, "number of cleaned sample rows in the Markdown report")
	analyzeCmd.Flags().IntVar(&anaMaxRows, "max-rows", 0, "maximum rows to process (0 = unlimited)")
	analyzeCmd.Flags().StringVar(&anaSheetName, "sheet-name", "", "XLSX: sheet name to analyze")
	analyzeCmd.Flags().IntVar(&anaSheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	analyzeCmd.Flags().BoolVar(&anaCorrInsight, "correlation-insight", false, "add a 'Strong relationship' insight for |corr| >= 0.5")
}
