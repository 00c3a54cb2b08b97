package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/dataloom-cli/internal/analysis"
	"github.com/KaramelBytes/dataloom-cli/internal/utils"
)

var (
	abOutDir     string
	abFormat     string
	abJobs       int
	abRemote     string
	abDelimiter  string
	abSampleRows int
	abMaxRows    int
	abSheetName  string
	abSheetIndex int
	abQuiet      bool
)

type batchItem struct {
	path string
	out  string
	res  *analysis.Result
	err  error
}

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Analyze multiple CSV/TSV/XLSX/JSON files concurrently",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := expandInputs(args)
		if len(files) == 0 {
			return fmt.Errorf("no input files matched")
		}
		c, err := ensureConfig()
		if err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		opt := c.AnalysisOptions()
		dopt := c.DecodeOptions()
		if dopt.Delimiter, err = parseDelimiter(abDelimiter); err != nil {
			return err
		}
		if cmd.Flags().Changed("max-rows") {
			dopt.MaxRows = abMaxRows
		}
		dopt.SheetName = abSheetName
		if abSheetIndex > 0 {
			dopt.SheetIndex = abSheetIndex
		}
		sampleRows := c.SampleRows
		if cmd.Flags().Changed("sample-rows") {
			sampleRows = abSampleRows
		}
		if err := checkFormat(abFormat); err != nil {
			return err
		}
		remoteURL := c.RemoteURL
		if cmd.Flags().Changed("remote") {
			remoteURL = abRemote
		}
		analyzer := buildAnalyzer(c, dopt, opt, remoteURL, cmd.ErrOrStderr())

		items := make([]batchItem, len(files))
		outNames := planOutputs(files, abOutDir, outputExt(abFormat))
		for i, f := range files {
			items[i] = batchItem{path: f, out: outNames[i]}
		}

		var g errgroup.Group
		jobs := abJobs
		if jobs <= 0 {
			jobs = 1
		}
		g.SetLimit(jobs)
		ctx := cmd.Context()
		for i := range items {
			it := &items[i]
			g.Go(func() error {
				body, err := os.ReadFile(it.path)
				if err != nil {
					it.err = fmt.Errorf("read input: %w", err)
					return nil
				}
				it.res, it.err = analyzer.Analyze(ctx, it.path, body)
				return nil
			})
		}
		_ = g.Wait()

		out := cmd.OutOrStdout()
		var failed []error
		total := len(items)
		for i, it := range items {
			if !abQuiet {
				fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(it.path))
			}
			if it.err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: %v\n", it.path, it.err)
				failed = append(failed, fmt.Errorf("%s: %w", it.path, it.err))
				continue
			}
			if err := formatAndWriteOutput(it.res, outputOptions{
				Format:     abFormat,
				SampleRows: sampleRows,
				OutputPath: it.out,
				Quiet:      abQuiet,
				Writer:     out,
			}); err != nil {
				failed = append(failed, fmt.Errorf("%s: %w", it.path, err))
			}
		}
		if len(failed) > 0 {
			return fmt.Errorf("%d of %d files failed: %w", len(failed), total, errors.Join(failed...))
		}
		return nil
	},
}

// expandInputs resolves globs and literal paths, deduplicated and sorted.
func expandInputs(args []string) []string {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}

// planOutputs assigns each input an output path under dir, adding __N
// suffixes when basenames collide or a file already exists. An empty dir
// means stdout for every input.
func planOutputs(files []string, dir, ext string) []string {
	out := make([]string, len(files))
	if dir == "" {
		return out
	}
	used := map[string]bool{}
	for i, f := range files {
		base := strings.TrimSuffix(utils.OutputName(f, ext), ext)
		cand := filepath.Join(dir, base+ext)
		for n := 2; used[cand] || exists(cand); n++ {
			cand = filepath.Join(dir, fmt.Sprintf("%s__%d%s", base, n, ext))
		}
		used[cand] = true
		out[i] = cand
	}
	return out
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	analyzeBatchCmd.Flags().StringVar(&abOutDir, "out-dir", "", "directory for per-file reports (stdout if empty)")
	analyzeBatchCmd.Flags().StringVar(&abFormat, "format", "md", "output format: md|json")
	analyzeBatchCmd.Flags().IntVarP(&abJobs, "jobs", "j", 4, "number of files analyzed concurrently")
	analyzeBatchCmd.Flags().StringVar(&abRemote, "remote", "", "remote analysis service base URL (falls back to local analysis)")
	analyzeBatchCmd.Flags().StringVar(&abDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | '|' | 'tab'")
	analyzeBatchCmd.Flags().IntVar(&abSampleRows, "sample-rows", 5, "number of cleaned sample rows in Markdown reports")
	analyzeBatchCmd.Flags().IntVar(&abMaxRows, "max-rows", 0, "maximum rows to process per file (0 = unlimited)")
	analyzeBatchCmd.Flags().StringVar(&abSheetName, "sheet-name", "", "XLSX: sheet name to analyze")
	analyzeBatchCmd.Flags().IntVar(&abSheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress and non-essential output")
}
