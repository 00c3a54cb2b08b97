package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/KaramelBytes/dataloom-cli/internal/analysis"
	"github.com/KaramelBytes/dataloom-cli/internal/dataset"
)

// Analyzer turns an uploaded file into a result.
type Analyzer interface {
	Analyze(ctx context.Context, filename string, body []byte) (*analysis.Result, error)
}

// LocalAnalyzer decodes and analyzes in process.
type LocalAnalyzer struct {
	Decode  dataset.DecodeOptions
	Options analysis.Options
}

// Analyze decodes body by filename and runs the engine.
func (l LocalAnalyzer) Analyze(ctx context.Context, filename string, body []byte) (*analysis.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ds, err := dataset.DecodeBytes(filename, body, l.Decode)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}
	return analysis.Analyze(ds, l.Options)
}

// FallbackAnalyzer tries Remote first and analyzes locally when it fails.
// When both fail the remote error comes first, since that is the one users act on.
type FallbackAnalyzer struct {
	Remote Analyzer
	Local  Analyzer
	// OnFallback, if set, is told why the remote attempt was abandoned.
	OnFallback func(err error)
}

// Analyze implements Analyzer.
func (f FallbackAnalyzer) Analyze(ctx context.Context, filename string, body []byte) (*analysis.Result, error) {
	if f.Remote == nil {
		return f.Local.Analyze(ctx, filename, body)
	}
	res, rerr := f.Remote.Analyze(ctx, filename, body)
	if rerr == nil {
		return res, nil
	}
	if f.OnFallback != nil {
		f.OnFallback(rerr)
	}
	if f.Local == nil {
		return nil, rerr
	}
	res, lerr := f.Local.Analyze(ctx, filename, body)
	if lerr == nil {
		return res, nil
	}
	return nil, errors.Join(rerr, fmt.Errorf("local analysis: %w", lerr))
}
