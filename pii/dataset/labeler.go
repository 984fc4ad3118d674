package dataset

import (
	"context"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hannes/kiji-autolabel/pii/align"
)

// Labeler aligns line pairs into examples.
type Labeler struct {
	Canon   align.Canonicalizer
	Workers int    // parallel alignments; <= 0 means GOMAXPROCS
	Source  string // meta source tag; empty means SourceAuto
	Logger  *zap.Logger
}

// LabelResult is the outcome of labeling a batch of line pairs.
type LabelResult struct {
	Examples    []Example
	Lines       []int // input line number of each example
	Pairs       int
	Empty       int // pairs that produced no spans
	Diagnostics align.Diagnostics
}

// Label aligns every pair and returns one example per pair that produced at
// least one span, in input order. Per-line alignment problems never fail the
// batch; only context cancellation does.
func (l *Labeler) Label(ctx context.Context, pairs []LinePair) (LabelResult, error) {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	source := l.Source
	if source == "" {
		source = SourceAuto
	}
	workers := l.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]align.Result, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range pairs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = align.AlignWithDiagnostics(pairs[i].Template, pairs[i].Rendered, l.Canon)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return LabelResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return LabelResult{}, err
	}

	out := LabelResult{Pairs: len(pairs)}
	for i, res := range results {
		out.Diagnostics.Add(res.Diagnostics)
		if len(res.Spans) == 0 {
			out.Empty++
			logger.Debug("no entities recovered", zap.Int("line", pairs[i].Line))
			continue
		}
		out.Examples = append(out.Examples, NewExample(pairs[i].Rendered, res.Spans, source))
		out.Lines = append(out.Lines, pairs[i].Line)
	}

	logger.Info("aligned line pairs",
		zap.Int("pairs", out.Pairs),
		zap.Int("examples", len(out.Examples)),
		zap.Int("empty", out.Empty),
		zap.Int("anchor_misses", out.Diagnostics.AnchorMisses),
		zap.Int("resync_skips", out.Diagnostics.ResyncSkips),
		zap.Int("malformed", out.Diagnostics.Malformed))
	return out, nil
}
