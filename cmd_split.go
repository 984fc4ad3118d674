package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hannes/kiji-autolabel/config"
	"github.com/hannes/kiji-autolabel/pii/dataset"
)

type splitOptions struct {
	primary    string
	secondary  string
	outDir     string
	seed       int64
	trainRatio float64
	valRatio   float64
}

var splitOpts splitOptions

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Merge example files and split them into train, val and test sets",
	Long: `Loads the primary JSONL file and, when it exists, the secondary one,
re-canonicalizes every label, drops examples left without entities, shuffles
with a fixed seed and writes train.jsonl, val.jsonl and test.jsonl.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := commandConfig()
		applySplitFlags(cmd, c, splitOpts)
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return splitFiles(c, splitOpts, cmd.OutOrStdout(), commandLogger())
	},
}

func init() {
	f := splitCmd.Flags()
	f.StringVar(&splitOpts.primary, "primary", "synthetic.jsonl", "Required JSONL source")
	f.StringVar(&splitOpts.secondary, "secondary", "auto_labels.jsonl", "Optional JSONL source, skipped when missing")
	f.StringVar(&splitOpts.outDir, "out-dir", ".", "Directory for train.jsonl, val.jsonl and test.jsonl")
	f.Int64Var(&splitOpts.seed, "seed", dataset.DefaultSeed, "Shuffle seed")
	f.Float64Var(&splitOpts.trainRatio, "train-ratio", dataset.DefaultTrainRatio, "Share of examples in the train set")
	f.Float64Var(&splitOpts.valRatio, "val-ratio", dataset.DefaultValRatio, "Share of examples in the val set")
}

func applySplitFlags(cmd *cobra.Command, c *config.Config, opts splitOptions) {
	flags := cmd.Flags()
	if flags.Changed("seed") {
		c.Split.Seed = opts.seed
	}
	if flags.Changed("train-ratio") {
		c.Split.TrainRatio = opts.trainRatio
	}
	if flags.Changed("val-ratio") {
		c.Split.ValRatio = opts.valRatio
	}
}

func splitFiles(c *config.Config, opts splitOptions, out io.Writer, logger *zap.Logger) error {
	examples, err := dataset.LoadSources(logger, opts.primary, opts.secondary)
	if err != nil {
		return err
	}

	examples, stats := dataset.NormalizeExamples(examples, c.Canonicalizer())
	if stats.DroppedEntities > 0 || stats.DroppedExamples > 0 {
		logger.Info("normalized labels",
			zap.Int("entities", stats.EntitiesBefore),
			zap.Int("dropped_entities", stats.DroppedEntities),
			zap.Int("dropped_examples", stats.DroppedExamples))
	}

	parts := dataset.Split(examples, c.Split.Seed, c.Split.TrainRatio, c.Split.ValRatio)

	outputs := []struct {
		name     string
		examples []dataset.Example
	}{
		{"train.jsonl", parts.Train},
		{"val.jsonl", parts.Val},
		{"test.jsonl", parts.Test},
	}
	for _, o := range outputs {
		if err := dataset.WriteJSONL(filepath.Join(opts.outDir, o.name), o.examples); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "train=%d, val=%d, test=%d, total=%d\n",
		len(parts.Train), len(parts.Val), len(parts.Test), parts.Total())
	return nil
}
