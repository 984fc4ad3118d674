package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hannes/kiji-autolabel/config"
	"github.com/hannes/kiji-autolabel/pii"
	"github.com/hannes/kiji-autolabel/pii/dataset"
	detectors "github.com/hannes/kiji-autolabel/pii/detectors"
	"github.com/hannes/kiji-autolabel/pii/tokencheck"
	"github.com/hannes/kiji-autolabel/pii/tokencheck/hf"
)

type labelOptions struct {
	template  string
	rendered  string
	output    string
	source    string
	workers   int
	tokenizer string
	store     string
	validate  bool
}

var labelOpts labelOptions

// labelCmd aligns template/rendered line pairs into JSONL examples
var labelCmd = &cobra.Command{
	Use:   "label",
	Short: "Recover entity spans from template and rendered line files",
	Long: `Reads two parallel files, one template line and one rendered line per
row, aligns every pair and writes one JSONL example per pair that produced at
least one entity. Both files must have the same number of lines.`,
	Args: cobra.NoArgs,
	RunE: runLabel,
}

func init() {
	f := labelCmd.Flags()
	f.StringVar(&labelOpts.template, "template", "info/orig.txt", "File with template lines containing [label] placeholders")
	f.StringVar(&labelOpts.rendered, "rendered", "info/anonymized.txt", "File with the rendered lines")
	f.StringVarP(&labelOpts.output, "output", "o", "auto_labels.jsonl", "Output JSONL file")
	f.StringVar(&labelOpts.source, "source", "", "Source tag written to meta.source (default from config)")
	f.IntVarP(&labelOpts.workers, "workers", "j", 0, "Parallel alignments (default from config)")
	f.StringVar(&labelOpts.tokenizer, "tokenizer", "", "tokenizer.json to check span/token boundaries against")
	f.StringVar(&labelOpts.store, "store", "", "Example store driver: none, sqlite or postgres (default from config)")
	f.BoolVar(&labelOpts.validate, "validate", false, "Report entities whose text does not look like their label")
}

// applyLabelFlags copies explicitly set flags over the configuration.
func applyLabelFlags(c *config.Config, opts labelOptions) {
	if opts.workers > 0 {
		c.Label.Workers = opts.workers
	}
	if opts.source != "" {
		c.Label.Source = opts.source
	}
	if opts.tokenizer != "" {
		c.Label.Tokenizer = opts.tokenizer
	}
	if opts.store != "" {
		c.Database.Driver = opts.store
	}
	if opts.validate {
		c.Label.Validate = true
	}
}

func runLabel(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := commandConfig()
	applyLabelFlags(c, labelOpts)
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return labelFiles(ctx, c, labelOpts, cmd.OutOrStdout(), commandLogger())
}

func labelFiles(ctx context.Context, c *config.Config, opts labelOptions, out io.Writer, logger *zap.Logger) error {
	pairs, err := dataset.ReadLinePairs(opts.template, opts.rendered)
	if err != nil {
		if errors.Is(err, dataset.ErrLineCountMismatch) {
			return fmt.Errorf("refusing to align %s against %s: %w", opts.template, opts.rendered, err)
		}
		return err
	}
	logger.Info("read line pairs", zap.String("template", opts.template), zap.String("rendered", opts.rendered), zap.Int("pairs", len(pairs)))

	labeler := &dataset.Labeler{
		Canon:   c.Canonicalizer(),
		Workers: c.Label.Workers,
		Source:  c.Label.Source,
		Logger:  logger,
	}
	result, err := labeler.Label(ctx, pairs)
	if err != nil {
		return fmt.Errorf("failed to label line pairs: %w", err)
	}

	if err := dataset.WriteJSONL(opts.output, result.Examples); err != nil {
		return err
	}

	stats := dataset.CountLabels(result.Examples)
	fmt.Fprintf(out, "Wrote %d examples to %s\n", len(result.Examples), opts.output)
	fmt.Fprintln(out, "Label counts:")
	fmt.Fprint(out, stats.String())

	if c.Label.Validate {
		validator := detectors.DefaultValidator()
		printValidation(out, validator.CheckAll(result.Examples))
		_ = validator.Close()
	}

	if c.Label.Tokenizer != "" {
		if err := checkTokenBoundaries(ctx, out, c.Label.Tokenizer, result.Examples); err != nil {
			return err
		}
	}

	run := pii.NewRun("label", opts.rendered)
	run.Pairs = result.Pairs
	run.Examples = len(result.Examples)
	return saveRun(ctx, c, run, result.Examples, result.Lines, logger)
}

func printValidation(out io.Writer, report detectors.Report) {
	fmt.Fprintf(out, "Validation: %d of %d entities flagged\n", len(report.Findings), report.Entities)
	for _, label := range report.FlaggedLabels() {
		fmt.Fprintf(out, "  %s: %d\n", label, report.Flagged[label])
	}
	fmt.Fprintf(out, "Unlabeled pattern hits: %d\n", report.Unlabeled)
	fmt.Fprint(out, dataset.LabelStats(report.UnlabeledByLabel).String())
}

func checkTokenBoundaries(ctx context.Context, out io.Writer, path string, examples []dataset.Example) error {
	tk, err := hf.Load(path)
	if err != nil {
		return err
	}
	defer tk.Close()

	report, err := tokencheck.CheckAll(ctx, examples, tk)
	if err != nil {
		return fmt.Errorf("failed to check token boundaries: %w", err)
	}
	fmt.Fprintf(out, "Token boundaries: %d of %d entities cut through a token (%.2f%%)\n",
		report.Misaligned, report.Entities, 100*report.Rate())
	for _, lc := range dataset.LabelStats(report.ByLabel).Sorted() {
		fmt.Fprintf(out, "  %s: %d\n", lc.Label, lc.Count)
	}
	return nil
}

// saveRun stores the run and its examples when a store driver is configured.
func saveRun(ctx context.Context, c *config.Config, run pii.Run, examples []dataset.Example, lines []int, logger *zap.Logger) error {
	if c.Database.Driver == "" || c.Database.Driver == pii.DriverNone {
		return nil
	}

	store, err := pii.NewExampleStore(ctx, c.Database.StoreConfig())
	if err != nil {
		return fmt.Errorf("failed to open example store: %w", err)
	}
	defer store.Close()

	if err := store.SaveRun(ctx, run); err != nil {
		return err
	}
	if err := store.SaveExamples(ctx, run.ID, examples, lines); err != nil {
		return err
	}
	logger.Info("stored run",
		zap.String("run_id", run.ID),
		zap.String("driver", c.Database.Driver),
		zap.Int("examples", len(examples)))
	return nil
}
