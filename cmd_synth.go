package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hannes/kiji-autolabel/config"
	"github.com/hannes/kiji-autolabel/pii"
	"github.com/hannes/kiji-autolabel/pii/dataset"
)

type synthOptions struct {
	templates   string
	output      string
	perTemplate int
	resample    int
	seed        int64
	store       string
}

var synthOpts synthOptions

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Render templates with generated values into labeled examples",
	Long: `Renders every template line with fake values generated for each
placeholder label and writes the results with their gold spans as JSONL.
--resample adds augmented copies of each render with fresh values.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := commandConfig()
		if synthOpts.store != "" {
			c.Database.Driver = synthOpts.store
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return synthFile(cmd.Context(), c, synthOpts, cmd.OutOrStdout(), commandLogger())
	},
}

func init() {
	f := synthCmd.Flags()
	f.StringVar(&synthOpts.templates, "templates", "info/orig.txt", "File with one template per line")
	f.StringVarP(&synthOpts.output, "output", "o", "synthetic.jsonl", "Output JSONL file")
	f.IntVarP(&synthOpts.perTemplate, "per-template", "n", 1, "Renders per template")
	f.IntVar(&synthOpts.resample, "resample", 0, "Augmented copies per render")
	f.Int64Var(&synthOpts.seed, "seed", dataset.DefaultSeed, "Generator seed")
	f.StringVar(&synthOpts.store, "store", "", "Example store driver: none, sqlite or postgres (default from config)")
}

func synthFile(ctx context.Context, c *config.Config, opts synthOptions, out io.Writer, logger *zap.Logger) error {
	if opts.perTemplate < 1 {
		return fmt.Errorf("--per-template must be at least 1 (current value: %d)", opts.perTemplate)
	}
	if opts.resample < 0 {
		return fmt.Errorf("--resample must not be negative (current value: %d)", opts.resample)
	}

	templates, err := dataset.ReadLines(opts.templates)
	if err != nil {
		return err
	}

	generator := pii.NewGeneratorServiceWithSeed(opts.seed)
	canon := c.Canonicalizer()

	var examples []dataset.Example
	var lines []int
	skipped := 0
	for i, template := range templates {
		if strings.TrimSpace(template) == "" {
			continue
		}
		for n := 0; n < opts.perTemplate; n++ {
			ex, ok := generator.Render(template, canon)
			if !ok {
				skipped++
				break
			}
			examples = append(examples, ex)
			lines = append(lines, i+1)
			for k := 0; k < opts.resample; k++ {
				examples = append(examples, generator.Resample(ex))
				lines = append(lines, i+1)
			}
		}
	}
	if skipped > 0 {
		logger.Info("templates without placeholders skipped", zap.Int("count", skipped))
	}

	if err := dataset.WriteJSONL(opts.output, examples); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %d examples to %s\n", len(examples), opts.output)
	fmt.Fprintln(out, "Label counts:")
	fmt.Fprint(out, dataset.CountLabels(examples).String())

	run := pii.NewRun("synth", opts.templates)
	run.Pairs = len(templates)
	run.Examples = len(examples)
	return saveRun(ctx, c, run, examples, lines, logger)
}
