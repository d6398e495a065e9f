// Package reject provides the reject command for sourcefilter
package reject

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tphakala/sourcefilter/internal/conf"
	"github.com/tphakala/sourcefilter/internal/errors"
	"github.com/tphakala/sourcefilter/internal/logger"
	"github.com/tphakala/sourcefilter/internal/observability"
	"github.com/tphakala/sourcefilter/internal/overrides"
	"github.com/tphakala/sourcefilter/internal/pipeline"
	"github.com/tphakala/sourcefilter/internal/prompt"
	"github.com/tphakala/sourcefilter/internal/runconfig"
)

// options are the per-invocation flags that have no config file key.
type options struct {
	tokens   string
	outputID string
}

// Command creates the reject command.
func Command(settings *conf.Settings, fs afero.Fs) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "reject [image.fits] [cat_<outputid>.dat]",
		Short: "Score candidates and reject those at or below the SNR threshold",
		Long: `Measure the peak-to-background-RMS ratio of every candidate in the catalog,
reject candidates at or below the threshold, apply persisted and newly entered
manual overrides, and write the filtered catalog and region file.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				settings.Input.Image = args[0]
			}
			if len(args) > 1 {
				settings.Input.Catalog = args[1]
			}
			collector := selectCollector(settings, opts.tokens, os.Stdin, cmd.OutOrStdout())
			return run(cmd.Context(), settings, fs, opts, collector, cmd.OutOrStdout())
		},
	}

	setupFlags(cmd, &opts)
	return cmd
}

// setupFlags defines the reject flags and binds the persistent ones to viper keys.
func setupFlags(cmd *cobra.Command, opts *options) {
	flags := cmd.Flags()
	flags.Float64P("threshold", "t", 6.0, "Reject candidates with SNR at or below this value")
	flags.Int("workers", 0, "Photometry goroutines, 0 uses all CPUs")
	flags.String("catalog-dir", "cat", "Directory for the filtered catalog and run summary")
	flags.String("region-dir", "reg", "Directory for the filtered region file")
	flags.String("override-dir", ".override", "Directory of accept/reject override files")
	flags.String("override-backend", conf.BackendFile, "Override store: file, sqlite or mysql")
	flags.Bool("strict", false, "Abort when an id is both accepted and rejected")
	flags.Bool("interactive", true, "Prompt for manual overrides when stdin is a terminal")
	flags.String("metrics-textfile", "", "Write Prometheus metrics to this textfile")
	flags.StringVar(&opts.tokens, "overrides", "", `Override tokens to apply without prompting, e.g. "r319, a605"`)
	flags.StringVar(&opts.outputID, "output-id", "", "Output identifier to use instead of parsing the catalog file name")

	bindings := map[string]string{
		"threshold":        "rejection.threshold",
		"workers":          "rejection.workers",
		"catalog-dir":      "output.catalogdir",
		"region-dir":       "output.regiondir",
		"override-dir":     "overrides.dir",
		"override-backend": "overrides.backend",
		"strict":           "overrides.strict",
		"interactive":      "overrides.interactive",
		"metrics-textfile": "metrics.textfile",
	}
	if err := bindFlags(flags, bindings); err != nil {
		panic(err)
	}
}

// bindFlags ties each named flag to its configuration key so that an explicitly
// set flag overrides config file and environment values.
func bindFlags(flags *pflag.FlagSet, bindings map[string]string) error {
	for flag, key := range bindings {
		f := flags.Lookup(flag)
		if f == nil {
			return fmt.Errorf("flag %s is not defined", flag)
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// selectCollector picks scripted tokens first, then the terminal prompt when
// stdin is interactive, and otherwise submits nothing.
func selectCollector(settings *conf.Settings, tokens string, stdin *os.File, out io.Writer) prompt.Collector {
	switch {
	case tokens != "":
		return prompt.Scripted{Text: tokens}
	case settings.Overrides.Interactive && prompt.IsInteractive(stdin):
		return prompt.NewTerminal(stdin, out, prompt.DefaultMaxAttempts)
	default:
		return prompt.None{}
	}
}

func run(ctx context.Context, settings *conf.Settings, fs afero.Fs, opts options, collector prompt.Collector, out io.Writer) error {
	log := logger.Global().Module("reject")

	if settings.Input.Image == "" || settings.Input.Catalog == "" {
		return errors.Newf("both an image and a catalog are required").
			Component("reject").
			Category(errors.CategoryValidation).
			Build()
	}

	var rc *runconfig.RunConfig
	if opts.outputID != "" {
		parsed, err := runconfig.ParseOutputID(opts.outputID)
		if err != nil {
			return err
		}
		rc = &parsed
	}

	in, err := pipeline.LoadInputs(fs, settings.Input.Image, settings.Input.Catalog, rc)
	if err != nil {
		return err
	}

	store, err := overrides.Open(&settings.Overrides, fs, logger.Global().Module("overrides"))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			log.Warn("error closing override store", logger.Error(cerr))
		}
	}()

	pipelineOpts := []pipeline.Option{pipeline.WithCollector(collector)}
	var m *observability.Metrics
	if settings.Metrics.Enabled || settings.Metrics.Textfile != "" {
		if m, err = observability.NewMetrics(); err != nil {
			return err
		}
		pipelineOpts = append(pipelineOpts, pipeline.WithMetrics(m.Rejection))
	}

	p, err := pipeline.New(settings, fs, store, pipelineOpts...)
	if err != nil {
		return err
	}
	report, runErr := p.Run(ctx, in)

	if m != nil && settings.Metrics.Textfile != "" {
		if err := m.WriteTextfile(settings.Metrics.Textfile); err != nil {
			log.Warn("error writing metrics textfile", logger.Error(err))
		}
	}
	if runErr != nil {
		return runErr
	}

	printReport(out, report)
	return nil
}

func printReport(out io.Writer, r *pipeline.Report) {
	s := r.Summary
	fmt.Fprintf(out, "\nSource rejection for %s (threshold %.4g)\n", s.OutputID, s.Threshold)
	fmt.Fprintf(out, "  candidates:  %d\n", s.Candidates)
	fmt.Fprintf(out, "  accepted:    %d\n", s.Accepted)
	fmt.Fprintf(out, "  rejected:    %d\n", s.Rejected)
	if s.Unevaluable > 0 {
		fmt.Fprintf(out, "  unevaluable: %d\n", s.Unevaluable)
	}
	if s.Conflicts > 0 {
		fmt.Fprintf(out, "  conflicting overrides: %d (reject applied)\n", s.Conflicts)
	}
	for _, tok := range s.UnknownOverrides {
		fmt.Fprintf(out, "  ignored override %s: no such source\n", tok)
	}
	for _, msg := range s.SkippedOverrides {
		fmt.Fprintf(out, "  skipped %s\n", msg)
	}
	for _, tok := range s.Reversals {
		fmt.Fprintf(out, "  override %s reverses a persisted entry: the id is now in both override sets and later runs apply reject\n", tok)
	}
	fmt.Fprintf(out, "Catalog written to %s\n", r.Paths.Catalog)
	fmt.Fprintf(out, "Regions written to %s (%d sources)\n", r.Paths.Regions, s.RegionsWritten)
}
