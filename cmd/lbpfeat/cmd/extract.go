package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/lbpfeat/internal/batch"
	"github.com/MeKo-Tech/lbpfeat/internal/config"
	"github.com/MeKo-Tech/lbpfeat/internal/extractor"
)

var extractCmd = &cobra.Command{
	Use:   "extract <annotations.csv>",
	Short: "Extract a feature dataset from annotated images",
	Long: `Extract one feature vector per annotated box and scale factor.

The annotation file is a CSV with the header image,top,left,height,width.
Relative image paths are resolved against the annotation file's directory.
Every box is scaled so its height matches the patch height, multiplied by
each --scales factor, and the patch centered on it is extracted.

Without --model the extractor is generated from the configuration, as the
generate command would build it. Use -o - to write the dataset to stdout.

Examples:
  lbpfeat extract faces.csv --model mblbp.yaml -o dataset.yaml
  lbpfeat extract faces.csv --scales 0.9,1,1.1 --workers 8 --stats
  lbpfeat extract faces.csv -o - --format csv --exclude '*_mirror.png'`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	f := extractCmd.Flags()
	f.StringP("model", "m", "", "saved extractor (default: generate from configuration)")
	f.StringP("output", "o", "dataset.yaml", "output dataset file, - for stdout")
	f.StringP("format", "f", "yaml", "output format (yaml, csv)")
	f.Float64Slice("scales", []float64{1}, "scale factors applied to every box")
	f.Bool("squares", false, "also build squared integral images")
	f.IntP("workers", "w", 4, "number of parallel workers")
	f.String("metrics-file", "", "write Prometheus metrics to this file")
	f.Bool("continue-on-error", false, "skip images that cannot be loaded")
	f.StringSlice("include", nil, "only process images matching these patterns")
	f.StringSlice("exclude", nil, "skip images matching these patterns")
	f.Bool("stats", false, "print extraction statistics")
	f.Bool("progress", false, "show a progress bar on stderr")

	bindFlag("batch.output", f.Lookup("output"))
	bindFlag("batch.format", f.Lookup("format"))
	bindFlag("extraction.squares", f.Lookup("squares"))
	bindFlag("batch.workers", f.Lookup("workers"))
	bindFlag("batch.metrics_file", f.Lookup("metrics-file"))
	bindFlag("batch.continue_on_error", f.Lookup("continue-on-error"))
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("scales") {
		cfg.Extraction.Scales, _ = cmd.Flags().GetFloat64Slice("scales")
	}

	e, err := extractorFor(cmd, cfg)
	if err != nil {
		return err
	}

	include, _ := cmd.Flags().GetStringSlice("include")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	batchCfg := &batch.Config{
		Extractor:       e,
		Scales:          cfg.Extraction.Scales,
		Squares:         cfg.Extraction.Squares,
		Workers:         cfg.Batch.Workers,
		ContinueOnError: cfg.Batch.ContinueOnError,
		IncludePatterns: include,
		ExcludePatterns: exclude,
		MetricsFile:     cfg.Batch.MetricsFile,
	}
	if showProgress, _ := cmd.Flags().GetBool("progress"); showProgress {
		batchCfg.Progress = batch.NewConsoleProgress(cmd.ErrOrStderr())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := batch.ProcessAnnotations(ctx, args[0], batchCfg)
	if err != nil {
		return err
	}

	output := cfg.Batch.Output
	var statsOut io.Writer = cmd.OutOrStdout()
	if output == "-" {
		if err := result.Write(cmd.OutOrStdout(), cfg.Batch.Format); err != nil {
			return fmt.Errorf("failed to write results: %w", err)
		}
		statsOut = cmd.ErrOrStderr()
	} else {
		if err := result.SaveResults(cfg.Batch.Format, output); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d samples with %d features from %d images into %s\n",
			len(result.Samples), result.Extractor.NumberOfFeatures(), result.Images, output)
	}

	for _, f := range result.Failures {
		slog.Warn("sample skipped", "image", f.Image, "box", f.Box.String(), "factor", f.Factor, "error", f.Err)
	}

	if showStats, _ := cmd.Flags().GetBool("stats"); showStats {
		result.PrintStats(statsOut)
	}
	return nil
}

// extractorFor loads --model or generates an extractor from cfg.
func extractorFor(cmd *cobra.Command, cfg *config.Config) (*extractor.Extractor, error) {
	if model, _ := cmd.Flags().GetString("model"); model != "" {
		return loadExtractor(model)
	}
	spec, err := cfg.ToModeSpec()
	if err != nil {
		return nil, fmt.Errorf("invalid operator: %w", err)
	}
	e, err := extractor.NewWithMode(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to generate extractor: %w", err)
	}
	return e, nil
}
