package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/lbpfeat/internal/common"
	"github.com/MeKo-Tech/lbpfeat/internal/extractor"
	"github.com/MeKo-Tech/lbpfeat/internal/store"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a feature extractor and save it",
	Long: `Generate a feature extractor from an operator template and save it as YAML.

Without --scale every operator size allowed by --min-size and --max-size is
placed on a grid inside the patch. With --scale the extractor holds a single
operator of that size at the patch's top-left corner.

Examples:
  lbpfeat generate -o mblbp.yaml
  lbpfeat generate -o lbp.yaml --kind lbp --neighbors 8 --radius 1 --variants u2
  lbpfeat generate -o square.yaml --square --max-size 4 --overlap`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	f := generateCmd.Flags()
	f.StringP("output", "o", "", "output extractor file (required)")
	f.Int("patch-height", 24, "patch height in pixels")
	f.Int("patch-width", 20, "patch width in pixels")
	f.String("kind", "mblbp", "operator kind (mblbp, lbp)")
	f.Int("neighbors", 8, "number of neighbors (4, 8, 16)")
	f.Float64("radius", 1, "operator radius (lbp)")
	f.Bool("circular", false, "sample neighbors on a circle (lbp)")
	f.Int("block-size", 1, "block size (mblbp)")
	f.Int("block-overlap", 0, "block overlap (mblbp)")
	f.StringSlice("variants", nil, "operator variants (ell, u2, ri, mct, tran, dir)")
	f.Bool("overlap", false, "place multi-block operators at every position instead of a block grid")
	f.Bool("square", false, "only generate square operators")
	f.Int("min-size", 1, "smallest block size or radius")
	f.Int("max-size", 0, "largest block size or radius (0 means unbounded)")
	f.Int("scale", 0, "build a single operator of this size instead of the template family")
	_ = generateCmd.MarkFlagRequired("output")

	bindFlag("patch.height", f.Lookup("patch-height"))
	bindFlag("patch.width", f.Lookup("patch-width"))
	bindFlag("operator.kind", f.Lookup("kind"))
	bindFlag("operator.neighbors", f.Lookup("neighbors"))
	bindFlag("operator.radius", f.Lookup("radius"))
	bindFlag("operator.circular", f.Lookup("circular"))
	bindFlag("operator.block_size", f.Lookup("block-size"))
	bindFlag("operator.block_overlap", f.Lookup("block-overlap"))
	bindFlag("operator.variants", f.Lookup("variants"))
	bindFlag("generation.overlap", f.Lookup("overlap"))
	bindFlag("generation.square", f.Lookup("square"))
	bindFlag("generation.min_size", f.Lookup("min-size"))
	bindFlag("generation.max_size", f.Lookup("max-size"))
	bindFlag("generation.scale", f.Lookup("scale"))
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")

	timer := common.NewNamedTimer("generate")
	spec, err := cfg.ToModeSpec()
	if err != nil {
		return fmt.Errorf("invalid operator: %w", err)
	}
	e, err := extractor.NewWithMode(spec)
	if err != nil {
		return fmt.Errorf("failed to generate extractor: %w", err)
	}
	if e.NumberOfFeatures() == 0 {
		return fmt.Errorf("no operator fits into a %s patch", spec.Patch)
	}
	timer.Stop()

	g := store.NewGroup()
	if err := e.Save(g); err != nil {
		return fmt.Errorf("failed to save extractor: %w", err)
	}
	if err := store.WriteFile(output, g); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}

	slog.Debug("generated extractor", "mode", spec.Mode, "timer", timer,
		"operators", e.NumberOfOperators(), "features", e.NumberOfFeatures())
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\nSaved to %s\n", e, output)
	return nil
}
