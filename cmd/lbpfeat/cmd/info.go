package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/lbpfeat/internal/extractor"
	"github.com/MeKo-Tech/lbpfeat/internal/store"
)

var infoCmd = &cobra.Command{
	Use:   "info <extractor.yaml>",
	Short: "Describe a saved feature extractor",
	Long: `Print the patch size, label count and operators of a saved extractor.

Examples:
  lbpfeat info mblbp.yaml
  lbpfeat info mblbp.yaml --features
  lbpfeat info mblbp.yaml --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().Bool("features", false, "list every feature with its operator and offset")
	infoCmd.Flags().StringP("format", "f", "text", "output format (text, json)")
}

type operatorInfo struct {
	Index    int    `json:"index"`
	Operator string `json:"operator"`
	Labels   int    `json:"labels"`
	Height   int    `json:"height"`
	Width    int    `json:"width"`
	Offsets  int    `json:"offsets"`
}

type extractorInfo struct {
	PatchHeight  int            `json:"patch_height"`
	PatchWidth   int            `json:"patch_width"`
	Labels       int            `json:"labels"`
	Features     int            `json:"features"`
	ModelIndices []int32        `json:"model_indices,omitempty"`
	Operators    []operatorInfo `json:"operators"`
}

func loadExtractor(path string) (*extractor.Extractor, error) {
	g, err := store.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read extractor: %w", err)
	}
	e, err := extractor.NewWithMode(extractor.ModeSpec{Mode: extractor.ModeStore, Store: g})
	if err != nil {
		return nil, fmt.Errorf("failed to load extractor %s: %w", path, err)
	}
	return e, nil
}

func describe(e *extractor.Extractor) (extractorInfo, error) {
	info := extractorInfo{
		PatchHeight:  e.PatchSize().Height,
		PatchWidth:   e.PatchSize().Width,
		Labels:       e.NumberOfLabels(),
		Features:     e.NumberOfFeatures(),
		ModelIndices: e.ModelIndices(),
	}
	for i, op := range e.Operators() {
		offsets, err := e.Offsets(i)
		if err != nil {
			return info, err
		}
		h, w := op.Shape()
		info.Operators = append(info.Operators, operatorInfo{
			Index:    i,
			Operator: op.String(),
			Labels:   op.MaxLabel(),
			Height:   h,
			Width:    w,
			Offsets:  len(offsets),
		})
	}
	return info, nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	listFeatures, _ := cmd.Flags().GetBool("features")

	e, err := loadExtractor(args[0])
	if err != nil {
		return err
	}
	info, err := describe(e)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case "text":
		printInfo(out, info)
		if listFeatures {
			return printFeatures(out, e)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printInfo(w io.Writer, info extractorInfo) {
	_, _ = fmt.Fprintf(w, "Patch: %dx%d\n", info.PatchHeight, info.PatchWidth)
	_, _ = fmt.Fprintf(w, "Labels: %d\n", info.Labels)
	_, _ = fmt.Fprintf(w, "Features: %d\n", info.Features)
	_, _ = fmt.Fprintf(w, "Operators: %d\n", len(info.Operators))
	if info.ModelIndices != nil {
		_, _ = fmt.Fprintf(w, "Model indices: %v\n", info.ModelIndices)
	}
	if len(info.Operators) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tOPERATOR\tLABELS\tSHAPE\tOFFSETS")
	for _, op := range info.Operators {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%d\t%dx%d\t%d\n", op.Index, op.Operator, op.Labels, op.Height, op.Width, op.Offsets)
	}
	_ = tw.Flush()
}

func printFeatures(w io.Writer, e *extractor.Extractor) error {
	_, _ = fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "FEATURE\tOPERATOR\tOFFSET")
	for i := range e.NumberOfFeatures() {
		op, err := e.Extractor(i)
		if err != nil {
			return err
		}
		off, err := e.Offset(i)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", i, op, off)
	}
	return tw.Flush()
}
