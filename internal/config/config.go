package config

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/MeKo-Tech/lbpfeat/internal/extractor"
	"github.com/MeKo-Tech/lbpfeat/internal/lbp"
)

// Operator kinds.
const (
	KindMultiBlock = "mblbp"
	KindRadius     = "lbp"
)

// Batch output formats.
const (
	FormatYAML = "yaml"
	FormatCSV  = "csv"
)

// DefaultConfig returns a configuration with sensible defaults: a 24x20
// patch covered by the full MB-LBP family.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Patch: PatchConfig{
			Height: 24,
			Width:  20,
		},
		Operator: OperatorConfig{
			Kind:         KindMultiBlock,
			Neighbors:    8,
			Radius:       1,
			Circular:     false,
			BlockSize:    1,
			BlockOverlap: 0,
			Variants:     []string{},
		},
		Generation: GenerationConfig{
			Overlap: false,
			Square:  false,
			MinSize: 1,
			MaxSize: 0,
			Scale:   0,
		},
		Extraction: ExtractionConfig{
			Scales:  []float64{1},
			Squares: false,
		},
		Batch: BatchConfig{
			Workers:         4,
			Output:          "dataset.yaml",
			Format:          FormatYAML,
			ContinueOnError: false,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Patch.Height <= 0 || c.Patch.Width <= 0 {
		return fmt.Errorf("invalid patch size: %dx%d (must be positive)", c.Patch.Height, c.Patch.Width)
	}

	if err := c.validateOperator(); err != nil {
		return err
	}

	g := c.Generation
	if g.MinSize < 1 {
		return fmt.Errorf("invalid generation min_size: %d (must be at least 1)", g.MinSize)
	}
	if g.MaxSize != 0 && g.MaxSize < g.MinSize {
		return fmt.Errorf("invalid generation max_size: %d (must be 0 or at least min_size %d)", g.MaxSize, g.MinSize)
	}
	if g.Scale < 0 {
		return fmt.Errorf("invalid generation scale: %d (must not be negative)", g.Scale)
	}

	if len(c.Extraction.Scales) == 0 {
		return fmt.Errorf("invalid extraction scales: at least one scale is required")
	}
	for _, s := range c.Extraction.Scales {
		if !(s > 0) || math.IsInf(s, 0) {
			return fmt.Errorf("invalid extraction scale: %g (must be positive and finite)", s)
		}
	}

	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	validFormats := []string{FormatYAML, FormatCSV}
	if !slices.Contains(validFormats, c.Batch.Format) {
		return fmt.Errorf("invalid batch format: %s (must be one of: %s)", c.Batch.Format, strings.Join(validFormats, ", "))
	}

	return nil
}

func (c *Config) validateOperator() error {
	o := c.Operator
	switch o.Kind {
	case KindMultiBlock:
		if o.BlockSize < 1 {
			return fmt.Errorf("invalid operator block_size: %d (must be at least 1)", o.BlockSize)
		}
		if o.BlockOverlap < 0 || o.BlockOverlap >= o.BlockSize {
			return fmt.Errorf("invalid operator block_overlap: %d (must be in [0, %d))", o.BlockOverlap, o.BlockSize)
		}
	case KindRadius:
		if !(o.Radius > 0) {
			return fmt.Errorf("invalid operator radius: %g (must be positive)", o.Radius)
		}
	default:
		return fmt.Errorf("invalid operator kind: %s (must be one of: %s, %s)", o.Kind, KindMultiBlock, KindRadius)
	}
	if !slices.Contains([]int{4, 8, 16}, o.Neighbors) {
		return fmt.Errorf("invalid operator neighbors: %d (must be one of: 4, 8, 16)", o.Neighbors)
	}
	if _, err := c.ToLBPConfig(); err != nil {
		return fmt.Errorf("invalid operator: %w", err)
	}
	return nil
}

// ToLBPConfig converts the operator section into an LBP configuration with
// all variants applied.
func (c *Config) ToLBPConfig() (lbp.Config, error) {
	o := c.Operator
	base := lbp.Config{Neighbors: o.Neighbors}
	if o.Kind == KindMultiBlock {
		base.BlockHeight, base.BlockWidth = o.BlockSize, o.BlockSize
		base.OverlapY, base.OverlapX = o.BlockOverlap, o.BlockOverlap
	} else {
		base.RadiusY, base.RadiusX = o.Radius, o.Radius
		base.Circular = o.Circular
	}
	cfg, err := lbp.ParseVariants(base, o.Variants)
	if err != nil {
		return lbp.Config{}, err
	}
	return cfg, cfg.Validate()
}

// ToOperator builds the template operator.
func (c *Config) ToOperator() (*lbp.LBP, error) {
	cfg, err := c.ToLBPConfig()
	if err != nil {
		return nil, err
	}
	return lbp.New(cfg)
}

// ToPatchSize returns the configured patch size.
func (c *Config) ToPatchSize() extractor.Size {
	return extractor.Size{Height: c.Patch.Height, Width: c.Patch.Width}
}

// ToTemplateOptions converts the generation section. A max_size of 0 means
// no upper bound.
func (c *Config) ToTemplateOptions() extractor.TemplateOptions {
	opts := extractor.DefaultTemplateOptions()
	opts.Overlap = c.Generation.Overlap
	opts.Square = c.Generation.Square
	opts.MinSize = c.Generation.MinSize
	if c.Generation.MaxSize > 0 {
		opts.MaxSize = c.Generation.MaxSize
	}
	return opts
}

// ToModeSpec converts the configuration into an extractor construction.
// With generation.scale set the result is a single operator of that size
// at offset (0,0); otherwise the template family is generated.
func (c *Config) ToModeSpec() (extractor.ModeSpec, error) {
	tmpl, err := c.ToOperator()
	if err != nil {
		return extractor.ModeSpec{}, err
	}
	spec := extractor.ModeSpec{Patch: c.ToPatchSize()}
	if s := c.Generation.Scale; s > 0 {
		op, err := tmpl.Resized(s, s)
		if err != nil {
			return extractor.ModeSpec{}, err
		}
		spec.Mode = extractor.ModeList
		spec.Operators = []extractor.Operator{op}
		return spec, nil
	}
	spec.Mode = extractor.ModeTemplate
	spec.Template = tmpl
	spec.Options = c.ToTemplateOptions()
	return spec, nil
}
