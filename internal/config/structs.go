//nolint:lll
package config

// Config represents the complete configuration for lbpfeat.
// It covers every command (generate, info, extract, meanvar) and supports
// loading from configuration files, environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Patch the extractor is built for
	Patch PatchConfig `mapstructure:"patch" yaml:"patch" json:"patch"`

	// Template operator
	Operator OperatorConfig `mapstructure:"operator" yaml:"operator" json:"operator"`

	// Feature generation from the template
	Generation GenerationConfig `mapstructure:"generation" yaml:"generation" json:"generation"`

	// Image preparation
	Extraction ExtractionConfig `mapstructure:"extraction" yaml:"extraction" json:"extraction"`

	// Batch extraction
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`
}

// PatchConfig holds the patch size every box is normalized to.
type PatchConfig struct {
	Height int `mapstructure:"height" yaml:"height" json:"height"`
	Width  int `mapstructure:"width" yaml:"width" json:"width"`
}

// OperatorConfig describes the template LBP operator.
type OperatorConfig struct {
	Kind         string   `mapstructure:"kind" yaml:"kind" json:"kind"`
	Neighbors    int      `mapstructure:"neighbors" yaml:"neighbors" json:"neighbors"`
	Radius       float64  `mapstructure:"radius" yaml:"radius" json:"radius"`
	Circular     bool     `mapstructure:"circular" yaml:"circular" json:"circular"`
	BlockSize    int      `mapstructure:"block_size" yaml:"block_size" json:"block_size"`
	BlockOverlap int      `mapstructure:"block_overlap" yaml:"block_overlap" json:"block_overlap"`
	Variants     []string `mapstructure:"variants" yaml:"variants" json:"variants"`
}

// GenerationConfig controls how the operator family is laid out over the patch.
type GenerationConfig struct {
	Overlap bool `mapstructure:"overlap" yaml:"overlap" json:"overlap"`
	Square  bool `mapstructure:"square" yaml:"square" json:"square"`
	MinSize int  `mapstructure:"min_size" yaml:"min_size" json:"min_size"`
	MaxSize int  `mapstructure:"max_size" yaml:"max_size" json:"max_size"`
	// Scale > 0 builds a single operator of that size instead of a family.
	Scale int `mapstructure:"scale" yaml:"scale" json:"scale"`
}

// ExtractionConfig contains image preparation settings.
type ExtractionConfig struct {
	Scales  []float64 `mapstructure:"scales" yaml:"scales" json:"scales"`
	Squares bool      `mapstructure:"squares" yaml:"squares" json:"squares"`
}

// BatchConfig contains batch extraction settings.
type BatchConfig struct {
	Workers         int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	Output          string `mapstructure:"output" yaml:"output" json:"output"`
	Format          string `mapstructure:"format" yaml:"format" json:"format"`
	MetricsFile     string `mapstructure:"metrics_file" yaml:"metrics_file" json:"metrics_file"`
	ContinueOnError bool   `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}
