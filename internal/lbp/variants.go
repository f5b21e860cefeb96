package lbp

import (
	"fmt"
	"sort"
	"strings"
)

// Variants lists the short variant names accepted by ParseVariants.
var Variants = map[string]string{
	"ell":  "circular neighborhood",
	"u2":   "uniform patterns",
	"ri":   "rotation invariant patterns",
	"mct":  "modified census transform (compare to average, add average bit)",
	"tran": "transitional coding",
	"dir":  "direction coded",
}

// VariantNames returns the sorted keys of Variants.
func VariantNames() []string {
	names := make([]string, 0, len(Variants))
	for n := range Variants {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ParseVariants applies the named variants to base. "ell" is rejected for
// multi-block operators, and "tran" and "dir" exclude each other.
func ParseVariants(base Config, names []string) (Config, error) {
	cfg := base
	for _, raw := range names {
		switch n := strings.ToLower(strings.TrimSpace(raw)); n {
		case "":
		case "ell":
			if cfg.MultiBlock() {
				return base, fmt.Errorf("%w: variant ell is not available for multi-block operators", ErrConfig)
			}
			cfg.Circular = true
		case "u2":
			cfg.Uniform = true
		case "ri":
			cfg.RotationInvariant = true
		case "mct":
			cfg.ToAverage = true
			cfg.AddAverageBit = true
		case "tran", "dir":
			t := Transitional
			if n == "dir" {
				t = DirectionCoded
			}
			if cfg.Type != Regular && cfg.Type != t {
				return base, fmt.Errorf("%w: variants tran and dir exclude each other", ErrConfig)
			}
			cfg.Type = t
		default:
			return base, fmt.Errorf("%w: unknown variant %q (known: %s)", ErrConfig, raw,
				strings.Join(VariantNames(), ", "))
		}
	}
	return cfg, nil
}
