// Package extractor computes patch based LBP feature vectors. An Extractor
// holds an ordered set of operators, each evaluated at a list of offsets
// inside a fixed size patch; every (operator, offset) pair is one feature.
// Images are prepared once per scale and features are then extracted for
// any number of bounding boxes in that image.
//
// An Extractor is not safe for concurrent use. Independent extractors (see
// Clone) may be used from different goroutines.
package extractor

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/lbpfeat/internal/lbp"
	"github.com/MeKo-Tech/lbpfeat/internal/store"
)

// Operator is a texture operator evaluated at one position of an image.
// Operators are immutable and shared between extractors.
type Operator interface {
	// MaxLabel is the exclusive upper bound of the codes Extract returns.
	MaxLabel() int
	// Shape is the size of the support window.
	Shape() (h, w int)
	// Center is the evaluation point relative to the window's top-left corner.
	Center() (dy, dx int)
	Extract(src lbp.Source, y, x int) uint16
	Save(g store.Writer) error
	String() string
}

// Decoder restores an operator written by Operator.Save.
type Decoder func(r store.Reader) (Operator, error)

// DecodeLBP is the Decoder for *lbp.LBP operators.
func DecodeLBP(r store.Reader) (Operator, error) {
	op, err := lbp.Load(r)
	if err != nil {
		return nil, err
	}
	return op, nil
}

// Offset is a position relative to a bounding box's top-left corner.
type Offset struct {
	Y int
	X int
}

func (o Offset) String() string { return fmt.Sprintf("(%d,%d)", o.Y, o.X) }

// Size is a patch size.
type Size struct {
	Height int
	Width  int
}

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.Height, s.Width) }

func (s Size) valid() bool { return s.Height > 0 && s.Width > 0 }

type entry struct {
	op      Operator
	offsets []Offset
}

type featureRef struct {
	entry  int
	offset int
}

// Extractor maps feature indices to (operator, offset) pairs and evaluates
// them on a prepared image.
type Extractor struct {
	patch        Size
	entries      []entry
	features     []featureRef
	labels       int
	modelIndices []int32
	ctx          *imageContext
}

// New returns an extractor without operators.
func New(patch Size) (*Extractor, error) {
	if !patch.valid() {
		return nil, newError(ErrInvalidArgument, "new", "patch size %s must be positive", patch)
	}
	return &Extractor{patch: patch}, nil
}

// NewFromOperators returns an extractor with one feature per operator, each
// at offset (0, 0).
func NewFromOperators(patch Size, ops []Operator) (*Extractor, error) {
	e, err := New(patch)
	if err != nil {
		return nil, err
	}
	for i, op := range ops {
		if err := e.AppendOperator(op, []Offset{{}}); err != nil {
			var ee *Error
			if errors.As(err, &ee) {
				ee.Op, ee.Index = "new", i
			}
			return nil, err
		}
	}
	return e, nil
}

// TemplateOptions controls the operator family generated from a template.
type TemplateOptions struct {
	// Overlap places offsets at every pixel instead of stepping by the operator size.
	Overlap bool
	// Square generates only operators with equal height and width.
	Square  bool
	MinSize int
	MaxSize int
}

// DefaultTemplateOptions generates all sizes without overlap.
func DefaultTemplateOptions() TemplateOptions {
	return TemplateOptions{MinSize: 1, MaxSize: math.MaxInt}
}

// NewFromTemplate generates one operator per size (h, w) derived from tmpl,
// with h in [MinSize, min(MaxSize, Height/2)] and w in
// [MinSize, min(MaxSize, Width/2)], and a grid of offsets for each that
// keeps the operator's window inside the patch. Sizes are enumerated with h
// in the outer loop; offsets are row-major.
func NewFromTemplate(patch Size, tmpl *lbp.LBP, opts TemplateOptions) (*Extractor, error) {
	const op = "new from template"
	e, err := New(patch)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, newError(ErrInvalidArgument, op, "nil template operator")
	}
	if opts.MinSize < 1 || opts.MinSize > opts.MaxSize {
		return nil, newError(ErrInvalidArgument, op, "size range [%d, %d] is empty", opts.MinSize, opts.MaxSize)
	}

	maxH := min(opts.MaxSize, patch.Height/2)
	maxW := min(opts.MaxSize, patch.Width/2)
	for h := opts.MinSize; h <= maxH; h++ {
		for w := opts.MinSize; w <= maxW; w++ {
			if opts.Square && h != w {
				continue
			}
			resized, err := tmpl.Resized(h, w)
			if err != nil {
				return nil, &Error{Kind: ErrInvalidArgument, Op: op, Index: -1,
					Detail: fmt.Sprintf("resize template to %dx%d", h, w), Err: err}
			}
			offsets := grid(patch, resized, h, w, opts.Overlap)
			if len(offsets) == 0 {
				continue
			}
			e.appendEntry(resized, offsets)
		}
	}
	if len(e.entries) == 0 {
		return nil, newError(ErrInvalidArgument, op,
			"no operator of size [%d, %d] fits into patch %s", opts.MinSize, opts.MaxSize, patch)
	}
	return e, nil
}

func grid(patch Size, op Operator, h, w int, overlap bool) []Offset {
	sh, sw := op.Shape()
	stepY, stepX := h, w
	if overlap {
		stepY, stepX = 1, 1
	}
	var out []Offset
	for y := 0; y+sh <= patch.Height; y += stepY {
		for x := 0; x+sw <= patch.Width; x += stepX {
			out = append(out, Offset{Y: y, X: x})
		}
	}
	return out
}

// Clone returns an extractor sharing the operators and copying offsets and
// model indices. The clone has no prepared image.
func (e *Extractor) Clone() *Extractor {
	c := &Extractor{patch: e.patch}
	for _, en := range e.entries {
		c.appendEntry(en.op, en.offsets)
	}
	c.modelIndices = cloneIndices(e.modelIndices)
	return c
}

// Mode selects how NewWithMode builds an extractor.
type Mode int

const (
	ModeEmpty Mode = iota
	ModeList
	ModeTemplate
	ModeCopy
	ModeStore
)

var modeNames = [...]string{"empty", "list", "template", "copy", "store"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// ModeSpec carries the arguments of one construction mode. Fields that do
// not belong to Mode are ignored.
type ModeSpec struct {
	Mode      Mode
	Patch     Size
	Operators []Operator      // ModeList
	Template  *lbp.LBP        // ModeTemplate
	Options   TemplateOptions // ModeTemplate
	Source    *Extractor      // ModeCopy
	Store     store.Reader    // ModeStore
	Decoder   Decoder         // ModeStore, DecodeLBP when nil
}

// NewWithMode dispatches to the constructor selected by spec.Mode.
func NewWithMode(spec ModeSpec) (*Extractor, error) {
	switch spec.Mode {
	case ModeEmpty:
		return New(spec.Patch)
	case ModeList:
		return NewFromOperators(spec.Patch, spec.Operators)
	case ModeTemplate:
		return NewFromTemplate(spec.Patch, spec.Template, spec.Options)
	case ModeCopy:
		if spec.Source == nil {
			return nil, newError(ErrInvalidArgument, "copy", "nil source extractor")
		}
		return spec.Source.Clone(), nil
	case ModeStore:
		if spec.Store == nil {
			return nil, newError(ErrInvalidArgument, "load", "nil store")
		}
		return Load(spec.Store, spec.Decoder)
	}
	return nil, newError(ErrInvalidArgument, "new", "unknown mode %s", spec.Mode)
}

// Append adds all operators and offsets of other after the existing
// features. other may be e itself.
func (e *Extractor) Append(other *Extractor) error {
	if other == nil {
		return newError(ErrInvalidArgument, "append", "nil extractor")
	}
	if other.patch != e.patch {
		return newError(ErrInvalidArgument, "append", "patch size %s differs from %s", other.patch, e.patch)
	}
	snapshot := other.entries[:len(other.entries):len(other.entries)]
	for _, en := range snapshot {
		e.appendEntry(en.op, en.offsets)
	}
	return nil
}

// AppendOperator adds op evaluated at the given offsets. Offsets are stored
// as given; windows leaving the image are reported at extraction time.
func (e *Extractor) AppendOperator(op Operator, offsets []Offset) error {
	if op == nil {
		return newError(ErrInvalidArgument, "append", "nil operator")
	}
	if len(offsets) == 0 {
		return newError(ErrInvalidArgument, "append", "operator %s has no offsets", op)
	}
	if n := op.MaxLabel(); n < 1 || n > math.MaxUint16+1 {
		return newError(ErrInvalidArgument, "append", "operator %s has %d labels", op, n)
	}
	e.appendEntry(op, offsets)
	return nil
}

func (e *Extractor) appendEntry(op Operator, offsets []Offset) {
	cp := make([]Offset, len(offsets))
	copy(cp, offsets)
	idx := len(e.entries)
	e.entries = append(e.entries, entry{op: op, offsets: cp})
	for k := range cp {
		e.features = append(e.features, featureRef{entry: idx, offset: k})
	}
	e.labels = max(e.labels, op.MaxLabel())
}

// Extractor returns the operator of feature i.
func (e *Extractor) Extractor(i int) (Operator, error) {
	ref, err := e.feature("extractor", i)
	if err != nil {
		return nil, err
	}
	return e.entries[ref.entry].op, nil
}

// Offset returns the offset of feature i.
func (e *Extractor) Offset(i int) (Offset, error) {
	ref, err := e.feature("offset", i)
	if err != nil {
		return Offset{}, err
	}
	return e.entries[ref.entry].offsets[ref.offset], nil
}

func (e *Extractor) feature(op string, i int) (featureRef, error) {
	if i < 0 || i >= len(e.features) {
		return featureRef{}, indexError(ErrIndexOutOfRange, op, i, "extractor has %d features", len(e.features))
	}
	return e.features[i], nil
}

// PatchSize returns the patch size.
func (e *Extractor) PatchSize() Size { return e.patch }

// NumberOfFeatures returns the total number of (operator, offset) pairs.
func (e *Extractor) NumberOfFeatures() int { return len(e.features) }

// NumberOfLabels returns the largest MaxLabel of all operators, 0 when empty.
func (e *Extractor) NumberOfLabels() int { return e.labels }

// NumberOfOperators returns the number of registered operators.
func (e *Extractor) NumberOfOperators() int { return len(e.entries) }

// Operators returns the registered operators in order.
func (e *Extractor) Operators() []Operator {
	out := make([]Operator, len(e.entries))
	for i, en := range e.entries {
		out[i] = en.op
	}
	return out
}

// Offsets returns a copy of the offsets of operator op.
func (e *Extractor) Offsets(op int) ([]Offset, error) {
	if op < 0 || op >= len(e.entries) {
		return nil, indexError(ErrIndexOutOfRange, "offsets", op, "extractor has %d operators", len(e.entries))
	}
	out := make([]Offset, len(e.entries[op].offsets))
	copy(out, e.entries[op].offsets)
	return out, nil
}

// ModelIndices returns a copy of the model indices, nil when unset.
func (e *Extractor) ModelIndices() []int32 { return cloneIndices(e.modelIndices) }

// SetModelIndices sets the default feature subset of ExtractIndexed. An
// empty slice clears it.
func (e *Extractor) SetModelIndices(indices []int32) error {
	for k, i := range indices {
		if i < 0 || int(i) >= len(e.features) {
			return indexError(ErrIndexOutOfRange, "set model indices", int(i),
				"position %d, extractor has %d features", k, len(e.features))
		}
	}
	e.modelIndices = cloneIndices(indices)
	return nil
}

func cloneIndices(in []int32) []int32 {
	if len(in) == 0 {
		return nil
	}
	out := make([]int32, len(in))
	copy(out, in)
	return out
}

func (e *Extractor) String() string {
	return fmt.Sprintf("FeatureExtractor(patch=%s, operators=%d, features=%d, labels=%d)",
		e.patch, len(e.entries), len(e.features), e.labels)
}
