// Package bbox implements integer, axis-aligned bounding boxes in image
// coordinates (y down, x right) as used by the patch extractor.
package bbox

import (
	"fmt"
	"image"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Box is a rectangle given by its top-left corner and its size.
// Bottom and Right are exclusive.
type Box struct {
	Top    int
	Left   int
	Height int
	Width  int
}

// New constructs a Box.
func New(top, left, height, width int) Box {
	return Box{Top: top, Left: left, Height: height, Width: width}
}

// Parse reads a box written as "top,left,height,width".
func Parse(s string) (Box, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Box{}, fmt.Errorf("box %q: want top,left,height,width", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Box{}, fmt.Errorf("box %q: %w", s, err)
		}
		v[i] = n
	}
	return New(v[0], v[1], v[2], v[3]), nil
}

// FromRect converts an image.Rectangle into a Box.
func FromRect(r image.Rectangle) Box {
	r = r.Canon()
	return Box{Top: r.Min.Y, Left: r.Min.X, Height: r.Dy(), Width: r.Dx()}
}

// Bottom returns the first row below the box.
func (b Box) Bottom() int { return b.Top + b.Height }

// Right returns the first column right of the box.
func (b Box) Right() int { return b.Left + b.Width }

// Area returns Height*Width, or 0 for empty boxes.
func (b Box) Area() int {
	if b.Empty() {
		return 0
	}
	return b.Height * b.Width
}

// Empty reports whether the box covers no pixels.
func (b Box) Empty() bool { return b.Height <= 0 || b.Width <= 0 }

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right(), b.Bottom())
}

// Shift moves the box by (dy, dx).
func (b Box) Shift(dy, dx int) Box {
	return Box{Top: b.Top + dy, Left: b.Left + dx, Height: b.Height, Width: b.Width}
}

// Scale multiplies position and size by f, rounding to the nearest pixel.
func (b Box) Scale(f float64) Box {
	return Box{
		Top:    int(math.Round(float64(b.Top) * f)),
		Left:   int(math.Round(float64(b.Left) * f)),
		Height: int(math.Round(float64(b.Height) * f)),
		Width:  int(math.Round(float64(b.Width) * f)),
	}
}

// Contains reports whether pixel (y, x) lies inside the box.
func (b Box) Contains(y, x int) bool {
	return y >= b.Top && y < b.Bottom() && x >= b.Left && x < b.Right()
}

// Inside reports whether the box lies completely in an image of the given size.
func (b Box) Inside(height, width int) bool {
	return b.Top >= 0 && b.Left >= 0 && b.Bottom() <= height && b.Right() <= width
}

// Overlap returns the intersection of two boxes; it is empty if they do not overlap.
func (b Box) Overlap(o Box) Box {
	top := max(b.Top, o.Top)
	left := max(b.Left, o.Left)
	bottom := min(b.Bottom(), o.Bottom())
	right := min(b.Right(), o.Right())
	if bottom <= top || right <= left {
		return Box{Top: top, Left: left}
	}
	return Box{Top: top, Left: left, Height: bottom - top, Width: right - left}
}

// Similarity returns the Jaccard index (intersection over union) of two boxes.
func (b Box) Similarity(o Box) float64 {
	inter := b.Overlap(o).Area()
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func (b Box) String() string {
	return fmt.Sprintf("<BB topleft=(%d,%d), size=(%d,%d)>", b.Top, b.Left, b.Height, b.Width)
}

// Scored is a box with a detector score.
type Scored struct {
	Box
	Score float64
}

// Prune keeps the best scoring boxes and drops every box whose similarity
// with an already kept box exceeds threshold. The result is ordered by
// descending score. The input slice is not modified.
func Prune(boxes []Scored, threshold float64) []Scored {
	if len(boxes) <= 1 {
		out := make([]Scored, len(boxes))
		copy(out, boxes)
		return out
	}

	sorted := make([]Scored, len(boxes))
	copy(sorted, boxes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	kept := make([]Scored, 0, len(sorted))
	for _, cand := range sorted {
		keep := true
		for _, k := range kept {
			if k.Similarity(cand.Box) > threshold {
				keep = false
				break
			}
		}
		if keep {
			kept = append(kept, cand)
		}
	}
	return kept
}
