package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/lbpfeat/internal/bbox"
)

// Annotation is one labelled box of an image.
type Annotation struct {
	Image string
	Box   bbox.Box
}

// annotationColumns is the expected header of annotation files.
var annotationColumns = []string{"image", "top", "left", "height", "width"}

// ReadAnnotations reads an annotation CSV file. Relative image paths are
// resolved against the file's directory.
func ReadAnnotations(path string) ([]Annotation, error) {
	f, err := os.Open(path) //nolint:gosec // G304: annotation path is user provided
	if err != nil {
		return nil, fmt.Errorf("cannot open annotations: %w", err)
	}
	defer func() { _ = f.Close() }()

	annotations, err := parseAnnotations(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	base := filepath.Dir(path)
	for i := range annotations {
		if !filepath.IsAbs(annotations[i].Image) {
			annotations[i].Image = filepath.Join(base, annotations[i].Image)
		}
	}
	return annotations, nil
}

func parseAnnotations(r io.Reader) ([]Annotation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(annotationColumns)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty annotation file")
	}
	if err != nil {
		return nil, err
	}
	for i, col := range annotationColumns {
		if strings.ToLower(strings.TrimSpace(header[i])) != col {
			return nil, fmt.Errorf("unexpected header %v (want %v)", header, annotationColumns)
		}
	}

	var annotations []Annotation
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		var v [4]int
		for i := range v {
			v[i], err = strconv.Atoi(strings.TrimSpace(rec[i+1]))
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid %s %q", line, annotationColumns[i+1], rec[i+1])
			}
		}
		box := bbox.New(v[0], v[1], v[2], v[3])
		if box.Empty() {
			return nil, fmt.Errorf("line %d: empty box %s", line, box)
		}
		annotations = append(annotations, Annotation{Image: strings.TrimSpace(rec[0]), Box: box})
	}
	return annotations, nil
}

// imageGroup is all annotations of one image, in file order.
type imageGroup struct {
	path  string
	boxes []bbox.Box
}

// groupByImage groups annotations by image in order of first appearance,
// dropping images filtered out by the include/exclude patterns.
func groupByImage(annotations []Annotation, includePatterns, excludePatterns []string) []imageGroup {
	var groups []imageGroup
	index := make(map[string]int)
	for _, a := range annotations {
		if !shouldIncludeFile(a.Image, includePatterns, excludePatterns) {
			continue
		}
		i, ok := index[a.Image]
		if !ok {
			i = len(groups)
			index[a.Image] = i
			groups = append(groups, imageGroup{path: a.Image})
		}
		groups[i].boxes = append(groups[i].boxes, a.Box)
	}
	return groups
}

// shouldIncludeFile determines if a file should be included based on include/exclude patterns.
func shouldIncludeFile(path string, includePatterns, excludePatterns []string) bool {
	if matchesAnyPattern(path, excludePatterns) {
		return false
	}
	if len(includePatterns) == 0 {
		return true
	}
	return matchesAnyPattern(path, includePatterns)
}

// matchesAnyPattern checks if the file's base name matches any of the given patterns.
func matchesAnyPattern(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
