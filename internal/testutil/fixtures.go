package testutil

import (
	"encoding/csv"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// Annotation is one labelled box in an image file.
type Annotation struct {
	Image string
	Box   image.Rectangle
}

// AnnotationHeader is the header row of annotation files.
var AnnotationHeader = []string{"image", "top", "left", "height", "width"}

// WriteAnnotations writes an annotation CSV file to path.
func WriteAnnotations(t *testing.T, path string, annotations []Annotation) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)))
	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err)
	defer func() {
		require.NoError(t, file.Close())
	}()

	w := csv.NewWriter(file)
	require.NoError(t, w.Write(AnnotationHeader))
	for _, a := range annotations {
		require.NoError(t, w.Write([]string{
			a.Image,
			strconv.Itoa(a.Box.Min.Y),
			strconv.Itoa(a.Box.Min.X),
			strconv.Itoa(a.Box.Dy()),
			strconv.Itoa(a.Box.Dx()),
		}))
	}
	w.Flush()
	require.NoError(t, w.Error())
}

// FaceFixture writes n face images plus an annotation file into a fresh
// temporary directory and returns the annotation file's path.
func FaceFixture(t *testing.T, n int) (annotations string, dir string) {
	t.Helper()

	dir = t.TempDir()
	face := image.Rect(16, 12, 56, 60)
	paths := WriteImageSet(t, filepath.Join(dir, "images"), n, MediumSize, face)
	rows := make([]Annotation, len(paths))
	for i, p := range paths {
		rel, err := filepath.Rel(dir, p)
		require.NoError(t, err)
		rows[i] = Annotation{Image: rel, Box: face.Add(image.Pt(i, i))}
	}
	annotations = filepath.Join(dir, "annotations.csv")
	WriteAnnotations(t, annotations, rows)
	return annotations, dir
}
