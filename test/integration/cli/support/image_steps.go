package support

import (
	"encoding/csv"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"
)

// Annotated images are 160x120 with the face box at (12+i, 16+i), 48x40.
const (
	fixtureWidth  = 160
	fixtureHeight = 120
	faceTop       = 12
	faceLeft      = 16
	faceHeight    = 48
	faceWidth     = 40
)

// texture returns a deterministic pseudo random grayscale image.
func texture(w, h int, seed uint32) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	state := seed*2654435761 + 1
	for i := range img.Pix {
		state ^= state << 13
		state ^= state >> 17
		state ^= state << 5
		img.Pix[i] = uint8(state >> 24)
	}
	return img
}

// anAnnotatedImageSet writes n textured images and an annotation file.
func (testCtx *TestContext) anAnnotatedImageSet(n int) error {
	dir := filepath.Join(testCtx.TempDir, "images")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create image dir: %w", err)
	}

	rows := [][]string{{"image", "top", "left", "height", "width"}}
	for i := range n {
		name := fmt.Sprintf("face_%02d.png", i)
		if err := imaging.Save(texture(fixtureWidth, fixtureHeight, uint32(i+1)), filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("failed to save %s: %w", name, err)
		}
		testCtx.Images = append(testCtx.Images, filepath.Join(dir, name))
		rows = append(rows, []string{
			filepath.Join("images", name),
			strconv.Itoa(faceTop + i), strconv.Itoa(faceLeft + i),
			strconv.Itoa(faceHeight), strconv.Itoa(faceWidth),
		})
	}
	return testCtx.writeAnnotations(rows)
}

// anAnnotationFileWithMissingImage appends a row for an image that does not exist.
func (testCtx *TestContext) anAnnotationFileWithMissingImage() error {
	if testCtx.AnnotationsFile == "" {
		return fmt.Errorf("no annotation file created yet")
	}
	f, err := os.OpenFile(testCtx.AnnotationsFile, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	w := csv.NewWriter(f)
	if err := w.Write([]string{"images/missing.png", "12", "16", "48", "40"}); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (testCtx *TestContext) writeAnnotations(rows [][]string) error {
	path := filepath.Join(testCtx.TempDir, "annotations.csv")
	f, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	if err != nil {
		return fmt.Errorf("failed to create annotations: %w", err)
	}
	defer func() { _ = f.Close() }()
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write annotations: %w", err)
	}
	testCtx.AnnotationsFile = path
	return nil
}

// aUniformImage writes a w x h image whose pixels all have value v.
func (testCtx *TestContext) aUniformImage(name string, w, h, v int) error {
	img := imaging.New(w, h, color.Gray{Y: uint8(v)})
	if err := imaging.Save(img, testCtx.path(name)); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	return nil
}

// RegisterImageSteps registers the fixture steps.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^an annotated image set with (\d+) images?$`, testCtx.anAnnotatedImageSet)
	sc.Step(`^the annotation file also lists a missing image$`, testCtx.anAnnotationFileWithMissingImage)
	sc.Step(`^a (\d+)x(\d+) image "([^"]*)" with value (\d+)$`, func(w, h int, name string, v int) error {
		return testCtx.aUniformImage(name, w, h, v)
	})
}
