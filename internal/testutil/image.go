package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test image sizes.
	PatchSize  = ImageSize{20, 24}
	SmallSize  = ImageSize{64, 48}
	MediumSize = ImageSize{160, 120}
)

// UniformGray returns an image with every pixel set to v.
func UniformGray(size ImageSize, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size.Width, size.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.Gray{Y: v}}, image.Point{}, draw.Src)
	return img
}

// PatternGray returns an image whose pixel (x, y) is fn(x, y).
func PatternGray(size ImageSize, fn func(x, y int) uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size.Width, size.Height))
	for y := 0; y < size.Height; y++ {
		for x := 0; x < size.Width; x++ {
			img.SetGray(x, y, color.Gray{Y: fn(x, y)})
		}
	}
	return img
}

// NoiseGray returns a deterministic pseudo random texture. Equal seeds give
// equal images.
func NoiseGray(size ImageSize, seed uint32) *image.Gray {
	state := seed*2654435761 + 1
	return PatternGray(size, func(_, _ int) uint8 {
		// xorshift32
		state ^= state << 13
		state ^= state >> 17
		state ^= state << 5
		return uint8(state >> 24)
	})
}

// Checkerboard returns alternating cells of the given size.
func Checkerboard(size ImageSize, cell int, dark, light uint8) *image.Gray {
	return PatternGray(size, func(x, y int) uint8 {
		if (x/cell+y/cell)%2 == 0 {
			return dark
		}
		return light
	})
}

// FaceLike draws a crude face (bright oval, dark eyes and mouth) centered
// in the given box on a noisy background. Used to get realistic textures
// into end to end tests.
func FaceLike(size ImageSize, box image.Rectangle) *image.Gray {
	img := NoiseGray(size, 7)
	cx, cy := float64(box.Min.X+box.Max.X)/2, float64(box.Min.Y+box.Max.Y)/2
	rx, ry := float64(box.Dx())/2, float64(box.Dy())/2
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			dx, dy := (float64(x)-cx)/rx, (float64(y)-cy)/ry
			if dx*dx+dy*dy > 1 {
				continue
			}
			v := uint8(200 - 40*math.Sqrt(dx*dx+dy*dy))
			switch {
			case dy > -0.45 && dy < -0.15 && math.Abs(math.Abs(dx)-0.4) < 0.15:
				v = 40
			case dy > 0.35 && dy < 0.5 && math.Abs(dx) < 0.4:
				v = 60
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

// FloatRows converts a gray image into rows of float64 values.
func FloatRows(img *image.Gray) [][]float64 {
	b := img.Bounds()
	rows := make([][]float64, b.Dy())
	for y := range rows {
		rows[y] = make([]float64, b.Dx())
		for x := range rows[y] {
			rows[y][x] = float64(img.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
		}
	}
	return rows
}

// SaveImage saves img to path; the format follows the extension (png, bmp or
// anything imaging can encode).
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)))

	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	switch filepath.Ext(path) {
	case ".png":
		err = png.Encode(file, img)
	case ".bmp":
		err = bmp.Encode(file, img)
	default:
		var format imaging.Format
		format, err = imaging.FormatFromFilename(path)
		if err == nil {
			err = imaging.Encode(file, img, format)
		}
	}
	require.NoError(t, err, "Failed to encode image %s", path)
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	img, err := imaging.Open(path)
	require.NoError(t, err, "Failed to open image %s", path)
	return img
}

// WriteImageSet writes n face-like images of the given size into dir and
// returns their paths together with the face box of each image.
func WriteImageSet(t *testing.T, dir string, n int, size ImageSize, face image.Rectangle) []string {
	t.Helper()

	paths := make([]string, n)
	for i := range paths {
		img := FaceLike(size, face.Add(image.Pt(i, i)))
		paths[i] = filepath.Join(dir, fmt.Sprintf("face_%02d.png", i))
		SaveImage(t, img, paths[i])
	}
	return paths
}
