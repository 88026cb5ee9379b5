package utils

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsSupportedImage(t *testing.T) {
	cases := []struct {
		path string
		ok   bool
	}{
		{"scan.jpg", true},
		{"scan.JPEG", true},
		{"scan.png", true},
		{"scan.bmp", true},
		{"scan.tiff", false},
		{"scan.pdf", false},
		{"scan", false},
	}
	for _, c := range cases {
		if IsSupportedImage(c.path) != c.ok {
			t.Fatalf("IsSupportedImage(%s) expected %v", c.path, c.ok)
		}
	}
}

func writeTempPNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.White)
		}
	}
	path := filepath.Join(t.TempDir(), "scan.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, f.Close())
	}()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestLoadImageMetadata(t *testing.T) {
	p := writeTempPNG(t, 12, 24)

	img, meta, err := LoadImage(p)
	require.NoError(t, err)
	require.NotNil(t, img)
	require.Equal(t, "png", meta.Format)
	require.Equal(t, 12, meta.Width)
	require.Equal(t, 24, meta.Height)
	require.InDelta(t, 0.5, meta.AspectRatio, 1e-9)
	require.Positive(t, meta.SizeBytes)
}

func TestLoadImageUnsupportedFormat(t *testing.T) {
	_, _, err := LoadImage("scan.tiff")
	require.Error(t, err)
	var perr *ImageProcessingError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "load", perr.Operation)
}

func TestLoadImageMissingFile(t *testing.T) {
	_, _, err := LoadImage(filepath.Join(t.TempDir(), "nope.png"))
	require.Error(t, err)
}

func TestValidateImageConstraints(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 200))

	require.NoError(t, ValidateImageConstraints(img, ImageConstraints{MinWidth: 100, MinHeight: 200}))

	err := ValidateImageConstraints(img, ImageConstraints{MinWidth: 101, MinHeight: 200})
	require.Error(t, err)

	err = ValidateImageConstraints(img, ImageConstraints{MaxWidth: 50, MaxHeight: 50})
	require.Error(t, err)

	require.Error(t, ValidateImageConstraints(nil, ImageConstraints{}))
}
