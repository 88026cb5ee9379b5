// Package ingest decodes and normalizes scanned form images.
package ingest

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/eduscan/markscan/internal/utils"
)

// IngestionError indicates the source image could not be read or is unusable.
type IngestionError struct {
	Path string
	Err  error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.Path, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// Config controls ingestion validation and normalization.
type Config struct {
	// MinWidth/MinHeight gate out scans too small for bubble discrimination.
	MinWidth  int
	MinHeight int
	// MaxDim caps the longer image side; larger scans are downscaled.
	MaxDim int
	// Portrait rotates landscape scans 90 degrees; all known form layouts
	// are portrait.
	Portrait bool
}

// DefaultConfig returns ingestion defaults sized for 150-300dpi A4 scans.
func DefaultConfig() Config {
	return Config{
		MinWidth:  600,
		MinHeight: 800,
		MaxDim:    4000,
		Portrait:  true,
	}
}

// Raster is a decoded, orientation-normalized grayscale scan.
type Raster struct {
	Gray *utils.Gray
	Meta utils.ImageMetadata
	// Rotated reports whether the scan was rotated during normalization.
	Rotated bool
}

// Load reads, validates and normalizes the image at path.
func Load(path string, cfg Config) (*Raster, error) {
	img, meta, err := utils.LoadImage(path)
	if err != nil {
		return nil, &IngestionError{Path: path, Err: err}
	}
	return Normalize(img, meta, cfg)
}

// Normalize validates dimensions and produces the grayscale raster.
func Normalize(img image.Image, meta utils.ImageMetadata, cfg Config) (*Raster, error) {
	rotated := false
	b := img.Bounds()
	if cfg.Portrait && b.Dx() > b.Dy() {
		img = imaging.Rotate90(img)
		b = img.Bounds()
		rotated = true
	}

	if err := utils.ValidateImageConstraints(img, utils.ImageConstraints{
		MinWidth:  cfg.MinWidth,
		MinHeight: cfg.MinHeight,
	}); err != nil {
		return nil, &IngestionError{Path: meta.Path, Err: err}
	}

	if cfg.MaxDim > 0 && (b.Dx() > cfg.MaxDim || b.Dy() > cfg.MaxDim) {
		if b.Dx() >= b.Dy() {
			img = imaging.Resize(img, cfg.MaxDim, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, cfg.MaxDim, imaging.Lanczos)
		}
		b = img.Bounds()
	}

	meta.Width = b.Dx()
	meta.Height = b.Dy()
	meta.AspectRatio = float64(b.Dx()) / float64(b.Dy())

	return &Raster{Gray: utils.ToGray(img), Meta: meta, Rotated: rotated}, nil
}
