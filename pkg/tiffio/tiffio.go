// Package tiffio reads and writes single-page, single-channel TIFF frames.
package tiffio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	"golang.org/x/image/tiff"

	"ctcvolume/internal/models"
)

var ErrUnsupportedPixelType = errors.New("unsupported TIFF pixel type")

// Codec decodes and encodes frames. The zero value writes uncompressed
// files.
type Codec struct {
	// Compress selects Deflate compression when writing.
	Compress bool
}

// Probe reads only the TIFF header of path and reports the frame's shape
// and pixel type.
func (c Codec) Probe(path string) (models.Shape, models.DType, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Shape{}, "", err
	}
	defer f.Close()

	cfg, err := tiff.DecodeConfig(f)
	if err != nil {
		return models.Shape{}, "", fmt.Errorf("failed to read TIFF header %s: %w", path, err)
	}
	dtype, err := dtypeOf(cfg.ColorModel)
	if err != nil {
		return models.Shape{}, "", fmt.Errorf("%s: %w", path, err)
	}
	return models.Shape{Height: cfg.Height, Width: cfg.Width}, dtype, nil
}

// Decode reads the full frame at path.
func (c Codec) Decode(path string) (*models.Plane, error) {
	// Read the whole file first so i/o errors are not hidden behind
	// decoder errors.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := DecodeFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Encode writes p to path, replacing any existing file.
func (c Codec) Encode(path string, p *models.Plane) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeTo(f, p, c.Compress); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

// DecodeFrom decodes a grayscale TIFF stream into a plane.
func DecodeFrom(r io.Reader) (*models.Plane, error) {
	img, err := tiff.Decode(r)
	if err != nil {
		return nil, err
	}
	return FromImage(img)
}

// EncodeTo writes p as a TIFF stream.
func EncodeTo(w io.Writer, p *models.Plane, compress bool) error {
	img, err := ToImage(p)
	if err != nil {
		return err
	}
	var opt *tiff.Options
	if compress {
		opt = &tiff.Options{Compression: tiff.Deflate}
	}
	return tiff.Encode(w, img, opt)
}

// FromImage converts a decoded grayscale image into a plane. Pixel data is
// copied so the plane never aliases the decoder's buffers.
func FromImage(img image.Image) (*models.Plane, error) {
	b := img.Bounds()
	shape := models.Shape{Height: b.Dy(), Width: b.Dx()}

	switch m := img.(type) {
	case *image.Gray:
		p := models.NewPlane(shape, models.Uint8)
		for y := 0; y < shape.Height; y++ {
			row := m.Pix[y*m.Stride : y*m.Stride+shape.Width]
			copy(p.Pix[y*shape.Width:], row)
		}
		return p, nil
	case *image.Gray16:
		p := models.NewPlane(shape, models.Uint16)
		rowBytes := shape.Width * 2
		for y := 0; y < shape.Height; y++ {
			row := m.Pix[y*m.Stride : y*m.Stride+rowBytes]
			copy(p.Pix[y*rowBytes:], row)
		}
		return p, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedPixelType, img)
}

// ToImage wraps a plane as an image.Gray or image.Gray16 sharing its
// pixel buffer.
func ToImage(p *models.Plane) (image.Image, error) {
	r := image.Rect(0, 0, p.Shape.Width, p.Shape.Height)
	switch p.DType {
	case models.Uint8:
		return &image.Gray{Pix: p.Pix, Stride: p.Shape.Width, Rect: r}, nil
	case models.Uint16:
		return &image.Gray16{Pix: p.Pix, Stride: p.Shape.Width * 2, Rect: r}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedPixelType, p.DType)
}

func dtypeOf(cm color.Model) (models.DType, error) {
	switch cm {
	case color.GrayModel:
		return models.Uint8, nil
	case color.Gray16Model:
		return models.Uint16, nil
	}
	return "", ErrUnsupportedPixelType
}
