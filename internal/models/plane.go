package models

import (
	"bytes"
	"fmt"
)

// Kind is the outcome of classifying a directory against the dataset
// naming convention.
type Kind int

const (
	Unrecognized Kind = iota
	Sequence
	GroundTruth
)

func (k Kind) String() string {
	switch k {
	case Sequence:
		return "sequence"
	case GroundTruth:
		return "ground-truth"
	default:
		return "unrecognized"
	}
}

// LayerKind tags a volume for the host: raw intensities or a label mask.
type LayerKind string

const (
	LayerImage  LayerKind = "image"
	LayerLabels LayerKind = "labels"
)

// DType is the pixel type of a single-channel frame.
type DType string

const (
	Uint8  DType = "uint8"
	Uint16 DType = "uint16"
)

// Size returns the number of bytes per pixel, or 0 for an unknown type.
func (d DType) Size() int {
	switch d {
	case Uint8:
		return 1
	case Uint16:
		return 2
	}
	return 0
}

// Max returns the largest value representable by the type.
func (d DType) Max() uint32 {
	switch d {
	case Uint8:
		return 0xff
	case Uint16:
		return 0xffff
	}
	return 0
}

// Shape is the 2D extent of a frame.
type Shape struct {
	Height int
	Width  int
}

// Pixels returns Height*Width.
func (s Shape) Pixels() int {
	return s.Height * s.Width
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%d", s.Height, s.Width)
}

// Plane is one 2D single-channel frame held in memory.
type Plane struct {
	// Shape is the frame extent in pixels.
	Shape Shape

	// DType is the pixel type.
	DType DType

	// Pix holds the pixels in row-major order. 16-bit values are stored
	// big-endian, the same layout image.Gray16 uses.
	Pix []byte
}

// NewPlane returns an all-zero plane.
func NewPlane(shape Shape, dtype DType) *Plane {
	return &Plane{
		Shape: shape,
		DType: dtype,
		Pix:   make([]byte, shape.Pixels()*dtype.Size()),
	}
}

// Dims returns [height, width].
func (p *Plane) Dims() []int {
	return []int{p.Shape.Height, p.Shape.Width}
}

// At returns the value of the pixel at column x, row y.
func (p *Plane) At(x, y int) uint32 {
	i := y*p.Shape.Width + x
	if p.DType == Uint16 {
		return uint32(p.Pix[2*i])<<8 | uint32(p.Pix[2*i+1])
	}
	return uint32(p.Pix[i])
}

// Set stores v at column x, row y, truncating to the plane's type.
func (p *Plane) Set(x, y int, v uint32) {
	i := y*p.Shape.Width + x
	if p.DType == Uint16 {
		p.Pix[2*i] = uint8(v >> 8)
		p.Pix[2*i+1] = uint8(v)
		return
	}
	p.Pix[i] = uint8(v)
}

// Equal reports whether both planes have the same shape, type and pixels.
func (p *Plane) Equal(o *Plane) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.Shape == o.Shape && p.DType == o.DType && bytes.Equal(p.Pix, o.Pix)
}

// Clone returns a deep copy of p.
func (p *Plane) Clone() *Plane {
	out := &Plane{Shape: p.Shape, DType: p.DType, Pix: make([]byte, len(p.Pix))}
	copy(out.Pix, p.Pix)
	return out
}

// Array is anything with an n-dimensional extent.
type Array interface {
	Dims() []int
}

// Stack is a 3D array (time, height, width) readable one frame at a time.
type Stack interface {
	Array

	// Len returns the number of frames along the time axis.
	Len() int

	// Frame returns the frame at time index i.
	Frame(i int) (*Plane, error)
}
