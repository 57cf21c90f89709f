// Package volume assembles 2D frame files into a lazily loaded 2D+time
// volume.
package volume

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"ctcvolume/internal/models"
)

var (
	ErrEmptyInput      = errors.New("no matching frame files")
	ErrShapeMismatch   = errors.New("frame shape or pixel type differs from the volume")
	ErrIndexOutOfRange = errors.New("frame index out of range")
)

// Volume is an ordered, fixed-length sequence of frames sharing one shape
// and pixel type.
type Volume struct {
	// Kind tells the host how to display the data.
	Kind models.LayerKind

	// Name is the display name.
	Name string

	// Shape and DType are taken from the first source file.
	Shape models.Shape
	DType models.DType

	frames []*Frame
}

// New returns a volume of n placeholder frames.
func New(kind models.LayerKind, name string, shape models.Shape, dtype models.DType, n int) *Volume {
	v := &Volume{Kind: kind, Name: name, Shape: shape, DType: dtype, frames: make([]*Frame, n)}
	for i := range v.frames {
		v.frames[i] = placeholder(shape, dtype)
	}
	return v
}

// FromPlanes wraps in-memory planes as a volume. All planes must share
// the first plane's shape and type.
func FromPlanes(kind models.LayerKind, name string, planes []*models.Plane) (*Volume, error) {
	if len(planes) == 0 {
		return nil, ErrEmptyInput
	}
	first := planes[0]
	v := &Volume{Kind: kind, Name: name, Shape: first.Shape, DType: first.DType, frames: make([]*Frame, len(planes))}
	for i, p := range planes {
		if p.Shape != first.Shape || p.DType != first.DType {
			return nil, fmt.Errorf("%w: plane %d is %s %s, expected %s %s",
				ErrShapeMismatch, i, p.Shape, p.DType, first.Shape, first.DType)
		}
		v.frames[i] = materialized(p)
	}
	return v, nil
}

// Len returns the number of frames.
func (v *Volume) Len() int {
	return len(v.frames)
}

// Dims returns [frames, height, width].
func (v *Volume) Dims() []int {
	return []int{len(v.frames), v.Shape.Height, v.Shape.Width}
}

// At returns the frame handle at index i without loading it.
func (v *Volume) At(i int) *Frame {
	if i < 0 || i >= len(v.frames) {
		return nil
	}
	return v.frames[i]
}

// Frame loads the pixels at index i.
func (v *Volume) Frame(i int) (*models.Plane, error) {
	f := v.At(i)
	if f == nil {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(v.frames))
	}
	return f.Load()
}

// Populated returns the indices backed by a file or an in-memory plane.
func (v *Volume) Populated() []int {
	var out []int
	for i, f := range v.frames {
		if !f.Placeholder() {
			out = append(out, i)
		}
	}
	return out
}

// Validate probes every pending frame's header and reports the first frame
// whose shape or type differs from the volume.
func (v *Volume) Validate() error {
	for i, f := range v.frames {
		if err := f.check(); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return nil
}

// Each loads frames in index order and passes them to fn. It stops at the
// first error or when ctx is done.
func (v *Volume) Each(ctx context.Context, fn func(i int, p *models.Plane) error) error {
	for i, f := range v.frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, err := f.Load()
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if err := fn(i, p); err != nil {
			return err
		}
	}
	return nil
}

// Materialize loads every frame, at most workers at a time (unbounded when
// workers < 1), and returns them in index order.
func (v *Volume) Materialize(ctx context.Context, workers int) ([]*models.Plane, error) {
	out := make([]*models.Plane, len(v.frames))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, f := range v.frames {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := f.Load()
			if err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
			out[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
