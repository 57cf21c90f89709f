package volume

import (
	"fmt"

	"ctcvolume/internal/models"
)

// Decoder reads frames from disk. Implementations must be safe for
// concurrent use on different paths.
type Decoder interface {
	// Probe reports the shape and pixel type without decoding pixels.
	Probe(path string) (models.Shape, models.DType, error)

	// Decode reads the full frame.
	Decode(path string) (*models.Plane, error)
}

// Frame is one time point of a Volume. A frame is either a placeholder
// (no source file, reads as zeros), pending (a file that is decoded on
// Load), or materialized (pixels already in memory).
type Frame struct {
	shape models.Shape
	dtype models.DType

	path    string
	decoder Decoder
	cache   *FrameCache

	plane *models.Plane
}

func placeholder(shape models.Shape, dtype models.DType) *Frame {
	return &Frame{shape: shape, dtype: dtype}
}

func pending(path string, shape models.Shape, dtype models.DType, dec Decoder, cache *FrameCache) *Frame {
	return &Frame{shape: shape, dtype: dtype, path: path, decoder: dec, cache: cache}
}

func materialized(p *models.Plane) *Frame {
	return &Frame{shape: p.Shape, dtype: p.DType, plane: p}
}

// Path is the source file, or "" for placeholder and in-memory frames.
func (f *Frame) Path() string {
	return f.path
}

// Pending reports whether Load will read from disk.
func (f *Frame) Pending() bool {
	return f.path != ""
}

// Placeholder reports whether the frame has no source at all.
func (f *Frame) Placeholder() bool {
	return f.path == "" && f.plane == nil
}

// Load returns the frame's pixels. Placeholders yield a fresh zero plane.
// Pending frames are decoded (or served from the cache) on every call;
// Load never mutates the frame, so concurrent loads of different frames
// share nothing. In-memory planes are returned as is and must not be
// modified by the caller.
func (f *Frame) Load() (*models.Plane, error) {
	switch {
	case f.plane != nil:
		return f.plane, nil
	case f.path == "":
		return models.NewPlane(f.shape, f.dtype), nil
	}

	if p, ok := f.cache.get(f.path, f.shape, f.dtype); ok {
		return p, nil
	}

	p, err := f.decoder.Decode(f.path)
	if err != nil {
		return nil, err
	}
	if p.Shape != f.shape || p.DType != f.dtype {
		return nil, fmt.Errorf("%w: %s is %s %s, volume is %s %s",
			ErrShapeMismatch, f.path, p.Shape, p.DType, f.shape, f.dtype)
	}
	f.cache.put(f.path, p)
	return p, nil
}

// check probes the frame's header against the volume's shape and type.
func (f *Frame) check() error {
	if !f.Pending() {
		return nil
	}
	shape, dtype, err := f.decoder.Probe(f.path)
	if err != nil {
		return err
	}
	if shape != f.shape || dtype != f.dtype {
		return fmt.Errorf("%w: %s is %s %s, volume is %s %s",
			ErrShapeMismatch, f.path, shape, dtype, f.shape, f.dtype)
	}
	return nil
}
