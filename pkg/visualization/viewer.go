package visualization

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"ctcvolume/internal/models"
	"ctcvolume/pkg/volume"
)

// Viewer renders orthogonal slices through a 2D+time stack: a single frame
// (axis t), a kymograph along one row (axis y), or along one column
// (axis x).
type Viewer struct {
	stack models.Stack

	// dimensions of the stack
	frames int
	height int
	width  int

	// planes caches frames already loaded; y and x slices touch every frame
	planes []*models.Plane

	// Width resizes saved slices to this many pixels across; 0 keeps the
	// native size
	Width int

	// Quality is the JPEG quality used by SaveSlice
	Quality int
}

// NewViewer creates a viewer over stack
func NewViewer(stack models.Stack) (*Viewer, error) {
	dims := stack.Dims()
	if len(dims) != 3 {
		return nil, fmt.Errorf("expected a 3D stack, got %d dimensions", len(dims))
	}
	return &Viewer{
		stack:   stack,
		frames:  dims[0],
		height:  dims[1],
		width:   dims[2],
		planes:  make([]*models.Plane, dims[0]),
		Quality: 90,
	}, nil
}

func (v *Viewer) frame(t int) (*models.Plane, error) {
	if v.planes[t] == nil {
		p, err := v.stack.Frame(t)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", t, err)
		}
		v.planes[t] = p
	}
	return v.planes[t], nil
}

// AxisLen returns the number of slice positions along axis
func (v *Viewer) AxisLen(axis string) (int, error) {
	switch axis {
	case "t", "T":
		return v.frames, nil
	case "y", "Y":
		return v.height, nil
	case "x", "X":
		return v.width, nil
	}
	return 0, fmt.Errorf("invalid axis: %s (must be t, y, or x)", axis)
}

// ExtractSlice extracts a 2D slice along the specified axis, contrast
// stretched to the full 16-bit range
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	n, err := v.AxisLen(axis)
	if err != nil {
		return nil, err
	}
	if position >= n {
		return nil, fmt.Errorf("position %d exceeds %s extent %d", position, axis, n)
	}

	var (
		w, h int
		at   func(col, row int) (uint32, error)
	)
	switch axis {
	case "t", "T":
		p, err := v.frame(position)
		if err != nil {
			return nil, err
		}
		w, h = v.width, v.height
		at = func(x, y int) (uint32, error) { return p.At(x, y), nil }

	case "y", "Y":
		// Columns are x, rows are time
		w, h = v.width, v.frames
		at = func(x, t int) (uint32, error) {
			p, err := v.frame(t)
			if err != nil {
				return 0, err
			}
			return p.At(x, position), nil
		}

	case "x", "X":
		// Columns are time, rows are y
		w, h = v.frames, v.height
		at = func(t, y int) (uint32, error) {
			p, err := v.frame(t)
			if err != nil {
				return 0, err
			}
			return p.At(position, y), nil
		}
	}

	values := make([]uint32, w*h)
	lo, hi := ^uint32(0), uint32(0)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			val, err := at(col, row)
			if err != nil {
				return nil, err
			}
			values[row*w+col] = val
			lo, hi = min(lo, val), max(hi, val)
		}
	}

	img := image.NewGray16(image.Rect(0, 0, w, h))
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			img.SetGray16(col, row, color.Gray16{Y: stretch(values[row*w+col], lo, hi)})
		}
	}
	return img, nil
}

func stretch(val, lo, hi uint32) uint16 {
	if hi <= lo {
		return 0
	}
	return uint16(uint64(val-lo) * 0xffff / uint64(hi-lo))
}

// ExtractRegion crops a sub-volume starting at frame startT, row startY and
// column startX
func (v *Viewer) ExtractRegion(startT, startY, startX, sizeT, sizeY, sizeX int) (*volume.Volume, error) {
	// Validate parameters
	if startT < 0 || startY < 0 || startX < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}

	if sizeT <= 0 || sizeY <= 0 || sizeX <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}

	if startT+sizeT > v.frames || startY+sizeY > v.height || startX+sizeX > v.width {
		return nil, fmt.Errorf("region extends beyond volume boundaries")
	}

	planes := make([]*models.Plane, sizeT)
	for t := range planes {
		src, err := v.frame(startT + t)
		if err != nil {
			return nil, err
		}
		dst := models.NewPlane(models.Shape{Height: sizeY, Width: sizeX}, src.DType)
		for y := 0; y < sizeY; y++ {
			for x := 0; x < sizeX; x++ {
				dst.Set(x, y, src.At(startX+x, startY+y))
			}
		}
		planes[t] = dst
	}

	kind := models.LayerImage
	if vol, ok := v.stack.(*volume.Volume); ok {
		kind = vol.Kind
	}
	return volume.FromPlanes(kind, "region", planes)
}

// SaveSlice saves an extracted slice as a JPEG image, resized to Width if set
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	if v.Width > 0 {
		img = imaging.Resize(img, v.Width, 0, imaging.Lanczos)
	}
	return imaging.Save(img, filename, imaging.JPEGQuality(v.Quality))
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(ctx context.Context, axis string, outputDir string) (int, error) {
	maxPos, err := v.AxisLen(axis)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, err
	}

	for pos := 0; pos < maxPos; pos++ {
		if err := ctx.Err(); err != nil {
			return pos, err
		}
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return pos, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return pos, err
		}
	}

	return maxPos, nil
}
