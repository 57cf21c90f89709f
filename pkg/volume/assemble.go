package volume

import (
	"fmt"

	"ctcvolume/internal/models"
	"ctcvolume/pkg/convention"
	"ctcvolume/pkg/logging"
)

// Assembler builds volumes from a directory of frame files.
type Assembler struct {
	// Decoder reads headers and pixels. Required.
	Decoder Decoder

	// Cache holds decoded frames across loads. Optional.
	Cache *FrameCache

	// Log receives dropped and duplicate frame warnings. Optional.
	Log *logging.Logger
}

// Assemble lists the frames in dir matching kind's file pattern and places
// each at the index encoded in its name. The first file (in sorted order)
// fixes the volume's shape and pixel type; only its header is read here.
//
// When totalFrames > 0 the volume has exactly that many frames and files
// whose index falls outside it are dropped with a warning. Otherwise the
// length is the larger of the file count and the highest index plus one,
// so every file has a slot. Either way the length never changes after this
// point. Indices without a file read as zeros. When two files carry the
// same index the later one in sorted order wins.
func (a *Assembler) Assemble(dir string, kind models.Kind, totalFrames int) (*Volume, error) {
	files, err := convention.ListFrames(dir, kind)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyInput, dir)
	}

	shape, dtype, err := a.Decoder.Probe(files[0].Path)
	if err != nil {
		return nil, err
	}

	n := totalFrames
	if n <= 0 {
		n = len(files)
		for _, f := range files {
			n = max(n, f.Index+1)
		}
	}

	v := New(layerKind(kind), "", shape, dtype, n)
	for _, f := range files {
		if f.Index >= n {
			a.Log.Warnf("Dropping %s: frame %d is outside a volume of %d frames", f.Path, f.Index, n)
			continue
		}
		if prev := v.frames[f.Index]; prev.Pending() {
			a.Log.Warnf("Frame %d given by both %s and %s; keeping %s", f.Index, prev.Path(), f.Path, f.Path)
		}
		v.frames[f.Index] = pending(f.Path, shape, dtype, a.Decoder, a.Cache)
	}

	a.Log.Debugf("Assembled %s: %d frames of %s %s from %d files", dir, n, shape, dtype, len(files))
	return v, nil
}

func layerKind(kind models.Kind) models.LayerKind {
	if kind == models.GroundTruth {
		return models.LayerLabels
	}
	return models.LayerImage
}
