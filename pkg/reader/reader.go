// Package reader turns a recognised dataset directory into a volume layer.
//
// GetReader classifies a path once and hands back a ReadFunc bound to the
// result, or nil when the path is not a sequence or ground-truth folder.
// Ground-truth folders are spread over the full length of their sister
// sequence so sparse annotations land on the right time points.
package reader

import (
	"errors"
	"fmt"
	"os"

	"ctcvolume/internal/models"
	"ctcvolume/pkg/convention"
	"ctcvolume/pkg/logging"
	"ctcvolume/pkg/tiffio"
	"ctcvolume/pkg/volume"
)

// SequenceLayerName is the display name given to raw image sequences.
const SequenceLayerName = "tracking_data"

// ErrSisterNotFound comes from SisterFrameCount. Reads only log it and
// fall back to the ground-truth file count.
var ErrSisterNotFound = errors.New("sister sequence not found")

// Meta carries display options for the host.
type Meta struct {
	Name string `json:"name" yaml:"name"`
}

// Layer is one (data, meta, kind) result.
type Layer struct {
	Data *volume.Volume
	Meta Meta
	Kind models.LayerKind
}

// ReadFunc reads the directory it was created for.
type ReadFunc func(path string) ([]Layer, error)

// Reader holds the collaborators shared by every read.
type Reader struct {
	Decoder volume.Decoder
	Cache   *volume.FrameCache
	Log     *logging.Logger
}

// New returns a Reader decoding with codec. cache and log may be nil.
func New(codec tiffio.Codec, cache *volume.FrameCache, log *logging.Logger) *Reader {
	return &Reader{Decoder: codec, Cache: cache, Log: log}
}

var defaultReader = New(tiffio.Codec{}, nil, nil)

// GetReader uses an uncached, silent Reader.
func GetReader(path string) ReadFunc {
	return defaultReader.GetReader(path)
}

// GetReader returns a ReadFunc for path, or nil when the path is not
// recognised.
func (r *Reader) GetReader(path string) ReadFunc {
	m, err := convention.Classify(path)
	if err != nil {
		r.Log.Debugf("No reader for %s: %v", path, err)
		return nil
	}
	return func(p string) ([]Layer, error) {
		return r.read(p, m.Kind)
	}
}

// Read classifies and reads path in one call.
func (r *Reader) Read(path string) ([]Layer, error) {
	m, err := convention.Classify(path)
	if err != nil {
		return nil, err
	}
	return r.read(path, m.Kind)
}

func (r *Reader) read(path string, kind models.Kind) ([]Layer, error) {
	// Re-match to get the captures for the path actually passed in; the
	// kind fixed at GetReader time wins.
	m, err := convention.Classify(path)
	if err != nil {
		return nil, err
	}
	if m.Kind != kind {
		return nil, fmt.Errorf("%w: %s is now a %s directory, expected %s",
			convention.ErrNotRecognized, m.Dir, m.Kind, kind)
	}

	asm := &volume.Assembler{Decoder: r.Decoder, Cache: r.Cache, Log: r.Log}

	switch kind {
	case models.Sequence:
		v, err := asm.Assemble(m.Dir, models.Sequence, 0)
		if err != nil {
			return nil, err
		}
		v.Name = SequenceLayerName
		return []Layer{{Data: v, Meta: Meta{Name: v.Name}, Kind: models.LayerImage}}, nil

	case models.GroundTruth:
		total, err := SisterFrameCount(m)
		if err != nil {
			r.Log.Warnf("Can't find image for ground truth at %s (%v). Reading without knowing number of frames...", m.Dir, err)
			total = 0
		}
		v, err := asm.Assemble(m.Dir, models.GroundTruth, total)
		if err != nil {
			return nil, err
		}
		v.Name = m.DisplayName()
		return []Layer{{Data: v, Meta: Meta{Name: v.Name}, Kind: models.LayerLabels}}, nil
	}

	return nil, fmt.Errorf("%w: %s", convention.ErrNotRecognized, m.Dir)
}

// SisterFrameCount returns the frame count of the sequence sharing a
// ground-truth match's id: the index of its last frame file plus one.
func SisterFrameCount(m convention.Match) (int, error) {
	sister := m.SisterPath()
	info, err := os.Stat(sister)
	if err != nil || !info.IsDir() {
		return 0, fmt.Errorf("%w: %s", ErrSisterNotFound, sister)
	}
	files, err := convention.ListFrames(sister, models.Sequence)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSisterNotFound, err)
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("%w: no frames in %s", ErrSisterNotFound, sister)
	}
	return files[len(files)-1].Index + 1, nil
}
