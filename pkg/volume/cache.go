package volume

import (
	"github.com/coocood/freecache"

	"ctcvolume/internal/models"
)

// FrameCache keeps decoded pixel buffers keyed by file path. A nil cache
// is valid and never hits.
//
// freecache rejects entries larger than about 1/1024 of the cache size, so
// frames that are too big for the configured size are simply not cached.
type FrameCache struct {
	c *freecache.Cache
}

// NewFrameCache returns a cache of sizeMB megabytes, or nil when sizeMB
// is not positive.
func NewFrameCache(sizeMB int) *FrameCache {
	if sizeMB <= 0 {
		return nil
	}
	return &FrameCache{c: freecache.NewCache(sizeMB * 1024 * 1024)}
}

func (fc *FrameCache) get(path string, shape models.Shape, dtype models.DType) (*models.Plane, bool) {
	if fc == nil {
		return nil, false
	}
	pix, err := fc.c.Get([]byte(path))
	if err != nil || len(pix) != shape.Pixels()*dtype.Size() {
		return nil, false
	}
	return &models.Plane{Shape: shape, DType: dtype, Pix: pix}, true
}

func (fc *FrameCache) put(path string, p *models.Plane) {
	if fc == nil {
		return
	}
	// ErrLargeEntry just means the frame stays uncached
	_ = fc.c.Set([]byte(path), p.Pix, 0)
}

// Hits returns the number of cache hits so far.
func (fc *FrameCache) Hits() int64 {
	if fc == nil {
		return 0
	}
	return fc.c.HitCount()
}

// Entries returns the number of cached frames.
func (fc *FrameCache) Entries() int64 {
	if fc == nil {
		return 0
	}
	return fc.c.EntryCount()
}
