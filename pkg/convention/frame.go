package convention

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"ctcvolume/internal/models"
)

// frameDigits is the exact width of the frame index in a file name.
const frameDigits = 3

// ParseFrameName parses a frame file name (or path) for the given
// directory kind.
func ParseFrameName(name string, kind models.Kind) (FrameName, error) {
	base := filepath.Base(name)
	stem, ext, ok := splitImageExt(base)
	if !ok {
		return FrameName{}, fmt.Errorf("%w: %q has no image extension", ErrFrameName, base)
	}

	var prefix string
	switch kind {
	case models.Sequence:
		prefix = "t"
	case models.GroundTruth:
		prefix = "seg"
		if strings.HasPrefix(stem, "man_seg") {
			prefix = "man_seg"
		}
	default:
		return FrameName{}, fmt.Errorf("%w: no frame pattern for %s directories", ErrFrameName, kind)
	}

	if !strings.HasPrefix(stem, prefix) {
		return FrameName{}, fmt.Errorf("%w: %q is not a %s frame", ErrFrameName, base, kind)
	}
	digits := stem[len(prefix):]
	if len(digits) != frameDigits || !isDigits(digits) {
		return FrameName{}, fmt.Errorf("%w: %q needs exactly %d digits after %q", ErrFrameName, base, frameDigits, prefix)
	}
	index, err := strconv.Atoi(digits)
	if err != nil {
		return FrameName{}, fmt.Errorf("%w: %q: %v", ErrFrameName, base, err)
	}

	return FrameName{Name: base, Prefix: prefix, Index: index, Ext: ext}, nil
}

// FrameIndex returns the frame index encoded in a file name.
func FrameIndex(name string, kind models.Kind) (int, error) {
	fn, err := ParseFrameName(name, kind)
	if err != nil {
		return 0, err
	}
	return fn.Index, nil
}

// FrameFileName builds the canonical file name for a frame index,
// e.g. t007.tif or seg007.tif.
func FrameFileName(kind models.Kind, index int) string {
	prefix := "t"
	if kind == models.GroundTruth {
		prefix = "seg"
	}
	return fmt.Sprintf("%s%0*d.tif", prefix, frameDigits, index)
}

func splitImageExt(base string) (stem, ext string, ok bool) {
	dot := strings.LastIndexByte(base, '.')
	if dot < 0 {
		return "", "", false
	}
	ext = base[dot+1:]
	if !imageExtensions[ext] {
		return "", "", false
	}
	return base[:dot], ext, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
