package convention

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ctcvolume/internal/models"
)

// Classify decides whether path is a sequence directory, a ground-truth
// directory, or neither. Recognition is all-or-nothing: the directory name
// must match one layout and every image file inside it must match that
// layout's frame pattern. Any failure returns ErrNotRecognized with the
// reason and a Match of kind Unrecognized.
func Classify(path string) (Match, error) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return Match{}, fmt.Errorf("%w: %v", ErrNotRecognized, err)
	}
	dir = filepath.Clean(dir)

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return Match{Dir: dir}, fmt.Errorf("%w: %s is not a directory", ErrNotRecognized, dir)
	}

	m, ok := matchGroundTruthDir(dir)
	if !ok {
		m, ok = matchSequenceDir(dir)
	}
	if !ok {
		return Match{Dir: dir}, fmt.Errorf("%w: %s is neither <id> nor <id>_GT/SEG", ErrNotRecognized, dir)
	}

	names, err := listImageFiles(dir)
	if err != nil {
		return Match{Dir: dir}, fmt.Errorf("%w: %v", ErrNotRecognized, err)
	}
	if len(names) == 0 {
		return Match{Dir: dir}, fmt.Errorf("%w: no image files in %s", ErrNotRecognized, dir)
	}

	files := make([]FrameFile, 0, len(names))
	for _, name := range names {
		fn, err := ParseFrameName(name, m.Kind)
		if err != nil {
			return Match{Dir: dir}, fmt.Errorf("%w: %v", ErrNotRecognized, err)
		}
		files = append(files, FrameFile{Path: filepath.Join(dir, name), FrameName: fn})
	}
	m.Files = files

	return m, nil
}

// ListFrames returns the files in dir that match kind's frame pattern,
// sorted by path. Image files that do not match are skipped.
func ListFrames(dir string, kind models.Kind) ([]FrameFile, error) {
	names, err := listImageFiles(dir)
	if err != nil {
		return nil, err
	}
	var files []FrameFile
	for _, name := range names {
		fn, err := ParseFrameName(name, kind)
		if err != nil {
			continue
		}
		files = append(files, FrameFile{Path: filepath.Join(dir, name), FrameName: fn})
	}
	return files, nil
}

// matchGroundTruthDir matches <parent>/<id><suffix>/SEG.
func matchGroundTruthDir(dir string) (Match, bool) {
	if filepath.Base(dir) != SegDir {
		return Match{}, false
	}
	gtDir := filepath.Dir(dir)
	name := filepath.Base(gtDir)
	for _, suffix := range gtSuffixes {
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		id := strings.TrimSuffix(name, suffix)
		if !isSeqID(id) {
			continue
		}
		return Match{
			Kind:   models.GroundTruth,
			Dir:    dir,
			Parent: filepath.Dir(gtDir),
			SeqID:  id,
			Suffix: suffix,
		}, true
	}
	return Match{}, false
}

// matchSequenceDir matches <parent>/<id>.
func matchSequenceDir(dir string) (Match, bool) {
	name := filepath.Base(dir)
	if !isSeqID(name) {
		return Match{}, false
	}
	return Match{
		Kind:   models.Sequence,
		Dir:    dir,
		Parent: filepath.Dir(dir),
		SeqID:  name,
	}, true
}

func isSeqID(s string) bool {
	return len(s) >= 2 && isDigits(s)
}

// listImageFiles returns the sorted names of regular files directly in dir
// that carry an image extension. Hidden files such as ._t000.tif sidecars
// are skipped.
func listImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, _, ok := splitImageExt(e.Name()); !ok {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
