// Package convention recognises the cell-tracking dataset directory layout.
//
// A sequence directory is named by a sequence id of two or more digits and
// holds frames named t<NNN>.tif. A ground-truth directory is
// <id>_GT/SEG or <id>_AUTO/SEG and holds frames named seg<NNN>.tif or
// man_seg<NNN>.tif. Matching is done on path segments and file name tokens
// and yields capture records rather than regular-expression matches.
package convention

import (
	"errors"
	"path/filepath"

	"ctcvolume/internal/models"
)

var (
	ErrNotRecognized = errors.New("directory does not follow the dataset naming convention")
	ErrFrameName     = errors.New("file name does not match the frame pattern")
)

// Ground-truth directory suffixes, in the order they are tried.
const (
	SuffixGT   = "_GT"
	SuffixAuto = "_AUTO"
)

// SegDir is the fixed leaf directory of a ground-truth folder.
const SegDir = "SEG"

var gtSuffixes = []string{SuffixGT, SuffixAuto}

// imageExtensions lists the accepted frame extensions, without the dot.
// Matching is case-sensitive.
var imageExtensions = map[string]bool{
	"tif":  true,
	"tiff": true,
}

// Match is the capture record of a classified directory.
type Match struct {
	// Kind is Sequence, GroundTruth or Unrecognized.
	Kind models.Kind

	// Dir is the absolute, cleaned directory path.
	Dir string

	// Parent is the directory that holds the sequence folder. For a
	// ground-truth match this is the parent of <id><suffix>.
	Parent string

	// SeqID is the zero-padded sequence id, e.g. "01".
	SeqID string

	// Suffix is "_GT" or "_AUTO" for ground truth, empty otherwise.
	Suffix string

	// Files are the directory's frames in lexicographic path order.
	Files []FrameFile
}

// SisterPath returns where the sequence directory sharing m's sequence id
// would live.
func (m Match) SisterPath() string {
	return filepath.Join(m.Parent, m.SeqID)
}

// DisplayName is the sequence id followed by the ground-truth suffix,
// e.g. "01_GT".
func (m Match) DisplayName() string {
	return m.SeqID + m.Suffix
}

// FrameFile is one frame on disk together with its parsed name.
type FrameFile struct {
	Path string
	FrameName
}

// FrameName is the parsed form of a frame file name.
type FrameName struct {
	// Name is the base file name.
	Name string

	// Prefix is "t", "seg" or "man_seg".
	Prefix string

	// Index is the frame index encoded in the name.
	Index int

	// Ext is the extension without the dot.
	Ext string
}
