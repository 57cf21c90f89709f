package reader

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ctcvolume/internal/models"
	"ctcvolume/pkg/convention"
	"ctcvolume/pkg/logging"
	"ctcvolume/pkg/tiffio"
)

var frameShape = models.Shape{Height: 100, Width: 100}

// randomPlane fills a plane with values below max
func randomPlane(rng *rand.Rand, dtype models.DType, max int) *models.Plane {
	p := models.NewPlane(frameShape, dtype)
	for y := 0; y < frameShape.Height; y++ {
		for x := 0; x < frameShape.Width; x++ {
			p.Set(x, y, uint32(rng.Intn(max)))
		}
	}
	return p
}

func writeTIFF(t *testing.T, path string, p *models.Plane) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := (tiffio.Codec{}).Encode(path, p); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

// touch writes a file that has a frame name but is not a TIFF
func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("test"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestReaderGroundTruthWithoutSister(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	root := t.TempDir()
	gtDir := filepath.Join(root, "01_GT", "SEG")
	labels := randomPlane(rng, models.Uint8, 20)
	writeTIFF(t, filepath.Join(gtDir, "man_seg000.tif"), labels)

	var logBuf bytes.Buffer
	r := New(tiffio.Codec{}, nil, logging.NewWriter(&logBuf, false))

	read := r.GetReader(gtDir)
	if read == nil {
		t.Fatal("Expected a reader for a ground-truth folder")
	}
	layers, err := read(gtDir)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(layers) != 1 {
		t.Fatalf("Expected one layer, got %d", len(layers))
	}
	layer := layers[0]
	if layer.Kind != models.LayerLabels || layer.Meta.Name != "01_GT" {
		t.Errorf("Unexpected layer kind/name %s %q", layer.Kind, layer.Meta.Name)
	}
	if dims := layer.Data.Dims(); dims[0] != 1 || dims[1] != 100 || dims[2] != 100 {
		t.Errorf("Expected shape (1, 100, 100), got %v", dims)
	}
	p, err := layer.Data.Frame(0)
	if err != nil || !p.Equal(labels) {
		t.Errorf("Frame 0 should equal the written labels: %v", err)
	}
	if !strings.Contains(logBuf.String(), "WARN") || !strings.Contains(logBuf.String(), "Can't find image") {
		t.Errorf("Expected a missing-sister warning, got %q", logBuf.String())
	}
}

func TestReaderGroundTruthWithSister(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	root := t.TempDir()

	original := randomPlane(rng, models.Uint16, 1<<12)
	writeTIFF(t, filepath.Join(root, "01", "t000.tif"), original)
	writeTIFF(t, filepath.Join(root, "01", "t001.tif"), original)

	gtDir := filepath.Join(root, "01_GT", "SEG")
	labels := randomPlane(rng, models.Uint8, 20)
	writeTIFF(t, filepath.Join(gtDir, "man_seg001.tif"), labels)

	var logBuf bytes.Buffer
	r := New(tiffio.Codec{}, nil, logging.NewWriter(&logBuf, false))
	read := r.GetReader(gtDir)
	if read == nil {
		t.Fatal("Expected a reader")
	}
	layers, err := read(gtDir)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	v := layers[0].Data
	if v.Len() != 2 {
		t.Fatalf("Expected 2 frames from the sister sequence, got %d", v.Len())
	}
	first, err := v.Frame(0)
	if err != nil || !first.Equal(models.NewPlane(frameShape, models.Uint8)) {
		t.Errorf("Frame 0 should be an all-zero placeholder: %v", err)
	}
	second, err := v.Frame(1)
	if err != nil || !second.Equal(labels) {
		t.Errorf("Frame 1 should equal the ground truth: %v", err)
	}
	if strings.Contains(logBuf.String(), "WARN") {
		t.Errorf("No warning expected with a sister present, got %q", logBuf.String())
	}
}

func TestReaderAutoSuffixName(t *testing.T) {
	root := t.TempDir()
	gtDir := filepath.Join(root, "02_AUTO", "SEG")
	writeTIFF(t, filepath.Join(gtDir, "seg000.tif"), models.NewPlane(frameShape, models.Uint8))

	layers, err := GetReader(gtDir)(gtDir)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if layers[0].Meta.Name != "02_AUTO" {
		t.Errorf("Expected name 02_AUTO, got %q", layers[0].Meta.Name)
	}
}

func TestReaderSequence(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	root := t.TempDir()
	seqDir := filepath.Join(root, "01")
	frames := []*models.Plane{randomPlane(rng, models.Uint16, 1<<12), randomPlane(rng, models.Uint16, 1<<12)}
	writeTIFF(t, filepath.Join(seqDir, "t000.tif"), frames[0])
	writeTIFF(t, filepath.Join(seqDir, "t001.tif"), frames[1])

	layers, err := New(tiffio.Codec{}, nil, nil).Read(seqDir)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	layer := layers[0]
	if layer.Kind != models.LayerImage || layer.Meta.Name != SequenceLayerName {
		t.Errorf("Unexpected kind/name %s %q", layer.Kind, layer.Meta.Name)
	}
	for i, want := range frames {
		got, err := layer.Data.Frame(i)
		if err != nil || !got.Equal(want) {
			t.Errorf("Frame %d mismatch: %v", i, err)
		}
	}
}

func TestReaderLengthFollowsHighestIndex(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	root := t.TempDir()

	tests := []struct {
		name      string
		dir       string
		pattern   string
		frames    map[int]*models.Plane
		wantLen   int
		populated []int
	}{
		{
			name:      "sequence with a gap",
			dir:       filepath.Join(root, "04"),
			pattern:   "t%03d.tif",
			frames:    map[int]*models.Plane{0: randomPlane(rng, models.Uint16, 1<<12), 2: randomPlane(rng, models.Uint16, 1<<12)},
			wantLen:   3,
			populated: []int{0, 2},
		},
		{
			name:      "sparse ground truth without sister",
			dir:       filepath.Join(root, "05_GT", "SEG"),
			pattern:   "man_seg%03d.tif",
			frames:    map[int]*models.Plane{7: randomPlane(rng, models.Uint8, 20)},
			wantLen:   8,
			populated: []int{7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i, p := range tt.frames {
				writeTIFF(t, filepath.Join(tt.dir, fmt.Sprintf(tt.pattern, i)), p)
			}
			layers, err := New(tiffio.Codec{}, nil, nil).Read(tt.dir)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			v := layers[0].Data
			if v.Len() != tt.wantLen {
				t.Fatalf("Expected length %d, got %d", tt.wantLen, v.Len())
			}
			pop := v.Populated()
			if len(pop) != len(tt.populated) {
				t.Fatalf("Expected populated %v, got %v", tt.populated, pop)
			}
			for i := range pop {
				if pop[i] != tt.populated[i] {
					t.Errorf("Expected populated %v, got %v", tt.populated, pop)
				}
			}
			zero := models.NewPlane(frameShape, v.DType)
			for i := 0; i < v.Len(); i++ {
				got, err := v.Frame(i)
				if err != nil {
					t.Fatalf("Frame %d: %v", i, err)
				}
				want := zero
				if p, ok := tt.frames[i]; ok {
					want = p
				}
				if !got.Equal(want) {
					t.Errorf("Frame %d mismatch", i)
				}
			}
		})
	}
}

func TestGetReaderPass(t *testing.T) {
	// Recognition only looks at names, so placeholder content is enough
	root := t.TempDir()
	touch(t, filepath.Join(root, "01_GT", "SEG", "man_seg000.tif"))
	if GetReader(filepath.Join(root, "01_GT", "SEG")) == nil {
		t.Error("Expected a reader for a valid ground-truth folder")
	}
}

func TestGetReaderDeclines(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		open  string
	}{
		{"not a directory", []string{"01/t000.tif"}, "01/t000.tif"},
		{"wrong dir name", []string{"foobar/t000.tif"}, "foobar"},
		{"mixed tifs", []string{"01/t000.tif", "01/foobar.tif"}, "01"},
		{"gt frame in sequence", []string{"01/man_seg000.tif"}, "01"},
		{"sequence frame in gt", []string{"01_GT/t000.tif"}, "01_GT"},
		{"no tifs", []string{"01/not_a_tif.jpg"}, "01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			for _, f := range tt.files {
				touch(t, filepath.Join(root, f))
			}
			if read := GetReader(filepath.Join(root, tt.open)); read != nil {
				t.Error("Expected no reader")
			}
		})
	}
}

func TestSisterFrameCount(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "03_GT", "SEG", "man_seg000.tif"))
	m, err := convention.Classify(filepath.Join(root, "03_GT", "SEG"))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if _, err := SisterFrameCount(m); !errors.Is(err, ErrSisterNotFound) {
		t.Errorf("Expected ErrSisterNotFound without a sister, got %v", err)
	}

	// A sister holding no sequence frames is treated as missing
	touch(t, filepath.Join(root, "03", "readme.txt"))
	if _, err := SisterFrameCount(m); !errors.Is(err, ErrSisterNotFound) {
		t.Errorf("Expected ErrSisterNotFound for an empty sister, got %v", err)
	}

	// Gaps in the sister do not matter, only the last index does; a
	// stray file is ignored
	touch(t, filepath.Join(root, "03", "t000.tif"))
	touch(t, filepath.Join(root, "03", "t041.tif"))
	touch(t, filepath.Join(root, "03", "zz.tif"))
	n, err := SisterFrameCount(m)
	if err != nil || n != 42 {
		t.Errorf("Expected 42 frames, got %d, %v", n, err)
	}
}

func TestReadFuncRejectsChangedDirectory(t *testing.T) {
	root := t.TempDir()
	seqDir := filepath.Join(root, "01")
	writeTIFF(t, filepath.Join(seqDir, "t000.tif"), models.NewPlane(frameShape, models.Uint8))

	read := GetReader(seqDir)
	if read == nil {
		t.Fatal("Expected a reader")
	}
	touch(t, filepath.Join(seqDir, "foobar.tif"))
	if _, err := read(seqDir); !errors.Is(err, convention.ErrNotRecognized) {
		t.Errorf("Expected ErrNotRecognized after the folder changed, got %v", err)
	}
}
