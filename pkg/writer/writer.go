// Package writer serialises a 2D+time volume back into the dataset layout
// and archives it.
package writer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"

	"ctcvolume/internal/models"
	"ctcvolume/pkg/convention"
	"ctcvolume/pkg/logging"
	"ctcvolume/pkg/tiffio"
)

var ErrInvalidVolumeShape = errors.New("data must be a 3D (time, height, width) stack")

// maxFrames is the largest frame count three-digit names can address.
const maxFrames = 1000

// Writer writes volumes. The zero value writes uncompressed frames, all at
// once, without logging.
type Writer struct {
	Codec tiffio.Codec

	// Workers bounds concurrent slice writes; < 1 means unbounded.
	Workers int

	Log *logging.Logger
}

// Job is a running write. Path is known up front; Wait blocks until the
// archive exists or the write failed.
type Job struct {
	archive string
	done    chan struct{}
	err     error
}

// Path returns the archive path.
func (j *Job) Path() string {
	return j.archive
}

// Done is closed once the job has finished.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job finishes and returns its error.
func (j *Job) Wait() error {
	<-j.done
	return j.err
}

// Layout returns the subdirectory, relative to the working directory, that
// frames of the given layer kind are written to.
func Layout(kind models.LayerKind) string {
	if kind == models.LayerLabels {
		return filepath.Join("01"+convention.SuffixAuto, convention.SegDir)
	}
	return "01"
}

// ArchivePath returns the working directory and archive path for path,
// which may or may not end in ".zip".
func ArchivePath(path string) (dir, archive string) {
	dir = strings.TrimSuffix(path, ".zip")
	return dir, dir + ".zip"
}

// Write starts writing data under path and returns immediately. Labels go
// to 01_AUTO/SEG/seg<NNN>.tif, images to 01/t<NNN>.tif. Once every slice is
// on disk the directory is zipped to <dir>.zip and removed.
//
// data must be a models.Stack with three dimensions; anything else returns
// ErrInvalidVolumeShape before any file is created.
func (w *Writer) Write(ctx context.Context, path string, data models.Array, kind models.LayerKind) (*Job, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: no data", ErrInvalidVolumeShape)
	}
	dims := data.Dims()
	if len(dims) != 3 {
		return nil, fmt.Errorf("%w: got %d dimensions", ErrInvalidVolumeShape, len(dims))
	}
	stack, ok := data.(models.Stack)
	if !ok {
		return nil, fmt.Errorf("%w: %T cannot be read frame by frame", ErrInvalidVolumeShape, data)
	}
	if stack.Len() > maxFrames {
		return nil, fmt.Errorf("%w: %d frames, at most %d can be named", ErrInvalidVolumeShape, stack.Len(), maxFrames)
	}

	dir, archive := ArchivePath(path)
	frameDir := filepath.Join(dir, Layout(kind))
	if err := os.MkdirAll(frameDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", frameDir, err)
	}

	job := &Job{archive: archive, done: make(chan struct{})}
	go func() {
		defer close(job.done)
		job.err = w.run(ctx, stack, kind, dir, frameDir, archive)
		if job.err != nil {
			w.Log.Errorf("Writing %s failed: %v", archive, job.err)
		}
	}()
	return job, nil
}

func (w *Writer) run(ctx context.Context, stack models.Stack, kind models.LayerKind, dir, frameDir, archive string) error {
	fileKind := models.Sequence
	if kind == models.LayerLabels {
		fileKind = models.GroundTruth
	}

	g, gctx := errgroup.WithContext(ctx)
	if w.Workers > 0 {
		g.SetLimit(w.Workers)
	}
	for i := 0; i < stack.Len(); i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := stack.Frame(i)
			if err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
			return w.Codec.Encode(filepath.Join(frameDir, convention.FrameFileName(fileKind, i)), p)
		})
	}
	// Barrier: nothing is archived until every slice write has returned.
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	size, err := zipDir(dir, archive)
	if err != nil {
		return err
	}
	w.Log.Infof("Wrote %d frames to %s (%s)", stack.Len(), archive, humanize.Bytes(uint64(size)))
	return os.RemoveAll(dir)
}

// zipDir archives the contents of dir, directories included, with paths
// relative to dir. It returns the archive size. A failed archive is removed.
func zipDir(dir, archive string) (size int64, err error) {
	f, err := os.Create(archive)
	if err != nil {
		return 0, err
	}
	defer func() {
		f.Close()
		if err != nil {
			os.Remove(archive)
		}
	}()

	zw := zip.NewWriter(f)
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if d.IsDir() {
			hdr.Name += "/"
			_, err = zw.CreateHeader(hdr)
			return err
		}
		hdr.Method = zip.Deflate
		out, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = io.Copy(out, in)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to archive %s: %w", dir, err)
	}
	if err = zw.Close(); err != nil {
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
