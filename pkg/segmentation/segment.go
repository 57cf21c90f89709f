package segmentation

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"ctcvolume/internal/models"
	"ctcvolume/pkg/logging"
	"ctcvolume/pkg/volume"
)

// DiffLayerName is the name of the layer HighlightDiff returns.
const DiffLayerName = "seg_gt_diff"

// Segmenter runs segmentation over stacks.
type Segmenter struct {
	// Workers bounds how many frames are processed at once; < 1 means
	// unbounded.
	Workers int

	Log *logging.Logger
}

// SegmentByThreshold runs a zero-value Segmenter.
func SegmentByThreshold(ctx context.Context, stack models.Stack, th Threshold, name string) (*volume.Volume, error) {
	return (&Segmenter{}).SegmentByThreshold(ctx, stack, th, name)
}

// HighlightDiff runs a zero-value Segmenter.
func HighlightDiff(ctx context.Context, truth, seg models.Stack) (*volume.Volume, error) {
	return (&Segmenter{}).HighlightDiff(ctx, truth, seg)
}

// SegmentByThreshold picks one threshold from the histogram of the whole
// stack, then labels the foreground of each frame separately. The result is
// an in-memory labels volume called "<name>_seg".
//
// Labels are per frame: numbering restarts at 1 in every frame and regions
// are not connected across time, so the same label in two frames does not
// mean the same object.
func (s *Segmenter) SegmentByThreshold(ctx context.Context, stack models.Stack, th Threshold, name string) (*volume.Volume, error) {
	if stack.Len() == 0 {
		return nil, volume.ErrEmptyInput
	}
	hist, err := Histogram(ctx, stack)
	if err != nil {
		return nil, err
	}
	t, err := th.Compute(hist)
	if err != nil {
		return nil, err
	}
	s.Log.Infof("%s threshold for %s: %d", th, name, t)

	out := make([]*models.Plane, stack.Len())
	counts := make([]int, stack.Len())
	err = s.eachFrame(ctx, stack.Len(), func(i int) error {
		p, err := stack.Frame(i)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		labels, n, err := Label(p, uint32(t))
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		out[i], counts[i] = labels, n
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, n := range counts {
		s.Log.Debugf("Frame %d: %d regions", i, n)
	}
	return volume.FromPlanes(models.LayerLabels, name+"_seg", out)
}

// HighlightDiff marks with 1 every pixel that is foreground in exactly one
// of truth and seg. Frames without any ground-truth foreground are left
// blank, since they were never annotated.
func (s *Segmenter) HighlightDiff(ctx context.Context, truth, seg models.Stack) (*volume.Volume, error) {
	if truth.Len() == 0 {
		return nil, volume.ErrEmptyInput
	}
	if truth.Len() != seg.Len() {
		return nil, fmt.Errorf("%w: %d ground-truth frames, %d segmented", volume.ErrShapeMismatch, truth.Len(), seg.Len())
	}

	out := make([]*models.Plane, truth.Len())
	diffs := make([]int, truth.Len())
	err := s.eachFrame(ctx, truth.Len(), func(i int) error {
		gt, err := truth.Frame(i)
		if err != nil {
			return fmt.Errorf("ground truth frame %d: %w", i, err)
		}
		sp, err := seg.Frame(i)
		if err != nil {
			return fmt.Errorf("segmentation frame %d: %w", i, err)
		}
		if gt.Shape != sp.Shape {
			return fmt.Errorf("%w: frame %d is %s vs %s", volume.ErrShapeMismatch, i, gt.Shape, sp.Shape)
		}
		out[i], diffs[i] = diffPlane(gt, sp)
		return nil
	})
	if err != nil {
		return nil, err
	}

	total := 0
	for _, n := range diffs {
		total += n
	}
	s.Log.Infof("%d pixels differ over %d frames", total, len(diffs))
	return volume.FromPlanes(models.LayerLabels, DiffLayerName, out)
}

func diffPlane(gt, seg *models.Plane) (*models.Plane, int) {
	out := models.NewPlane(gt.Shape, models.Uint8)
	annotated := false
	for i := range gt.Pix {
		if gt.Pix[i] != 0 {
			annotated = true
			break
		}
	}
	if !annotated {
		return out, 0
	}

	n := 0
	for y := 0; y < gt.Shape.Height; y++ {
		for x := 0; x < gt.Shape.Width; x++ {
			if (gt.At(x, y) != 0) != (seg.At(x, y) != 0) {
				out.Set(x, y, 1)
				n++
			}
		}
	}
	return out, n
}

func (s *Segmenter) eachFrame(ctx context.Context, n int, fn func(i int) error) error {
	g, ctx := errgroup.WithContext(ctx)
	if s.Workers > 0 {
		g.SetLimit(s.Workers)
	}
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(i)
		})
	}
	return g.Wait()
}
