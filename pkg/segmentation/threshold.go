// Package segmentation derives label volumes from image volumes: a global
// intensity threshold followed by connected-component labeling, and a
// pixel-wise comparison of two label volumes.
package segmentation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"ctcvolume/internal/models"
)

var (
	ErrUnknownThreshold = errors.New("unknown threshold method")
	ErrTooManyLabels    = errors.New("too many connected components for 16-bit labels")
)

// Threshold names an automatic threshold method.
type Threshold string

const (
	Isodata  Threshold = "isodata"
	Li       Threshold = "li"
	Otsu     Threshold = "otsu"
	Triangle Threshold = "triangle"
	Yen      Threshold = "yen"
)

// thresholdFunc picks a threshold from an intensity histogram where
// hist[v] counts pixels of value v. Pixels strictly above the result are
// foreground.
type thresholdFunc func(hist []float64) int

var methods = map[Threshold]thresholdFunc{
	Isodata:  isodata,
	Li:       li,
	Otsu:     otsu,
	Triangle: triangle,
	Yen:      yen,
}

// Thresholds lists the available methods in name order.
func Thresholds() []Threshold {
	out := make([]Threshold, 0, len(methods))
	for th := range methods {
		out = append(out, th)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseThreshold maps a case-insensitive name to a Threshold.
func ParseThreshold(name string) (Threshold, error) {
	th := Threshold(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := methods[th]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownThreshold, name)
	}
	return th, nil
}

// Compute returns the threshold for hist. A histogram with a single
// occupied bin yields that bin, so nothing is foreground.
func (th Threshold) Compute(hist []float64) (int, error) {
	fn, ok := methods[th]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownThreshold, string(th))
	}
	hist = trim(hist)
	if len(hist) == 0 {
		return 0, nil
	}
	return fn(hist), nil
}

// Histogram counts pixel values over every frame of stack. The result is
// trimmed after the largest value present.
func Histogram(ctx context.Context, stack models.Stack) ([]float64, error) {
	var hist []float64
	for i := 0; i < stack.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := stack.Frame(i)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		if hist == nil {
			hist = make([]float64, int(p.DType.Max())+1)
		}
		for y := 0; y < p.Shape.Height; y++ {
			for x := 0; x < p.Shape.Width; x++ {
				hist[p.At(x, y)]++
			}
		}
	}
	return trim(hist), nil
}

func trim(hist []float64) []float64 {
	n := len(hist)
	for n > 0 && hist[n-1] == 0 {
		n--
	}
	return hist[:n]
}

func binValues(n int) []float64 {
	bins := make([]float64, n)
	for i := range bins {
		bins[i] = float64(i)
	}
	return bins
}

// classMeans returns the mean value at or below t and the mean above t.
// An empty class gives NaN.
func classMeans(bins, hist []float64, t int) (lo, hi float64) {
	if t < 0 {
		t = 0
	}
	if t >= len(hist) {
		t = len(hist) - 1
	}
	lo = stat.Mean(bins[:t+1], hist[:t+1])
	hi = stat.Mean(bins[t+1:], hist[t+1:])
	return lo, hi
}

// otsu maximises the between-class variance.
func otsu(hist []float64) int {
	bins := binValues(len(hist))
	weights := floats.CumSum(make([]float64, len(hist)), hist)
	moments := floats.MulTo(make([]float64, len(hist)), bins, hist)
	floats.CumSum(moments, moments)

	last := len(hist) - 1
	total, totalMoment := weights[last], moments[last]
	best, bestVar := last, -1.0
	for t := 0; t < last; t++ {
		w0 := weights[t]
		w1 := total - w0
		if w0 == 0 || w1 == 0 {
			continue
		}
		d := moments[t]/w0 - (totalMoment-moments[t])/w1
		if v := w0 * w1 * d * d; v > bestVar {
			best, bestVar = t, v
		}
	}
	return best
}

// isodata iterates t = (mean below + mean above) / 2 until it settles.
func isodata(hist []float64) int {
	bins := binValues(len(hist))
	t := int(stat.Mean(bins, hist))
	for range hist {
		lo, hi := classMeans(bins, hist, t)
		if math.IsNaN(lo) || math.IsNaN(hi) {
			break
		}
		next := int((lo + hi) / 2)
		if next == t {
			break
		}
		t = next
	}
	return t
}

// li minimises the cross entropy between the image and its two-level
// approximation (Li & Tam's iteration).
func li(hist []float64) int {
	const tolerance = 0.5
	bins := binValues(len(hist))
	t := stat.Mean(bins, hist)
	for range 1000 {
		lo, hi := classMeans(bins, hist, int(t))
		if math.IsNaN(lo) || math.IsNaN(hi) {
			break
		}
		// Shift by one so a zero background mean has a logarithm.
		b, f := lo+1, hi+1
		next := (f-b)/(math.Log(f)-math.Log(b)) - 1
		done := math.Abs(next-t) < tolerance
		t = next
		if done {
			break
		}
	}
	return int(t)
}

// triangle draws a line from the histogram peak to the far end of the
// occupied range and takes the bin furthest below it.
func triangle(hist []float64) int {
	first := 0
	for hist[first] == 0 {
		first++
	}
	last := len(hist) - 1
	peak := floats.MaxIdx(hist)
	if first == last {
		return first
	}

	end := last
	if peak-first > last-peak {
		end = first
	}
	x1, y1 := float64(peak), hist[peak]
	x2, y2 := float64(end), hist[end]

	best, bestDist := peak, -1.0
	lo, hi := peak, end
	if end < peak {
		lo, hi = end, peak
	}
	for i := lo; i <= hi; i++ {
		d := math.Abs((y2-y1)*float64(i) - (x2-x1)*hist[i] + x2*y1 - y2*x1)
		if d > bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// yen maximises the entropic correlation of the two classes.
func yen(hist []float64) int {
	p := make([]float64, len(hist))
	floats.ScaleTo(p, 1/floats.Sum(hist), hist)

	p1 := floats.CumSum(make([]float64, len(p)), p)
	sq := floats.MulTo(make([]float64, len(p)), p, p)
	p1sq := floats.CumSum(make([]float64, len(p)), sq)
	p2sq := make([]float64, len(p))
	for i := len(p) - 1; i >= 0; i-- {
		p2sq[i] = sq[i]
		if i+1 < len(p) {
			p2sq[i] += p2sq[i+1]
		}
	}

	last := len(hist) - 1
	best, bestCrit := last, math.Inf(-1)
	for t := 0; t < last; t++ {
		a := p1sq[t] * p2sq[t+1]
		b := p1[t] * (1 - p1[t])
		if a <= 0 || b <= 0 {
			continue
		}
		if crit := 2*math.Log(b) - math.Log(a); crit > bestCrit {
			best, bestCrit = t, crit
		}
	}
	return best
}
