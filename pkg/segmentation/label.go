package segmentation

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"ctcvolume/internal/models"
)

// Label numbers the 4-connected regions of pixels in p whose value is
// above t. Regions are numbered from 1 in raster order of their first
// pixel; background is 0. It returns a uint16 label plane and the region
// count. Only the one plane is considered.
func Label(p *models.Plane, t uint32) (*models.Plane, int, error) {
	w, h := p.Shape.Width, p.Shape.Height
	fg := func(x, y int) bool { return p.At(x, y) > t }

	// Pixel (x, y) is node y*w+x. Nodes are added in raster order, so the
	// left and upper neighbours already exist when an edge is set.
	g := simple.NewUndirectedGraph()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !fg(x, y) {
				continue
			}
			id := int64(y*w + x)
			g.AddNode(simple.Node(id))
			if x > 0 && fg(x-1, y) {
				g.SetEdge(simple.Edge{F: simple.Node(id - 1), T: simple.Node(id)})
			}
			if y > 0 && fg(x, y-1) {
				g.SetEdge(simple.Edge{F: simple.Node(id - int64(w)), T: simple.Node(id)})
			}
		}
	}

	comps := topo.ConnectedComponents(g)
	if len(comps) > int(models.Uint16.Max()) {
		return nil, 0, fmt.Errorf("%w: %d regions", ErrTooManyLabels, len(comps))
	}

	first := make([]int64, len(comps))
	for i, c := range comps {
		first[i] = c[0].ID()
		for _, n := range c[1:] {
			if n.ID() < first[i] {
				first[i] = n.ID()
			}
		}
	}
	order := make([]int, len(comps))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return first[order[a]] < first[order[b]] })

	out := models.NewPlane(p.Shape, models.Uint16)
	for label, ci := range order {
		for _, n := range comps[ci] {
			id := int(n.ID())
			out.Set(id%w, id/w, uint32(label+1))
		}
	}
	return out, len(comps), nil
}
