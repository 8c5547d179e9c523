package planning

import (
	"slices"

	"github.com/dhconnelly/rtreego"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/georoute/pkg/geometry"
)

// boxPad keeps R-tree rectangles non-degenerate. It only widens the
// candidate set; the exact clearance test still decides.
const boxPad = 1e-9

// indexed is an obstacle stored in the R-tree with its expanded bounds.
type indexed struct {
	order int
	rect  rtreego.Rect
}

func (o *indexed) Bounds() rtreego.Rect { return o.rect }

// obstacleIndex returns the obstacles whose bounds, grown by the clearance
// radius, overlap a segment's bounds.
type obstacleIndex struct {
	tree *rtreego.Rtree
	n    int
}

func newObstacleIndex(obstacles []geometry.Obstacle, radius float64) (*obstacleIndex, error) {
	objs := make([]rtreego.Spatial, 0, len(obstacles))
	for i, o := range obstacles {
		r, err := boxRect(o.GetAxisAlignedBoundingBox().Expand(radius))
		if err != nil {
			return nil, err
		}
		objs = append(objs, &indexed{order: i, rect: r})
	}
	return &obstacleIndex{tree: rtreego.NewTree(3, 2, 8, objs...), n: len(obstacles)}, nil
}

// candidates returns the indexes of obstacles near segment ab, ascending.
// A segment whose bounds do not form a valid rectangle gets every obstacle.
func (x *obstacleIndex) candidates(a, b r3.Vec) []int {
	if x.n == 0 {
		return nil
	}
	r, err := boxRect(geometry.NewAxisAlignedBoundingBox(a, b))
	if err != nil {
		all := make([]int, x.n)
		for i := range all {
			all[i] = i
		}
		return all
	}
	hits := x.tree.SearchIntersect(r)
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.(*indexed).order
	}
	slices.Sort(out)
	return out
}

func boxRect(b geometry.AxisAlignedBoundingBox) (rtreego.Rect, error) {
	p := rtreego.Point{b.MinBound.X - boxPad, b.MinBound.Y - boxPad, b.MinBound.Z - boxPad}
	e := b.GetExtent()
	return rtreego.NewRect(p, []float64{e.X + 2*boxPad, e.Y + 2*boxPad, e.Z + 2*boxPad})
}
