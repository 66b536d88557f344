package spatialindex

import (
	"sort"

	"github.com/ctessum/geom"
)

// Voronoi is a planar partition assigning every point in a bounding grid
// to the index of its nearest seed. Cells are approximated by rasterizing
// the grid at Resolution samples per axis and hulling each seed's
// assigned samples into a polygon; cells with fewer than three distinct
// samples are degenerate and are not stored. FindSeedForPoint does not
// use the cells: it always runs a k-nearest query over the seed points.
type Voronoi struct {
	seeds      []geom.Point
	gridSize   int64
	cells      *Container[int]
	seedIndex  *Quadtree[int, int64]
}

// DefaultResolution is the number of samples per axis used to rasterize
// the partition when the caller doesn't need finer cell boundaries.
const DefaultResolution = 128

// NewVoronoi builds a partition over [0, gridSize]^2 from seeds (already
// scaled into that box) sampled at resolution samples per axis.
func NewVoronoi(seeds []geom.Point, gridSize int64, resolution int) *Voronoi {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	v := &Voronoi{
		seeds:     seeds,
		gridSize:  gridSize,
		cells:     NewContainer[int](gridSize, Identity),
		seedIndex: New[int, int64](Rect[int64]{Min: Point[int64]{0, 0}, Max: Point[int64]{gridSize, gridSize}}, 4, 50),
	}
	for i, s := range seeds {
		p := Point[int64]{X: int64(s.X), Y: int64(s.Y)}
		_ = v.seedIndex.Insert(i, Rect[int64]{Min: p, Max: p})
	}
	v.rasterize(resolution)
	return v
}

// rasterize assigns each raster sample point to its nearest seed, then
// stores the clipped convex hull of each seed's samples as its cell.
func (v *Voronoi) rasterize(resolution int) {
	step := float64(v.gridSize) / float64(resolution)
	assigned := make(map[int][]geom.Point)
	for i := 0; i <= resolution; i++ {
		x := float64(i) * step
		for j := 0; j <= resolution; j++ {
			y := float64(j) * step
			seed := v.nearestSeedBrute(x, y)
			if seed < 0 {
				continue
			}
			assigned[seed] = append(assigned[seed], geom.Point{X: x, Y: y})
		}
	}
	box := boxPolygon(0, 0, float64(v.gridSize))
	for seed, pts := range assigned {
		hull := convexHull(pts)
		if len(hull) < 3 {
			continue // degenerate cell: resolved later by nearest-seed fallback
		}
		ring := append(append([]geom.Point{}, hull...), hull[0])
		poly := geom.Polygon{ring}
		clipped := poly.Intersection(box)
		if len(clipped) == 0 {
			continue
		}
		_ = v.cells.Insert(seed, clipped)
	}
}

func (v *Voronoi) nearestSeedBrute(x, y float64) int {
	best := -1
	bestDist := -1.0
	for i, s := range v.seeds {
		dx := s.X - x
		dy := s.Y - y
		d := dx*dx + dy*dy
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func boxPolygon(x0, y0, size float64) geom.Polygon {
	return geom.Polygon{{
		{X: x0, Y: y0}, {X: x0 + size, Y: y0}, {X: x0 + size, Y: y0 + size}, {X: x0, Y: y0 + size}, {X: x0, Y: y0},
	}}
}

// FindSeedForPoint returns the index of the seed closest to p (Manhattan
// distance, consistently with the quadtree's own distance metric). This
// is always exact: it queries the seed quadtree directly rather than
// trusting the rasterized cell polygons, which are an approximation of
// the true partition and are only used by FindSeedsForPoint.
func (v *Voronoi) FindSeedForPoint(x, y float64) int {
	p := Point[int64]{X: int64(x), Y: int64(y)}
	nearest := v.seedIndex.QueryKNearest(Rect[int64]{Min: p, Max: p}, 1)
	if len(nearest) > 0 {
		return nearest[0].Value
	}
	return -1
}

// FindSeedsForPoint returns the indices of every seed whose stored
// cell's bounding box contains p (seeds with degenerate cells are never
// returned) —
// candidates for callers that want to pick probabilistically among
// several nearby seeds rather than take the single nearest.
func (v *Voronoi) FindSeedsForPoint(x, y float64) []int {
	p := Point[int64]{X: int64(x), Y: int64(y)}
	return v.cells.tree.Query(Rect[int64]{Min: p, Max: p})
}

// convexHull returns the vertices of the convex hull of pts in
// counter-clockwise order, via Andrew's monotone chain algorithm.
// Duplicate points are removed; fewer than 3 distinct points yields a
// hull of length < 3, signaling a degenerate cell to the caller.
func convexHull(pts []geom.Point) []geom.Point {
	uniq := dedupe(pts)
	if len(uniq) < 3 {
		return uniq
	}
	sort.Slice(uniq, func(i, j int) bool {
		if uniq[i].X != uniq[j].X {
			return uniq[i].X < uniq[j].X
		}
		return uniq[i].Y < uniq[j].Y
	})
	cross := func(o, a, b geom.Point) float64 {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}
	lower := make([]geom.Point, 0, len(uniq))
	for _, p := range uniq {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}
	upper := make([]geom.Point, 0, len(uniq))
	for i := len(uniq) - 1; i >= 0; i-- {
		p := uniq[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}
	return append(lower[:len(lower)-1], upper[:len(upper)-1]...)
}

func dedupe(pts []geom.Point) []geom.Point {
	seen := make(map[geom.Point]bool, len(pts))
	out := make([]geom.Point, 0, len(pts))
	for _, p := range pts {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
