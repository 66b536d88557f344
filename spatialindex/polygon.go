package spatialindex

import (
	"fmt"

	"github.com/ctessum/geom"
)

// NotFoundError is returned when no polygon in a container contains the
// queried point.
type NotFoundError[ID comparable] struct {
	Point Point[int64]
}

func (e NotFoundError[ID]) Error() string {
	return fmt.Sprintf("spatialindex: no polygon contains point %+v", e.Point)
}

// Scale converts world-coordinate inputs into the container's integer
// grid via an offset and divisor per axis: grid = (world - offset) / divisor.
type Scale struct {
	OffsetX, OffsetY   float64
	DivisorX, DivisorY float64
}

func (s Scale) apply(x, y float64) Point[int64] {
	dx, dy := s.DivisorX, s.DivisorY
	if dx == 0 {
		dx = 1
	}
	if dy == 0 {
		dy = 1
	}
	return Point[int64]{
		X: int64((x - s.OffsetX) / dx),
		Y: int64((y - s.OffsetY) / dy),
	}
}

// Identity is the no-op scale: grid coordinates equal world coordinates.
var Identity = Scale{DivisorX: 1, DivisorY: 1}

// Container maps polygon IDs to geom.Polygons, backed by a quadtree
// keyed on each polygon's bounding rectangle. The quadtree is a
// prefilter only; exact containment is tested against the polygon
// geometry itself.
type Container[ID comparable] struct {
	scale   Scale
	tree    *Quadtree[ID, int64]
	bounds  Rect[int64]
	byID    map[ID]geom.Polygon
}

// NewContainer builds an empty container over the given grid extent,
// using scale to down-sample world-coordinate inputs into the grid.
func NewContainer[ID comparable](gridSize int64, scale Scale) *Container[ID] {
	bounds := Rect[int64]{Min: Point[int64]{0, 0}, Max: Point[int64]{gridSize, gridSize}}
	return &Container[ID]{
		scale:  scale,
		tree:   New[ID, int64](bounds, 4, 50),
		bounds: bounds,
		byID:   make(map[ID]geom.Polygon),
	}
}

// Insert adds a polygon under id. It fails with an OutOfBoundsError if
// the polygon's bounding rectangle, once scaled, lies wholly outside the
// container's grid extent.
func (c *Container[ID]) Insert(id ID, poly geom.Polygon) error {
	r := c.rectOf(poly)
	if err := c.tree.Insert(id, r); err != nil {
		return err
	}
	c.byID[id] = poly
	return nil
}

func (c *Container[ID]) rectOf(poly geom.Polygon) Rect[int64] {
	b := poly.Bounds()
	min := c.scale.apply(b.Min.X, b.Min.Y)
	max := c.scale.apply(b.Max.X, b.Max.Y)
	return NewRect(min, max)
}

// FindPolygonForPoint returns the id of a polygon containing p. If
// multiple candidate polygons overlap at p, any one of them may be
// returned — ties are not disambiguated, per spec. Fails with
// NotFoundError if no polygon contains p.
func (c *Container[ID]) FindPolygonForPoint(worldX, worldY float64) (ID, error) {
	gp := c.scale.apply(worldX, worldY)
	candidates := c.tree.Query(Rect[int64]{Min: gp, Max: gp})
	gpt := geom.Point{X: worldX, Y: worldY}
	for _, id := range candidates {
		poly := c.byID[id]
		if gpt.Within(poly) != geom.Outside {
			return id, nil
		}
	}
	var zero ID
	return zero, NotFoundError[ID]{Point: gp}
}

// FindPolygonsContainingPolygon returns the ids whose bounding
// rectangles intersect q's bounding rectangle. This is a bounding-box
// test only, matching the teacher's build-time prefilter use.
func (c *Container[ID]) FindPolygonsContainingPolygon(q geom.Polygon) []ID {
	r := c.rectOf(q)
	return c.tree.Query(r)
}

// Polygon returns the stored polygon for id, if any.
func (c *Container[ID]) Polygon(id ID) (geom.Polygon, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Bounds returns the container's configured grid extent.
func (c *Container[ID]) Bounds() Rect[int64] { return c.bounds }
