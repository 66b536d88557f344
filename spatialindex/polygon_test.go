package spatialindex

import (
	"math/rand"
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(x0, y0, size float64) geom.Polygon {
	return geom.Polygon{{
		{X: x0, Y: y0},
		{X: x0 + size, Y: y0},
		{X: x0 + size, Y: y0 + size},
		{X: x0, Y: y0 + size},
		{X: x0, Y: y0},
	}}
}

func TestContainerFindPolygonForPoint(t *testing.T) {
	c := NewContainer[string](1000, Identity)
	require.NoError(t, c.Insert("A", square(0, 0, 100)))
	require.NoError(t, c.Insert("B", square(500, 500, 100)))

	id, err := c.FindPolygonForPoint(50, 50)
	require.NoError(t, err)
	assert.Equal(t, "A", id)

	id, err = c.FindPolygonForPoint(550, 550)
	require.NoError(t, err)
	assert.Equal(t, "B", id)
}

func TestContainerFindPolygonForPointNotFound(t *testing.T) {
	c := NewContainer[string](1000, Identity)
	require.NoError(t, c.Insert("A", square(0, 0, 100)))

	_, err := c.FindPolygonForPoint(900, 900)
	var nf NotFoundError[string]
	require.ErrorAs(t, err, &nf)
}

// TestContainerContainmentRoundTrip is property 8.1: sampled points
// inside a polygon's bounding box that lie in the polygon resolve back
// to that polygon's id.
func TestContainerContainmentRoundTrip(t *testing.T) {
	c := NewContainer[string](10000, Identity)
	polys := map[string]geom.Polygon{
		"A": square(0, 0, 200),
		"B": square(3000, 3000, 500),
		"C": square(8000, 1000, 300),
	}
	for id, p := range polys {
		require.NoError(t, c.Insert(id, p))
	}

	rng := rand.New(rand.NewSource(1))
	for id, p := range polys {
		b := p.Bounds()
		for i := 0; i < 200; i++ {
			x := b.Min.X + rng.Float64()*(b.Max.X-b.Min.X)
			y := b.Min.Y + rng.Float64()*(b.Max.Y-b.Min.Y)
			got, err := c.FindPolygonForPoint(x, y)
			require.NoError(t, err)
			assert.Equal(t, id, got)
		}
	}
}

func TestContainerInsertRejectsOutOfBounds(t *testing.T) {
	c := NewContainer[string](100, Identity)
	err := c.Insert("X", square(500, 500, 50))
	var oob OutOfBoundsError[int64]
	require.ErrorAs(t, err, &oob)
	_, ok := c.Polygon("X")
	assert.False(t, ok, "rejected insert must leave the container unchanged")
}

func TestContainerFindPolygonsContainingPolygon(t *testing.T) {
	c := NewContainer[string](1000, Identity)
	require.NoError(t, c.Insert("A", square(0, 0, 100)))
	require.NoError(t, c.Insert("B", square(90, 90, 100)))
	require.NoError(t, c.Insert("C", square(800, 800, 100)))

	ids := c.FindPolygonsContainingPolygon(square(50, 50, 60))
	assert.ElementsMatch(t, []string{"A", "B"}, ids)
}
