package spatialindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuadtreeInsertAndQuery(t *testing.T) {
	bounds := Rect[int]{Min: Point[int]{0, 0}, Max: Point[int]{1000, 1000}}
	q := New[string, int](bounds, 2, 4)

	require.NoError(t, q.Insert("a", Rect[int]{Point[int]{10, 10}, Point[int]{20, 20}}))
	require.NoError(t, q.Insert("b", Rect[int]{Point[int]{500, 500}, Point[int]{510, 510}}))
	require.NoError(t, q.Insert("c", Rect[int]{Point[int]{15, 15}, Point[int]{25, 25}}))

	got := q.Query(Rect[int]{Point[int]{0, 0}, Point[int]{30, 30}})
	assert.ElementsMatch(t, []string{"a", "c"}, got)

	got = q.Query(Rect[int]{Point[int]{490, 490}, Point[int]{520, 520}})
	assert.ElementsMatch(t, []string{"b"}, got)
}

func TestQuadtreeInsertRejectsOutOfBounds(t *testing.T) {
	bounds := Rect[int]{Min: Point[int]{0, 0}, Max: Point[int]{100, 100}}
	q := New[string, int](bounds, 1, 10)

	err := q.Insert("x", Rect[int]{Point[int]{200, 200}, Point[int]{300, 300}})
	var oob OutOfBoundsError[int]
	require.ErrorAs(t, err, &oob)
	assert.Empty(t, q.Query(bounds))
}

func TestQuadtreePromotesOverflowingLeaf(t *testing.T) {
	bounds := Rect[int]{Min: Point[int]{0, 0}, Max: Point[int]{1000, 1000}}
	q := New[int, int](bounds, 0, 2)

	for i := 0; i < 20; i++ {
		x := (i * 37) % 900
		y := (i * 53) % 900
		require.NoError(t, q.Insert(i, Rect[int]{Point[int]{x, y}, Point[int]{x + 1, y + 1}}))
	}
	assert.NotNil(t, q.children, "leaf should have promoted to children after overflow")
	assert.Len(t, q.Query(bounds), 20)
}

func TestQuadtreeQueryDegenerateRectPromotedTo1x1(t *testing.T) {
	bounds := Rect[int]{Min: Point[int]{0, 0}, Max: Point[int]{100, 100}}
	q := New[string, int](bounds, 1, 10)
	require.NoError(t, q.Insert("p", Rect[int]{Point[int]{5, 5}, Point[int]{6, 6}}))

	got := q.Query(Rect[int]{Point[int]{5, 5}, Point[int]{5, 5}})
	assert.Equal(t, []string{"p"}, got)
}

func TestQuadtreeKNearestOrdering(t *testing.T) {
	bounds := Rect[int]{Min: Point[int]{0, 0}, Max: Point[int]{1000, 1000}}
	q := New[string, int](bounds, 2, 4)

	require.NoError(t, q.Insert("near", Rect[int]{Point[int]{100, 100}, Point[int]{101, 101}}))
	require.NoError(t, q.Insert("mid", Rect[int]{Point[int]{200, 200}, Point[int]{201, 201}}))
	require.NoError(t, q.Insert("far", Rect[int]{Point[int]{900, 900}, Point[int]{901, 901}}))

	res := q.QueryKNearest(Rect[int]{Point[int]{100, 100}, Point[int]{100, 100}}, 2)
	require.Len(t, res, 2)
	assert.Equal(t, "near", res[0].Value)
	assert.Equal(t, "mid", res[1].Value)
	assert.LessOrEqual(t, res[0].Distance, res[1].Distance)
}

func TestQuadtreeKNearestCapsAtK(t *testing.T) {
	bounds := Rect[int]{Min: Point[int]{0, 0}, Max: Point[int]{1000, 1000}}
	q := New[int, int](bounds, 1, 50)
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Insert(i, Rect[int]{Point[int]{i * 10, i * 10}, Point[int]{i*10 + 1, i*10 + 1}}))
	}
	res := q.QueryKNearest(Rect[int]{Point[int]{0, 0}, Point[int]{0, 0}}, 3)
	assert.Len(t, res, 3)
}
