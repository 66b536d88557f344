package census

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/qedus/osmpbf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyTags(t *testing.T) {
	cases := []struct {
		name string
		tags map[string]string
		want BuildingTag
		ok   bool
	}{
		{"amenity school", map[string]string{"amenity": "school"}, TagSchool, true},
		{"amenity hospital", map[string]string{"amenity": "hospital"}, TagHospital, true},
		{"amenity other falls through to building check", map[string]string{"amenity": "cafe"}, TagUnknown, false},
		{"shop any value", map[string]string{"shop": "bakery"}, TagShop, true},
		{"shop empty value still counts", map[string]string{"shop": ""}, TagShop, true},
		{"building house", map[string]string{"building": "house"}, TagHousehold, true},
		{"building apartments", map[string]string{"building": "apartments"}, TagHousehold, true},
		{"building office", map[string]string{"building": "office"}, TagWorkplace, true},
		{"building warehouse", map[string]string{"building": "warehouse"}, TagWorkplace, true},
		{"building unrecognized falls through to workplace", map[string]string{"building": "yes"}, TagWorkplace, true},
		{"building case-insensitive", map[string]string{"building": "HOUSE"}, TagHousehold, true},
		{"building no", map[string]string{"building": "no"}, TagUnknown, false},
		{"building empty string", map[string]string{"building": ""}, TagUnknown, false},
		{"no relevant tags", map[string]string{"highway": "residential"}, TagUnknown, false},
		{"no tags at all", map[string]string{}, TagUnknown, false},
		{"amenity takes priority over building", map[string]string{"amenity": "hospital", "building": "house"}, TagHospital, true},
		{"shop takes priority over building", map[string]string{"shop": "convenience", "building": "office"}, TagShop, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tag, ok := classifyTags(c.tags)
			assert.Equal(t, c.ok, ok)
			if c.ok {
				assert.Equal(t, c.want, tag)
			}
		})
	}
}

func TestBuildingFromWay(t *testing.T) {
	nodes := map[int64]orb.Point{
		1: {-1.0, 51.0},
		2: {-1.0, 51.001},
		3: {-0.999, 51.001},
		4: {-0.999, 51.0},
	}

	way := &osmpbf.Way{
		ID:      1001,
		Tags:    map[string]string{"building": "house"},
		NodeIDs: []int64{1, 2, 3, 4, 1},
	}

	b, ok := buildingFromWay(way, nodes)
	require.True(t, ok)
	assert.Equal(t, int64(1001), b.OSMID)
	assert.Equal(t, TagHousehold, b.Tag)
	assert.Greater(t, b.AreaM2, 0.0)
}

func TestBuildingFromWayUnresolvableNodesSkipped(t *testing.T) {
	nodes := map[int64]orb.Point{
		1: {-1.0, 51.0},
		2: {-1.0, 51.001},
	}

	way := &osmpbf.Way{
		ID:      1002,
		Tags:    map[string]string{"building": "office"},
		NodeIDs: []int64{1, 2, 99, 100},
	}

	_, ok := buildingFromWay(way, nodes)
	assert.False(t, ok, "fewer than three resolvable nodes should be rejected")
}

func TestBuildingFromWayNoRelevantTags(t *testing.T) {
	nodes := map[int64]orb.Point{
		1: {-1.0, 51.0},
		2: {-1.0, 51.001},
		3: {-0.999, 51.001},
	}

	way := &osmpbf.Way{
		ID:      1003,
		Tags:    map[string]string{"highway": "residential"},
		NodeIDs: []int64{1, 2, 3},
	}

	_, ok := buildingFromWay(way, nodes)
	assert.False(t, ok)
}
