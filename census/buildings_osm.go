package census

import (
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/ctessum/geom"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/qedus/osmpbf"
)

// LoadOSMBuildings extracts building ways from an OSM PBF extract,
// classifying each by the tag fallthrough table in external interface
// item 6. It runs the node-collect-then-way-resolve two-pass scan: OSM
// ways reference node IDs that may appear anywhere else in the file, so
// node coordinates must all be known before a way's polygon can be
// assembled.
func LoadOSMBuildings(filename string) ([]RawBuilding, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "census: opening OSM extract %s", filename)
	}
	defer f.Close()

	nodes := make(map[int64]orb.Point)
	dec := osmpbf.NewDecoder(f)
	if err := dec.Start(runtime.GOMAXPROCS(-1)); err != nil {
		return nil, errors.Wrap(err, "census: starting OSM decoder (node pass)")
	}
	for {
		obj, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "census: decoding OSM node pass")
		}
		if node, ok := obj.(*osmpbf.Node); ok {
			nodes[node.ID] = orb.Point{node.Lon, node.Lat}
		}
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "census: rewinding OSM extract")
	}

	var out []RawBuilding
	dec = osmpbf.NewDecoder(f)
	if err := dec.Start(runtime.GOMAXPROCS(-1)); err != nil {
		return nil, errors.Wrap(err, "census: starting OSM decoder (way pass)")
	}
	for {
		obj, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "census: decoding OSM way pass")
		}
		way, ok := obj.(*osmpbf.Way)
		if !ok {
			continue
		}
		b, ok := buildingFromWay(way, nodes)
		if ok {
			out = append(out, b)
		}
	}
	return out, nil
}

// buildingFromWay assembles a way's polygon from its node IDs and
// classifies it per the tag table. Ways with fewer than three resolvable
// nodes, or no building/amenity/shop tag at all, are skipped.
func buildingFromWay(way *osmpbf.Way, nodes map[int64]orb.Point) (RawBuilding, bool) {
	tag, ok := classifyTags(way.Tags)
	if !ok {
		return RawBuilding{}, false
	}

	ring := make(orb.Ring, 0, len(way.NodeIDs))
	for _, id := range way.NodeIDs {
		if p, ok := nodes[id]; ok {
			ring = append(ring, p)
		}
	}
	if len(ring) < 3 {
		return RawBuilding{}, false
	}
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	footprint := orbRingToGeomPolygon(ring)

	return RawBuilding{
		OSMID:     way.ID,
		Tag:       tag,
		Centroid:  footprint.Centroid(),
		Footprint: footprint,
		AreaM2:    footprint.Area(),
	}, true
}

// orbRingToGeomPolygon converts a ring of orb.Point (lon/lat, as decoded
// from the OSM extract) into a geom.Polygon, the coordinate type used
// throughout the rest of census and spatialindex.
func orbRingToGeomPolygon(ring orb.Ring) geom.Polygon {
	pts := make([]geom.Point, len(ring))
	for i, p := range ring {
		pts[i] = geom.Point{X: p[0], Y: p[1]}
	}
	return geom.Polygon{pts}
}

var workplaceBuildingValues = map[string]bool{
	"office": true, "industrial": true, "commercial": true,
	"retail": true, "warehouse": true, "civic": true, "public": true,
}

var householdBuildingValues = map[string]bool{
	"house": true, "detached": true, "semidetached_house": true,
	"farm": true, "hut": true, "static_caravan": true, "cabin": true,
	"apartments": true, "terrace": true, "residential": true,
}

// classifyTags implements the exact tag fallthrough rule from the
// external interface: amenity=school|hospital and shop=* classify
// directly; building values split into Workplace/Household sets with
// any other building value falling through to Workplace. A way with
// none of these tags is not a building at all.
func classifyTags(tags map[string]string) (BuildingTag, bool) {
	if amenity, ok := tags["amenity"]; ok {
		switch amenity {
		case "school":
			return TagSchool, true
		case "hospital":
			return TagHospital, true
		}
	}
	if _, ok := tags["shop"]; ok {
		return TagShop, true
	}
	building, ok := tags["building"]
	if !ok || building == "" || building == "no" {
		return TagUnknown, false
	}
	if householdBuildingValues[strings.ToLower(building)] {
		return TagHousehold, true
	}
	if workplaceBuildingValues[strings.ToLower(building)] {
		return TagWorkplace, true
	}
	return TagWorkplace, true // fallthrough
}
