// Package census loads the per-output-area census tables and the
// classified building extract that the world builder joins together,
// and exposes weighted samplers over the resulting distributions.
package census

import "github.com/ctessum/geom"

// AreaCode is the opaque administrative-unit code census tables and
// the output-area shapefile are keyed by.
type AreaCode string

// OccupationClass is the nine-way categorical encoding of a citizen's
// job type, used to look up workplace floor-area density.
type OccupationClass int

const (
	OccManagers OccupationClass = iota
	OccProfessional
	OccTechnical
	OccAdmin
	OccSkilledTrades
	OccCaring
	OccSales
	OccPlantOperatives
	OccElementary
	numOccupationClasses
)

var occupationClassNames = [numOccupationClasses]string{
	OccManagers:        "managers, directors and senior officials",
	OccProfessional:    "professional occupations",
	OccTechnical:       "associate professional and technical occupations",
	OccAdmin:           "administrative and secretarial occupations",
	OccSkilledTrades:   "skilled trades occupations",
	OccCaring:          "caring, leisure and other service occupations",
	OccSales:           "sales and customer service occupations",
	OccPlantOperatives: "process, plant and machine operatives",
	OccElementary:      "elementary occupations",
}

func (o OccupationClass) String() string {
	if o < 0 || int(o) >= len(occupationClassNames) {
		return "unknown"
	}
	return occupationClassNames[o]
}

// DefaultDensity is the floor area in square meters needed per worker
// of each occupation class, used to compute workplace capacity. Values
// are illustrative defaults in the absence of a calibrated source; they
// are not read from Config.
var DefaultDensity = [numOccupationClasses]float64{
	OccManagers:        12,
	OccProfessional:    11,
	OccTechnical:       11,
	OccAdmin:           10,
	OccSkilledTrades:   20,
	OccCaring:          15,
	OccSales:           19,
	OccPlantOperatives: 25,
	OccElementary:      18,
}

// BuildingTag classifies a raw mapped structure.
type BuildingTag int

const (
	TagUnknown BuildingTag = iota
	TagShop
	TagSchool
	TagHospital
	TagHousehold
	TagWorkplace
)

func (t BuildingTag) String() string {
	switch t {
	case TagShop:
		return "shop"
	case TagSchool:
		return "school"
	case TagHospital:
		return "hospital"
	case TagHousehold:
		return "household"
	case TagWorkplace:
		return "workplace"
	default:
		return "unknown"
	}
}

// RawBuilding is a single mapped structure before it is assigned to an
// output area and packed into the world.
type RawBuilding struct {
	OSMID     int64
	Tag       BuildingTag
	Centroid  geom.Point
	Footprint geom.Polygon
	AreaM2    float64
}
