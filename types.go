// Package synthpop builds and steps a synthetic, census-and-map-derived
// population through an SEIR-with-interventions epidemic model.
package synthpop

import (
	"github.com/ctessum/geom"
	"github.com/segmentio/ksuid"

	"github.com/dsnet-sim/synthpop/census"
	"github.com/dsnet-sim/synthpop/epi"
)

// AreaCode identifies an administrative output area; re-exported from
// census so callers outside this package need only one import for it.
type AreaCode = census.AreaCode

// BuildingKind is the tag distinguishing the three Building variants.
type BuildingKind int

const (
	Household BuildingKind = iota
	Workplace
	PublicTransportKind
)

func (k BuildingKind) String() string {
	switch k {
	case Household:
		return "household"
	case Workplace:
		return "workplace"
	case PublicTransportKind:
		return "public_transport"
	default:
		return "unknown"
	}
}

// BuildingID is (area, kind, a per-area sequence number), stable for
// the lifetime of a simulation.
type BuildingID struct {
	Area AreaCode
	Kind BuildingKind
	Seq  int
}

// CitizenID is a ksuid-backed unique identifier, sortable by creation
// order — the same role ksuid plays for kentwait-contagion's host and
// genotype identifiers.
type CitizenID ksuid.KSUID

// NewCitizenID mints a fresh, time-sortable citizen identifier.
func NewCitizenID() CitizenID { return CitizenID(ksuid.New()) }

func (id CitizenID) String() string { return ksuid.KSUID(id).String() }

// LocationKind distinguishes what a Citizen's current-location tagged
// union points at.
type LocationKind int

const (
	AtBuilding LocationKind = iota
	AtTransport
)

// Location is the tagged union over Building / transient PublicTransport
// that a Citizen's current position is always one of; for AtTransport,
// Building carries the transient vehicle's own BuildingID
// (Kind == PublicTransportKind). A commute occupies exactly the hour it
// is scheduled for: the engine partitions exposure by vehicle occupancy
// during that hour, then settles persisted Location at the destination,
// so AtTransport never needs to survive into the next step's lookup.
type Location struct {
	Kind     LocationKind
	Building BuildingID
}

// Building is polymorphic over {Household, Workplace, PublicTransport}.
// Workplace-only and PublicTransport-only fields are zero/unused on the
// other variants; dispatch on Kind in hot paths rather than via an
// interface, per the redesign note on Building polymorphism.
type Building struct {
	ID        BuildingID
	Location  geom.Point
	Occupants []CitizenID

	// Workplace-only.
	FloorSpaceM2   float64
	OccupationClass census.OccupationClass
	Capacity        int // floor(floor_space / density), minimum 1

	// PublicTransport-only.
	PassengerCapacity int
	FromArea, ToArea  AreaCode
}

// Kind reports the building's variant from its ID.
func (b *Building) Kind() BuildingKind { return b.ID.Kind }

// HasRoom reports whether a Workplace or PublicTransport can accept one
// more occupant; households have no modelled capacity limit.
func (b *Building) HasRoom() bool {
	switch b.Kind() {
	case Workplace:
		return len(b.Occupants) < b.Capacity
	case PublicTransportKind:
		return len(b.Occupants) < b.PassengerCapacity
	default:
		return true
	}
}

// Citizen is a single agent in the simulation.
type Citizen struct {
	ID              CitizenID
	Home            BuildingID
	Workplace       BuildingID
	HasWorkplace    bool
	OccupationClass census.OccupationClass
	Age             int
	StartWorkHour   int
	EndWorkHour     int
	Location        Location
	Status          epi.Status
	Vaccinated      bool
}

// OutputArea is an administrative unit: its polygon, census record,
// buildings, and resident set.
type OutputArea struct {
	Code          AreaCode
	Polygon       geom.Polygon
	Population    *census.PopulationRecord
	Age           *census.AgeRecord
	Occupation    *census.OccupationRecord
	OD            *census.ODRecord
	Buildings     map[BuildingID]*Building
	Residents     []CitizenID
	nextBuildingSeq map[BuildingKind]int
}

// NewBuildingID mints the next sequential BuildingID of the given kind
// within this area.
func (a *OutputArea) NewBuildingID(kind BuildingKind) BuildingID {
	if a.nextBuildingSeq == nil {
		a.nextBuildingSeq = make(map[BuildingKind]int)
	}
	seq := a.nextBuildingSeq[kind]
	a.nextBuildingSeq[kind] = seq + 1
	return BuildingID{Area: a.Code, Kind: kind, Seq: seq}
}

// World is the frozen, post-B5 population: every Citizen and Building
// that exists is created during the builder and never deleted once the
// simulation begins — only disease_status, current_location, and
// occupant lists mutate during the step loop.
type World struct {
	Areas    map[AreaCode]*OutputArea
	Citizens map[CitizenID]*Citizen

	// GridSize is the configured extent of the projected coordinate
	// grid invariant 6 requires every stored polygon's bounds to fit
	// within.
	GridSize int64
}

// Building looks up a Building by ID across all areas.
func (w *World) Building(id BuildingID) (*Building, bool) {
	area, ok := w.Areas[id.Area]
	if !ok {
		return nil, false
	}
	b, ok := area.Buildings[id]
	return b, ok
}
