package synthpop

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dsnet-sim/synthpop/epi"
)

// Statistics is the per-step disease-status tally plus the per-entity
// exposure ledgers the engine accumulates. Every worker thread
// accumulates into its own Statistics during a step; Merge combines
// them via an associative, ordering-independent reduction.
type Statistics struct {
	Step int

	Susceptible int
	Exposed     int
	Infected    int
	Recovered   int
	Vaccinated  int

	// FirstExposedHour/ExposureCount are keyed by BuildingID and
	// OutputAreaID (as a string, via AreaCode) respectively.
	BuildingFirstExposedHour map[BuildingID]int
	BuildingExposureCount    map[BuildingID]int
	AreaFirstExposedHour     map[AreaCode]int
	AreaExposureCount        map[AreaCode]int

	PublicTransportExposures int
}

// NewStatistics returns a zeroed Statistics ready to accumulate.
func NewStatistics(step int) Statistics {
	return Statistics{
		Step:                     step,
		BuildingFirstExposedHour: make(map[BuildingID]int),
		BuildingExposureCount:    make(map[BuildingID]int),
		AreaFirstExposedHour:     make(map[AreaCode]int),
		AreaExposureCount:        make(map[AreaCode]int),
	}
}

// recordStatus tallies one citizen's disease status.
func (s *Statistics) recordStatus(status epi.Status) {
	switch status.Kind {
	case epi.Susceptible:
		s.Susceptible++
	case epi.Exposed:
		s.Exposed++
	case epi.Infected:
		s.Infected++
	case epi.Recovered:
		s.Recovered++
	case epi.Vaccinated:
		s.Vaccinated++
	}
}

// recordExposure records one new exposure at the given building and
// area, tracking the first hour an exposure occurred there. An exposure
// on a public-transport vehicle counts toward the area ledger and
// PublicTransportExposures only; the vehicle's transient BuildingID is
// never used as a building-ledger key.
func (s *Statistics) recordExposure(hour int, building BuildingID, area AreaCode, onPublicTransport bool) {
	if !onPublicTransport {
		if _, ok := s.BuildingFirstExposedHour[building]; !ok {
			s.BuildingFirstExposedHour[building] = hour
		}
		s.BuildingExposureCount[building]++
	}
	if _, ok := s.AreaFirstExposedHour[area]; !ok {
		s.AreaFirstExposedHour[area] = hour
	}
	s.AreaExposureCount[area]++
	if onPublicTransport {
		s.PublicTransportExposures++
	}
}

// Merge combines other into s: counts add, and per-entity first-exposure
// maps keep the earliest hour recorded by either side. This is the
// associative combine the per-step reduction applies across worker
// partials.
func (s *Statistics) Merge(other Statistics) {
	s.Susceptible += other.Susceptible
	s.Exposed += other.Exposed
	s.Infected += other.Infected
	s.Recovered += other.Recovered
	s.Vaccinated += other.Vaccinated
	s.PublicTransportExposures += other.PublicTransportExposures

	for id, hour := range other.BuildingFirstExposedHour {
		if existing, ok := s.BuildingFirstExposedHour[id]; !ok || hour < existing {
			s.BuildingFirstExposedHour[id] = hour
		}
	}
	for id, n := range other.BuildingExposureCount {
		s.BuildingExposureCount[id] += n
	}
	for code, hour := range other.AreaFirstExposedHour {
		if existing, ok := s.AreaFirstExposedHour[code]; !ok || hour < existing {
			s.AreaFirstExposedHour[code] = hour
		}
	}
	for code, n := range other.AreaExposureCount {
		s.AreaExposureCount[code] += n
	}
}

// Total returns the sum of all status counts, which data-model
// invariant 5 requires to equal the population at every step.
func (s Statistics) Total() int {
	return s.Susceptible + s.Exposed + s.Infected + s.Recovered + s.Vaccinated
}

// InfectedFraction returns infected / total, the quantity the
// intervention policy consults each step. Returns 0 for an empty world.
func (s Statistics) InfectedFraction() float64 {
	total := s.Total()
	if total == 0 {
		return 0
	}
	return float64(s.Infected) / float64(total)
}

// CSVHeader is the column header for WriteCSVRow's output, matching the
// persisted-state shape in the external interfaces list.
var CSVHeader = []string{"step", "susceptible", "exposed", "infected", "recovered", "vaccinated", "total"}

// WriteCSVRow appends one CSV row for this step's global counts.
func WriteCSVRow(w *csv.Writer, s Statistics) error {
	return w.Write([]string{
		fmt.Sprint(s.Step),
		fmt.Sprint(s.Susceptible),
		fmt.Sprint(s.Exposed),
		fmt.Sprint(s.Infected),
		fmt.Sprint(s.Recovered),
		fmt.Sprint(s.Vaccinated),
		fmt.Sprint(s.Total()),
	})
}

// WritePerAreaCSVRows appends one CSV row per OutputArea covered by
// s's exposure ledgers, behind config.Output.PerAreaBreakdown — the
// richer per-area summary the original implementation's statistics
// module carries that the core spec.md tables don't surface on their own.
func WritePerAreaCSVRows(w *csv.Writer, s Statistics) error {
	for code, count := range s.AreaExposureCount {
		if err := w.Write([]string{
			fmt.Sprint(s.Step),
			string(code),
			fmt.Sprint(count),
			fmt.Sprint(s.AreaFirstExposedHour[code]),
		}); err != nil {
			return err
		}
	}
	return nil
}

// NewCSVWriter is a thin helper so callers don't need to import
// encoding/csv themselves just to flush a writer.
func NewCSVWriter(w io.Writer) *csv.Writer { return csv.NewWriter(w) }
