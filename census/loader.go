package census

import (
	"io"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Inputs bundles the readers and file paths for the five source tables
// named in the external interfaces list: population/density, age
// structure, occupation counts, the residence→workplace OD matrix, and
// the output-area boundary shapefile. The OSM building extract is
// loaded separately by the caller since it isn't part of the five-way
// join below.
type Inputs struct {
	Population io.Reader
	Age        io.Reader
	Occupation io.Reader
	OD         io.Reader
	ShapeFile  string // passed without .shp suffix, per LoadOutputAreaShapefile
}

// Tables holds the joined, filtered census tables: one entry per output
// area that appears in all four CSV tables and the shapefile.
// Areas missing from any source are dropped and logged, per the
// per-area error-recovery policy in the error handling design.
type Tables struct {
	Population map[AreaCode]*PopulationRecord
	Age        map[AreaCode]*AgeRecord
	Occupation map[AreaCode]*OccupationRecord
	OD         map[AreaCode]*ODRecord
	Shapes     map[AreaCode]OutputAreaPolygon
	Codes      []AreaCode // stable, sorted join result
}

// Load reads the four census tables and the output-area shapefile
// concurrently, then joins them on AreaCode, keeping only areas present
// in all five. It never returns a partial Tables: if every area is
// dropped because no area survives the join, that is a pipeline-fatal
// condition the caller must check for (len(Codes) == 0).
func Load(in Inputs, log *logrus.Logger) (*Tables, error) {
	var (
		wg                                       sync.WaitGroup
		population                               map[AreaCode]*PopulationRecord
		age                                       map[AreaCode]*AgeRecord
		occupation                               map[AreaCode]*OccupationRecord
		od                                        map[AreaCode]*ODRecord
		shapes                                    []OutputAreaPolygon
		popErr, ageErr, occErr, odErr, shapeErr   error
	)

	wg.Add(5)
	go func() { defer wg.Done(); population, popErr = LoadPopulation(in.Population) }()
	go func() { defer wg.Done(); age, ageErr = LoadAge(in.Age) }()
	go func() { defer wg.Done(); occupation, occErr = LoadOccupation(in.Occupation) }()
	go func() { defer wg.Done(); od, odErr = LoadOD(in.OD) }()
	go func() { defer wg.Done(); shapes, shapeErr = LoadOutputAreaShapefile(in.ShapeFile) }()
	wg.Wait()

	for _, err := range []error{popErr, ageErr, occErr, odErr, shapeErr} {
		if err != nil {
			return nil, errors.Wrap(err, "census: loading input tables")
		}
	}

	shapeMap := make(map[AreaCode]OutputAreaPolygon, len(shapes))
	for _, s := range shapes {
		shapeMap[s.Code] = s
	}

	keep := make(map[AreaCode]bool)
	for code := range population {
		if _, ok := age[code]; !ok {
			log.WithField("area", code).Warn("census: dropping area missing from age table")
			continue
		}
		if _, ok := occupation[code]; !ok {
			log.WithField("area", code).Warn("census: dropping area missing from occupation table")
			continue
		}
		if _, ok := od[code]; !ok {
			log.WithField("area", code).Warn("census: dropping area missing from OD table")
			continue
		}
		if _, ok := shapeMap[code]; !ok {
			log.WithField("area", code).Warn("census: dropping area missing from shapefile")
			continue
		}
		keep[code] = true
	}

	out := &Tables{
		Population: make(map[AreaCode]*PopulationRecord, len(keep)),
		Age:        make(map[AreaCode]*AgeRecord, len(keep)),
		Occupation: make(map[AreaCode]*OccupationRecord, len(keep)),
		OD:         make(map[AreaCode]*ODRecord, len(keep)),
		Shapes:     make(map[AreaCode]OutputAreaPolygon, len(keep)),
	}
	for code := range keep {
		out.Population[code] = population[code]
		out.Age[code] = age[code]
		out.Occupation[code] = occupation[code]
		out.OD[code] = od[code]
		out.Shapes[code] = shapeMap[code]
		out.Codes = append(out.Codes, code)
	}
	sort.Slice(out.Codes, func(i, j int) bool { return out.Codes[i] < out.Codes[j] })

	// Re-sample every surviving OD record's destination distribution
	// against the post-join keep set: a residence area that survived
	// may still commute to a workplace area that didn't.
	for _, rec := range out.OD {
		rec.DropDestinations(keep)
	}

	log.WithFields(logrus.Fields{
		"total_population_areas": len(population),
		"surviving_areas":        len(out.Codes),
	}).Info("census: joined input tables")

	return out, nil
}
