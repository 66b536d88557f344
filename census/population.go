package census

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

// PopulationRecord is the per-output-area population and density record,
// aggregated across however many rows the source CSV carries for that
// area (external interface item 1).
type PopulationRecord struct {
	Code              AreaCode
	AreaHectares      float64
	DensityPerHectare float64
	PersonCounts      map[string]int
}

const (
	cellAreaHectares = "Area (Hectares)"
	cellDensity      = "Density (number of persons per hectare)"
)

// LoadPopulation reads the population/density CSV: columns geography
// code, rural/urban class, cell name, measure name, observation value.
// Multiple rows accumulate into one record per area.
func LoadPopulation(r io.Reader) (map[AreaCode]*PopulationRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "census: reading population header")
	}
	col, err := indexColumns(header, "geography code", "cell name", "observation value")
	if err != nil {
		return nil, errors.Wrap(err, "census: population header")
	}

	out := make(map[AreaCode]*PopulationRecord)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "census: reading population row")
		}
		code := AreaCode(row[col["geography code"]])
		rec := out[code]
		if rec == nil {
			rec = &PopulationRecord{Code: code, PersonCounts: make(map[string]int)}
			out[code] = rec
		}
		cell := row[col["cell name"]]
		value := row[col["observation value"]]
		switch cell {
		case cellAreaHectares:
			rec.AreaHectares, err = strconv.ParseFloat(value, 64)
		case cellDensity:
			rec.DensityPerHectare, err = strconv.ParseFloat(value, 64)
		default:
			var n int
			n, err = strconv.Atoi(value)
			rec.PersonCounts[cell] += n
		}
		if err != nil {
			return nil, errors.Wrapf(err, "census: parsing population value for area %s cell %q", code, cell)
		}
	}
	return out, nil
}

// indexColumns maps the requested header names to their column
// position, failing if any is missing.
func indexColumns(header []string, names ...string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	col := make(map[string]int, len(names))
	for _, name := range names {
		i, ok := idx[name]
		if !ok {
			return nil, errors.Errorf("missing required column %q", name)
		}
		col[name] = i
	}
	return col, nil
}
