package census

import (
	"encoding/csv"
	"io"
	"math/rand"
	"strconv"

	"github.com/pkg/errors"
)

// ODRecord is one residence area's row of the residence→workplace
// commuting matrix: destination area code to commuter count.
//
// This is backed by a plain map rather than a dense grid array (the
// form ctessum/sparse takes) because the matrix is keyed by arbitrary
// AreaCode strings rather than integer cell indices — see DESIGN.md.
type ODRecord struct {
	Residence AreaCode
	Counts    map[AreaCode]int
	Total     int
	sampler   Sampler[AreaCode]
}

// LoadOD reads the residence→workplace CSV: rows of (residence code,
// workplace code, count).
func LoadOD(r io.Reader) (map[AreaCode]*ODRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "census: reading OD header")
	}
	col, err := indexColumns(header, "residence code", "workplace code", "count")
	if err != nil {
		return nil, errors.Wrap(err, "census: OD header")
	}

	out := make(map[AreaCode]*ODRecord)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "census: reading OD row")
		}
		residence := AreaCode(row[col["residence code"]])
		workplace := AreaCode(row[col["workplace code"]])
		n, err := strconv.Atoi(row[col["count"]])
		if err != nil {
			return nil, errors.Wrapf(err, "census: parsing OD count for residence %s", residence)
		}
		rec := out[residence]
		if rec == nil {
			rec = &ODRecord{Residence: residence, Counts: make(map[AreaCode]int)}
			out[residence] = rec
		}
		rec.Counts[workplace] += n
		rec.Total += n
	}
	for _, rec := range out {
		rec.buildSampler()
	}
	return out, nil
}

// DropDestinations removes entries for destinations not present in
// keep, recomputing Total and the sampler. Used after the filtering
// pass drops output areas that lack one of the four census tables.
func (rec *ODRecord) DropDestinations(keep map[AreaCode]bool) {
	rec.Total = 0
	for dest, n := range rec.Counts {
		if !keep[dest] {
			delete(rec.Counts, dest)
			continue
		}
		rec.Total += n
	}
	rec.buildSampler()
}

func (rec *ODRecord) buildSampler() {
	dests := make([]AreaCode, 0, len(rec.Counts))
	weights := make([]float64, 0, len(rec.Counts))
	for dest, n := range rec.Counts {
		if n <= 0 {
			continue
		}
		dests = append(dests, dest)
		weights = append(weights, float64(n))
	}
	rec.sampler = NewSampler(dests, weights)
}

// Sample draws one workplace destination area from this residence
// area's commuting distribution.
func (rec *ODRecord) Sample(rng *rand.Rand) (AreaCode, bool) {
	if rec.sampler.Empty() {
		return "", false
	}
	return rec.sampler.Sample(rng), true
}
