package census

import (
	"encoding/csv"
	"io"
	"math/rand"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const allCategoriesLabel = "all categories"

// OccupationRecord holds the per-output-area occupation-class histogram
// and the sampler built from it.
type OccupationRecord struct {
	Code    AreaCode
	Counts  [numOccupationClasses]int
	sampler Sampler[OccupationClass]
}

// Sample draws one occupation class from the area's distribution.
func (o *OccupationRecord) Sample(rng *rand.Rand) OccupationClass { return o.sampler.Sample(rng) }

// LoadOccupation reads the occupation-count CSV: rows keyed by
// geography code and a nine-class occupation label, plus an "All
// categories" aggregate row which is ignored.
func LoadOccupation(r io.Reader) (map[AreaCode]*OccupationRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "census: reading occupation header")
	}
	col, err := indexColumns(header, "geography code", "occupation", "observation value")
	if err != nil {
		return nil, errors.Wrap(err, "census: occupation header")
	}

	classByLabel := make(map[string]OccupationClass, numOccupationClasses)
	for c := OccupationClass(0); int(c) < len(occupationClassNames); c++ {
		classByLabel[strings.ToLower(occupationClassNames[c])] = c
	}

	out := make(map[AreaCode]*OccupationRecord)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "census: reading occupation row")
		}
		label := strings.ToLower(strings.TrimSpace(row[col["occupation"]]))
		if label == allCategoriesLabel {
			continue
		}
		class, ok := classByLabel[label]
		if !ok {
			return nil, errors.Errorf("census: unrecognized occupation label %q", row[col["occupation"]])
		}
		code := AreaCode(row[col["geography code"]])
		n, err := strconv.Atoi(row[col["observation value"]])
		if err != nil {
			return nil, errors.Wrapf(err, "census: parsing occupation count for area %s", code)
		}
		rec := out[code]
		if rec == nil {
			rec = &OccupationRecord{Code: code}
			out[code] = rec
		}
		rec.Counts[class] += n
	}
	for _, rec := range out {
		rec.buildSampler()
	}
	return out, nil
}

func (o *OccupationRecord) buildSampler() {
	classes := make([]OccupationClass, 0, numOccupationClasses)
	weights := make([]float64, 0, numOccupationClasses)
	for c, n := range o.Counts {
		if n <= 0 {
			continue
		}
		classes = append(classes, OccupationClass(c))
		weights = append(weights, float64(n))
	}
	o.sampler = NewSampler(classes, weights)
}
