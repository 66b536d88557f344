package census

import (
	"encoding/csv"
	"io"
	"math/rand"
	"strconv"

	"github.com/pkg/errors"
)

// maxAge is the oldest age bucket (0..=100 inclusive).
const maxAge = 100

// AgeRecord holds the per-output-area age histogram (ages 0..=100) and
// the sampler built from it.
type AgeRecord struct {
	Code    AreaCode
	Counts  [maxAge + 1]int
	sampler Sampler[int]
}

// Sample draws one age from the area's distribution.
func (a *AgeRecord) Sample(rng *rand.Rand) int { return a.sampler.Sample(rng) }

// LoadAge reads the age-structure CSV: rows keyed by geography code and
// an integer age bucket 1..=101, where bucket 1 means "under 1" (age 0).
func LoadAge(r io.Reader) (map[AreaCode]*AgeRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "census: reading age-structure header")
	}
	col, err := indexColumns(header, "geography code", "age", "observation value")
	if err != nil {
		return nil, errors.Wrap(err, "census: age-structure header")
	}

	out := make(map[AreaCode]*AgeRecord)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "census: reading age-structure row")
		}
		code := AreaCode(row[col["geography code"]])
		bucket, err := strconv.Atoi(row[col["age"]])
		if err != nil || bucket < 1 || bucket > maxAge+1 {
			return nil, errors.Errorf("census: invalid age bucket %q for area %s", row[col["age"]], code)
		}
		n, err := strconv.Atoi(row[col["observation value"]])
		if err != nil {
			return nil, errors.Wrapf(err, "census: parsing age count for area %s", code)
		}
		rec := out[code]
		if rec == nil {
			rec = &AgeRecord{Code: code}
			out[code] = rec
		}
		rec.Counts[bucket-1] += n // bucket 1 ("under 1") maps to age 0
	}
	for _, rec := range out {
		rec.buildSampler()
	}
	return out, nil
}

func (a *AgeRecord) buildSampler() {
	ages := make([]int, 0, len(a.Counts))
	weights := make([]float64, 0, len(a.Counts))
	for age, n := range a.Counts {
		if n <= 0 {
			continue
		}
		ages = append(ages, age)
		weights = append(weights, float64(n))
	}
	a.sampler = NewSampler(ages, weights)
}
