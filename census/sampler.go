package census

import (
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"
)

// Sampler draws repeatedly, with replacement, from a weighted
// categorical distribution over values. Reproducibility depends only
// on the *rand.Rand passed to Sample, per the census ingest contract.
type Sampler[T any] struct {
	weights []float64
	values  []T
}

// NewSampler builds a sampler over values with the given (unnormalized)
// weights. len(values) must equal len(weights).
func NewSampler[T any](values []T, weights []float64) Sampler[T] {
	return Sampler[T]{weights: weights, values: values}
}

// Empty reports whether the sampler has no outcomes to draw from.
func (s Sampler[T]) Empty() bool { return len(s.values) == 0 }

// Sample draws one value using rng as the entropy source.
func (s Sampler[T]) Sample(rng *rand.Rand) T {
	cat := distuv.NewCategorical(s.weights, rng)
	idx := int(cat.Rand())
	return s.values[idx]
}
