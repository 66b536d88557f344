package epi

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExposureChanceAppliesVaccineFactorOnlyWhenVaccinated(t *testing.T) {
	got := ExposureChance(0.6, 1.0, 1.0, true)
	assert.Equal(t, 0.0, got)

	got = ExposureChance(0.6, 1.0, 1.0, false)
	assert.Equal(t, 0.6, got)
}

func TestExposedAlwaysTrueAtFullChance(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.True(t, Exposed(rng, 1.0, 1))
}

func TestExposedAlwaysFalseAtZeroChance(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.False(t, Exposed(rng, 0.0, 5))
}

func TestExposedFalseWithNoInfectedOccupants(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.False(t, Exposed(rng, 1.0, 0))
}
