package synthpop

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsnet-sim/synthpop/census"
	"github.com/dsnet-sim/synthpop/config"
	"github.com/dsnet-sim/synthpop/epi"
)

// newTestWorld builds a single-area, single-household world with n
// susceptible citizens and infected seeded among them, all sharing one
// Building, with no workplaces — isolating the disease-state and
// statistics machinery from the location-transition/commute logic.
func newTestWorld(t *testing.T, susceptible, infected int) *World {
	t.Helper()
	area := &OutputArea{Code: AreaCode("E1"), Buildings: make(map[BuildingID]*Building)}
	home := &Building{ID: area.NewBuildingID(Household)}
	area.Buildings[home.ID] = home

	world := &World{
		Areas:    map[AreaCode]*OutputArea{area.Code: area},
		Citizens: make(map[CitizenID]*Citizen),
		GridSize: 32800,
	}
	for i := 0; i < susceptible+infected; i++ {
		c := &Citizen{
			ID:              NewCitizenID(),
			Home:            home.ID,
			OccupationClass: census.OccManagers,
			Location:        Location{Kind: AtBuilding, Building: home.ID},
			Status:          epi.NewSusceptible(),
		}
		if i < infected {
			c.Status = epi.NewInfected()
		}
		world.Citizens[c.ID] = c
		area.Residents = append(area.Residents, c.ID)
		home.Occupants = append(home.Occupants, c.ID)
	}
	return world
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.AreaCode = "E1"
	cfg.WorkerThreads = 2
	return cfg
}

func TestEngineEmptyWorldS1(t *testing.T) {
	world := &World{Areas: map[AreaCode]*OutputArea{}, Citizens: map[CitizenID]*Citizen{}}
	eng := NewEngine(world, testConfig(), logrus.New())

	assert.False(t, eng.Running())

	stats, err := eng.Step()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total())
}

func TestEngineStepConservation(t *testing.T) {
	world := newTestWorld(t, 8, 2)
	total := len(world.Citizens)
	cfg := testConfig()
	cfg.Disease.ExposureChancePerContact = 0.5
	eng := NewEngine(world, cfg, logrus.New())

	for i := 0; i < 10; i++ {
		stats, err := eng.Step()
		require.NoError(t, err)
		assert.Equal(t, total, stats.Total(), "step %d", i)
	}
}

func TestEngineMonotonicityOfTerminalStates(t *testing.T) {
	world := newTestWorld(t, 5, 5)
	cfg := testConfig()
	cfg.Disease.ExposedDurationHours = 2
	cfg.Disease.InfectedDurationHours = 2
	cfg.Disease.ExposureChancePerContact = 1.0
	eng := NewEngine(world, cfg, logrus.New())

	seenTerminal := make(map[CitizenID]epi.Kind)
	for i := 0; i < 20; i++ {
		_, err := eng.Step()
		require.NoError(t, err)
		for id, c := range world.Citizens {
			if c.Status.Kind == epi.Recovered || c.Status.Kind == epi.Vaccinated {
				if prior, ok := seenTerminal[id]; ok {
					assert.Equal(t, prior, c.Status.Kind, "citizen %s flipped terminal state", id)
				}
				seenTerminal[id] = c.Status.Kind
			}
		}
	}
}

func TestEngineDeterminismSameSeed(t *testing.T) {
	build := func() (*World, config.Config) {
		w := newTestWorld(t, 6, 4)
		cfg := testConfig()
		cfg.RNGSeed = 42
		cfg.Disease.ExposedDurationHours = 3
		cfg.Disease.InfectedDurationHours = 3
		cfg.Disease.ExposureChancePerContact = 0.7
		return w, cfg
	}

	w1, cfg1 := build()
	w2, cfg2 := build()

	// Re-derive the same citizen ID assignment order isn't guaranteed by
	// ksuid.New() across separate calls, so compare by aggregate
	// Statistics rather than per-citizen identity.
	eng1 := NewEngine(w1, cfg1, logrus.New())
	eng2 := NewEngine(w2, cfg2, logrus.New())

	for i := 0; i < 8; i++ {
		s1, err := eng1.Step()
		require.NoError(t, err)
		s2, err := eng2.Step()
		require.NoError(t, err)
		assert.Equal(t, s1.Susceptible, s2.Susceptible, "step %d susceptible", i)
		assert.Equal(t, s1.Exposed, s2.Exposed, "step %d exposed", i)
		assert.Equal(t, s1.Infected, s2.Infected, "step %d infected", i)
		assert.Equal(t, s1.Recovered, s2.Recovered, "step %d recovered", i)
		assert.Equal(t, s1.Vaccinated, s2.Vaccinated, "step %d vaccinated", i)
	}
}

// TestEngineExposedThisStepNotAdvanced covers the "Susceptible ->
// Susceptible (unless exposed this step)" rule: a citizen exposed by
// step 2 (computeExposure) of an hour must end that hour at
// Exposed(0), not also be ticked through exposed_duration_hours by
// step 3 (advanceDiseaseStates) in the very same Step() call. An
// exposed_duration of zero makes the distinction observable within a
// single step: unconditionally advancing the freshly-exposed citizen
// would transition it straight to Infected in the same step it was
// exposed.
func TestEngineExposedThisStepNotAdvanced(t *testing.T) {
	world := newTestWorld(t, 1, 1)
	cfg := testConfig()
	cfg.Disease.ExposureChancePerContact = 1.0
	cfg.Disease.ExposedDurationHours = 0
	cfg.Disease.InfectedDurationHours = 100
	eng := NewEngine(world, cfg, logrus.New())

	stats, err := eng.Step()
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Susceptible)
	assert.Equal(t, 1, stats.Exposed, "citizen exposed this step must not be advanced past Exposed in the same step")
	assert.Equal(t, 1, stats.Infected)
	assert.Equal(t, 0, stats.Recovered)
}

func TestEngineLockdownEngages(t *testing.T) {
	world := newTestWorld(t, 950, 50)
	cfg := testConfig()
	cfg.Intervention.LockdownThreshold = 0.04
	cfg.Disease.ExposureChancePerContact = 0
	eng := NewEngine(world, cfg, logrus.New())

	_, err := eng.Step()
	require.NoError(t, err)
	assert.True(t, eng.Intervention().Lockdown, "infected fraction 0.05 should have engaged lockdown")
}

func TestEngineStatisticsMergeIsCommutative(t *testing.T) {
	buildA := func() Statistics {
		s := NewStatistics(0)
		s.Susceptible = 3
		s.recordExposure(1, BuildingID{Area: "E1", Kind: Household}, "E1", false)
		return s
	}
	buildB := func() Statistics {
		s := NewStatistics(0)
		s.Infected = 2
		s.recordExposure(2, BuildingID{Area: "E1", Kind: Household}, "E1", false)
		return s
	}

	ab := buildA()
	ab.Merge(buildB())

	ba := buildB()
	ba.Merge(buildA())

	assert.Equal(t, ab.Susceptible, ba.Susceptible)
	assert.Equal(t, ab.Infected, ba.Infected)
	assert.Equal(t, ab.BuildingFirstExposedHour, ba.BuildingFirstExposedHour)
	assert.Equal(t, 1, ab.BuildingFirstExposedHour[BuildingID{Area: "E1", Kind: Household}])
}
