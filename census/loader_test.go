package census

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPopulation(t *testing.T) {
	csv := strings.Join([]string{
		"geography code,rural urban,cell name,measure name,observation value",
		"E1,Urban,Area (Hectares),Value,100",
		"E1,Urban,Density (number of persons per hectare),Value,42.5",
		"E1,Urban,All usual residents,Value,4250",
		"E2,Urban,Area (Hectares),Value,50",
	}, "\n")

	out, err := LoadPopulation(strings.NewReader(csv))
	require.NoError(t, err)
	require.Contains(t, out, AreaCode("E1"))

	e1 := out["E1"]
	assert.Equal(t, 100.0, e1.AreaHectares)
	assert.Equal(t, 42.5, e1.DensityPerHectare)
	assert.Equal(t, 4250, e1.PersonCounts["All usual residents"])

	require.Contains(t, out, AreaCode("E2"))
	assert.Equal(t, 50.0, out["E2"].AreaHectares)
}

func TestLoadPopulationMissingColumn(t *testing.T) {
	csv := "geography code,cell name\nE1,Area (Hectares)\n"
	_, err := LoadPopulation(strings.NewReader(csv))
	assert.Error(t, err)
}

func TestLoadAge(t *testing.T) {
	csv := strings.Join([]string{
		"geography code,age,observation value",
		"E1,1,10", // bucket 1 -> age 0
		"E1,2,8",  // bucket 2 -> age 1
		"E1,101,3",
	}, "\n")

	out, err := LoadAge(strings.NewReader(csv))
	require.NoError(t, err)
	require.Contains(t, out, AreaCode("E1"))

	rec := out["E1"]
	assert.Equal(t, 10, rec.Counts[0])
	assert.Equal(t, 8, rec.Counts[1])
	assert.Equal(t, 3, rec.Counts[maxAge])

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		age := rec.Sample(rng)
		assert.GreaterOrEqual(t, age, 0)
		assert.LessOrEqual(t, age, maxAge)
	}
}

func TestLoadAgeInvalidBucket(t *testing.T) {
	csv := "geography code,age,observation value\nE1,0,5\n"
	_, err := LoadAge(strings.NewReader(csv))
	assert.Error(t, err, "bucket 0 is out of the valid 1..=101 range")

	csv = "geography code,age,observation value\nE1,102,5\n"
	_, err = LoadAge(strings.NewReader(csv))
	assert.Error(t, err)
}

func TestLoadOccupation(t *testing.T) {
	csv := strings.Join([]string{
		"geography code,occupation,observation value",
		"E1,All categories,1000",
		"E1," + occupationClassNames[OccManagers] + ",100",
		"E1," + occupationClassNames[OccSales] + ",50",
	}, "\n")

	out, err := LoadOccupation(strings.NewReader(csv))
	require.NoError(t, err)
	rec := out["E1"]
	require.NotNil(t, rec)
	assert.Equal(t, 100, rec.Counts[OccManagers])
	assert.Equal(t, 50, rec.Counts[OccSales])
}

func TestLoadOccupationUnrecognizedLabel(t *testing.T) {
	csv := "geography code,occupation,observation value\nE1,not a real occupation,5\n"
	_, err := LoadOccupation(strings.NewReader(csv))
	assert.Error(t, err)
}

func TestLoadOD(t *testing.T) {
	csv := strings.Join([]string{
		"residence code,workplace code,count",
		"E1,E1,30",
		"E1,E2,20",
		"E2,E1,5",
	}, "\n")

	out, err := LoadOD(strings.NewReader(csv))
	require.NoError(t, err)

	e1 := out["E1"]
	require.NotNil(t, e1)
	assert.Equal(t, 50, e1.Total)
	assert.Equal(t, 30, e1.Counts["E1"])
	assert.Equal(t, 20, e1.Counts["E2"])

	rng := rand.New(rand.NewSource(1))
	dest, ok := e1.Sample(rng)
	assert.True(t, ok)
	assert.Contains(t, []AreaCode{"E1", "E2"}, dest)
}

func TestODRecordDropDestinations(t *testing.T) {
	csv := "residence code,workplace code,count\nE1,E1,30\nE1,E2,20\nE1,E3,10\n"
	out, err := LoadOD(strings.NewReader(csv))
	require.NoError(t, err)

	rec := out["E1"]
	rec.DropDestinations(map[AreaCode]bool{"E1": true, "E3": true})

	assert.Equal(t, 40, rec.Total)
	assert.Equal(t, 30, rec.Counts["E1"])
	assert.Equal(t, 10, rec.Counts["E3"])
	assert.NotContains(t, rec.Counts, AreaCode("E2"))

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		dest, ok := rec.Sample(rng)
		require.True(t, ok)
		assert.NotEqual(t, AreaCode("E2"), dest)
	}
}

func TestODRecordDropDestinationsExhausted(t *testing.T) {
	csv := "residence code,workplace code,count\nE1,E2,20\n"
	out, err := LoadOD(strings.NewReader(csv))
	require.NoError(t, err)

	rec := out["E1"]
	rec.DropDestinations(map[AreaCode]bool{"E1": true})

	assert.Equal(t, 0, rec.Total)
	_, ok := rec.Sample(rand.New(rand.NewSource(1)))
	assert.False(t, ok, "a record with no surviving destinations has an empty sampler")
}
