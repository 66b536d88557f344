// Package config loads and validates the simulator's run configuration:
// every option in the configuration table in the external interfaces
// list, with documented defaults and TOML-file plus environment-variable
// overlay, mirroring the teacher's Cfg/viper pattern.
package config

import (
	"github.com/BurntSushi/toml"
	"github.com/lnashier/viper"
	"github.com/pkg/errors"
)

// Disease holds the disease-progression configuration.
type Disease struct {
	ExposedDurationHours      int     `toml:"exposed_duration_hours"`
	InfectedDurationHours     int     `toml:"infected_duration_hours"`
	ExposureChancePerContact  float64 `toml:"exposure_chance_per_contact"`
	MaxTimeStepHours          int     `toml:"max_time_step_hours"`
}

// Intervention holds the lockdown/vaccination/mask policy configuration.
type Intervention struct {
	LockdownThreshold              float64 `toml:"lockdown_threshold"`
	VaccinationThreshold            float64 `toml:"vaccination_threshold"`
	VaccinationRatePer100k          float64 `toml:"vaccination_rate_per_100k"`
	VaccineEffectiveness            float64 `toml:"vaccine_effectiveness"`
	MaskCompliance                  float64 `toml:"mask_compliance"`
	MaskEffectiveness               float64 `toml:"mask_effectiveness"`
	MasksPublicTransportThreshold   float64 `toml:"masks_public_transport_threshold"`
	MasksEverywhereThreshold        float64 `toml:"masks_everywhere_threshold"`
}

// Output holds optional extra output configuration (SPEC_FULL §12).
type Output struct {
	PerAreaBreakdown bool   `toml:"per_area_breakdown"`
	SQLitePath       string `toml:"sqlite_path"`
}

// Config is the full set of recognised run options.
type Config struct {
	AreaCode              string `toml:"area_code"`
	GridSize              int64  `toml:"grid_size"`
	HouseholdSize         int    `toml:"household_size"`
	StartingInfectedCount int    `toml:"starting_infected_count"`
	RNGSeed               int64  `toml:"rng_seed"`
	WorkerThreads         int    `toml:"worker_threads"`

	Disease      Disease      `toml:"disease"`
	Intervention Intervention `toml:"intervention"`
	Output       Output       `toml:"output"`
}

// Default returns the configuration with every documented default
// applied, before any file or environment overlay.
func Default() Config {
	return Config{
		GridSize:              32800,
		HouseholdSize:         4,
		StartingInfectedCount: 10,
		WorkerThreads:         1,
		Disease: Disease{
			ExposedDurationHours:     96,
			InfectedDurationHours:    336,
			ExposureChancePerContact: 0.6,
			MaxTimeStepHours:         1000,
		},
		Intervention: Intervention{
			LockdownThreshold:            0.0034,
			VaccinationThreshold:         0.005,
			VaccinationRatePer100k:       42,
			VaccineEffectiveness:         1.0,
			MaskCompliance:               0.8,
			MaskEffectiveness:            0.7,
			MasksPublicTransportThreshold: 0.001,
			MasksEverywhereThreshold:     0.0022,
		},
	}
}

// Load reads a TOML configuration file over the documented defaults,
// then overlays any SYNTHPOP_-prefixed environment variables present
// for the scalar top-level fields (area_code, grid_size,
// household_size, starting_infected_count, rng_seed, worker_threads),
// mirroring inmaputil's viper-based environment overlay.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "config: reading %s", path)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	overlayString(v, "area_code", &cfg.AreaCode)
	overlayInt64(v, "grid_size", &cfg.GridSize)
	overlayInt(v, "household_size", &cfg.HouseholdSize)
	overlayInt(v, "starting_infected_count", &cfg.StartingInfectedCount)
	overlayInt64(v, "rng_seed", &cfg.RNGSeed)
	overlayInt(v, "worker_threads", &cfg.WorkerThreads)

	if cfg.AreaCode == "" {
		return Config{}, errors.New("config: area_code is required")
	}
	if cfg.WorkerThreads <= 0 {
		cfg.WorkerThreads = 1
	}
	return cfg, nil
}

// envPrefix matches the prefix passed to viper.SetEnvPrefix: combined
// with AutomaticEnv, v.Get* resolves "area_code" against
// SYNTHPOP_AREA_CODE et al., the same convention inmaputil's Cfg uses
// for its "INMAP_var" environment variables.
const envPrefix = "SYNTHPOP"

func overlayString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func overlayInt64(v *viper.Viper, key string, dst *int64) {
	if v.IsSet(key) {
		*dst = v.GetInt64(key)
	}
}

func overlayInt(v *viper.Viper, key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}
