package synthpop

import (
	"math/rand"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dsnet-sim/synthpop/config"
	"github.com/dsnet-sim/synthpop/epi"
)

// transportCapacity is the fixed per-vehicle passenger cap a spawned
// PublicTransport instance enforces before a new one is spawned.
const transportCapacity = 50

// Engine steps a built World forward one hour at a time, per the C6
// per-step schedule: location transitions, exposure computation,
// disease-state advance, intervention policy update, statistics
// accumulation.
type Engine struct {
	World *World
	Cfg   config.Config
	Log   *logrus.Logger

	rng          *rand.Rand
	durations    epi.Durations
	thresholds   epi.Thresholds
	intervention epi.State

	// transports holds this step's transient PublicTransport instances,
	// keyed by (fromArea, toArea); rebuilt every step and never
	// persisted — per the public-transport lifecycle note, they must
	// never leak into Statistics as stable keys.
	transports map[transportKey][]*Building

	step int
}

type transportKey struct {
	From, To AreaCode
}

// NewEngine constructs an Engine over world with a single seeded RNG,
// the master determinism source every sub-draw (exposure, vaccination
// selection) derives from.
func NewEngine(world *World, cfg config.Config, log *logrus.Logger) *Engine {
	return &Engine{
		World: world,
		Cfg:   cfg,
		Log:   log,
		rng:   rand.New(rand.NewSource(cfg.RNGSeed)),
		durations: epi.Durations{
			ExposedHours:  cfg.Disease.ExposedDurationHours,
			InfectedHours: cfg.Disease.InfectedDurationHours,
		},
		thresholds: epi.Thresholds{
			LockdownThreshold:             cfg.Intervention.LockdownThreshold,
			VaccinationThreshold:          cfg.Intervention.VaccinationThreshold,
			VaccinationRatePer100k:        cfg.Intervention.VaccinationRatePer100k,
			VaccineEffectiveness:          cfg.Intervention.VaccineEffectiveness,
			MaskCompliance:                cfg.Intervention.MaskCompliance,
			MaskEffectiveness:             cfg.Intervention.MaskEffectiveness,
			MasksPublicTransportThreshold: cfg.Intervention.MasksPublicTransportThreshold,
			MasksEverywhereThreshold:      cfg.Intervention.MasksEverywhereThreshold,
		},
	}
}

// Intervention reports the engine's current intervention regime, as of
// the last completed step.
func (e *Engine) Intervention() epi.State { return e.intervention }

// Running reports whether the step loop should continue: there is at
// least one citizen who is not yet Recovered or Vaccinated, i.e. still
// Susceptible, Exposed, or Infected.
func (e *Engine) Running() bool {
	for _, c := range e.World.Citizens {
		switch c.Status.Kind {
		case epi.Susceptible, epi.Exposed, epi.Infected:
			return true
		}
	}
	return false
}

// Run advances the engine up to maxHours steps, or until Running
// reports false, calling onStep with the reduced Statistics after each
// step. It observes the simple boolean continue flag described in the
// concurrency model: the engine stops between steps, never mid-step.
func (e *Engine) Run(maxHours int, onStep func(Statistics)) error {
	for h := 0; h < maxHours; h++ {
		if !e.Running() {
			break
		}
		stats, err := e.Step()
		if err != nil {
			return errors.Wrapf(err, "synthpop: step %d", e.step)
		}
		if onStep != nil {
			onStep(stats)
		}
	}
	return nil
}

// Step runs one hour of the simulation and returns the reduced
// Statistics for it, per the ordered schedule: transitions, exposure,
// advance, intervention update, accumulation.
func (e *Engine) Step() (Statistics, error) {
	hour := e.step % 24

	if err := e.transitionLocations(hour); err != nil {
		return Statistics{}, err
	}

	exposures, exposed, err := e.computeExposure()
	if err != nil {
		return Statistics{}, err
	}

	e.advanceDiseaseStates(exposed)

	// Step 5 (statistics accumulation) tallies status counts after the
	// advance step so the reported counts reflect this hour's final
	// statuses, then merges in the exposure ledgers step 2 recorded.
	stats := NewStatistics(e.step)
	stats.Merge(exposures)
	for _, c := range e.World.Citizens {
		stats.recordStatus(c.Status)
	}

	e.updateIntervention(stats)

	e.step++
	return stats, nil
}

// areaShards partitions world areas into cfg.WorkerThreads groups for
// the per-OutputArea parallel sub-steps, the striding pattern the
// builder's own parallel stages already use.
func (e *Engine) areaShards() [][]*OutputArea {
	n := e.Cfg.WorkerThreads
	if n < 1 {
		n = 1
	}
	areas := make([]*OutputArea, 0, len(e.World.Areas))
	for _, a := range e.World.Areas {
		areas = append(areas, a)
	}
	shards := make([][]*OutputArea, n)
	for i, a := range areas {
		shards[i%n] = append(shards[i%n], a)
	}
	return shards
}

// transitionLocations is schedule step 1: computes and applies each
// citizen's target location for this hour, routing cross-area commutes
// through transient PublicTransport instances. Building occupant lists
// are reset and rebuilt by push, per the shared-resource policy;
// citizens are partitioned by home OutputArea so each worker owns its
// own areas' Buildings exclusively, with every push that leaves or
// enters another area buffered and merged in a second, single-threaded
// phase.
func (e *Engine) transitionLocations(hour int) error {
	for _, area := range e.World.Areas {
		for _, b := range area.Buildings {
			b.Occupants = nil
		}
	}
	e.transports = make(map[transportKey][]*Building)

	lockdown := e.intervention.Lockdown
	type push struct {
		citizen *Citizen
		loc     Location
	}
	var crossAreaMu sync.Mutex
	var crossArea []push

	shards := e.areaShards()
	var wg sync.WaitGroup
	wg.Add(len(shards))
	stepErr := make([]error, len(shards))
	for s, shard := range shards {
		go func(s int, shard []*OutputArea) {
			defer wg.Done()
			var local []push
			for _, area := range shard {
				for _, cid := range area.Residents {
					citizen, ok := e.World.Citizens[cid]
					if !ok {
						stepErr[s] = errors.Errorf("synthpop: resident %s missing from world", cid)
						return
					}
					target := e.targetLocation(citizen, hour, lockdown)
					if target.Kind == AtBuilding && target.Building.Area == area.Code && citizen.Location.Building.Area == area.Code {
						b, ok := area.Buildings[target.Building]
						if !ok {
							stepErr[s] = errors.Errorf("synthpop: citizen %s references missing building %v", citizen.ID, target.Building)
							return
						}
						b.Occupants = append(b.Occupants, citizen.ID)
						citizen.Location = target
						continue
					}
					local = append(local, push{citizen: citizen, loc: target})
				}
			}
			crossAreaMu.Lock()
			crossArea = append(crossArea, local...)
			crossAreaMu.Unlock()
		}(s, shard)
	}
	wg.Wait()
	for _, err := range stepErr {
		if err != nil {
			return err
		}
	}

	// Second phase: single-threaded reduction of cross-area pushes,
	// routing through PublicTransport where the target building lives
	// in a different area than the citizen's current location.
	for _, p := range crossArea {
		if p.loc.Kind == AtBuilding {
			area, ok := e.World.Areas[p.loc.Building.Area]
			if !ok {
				return errors.Errorf("synthpop: citizen %s targets missing area %s", p.citizen.ID, p.loc.Building.Area)
			}
			b, ok := area.Buildings[p.loc.Building]
			if !ok {
				return errors.Errorf("synthpop: citizen %s references missing building %v", p.citizen.ID, p.loc.Building)
			}
			fromArea := p.citizen.Location.Building.Area
			if p.citizen.Location.Kind == AtBuilding && fromArea != p.loc.Building.Area {
				// The commute occupies exactly this hour: the citizen is
				// exposed as a transport occupant for step 2, but their
				// persisted Location already reflects arrival, so next
				// hour's "unchanged" fallback resolves to the building
				// rather than a transport instance destroyed at step end.
				vehicle := e.boardTransport(fromArea, p.loc.Building.Area)
				vehicle.Occupants = append(vehicle.Occupants, p.citizen.ID)
				p.citizen.Location = p.loc
				continue
			}
			b.Occupants = append(b.Occupants, p.citizen.ID)
			p.citizen.Location = p.loc
		}
	}
	return nil
}

// targetLocation computes a single citizen's target location for hour
// per rule 1: workplace at start-work hour, household at end-work hour,
// otherwise unchanged; lockdown forces household regardless of hour.
func (e *Engine) targetLocation(c *Citizen, hour int, lockdown bool) Location {
	if lockdown {
		return Location{Kind: AtBuilding, Building: c.Home}
	}
	if !c.HasWorkplace {
		return Location{Kind: AtBuilding, Building: c.Home}
	}
	switch hour {
	case c.StartWorkHour:
		return Location{Kind: AtBuilding, Building: c.Workplace}
	case c.EndWorkHour:
		return Location{Kind: AtBuilding, Building: c.Home}
	default:
		return c.Location
	}
}

// boardTransport returns a PublicTransport instance between from and
// to with room for one more passenger, spawning a fresh one once the
// current vehicle on that route fills. These are transient: reset to
// nil every step by transitionLocations via a fresh e.transports map.
func (e *Engine) boardTransport(from, to AreaCode) *Building {
	key := transportKey{From: from, To: to}
	fleet := e.transports[key]
	if len(fleet) > 0 {
		last := fleet[len(fleet)-1]
		if len(last.Occupants) < last.PassengerCapacity {
			return last
		}
	}
	vehicle := &Building{
		ID:                BuildingID{Area: from, Kind: PublicTransportKind, Seq: len(fleet)},
		PassengerCapacity: transportCapacity,
		FromArea:          from,
		ToArea:            to,
	}
	e.transports[key] = append(fleet, vehicle)
	return vehicle
}

// computeExposure is schedule step 2: for each Building and each
// PublicTransport instance, every susceptible occupant draws once per
// infected occupant present, at the mask-adjusted, vaccine-adjusted
// effective chance.
func (e *Engine) computeExposure() (Statistics, map[CitizenID]bool, error) {
	shards := e.areaShards()
	partials := make([]Statistics, len(shards))
	exposedShards := make([]map[CitizenID]bool, len(shards))

	// Sub-stream seeds are drawn from the master RNG here, single
	// threaded, before any worker starts — rand.Rand is not safe for
	// concurrent use, and determinism requires the draw order to be
	// fixed regardless of goroutine scheduling.
	seeds := make([]int64, len(shards))
	for s := range shards {
		seeds[s] = e.rng.Int63()
	}

	var wg sync.WaitGroup
	wg.Add(len(shards))
	for s, shard := range shards {
		go func(s int, shard []*OutputArea) {
			defer wg.Done()
			part := NewStatistics(e.step)
			exposed := make(map[CitizenID]bool)
			rng := rand.New(rand.NewSource(seeds[s]))
			for _, area := range shard {
				for _, b := range area.Buildings {
					e.exposeLocation(rng, &part, exposed, b, false)
				}
			}
			partials[s] = part
			exposedShards[s] = exposed
		}(s, shard)
	}
	wg.Wait()

	exposed := make(map[CitizenID]bool)
	for _, m := range exposedShards {
		for id := range m {
			exposed[id] = true
		}
	}

	for _, fleet := range e.transports {
		for _, vehicle := range fleet {
			part := NewStatistics(e.step)
			e.exposeLocation(e.rng, &part, exposed, vehicle, true)
			partials = append(partials, part)
		}
	}

	stats := NewStatistics(e.step)
	for _, p := range partials {
		stats.Merge(p)
	}
	return stats, exposed, nil
}

// exposeLocation runs one location's exposure draws, tallying new
// exposures into part, flipping exposed citizens' Status directly, and
// marking them in exposed so the disease-state advance step leaves them
// at Exposed(0) for the rest of this step.
func (e *Engine) exposeLocation(rng *rand.Rand, part *Statistics, exposed map[CitizenID]bool, b *Building, onPublicTransport bool) {
	var infected int
	for _, cid := range b.Occupants {
		if c, ok := e.World.Citizens[cid]; ok && c.Status.Kind == epi.Infected {
			infected++
		}
	}
	if infected == 0 {
		return
	}
	maskFactor := epi.MaskFactor(e.intervention.MaskLevel, onPublicTransport, e.thresholds)
	for _, cid := range b.Occupants {
		c, ok := e.World.Citizens[cid]
		if !ok || c.Status.Kind != epi.Susceptible {
			continue
		}
		chance := epi.ExposureChance(e.Cfg.Disease.ExposureChancePerContact, maskFactor, e.thresholds.VaccineEffectiveness, c.Vaccinated)
		if epi.Exposed(rng, chance, infected) {
			next, err := epi.Expose(c.Status)
			if err != nil {
				e.logWarn(c.ID, err)
				continue
			}
			c.Status = next
			part.recordExposure(e.step, b.ID, b.ID.Area, onPublicTransport)
			exposed[c.ID] = true
		}
	}
}

func (e *Engine) logWarn(id CitizenID, err error) {
	if e.Log == nil {
		return
	}
	e.Log.WithField("citizen", id.String()).WithError(err).Warn("synthpop: exposure draw skipped")
}

// advanceDiseaseStates is schedule step 3: ticks every citizen's status
// machine by one hour, except citizens exposed this step — per rule
// "Susceptible -> Susceptible (unless exposed this step)", a citizen
// step 2 just moved to Exposed(0) ends the hour there rather than being
// advanced a second time in the same step.
func (e *Engine) advanceDiseaseStates(exposed map[CitizenID]bool) {
	for id, c := range e.World.Citizens {
		if exposed[id] {
			continue
		}
		c.Status = epi.Advance(c.Status, e.durations)
	}
}

// updateIntervention is schedule step 4: serial, since it mutates the
// single shared intervention State. Runs after disease-state advance so
// the fraction it consults reflects the step's new counts, then applies
// vaccination directly.
func (e *Engine) updateIntervention(stats Statistics) {
	fraction := stats.InfectedFraction()
	e.intervention = epi.Update(e.intervention, fraction, e.thresholds)

	slots := epi.VaccinationSlots(fraction, stats.Total(), e.thresholds)
	if slots <= 0 {
		return
	}
	var susceptible []CitizenID
	for id, c := range e.World.Citizens {
		if c.Status.Kind == epi.Susceptible {
			susceptible = append(susceptible, id)
		}
	}
	e.rng.Shuffle(len(susceptible), func(i, j int) { susceptible[i], susceptible[j] = susceptible[j], susceptible[i] })
	if slots > len(susceptible) {
		slots = len(susceptible)
	}
	for i := 0; i < slots; i++ {
		c := e.World.Citizens[susceptible[i]]
		next, err := epi.Vaccinate(c.Status)
		if err != nil {
			continue
		}
		c.Status = next
		c.Vaccinated = true
	}
}
