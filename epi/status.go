// Package epi holds the disease-state and intervention-policy state
// machines, independent of the world/engine types that drive them.
package epi

import "github.com/pkg/errors"

// Kind is the disease-status variant tag. It mirrors the status-code
// pattern kentwait-contagion uses for its host statuses, but as a typed
// enum with an explicit timer field rather than a bare int plus a
// parallel timer map.
type Kind int

const (
	Susceptible Kind = iota
	Exposed
	Infected
	Recovered
	Vaccinated
)

func (k Kind) String() string {
	switch k {
	case Susceptible:
		return "susceptible"
	case Exposed:
		return "exposed"
	case Infected:
		return "infected"
	case Recovered:
		return "recovered"
	case Vaccinated:
		return "vaccinated"
	default:
		return "unknown"
	}
}

// Status is a Citizen's disease status: a Kind plus the number of hours
// already spent in that state, for Exposed and Infected.
type Status struct {
	Kind  Kind
	Hours int
}

// NewSusceptible returns the initial status every Citizen starts with,
// absent initial-infection seeding.
func NewSusceptible() Status { return Status{Kind: Susceptible} }

// NewInfected returns the status B5 assigns to seeded citizens: Infected
// at hour 0.
func NewInfected() Status { return Status{Kind: Infected} }

// Durations are the configured state-transition delays.
type Durations struct {
	ExposedHours  int
	InfectedHours int
}

// Expose transitions a Susceptible status to Exposed(0). It is an error
// to call this on any status other than Susceptible — the caller (the
// exposure step) must only invoke it for citizens it has determined
// are susceptible.
func Expose(s Status) (Status, error) {
	if s.Kind != Susceptible {
		return s, errors.Errorf("epi: cannot expose a citizen with status %s", s.Kind)
	}
	return Status{Kind: Exposed}, nil
}

// Advance applies one hour of the disease-status state machine:
// Susceptible and Recovered and Vaccinated are fixed points; Exposed and
// Infected tick their timer and transition once the configured duration
// elapses.
func Advance(s Status, d Durations) Status {
	switch s.Kind {
	case Exposed:
		if s.Hours >= d.ExposedHours {
			return Status{Kind: Infected}
		}
		return Status{Kind: Exposed, Hours: s.Hours + 1}
	case Infected:
		if s.Hours >= d.InfectedHours {
			return Status{Kind: Recovered}
		}
		return Status{Kind: Infected, Hours: s.Hours + 1}
	default:
		return s
	}
}

// Vaccinate transitions a Susceptible status to Vaccinated. Like
// Expose, it is only valid from Susceptible.
func Vaccinate(s Status) (Status, error) {
	if s.Kind != Susceptible {
		return s, errors.Errorf("epi: cannot vaccinate a citizen with status %s", s.Kind)
	}
	return Status{Kind: Vaccinated}, nil
}
