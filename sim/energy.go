package sim

import (
	"math"

	"github.com/pthm-cable/reef/components"
	"github.com/pthm-cable/reef/config"
)

// EnergySystem applies per-entity metabolism, resolves predation, and
// gates breeding. Events accumulate across a tick and are drained by the
// world when it assembles the snapshot.
type EnergySystem struct {
	cfg    *config.Config
	events []Event
}

// NewEnergySystem creates an energy system.
func NewEnergySystem(cfg *config.Config) *EnergySystem {
	return &EnergySystem{cfg: cfg}
}

// UpdateEntityEnergy advances one entity's energy by dt.
func (s *EnergySystem) UpdateEntityEnergy(h handle, dt float64) {
	switch h.org.Kind {
	case components.KindPrey:
		s.updatePrey(h, dt)
	case components.KindHunter:
		s.updateHunter(h, dt)
	}
}

// updatePrey runs the producer model: flat production minus metabolism,
// movement, and turning costs. A prey at zero energy emits a despawn
// event, but the world never acts on it - the prey stays, frozen.
func (s *EnergySystem) updatePrey(h handle, dt float64) {
	e := s.cfg.Energy

	produced := e.PreyProduction * e.ProductionEfficiency * dt
	net := produced - e.PreyMetabolism*dt - s.movementCost(h.mot, dt) - s.turningCost(h.mot, dt)

	oldEnergy := h.vit.Energy
	h.vit.Energy = math.Min(h.vit.Energy+net, e.MaxPrey)

	if gain := h.vit.Energy - oldEnergy; gain > e.GrowEventThreshold {
		s.push(Event{Type: EventGrow, ActorID: h.org.ID, EnergyGain: gain})
	}

	if h.vit.Energy <= 0 {
		s.push(Event{Type: EventDespawn, ActorID: h.org.ID})
	}
}

// updateHunter runs the consumer model: pure drain, capped at the hunter
// maximum. Digestion counts down here. The despawn event at zero energy
// is acted on by the world's cleanup phase.
func (s *EnergySystem) updateHunter(h handle, dt float64) {
	e := s.cfg.Energy

	cost := e.HunterMetabolism*dt + s.movementCost(h.mot, dt) + s.turningCost(h.mot, dt)
	h.vit.Energy -= cost

	if h.vit.Digestion > 0 {
		h.vit.Digestion = math.Max(0, h.vit.Digestion-dt)
	}

	h.vit.Energy = math.Min(h.vit.Energy, e.MaxHunter)

	if h.vit.Energy <= 0 {
		s.push(Event{Type: EventDespawn, ActorID: h.org.ID})
	}
}

func (s *EnergySystem) movementCost(mot *components.Motion, dt float64) float64 {
	normalized := mot.Speed / s.cfg.Energy.SpeedReference
	return s.cfg.Energy.MovementCost * normalized * normalized * dt
}

func (s *EnergySystem) turningCost(mot *components.Motion, dt float64) float64 {
	normalized := math.Abs(mot.AngVel) / math.Pi
	return s.cfg.Energy.TurningCost * normalized * dt
}

// ProcessPredation attempts a capture. It fails while the hunter
// digests or when the prey sits outside the bonus-adjusted predation
// radius. On success the hunter is credited the configured gain (capped
// at its maximum), digestion starts, and the predation and target
// despawn events are recorded in that order.
func (s *EnergySystem) ProcessPredation(hunter, prey handle) bool {
	if hunter.vit.Digestion > 0 {
		return false
	}

	dx := hunter.pos.X - prey.pos.X
	dy := hunter.pos.Y - prey.pos.Y
	distance := math.Sqrt(dx*dx + dy*dy)

	if distance > s.PredationRadius(hunter) {
		return false
	}

	gain := s.cfg.Predation.Gain
	hunter.vit.Energy = math.Min(hunter.vit.Energy+gain, s.cfg.Energy.MaxHunter)
	hunter.vit.Digestion = s.cfg.Predation.DigestionDuration

	s.push(Event{Type: EventPredation, ActorID: hunter.org.ID, TargetID: prey.org.ID, EnergyGain: gain})
	s.push(Event{Type: EventDespawn, ActorID: prey.org.ID})

	return true
}

// PredationRadius derives the effective capture radius from the hunter's
// FOV range, scaled by size and speed bonuses and clamped to the
// configured range.
func (s *EnergySystem) PredationRadius(hunter handle) float64 {
	p := s.cfg.Predation

	fovRange := hunter.sensor.FOVRange
	if fovRange == 0 {
		fovRange = s.cfg.Hunter.FOVRange
	}
	base := fovRange * p.BaseRatio

	sizeFactor := hunter.body.Radius / s.cfg.Entity.DefaultRadius
	withSize := base * (1 + (sizeFactor-1)*p.SizeBonus)

	speedFactor := hunter.mot.Speed / s.cfg.Energy.SpeedReference
	radius := withSize * (1 + speedFactor*p.SpeedBonus)

	return clamp(radius, p.MinRadius, p.MaxRadius)
}

// CheckBreeding reports whether the entity has the energy and the
// cooldown to reproduce. The population ceiling is the caller's job.
func (s *EnergySystem) CheckBreeding(h handle) bool {
	return h.vit.Energy >= h.breed.SplitEnergy && h.breed.Cooldown <= 0
}

// Events returns a copy of the events recorded so far this tick.
func (s *EnergySystem) Events() []Event {
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// ClearEvents resets the event buffer for the next tick.
func (s *EnergySystem) ClearEvents() {
	s.events = s.events[:0]
}

func (s *EnergySystem) push(ev Event) {
	s.events = append(s.events, ev)
}
