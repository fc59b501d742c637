// Package sim implements the simulation core: physics, energy, sensors,
// and the world orchestrator that steps them in fixed time increments.
package sim

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/reef/components"
)

// Entity is the immutable snapshot form of one live entity. It is also
// the spawn template: PhysicsEngine returns one and the world arena
// ingests it. JSON tags follow the dump schema.
type Entity struct {
	ID     string          `json:"id"`
	Kind   components.Kind `json:"type"`
	X      float64         `json:"x"`
	Y      float64         `json:"y"`
	Angle  float64         `json:"angle"`
	Speed  float64         `json:"speed"`
	AngVel float64         `json:"angular_velocity"`
	Radius float64         `json:"radius"`

	Energy    float64 `json:"energy"`
	Digestion float64 `json:"digestion"`
	Age       float64 `json:"age"`

	Generation int `json:"generation"`
	Offspring  int `json:"offspring_count"`

	FOVDeg   float64             `json:"fov_deg,omitempty"`
	FOVRange float64             `json:"fov_range,omitempty"`
	Rays     []components.RayHit `json:"rays,omitempty"`
	TargetID string              `json:"target_id,omitempty"`

	SplitEnergy   float64 `json:"split_energy"`
	BreedCooldown float64 `json:"breed_cd"`
	SpawnProgress float64 `json:"spawn_progress"`

	Iteration int64 `json:"iteration"`
}

// EventType tags the event union.
type EventType string

const (
	EventPredation EventType = "predation"
	EventDespawn   EventType = "despawn"
	EventGrow      EventType = "grow"
	EventBreed     EventType = "breed"
)

// Event records one state transition during a tick.
type Event struct {
	Type       EventType `json:"type"`
	ActorID    string    `json:"actor_id,omitempty"`
	TargetID   string    `json:"target_id,omitempty"`
	EnergyGain float64   `json:"energy_gain,omitempty"`
	ParentID   string    `json:"parent_id,omitempty"`
	Child      *Entity   `json:"child,omitempty"`
}

// Snapshot is the immutable per-tick view handed to external consumers.
// Entities and events are deep copies; mutating the live world after
// Step returns never changes a snapshot already handed out.
type Snapshot struct {
	Tick     int64            `json:"tick"`
	Entities []Entity         `json:"entities"`
	Events   []Event          `json:"events"`
	Counters map[string]int64 `json:"counters,omitempty"`
}

// handle bundles the live component pointers of one entity for the
// duration of a tick phase. Valid until the next structural change.
type handle struct {
	org    *components.Organism
	pos    *components.Position
	mot    *components.Motion
	body   *components.Body
	vit    *components.Vitals
	breed  *components.Breeding
	sensor *components.Sensor
}

// queryHandle bundles the current query row's component pointers.
func queryHandle(query *ecs.Query7[
	components.Position,
	components.Motion,
	components.Body,
	components.Vitals,
	components.Breeding,
	components.Sensor,
	components.Organism,
]) handle {
	pos, mot, body, vit, breed, sensor, org := query.Get()
	return handle{org: org, pos: pos, mot: mot, body: body, vit: vit, breed: breed, sensor: sensor}
}

// snapshotEntity deep-copies a live entity into its snapshot form.
func snapshotEntity(h handle, tick int64) Entity {
	var rays []components.RayHit
	if len(h.sensor.Rays) > 0 {
		rays = make([]components.RayHit, len(h.sensor.Rays))
		copy(rays, h.sensor.Rays)
	}
	return Entity{
		ID:            h.org.ID,
		Kind:          h.org.Kind,
		X:             h.pos.X,
		Y:             h.pos.Y,
		Angle:         h.mot.Angle,
		Speed:         h.mot.Speed,
		AngVel:        h.mot.AngVel,
		Radius:        h.body.Radius,
		Energy:        h.vit.Energy,
		Digestion:     h.vit.Digestion,
		Age:           h.vit.Age,
		Generation:    h.org.Generation,
		Offspring:     h.org.Offspring,
		FOVDeg:        h.sensor.FOVDeg,
		FOVRange:      h.sensor.FOVRange,
		Rays:          rays,
		TargetID:      h.sensor.TargetID,
		SplitEnergy:   h.breed.SplitEnergy,
		BreedCooldown: h.breed.Cooldown,
		SpawnProgress: h.body.SpawnProgress,
		Iteration:     tick,
	}
}
