// Package components defines the ECS components and shared value types
// for the simulation.
package components

// Kind identifies the role of an entity.
type Kind string

const (
	KindHunter Kind = "hunter"
	KindPrey   Kind = "prey"
)

// Position is an entity's world position.
type Position struct {
	X, Y float64
}

// Motion holds heading-based movement state. Speed is a scalar along the
// heading; external controllers write Speed and AngVel between ticks.
type Motion struct {
	Angle  float64 // Heading in radians
	Speed  float64
	AngVel float64 // Angular velocity in radians per second
}

// Body holds physical extent and the newborn scale-in ramp.
type Body struct {
	Radius        float64
	SpawnProgress float64 // 0 at birth, grows toward 1
}

// Vitals holds energy state and timers.
type Vitals struct {
	Energy    float64
	Digestion float64 // Hunters only: seconds until the next bite is allowed
	Age       float64
}

// Breeding holds reproduction state.
type Breeding struct {
	SplitEnergy float64 // Energy threshold to reproduce
	Cooldown    float64 // Seconds until the next breed is allowed
}

// Organism holds identity and lineage.
type Organism struct {
	ID         string
	Kind       Kind
	Generation int
	Offspring  int
}

// Sensor holds the perception cone and the most recent ray results.
// FOVDeg/FOVRange of zero fall back to the kind defaults.
type Sensor struct {
	FOVDeg   float64
	FOVRange float64
	Rays     []RayHit
	TargetID string // Last sensor lock, empty if none
}

// RayHit is the nearest intersection of one sensor ray with another
// entity's bounding circle. HitKind/HitID are empty on a miss.
type RayHit struct {
	Angle    float64 `json:"angle"`
	Distance float64 `json:"distance"`
	HitKind  Kind    `json:"hit_type,omitempty"`
	HitID    string  `json:"hit_id,omitempty"`
}
