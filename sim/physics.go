package sim

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/pthm-cable/reef/components"
	"github.com/pthm-cable/reef/config"
)

// PhysicsEngine integrates motion, handles boundary collisions, and
// spawns entities.
type PhysicsEngine struct {
	cfg *config.Config
	rng *rand.Rand

	// Spawning may run concurrently with sensor workers in some
	// deployments; the id counter is the one shared mutable resource.
	mu      sync.Mutex
	counter uint64
}

// NewPhysicsEngine creates a physics engine.
func NewPhysicsEngine(cfg *config.Config, rng *rand.Rand) *PhysicsEngine {
	return &PhysicsEngine{cfg: cfg, rng: rng}
}

// IntegrateMotion advances one entity by dt: heading by angular velocity,
// position along the heading by speed, then the boundary bounce. Age,
// breeding cooldown, and spawn progress advance in the same pass.
// A prey with no energy is frozen entirely - it neither moves nor ages.
func (p *PhysicsEngine) IntegrateMotion(h handle, dt float64) {
	if h.org.Kind == components.KindPrey && h.vit.Energy <= 0 {
		return
	}

	h.mot.Angle += h.mot.AngVel * dt
	h.pos.X += math.Cos(h.mot.Angle) * h.mot.Speed * dt
	h.pos.Y += math.Sin(h.mot.Angle) * h.mot.Speed * dt

	p.bounce(h.pos, h.mot, h.body)

	h.vit.Age += dt
	h.breed.Cooldown = math.Max(0, h.breed.Cooldown-dt)
	h.body.SpawnProgress = math.Min(1, h.body.SpawnProgress+p.cfg.Physics.SpawnGrowRate*dt)
}

// bounce applies the stylized boundary rule: on crossing a bound, negate
// the angular velocity, add pi/2 to the heading, and clamp the position.
// Not a true reflection; trained policies depend on this exact behavior,
// including the double application when both bounds are crossed at once.
func (p *PhysicsEngine) bounce(pos *components.Position, mot *components.Motion, body *components.Body) {
	w := p.cfg.World.Width
	h := p.cfg.World.Height

	if pos.X < body.Radius || pos.X > w-body.Radius {
		mot.AngVel = -mot.AngVel
		mot.Angle += math.Pi / 2
		pos.X = clamp(pos.X, body.Radius, w-body.Radius)
	}

	if pos.Y < body.Radius || pos.Y > h-body.Radius {
		mot.AngVel = -mot.AngVel
		mot.Angle += math.Pi / 2
		pos.Y = clamp(pos.Y, body.Radius, h-body.Radius)
	}
}

// SpawnEntity creates a new entity. With a parent, the child is placed
// at 1.6 parent radii along a perturbed heading and inherits half the
// parent's energy, its FOV, and its split threshold. Without a parent,
// position, heading, and speed are drawn from the kind's ranges.
func (p *PhysicsEngine) SpawnEntity(kind components.Kind, parent *Entity) Entity {
	cfg := p.cfg

	if parent != nil {
		id := p.nextID(kind)
		angle := parent.Angle + p.uniform(-0.25, 0.25)
		speed := math.Max(6.0, parent.Speed+p.uniform(-2.0, 2.0))
		radius := math.Max(6.0, parent.Radius+p.uniform(-0.6, 0.6))
		offset := parent.Radius * 1.6

		return Entity{
			ID:            id,
			Kind:          kind,
			X:             clamp(parent.X+math.Cos(angle)*offset, radius, cfg.World.Width-radius),
			Y:             clamp(parent.Y+math.Sin(angle)*offset, radius, cfg.World.Height-radius),
			Angle:         angle,
			Speed:         speed,
			AngVel:        clamp(parent.AngVel+p.uniform(-0.2, 0.2), -0.8, 0.8),
			Radius:        radius,
			Energy:        parent.Energy * 0.5,
			Generation:    parent.Generation + 1,
			FOVDeg:        parent.FOVDeg,
			FOVRange:      parent.FOVRange,
			SplitEnergy:   parent.SplitEnergy,
			BreedCooldown: p.breedCooldown(kind),
			SpawnProgress: 0,
		}
	}

	id := p.nextID(kind)
	margin := cfg.Physics.SpawnMargin
	agent := p.agentConfig(kind)
	splitEnergy := cfg.Breeding.SplitEnergyPrey
	if kind == components.KindHunter {
		splitEnergy = cfg.Breeding.SplitEnergyHunter
	}

	return Entity{
		ID:            id,
		Kind:          kind,
		X:             p.uniform(margin, cfg.World.Width-margin),
		Y:             p.uniform(margin, cfg.World.Height-margin),
		Angle:         p.uniform(-math.Pi, math.Pi),
		Speed:         p.uniform(agent.SpeedMin, agent.SpeedMax),
		AngVel:        p.uniform(-0.8, 0.8),
		Radius:        cfg.Entity.DefaultRadius,
		Energy:        p.uniform(cfg.Energy.MinInitial, cfg.Energy.MaxInitial),
		FOVDeg:        agent.FOVDeg,
		FOVRange:      agent.FOVRange,
		SplitEnergy:   splitEnergy,
		SpawnProgress: 1,
	}
}

func (p *PhysicsEngine) agentConfig(kind components.Kind) *config.AgentConfig {
	if kind == components.KindHunter {
		return &p.cfg.Hunter
	}
	return &p.cfg.Prey
}

func (p *PhysicsEngine) breedCooldown(kind components.Kind) float64 {
	if kind == components.KindHunter {
		return p.cfg.Breeding.CooldownHunter
	}
	return p.cfg.Breeding.CooldownPrey
}

// nextID returns a process-unique id: a mutex-guarded monotonic counter
// plus a coarse wall-clock suffix for collision resistance across runs.
func (p *PhysicsEngine) nextID(kind components.Kind) string {
	p.mu.Lock()
	p.counter++
	n := p.counter
	p.mu.Unlock()

	suffix := time.Now().UnixMilli() / 100 % 10000
	return fmt.Sprintf("%c_%06d_%04d", kind[0], n, suffix)
}

// EnsureCounterAbove raises the id counter so restored worlds never
// reissue a loaded id.
func (p *PhysicsEngine) EnsureCounterAbove(n uint64) {
	p.mu.Lock()
	if p.counter < n {
		p.counter = n
	}
	p.mu.Unlock()
}

func (p *PhysicsEngine) uniform(lo, hi float64) float64 {
	return lo + p.rng.Float64()*(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
