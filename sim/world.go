package sim

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/reef/components"
	"github.com/pthm-cable/reef/config"
	"github.com/pthm-cable/reef/telemetry"
)

// Options configures world construction.
type Options struct {
	Seed   int64
	Serial bool // Disable the spatial index and worker pool
}

// World owns the live entity collection and steps the simulation. All
// mutation flows through the tick phases; external collaborators only
// write speed/angular velocity via SetAction before a Step, and read the
// immutable snapshot Step returns.
type World struct {
	cfg *config.Config
	rng *rand.Rand

	arena  *ecs.World
	mapper *ecs.Map7[
		components.Position,
		components.Motion,
		components.Body,
		components.Vitals,
		components.Breeding,
		components.Sensor,
		components.Organism,
	]
	filter *ecs.Filter7[
		components.Position,
		components.Motion,
		components.Body,
		components.Vitals,
		components.Breeding,
		components.Sensor,
		components.Organism,
	]
	motMap *ecs.Map1[components.Motion]
	byID   map[string]ecs.Entity

	physics *PhysicsEngine
	energy  *EnergySystem
	sensors *SensorSystem

	tick       int64
	selectedID string
	numHunters int
	numPrey    int

	// Per-tick counters surfaced through Snapshot.Counters.
	predationAttempts int64

	perf *telemetry.PerfCollector
}

// liveEntity pairs a handle with its arena slot for deferred removal.
// The id and kind are captured by value; component pointers must not be
// read once removals begin.
type liveEntity struct {
	handle
	ent  ecs.Entity
	id   string
	kind components.Kind
}

func liveFrom(h handle, ent ecs.Entity) liveEntity {
	return liveEntity{handle: h, ent: ent, id: h.org.ID, kind: h.org.Kind}
}

// New creates an empty world. The configuration is validated up front;
// stepping never fails after construction succeeds.
func New(cfg *config.Config, opts Options) (*World, error) {
	if cfg == nil {
		return nil, fmt.Errorf("sim: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}

	arena := ecs.NewWorld()
	rng := rand.New(rand.NewSource(opts.Seed))

	w := &World{
		cfg:   cfg,
		rng:   rng,
		arena: arena,
		mapper: ecs.NewMap7[
			components.Position,
			components.Motion,
			components.Body,
			components.Vitals,
			components.Breeding,
			components.Sensor,
			components.Organism,
		](arena),
		filter: ecs.NewFilter7[
			components.Position,
			components.Motion,
			components.Body,
			components.Vitals,
			components.Breeding,
			components.Sensor,
			components.Organism,
		](arena),
		motMap:  ecs.NewMap1[components.Motion](arena),
		byID:    make(map[string]ecs.Entity),
		physics: NewPhysicsEngine(cfg, rng),
		energy:  NewEnergySystem(cfg),
		perf:    telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
	}
	w.sensors = NewSensorSystem(cfg, !opts.Serial)

	return w, nil
}

// Initialize seeds the world with randomized entities and resets the
// tick counter. Any previous population is discarded.
func (w *World) Initialize(nHunters, nPrey int) {
	w.clearEntities()
	w.tick = 0
	w.energy.ClearEvents()

	for i := 0; i < nHunters; i++ {
		w.addEntity(w.physics.SpawnEntity(components.KindHunter, nil))
	}
	for i := 0; i < nPrey; i++ {
		w.addEntity(w.physics.SpawnEntity(components.KindPrey, nil))
	}

	slog.Info("world initialized", "hunters", nHunters, "prey", nPrey)
}

// Step advances one fixed timestep and returns a deep-copied snapshot of
// the resulting state together with this tick's events.
func (w *World) Step() Snapshot {
	w.perf.StartTick()
	defer w.perf.EndTick()

	w.tick++
	dt := w.cfg.Physics.DT
	w.predationAttempts = 0

	w.perf.StartPhase(telemetry.PhaseEnergy)
	w.updateEnergy(dt)

	w.perf.StartPhase(telemetry.PhasePhysics)
	w.updateMotion(dt)

	w.perf.StartPhase(telemetry.PhaseCleanup)
	w.removeStarvedHunters()

	w.perf.StartPhase(telemetry.PhasePredation)
	w.predationPass()

	w.perf.StartPhase(telemetry.PhaseBreeding)
	w.breedingPass()

	w.perf.StartPhase(telemetry.PhaseSensors)
	w.sensors.UpdateAll(w.handles(), w.selectedID)

	w.perf.StartPhase(telemetry.PhaseSnapshot)
	return w.snapshot()
}

// SetAction writes an external controller's action onto a live entity.
// Must be called between ticks, never concurrently with Step.
func (w *World) SetAction(id string, speed, angVel float64) bool {
	ent, ok := w.byID[id]
	if !ok {
		return false
	}
	mot := w.motMap.Get(ent)
	if mot == nil {
		return false
	}
	mot.Speed = speed
	mot.AngVel = angVel
	return true
}

// Select marks an entity as the sensor-LOD focus; an empty id clears it.
func (w *World) Select(id string) {
	w.selectedID = id
}

// Tick returns the current tick counter.
func (w *World) Tick() int64 {
	return w.tick
}

// Count returns the live population size.
func (w *World) Count() int {
	return len(w.byID)
}

// Stats aggregates energy and sensor performance counters.
func (w *World) Stats() map[string]float64 {
	stats := map[string]float64{
		"total_entities": float64(len(w.byID)),
		"hunters":        float64(w.numHunters),
		"preys":          float64(w.numPrey),
		"avg_tick_ms":    float64(w.perf.AvgTick().Microseconds()) / 1000,
	}

	var hunterSum, hunterMin, hunterMax float64
	var preySum, preyMin, preyMax float64
	nh, np := 0, 0

	query := w.filter.Query()
	for query.Next() {
		_, _, _, vit, _, _, org := query.Get()
		switch org.Kind {
		case components.KindHunter:
			if nh == 0 || vit.Energy < hunterMin {
				hunterMin = vit.Energy
			}
			if nh == 0 || vit.Energy > hunterMax {
				hunterMax = vit.Energy
			}
			hunterSum += vit.Energy
			nh++
		case components.KindPrey:
			if np == 0 || vit.Energy < preyMin {
				preyMin = vit.Energy
			}
			if np == 0 || vit.Energy > preyMax {
				preyMax = vit.Energy
			}
			preySum += vit.Energy
			np++
		}
	}

	if nh > 0 {
		stats["hunter_avg_energy"] = hunterSum / float64(nh)
		stats["hunter_min_energy"] = hunterMin
		stats["hunter_max_energy"] = hunterMax
	}
	if np > 0 {
		stats["prey_avg_energy"] = preySum / float64(np)
		stats["prey_min_energy"] = preyMin
		stats["prey_max_energy"] = preyMax
	}

	for k, v := range w.sensors.Stats() {
		stats[k] = v
	}

	return stats
}

// Perf exposes the tick-phase timing collector.
func (w *World) Perf() *telemetry.PerfCollector {
	return w.perf
}

// Shutdown releases the sensor worker pool.
func (w *World) Shutdown() {
	w.sensors.Shutdown()
	slog.Info("world shut down", "tick", w.tick)
}

// updateEnergy runs metabolism for every live entity.
func (w *World) updateEnergy(dt float64) {
	query := w.filter.Query()
	for query.Next() {
		w.energy.UpdateEntityEnergy(queryHandle(&query), dt)
	}
}

// updateMotion integrates motion for every live entity.
func (w *World) updateMotion(dt float64) {
	query := w.filter.Query()
	for query.Next() {
		w.physics.IntegrateMotion(queryHandle(&query), dt)
	}
}

// removeStarvedHunters removes hunters at zero energy. Prey are exempt:
// a depleted prey freezes in place, stays in the world, and remains
// eatable. Observable behavior depends on the asymmetry.
func (w *World) removeStarvedHunters() {
	var dead []liveEntity

	query := w.filter.Query()
	for query.Next() {
		h := queryHandle(&query)
		if h.org.Kind == components.KindHunter && h.vit.Energy <= 0 {
			dead = append(dead, liveFrom(h, query.Entity()))
		}
	}

	for _, d := range dead {
		w.removeEntity(d)
	}
}

// predationPass lets every non-digesting hunter try one capture. The
// candidate is picked uniformly at random among prey inside the search
// radius; the (smaller) predation radius check inside ProcessPredation
// can still reject it.
func (w *World) predationPass() {
	var hunters []liveEntity
	preyByID := make(map[string]liveEntity)

	query := w.filter.Query()
	for query.Next() {
		h := queryHandle(&query)
		switch h.org.Kind {
		case components.KindHunter:
			hunters = append(hunters, liveFrom(h, query.Entity()))
		case components.KindPrey:
			preyByID[h.org.ID] = liveFrom(h, query.Entity())
		}
	}

	tree := w.sensors.Tree()
	eaten := make(map[string]liveEntity)

	for _, hunter := range hunters {
		if hunter.vit.Digestion > 0 {
			continue
		}

		searchRadius := w.searchRadius(hunter.handle)

		var candidates []string
		if tree != nil {
			// The index is the one built by the previous sensor
			// refresh; positions have moved since, which the tighter
			// predation radius check absorbs.
			for id := range tree.QueryCircle(hunter.pos.X, hunter.pos.Y, searchRadius) {
				if _, ok := preyByID[id]; ok {
					candidates = append(candidates, id)
				}
			}
			sort.Strings(candidates)
		} else {
			rr := searchRadius * searchRadius
			for id, prey := range preyByID {
				dx := prey.pos.X - hunter.pos.X
				dy := prey.pos.Y - hunter.pos.Y
				if dx*dx+dy*dy < rr {
					candidates = append(candidates, id)
				}
			}
			sort.Strings(candidates)
		}

		if len(candidates) == 0 {
			continue
		}

		target := preyByID[candidates[w.rng.Intn(len(candidates))]]
		w.predationAttempts++
		if w.energy.ProcessPredation(hunter.handle, target.handle) {
			eaten[target.id] = target
		}
	}

	for _, prey := range eaten {
		w.removeEntity(prey)
	}
}

// searchRadius is the candidate query radius: a fraction of the
// hunter's FOV range, before size/speed bonuses apply.
func (w *World) searchRadius(hunter handle) float64 {
	fovRange := hunter.sensor.FOVRange
	if fovRange == 0 {
		fovRange = w.cfg.Hunter.FOVRange
	}
	return fovRange * w.cfg.Predation.SearchRatio
}

// breedingPass processes eligible hunters, then eligible prey. Children
// queued this tick count against MAX_ENTITIES before they are added. A
// breeding parent halves its energy and restarts its cooldown.
func (w *World) breedingPass() {
	maxEntities := w.cfg.Entity.MaxEntities
	if len(w.byID) >= maxEntities {
		return
	}

	var hunters, preys []handle
	query := w.filter.Query()
	for query.Next() {
		h := queryHandle(&query)
		if h.org.Kind == components.KindHunter {
			hunters = append(hunters, h)
		} else {
			preys = append(preys, h)
		}
	}

	var children []Entity
	breedOne := func(h handle) {
		if !w.energy.CheckBreeding(h) || len(w.byID)+len(children) >= maxEntities {
			return
		}
		parent := snapshotEntity(h, w.tick)
		child := w.physics.SpawnEntity(h.org.Kind, &parent)

		h.vit.Energy *= 0.5
		h.org.Offspring++
		h.breed.Cooldown = w.physics.breedCooldown(h.org.Kind)

		childCopy := child
		w.energy.push(Event{Type: EventBreed, ParentID: h.org.ID, Child: &childCopy})
		children = append(children, child)
	}

	for _, h := range hunters {
		breedOne(h)
	}
	for _, h := range preys {
		breedOne(h)
	}

	for _, child := range children {
		w.addEntity(child)
	}
}

// snapshot deep-copies the live state and drains this tick's events.
func (w *World) snapshot() Snapshot {
	entities := make([]Entity, 0, len(w.byID))
	query := w.filter.Query()
	for query.Next() {
		entities = append(entities, snapshotEntity(queryHandle(&query), w.tick))
	}

	events := w.energy.Events()
	w.energy.ClearEvents()

	return Snapshot{
		Tick:     w.tick,
		Entities: entities,
		Events:   events,
		Counters: map[string]int64{
			"hunters":            int64(w.numHunters),
			"preys":              int64(w.numPrey),
			"predation_attempts": w.predationAttempts,
		},
	}
}

// handles collects a view of every live entity. Valid until the next
// structural change to the arena.
func (w *World) handles() []handle {
	out := make([]handle, 0, len(w.byID))
	query := w.filter.Query()
	for query.Next() {
		out = append(out, queryHandle(&query))
	}
	return out
}

// addEntity moves a spawn template into the arena.
func (w *World) addEntity(e Entity) ecs.Entity {
	pos := components.Position{X: e.X, Y: e.Y}
	mot := components.Motion{Angle: e.Angle, Speed: e.Speed, AngVel: e.AngVel}
	body := components.Body{Radius: e.Radius, SpawnProgress: e.SpawnProgress}
	vit := components.Vitals{Energy: e.Energy, Digestion: e.Digestion, Age: e.Age}
	breed := components.Breeding{SplitEnergy: e.SplitEnergy, Cooldown: e.BreedCooldown}
	sensor := components.Sensor{FOVDeg: e.FOVDeg, FOVRange: e.FOVRange, TargetID: e.TargetID}
	if len(e.Rays) > 0 {
		sensor.Rays = make([]components.RayHit, len(e.Rays))
		copy(sensor.Rays, e.Rays)
	}
	org := components.Organism{ID: e.ID, Kind: e.Kind, Generation: e.Generation, Offspring: e.Offspring}

	ent := w.mapper.NewEntity(&pos, &mot, &body, &vit, &breed, &sensor, &org)
	w.byID[e.ID] = ent

	if e.Kind == components.KindHunter {
		w.numHunters++
	} else {
		w.numPrey++
	}

	return ent
}

func (w *World) removeEntity(le liveEntity) {
	delete(w.byID, le.id)
	if le.kind == components.KindHunter {
		w.numHunters--
	} else {
		w.numPrey--
	}
	w.mapper.Remove(le.ent)
}

func (w *World) clearEntities() {
	var all []liveEntity
	query := w.filter.Query()
	for query.Next() {
		all = append(all, liveFrom(queryHandle(&query), query.Entity()))
	}
	for _, le := range all {
		w.removeEntity(le)
	}
	w.numHunters = 0
	w.numPrey = 0
}

// Restore replaces the world state with a decoded snapshot. The id
// counter is raised past every loaded id so restored worlds never
// reissue one.
func (w *World) Restore(snap Snapshot) {
	w.clearEntities()
	w.tick = snap.Tick
	w.energy.ClearEvents()

	var maxCounter uint64
	for _, e := range snap.Entities {
		w.addEntity(e)
		if n, ok := parseIDCounter(e.ID); ok && n > maxCounter {
			maxCounter = n
		}
	}
	w.physics.EnsureCounterAbove(maxCounter)
}

// parseIDCounter extracts the monotonic counter from an id of the form
// "<k>_<counter>_<suffix>".
func parseIDCounter(id string) (uint64, bool) {
	parts := strings.Split(id, "_")
	if len(parts) != 3 {
		return 0, false
	}
	n, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
