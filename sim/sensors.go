package sim

import (
	"time"

	"github.com/pthm-cable/reef/components"
	"github.com/pthm-cable/reef/config"
	"github.com/pthm-cable/reef/systems"
)

// SensorSystem refreshes every entity's ray-cast perception once per
// tick. In indexed mode it rebuilds the quadtree single-threaded, then
// lets the adaptive scheduler pick serial or worker-pool execution.
type SensorSystem struct {
	cfg          *config.Config
	indexed      bool
	caster       *systems.Raycaster
	sched        *systems.AdaptiveScheduler
	batchTimeout time.Duration
}

// NewSensorSystem creates a sensor system. With indexed=false every
// entity scans the full population on the caller's goroutine and no
// spatial index is maintained.
func NewSensorSystem(cfg *config.Config, indexed bool) *SensorSystem {
	s := &SensorSystem{cfg: cfg, indexed: indexed}
	if indexed {
		s.caster = systems.NewRaycaster(cfg.World.Width, cfg.World.Height, cfg.Runtime.Workers)
		s.sched = systems.NewAdaptiveScheduler(
			s.caster.Workers(),
			cfg.Runtime.ParallelThreshold,
			cfg.Runtime.TimingHistory,
			cfg.Runtime.TimingWindow,
			time.Duration(cfg.Runtime.SerialFastAvgMs*float64(time.Millisecond)),
		)
		s.batchTimeout = time.Duration(cfg.Runtime.BatchTimeoutMs * float64(time.Millisecond))
	}
	return s
}

// UpdateAll recomputes rays for every entity. selectedID, when set,
// keeps that entity at full ray resolution while the rest drop to half.
func (s *SensorSystem) UpdateAll(handles []handle, selectedID string) {
	rayCount := s.cfg.Sensors.RayCount

	targets := make([]systems.Target, 0, len(handles))
	for _, h := range handles {
		targets = append(targets, systems.Target{
			ID:     h.org.ID,
			Kind:   h.org.Kind,
			X:      h.pos.X,
			Y:      h.pos.Y,
			Radius: h.body.Radius,
		})
	}

	if !s.indexed {
		for _, h := range handles {
			h.sensor.Rays = systems.ComputeRays(s.pose(h), targets, rayCount)
			s.lockTarget(h)
		}
		return
	}

	// Build once, read many: the tree and target snapshot are complete
	// before any worker looks at them.
	s.caster.Rebuild(targets)

	tasks := make([]systems.RaycastTask, 0, len(handles))
	for _, h := range handles {
		count := rayCount
		if selectedID != "" && h.org.ID != selectedID {
			count = max(8, rayCount/2)
		}
		tasks = append(tasks, systems.RaycastTask{Pose: s.pose(h), RayCount: count})
	}

	start := time.Now()
	var results map[string][]components.RayHit
	if s.sched.ShouldParallelize(len(tasks)) {
		results = s.caster.ComputeBatch(tasks, s.batchTimeout)
	} else {
		results = s.computeSerialIndexed(tasks)
	}
	s.sched.RecordTime(time.Since(start))

	for _, h := range handles {
		if rays, ok := results[h.org.ID]; ok {
			h.sensor.Rays = rays
			s.lockTarget(h)
		}
	}
}

// computeSerialIndexed runs the tasks on the calling goroutine, still
// pruned through the freshly built quadtree.
func (s *SensorSystem) computeSerialIndexed(tasks []systems.RaycastTask) map[string][]components.RayHit {
	tree := s.caster.Tree()
	results := make(map[string][]components.RayHit, len(tasks))

	for _, task := range tasks {
		candidates := tree.QueryCircle(task.X, task.Y, task.FOVRange)
		targets := make([]systems.Target, 0, len(candidates))
		for id := range candidates {
			if id == task.ID {
				continue
			}
			if t, ok := s.caster.Target(id); ok {
				targets = append(targets, t)
			}
		}
		results[task.ID] = systems.ComputeRays(task.Pose, targets, task.RayCount)
	}

	return results
}

// lockTarget records the nearest ray hit as the entity's sensor lock.
func (s *SensorSystem) lockTarget(h handle) {
	best := ""
	bestDist := 0.0
	for _, ray := range h.sensor.Rays {
		if ray.HitID == "" {
			continue
		}
		if best == "" || ray.Distance < bestDist {
			best = ray.HitID
			bestDist = ray.Distance
		}
	}
	h.sensor.TargetID = best
}

// pose resolves the FOV cone for one entity, falling back to the kind
// defaults when the entity carries none.
func (s *SensorSystem) pose(h handle) systems.Pose {
	fovDeg, fovRange := s.fov(h)
	return systems.Pose{
		ID:       h.org.ID,
		X:        h.pos.X,
		Y:        h.pos.Y,
		Angle:    h.mot.Angle,
		FOVDeg:   fovDeg,
		FOVRange: fovRange,
	}
}

func (s *SensorSystem) fov(h handle) (deg, rng float64) {
	if s.cfg.Sensors.UseEntityFOV && h.sensor.FOVDeg != 0 {
		deg = h.sensor.FOVDeg
		rng = h.sensor.FOVRange
		if rng == 0 {
			rng = s.cfg.Hunter.FOVRange
		}
		return deg, rng
	}
	if h.org.Kind == components.KindHunter {
		return s.cfg.Hunter.FOVDeg, s.cfg.Hunter.FOVRange
	}
	return s.cfg.Prey.FOVDeg, s.cfg.Prey.FOVRange
}

// Tree exposes the quadtree for the world's predation pass, or nil in
// unindexed mode.
func (s *SensorSystem) Tree() *systems.QuadTree {
	if s.caster == nil {
		return nil
	}
	return s.caster.Tree()
}

// Stats reports raycast and quadtree performance counters.
func (s *SensorSystem) Stats() map[string]float64 {
	if s.caster == nil {
		return map[string]float64{}
	}
	return s.caster.Stats()
}

// Shutdown releases the worker pool.
func (s *SensorSystem) Shutdown() {
	if s.caster != nil {
		s.caster.Shutdown()
	}
}
