package systems

import (
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/pthm-cable/reef/components"
)

// raycastResult joins one task's rays back to the coordinator.
type raycastResult struct {
	id   string
	rays []components.RayHit
}

// batchItem carries a task together with the immutable structures built
// for its batch. A straggler finishing after its batch was abandoned
// still reads the tree it was dispatched with, never a newer one.
type batchItem struct {
	task    RaycastTask
	tree    *QuadTree
	targets map[string]Target
	out     chan<- raycastResult
}

// Raycaster owns the quadtree, the per-tick target snapshot, and a
// fixed-size pool of persistent workers. The coordinator rebuilds the
// tree and snapshot single-threaded, then fans tasks out; workers only
// read, so the hot path needs no locks.
type Raycaster struct {
	workers int

	tree    *QuadTree
	targets map[string]Target
	width   float64
	height  float64

	tasks   chan batchItem
	stop    chan struct{}
	wg      sync.WaitGroup
	running bool

	// Perf counters, coordinator-only.
	buildTime time.Duration
	castTime  time.Duration
	totalRays int
	entities  int
}

// NewRaycaster creates a raycaster for a world of the given size.
// workers <= 0 selects max(2, NumCPU).
func NewRaycaster(width, height float64, workers int) *Raycaster {
	if workers <= 0 {
		workers = max(2, runtime.NumCPU())
	}
	return &Raycaster{
		workers: workers,
		tree:    NewQuadTree(width, height),
		targets: make(map[string]Target),
		width:   width,
		height:  height,
	}
}

// Workers returns the pool size.
func (r *Raycaster) Workers() int {
	return r.workers
}

// Tree returns the most recently built quadtree.
func (r *Raycaster) Tree() *QuadTree {
	return r.tree
}

// Target looks up an entity in the current target snapshot.
func (r *Raycaster) Target(id string) (Target, bool) {
	t, ok := r.targets[id]
	return t, ok
}

// Rebuild replaces the quadtree and target snapshot from the given
// entities. A fresh tree is built every time; batches already in flight
// keep reading the one they were dispatched with.
func (r *Raycaster) Rebuild(targets []Target) {
	start := time.Now()

	tree := NewQuadTree(r.width, r.height)
	snapshot := make(map[string]Target, len(targets))
	for _, t := range targets {
		tree.Insert(t.ID, t.X, t.Y, t.Radius)
		snapshot[t.ID] = t
	}
	r.tree = tree
	r.targets = snapshot

	r.buildTime = time.Since(start)
	r.entities = len(targets)
}

// startWorkers launches the persistent worker goroutines.
func (r *Raycaster) startWorkers() {
	if r.running {
		return
	}

	r.tasks = make(chan batchItem, r.workers)
	r.stop = make(chan struct{})
	r.running = true

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
}

func (r *Raycaster) worker() {
	defer r.wg.Done()

	for {
		select {
		case <-r.stop:
			return
		case item, ok := <-r.tasks:
			if !ok {
				return
			}
			item.out <- runTask(item)
		}
	}
}

// runTask computes one entity's rays against the quadtree candidates.
// A panicking task degrades to max-range no-hit rays for that entity
// only; the batch always completes.
func runTask(item batchItem) (res raycastResult) {
	task := item.task

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("raycast task failed", "entity", task.ID, "panic", rec)
			res = raycastResult{id: task.ID, rays: NoHitRays(task.Pose, task.RayCount)}
		}
	}()

	candidates := item.tree.QueryCircle(task.X, task.Y, task.FOVRange)
	targets := make([]Target, 0, len(candidates))
	for id := range candidates {
		if id == task.ID {
			continue
		}
		if t, ok := item.targets[id]; ok {
			targets = append(targets, t)
		}
	}

	return raycastResult{id: task.ID, rays: ComputeRays(task.Pose, targets, task.RayCount)}
}

// ComputeBatch runs all tasks on the worker pool and joins the results
// into a map. With a positive timeout, entities whose results have not
// arrived by the deadline get max-range no-hit rays and their late
// results are discarded.
func (r *Raycaster) ComputeBatch(tasks []RaycastTask, timeout time.Duration) map[string][]components.RayHit {
	if len(tasks) == 0 {
		return map[string][]components.RayHit{}
	}

	r.startWorkers()

	start := time.Now()

	// Buffered to len(tasks) so neither workers nor stragglers ever
	// block sending into an abandoned batch.
	out := make(chan raycastResult, len(tasks))
	tree, targets := r.tree, r.targets

	go func() {
		for _, task := range tasks {
			select {
			case r.tasks <- batchItem{task: task, tree: tree, targets: targets, out: out}:
			case <-r.stop:
				return
			}
		}
	}()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	results := make(map[string][]components.RayHit, len(tasks))
	received := 0
collect:
	for received < len(tasks) {
		select {
		case res := <-out:
			results[res.id] = res.rays
			received++
		case <-deadline:
			slog.Warn("raycast batch deadline exceeded", "received", received, "total", len(tasks))
			break collect
		}
	}

	// Fail soft: whatever is missing casts nothing this tick.
	totalRays := 0
	for _, task := range tasks {
		totalRays += task.RayCount
		if _, ok := results[task.ID]; !ok {
			results[task.ID] = NoHitRays(task.Pose, task.RayCount)
		}
	}

	r.castTime = time.Since(start)
	r.totalRays = totalRays

	return results
}

// Stats reports raycast performance and quadtree structure counters.
func (r *Raycaster) Stats() map[string]float64 {
	tree := r.tree.Stats()
	raysPerSec := 0.0
	if r.castTime > 0 {
		raysPerSec = float64(r.totalRays) / r.castTime.Seconds()
	}
	return map[string]float64{
		"quadtree_build_ms":  float64(r.buildTime.Microseconds()) / 1000,
		"raycast_ms":         float64(r.castTime.Microseconds()) / 1000,
		"total_rays":         float64(r.totalRays),
		"rays_per_second":    raysPerSec,
		"entities_processed": float64(r.entities),
		"num_workers":        float64(r.workers),
		"quadtree_nodes":     float64(tree.TotalNodes),
		"quadtree_leaves":    float64(tree.LeafNodes),
		"quadtree_depth":     float64(tree.MaxDepth),
	}
}

// Shutdown stops the worker pool and waits for workers to exit.
func (r *Raycaster) Shutdown() {
	if !r.running {
		return
	}
	close(r.stop)
	r.wg.Wait()
	r.running = false
}
