package systems

import "time"

// Scheduler defaults, used when the corresponding option is zero.
const (
	defaultParallelThreshold = 20
	defaultTimingHistory     = 30
	defaultTimingWindow      = 10
	defaultSerialFastAvg     = time.Millisecond
)

// AdaptiveScheduler decides, per batch, whether sensor computation is
// worth fanning out. Small populations and batches that have recently
// been finishing fast stay serial to avoid goroutine overhead.
type AdaptiveScheduler struct {
	parallelThreshold int
	timingHistory     int
	timingWindow      int
	serialFastAvg     time.Duration
	workers           int

	history []time.Duration
}

// NewAdaptiveScheduler creates a scheduler for a pool of the given size.
// Zero options fall back to defaults.
func NewAdaptiveScheduler(workers, parallelThreshold, timingHistory, timingWindow int, serialFastAvg time.Duration) *AdaptiveScheduler {
	if parallelThreshold <= 0 {
		parallelThreshold = defaultParallelThreshold
	}
	if timingHistory <= 0 {
		timingHistory = defaultTimingHistory
	}
	if timingWindow <= 0 {
		timingWindow = defaultTimingWindow
	}
	if serialFastAvg <= 0 {
		serialFastAvg = defaultSerialFastAvg
	}
	if workers < 1 {
		workers = 1
	}
	return &AdaptiveScheduler{
		parallelThreshold: parallelThreshold,
		timingHistory:     timingHistory,
		timingWindow:      timingWindow,
		serialFastAvg:     serialFastAvg,
		workers:           workers,
	}
}

// ShouldParallelize reports whether a batch of n entities should run on
// the worker pool.
func (s *AdaptiveScheduler) ShouldParallelize(n int) bool {
	if n < s.parallelThreshold {
		return false
	}

	// If recent batches have been cheap, serial is still faster.
	if len(s.history) >= s.timingWindow {
		var sum time.Duration
		for _, d := range s.history[len(s.history)-s.timingWindow:] {
			sum += d
		}
		if sum/time.Duration(s.timingWindow) < s.serialFastAvg {
			return false
		}
	}

	return true
}

// RecordTime records one batch duration, keeping a bounded history.
func (s *AdaptiveScheduler) RecordTime(elapsed time.Duration) {
	s.history = append(s.history, elapsed)
	if len(s.history) > s.timingHistory {
		s.history = s.history[1:]
	}
}

// OptimalBatchSize suggests a chunk size for callers that split batches
// manually, clamped to [5, 20].
func (s *AdaptiveScheduler) OptimalBatchSize(n int) int {
	size := n / (s.workers * 2)
	if size < 5 {
		return 5
	}
	if size > 20 {
		return 20
	}
	return size
}
