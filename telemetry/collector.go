package telemetry

import "github.com/pthm-cable/reef/components"

// Collector accumulates per-tick events into fixed windows of simulation
// time and produces WindowStats when a window closes.
type Collector struct {
	windowTicks int64

	hunterBirths    int
	preyBirths      int
	predations      int
	predationsTried int
	starvations     int
	growEvents      int
}

// NewCollector creates a stats collector. windowSec is the window length
// in simulation seconds, dt the seconds per tick.
func NewCollector(windowSec, dt float64) *Collector {
	ticks := int64(windowSec / dt)
	if ticks < 1 {
		ticks = 1
	}
	return &Collector{windowTicks: ticks}
}

// RecordBirth records one breed event.
func (c *Collector) RecordBirth(kind components.Kind) {
	if kind == components.KindHunter {
		c.hunterBirths++
	} else {
		c.preyBirths++
	}
}

// RecordPredation records one successful capture.
func (c *Collector) RecordPredation() {
	c.predations++
}

// RecordPredationAttempt records one capture attempt, successful or not.
func (c *Collector) RecordPredationAttempt() {
	c.predationsTried++
}

// RecordStarvation records one hunter removed at zero energy.
func (c *Collector) RecordStarvation() {
	c.starvations++
}

// RecordGrow records one prey grow event.
func (c *Collector) RecordGrow() {
	c.growEvents++
}

// WindowClosed reports whether the given tick ends a stats window.
func (c *Collector) WindowClosed(tick int64) bool {
	return tick > 0 && tick%c.windowTicks == 0
}

// Flush assembles the window's stats from the accumulated counters and
// the energy samples taken at window end, then resets the counters.
func (c *Collector) Flush(tick int64, dt float64, hunterEnergies, preyEnergies []float64) WindowStats {
	hunter := ComputeEnergyStats(hunterEnergies)
	prey := ComputeEnergyStats(preyEnergies)

	stats := WindowStats{
		WindowEndTick:    tick,
		SimTimeSec:       float64(tick) * dt,
		HunterCount:      len(hunterEnergies),
		PreyCount:        len(preyEnergies),
		HunterBirths:     c.hunterBirths,
		PreyBirths:       c.preyBirths,
		Predations:       c.predations,
		PredationsTried:  c.predationsTried,
		Starvations:      c.starvations,
		GrowEvents:       c.growEvents,
		HunterEnergyMean: hunter.Mean,
		HunterEnergyStd:  hunter.Std,
		HunterEnergyP50:  hunter.P50,
		PreyEnergyMean:   prey.Mean,
		PreyEnergyStd:    prey.Std,
		PreyEnergyP50:    prey.P50,
	}

	c.hunterBirths = 0
	c.preyBirths = 0
	c.predations = 0
	c.predationsTried = 0
	c.starvations = 0
	c.growEvents = 0

	return stats
}
