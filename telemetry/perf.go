// Package telemetry provides per-window simulation statistics and
// rolling performance collection.
package telemetry

import (
	"sort"
	"time"
)

// Phase names for the simulation step.
const (
	PhaseEnergy    = "energy"
	PhasePhysics   = "physics"
	PhaseCleanup   = "cleanup"
	PhasePredation = "predation"
	PhaseBreeding  = "breeding"
	PhaseSensors   = "sensors"
	PhaseSnapshot  = "snapshot"
)

// PerfSample holds timing data for a single tick.
type PerfSample struct {
	TickDuration time.Duration
	Phases       map[string]time.Duration
}

// PerfCollector tracks per-phase timings over a rolling window of ticks.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	tickStart     time.Time
	phaseStart    time.Time
	lastPhase     string
}

// NewPerfCollector creates a performance collector averaging over
// windowSize ticks.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
	}
}

// StartTick begins timing a new simulation tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	p.currentPhases = make(map[string]time.Duration)
	p.lastPhase = ""
}

// StartPhase begins timing a phase, closing the previous one.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// EndTick finishes the current tick and records its sample.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}

	p.samples[p.writeIndex] = PerfSample{
		TickDuration: now.Sub(p.tickStart),
		Phases:       p.currentPhases,
	}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// AvgTick returns the mean tick duration across the window.
func (p *PerfCollector) AvgTick() time.Duration {
	if p.sampleCount == 0 {
		return 0
	}
	var sum time.Duration
	for i := 0; i < p.sampleCount; i++ {
		sum += p.samples[i].TickDuration
	}
	return sum / time.Duration(p.sampleCount)
}

// AvgPhase returns the mean duration of one phase across the window.
func (p *PerfCollector) AvgPhase(phase string) time.Duration {
	if p.sampleCount == 0 {
		return 0
	}
	var sum time.Duration
	for i := 0; i < p.sampleCount; i++ {
		sum += p.samples[i].Phases[phase]
	}
	return sum / time.Duration(p.sampleCount)
}

// PhaseNames returns all phases seen in the window, sorted.
func (p *PerfCollector) PhaseNames() []string {
	seen := make(map[string]struct{})
	for i := 0; i < p.sampleCount; i++ {
		for name := range p.samples[i].Phases {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PerfRecord is the CSV-serializable form of a perf window.
type PerfRecord struct {
	WindowEndTick int64   `csv:"window_end"`
	AvgTickMs     float64 `csv:"avg_tick_ms"`
	EnergyMs      float64 `csv:"energy_ms"`
	PhysicsMs     float64 `csv:"physics_ms"`
	CleanupMs     float64 `csv:"cleanup_ms"`
	PredationMs   float64 `csv:"predation_ms"`
	BreedingMs    float64 `csv:"breeding_ms"`
	SensorsMs     float64 `csv:"sensors_ms"`
	SnapshotMs    float64 `csv:"snapshot_ms"`
}

// Record captures the current window averages as a CSV record.
func (p *PerfCollector) Record(windowEndTick int64) PerfRecord {
	ms := func(d time.Duration) float64 {
		return float64(d.Microseconds()) / 1000
	}
	return PerfRecord{
		WindowEndTick: windowEndTick,
		AvgTickMs:     ms(p.AvgTick()),
		EnergyMs:      ms(p.AvgPhase(PhaseEnergy)),
		PhysicsMs:     ms(p.AvgPhase(PhasePhysics)),
		CleanupMs:     ms(p.AvgPhase(PhaseCleanup)),
		PredationMs:   ms(p.AvgPhase(PhasePredation)),
		BreedingMs:    ms(p.AvgPhase(PhaseBreeding)),
		SensorsMs:     ms(p.AvgPhase(PhaseSensors)),
		SnapshotMs:    ms(p.AvgPhase(PhaseSnapshot)),
	}
}
