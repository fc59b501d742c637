package telemetry

import (
	"sort"
	"testing"
	"time"
)

// ---------- Sampling ----------

func TestPerfCollector_RecordsTickAndPhases(t *testing.T) {
	p := NewPerfCollector(10)

	p.StartTick()
	p.StartPhase(PhaseEnergy)
	time.Sleep(time.Millisecond)
	p.StartPhase(PhasePhysics)
	time.Sleep(time.Millisecond)
	p.EndTick()

	if p.AvgTick() <= 0 {
		t.Error("expected positive average tick duration")
	}
	if p.AvgPhase(PhaseEnergy) <= 0 {
		t.Error("expected positive energy phase duration")
	}
	if p.AvgPhase(PhasePhysics) <= 0 {
		t.Error("expected positive physics phase duration")
	}
	if p.AvgPhase(PhaseSensors) != 0 {
		t.Error("expected zero for a phase never started")
	}
}

func TestPerfCollector_EmptyAverages(t *testing.T) {
	p := NewPerfCollector(10)
	if p.AvgTick() != 0 || p.AvgPhase(PhaseEnergy) != 0 {
		t.Error("expected zero averages before any tick")
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	p := NewPerfCollector(4)

	for i := 0; i < 10; i++ {
		p.StartTick()
		p.StartPhase(PhaseEnergy)
		p.EndTick()
	}

	if p.sampleCount != 4 {
		t.Errorf("sample count = %d, want window size 4", p.sampleCount)
	}
}

func TestPerfCollector_PhaseNamesSorted(t *testing.T) {
	p := NewPerfCollector(10)

	p.StartTick()
	p.StartPhase(PhaseSensors)
	p.StartPhase(PhaseEnergy)
	p.StartPhase(PhaseBreeding)
	p.EndTick()

	names := p.PhaseNames()
	if len(names) != 3 {
		t.Fatalf("expected 3 phase names, got %v", names)
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("names not sorted: %v", names)
	}
}

// ---------- CSV record ----------

func TestPerfCollector_Record(t *testing.T) {
	p := NewPerfCollector(10)

	p.StartTick()
	p.StartPhase(PhaseEnergy)
	time.Sleep(2 * time.Millisecond)
	p.EndTick()

	rec := p.Record(300)
	if rec.WindowEndTick != 300 {
		t.Errorf("window end = %d, want 300", rec.WindowEndTick)
	}
	if rec.AvgTickMs <= 0 {
		t.Errorf("avg tick ms = %g, want positive", rec.AvgTickMs)
	}
	if rec.EnergyMs <= 0 {
		t.Errorf("energy ms = %g, want positive", rec.EnergyMs)
	}
	if rec.SnapshotMs != 0 {
		t.Errorf("snapshot ms = %g, want 0 for an unused phase", rec.SnapshotMs)
	}
}

func TestNewPerfCollector_WindowFloor(t *testing.T) {
	p := NewPerfCollector(0)
	if p.windowSize != 60 {
		t.Errorf("window size = %d, want default 60", p.windowSize)
	}
}
