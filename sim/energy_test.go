package sim

import (
	"math"
	"testing"

	"github.com/pthm-cable/reef/components"
)

func energyHandle(kind components.Kind, energy float64) handle {
	h, _ := testHandle(kind, 600, 400, 0, 0, energy)
	return h
}

// ---------- Prey metabolism ----------

func TestUpdatePrey_IdleProducesNetEnergy(t *testing.T) {
	cfg := testConfig(t)
	s := NewEnergySystem(cfg)
	h := energyHandle(components.KindPrey, 50)

	s.UpdateEntityEnergy(h, 1.0)

	// Idle prey: production 1.2 against metabolism 0.15, no motion costs.
	want := 50 + (cfg.Energy.PreyProduction*cfg.Energy.ProductionEfficiency-cfg.Energy.PreyMetabolism)*1.0
	if math.Abs(h.vit.Energy-want) > 1e-9 {
		t.Errorf("energy = %g, want %g", h.vit.Energy, want)
	}
}

func TestUpdatePrey_MotionCostsReduceNet(t *testing.T) {
	cfg := testConfig(t)
	s := NewEnergySystem(cfg)

	idle := energyHandle(components.KindPrey, 50)
	s.UpdateEntityEnergy(idle, 1.0)

	moving := energyHandle(components.KindPrey, 50)
	moving.mot.Speed = cfg.Energy.SpeedReference * 2
	moving.mot.AngVel = math.Pi / 2
	s.UpdateEntityEnergy(moving, 1.0)

	if moving.vit.Energy >= idle.vit.Energy {
		t.Errorf("moving prey energy %g should trail idle prey %g", moving.vit.Energy, idle.vit.Energy)
	}
}

func TestUpdatePrey_CappedAtMax(t *testing.T) {
	cfg := testConfig(t)
	s := NewEnergySystem(cfg)
	h := energyHandle(components.KindPrey, cfg.Energy.MaxPrey)

	s.UpdateEntityEnergy(h, 1.0)

	if h.vit.Energy > cfg.Energy.MaxPrey {
		t.Errorf("energy %g exceeds prey cap %g", h.vit.Energy, cfg.Energy.MaxPrey)
	}
}

func TestUpdatePrey_GrowEventAboveThreshold(t *testing.T) {
	cfg := testConfig(t)
	cfg.Energy.GrowEventThreshold = 0.1
	s := NewEnergySystem(cfg)
	h := energyHandle(components.KindPrey, 50)

	s.UpdateEntityEnergy(h, 1.0) // idle net gain 1.05 clears the threshold

	events := s.Events()
	if len(events) != 1 || events[0].Type != EventGrow {
		t.Fatalf("expected a single grow event, got %+v", events)
	}
	if events[0].ActorID != "test" {
		t.Errorf("grow actor = %q", events[0].ActorID)
	}
	if events[0].EnergyGain <= cfg.Energy.GrowEventThreshold {
		t.Errorf("grow gain %g should exceed threshold", events[0].EnergyGain)
	}
}

func TestUpdatePrey_NoGrowEventBelowThreshold(t *testing.T) {
	cfg := testConfig(t)
	s := NewEnergySystem(cfg)
	h := energyHandle(components.KindPrey, 50)

	s.UpdateEntityEnergy(h, 1.0/60) // per-tick gain is far below 0.5

	if events := s.Events(); len(events) != 0 {
		t.Errorf("expected no events, got %+v", events)
	}
}

// ---------- Hunter metabolism ----------

func TestUpdateHunter_PureDrain(t *testing.T) {
	cfg := testConfig(t)
	s := NewEnergySystem(cfg)
	h := energyHandle(components.KindHunter, 50)

	s.UpdateEntityEnergy(h, 1.0)

	want := 50 - cfg.Energy.HunterMetabolism*1.0
	if math.Abs(h.vit.Energy-want) > 1e-9 {
		t.Errorf("energy = %g, want %g", h.vit.Energy, want)
	}
}

func TestUpdateHunter_DigestionCountsDown(t *testing.T) {
	s := NewEnergySystem(testConfig(t))
	h := energyHandle(components.KindHunter, 50)
	h.vit.Digestion = 0.4

	s.UpdateEntityEnergy(h, 0.25)
	if math.Abs(h.vit.Digestion-0.15) > 1e-9 {
		t.Errorf("digestion = %g, want 0.15", h.vit.Digestion)
	}

	s.UpdateEntityEnergy(h, 0.25)
	if h.vit.Digestion != 0 {
		t.Errorf("digestion = %g, want floor at 0", h.vit.Digestion)
	}
}

func TestUpdateHunter_DespawnEventAtZero(t *testing.T) {
	s := NewEnergySystem(testConfig(t))
	h := energyHandle(components.KindHunter, 0.1)

	s.UpdateEntityEnergy(h, 1.0)

	events := s.Events()
	if len(events) != 1 || events[0].Type != EventDespawn {
		t.Fatalf("expected a despawn event, got %+v", events)
	}
}

// ---------- Predation ----------

func TestProcessPredation_Success(t *testing.T) {
	cfg := testConfig(t)
	s := NewEnergySystem(cfg)

	hunter, _ := testHandle(components.KindHunter, 600, 400, 0, 30, 80)
	hunter.org.ID = "hunter"
	hunter.sensor.FOVRange = 150
	prey, _ := testHandle(components.KindPrey, 610, 400, 0, 0, 40)
	prey.org.ID = "prey"

	if !s.ProcessPredation(hunter, prey) {
		t.Fatal("expected capture at distance 10")
	}

	if math.Abs(hunter.vit.Energy-130) > 1e-9 {
		t.Errorf("hunter energy = %g, want 80+50", hunter.vit.Energy)
	}
	if hunter.vit.Digestion != cfg.Predation.DigestionDuration {
		t.Errorf("digestion = %g, want %g", hunter.vit.Digestion, cfg.Predation.DigestionDuration)
	}

	events := s.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != EventPredation || events[0].ActorID != "hunter" || events[0].TargetID != "prey" {
		t.Errorf("first event = %+v, want predation hunter->prey", events[0])
	}
	if events[1].Type != EventDespawn || events[1].ActorID != "prey" {
		t.Errorf("second event = %+v, want prey despawn", events[1])
	}
}

func TestProcessPredation_GainCappedAtHunterMax(t *testing.T) {
	cfg := testConfig(t)
	s := NewEnergySystem(cfg)

	hunter := energyHandle(components.KindHunter, cfg.Energy.MaxHunter-10)
	prey, _ := testHandle(components.KindPrey, 600, 400, 0, 0, 40)

	if !s.ProcessPredation(hunter, prey) {
		t.Fatal("expected capture")
	}
	if hunter.vit.Energy != cfg.Energy.MaxHunter {
		t.Errorf("energy = %g, want capped at %g", hunter.vit.Energy, cfg.Energy.MaxHunter)
	}
}

func TestProcessPredation_FailsWhileDigesting(t *testing.T) {
	s := NewEnergySystem(testConfig(t))

	hunter := energyHandle(components.KindHunter, 80)
	hunter.vit.Digestion = 1.0
	prey := energyHandle(components.KindPrey, 40)

	if s.ProcessPredation(hunter, prey) {
		t.Error("expected failure while digesting")
	}
	if len(s.Events()) != 0 {
		t.Error("failed capture must not emit events")
	}
}

func TestProcessPredation_FailsOutOfRange(t *testing.T) {
	s := NewEnergySystem(testConfig(t))

	hunter, _ := testHandle(components.KindHunter, 100, 100, 0, 30, 80)
	prey, _ := testHandle(components.KindPrey, 500, 500, 0, 0, 40)

	if s.ProcessPredation(hunter, prey) {
		t.Error("expected failure beyond predation radius")
	}
	if hunter.vit.Digestion != 0 {
		t.Error("failed capture must not start digestion")
	}
	if len(s.Events()) != 0 {
		t.Error("failed capture must not emit events")
	}
}

// ---------- Predation radius ----------

func TestPredationRadius_WithinConfiguredBounds(t *testing.T) {
	cfg := testConfig(t)
	s := NewEnergySystem(cfg)

	slow := energyHandle(components.KindHunter, 80)
	slow.sensor.FOVRange = 150
	slow.mot.Speed = 0
	if r := s.PredationRadius(slow); r < cfg.Predation.MinRadius || r > cfg.Predation.MaxRadius {
		t.Errorf("radius %g outside [%g,%g]", r, cfg.Predation.MinRadius, cfg.Predation.MaxRadius)
	}

	fast := energyHandle(components.KindHunter, 80)
	fast.sensor.FOVRange = 150
	fast.mot.Speed = 1000
	fast.body.Radius = 100
	if r := s.PredationRadius(fast); r != cfg.Predation.MaxRadius {
		t.Errorf("extreme hunter radius = %g, want clamp at %g", r, cfg.Predation.MaxRadius)
	}
}

func TestPredationRadius_GrowsWithSpeed(t *testing.T) {
	cfg := testConfig(t)
	// Widen the clamp so the bonus shows through.
	cfg.Predation.MinRadius = 0
	cfg.Predation.MaxRadius = 1000
	s := NewEnergySystem(cfg)

	slow := energyHandle(components.KindHunter, 80)
	slow.sensor.FOVRange = 150
	slow.mot.Speed = 0

	fast := energyHandle(components.KindHunter, 80)
	fast.sensor.FOVRange = 150
	fast.mot.Speed = 80

	if s.PredationRadius(fast) <= s.PredationRadius(slow) {
		t.Error("expected faster hunter to have a larger capture radius")
	}
}

func TestPredationRadius_FallsBackToKindFOV(t *testing.T) {
	cfg := testConfig(t)
	s := NewEnergySystem(cfg)

	h := energyHandle(components.KindHunter, 80)
	h.sensor.FOVRange = 0 // entity carries no FOV, e.g. restored from an old dump

	if r := s.PredationRadius(h); r < cfg.Predation.MinRadius {
		t.Errorf("radius %g below minimum with FOV fallback", r)
	}
}

// ---------- Breeding gate ----------

func TestCheckBreeding(t *testing.T) {
	s := NewEnergySystem(testConfig(t))

	tests := []struct {
		name     string
		energy   float64
		cooldown float64
		want     bool
	}{
		{"ready", 130, 0, true},
		{"exactly at threshold", 120, 0, true},
		{"low energy", 100, 0, false},
		{"cooling down", 130, 0.5, false},
		{"both blocked", 100, 0.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := energyHandle(components.KindPrey, tt.energy)
			h.breed.Cooldown = tt.cooldown
			if got := s.CheckBreeding(h); got != tt.want {
				t.Errorf("CheckBreeding = %v, want %v", got, tt.want)
			}
		})
	}
}

// ---------- Event buffer ----------

func TestEvents_CopyAndClear(t *testing.T) {
	s := NewEnergySystem(testConfig(t))
	s.push(Event{Type: EventGrow, ActorID: "a"})

	events := s.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	// The returned slice is a copy; mutating it does not touch the buffer.
	events[0].ActorID = "mutated"
	if s.Events()[0].ActorID != "a" {
		t.Error("Events returned a live reference to the buffer")
	}

	s.ClearEvents()
	if len(s.Events()) != 0 {
		t.Error("expected empty buffer after ClearEvents")
	}
}
