package main

import (
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/pkg/profile"

	"github.com/pthm-cable/reef/components"
	"github.com/pthm-cable/reef/config"
	"github.com/pthm-cable/reef/sim"
	"github.com/pthm-cable/reef/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	hunters := flag.Int("hunters", 3, "Initial hunter count")
	prey := flag.Int("prey", 40, "Initial prey count")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	logStats := flag.Bool("log-stats", false, "Output window stats via slog")
	serial := flag.Bool("serial", false, "Disable the spatial index and worker pool")
	restorePath := flag.String("restore", "", "Snapshot file to restore before running")
	dumpPath := flag.String("dump", "", "Snapshot file to write on exit")
	profileMode := flag.String("profile", "", "Profiling mode: cpu or mem")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	statsWindowSec := cfg.Telemetry.StatsWindow
	if *statsWindow > 0 {
		statsWindowSec = *statsWindow
	}

	world, err := sim.New(cfg, sim.Options{Seed: rngSeed, Serial: *serial})
	if err != nil {
		slog.Error("failed to create world", "error", err)
		os.Exit(1)
	}
	defer world.Shutdown()

	if *restorePath != "" {
		snap, err := sim.LoadFile(*restorePath)
		if err != nil {
			slog.Error("failed to restore snapshot", "error", err, "path", *restorePath)
			os.Exit(1)
		}
		world.Restore(snap)
		slog.Info("restored snapshot", "path", *restorePath, "tick", snap.Tick, "entities", len(snap.Entities))
	} else {
		world.Initialize(*hunters, *prey)
	}

	out, err := telemetry.NewOutputManager(*outputDir)
	if err != nil {
		slog.Error("failed to create output dir", "error", err, "dir", *outputDir)
		os.Exit(1)
	}
	defer out.Close()
	if err := out.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config snapshot", "error", err)
	}

	switch *profileMode {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	case "mem":
		defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath(".")).Stop()
	}

	slog.Info("starting simulation",
		"seed", rngSeed,
		"hunters", *hunters,
		"prey", *prey,
		"max_ticks", *maxTicks,
		"serial", *serial,
	)

	collector := telemetry.NewCollector(statsWindowSec, cfg.Physics.DT)
	driver := &wanderDriver{cfg: cfg, rng: rand.New(rand.NewSource(rngSeed + 1))}

	var lastSnap sim.Snapshot
	for {
		driver.apply(world, lastSnap.Entities)
		snap := world.Step()
		lastSnap = snap

		feedCollector(collector, snap)

		if collector.WindowClosed(snap.Tick) {
			hunterEnergies, preyEnergies := splitEnergies(snap.Entities)
			stats := collector.Flush(snap.Tick, cfg.Physics.DT, hunterEnergies, preyEnergies)
			perfRec := world.Perf().Record(snap.Tick)

			if err := out.WriteTelemetry(stats); err != nil {
				slog.Error("failed to write telemetry", "error", err)
			}
			if err := out.WritePerf(perfRec); err != nil {
				slog.Error("failed to write perf", "error", err)
			}
			if *logStats {
				slog.Info("window stats",
					"tick", snap.Tick,
					"hunters", stats.HunterCount,
					"preys", stats.PreyCount,
					"births", stats.HunterBirths+stats.PreyBirths,
					"predations", stats.Predations,
					"avg_tick_ms", float64(world.Perf().AvgTick().Microseconds())/1000,
				)
			}
		}

		if len(snap.Entities) == 0 {
			slog.Info("population extinct", "tick", snap.Tick)
			break
		}
		if *maxTicks > 0 && snap.Tick >= int64(*maxTicks) {
			slog.Info("max ticks reached", "tick", snap.Tick)
			break
		}
	}

	if *dumpPath != "" {
		if err := sim.DumpFile(*dumpPath, lastSnap); err != nil {
			slog.Error("failed to dump snapshot", "error", err, "path", *dumpPath)
		} else {
			slog.Info("dumped snapshot", "path", *dumpPath, "tick", lastSnap.Tick)
		}
	}
}

// wanderDriver is the built-in stand-in for an external controller. It
// occasionally retargets each entity's speed and angular velocity within
// the kind's configured range.
type wanderDriver struct {
	cfg *config.Config
	rng *rand.Rand
}

func (d *wanderDriver) apply(world *sim.World, entities []sim.Entity) {
	for _, e := range entities {
		if d.rng.Float64() >= 0.05 {
			continue
		}
		ac := d.cfg.Hunter
		if e.Kind == components.KindPrey {
			ac = d.cfg.Prey
		}
		speed := ac.SpeedMin + d.rng.Float64()*(ac.SpeedMax-ac.SpeedMin)
		angVel := (d.rng.Float64()*2 - 1) * ac.AngVelMax
		world.SetAction(e.ID, speed, angVel)
	}
}

// feedCollector maps one tick's events onto the stats counters. A
// despawn is a starvation only when the entity actually left the world
// and was not eaten; frozen prey emit advisory despawns every tick but
// remain in the snapshot.
func feedCollector(c *telemetry.Collector, snap sim.Snapshot) {
	alive := make(map[string]struct{}, len(snap.Entities))
	for _, e := range snap.Entities {
		alive[e.ID] = struct{}{}
	}

	eaten := make(map[string]struct{})
	for _, ev := range snap.Events {
		switch ev.Type {
		case sim.EventPredation:
			c.RecordPredation()
			eaten[ev.TargetID] = struct{}{}
		case sim.EventGrow:
			c.RecordGrow()
		case sim.EventBreed:
			if ev.Child != nil {
				c.RecordBirth(ev.Child.Kind)
			}
		}
	}
	for _, ev := range snap.Events {
		if ev.Type != sim.EventDespawn {
			continue
		}
		if _, wasEaten := eaten[ev.ActorID]; wasEaten {
			continue
		}
		if _, stillAlive := alive[ev.ActorID]; stillAlive {
			continue
		}
		c.RecordStarvation()
	}

	if n, ok := snap.Counters["predation_attempts"]; ok {
		for i := int64(0); i < n; i++ {
			c.RecordPredationAttempt()
		}
	}
}

func splitEnergies(entities []sim.Entity) (hunterEnergies, preyEnergies []float64) {
	for _, e := range entities {
		if e.Kind == components.KindHunter {
			hunterEnergies = append(hunterEnergies, e.Energy)
		} else {
			preyEnergies = append(preyEnergies, e.Energy)
		}
	}
	return hunterEnergies, preyEnergies
}
