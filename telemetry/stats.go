package telemetry

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for one stats window.
type WindowStats struct {
	WindowEndTick int64   `csv:"window_end"`
	SimTimeSec    float64 `csv:"sim_time"`

	// Population at window end
	HunterCount int `csv:"hunters"`
	PreyCount   int `csv:"preys"`

	// Events during the window
	HunterBirths    int `csv:"hunter_births"`
	PreyBirths      int `csv:"prey_births"`
	Predations      int `csv:"predations"`
	PredationsTried int `csv:"predations_tried"`
	Starvations     int `csv:"starvations"`
	GrowEvents      int `csv:"grow_events"`

	// Energy distribution sampled at window end
	HunterEnergyMean float64 `csv:"hunter_energy_mean"`
	HunterEnergyStd  float64 `csv:"hunter_energy_std"`
	HunterEnergyP50  float64 `csv:"hunter_energy_p50"`
	PreyEnergyMean   float64 `csv:"prey_energy_mean"`
	PreyEnergyStd    float64 `csv:"prey_energy_std"`
	PreyEnergyP50    float64 `csv:"prey_energy_p50"`
}

// EnergyStats summarizes one kind's energy distribution.
type EnergyStats struct {
	Mean float64
	Std  float64
	P50  float64
}

// ComputeEnergyStats calculates mean, standard deviation, and median of
// the given energy values. Zero values are returned for an empty slice.
func ComputeEnergyStats(values []float64) EnergyStats {
	if len(values) == 0 {
		return EnergyStats{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	es := EnergyStats{
		Mean: stat.Mean(sorted, nil),
		P50:  stat.Quantile(0.5, stat.Empirical, sorted, nil),
	}
	if len(sorted) > 1 {
		es.Std = stat.StdDev(sorted, nil)
	}
	return es
}
