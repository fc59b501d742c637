package telemetry

import (
	"math"
	"testing"
)

// ---------- Energy aggregates ----------

func TestComputeEnergyStats_Empty(t *testing.T) {
	es := ComputeEnergyStats(nil)
	if es.Mean != 0 || es.Std != 0 || es.P50 != 0 {
		t.Errorf("expected zero stats for empty input, got %+v", es)
	}
}

func TestComputeEnergyStats_SingleValue(t *testing.T) {
	es := ComputeEnergyStats([]float64{42})
	if es.Mean != 42 {
		t.Errorf("mean = %g, want 42", es.Mean)
	}
	if es.Std != 0 {
		t.Errorf("std = %g, want 0 for a single sample", es.Std)
	}
	if es.P50 != 42 {
		t.Errorf("p50 = %g, want 42", es.P50)
	}
}

func TestComputeEnergyStats_KnownValues(t *testing.T) {
	es := ComputeEnergyStats([]float64{10, 20, 30, 40, 50})
	if math.Abs(es.Mean-30) > 1e-9 {
		t.Errorf("mean = %g, want 30", es.Mean)
	}
	if es.P50 != 30 {
		t.Errorf("p50 = %g, want 30", es.P50)
	}
	if es.Std <= 0 {
		t.Errorf("std = %g, want positive for spread values", es.Std)
	}
}

func TestComputeEnergyStats_InputNotMutated(t *testing.T) {
	values := []float64{30, 10, 20}
	ComputeEnergyStats(values)
	if values[0] != 30 || values[1] != 10 || values[2] != 20 {
		t.Errorf("input reordered: %v", values)
	}
}
