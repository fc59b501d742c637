package systems

import (
	"math"
	"testing"

	"github.com/pthm-cable/reef/components"
)

func testPose() Pose {
	return Pose{
		ID:       "self",
		X:        0,
		Y:        0,
		Angle:    0,
		FOVDeg:   90,
		FOVRange: 200,
	}
}

// ---------- Geometry ----------

func TestComputeRays_MissReportsMaxRange(t *testing.T) {
	rays := ComputeRays(testPose(), nil, 8)
	if len(rays) != 8 {
		t.Fatalf("expected 8 rays, got %d", len(rays))
	}
	for i, ray := range rays {
		if ray.Distance != 200 {
			t.Errorf("ray %d: expected max range 200, got %g", i, ray.Distance)
		}
		if ray.HitID != "" || ray.HitKind != "" {
			t.Errorf("ray %d: expected no hit, got id=%q kind=%q", i, ray.HitID, ray.HitKind)
		}
	}
}

func TestComputeRays_DirectHitDistance(t *testing.T) {
	targets := []Target{{ID: "t", Kind: components.KindPrey, X: 100, Y: 0, Radius: 10}}
	// Odd ray count puts the middle ray exactly on the heading.
	rays := ComputeRays(testPose(), targets, 9)

	mid := rays[4]
	if mid.HitID != "t" {
		t.Fatalf("expected center ray to hit, got id=%q", mid.HitID)
	}
	if math.Abs(mid.Distance-90) > 1e-9 {
		t.Errorf("expected distance 90 to circle surface, got %g", mid.Distance)
	}
	if mid.HitKind != components.KindPrey {
		t.Errorf("expected prey hit kind, got %q", mid.HitKind)
	}
}

func TestComputeRays_TargetBehindIgnored(t *testing.T) {
	targets := []Target{{ID: "behind", X: -100, Y: 0, Radius: 10}}
	rays := ComputeRays(testPose(), targets, 9)
	for i, ray := range rays {
		if ray.HitID != "" {
			t.Errorf("ray %d: hit a target behind the origin", i)
		}
	}
}

func TestComputeRays_NearestTargetWins(t *testing.T) {
	targets := []Target{
		{ID: "far", X: 150, Y: 0, Radius: 10},
		{ID: "near", X: 60, Y: 0, Radius: 10},
	}
	rays := ComputeRays(testPose(), targets, 9)
	if rays[4].HitID != "near" {
		t.Errorf("expected nearest target on center ray, got %q", rays[4].HitID)
	}
	if math.Abs(rays[4].Distance-50) > 1e-9 {
		t.Errorf("expected distance 50, got %g", rays[4].Distance)
	}
}

func TestComputeRays_SelfExcluded(t *testing.T) {
	targets := []Target{{ID: "self", X: 50, Y: 0, Radius: 10}}
	rays := ComputeRays(testPose(), targets, 9)
	for i, ray := range rays {
		if ray.HitID != "" {
			t.Errorf("ray %d: entity hit itself", i)
		}
	}
}

func TestComputeRays_BeyondRangeIgnored(t *testing.T) {
	targets := []Target{{ID: "t", X: 300, Y: 0, Radius: 10}}
	rays := ComputeRays(testPose(), targets, 9)
	if rays[4].HitID != "" {
		t.Errorf("expected no hit beyond FOV range, got %q", rays[4].HitID)
	}
	if rays[4].Distance != 200 {
		t.Errorf("expected max range, got %g", rays[4].Distance)
	}
}

// ---------- Fan layout ----------

func TestComputeRays_FanCenteredOnHeading(t *testing.T) {
	pose := testPose()
	pose.Angle = math.Pi / 4
	rays := ComputeRays(pose, nil, 9)

	half := pose.FOVDeg * math.Pi / 180 / 2
	if math.Abs(rays[0].Angle-(pose.Angle-half)) > 1e-9 {
		t.Errorf("first ray angle %g, want %g", rays[0].Angle, pose.Angle-half)
	}
	if math.Abs(rays[8].Angle-(pose.Angle+half)) > 1e-9 {
		t.Errorf("last ray angle %g, want %g", rays[8].Angle, pose.Angle+half)
	}
	if math.Abs(rays[4].Angle-pose.Angle) > 1e-9 {
		t.Errorf("center ray angle %g, want heading %g", rays[4].Angle, pose.Angle)
	}
}

func TestComputeRays_MinimumOneRay(t *testing.T) {
	rays := ComputeRays(testPose(), nil, 0)
	if len(rays) != 1 {
		t.Errorf("expected ray count clamped to 1, got %d", len(rays))
	}
}

func TestNoHitRays_AllMaxRange(t *testing.T) {
	rays := NoHitRays(testPose(), 12)
	if len(rays) != 12 {
		t.Fatalf("expected 12 rays, got %d", len(rays))
	}
	for i, ray := range rays {
		if ray.Distance != 200 || ray.HitID != "" {
			t.Errorf("ray %d: expected degraded max-range miss", i)
		}
	}
}

// ---------- Benchmarks ----------

func BenchmarkComputeRays(b *testing.B) {
	targets := make([]Target, 50)
	for i := range targets {
		targets[i] = Target{
			ID:     "t",
			X:      float64(i%10) * 30,
			Y:      float64(i/10) * 30,
			Radius: 10,
		}
	}
	pose := testPose()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ComputeRays(pose, targets, 24)
	}
}
