package systems

import (
	"math"

	"github.com/pthm-cable/reef/components"
)

// Pose is the read-only view of an entity needed to cast its rays.
type Pose struct {
	ID       string
	X, Y     float64
	Angle    float64
	FOVDeg   float64
	FOVRange float64
}

// Target is the read-only view of an entity as a raycast obstacle.
type Target struct {
	ID     string
	Kind   components.Kind
	X, Y   float64
	Radius float64
}

// RaycastTask is one entity's ray computation, submitted to the pool.
type RaycastTask struct {
	Pose
	RayCount int
}

// ComputeRays casts RayCount rays evenly spaced across the pose's FOV cone,
// centered on its heading, against every target. Each ray keeps the nearest
// intersection with a target's bounding circle, or max range on a miss.
func ComputeRays(pose Pose, targets []Target, rayCount int) []components.RayHit {
	if rayCount < 1 {
		rayCount = 1
	}

	rays := make([]components.RayHit, 0, rayCount)
	half := pose.FOVDeg * math.Pi / 180 / 2
	start := pose.Angle - half
	step := (half * 2) / float64(max(1, rayCount-1))

	for i := 0; i < rayCount; i++ {
		angle := start + float64(i)*step
		minDist := pose.FOVRange
		var hitKind components.Kind
		hitID := ""

		dx := math.Cos(angle)
		dy := math.Sin(angle)

		for t := range targets {
			other := &targets[t]
			if other.ID == pose.ID {
				continue
			}

			ox := other.X - pose.X
			oy := other.Y - pose.Y

			// Projection onto the ray; candidates behind the origin miss.
			proj := ox*dx + oy*dy
			if proj < 0 {
				continue
			}

			// Perpendicular distance squared to the circle center.
			closestX := ox - proj*dx
			closestY := oy - proj*dy
			d2 := closestX*closestX + closestY*closestY

			if d2 <= other.Radius*other.Radius {
				dist := proj - math.Sqrt(other.Radius*other.Radius-d2)
				if dist > 0 && dist < minDist {
					minDist = dist
					hitKind = other.Kind
					hitID = other.ID
				}
			}
		}

		rays = append(rays, components.RayHit{
			Angle:    angle,
			Distance: minDist,
			HitKind:  hitKind,
			HitID:    hitID,
		})
	}

	return rays
}

// NoHitRays is the degraded result for a failed or timed-out task: every
// ray reports max range and no hit. The batch continues regardless.
func NoHitRays(pose Pose, rayCount int) []components.RayHit {
	return ComputeRays(pose, nil, rayCount)
}
