// Package systems provides the spatial index, the ray caster, and the
// parallel sensor machinery.
package systems

import "math"

// Quadtree node limits. Objects are kept in circle form, so an object may
// live in every child its bounding circle overlaps.
const (
	nodeCapacity = 8
	maxDepth     = 6
)

// IDSet is the result type of quadtree queries. An entity reachable from
// several tree branches still appears exactly once.
type IDSet map[string]struct{}

// Contains reports whether id is in the set.
func (s IDSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// AABB is an axis-aligned bounding box.
type AABB struct {
	X, Y          float64
	Width, Height float64
}

// Intersects reports whether two boxes overlap.
func (b AABB) Intersects(o AABB) bool {
	return !(b.X+b.Width < o.X || b.X > o.X+o.Width ||
		b.Y+b.Height < o.Y || b.Y > o.Y+o.Height)
}

// IntersectsCircle reports whether the box overlaps a circle.
func (b AABB) IntersectsCircle(cx, cy, radius float64) bool {
	closestX := math.Max(b.X, math.Min(cx, b.X+b.Width))
	closestY := math.Max(b.Y, math.Min(cy, b.Y+b.Height))
	dx := cx - closestX
	dy := cy - closestY
	return dx*dx+dy*dy <= radius*radius
}

type quadObject struct {
	id     string
	x, y   float64
	radius float64
}

type quadNode struct {
	bounds   AABB
	depth    int
	objects  []quadObject
	divided  bool
	children [4]*quadNode
}

func newQuadNode(bounds AABB, depth int) *quadNode {
	return &quadNode{bounds: bounds, depth: depth}
}

// subdivide splits the node into four equal quadrants and redistributes
// its members through the same circle-aware insert.
func (n *quadNode) subdivide() {
	if n.divided {
		return
	}

	x, y := n.bounds.X, n.bounds.Y
	w, h := n.bounds.Width/2, n.bounds.Height/2

	n.children[0] = newQuadNode(AABB{x, y, w, h}, n.depth+1)
	n.children[1] = newQuadNode(AABB{x + w, y, w, h}, n.depth+1)
	n.children[2] = newQuadNode(AABB{x, y + h, w, h}, n.depth+1)
	n.children[3] = newQuadNode(AABB{x + w, y + h, w, h}, n.depth+1)
	n.divided = true

	objects := n.objects
	n.objects = nil
	for _, obj := range objects {
		n.insertToChildren(obj)
	}
}

// insertToChildren places the object into every child its circle overlaps.
func (n *quadNode) insertToChildren(obj quadObject) {
	for _, child := range n.children {
		if child.bounds.IntersectsCircle(obj.x, obj.y, obj.radius) {
			child.insert(obj)
		}
	}
}

func (n *quadNode) insert(obj quadObject) bool {
	if !n.bounds.IntersectsCircle(obj.x, obj.y, obj.radius) {
		return false
	}

	if n.divided {
		n.insertToChildren(obj)
		return true
	}

	if len(n.objects) < nodeCapacity || n.depth >= maxDepth {
		n.objects = append(n.objects, obj)
		return true
	}

	n.subdivide()
	n.insertToChildren(obj)
	return true
}

func (n *quadNode) queryRange(bounds AABB, result IDSet) {
	if !n.bounds.Intersects(bounds) {
		return
	}

	for _, obj := range n.objects {
		if bounds.IntersectsCircle(obj.x, obj.y, obj.radius) {
			result[obj.id] = struct{}{}
		}
	}

	if n.divided {
		for _, child := range n.children {
			child.queryRange(bounds, result)
		}
	}
}

func (n *quadNode) queryCircle(cx, cy, radius float64, result IDSet) {
	if !n.bounds.IntersectsCircle(cx, cy, radius) {
		return
	}

	for _, obj := range n.objects {
		dx := obj.x - cx
		dy := obj.y - cy
		reach := radius + obj.radius
		if dx*dx+dy*dy <= reach*reach {
			result[obj.id] = struct{}{}
		}
	}

	if n.divided {
		for _, child := range n.children {
			child.queryCircle(cx, cy, radius, result)
		}
	}
}

func (n *quadNode) queryNearest(x, y, maxDist float64) (string, float64, bool) {
	if !n.bounds.IntersectsCircle(x, y, maxDist) {
		return "", 0, false
	}

	bestID := ""
	bestDist := maxDist
	found := false

	for _, obj := range n.objects {
		dx := obj.x - x
		dy := obj.y - y
		dist := math.Sqrt(dx*dx+dy*dy) - obj.radius
		if dist < bestDist {
			bestDist = dist
			bestID = obj.id
			found = true
		}
	}

	if n.divided {
		for _, child := range n.children {
			if id, dist, ok := child.queryNearest(x, y, bestDist); ok && dist < bestDist {
				bestID, bestDist = id, dist
				found = true
			}
		}
	}

	if !found {
		return "", 0, false
	}
	return bestID, bestDist, true
}

// QuadTree is a bounded quadtree over circles, keyed by entity id.
//
// Build-once / read-many: the coordinating goroutine rebuilds the tree
// before sensor fan-out and workers only read it afterwards, so no
// locking happens on the query path.
type QuadTree struct {
	root          *quadNode
	width, height float64
}

// NewQuadTree creates a quadtree covering [0,width]x[0,height].
func NewQuadTree(width, height float64) *QuadTree {
	return &QuadTree{
		root:   newQuadNode(AABB{0, 0, width, height}, 0),
		width:  width,
		height: height,
	}
}

// Clear removes all objects.
func (t *QuadTree) Clear() {
	t.root = newQuadNode(AABB{0, 0, t.width, t.height}, 0)
}

// Insert adds an entity's bounding circle. An out-of-bounds circle is
// silently ignored; the caller never needs the result.
func (t *QuadTree) Insert(id string, x, y, radius float64) bool {
	return t.root.insert(quadObject{id: id, x: x, y: y, radius: radius})
}

// QueryRange returns the ids of all entities whose circles overlap the box.
func (t *QuadTree) QueryRange(x, y, width, height float64) IDSet {
	result := make(IDSet)
	t.root.queryRange(AABB{x, y, width, height}, result)
	return result
}

// QueryCircle returns the ids of all entities within radius of (cx,cy),
// counting an entity as inside when the circles touch:
// (dx^2+dy^2) <= (radius+objectRadius)^2.
func (t *QuadTree) QueryCircle(cx, cy, radius float64) IDSet {
	result := make(IDSet)
	t.root.queryCircle(cx, cy, radius, result)
	return result
}

// QueryNearest returns the entity whose surface is nearest to (x,y)
// within maxDist, or ok=false if none qualifies.
func (t *QuadTree) QueryNearest(x, y, maxDist float64) (id string, dist float64, ok bool) {
	return t.root.queryNearest(x, y, maxDist)
}

// TreeStats describes the current tree structure.
type TreeStats struct {
	TotalNodes int
	LeafNodes  int
	MaxDepth   int
}

// Stats walks the tree and reports node counts and structural depth.
func (t *QuadTree) Stats() TreeStats {
	var walk func(n *quadNode) (nodes, leaves, depth int)
	walk = func(n *quadNode) (int, int, int) {
		if !n.divided {
			return 1, 1, n.depth
		}
		nodes, leaves, depth := 1, 0, n.depth
		for _, child := range n.children {
			cn, cl, cd := walk(child)
			nodes += cn
			leaves += cl
			if cd > depth {
				depth = cd
			}
		}
		return nodes, leaves, depth
	}

	nodes, leaves, depth := walk(t.root)
	return TreeStats{TotalNodes: nodes, LeafNodes: leaves, MaxDepth: depth}
}
