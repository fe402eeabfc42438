package broadphase

import (
	"math"
	"slices"

	"github.com/akmonengine/impulse/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// maxCellSpan - bodies covering more cells than this on one axis skip the grid
// and are tested against every body (planes, huge static ground boxes)
const maxCellSpan = 32

// CellKey - coordinates of a cell in 3D space
type CellKey struct {
	X, Y, Z int
}

// Cell - indices of the bodies inside a cell
type Cell struct {
	bodyIndices []int
}

// Grid - uniform spatial grid with hashing.
// It rebuilds its cells and its pairs on every Update.
type Grid struct {
	cellSize float64
	cells    []Cell
	cellMask int

	bodies []*actor.RigidBody
	large  []int
	pairs  []Pair
	seen   []int
}

// NewGrid creates a grid, numCells is rounded up to a power of two
func NewGrid(cellSize float64, numCells int) *Grid {
	numCells = nextPowerOfTwo(numCells)

	cells := make([]Cell, numCells)
	for i := range cells {
		cells[i].bodyIndices = make([]int, 0, 8)
	}

	return &Grid{
		cellSize: cellSize,
		cells:    cells,
		cellMask: numCells - 1,
	}
}

// nextPowerOfTwo - rounds up to the next power of 2
func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}

func (g *Grid) AddBody(body *actor.RigidBody) {
	if !slices.Contains(g.bodies, body) {
		g.bodies = append(g.bodies, body)
	}
}

func (g *Grid) RemoveBody(body *actor.RigidBody) {
	i := slices.Index(g.bodies, body)
	if i < 0 {
		return
	}
	g.bodies = slices.Delete(g.bodies, i, i+1)

	g.pairs = slices.DeleteFunc(g.pairs, func(p Pair) bool {
		return p.BodyA == body || p.BodyB == body
	})
}

func (g *Grid) CollisionPairs() []Pair {
	return g.pairs
}

// Update rebuilds the cells from the current AABBs, then collects the pairs
func (g *Grid) Update() {
	g.clear()
	for i, body := range g.bodies {
		g.insert(i, body)
	}
	g.sortCells()
	g.findPairs()
}

func (g *Grid) clear() {
	for i := range g.cells {
		g.cells[i].bodyIndices = g.cells[i].bodyIndices[:0]
	}
	g.large = g.large[:0]
	g.pairs = g.pairs[:0]
}

// insert - registers a body in every cell it covers
func (g *Grid) insert(bodyIndex int, body *actor.RigidBody) {
	aabb := body.AABB()
	minCell := g.worldToCell(aabb.Min)
	maxCell := g.worldToCell(aabb.Max)

	if maxCell.X-minCell.X > maxCellSpan || maxCell.Y-minCell.Y > maxCellSpan || maxCell.Z-minCell.Z > maxCellSpan {
		g.large = append(g.large, bodyIndex)
		return
	}

	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				cellIdx := g.hashCell(CellKey{x, y, z})
				g.cells[cellIdx].bodyIndices = append(g.cells[cellIdx].bodyIndices, bodyIndex)
			}
		}
	}
}

func (g *Grid) sortCells() {
	for i := range g.cells {
		if len(g.cells[i].bodyIndices) > 1 {
			slices.Sort(g.cells[i].bodyIndices)
		}
	}
}

// findPairs - deterministic: bodies are visited in insertion order,
// a pair is only emitted from its lowest index
func (g *Grid) findPairs() {
	if cap(g.seen) < len(g.bodies) {
		g.seen = make([]int, len(g.bodies))
	}
	g.seen = g.seen[:len(g.bodies)]
	for i := range g.seen {
		g.seen[i] = -1
	}

	isLarge := make(map[int]bool, len(g.large))
	for _, idx := range g.large {
		isLarge[idx] = true
	}

	for bodyIdx, bodyA := range g.bodies {
		if isLarge[bodyIdx] {
			// a large body is tested against everything after it
			for otherIdx := bodyIdx + 1; otherIdx < len(g.bodies); otherIdx++ {
				g.testPair(bodyIdx, otherIdx)
			}
			continue
		}

		// large bodies before this one already tested it
		for _, otherIdx := range g.large {
			if otherIdx > bodyIdx {
				g.testPair(bodyIdx, otherIdx)
			}
		}

		aabb := bodyA.AABB()
		minCell := g.worldToCell(aabb.Min)
		maxCell := g.worldToCell(aabb.Max)
		for x := minCell.X; x <= maxCell.X; x++ {
			for y := minCell.Y; y <= maxCell.Y; y++ {
				for z := minCell.Z; z <= maxCell.Z; z++ {
					cellIdx := g.hashCell(CellKey{x, y, z})
					for _, otherIdx := range g.cells[cellIdx].bodyIndices {
						// avoid duplicates (A,B) and (B,A)
						if otherIdx <= bodyIdx {
							continue
						}
						g.testPair(bodyIdx, otherIdx)
					}
				}
			}
		}
	}
}

func (g *Grid) testPair(bodyIdx, otherIdx int) {
	if g.seen[otherIdx] == bodyIdx {
		return
	}
	g.seen[otherIdx] = bodyIdx

	bodyA, bodyB := g.bodies[bodyIdx], g.bodies[otherIdx]
	if bodyA.AABB().Overlaps(bodyB.AABB()) {
		g.pairs = append(g.pairs, makePair(bodyA, bodyB))
	}
}

// RayIntersect tests every body: the grid has no ordering to prune with
func (g *Grid) RayIntersect(start, end mgl64.Vec3) []*RayIntersection {
	var hits []*RayIntersection
	for _, body := range g.bodies {
		if _, _, ok := body.AABB().IntersectSegment(start, end); !ok {
			continue
		}
		hits = castRay(hits, body, start, end)
	}

	sortHits(hits)
	return hits
}

// worldToCell - world position to cell coordinates
func (g *Grid) worldToCell(pos mgl64.Vec3) CellKey {
	return CellKey{
		X: int(math.Floor(pos.X() / g.cellSize)),
		Y: int(math.Floor(pos.Y() / g.cellSize)),
		Z: int(math.Floor(pos.Z() / g.cellSize)),
	}
}

// hashCell - hashes a cell to an index in the array
func (g *Grid) hashCell(key CellKey) int {
	h := (key.X * 73856093) ^ (key.Y * 19349663) ^ (key.Z * 83492791)
	return h & g.cellMask
}
