package epa

import (
	"math"

	"github.com/akmonengine/impulse/gjk"
	"github.com/akmonengine/impulse/pool"
	"github.com/go-gl/mathgl/mgl64"
)

// visibilityEpsilon - a vertex must be this far in front of a face to see it
const visibilityEpsilon = 1e-10

// Face is a triangle of the polyhedron.
// Edge i goes from Vertices[i] to Vertices[(i+1)%3], Neighbors[i] is the face across it.
type Face struct {
	Vertices  [3]int
	Neighbors [3]int
	Normal    mgl64.Vec3 // Outward normal
	Distance  float64    // Distance from the origin to the face plane
	Active    bool
}

// horizonEdge is a boundary edge of the visible region, oriented like the
// removed face it belonged to. outside is the face kept on the other side.
type horizonEdge struct {
	from, to    int
	outside     int
	outsideEdge int
}

// Polyhedron - arena of support points shared by index between faces
type Polyhedron struct {
	Vertices []gjk.SupportPoint
	Faces    []Face

	horizon []horizonEdge
	edges   map[edgeKey][2]int
}

type edgeKey struct{ from, to int }

// PolyhedronPool keeps the arenas and their capacity between runs
var PolyhedronPool = pool.New(func(p *Polyhedron) {
	p.Vertices = p.Vertices[:0]
	p.Faces = p.Faces[:0]
	p.horizon = p.horizon[:0]
	clear(p.edges)
})

func (p *Polyhedron) addVertex(v gjk.SupportPoint) int {
	p.Vertices = append(p.Vertices, v)
	return len(p.Vertices) - 1
}

// addFace appends the triangle (a, b, c), its normal follows the winding
func (p *Polyhedron) addFace(a, b, c int) int {
	face := Face{
		Vertices:  [3]int{a, b, c},
		Neighbors: [3]int{-1, -1, -1},
		Active:    true,
	}
	p.computePlane(&face)
	p.Faces = append(p.Faces, face)
	return len(p.Faces) - 1
}

func (p *Polyhedron) computePlane(face *Face) {
	va := p.Vertices[face.Vertices[0]].Point
	vb := p.Vertices[face.Vertices[1]].Point
	vc := p.Vertices[face.Vertices[2]].Point

	normal := vb.Sub(va).Cross(vc.Sub(va))
	length := normal.Len()
	if length < 1e-12 {
		// degenerate triangle: never the closest face
		face.Normal = mgl64.Vec3{}
		face.Distance = math.Inf(1)
		return
	}
	face.Normal = normal.Mul(1 / length)
	face.Distance = face.Normal.Dot(va)
}

// init builds the tetrahedron BCD, ACB, CAD, DAB with outward normals
func (p *Polyhedron) init(simplex *gjk.Simplex) bool {
	for i := 0; i < 4; i++ {
		p.addVertex(simplex.Points[i])
	}

	// orientation of the tetrahedron
	a, b, c, d := p.Vertices[0].Point, p.Vertices[1].Point, p.Vertices[2].Point, p.Vertices[3].Point
	volume := b.Sub(a).Cross(c.Sub(a)).Dot(d.Sub(a))
	if math.Abs(volume) < 1e-12 {
		return false
	}

	faces := [4][3]int{{1, 2, 3}, {0, 2, 1}, {2, 0, 3}, {3, 0, 1}}
	if volume < 0 {
		// flipping every face keeps each one pointing away from the opposite vertex
		for i := range faces {
			faces[i][1], faces[i][2] = faces[i][2], faces[i][1]
		}
	}
	for _, f := range faces {
		p.addFace(f[0], f[1], f[2])
	}
	return p.link(0)
}

// link connects the neighbours of every active face from index first.
// Faces before first are only linked to newer faces through their missing links.
func (p *Polyhedron) link(first int) bool {
	if p.edges == nil {
		p.edges = make(map[edgeKey][2]int)
	}
	clear(p.edges)
	edges := p.edges
	for fi := first; fi < len(p.Faces); fi++ {
		face := &p.Faces[fi]
		if !face.Active {
			continue
		}
		for e := 0; e < 3; e++ {
			edges[edgeKey{face.Vertices[e], face.Vertices[(e+1)%3]}] = [2]int{fi, e}
		}
	}

	for fi := first; fi < len(p.Faces); fi++ {
		face := &p.Faces[fi]
		if !face.Active {
			continue
		}
		for e := 0; e < 3; e++ {
			if face.Neighbors[e] >= 0 {
				continue
			}
			other, ok := edges[edgeKey{face.Vertices[(e+1)%3], face.Vertices[e]}]
			if !ok {
				return false
			}
			face.Neighbors[e] = other[0]
			p.Faces[other[0]].Neighbors[other[1]] = fi
		}
	}
	return true
}

// closestFace returns the active face nearest to the origin
func (p *Polyhedron) closestFace() int {
	best := -1
	bestDistance := math.Inf(1)
	for i := range p.Faces {
		face := &p.Faces[i]
		if face.Active && face.Distance < bestDistance {
			bestDistance = face.Distance
			best = i
		}
	}
	return best
}

func (p *Polyhedron) isVisible(fi int, point mgl64.Vec3) bool {
	face := &p.Faces[fi]
	return face.Normal.Dot(point.Sub(p.Vertices[face.Vertices[0]].Point)) > visibilityEpsilon
}

// expand removes every face visible from the new vertex and stitches the
// horizon to it. It returns false if the horizon could not be closed.
func (p *Polyhedron) expand(fi int, vertex gjk.SupportPoint) bool {
	p.horizon = p.horizon[:0]
	point := vertex.Point

	// 1. silhouette, depth-first from the face the vertex was found for
	p.Faces[fi].Active = false
	for e := 0; e < 3; e++ {
		p.silhouette(p.Faces[fi].Neighbors[e], fi, point)
	}
	if len(p.horizon) < 3 {
		return false
	}

	// 2. fan of new faces from the horizon to the vertex
	vi := p.addVertex(vertex)
	first := len(p.Faces)
	for _, edge := range p.horizon {
		nf := p.addFace(edge.from, edge.to, vi)
		p.Faces[nf].Neighbors[0] = edge.outside
		p.Faces[edge.outside].Neighbors[edge.outsideEdge] = nf
	}

	// 3. links between the new faces themselves
	return p.link(first)
}

// silhouette visits face fi, entered from face from
func (p *Polyhedron) silhouette(fi, from int, point mgl64.Vec3) {
	face := &p.Faces[fi]
	if !face.Active {
		return
	}

	entry := 0
	for e := 0; e < 3; e++ {
		if face.Neighbors[e] == from {
			entry = e
			break
		}
	}

	if !p.isVisible(fi, point) {
		// edge entry of this face, reversed, belonged to the removed face
		p.horizon = append(p.horizon, horizonEdge{
			from:        face.Vertices[(entry+1)%3],
			to:          face.Vertices[entry],
			outside:     fi,
			outsideEdge: entry,
		})
		return
	}

	face.Active = false
	p.silhouette(face.Neighbors[(entry+1)%3], fi, point)
	p.silhouette(p.Faces[fi].Neighbors[(entry+2)%3], fi, point)
}

// barycentric returns the coordinates of point in the triangle of face fi.
// Real-Time Collision Detection, Ericson, 3.4.
func (p *Polyhedron) barycentric(fi int, point mgl64.Vec3) (float64, float64, float64) {
	face := &p.Faces[fi]
	a := p.Vertices[face.Vertices[0]].Point
	b := p.Vertices[face.Vertices[1]].Point
	c := p.Vertices[face.Vertices[2]].Point

	v0 := b.Sub(a)
	v1 := c.Sub(a)
	v2 := point.Sub(a)
	d00 := v0.Dot(v0)
	d01 := v0.Dot(v1)
	d11 := v1.Dot(v1)
	d20 := v2.Dot(v0)
	d21 := v2.Dot(v1)
	denom := d00*d11 - d01*d01

	v := (d11*d20 - d01*d21) / denom
	w := (d00*d21 - d01*d20) / denom
	return 1 - v - w, v, w
}

// ActiveFaces counts the faces still on the hull
func (p *Polyhedron) ActiveFaces() int {
	n := 0
	for i := range p.Faces {
		if p.Faces[i].Active {
			n++
		}
	}
	return n
}
