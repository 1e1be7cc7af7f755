package geometry

import (
	"math"
	"sort"

	"github.com/ctessum/geom"
)

// ringEpsilon is the distance below which two coordinates are treated as the
// same point when deciding ring containment.
const ringEpsilon = 1e-9

// RingArea returns the signed shoelace area of r. Counter-clockwise rings are
// positive. A repeated closing vertex contributes nothing.
func RingArea(r geom.Path) float64 {
	n := len(r)
	if n < 3 {
		return 0
	}
	a := 0.0
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		a += r[i].X*r[j].Y - r[j].X*r[i].Y
	}
	return a / 2
}

// Area returns the planar area of p.
//
// Rings are classified by nesting depth rather than winding order: a ring
// inside an even number of other rings is a shell, inside an odd number a hole.
// This matches what overlay libraries emit, where ring orientation is not
// guaranteed.
func Area(p geom.Polygon) float64 {
	if len(p) == 0 {
		return 0
	}
	if len(p) == 1 {
		return math.Abs(RingArea(p[0]))
	}
	depth := ringDepths(p)
	total := 0.0
	for i, r := range p {
		a := math.Abs(RingArea(r))
		if depth[i]%2 == 0 {
			total += a
		} else {
			total -= a
		}
	}
	if total < 0 {
		return 0
	}
	return total
}

// ringDepths returns, for each ring, how many other rings contain it.
func ringDepths(p geom.Polygon) []int {
	depth := make([]int, len(p))
	for i := range p {
		for j := range p {
			if i == j {
				continue
			}
			if ringContains(p[j], p[i]) {
				depth[i]++
			}
		}
	}
	return depth
}

// ringContains reports whether inner lies inside outer. Vertices lying on the
// boundary of outer are inconclusive and skipped; rings whose vertices and
// edge midpoints all lie on outer are treated as not contained.
func ringContains(outer, inner geom.Path) bool {
	if len(outer) < 3 || len(inner) < 3 {
		return false
	}
	ob := PathBounds(outer)
	ib := PathBounds(inner)
	if !ob.Contains(ib) {
		return false
	}
	if math.Abs(RingArea(inner)) > math.Abs(RingArea(outer))+ringEpsilon {
		return false
	}
	for _, v := range inner {
		if onRingBoundary(outer, v, ringEpsilon) {
			continue
		}
		return pointInRing(outer, v)
	}
	n := len(inner)
	for i := 0; i < n; i++ {
		a, b := inner[i], inner[(i+1)%n]
		mid := geom.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
		if onRingBoundary(outer, mid, ringEpsilon) {
			continue
		}
		return pointInRing(outer, mid)
	}
	return false
}

// pointInRing is the even-odd ray casting test.
func pointInRing(r geom.Path, p geom.Point) bool {
	in := false
	n := len(r)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := r[i], r[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < x {
				in = !in
			}
		}
	}
	return in
}

func onRingBoundary(r geom.Path, p geom.Point, tol float64) bool {
	n := len(r)
	for i := 0; i < n; i++ {
		if pointSegmentDistance(p, r[i], r[(i+1)%n]) <= tol {
			return true
		}
	}
	return false
}

// pointSegmentDistance returns the distance from p to segment ab.
func pointSegmentDistance(p, a, b geom.Point) float64 {
	q := closestOnSegment(p, a, b)
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

func closestOnSegment(p, a, b geom.Point) geom.Point {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return a
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return geom.Point{X: a.X + t*dx, Y: a.Y + t*dy}
}

// Explode splits p into single-part polygons, each holding one shell followed
// by its holes. Holes are attached to the smallest enclosing shell. Parts are
// returned in the order their shells appear in p.
func Explode(p geom.Polygon) []geom.Polygon {
	if len(p) == 0 {
		return nil
	}
	if len(p) == 1 {
		return []geom.Polygon{p}
	}
	depth := ringDepths(p)
	parts := make(map[int]geom.Polygon)
	var shells []int
	for i := range p {
		if depth[i]%2 == 0 {
			parts[i] = geom.Polygon{p[i]}
			shells = append(shells, i)
		}
	}
	for i := range p {
		if depth[i]%2 == 0 {
			continue
		}
		owner := -1
		ownerArea := math.Inf(1)
		for _, s := range shells {
			if depth[s] != depth[i]-1 || !ringContains(p[s], p[i]) {
				continue
			}
			if a := math.Abs(RingArea(p[s])); a < ownerArea {
				owner, ownerArea = s, a
			}
		}
		if owner >= 0 {
			parts[owner] = append(parts[owner], p[i])
		}
	}
	sort.Ints(shells)
	out := make([]geom.Polygon, 0, len(shells))
	for _, s := range shells {
		out = append(out, parts[s])
	}
	return out
}

// Centroid returns the area-weighted centroid of the shells of p, or the
// bounds centre when p has no area.
func Centroid(p geom.Polygon) geom.Point {
	var cx, cy, total float64
	for _, part := range Explode(p) {
		r := part[0]
		a := RingArea(r)
		if a == 0 {
			continue
		}
		var x, y float64
		n := len(r)
		for i := 0; i < n; i++ {
			j := (i + 1) % n
			f := r[i].X*r[j].Y - r[j].X*r[i].Y
			x += (r[i].X + r[j].X) * f
			y += (r[i].Y + r[j].Y) * f
		}
		x /= 6 * a
		y /= 6 * a
		w := math.Abs(a)
		cx += x * w
		cy += y * w
		total += w
	}
	if total == 0 {
		b := PolygonBounds(p)
		return geom.Point{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2}
	}
	return geom.Point{X: cx / total, Y: cy / total}
}
