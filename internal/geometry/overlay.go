package geometry

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

// minRingArea drops degenerate rings emitted by the clipper when two
// boundaries coincide.
const minRingArea = 1e-10

// Intersection returns a ∩ b. Panics inside the clipper are reported as
// *TopologyError.
func Intersection(a, b geom.Polygon) (out geom.Polygon, err error) {
	if len(a) == 0 || len(b) == 0 {
		return nil, nil
	}
	if !PolygonBounds(a).Intersects(PolygonBounds(b)) {
		return nil, nil
	}
	if sameRings(a, b, ringEpsilon) {
		return clone(a), nil
	}
	defer recoverTopology("intersection", &err)
	return normalize(asPolygon(a.Intersection(b))), nil
}

// Union returns a ∪ b.
func Union(a, b geom.Polygon) (out geom.Polygon, err error) {
	if len(a) == 0 {
		return clone(b), nil
	}
	if len(b) == 0 {
		return clone(a), nil
	}
	if sameRings(a, b, ringEpsilon) {
		return clone(a), nil
	}
	defer recoverTopology("union", &err)
	return normalize(asPolygon(a.Union(b))), nil
}

// Difference returns a − b (the ArcGIS "Erase").
func Difference(a, b geom.Polygon) (out geom.Polygon, err error) {
	if len(a) == 0 {
		return nil, nil
	}
	if len(b) == 0 || !PolygonBounds(a).Intersects(PolygonBounds(b)) {
		return clone(a), nil
	}
	if sameRings(a, b, ringEpsilon) {
		return nil, nil
	}
	defer recoverTopology("difference", &err)
	return normalize(asPolygon(a.Difference(b))), nil
}

// UnionChecked merges two polygons that are expected not to overlap and
// verifies that the result conserves their combined area within tol.
func UnionChecked(a, b geom.Polygon, tol float64) (geom.Polygon, error) {
	want := Area(a) + Area(b)
	out, err := Union(a, b)
	if err != nil {
		return nil, err
	}
	got := Area(out)
	if math.Abs(got-want) > tol+1e-9*want {
		return nil, &TopologyError{
			Op:    "union",
			Cause: fmt.Errorf("area not conserved: %.6f != %.6f", got, want),
		}
	}
	return out, nil
}

// Identical reports whether a and b cover the same area within tol.
func Identical(a, b geom.Polygon, tol float64) (bool, error) {
	ba, bb := PolygonBounds(a), PolygonBounds(b)
	if math.Abs(ba.MinX-bb.MinX) > tol || math.Abs(ba.MinY-bb.MinY) > tol ||
		math.Abs(ba.MaxX-bb.MaxX) > tol || math.Abs(ba.MaxY-bb.MaxY) > tol {
		return false, nil
	}
	if sameRings(a, b, tol) {
		return true, nil
	}
	areaTol := tol * (ba.Width() + ba.Height() + 1)
	if math.Abs(Area(a)-Area(b)) > areaTol {
		return false, nil
	}
	d1, err := Difference(a, b)
	if err != nil {
		return false, err
	}
	if Area(d1) > areaTol {
		return false, nil
	}
	d2, err := Difference(b, a)
	if err != nil {
		return false, err
	}
	return Area(d2) <= areaTol, nil
}

// sameRings reports whether every ring of a matches the ring of b at the
// same position up to start vertex and direction.
func sameRings(a, b geom.Polygon, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameRing(openRing(a[i]), openRing(b[i]), tol) {
			return false
		}
	}
	return true
}

func sameRing(r, s geom.Path, tol float64) bool {
	n := len(r)
	if n != len(s) || n == 0 {
		return false
	}
	eq := func(p, q geom.Point) bool {
		return math.Abs(p.X-q.X) <= tol && math.Abs(p.Y-q.Y) <= tol
	}
	for off := 0; off < n; off++ {
		if !eq(r[0], s[off]) {
			continue
		}
		fwd, rev := true, true
		for k := 0; k < n && (fwd || rev); k++ {
			if fwd && !eq(r[k], s[(off+k)%n]) {
				fwd = false
			}
			if rev && !eq(r[k], s[(off-k+n)%n]) {
				rev = false
			}
		}
		if fwd || rev {
			return true
		}
	}
	return false
}

// asPolygon unwraps the Polygonal returned by the clipper. The clipper
// returns a geom.Polygon; any other implementation is flattened ring by ring.
func asPolygon(g geom.Polygonal) geom.Polygon {
	switch p := g.(type) {
	case nil:
		return nil
	case geom.Polygon:
		return p
	}
	var out geom.Polygon
	for _, part := range g.Polygons() {
		out = append(out, part...)
	}
	return out
}

// normalize strips repeated closing vertices and degenerate rings.
func normalize(p geom.Polygon) geom.Polygon {
	if len(p) == 0 {
		return nil
	}
	out := make(geom.Polygon, 0, len(p))
	for _, r := range p {
		r = openRing(r)
		if len(r) < 3 || math.Abs(RingArea(r)) < minRingArea {
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// openRing drops the closing vertex when it repeats the first one.
func openRing(r geom.Path) geom.Path {
	if len(r) > 1 && samePoint(r[0], r[len(r)-1]) {
		return r[:len(r)-1]
	}
	return r
}

func samePoint(a, b geom.Point) bool {
	return math.Abs(a.X-b.X) <= ringEpsilon && math.Abs(a.Y-b.Y) <= ringEpsilon
}

func clone(p geom.Polygon) geom.Polygon {
	if p == nil {
		return nil
	}
	out := make(geom.Polygon, len(p))
	for i, r := range p {
		out[i] = append(geom.Path(nil), r...)
	}
	return out
}

// Clone returns a deep copy of p.
func Clone(p geom.Polygon) geom.Polygon { return clone(p) }
