package geometry

import (
	"math"

	"github.com/ctessum/geom"
)

type segment struct {
	a, b geom.Point
}

func segments(p geom.Polygon) []segment {
	var out []segment
	for _, r := range p {
		r = openRing(r)
		n := len(r)
		if n < 2 {
			continue
		}
		for i := 0; i < n; i++ {
			s := segment{r[i], r[(i+1)%n]}
			if samePoint(s.a, s.b) {
				continue
			}
			out = append(out, s)
		}
	}
	return out
}

// SharedBoundaryLength returns the total length of boundary that a and b
// have in common, treating segments within tol of each other as coincident.
// Polygons that only touch at a vertex share zero length.
func SharedBoundaryLength(a, b geom.Polygon, tol float64) float64 {
	if !PolygonBounds(a).Expand(tol).Intersects(PolygonBounds(b)) {
		return 0
	}
	sb := segments(b)
	total := 0.0
	for _, s := range segments(a) {
		sbb := segmentBounds(s).Expand(tol)
		for _, t := range sb {
			if !sbb.Intersects(segmentBounds(t)) {
				continue
			}
			total += collinearOverlap(s, t, tol)
		}
	}
	return total
}

func segmentBounds(s segment) Bounds {
	return Bounds{
		MinX: math.Min(s.a.X, s.b.X), MinY: math.Min(s.a.Y, s.b.Y),
		MaxX: math.Max(s.a.X, s.b.X), MaxY: math.Max(s.a.Y, s.b.Y),
	}
}

// collinearOverlap returns the length along s covered by t when t lies on
// the line through s within tol.
func collinearOverlap(s, t segment, tol float64) float64 {
	dx, dy := s.b.X-s.a.X, s.b.Y-s.a.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return 0
	}
	ux, uy := dx/l, dy/l
	// perpendicular distance of t's endpoints from the line through s
	d1 := math.Abs((t.a.X-s.a.X)*uy - (t.a.Y-s.a.Y)*ux)
	d2 := math.Abs((t.b.X-s.a.X)*uy - (t.b.Y-s.a.Y)*ux)
	if d1 > tol || d2 > tol {
		return 0
	}
	t1 := (t.a.X-s.a.X)*ux + (t.a.Y-s.a.Y)*uy
	t2 := (t.b.X-s.a.X)*ux + (t.b.Y-s.a.Y)*uy
	lo := math.Max(0, math.Min(t1, t2))
	hi := math.Min(l, math.Max(t1, t2))
	if hi <= lo {
		return 0
	}
	return hi - lo
}
