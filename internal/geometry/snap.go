package geometry

import (
	"fmt"
	"math"
	"strings"

	"github.com/ctessum/geom"
)

// SnapMode selects what a vertex is moved onto.
type SnapMode int

const (
	// SnapVertex moves a vertex onto the nearest target vertex.
	SnapVertex SnapMode = iota
	// SnapEdge moves a vertex onto the nearest point of a target edge.
	SnapEdge
)

func (m SnapMode) String() string {
	switch m {
	case SnapVertex:
		return "VERTEX"
	case SnapEdge:
		return "EDGE"
	default:
		return fmt.Sprintf("SnapMode(%d)", int(m))
	}
}

// ParseSnapMode accepts "vertex" or "edge" in any case.
func ParseSnapMode(s string) (SnapMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "VERTEX":
		return SnapVertex, nil
	case "EDGE":
		return SnapEdge, nil
	}
	return 0, fmt.Errorf("unknown snap mode %q", s)
}

// SnapRule is one snapping pass.
type SnapRule struct {
	Mode     SnapMode
	Distance float64
}

// DefaultSnapRules returns the standard snapping passes: vertices within
// 0.5, then edges within 1, then vertices within 1.
func DefaultSnapRules() []SnapRule {
	return []SnapRule{
		{Mode: SnapVertex, Distance: 0.5},
		{Mode: SnapEdge, Distance: 1},
		{Mode: SnapVertex, Distance: 1},
	}
}

// Snapper moves vertices of subject polygons onto a fixed set of target
// polygons.
type Snapper struct {
	targets []geom.Polygon
	index   *Index
}

// NewSnapper indexes targets for snapping.
func NewSnapper(targets []geom.Polygon) *Snapper {
	s := &Snapper{targets: targets, index: NewIndex()}
	for i, t := range targets {
		s.index.Insert(i, PolygonBounds(t))
	}
	return s
}

// Snap applies rules in order to a copy of p and returns it.
func (s *Snapper) Snap(p geom.Polygon, rules []SnapRule) geom.Polygon {
	out := clone(p)
	for _, rule := range rules {
		if rule.Distance <= 0 {
			continue
		}
		near := s.index.Search(PolygonBounds(out).Expand(rule.Distance))
		if len(near) == 0 {
			continue
		}
		for ri, r := range out {
			for vi, v := range r {
				if q, ok := s.nearest(v, near, rule); ok {
					out[ri][vi] = q
				}
			}
		}
		out = dropRepeats(out)
	}
	return out
}

func (s *Snapper) nearest(v geom.Point, near []int, rule SnapRule) (geom.Point, bool) {
	best := geom.Point{}
	bestDist := math.Inf(1)
	window := Bounds{MinX: v.X, MinY: v.Y, MaxX: v.X, MaxY: v.Y}.Expand(rule.Distance)
	for _, i := range near {
		t := s.targets[i]
		if !PolygonBounds(t).Intersects(window) {
			continue
		}
		for _, r := range t {
			r = openRing(r)
			n := len(r)
			for k := 0; k < n; k++ {
				var q geom.Point
				if rule.Mode == SnapVertex {
					q = r[k]
				} else {
					q = closestOnSegment(v, r[k], r[(k+1)%n])
				}
				d := math.Hypot(v.X-q.X, v.Y-q.Y)
				if d < bestDist {
					best, bestDist = q, d
				}
			}
		}
	}
	if bestDist > rule.Distance || bestDist == 0 {
		return v, false
	}
	return best, true
}

// dropRepeats removes consecutive duplicate vertices that snapping may
// create, and rings that collapse below three vertices.
func dropRepeats(p geom.Polygon) geom.Polygon {
	out := p[:0]
	for _, r := range p {
		clean := make(geom.Path, 0, len(r))
		for _, v := range r {
			if len(clean) > 0 && samePoint(clean[len(clean)-1], v) {
				continue
			}
			clean = append(clean, v)
		}
		clean = openRing(clean)
		if len(clean) >= 3 {
			out = append(out, clean)
		}
	}
	return out
}
