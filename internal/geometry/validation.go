package geometry

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

// Problem describes one defect found by CheckGeometry.
type Problem struct {
	Ring   int // -1 for polygon-level problems
	Reason string
}

func (p Problem) String() string {
	if p.Ring < 0 {
		return p.Reason
	}
	return fmt.Sprintf("ring %d: %s", p.Ring, p.Reason)
}

// CheckGeometry reports defects in p: non-finite coordinates, duplicate
// consecutive vertices, rings with fewer than three distinct vertices and
// zero-area rings. An empty polygon is itself a problem.
func CheckGeometry(p geom.Polygon) []Problem {
	if len(p) == 0 {
		return []Problem{{Ring: -1, Reason: "empty geometry"}}
	}
	var problems []Problem
	for i, r := range p {
		for j, v := range r {
			if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) {
				problems = append(problems, Problem{Ring: i, Reason: fmt.Sprintf("non-finite coordinate at vertex %d", j)})
			}
		}
		open := openRing(r)
		for j := 1; j < len(open); j++ {
			if samePoint(open[j-1], open[j]) {
				problems = append(problems, Problem{Ring: i, Reason: fmt.Sprintf("duplicate vertex at %d", j)})
				break
			}
		}
		if distinct(open) < 3 {
			problems = append(problems, Problem{Ring: i, Reason: "fewer than 3 distinct vertices"})
			continue
		}
		if math.Abs(RingArea(open)) < minRingArea {
			problems = append(problems, Problem{Ring: i, Reason: "zero-area ring"})
		}
	}
	return problems
}

// RepairGeometry returns a copy of p with defective rings fixed or removed.
// It returns an InvalidGeometryError when nothing usable remains.
func RepairGeometry(p geom.Polygon) (geom.Polygon, error) {
	out := make(geom.Polygon, 0, len(p))
	for _, r := range p {
		finite := make(geom.Path, 0, len(r))
		for _, v := range r {
			if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) {
				continue
			}
			finite = append(finite, v)
		}
		out = append(out, finite)
	}
	out = normalize(dropRepeats(out))
	if len(out) == 0 {
		return nil, &InvalidGeometryError{Reason: "no valid rings after repair"}
	}
	if Area(out) < minRingArea {
		return nil, &InvalidGeometryError{Reason: "zero area after repair"}
	}
	return out, nil
}

func distinct(r geom.Path) int {
	n := 0
	for i, v := range r {
		dup := false
		for _, w := range r[:i] {
			if samePoint(v, w) {
				dup = true
				break
			}
		}
		if !dup {
			n++
		}
	}
	return n
}
