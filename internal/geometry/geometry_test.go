package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/ctessum/geom"
)

func rect(x0, y0, x1, y1 float64) geom.Path {
	return geom.Path{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

func square(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{rect(x0, y0, x1, y1)}
}

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestArea(t *testing.T) {
	tests := []struct {
		name string
		poly geom.Polygon
		want float64
	}{
		{"empty", nil, 0},
		{"unit square", square(0, 0, 1, 1), 1},
		{"clockwise", geom.Polygon{{{X: 0, Y: 0}, {X: 0, Y: 2}, {X: 2, Y: 2}, {X: 2, Y: 0}}}, 4},
		{"closed ring", geom.Polygon{{{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 3, Y: 3}, {X: 0, Y: 3}, {X: 0, Y: 0}}}, 9},
		{"with hole", geom.Polygon{rect(0, 0, 10, 10), rect(2, 2, 4, 4)}, 96},
		{"two parts", geom.Polygon{rect(0, 0, 1, 1), rect(5, 5, 7, 7)}, 5},
		{"island in hole", geom.Polygon{rect(0, 0, 10, 10), rect(2, 2, 8, 8), rect(4, 4, 5, 5)}, 65},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Area(tt.poly); !near(got, tt.want, 1e-9) {
				t.Errorf("Expected area %v, got %v", tt.want, got)
			}
		})
	}
}

func TestExplode(t *testing.T) {
	p := geom.Polygon{rect(0, 0, 10, 10), rect(20, 0, 30, 10), rect(2, 2, 4, 4), rect(22, 2, 23, 3)}
	parts := Explode(p)
	if len(parts) != 2 {
		t.Fatalf("Expected 2 parts, got %d", len(parts))
	}
	if got := Area(parts[0]); !near(got, 96, 1e-9) {
		t.Errorf("Expected first part area 96, got %v", got)
	}
	if got := Area(parts[1]); !near(got, 99, 1e-9) {
		t.Errorf("Expected second part area 99, got %v", got)
	}
	if len(parts[0]) != 2 || len(parts[1]) != 2 {
		t.Errorf("Expected each part to carry its hole, got %d and %d rings", len(parts[0]), len(parts[1]))
	}
}

func TestBounds(t *testing.T) {
	b := PolygonBounds(square(1, 2, 3, 5))
	if b.MinX != 1 || b.MinY != 2 || b.MaxX != 3 || b.MaxY != 5 {
		t.Fatalf("unexpected bounds %+v", b)
	}
	if !b.Intersects(Bounds{MinX: 3, MinY: 5, MaxX: 4, MaxY: 6}) {
		t.Error("Expected touching bounds to intersect")
	}
	if b.Intersects(Bounds{MinX: 3.1, MinY: 0, MaxX: 4, MaxY: 1}) {
		t.Error("Expected disjoint bounds not to intersect")
	}
	if !b.Expand(1).Contains(b) {
		t.Error("Expected expanded bounds to contain original")
	}
	if !EmptyBounds().IsEmpty() {
		t.Error("Expected EmptyBounds to be empty")
	}
	if EmptyBounds().Intersects(b) {
		t.Error("Expected empty bounds not to intersect anything")
	}
}

func TestOverlay(t *testing.T) {
	a := square(0, 0, 10, 10)
	b := square(5, 0, 15, 10)

	inter, err := Intersection(a, b)
	if err != nil {
		t.Fatalf("Intersection failed: %v", err)
	}
	if got := Area(inter); !near(got, 50, 1e-6) {
		t.Errorf("Expected intersection area 50, got %v", got)
	}

	diff, err := Difference(a, b)
	if err != nil {
		t.Fatalf("Difference failed: %v", err)
	}
	if got := Area(diff); !near(got, 50, 1e-6) {
		t.Errorf("Expected difference area 50, got %v", got)
	}

	union, err := Union(a, b)
	if err != nil {
		t.Fatalf("Union failed: %v", err)
	}
	if got := Area(union); !near(got, 150, 1e-6) {
		t.Errorf("Expected union area 150, got %v", got)
	}

	disjoint, err := Intersection(a, square(20, 20, 30, 30))
	if err != nil || disjoint != nil {
		t.Errorf("Expected nil intersection for disjoint squares, got %v (%v)", disjoint, err)
	}
}

func TestOverlayDisjointUnion(t *testing.T) {
	union, err := Union(square(0, 0, 10, 10), square(20, 0, 30, 10))
	if err != nil {
		t.Fatalf("Union failed: %v", err)
	}
	if len(union) != 2 {
		t.Errorf("Expected 2 rings, got %d", len(union))
	}
	if got := Area(union); !near(got, 200, 1e-6) {
		t.Errorf("Expected union area 200, got %v", got)
	}
}

func TestAsPolygon(t *testing.T) {
	mp := geom.MultiPolygon{square(0, 0, 10, 10), square(20, 0, 30, 5)}
	got := asPolygon(mp)
	if len(got) != 2 {
		t.Fatalf("Expected 2 rings, got %d", len(got))
	}
	if a := Area(got); !near(a, 150, 1e-6) {
		t.Errorf("Expected area 150, got %v", a)
	}

	p := square(0, 0, 1, 1)
	if got := asPolygon(p); len(got) != 1 || len(got[0]) != 4 {
		t.Errorf("Expected polygon unchanged, got %v", got)
	}
	if got := asPolygon(nil); got != nil {
		t.Errorf("Expected nil, got %v", got)
	}
}

func TestUnionChecked(t *testing.T) {
	a := square(0, 0, 10, 10)
	b := square(10, 0, 20, 10)
	out, err := UnionChecked(a, b, 1e-6)
	if err != nil {
		t.Fatalf("UnionChecked failed: %v", err)
	}
	if got := Area(out); !near(got, 200, 1e-6) {
		t.Errorf("Expected area 200, got %v", got)
	}

	// overlapping inputs lose area relative to the sum
	_, err = UnionChecked(a, square(5, 0, 15, 10), 1e-6)
	var topo *TopologyError
	if !errors.As(err, &topo) {
		t.Fatalf("Expected TopologyError, got %v", err)
	}
	if topo.Op != "union" {
		t.Errorf("Expected op union, got %q", topo.Op)
	}
}

func TestIdentical(t *testing.T) {
	a := square(0, 0, 10, 10)
	shifted := geom.Polygon{{{X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}, {X: 0, Y: 0}}}
	same, err := Identical(a, shifted, 0.001)
	if err != nil || !same {
		t.Errorf("Expected reordered ring to be identical, got %v (%v)", same, err)
	}
	same, err = Identical(a, square(0, 0, 10, 11), 0.001)
	if err != nil || same {
		t.Errorf("Expected different squares not identical, got %v (%v)", same, err)
	}
}

func TestSharedBoundaryLength(t *testing.T) {
	tests := []struct {
		name string
		a, b geom.Polygon
		want float64
	}{
		{"full edge", square(0, 0, 10, 10), square(10, 0, 20, 10), 10},
		{"partial edge", square(0, 0, 10, 10), square(10, 5, 20, 20), 5},
		{"corner only", square(0, 0, 10, 10), square(10, 10, 20, 20), 0},
		{"disjoint", square(0, 0, 10, 10), square(11, 0, 20, 10), 0},
		{"within tolerance", square(0, 0, 10, 10), square(10.0005, 0, 20, 10), 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SharedBoundaryLength(tt.a, tt.b, 0.001); !near(got, tt.want, 1e-6) {
				t.Errorf("Expected shared length %v, got %v", tt.want, got)
			}
		})
	}
}

func TestIndexSearch(t *testing.T) {
	ix := NewIndex()
	ix.Insert(3, PolygonBounds(square(0, 0, 1, 1)))
	ix.Insert(1, PolygonBounds(square(5, 5, 6, 6)))
	ix.Insert(2, PolygonBounds(square(0.5, 0.5, 2, 2)))
	ix.Insert(4, EmptyBounds())

	if ix.Len() != 3 {
		t.Fatalf("Expected 3 indexed keys, got %d", ix.Len())
	}
	got := ix.Search(Bounds{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1})
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("Expected [2 3], got %v", got)
	}
	if got := ix.Search(Bounds{MinX: 10, MinY: 10, MaxX: 11, MaxY: 11}); len(got) != 0 {
		t.Errorf("Expected no results, got %v", got)
	}
}

func TestSnap(t *testing.T) {
	base := []geom.Polygon{square(0, 0, 10, 10)}
	s := NewSnapper(base)

	subject := geom.Polygon{{{X: 10.3, Y: 0.2}, {X: 20, Y: 0}, {X: 20, Y: 10}, {X: 10.4, Y: 5}}}
	out := s.Snap(subject, DefaultSnapRules())
	if out[0][0] != (geom.Point{X: 10, Y: 0}) {
		t.Errorf("Expected vertex snapped to (10,0), got %v", out[0][0])
	}
	if out[0][3] != (geom.Point{X: 10, Y: 5}) {
		t.Errorf("Expected vertex snapped onto edge at (10,5), got %v", out[0][3])
	}
	if out[0][1] != (geom.Point{X: 20, Y: 0}) {
		t.Errorf("Expected distant vertex unchanged, got %v", out[0][1])
	}
	if subject[0][0] != (geom.Point{X: 10.3, Y: 0.2}) {
		t.Error("Snap must not modify its input")
	}
}

func TestParseSnapMode(t *testing.T) {
	if m, err := ParseSnapMode("edge"); err != nil || m != SnapEdge {
		t.Errorf("Expected SnapEdge, got %v (%v)", m, err)
	}
	if _, err := ParseSnapMode("corner"); err == nil {
		t.Error("Expected error for unknown mode")
	}
}

func TestCheckAndRepair(t *testing.T) {
	bad := geom.Polygon{
		{{X: 0, Y: 0}, {X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}, {X: 0, Y: 0}},
		{{X: 20, Y: 20}, {X: 21, Y: 21}},
		{{X: 30, Y: 30}, {X: 31, Y: 31}, {X: 32, Y: 32}},
	}
	problems := CheckGeometry(bad)
	if len(problems) != 3 {
		t.Fatalf("Expected 3 problems, got %d: %v", len(problems), problems)
	}

	fixed, err := RepairGeometry(bad)
	if err != nil {
		t.Fatalf("RepairGeometry failed: %v", err)
	}
	if len(fixed) != 1 || len(fixed[0]) != 4 {
		t.Errorf("Expected one 4-vertex ring, got %v", fixed)
	}
	if problems := CheckGeometry(fixed); len(problems) != 0 {
		t.Errorf("Expected repaired geometry to be clean, got %v", problems)
	}

	_, err = RepairGeometry(geom.Polygon{{{X: 0, Y: 0}, {X: math.NaN(), Y: 1}, {X: 1, Y: 1}}})
	var inv *InvalidGeometryError
	if !errors.As(err, &inv) {
		t.Errorf("Expected InvalidGeometryError, got %v", err)
	}
}

func TestCentroid(t *testing.T) {
	c := Centroid(square(0, 0, 4, 2))
	if !near(c.X, 2, 1e-9) || !near(c.Y, 1, 1e-9) {
		t.Errorf("Expected centroid (2,1), got %v", c)
	}
}
