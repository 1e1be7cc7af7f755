package conflate

import (
	"context"
	"testing"

	"github.com/beetlebugorg/basemerge/internal/geometry"
	"github.com/ctessum/geom"
	"github.com/google/go-cmp/cmp"
)

func ids(l *Layer) []int64 {
	out := make([]int64, 0, l.Count())
	for _, f := range l.Features {
		out = append(out, f.ID)
	}
	return out
}

func TestResolveOverlaps(t *testing.T) {
	l := NewLayer("new", []*Feature{
		feat(2, box(0, 0, 10, 10)),
		feat(1, box(5, 0, 15, 10)),
		feat(3, box(6, 0, 14, 10)), // wholly covered by 1
	})
	if err := ResolveOverlaps(context.Background(), l); err != nil {
		t.Fatalf("ResolveOverlaps failed: %v", err)
	}
	if diff := cmp.Diff([]int64{1, 2}, ids(l)); diff != "" {
		t.Errorf("IDs mismatch:\n%s", diff)
	}
	if !approx(l.Features[0].Area(), 100) || !approx(l.Features[1].Area(), 50) {
		t.Errorf("Expected areas 100 and 50, got %v and %v", l.Features[0].Area(), l.Features[1].Area())
	}
}

func TestExplodeLayer(t *testing.T) {
	multi := geom.Polygon{box(0, 0, 1, 1)[0], box(5, 5, 6, 6)[0], box(8, 8, 9, 9)[0]}
	l := NewLayer("new", []*Feature{
		feat(1, multi, "name", "a"),
		feat(3, box(20, 20, 21, 21), "name", "b"),
	})
	if added := ExplodeLayer(l); added != 2 {
		t.Errorf("Expected 2 parts added, got %d", added)
	}
	if diff := cmp.Diff([]int64{1, 4, 5, 3}, ids(l)); diff != "" {
		t.Errorf("IDs mismatch:\n%s", diff)
	}
	if l.Features[1].Attrs["name"] != "a" {
		t.Errorf("Expected exploded part to copy attributes, got %v", l.Features[1].Attrs)
	}
}

func TestDeleteIdentical(t *testing.T) {
	l := NewLayer("new", []*Feature{
		feat(2, box(0, 0, 10, 10)),
		feat(1, box(0, 0, 10, 10)),
		feat(3, box(0, 0, 10, 10.5)),
	})
	dropped, err := DeleteIdentical(l, 0.001)
	if err != nil {
		t.Fatalf("DeleteIdentical failed: %v", err)
	}
	if diff := cmp.Diff([]int64{2}, dropped); diff != "" {
		t.Errorf("dropped mismatch:\n%s", diff)
	}
	if diff := cmp.Diff([]int64{1, 3}, ids(l)); diff != "" {
		t.Errorf("IDs mismatch:\n%s", diff)
	}
}

func TestRepairLayer(t *testing.T) {
	l := NewLayer("new", []*Feature{
		feat(1, box(0, 0, 1, 1)),
		feat(2, geom.Polygon{{{X: 0, Y: 0}, {X: 1, Y: 1}}}),
	})
	dropped := RepairLayer(l)
	if diff := cmp.Diff([]int64{2}, dropped); diff != "" {
		t.Errorf("dropped mismatch:\n%s", diff)
	}
	if l.Count() != 1 {
		t.Errorf("Expected 1 feature, got %d", l.Count())
	}
}

func TestSnapLayer(t *testing.T) {
	base := NewLayer("base", []*Feature{feat(1, box(0, 0, 10, 10))})
	l := NewLayer("new", []*Feature{
		feat(1, box(0, 0, 10, 10)),
		feat(2, geom.Polygon{{{X: 10.3, Y: 0}, {X: 20, Y: 0}, {X: 20, Y: 10}, {X: 10.3, Y: 10}}}),
	})
	changed, err := SnapLayer(context.Background(), l, base, geometry.DefaultSnapRules(), 0.001)
	if err != nil {
		t.Fatalf("SnapLayer failed: %v", err)
	}
	if changed != 1 {
		t.Errorf("Expected 1 snapped feature, got %d", changed)
	}
	if !approx(l.Features[1].Area(), 100) {
		t.Errorf("Expected snapped feature area 100, got %v", l.Features[1].Area())
	}
}

func TestCleanNewFeatures(t *testing.T) {
	base := NewLayer("base", []*Feature{feat(1, box(0, 0, 10, 10))})
	l := NewLayer("new", []*Feature{
		feat(1, box(10.2, 0, 20, 10)),
		feat(2, box(10.2, 0, 20, 10)),
		feat(3, box(20, 0, 20.5, 1)),
	})
	report, err := CleanNewFeatures(context.Background(), l, base, CleanOptions{
		SnapRules:  geometry.DefaultSnapRules(),
		SliverSize: 1,
		Tolerance:  0.001,
	})
	if err != nil {
		t.Fatalf("CleanNewFeatures failed: %v", err)
	}
	if l.Count() != 1 {
		t.Fatalf("Expected 1 feature after cleaning, got %d", l.Count())
	}
	if report.Slivers.Absorbed != 1 {
		t.Errorf("Expected the sliver to be absorbed, got %+v", report.Slivers)
	}
	if !approx(l.Features[0].Area(), 100.5) {
		t.Errorf("Expected area 100.5, got %v", l.Features[0].Area())
	}
}

func TestClipLayer(t *testing.T) {
	clip := NewLayer("boundary", []*Feature{
		feat(1, box(0, 0, 10, 10)),
		feat(2, box(10, 0, 20, 10)),
	})
	l := NewLayer("new", []*Feature{
		feat(1, box(5, 5, 15, 15)),
		feat(2, box(30, 30, 40, 40)),
	})
	dropped, err := ClipLayer(context.Background(), l, clip)
	if err != nil {
		t.Fatalf("ClipLayer failed: %v", err)
	}
	if diff := cmp.Diff([]int64{2}, dropped); diff != "" {
		t.Errorf("dropped mismatch:\n%s", diff)
	}
	if l.Count() != 1 {
		t.Fatalf("Expected 1 feature, got %d", l.Count())
	}
	if !approx(l.Features[0].Area(), 50) {
		t.Errorf("Expected clipped area 50, got %v", l.Features[0].Area())
	}
}
