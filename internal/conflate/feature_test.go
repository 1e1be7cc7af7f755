package conflate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEnsureFieldMigratesCase(t *testing.T) {
	l := NewLayer("base", []*Feature{
		feat(1, box(0, 0, 1, 1), "base_objid", int64(7)),
		feat(2, box(1, 0, 2, 1), "BASE_OBJID", int64(8)),
		feat(3, box(2, 0, 3, 1)),
	})
	migrations := l.EnsureField("Base_OBJID", int64(0))
	want := []FieldMigration{
		{From: "BASE_OBJID", To: "Base_OBJID"},
		{From: "base_objid", To: "Base_OBJID"},
	}
	if diff := cmp.Diff(want, migrations); diff != "" {
		t.Errorf("migrations mismatch (-want +got):\n%s", diff)
	}
	got := []interface{}{
		l.Features[0].Attrs["Base_OBJID"],
		l.Features[1].Attrs["Base_OBJID"],
		l.Features[2].Attrs["Base_OBJID"],
	}
	if diff := cmp.Diff([]interface{}{int64(7), int64(8), int64(0)}, got); diff != "" {
		t.Errorf("values mismatch:\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Base_OBJID"}, l.Fields()); diff != "" {
		t.Errorf("fields mismatch:\n%s", diff)
	}
}

func TestKeepFields(t *testing.T) {
	l := NewLayer("base", []*Feature{
		feat(1, box(0, 0, 1, 1), "a", 1, "b", 2, "c", 3),
		feat(2, box(1, 0, 2, 1), "c", 4, "d", 5),
	})
	l.KeepFields("a", "c")
	if diff := cmp.Diff([]string{"a", "c"}, l.Fields()); diff != "" {
		t.Errorf("fields mismatch:\n%s", diff)
	}
	l.DropFields("c")
	if l.HasField("c") {
		t.Error("Expected c to be dropped")
	}
}

func TestLayerAccessors(t *testing.T) {
	l := NewLayer("base", []*Feature{
		feat(5, box(0, 0, 2, 2)),
		feat(3, box(5, 5, 6, 6)),
	})
	if l.MaxID() != 5 {
		t.Errorf("Expected MaxID 5, got %d", l.MaxID())
	}
	if !approx(l.TotalArea(), 5) {
		t.Errorf("Expected total area 5, got %v", l.TotalArea())
	}
	c := l.Clone()
	c.Features[0].Geom[0][0].X = 100
	if l.Features[0].Geom[0][0].X != 0 {
		t.Error("Clone shares geometry with the original")
	}
	l.SortByID()
	if l.Features[0].ID != 3 {
		t.Errorf("Expected first ID 3 after sort, got %d", l.Features[0].ID)
	}
	if got := l.Index().Search(l.Features[1].Bounds()); len(got) != 1 || got[0] != 1 {
		t.Errorf("Expected index hit [1], got %v", got)
	}
}
