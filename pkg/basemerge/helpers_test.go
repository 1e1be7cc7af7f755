package basemerge

import (
	"math"
	"testing"

	"github.com/ctessum/geom"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func box(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}}
}

func attrs(kv ...interface{}) map[string]interface{} {
	m := make(map[string]interface{})
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i].(string)] = kv[i+1]
	}
	return m
}

func approx(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6*math.Max(1, math.Abs(b))
}

// fixture returns a base map of three polygons and a new layer that splits
// polygon 1, nearly covers polygon 2 and leaves polygon 3 alone.
func fixture() (*Layer, *Layer) {
	base := NewLayer("base",
		NewFeature(1, box(0, 0, 40, 25), attrs("habitat", "Grassland")),
		NewFeature(2, box(100, 0, 140, 25), attrs("habitat", "Woodland")),
		NewFeature(3, box(200, 0, 210, 10), attrs("habitat", "Water")),
	)
	crops := NewLayer("new",
		NewFeature(10, box(0, -5, 24, 30), attrs("habitat", "Arable", "crop", "Wheat")),
		NewFeature(11, box(39.6, 0, 45, 25), attrs("habitat", "Road")),
		NewFeature(12, box(100, 0, 139.2, 25), attrs("habitat", "Orchard", "crop", "Apple")),
	)
	return base, crops
}

type row struct {
	BaseID int64
	Rel    string
	NewID  int64
	Area   float64
}

func rows(t *testing.T, l *Layer) []row {
	t.Helper()
	var out []row
	for _, f := range l.Features() {
		r := row{Area: math.Round(f.Area()*1000) / 1000}
		r.BaseID = toInt64(f.Attributes()["Base_OBJID"])
		r.NewID = toInt64(f.Attributes()["New_OBJID"])
		r.Rel, _ = f.Attributes()["Base_Relationship"].(string)
		out = append(out, r)
	}
	return out
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
