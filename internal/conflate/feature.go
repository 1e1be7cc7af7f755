// Package conflate reconciles a base polygon layer with a layer of new
// features: it tabulates overlaps, classifies them, suppresses slivers and
// assembles the merged layer.
package conflate

import (
	"sort"
	"strings"

	"github.com/beetlebugorg/basemerge/internal/geometry"
	"github.com/ctessum/geom"
)

// Feature is one polygon with its attribute row.
type Feature struct {
	ID    int64
	Geom  geom.Polygon
	Attrs map[string]interface{}
}

// Area returns the planar area of the feature geometry.
func (f *Feature) Area() float64 {
	return geometry.Area(f.Geom)
}

// Bounds returns the bounding box of the feature geometry.
func (f *Feature) Bounds() geometry.Bounds {
	return geometry.PolygonBounds(f.Geom)
}

// Clone returns a deep copy of f.
func (f *Feature) Clone() *Feature {
	return &Feature{ID: f.ID, Geom: geometry.Clone(f.Geom), Attrs: cloneAttrs(f.Attrs)}
}

func cloneAttrs(a map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Layer is a named, ordered collection of features.
type Layer struct {
	Name     string
	Features []*Feature
}

// NewLayer creates a layer. Features with a nil attribute map get an empty one.
func NewLayer(name string, features []*Feature) *Layer {
	for _, f := range features {
		if f.Attrs == nil {
			f.Attrs = make(map[string]interface{})
		}
	}
	return &Layer{Name: name, Features: features}
}

// Count returns the number of features.
func (l *Layer) Count() int { return len(l.Features) }

// TotalArea returns the summed area of all features.
func (l *Layer) TotalArea() float64 {
	total := 0.0
	for _, f := range l.Features {
		total += f.Area()
	}
	return total
}

// MaxID returns the largest feature ID, or 0 for an empty layer.
func (l *Layer) MaxID() int64 {
	var max int64
	for _, f := range l.Features {
		if f.ID > max {
			max = f.ID
		}
	}
	return max
}

// ByID maps feature IDs to features.
func (l *Layer) ByID() map[int64]*Feature {
	m := make(map[int64]*Feature, len(l.Features))
	for _, f := range l.Features {
		m[f.ID] = f
	}
	return m
}

// SortByID orders features by ascending ID.
func (l *Layer) SortByID() {
	sort.SliceStable(l.Features, func(i, j int) bool {
		return l.Features[i].ID < l.Features[j].ID
	})
}

// Index builds an R-tree over the features keyed by slice position.
func (l *Layer) Index() *geometry.Index {
	ix := geometry.NewIndex()
	for i, f := range l.Features {
		ix.Insert(i, f.Bounds())
	}
	return ix
}

// Fields returns the sorted union of attribute names.
func (l *Layer) Fields() []string {
	seen := make(map[string]bool)
	for _, f := range l.Features {
		for k := range f.Attrs {
			seen[k] = true
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// HasField reports whether any feature carries name exactly.
func (l *Layer) HasField(name string) bool {
	for _, f := range l.Features {
		if _, ok := f.Attrs[name]; ok {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of l.
func (l *Layer) Clone() *Layer {
	out := &Layer{Name: l.Name, Features: make([]*Feature, len(l.Features))}
	for i, f := range l.Features {
		out.Features[i] = f.Clone()
	}
	return out
}

// FieldMigration records a field renamed to fix its case.
type FieldMigration struct {
	From string
	To   string
}

// EnsureField makes sure every feature has the attribute name. Values held
// under a case-variant of name are moved to name and the variant removed.
// Features with neither get zero.
func (l *Layer) EnsureField(name string, zero interface{}) []FieldMigration {
	variants := make(map[string]bool)
	for _, f := range l.Features {
		for k := range f.Attrs {
			if k != name && strings.EqualFold(k, name) {
				variants[k] = true
			}
		}
	}
	var migrations []FieldMigration
	for k := range variants {
		migrations = append(migrations, FieldMigration{From: k, To: name})
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].From < migrations[j].From })

	for _, f := range l.Features {
		for _, m := range migrations {
			v, ok := f.Attrs[m.From]
			if !ok {
				continue
			}
			if _, exists := f.Attrs[name]; !exists {
				f.Attrs[name] = v
			}
			delete(f.Attrs, m.From)
		}
		if _, ok := f.Attrs[name]; !ok {
			f.Attrs[name] = zero
		}
	}
	return migrations
}

// KeepFields drops every attribute whose name is not listed.
func (l *Layer) KeepFields(names ...string) {
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}
	for _, f := range l.Features {
		for k := range f.Attrs {
			if !keep[k] {
				delete(f.Attrs, k)
			}
		}
	}
}

// DropFields removes the listed attributes from every feature.
func (l *Layer) DropFields(names ...string) {
	for _, f := range l.Features {
		for _, n := range names {
			delete(f.Attrs, n)
		}
	}
}
