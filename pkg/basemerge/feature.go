package basemerge

import (
	"github.com/beetlebugorg/basemerge/internal/conflate"
	"github.com/beetlebugorg/basemerge/internal/geometry"
	"github.com/beetlebugorg/basemerge/internal/layerio"
	"github.com/ctessum/geom"
)

// Bounds is an axis-aligned bounding box in layer units.
type Bounds = geometry.Bounds

// FieldMigration records a field renamed to fix its case.
type FieldMigration = conflate.FieldMigration

// Feature is one polygon of a layer with its attributes.
type Feature struct {
	f *conflate.Feature
}

// NewFeature creates a feature. attrs may be nil.
func NewFeature(id int64, polygon geom.Polygon, attrs map[string]interface{}) Feature {
	if attrs == nil {
		attrs = make(map[string]interface{})
	}
	return Feature{f: &conflate.Feature{ID: id, Geom: polygon, Attrs: attrs}}
}

// ID returns the feature identifier, unique within its layer.
func (f Feature) ID() int64 { return f.f.ID }

// Geometry returns the polygon rings. Multi-part polygons hold every part's
// rings; holes are identified by nesting.
func (f Feature) Geometry() geom.Polygon { return f.f.Geom }

// Attributes returns the attribute map. Modifying it modifies the feature.
func (f Feature) Attributes() map[string]interface{} { return f.f.Attrs }

// Attribute returns a single attribute value.
func (f Feature) Attribute(name string) (interface{}, bool) {
	v, ok := f.f.Attrs[name]
	return v, ok
}

// Area returns the planar area.
func (f Feature) Area() float64 { return f.f.Area() }

// Bounds returns the bounding box.
func (f Feature) Bounds() Bounds { return f.f.Bounds() }

// Layer is a named collection of polygon features.
type Layer struct {
	l     *conflate.Layer
	index *geometry.Index
}

// NewLayer creates a layer from features.
func NewLayer(name string, features ...Feature) *Layer {
	fs := make([]*conflate.Feature, len(features))
	for i, f := range features {
		fs[i] = f.f
	}
	return wrapLayer(conflate.NewLayer(name, fs))
}

func wrapLayer(l *conflate.Layer) *Layer {
	return &Layer{l: l}
}

// ReadLayer loads a GeoJSON (.geojson, .json) or shapefile (.shp) layer.
func ReadLayer(path string) (*Layer, error) {
	l, err := layerio.Read(path)
	if err != nil {
		return nil, err
	}
	return wrapLayer(l), nil
}

// WriteLayer writes l to path as GeoJSON.
func WriteLayer(path string, l *Layer) error {
	return layerio.WriteGeoJSON(path, l.l)
}

// Name returns the layer name.
func (l *Layer) Name() string { return l.l.Name }

// Count returns the number of features.
func (l *Layer) Count() int { return l.l.Count() }

// TotalArea returns the summed feature area.
func (l *Layer) TotalArea() float64 { return l.l.TotalArea() }

// Fields returns the sorted attribute names used by any feature.
func (l *Layer) Fields() []string { return l.l.Fields() }

// Features returns all features in layer order.
func (l *Layer) Features() []Feature {
	out := make([]Feature, len(l.l.Features))
	for i, f := range l.l.Features {
		out[i] = Feature{f: f}
	}
	return out
}

// Feature returns the feature with the given ID.
func (l *Layer) Feature(id int64) (Feature, bool) {
	for _, f := range l.l.Features {
		if f.ID == id {
			return Feature{f: f}, true
		}
	}
	return Feature{}, false
}

// BuildIndex builds the spatial index used by FeaturesInBounds. Call it
// again after modifying the layer.
func (l *Layer) BuildIndex() {
	l.index = l.l.Index()
}

// FeaturesInBounds returns the features whose bounding boxes intersect b,
// in layer order.
func (l *Layer) FeaturesInBounds(b Bounds) []Feature {
	if l.index == nil {
		return l.featuresInBoundsLinear(b)
	}
	positions := l.index.Search(b)
	out := make([]Feature, 0, len(positions))
	for _, p := range positions {
		out = append(out, Feature{f: l.l.Features[p]})
	}
	return out
}

func (l *Layer) featuresInBoundsLinear(b Bounds) []Feature {
	var out []Feature
	for _, f := range l.l.Features {
		if f.Bounds().Intersects(b) {
			out = append(out, Feature{f: f})
		}
	}
	return out
}

// EnsureField adds name to every feature, migrating values held under a
// differently-cased name.
func (l *Layer) EnsureField(name string, zero interface{}) []FieldMigration {
	return l.l.EnsureField(name, zero)
}

// KeepFields drops every attribute not listed.
func (l *Layer) KeepFields(names ...string) {
	l.l.KeepFields(names...)
}

// Clone returns a deep copy of l without its index.
func (l *Layer) Clone() *Layer {
	return wrapLayer(l.l.Clone())
}
