// Package layerio reads and writes polygon layers: GeoJSON through orb,
// shapefiles through the ctessum shapefile decoder, and CSV lookup tables.
package layerio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/beetlebugorg/basemerge/internal/conflate"
	"github.com/beetlebugorg/basemerge/internal/geometry"
	"github.com/ctessum/geom"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// IDField is the attribute consulted for a feature ID when the GeoJSON
// feature has none.
const IDField = "OBJECTID"

// ReadGeoJSON loads a polygon layer from a GeoJSON FeatureCollection.
// Features without polygon geometry are skipped.
func ReadGeoJSON(path string) (*conflate.Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}
	return FromFeatureCollection(layerName(path), fc)
}

// FromFeatureCollection converts fc into a layer. Feature IDs come from the
// GeoJSON id member, then the OBJECTID property, then the 1-based position.
func FromFeatureCollection(name string, fc *geojson.FeatureCollection) (*conflate.Layer, error) {
	features := make([]*conflate.Feature, 0, len(fc.Features))
	seen := make(map[int64]bool, len(fc.Features))
	for i, f := range fc.Features {
		g := fromOrb(f.Geometry)
		if g == nil {
			continue
		}
		attrs := make(map[string]interface{}, len(f.Properties))
		for k, v := range f.Properties {
			attrs[k] = v
		}
		id, ok := parseID(f.ID)
		if !ok {
			id, ok = parseID(attrs[IDField])
		}
		if !ok {
			id = int64(i + 1)
		}
		if seen[id] {
			return nil, fmt.Errorf("layer %s: duplicate feature id %d", name, id)
		}
		seen[id] = true
		features = append(features, &conflate.Feature{ID: id, Geom: g, Attrs: attrs})
	}
	return conflate.NewLayer(name, features), nil
}

// WriteGeoJSON writes l as a GeoJSON FeatureCollection. Each feature gets
// its ID as the GeoJSON id member.
func WriteGeoJSON(path string, l *conflate.Layer) error {
	data, err := ToFeatureCollection(l).MarshalJSON()
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ToFeatureCollection converts l to GeoJSON. Rings are closed and oriented
// counter-clockwise for shells, clockwise for holes.
func ToFeatureCollection(l *conflate.Layer) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range l.Features {
		gf := geojson.NewFeature(toOrb(f.Geom))
		gf.ID = f.ID
		keys := make([]string, 0, len(f.Attrs))
		for k := range f.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			gf.Properties[k] = f.Attrs[k]
		}
		fc.Append(gf)
	}
	return fc
}

func fromOrb(g orb.Geometry) geom.Polygon {
	switch v := g.(type) {
	case orb.Polygon:
		return ringsFromOrb(v)
	case orb.MultiPolygon:
		var out geom.Polygon
		for _, p := range v {
			out = append(out, ringsFromOrb(p)...)
		}
		return out
	}
	return nil
}

func ringsFromOrb(p orb.Polygon) geom.Polygon {
	out := make(geom.Polygon, 0, len(p))
	for _, r := range p {
		n := len(r)
		if n > 1 && r[0] == r[n-1] {
			n--
		}
		path := make(geom.Path, n)
		for i := 0; i < n; i++ {
			path[i] = geom.Point{X: r[i][0], Y: r[i][1]}
		}
		out = append(out, path)
	}
	return out
}

func toOrb(p geom.Polygon) orb.Geometry {
	parts := geometry.Explode(p)
	if len(parts) == 1 {
		return polygonToOrb(parts[0])
	}
	mp := make(orb.MultiPolygon, 0, len(parts))
	for _, part := range parts {
		mp = append(mp, polygonToOrb(part))
	}
	return mp
}

func polygonToOrb(part geom.Polygon) orb.Polygon {
	out := make(orb.Polygon, 0, len(part))
	for i, r := range part {
		ccw := geometry.RingArea(r) > 0
		reverse := (i == 0) != ccw
		ring := make(orb.Ring, 0, len(r)+1)
		for j := range r {
			k := j
			if reverse {
				k = len(r) - 1 - j
			}
			ring = append(ring, orb.Point{r[k].X, r[k].Y})
		}
		if len(ring) > 0 {
			ring = append(ring, ring[0])
		}
		out = append(out, ring)
	}
	return out
}

func parseID(v interface{}) (int64, bool) {
	switch id := v.(type) {
	case float64:
		if id == math.Trunc(id) && id > 0 {
			return int64(id), true
		}
	case int64:
		return id, id > 0
	case int:
		return int64(id), id > 0
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
		if err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}

func layerName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
