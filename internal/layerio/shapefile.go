package layerio

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/beetlebugorg/basemerge/internal/conflate"
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
)

// ReadShapefile loads a polygon layer from an ESRI shapefile. Numeric
// attribute values are parsed as float64; everything else stays a string.
// IDs come from the OBJECTID field when present, else the record number.
func ReadShapefile(path string) (*conflate.Layer, error) {
	d, err := shp.NewDecoder(path)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	var fieldNames []string
	for _, f := range d.Fields() {
		fieldNames = append(fieldNames, fieldName(f.Name))
	}

	var features []*conflate.Feature
	for row := 1; ; row++ {
		g, fields, more := d.DecodeRowFields(fieldNames...)
		if !more {
			break
		}
		poly, err := toPolygon(g)
		if err != nil {
			return nil, &FormatError{Path: path, Err: fmt.Errorf("record %d: %w", row, err)}
		}
		attrs := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			attrs[k] = parseCell(v)
		}
		id, ok := parseID(attrs[IDField])
		if !ok {
			id = int64(row)
		}
		features = append(features, &conflate.Feature{ID: id, Geom: poly, Attrs: attrs})
	}
	if err := d.Error(); err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}
	return conflate.NewLayer(layerName(path), features), nil
}

func toPolygon(g geom.Geom) (geom.Polygon, error) {
	switch v := g.(type) {
	case geom.Polygon:
		return openRings(v), nil
	case geom.MultiPolygon:
		var out geom.Polygon
		for _, p := range v {
			out = append(out, openRings(p)...)
		}
		return out, nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported geometry type %T", g)
}

func openRings(p geom.Polygon) geom.Polygon {
	out := make(geom.Polygon, 0, len(p))
	for _, r := range p {
		if n := len(r); n > 1 && r[0] == r[n-1] {
			r = r[:n-1]
		}
		out = append(out, r)
	}
	return out
}

func fieldName(name [11]byte) string {
	b := bytes.Trim(name[:], "\x00")
	if n := bytes.IndexByte(b, 0); n >= 0 {
		b = b[:n]
	}
	return strings.TrimSpace(string(b))
}

// parseCell converts a textual cell into float64 when it is numeric.
// dBASE null markers (all asterisks) and blanks become nil.
func parseCell(s string) interface{} {
	s = strings.TrimSpace(strings.Trim(s, "\x00"))
	if s == "" || strings.Trim(s, "*") == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
