package conflate

import (
	"context"
	"sort"

	"github.com/beetlebugorg/basemerge/internal/geometry"
	"github.com/ctessum/geom"
	"go.uber.org/zap"
)

// AssembleOptions configures Assemble.
type AssembleOptions struct {
	// BaseTag and NewTag prefix the merge fields written to every row:
	// <BaseTag>_OBJID, <BaseTag>_Area, <BaseTag>_Relationship, <NewTag>_OBJID.
	BaseTag string
	NewTag  string

	SliverSize float64
	Tolerance  float64

	Logger *zap.Logger
}

// FieldNames holds the merge field names derived from the tags.
type FieldNames struct {
	BaseID       string
	BaseArea     string
	Relationship string
	NewID        string
}

// Fields returns the merge field names for o.
func (o AssembleOptions) Fields() FieldNames {
	return FieldNames{
		BaseID:       o.BaseTag + "_OBJID",
		BaseArea:     o.BaseTag + "_Area",
		Relationship: o.BaseTag + "_Relationship",
		NewID:        o.NewTag + "_OBJID",
	}
}

// Reserved lists the merge field names.
func (f FieldNames) Reserved() []string {
	return []string{f.BaseID, f.BaseArea, f.Relationship, f.NewID}
}

// AssembleReport summarises one Assemble call.
type AssembleReport struct {
	Split     int // base polygons divided
	Pieces    int // pieces produced from split polygons
	Relabeled int // unsplit base polygons taking a New label
	Untouched int
	Slivers   SliverReport
}

// Assemble builds the merged layer from base, the new features and the
// classified intersection records.
//
// Base polygons with at least one Split record are cut along the new
// features overlapping them. Each cutter, in order of overlap area, claims
// its share of what remains; the rest of the polygon becomes a NotNew piece.
// Every other base polygon keeps its geometry and takes the label and NewID
// of its largest overlap. Output rows are ordered by base ID, label, NewID
// and area, and renumbered from 1.
func Assemble(ctx context.Context, base, newLayer *Layer, recs []Intersection, opts AssembleOptions) (*Layer, *AssembleReport, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	fields := opts.Fields()
	report := &AssembleReport{}
	groups := GroupByBase(recs)
	newByID := newLayer.ByID()

	var rows []*Feature
	for _, b := range base.Features {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}
		group := groups[b.ID]
		baseArea := b.Area()

		if !hasSplit(group) {
			row := b.Clone()
			row.Attrs[fields.BaseID] = b.ID
			row.Attrs[fields.BaseArea] = baseArea
			row.Attrs[fields.Relationship] = ""
			row.Attrs[fields.NewID] = int64(0)
			if len(group) > 0 {
				best := group[0]
				row.Attrs[fields.Relationship] = best.Relationship.String()
				if best.Relationship != RelationshipBase {
					row.Attrs[fields.NewID] = best.NewID
					report.Relabeled++
				} else {
					report.Untouched++
				}
			} else {
				report.Untouched++
			}
			rows = append(rows, row)
			continue
		}

		pieces, slivers, err := splitPolygon(b, group, newByID, opts)
		if err != nil {
			return nil, report, annotate(err, base.Name, b.ID)
		}
		report.Split++
		report.Pieces += len(pieces)
		report.Slivers.Add(slivers)
		for _, p := range pieces {
			p.Attrs[fields.BaseID] = b.ID
			p.Attrs[fields.BaseArea] = baseArea
			rows = append(rows, p)
		}
	}

	sortRows(rows, fields)
	for i, r := range rows {
		r.ID = int64(i + 1)
	}
	out := NewLayer(base.Name, rows)

	if report.Slivers.Deleted > 0 {
		log.Warn("deleted standalone slivers from split polygons",
			zap.String("layer", base.Name),
			zap.Int("count", report.Slivers.Deleted),
			zap.Float64("area", report.Slivers.DeletedArea))
	}
	log.Debug("assembled merged layer",
		zap.String("layer", base.Name),
		zap.Int("split", report.Split),
		zap.Int("pieces", report.Pieces),
		zap.Int("relabeled", report.Relabeled),
		zap.Int("rows", out.Count()))
	return out, report, nil
}

func hasSplit(group []Intersection) bool {
	for _, r := range group {
		if r.Relationship == RelationshipSplit {
			return true
		}
	}
	return false
}

// splitPolygon cuts b along its Split and New overlaps. group is already in
// area-descending, NewID-ascending order.
func splitPolygon(b *Feature, group []Intersection, newByID map[int64]*Feature, opts AssembleOptions) ([]*Feature, SliverReport, error) {
	fields := opts.Fields()
	remainder := b.Geom
	var parts []*Feature
	var nextID int64 = 1

	add := func(g geom.Polygon, rel string, newID int64) {
		for _, part := range geometry.Explode(g) {
			f := &Feature{ID: nextID, Geom: part, Attrs: cloneAttrs(b.Attrs)}
			f.Attrs[fields.Relationship] = rel
			f.Attrs[fields.NewID] = newID
			parts = append(parts, f)
			nextID++
		}
	}

	for _, rec := range group {
		if rec.Relationship == RelationshipBase || len(remainder) == 0 {
			continue
		}
		n, ok := newByID[rec.NewID]
		if !ok {
			continue
		}
		claimed, err := geometry.Intersection(remainder, n.Geom)
		if err != nil {
			return nil, SliverReport{}, err
		}
		if geometry.Area(claimed) <= 0 {
			continue
		}
		rest, err := geometry.Difference(remainder, n.Geom)
		if err != nil {
			return nil, SliverReport{}, err
		}
		remainder = rest
		add(claimed, rec.Relationship.String(), rec.NewID)
	}
	if geometry.Area(remainder) > 0 {
		add(remainder, NotNew, 0)
	}

	pieces := NewLayer("pieces", parts)
	var report SliverReport
	if hasNonSliver(pieces, opts.SliverSize) {
		var err error
		report, err = EliminateSlivers(pieces, opts.SliverSize, opts.Tolerance)
		if err != nil {
			return nil, report, err
		}
	}
	return pieces.Features, report, nil
}

func hasNonSliver(l *Layer, sliverSize float64) bool {
	for _, f := range l.Features {
		if f.Area() >= sliverSize {
			return true
		}
	}
	return false
}

// sortRows orders merged rows by base ID, label, NewID, then area
// descending. Rows equal on all four keep their relative order.
func sortRows(rows []*Feature, fields FieldNames) {
	areas := make(map[*Feature]float64, len(rows))
	for _, r := range rows {
		areas[r] = r.Area()
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if ai, bi := int64Attr(a, fields.BaseID), int64Attr(b, fields.BaseID); ai != bi {
			return ai < bi
		}
		if ar, br := stringAttr(a, fields.Relationship), stringAttr(b, fields.Relationship); ar != br {
			return ar < br
		}
		if an, bn := int64Attr(a, fields.NewID), int64Attr(b, fields.NewID); an != bn {
			return an < bn
		}
		return areas[a] > areas[b]
	})
}

func int64Attr(f *Feature, name string) int64 {
	switch v := f.Attrs[name].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func stringAttr(f *Feature, name string) string {
	s, _ := f.Attrs[name].(string)
	return s
}
