package conflate

import (
	"context"
	"errors"

	"github.com/beetlebugorg/basemerge/internal/geometry"
	"github.com/ctessum/geom"
	"go.uber.org/zap"
)

// ExplodeLayer replaces every multipart feature by its single parts. The
// first part keeps the feature ID; the others get fresh IDs above the
// layer's current maximum, in feature order. It returns the number of parts
// added.
func ExplodeLayer(l *Layer) int {
	next := l.MaxID() + 1
	out := make([]*Feature, 0, len(l.Features))
	added := 0
	for _, f := range l.Features {
		parts := geometry.Explode(f.Geom)
		if len(parts) <= 1 {
			out = append(out, f)
			continue
		}
		f.Geom = parts[0]
		out = append(out, f)
		for _, p := range parts[1:] {
			out = append(out, &Feature{ID: next, Geom: p, Attrs: cloneAttrs(f.Attrs)})
			next++
			added++
		}
	}
	l.Features = out
	return added
}

// RepairLayer repairs every feature geometry and removes features that
// cannot be repaired. It returns the IDs removed.
func RepairLayer(l *Layer) []int64 {
	var dropped []int64
	kept := make([]*Feature, 0, len(l.Features))
	for _, f := range l.Features {
		if len(geometry.CheckGeometry(f.Geom)) == 0 {
			kept = append(kept, f)
			continue
		}
		fixed, err := geometry.RepairGeometry(f.Geom)
		if err != nil {
			dropped = append(dropped, f.ID)
			continue
		}
		f.Geom = fixed
		kept = append(kept, f)
	}
	l.Features = kept
	return dropped
}

// ResolveOverlaps removes double coverage within l. Where features overlap,
// the area is kept by the feature with the lowest ID. Features left with no
// area are removed.
func ResolveOverlaps(ctx context.Context, l *Layer) error {
	l.SortByID()
	originals := make([]geom.Polygon, len(l.Features))
	ix := geometry.NewIndex()
	for i, f := range l.Features {
		originals[i] = f.Geom
		ix.Insert(i, f.Bounds())
	}
	kept := make([]*Feature, 0, len(l.Features))
	for i, f := range l.Features {
		if err := ctx.Err(); err != nil {
			return err
		}
		g := f.Geom
		for _, j := range ix.Search(f.Bounds()) {
			if j >= i || len(g) == 0 {
				continue
			}
			diff, err := geometry.Difference(g, originals[j])
			if err != nil {
				return annotate(err, l.Name, f.ID)
			}
			g = diff
		}
		if geometry.Area(g) <= 0 {
			continue
		}
		f.Geom = g
		kept = append(kept, f)
	}
	l.Features = kept
	return nil
}

// ClipLayer trims every feature of l to the area covered by clip. Features
// falling wholly outside clip are removed and their IDs returned.
func ClipLayer(ctx context.Context, l, clip *Layer) ([]int64, error) {
	ix := clip.Index()
	var dropped []int64
	kept := make([]*Feature, 0, len(l.Features))
	for _, f := range l.Features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var g geom.Polygon
		for _, k := range ix.Search(f.Bounds()) {
			part, err := geometry.Intersection(f.Geom, clip.Features[k].Geom)
			if err != nil {
				return nil, annotate(err, l.Name, f.ID)
			}
			if len(part) == 0 {
				continue
			}
			if g, err = geometry.Union(g, part); err != nil {
				return nil, annotate(err, l.Name, f.ID)
			}
		}
		if geometry.Area(g) <= 0 {
			dropped = append(dropped, f.ID)
			continue
		}
		f.Geom = g
		kept = append(kept, f)
	}
	l.Features = kept
	return dropped, nil
}

// DeleteIdentical removes features whose geometry duplicates a feature with
// a lower ID, within tol. It returns the IDs removed.
func DeleteIdentical(l *Layer, tol float64) ([]int64, error) {
	l.SortByID()
	ix := geometry.NewIndex()
	var dropped []int64
	kept := make([]*Feature, 0, len(l.Features))
	for _, f := range l.Features {
		dup := false
		for _, k := range ix.Search(f.Bounds().Expand(tol)) {
			same, err := geometry.Identical(kept[k].Geom, f.Geom, tol)
			if err != nil {
				return nil, annotate(err, l.Name, f.ID)
			}
			if same {
				dup = true
				break
			}
		}
		if dup {
			dropped = append(dropped, f.ID)
			continue
		}
		ix.Insert(len(kept), f.Bounds())
		kept = append(kept, f)
	}
	l.Features = kept
	return dropped, nil
}

// SnapLayer snaps each feature of l onto the boundaries of target using
// rules in order. Features identical to a target polygon are left alone.
// It returns the number of features whose geometry changed.
func SnapLayer(ctx context.Context, l, target *Layer, rules []geometry.SnapRule, tol float64) (int, error) {
	targets := make([]geom.Polygon, len(target.Features))
	for i, f := range target.Features {
		targets[i] = f.Geom
	}
	snapper := geometry.NewSnapper(targets)
	tix := target.Index()
	changed := 0
	for _, f := range l.Features {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		identical := false
		for _, ti := range tix.Search(f.Bounds().Expand(tol)) {
			same, err := geometry.Identical(target.Features[ti].Geom, f.Geom, tol)
			if err != nil {
				return changed, annotate(err, l.Name, f.ID)
			}
			if same {
				identical = true
				break
			}
		}
		if identical {
			continue
		}
		snapped := snapper.Snap(f.Geom, rules)
		if !samePolygon(snapped, f.Geom) {
			changed++
		}
		f.Geom = snapped
	}
	return changed, nil
}

func samePolygon(a, b geom.Polygon) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}

// CleanOptions configures CleanNewFeatures.
type CleanOptions struct {
	SnapRules  []geometry.SnapRule
	SliverSize float64
	Tolerance  float64
	Logger     *zap.Logger
}

// CleanReport summarises CleanNewFeatures.
type CleanReport struct {
	Snapped    int
	Repaired   []int64 // IDs dropped as unrepairable
	Exploded   int
	Duplicates []int64
	Slivers    SliverReport
}

// CleanNewFeatures prepares a new-features layer for tabulation against
// base: snap, repair, resolve overlaps, explode, delete duplicates, then
// eliminate and delete slivers, and a final repair.
func CleanNewFeatures(ctx context.Context, newLayer, base *Layer, opts CleanOptions) (*CleanReport, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	report := &CleanReport{}

	var err error
	if len(opts.SnapRules) > 0 && base != nil {
		report.Snapped, err = SnapLayer(ctx, newLayer, base, opts.SnapRules, opts.Tolerance)
		if err != nil {
			return report, err
		}
	}
	report.Repaired = RepairLayer(newLayer)
	if err := ResolveOverlaps(ctx, newLayer); err != nil {
		return report, err
	}
	report.Exploded = ExplodeLayer(newLayer)
	report.Duplicates, err = DeleteIdentical(newLayer, opts.Tolerance)
	if err != nil {
		return report, err
	}
	report.Slivers, err = EliminateSlivers(newLayer, opts.SliverSize, opts.Tolerance)
	if err != nil {
		return report, err
	}
	report.Repaired = append(report.Repaired, RepairLayer(newLayer)...)
	newLayer.SortByID()

	if report.Slivers.Deleted > 0 {
		log.Warn("deleted standalone slivers",
			zap.String("layer", newLayer.Name),
			zap.Int("count", report.Slivers.Deleted),
			zap.Float64("area", report.Slivers.DeletedArea))
	}
	log.Debug("cleaned new features",
		zap.String("layer", newLayer.Name),
		zap.Int("snapped", report.Snapped),
		zap.Int("exploded", report.Exploded),
		zap.Int("duplicates", len(report.Duplicates)),
		zap.Int("absorbed", report.Slivers.Absorbed),
		zap.Int("rows", newLayer.Count()))
	return report, nil
}

// IsTopologyError reports whether err wraps a *geometry.TopologyError.
func IsTopologyError(err error) bool {
	var te *geometry.TopologyError
	return errors.As(err, &te)
}
