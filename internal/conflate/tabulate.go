package conflate

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"

	"github.com/beetlebugorg/basemerge/internal/geometry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Intersection is one overlap between a base and a new polygon.
type Intersection struct {
	BaseID       int64
	NewID        int64
	Area         float64 // overlap area
	Percent      float64 // overlap as a percentage of the base polygon
	BaseArea     float64
	NewArea      float64
	BaseKey      interface{}
	NewKey       interface{}
	BaseFields   map[string]interface{}
	NewFields    map[string]interface{}
	Relationship Relationship
}

// TabulateOptions configures Tabulate.
type TabulateOptions struct {
	Thresholds Thresholds

	// BaseKey and NewKey name the key attribute copied from each side.
	BaseKey string
	NewKey  string

	// BaseFields and NewFields name extra attributes copied into each record.
	BaseFields []string
	NewFields  []string

	// Overlaps at or below AreaEpsilon are discarded.
	AreaEpsilon float64

	// Workers bounds concurrent overlay work. Zero means GOMAXPROCS.
	Workers int

	Logger *zap.Logger
}

// DefaultTabulateOptions returns default thresholds and one worker per CPU.
func DefaultTabulateOptions() TabulateOptions {
	return TabulateOptions{
		Thresholds:  DefaultThresholds(),
		AreaEpsilon: 1e-6,
		Logger:      zap.NewNop(),
	}
}

// Tabulate computes and classifies every overlap between base and newLayer.
// Records are returned ordered by BaseID, then area descending, then NewID,
// independent of worker scheduling.
func Tabulate(ctx context.Context, base, newLayer *Layer, opts TabulateOptions) ([]Intersection, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	index := newLayer.Index()
	perBase := make([][]Intersection, len(base.Features))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range base.Features {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			recs, err := tabulateOne(base.Features[i], newLayer, index, opts)
			if err != nil {
				return err
			}
			perBase[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Intersection
	for _, recs := range perBase {
		out = append(out, recs...)
	}
	SortIntersections(out)
	opts.Logger.Debug("tabulated intersections",
		zap.String("base", base.Name),
		zap.String("new", newLayer.Name),
		zap.Int("rows", len(out)))
	return out, nil
}

func tabulateOne(b *Feature, newLayer *Layer, index *geometry.Index, opts TabulateOptions) ([]Intersection, error) {
	baseArea := b.Area()
	if baseArea <= 0 {
		return nil, nil
	}
	var recs []Intersection
	for _, pos := range index.Search(b.Bounds()) {
		n := newLayer.Features[pos]
		overlap, err := geometry.Intersection(b.Geom, n.Geom)
		if err != nil {
			return nil, annotate(err, newLayer.Name, b.ID)
		}
		area := geometry.Area(overlap)
		if area <= opts.AreaEpsilon {
			continue
		}
		pct := area / baseArea * 100
		recs = append(recs, Intersection{
			BaseID:       b.ID,
			NewID:        n.ID,
			Area:         area,
			Percent:      pct,
			BaseArea:     baseArea,
			NewArea:      n.Area(),
			BaseKey:      attr(b, opts.BaseKey),
			NewKey:       attr(n, opts.NewKey),
			BaseFields:   pick(b.Attrs, opts.BaseFields),
			NewFields:    pick(n.Attrs, opts.NewFields),
			Relationship: Classify(pct, area, opts.Thresholds),
		})
	}
	return recs, nil
}

func attr(f *Feature, name string) interface{} {
	if name == "" {
		return nil
	}
	return f.Attrs[name]
}

func pick(attrs map[string]interface{}, names []string) map[string]interface{} {
	if len(names) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(names))
	for _, n := range names {
		if v, ok := attrs[n]; ok {
			out[n] = v
		}
	}
	return out
}

// annotate fills in layer and feature on topology errors raised by the
// overlay helpers, keeping any wrapping around them.
func annotate(err error, layer string, id int64) error {
	var te *geometry.TopologyError
	if errors.As(err, &te) {
		te.Layer = layer
		te.FeatureID = id
		return err
	}
	return fmt.Errorf("feature %d: %w", id, err)
}

// SortIntersections orders records by BaseID, area descending, then NewID.
func SortIntersections(recs []Intersection) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.BaseID != b.BaseID {
			return a.BaseID < b.BaseID
		}
		if a.Area != b.Area {
			return a.Area > b.Area
		}
		return a.NewID < b.NewID
	})
}

// GroupByBase returns the records for each base ID, each group in
// SortIntersections order.
func GroupByBase(recs []Intersection) map[int64][]Intersection {
	sorted := append([]Intersection(nil), recs...)
	SortIntersections(sorted)
	groups := make(map[int64][]Intersection)
	for _, r := range sorted {
		groups[r.BaseID] = append(groups[r.BaseID], r)
	}
	return groups
}

// BestIntersections returns, per base ID, the record with the largest
// overlap. Exact area ties go to the lower NewID.
func BestIntersections(recs []Intersection) map[int64]Intersection {
	best := make(map[int64]Intersection)
	for id, group := range GroupByBase(recs) {
		best[id] = group[0]
	}
	return best
}

// CountByRelationship tallies records per label.
func CountByRelationship(recs []Intersection) map[Relationship]int {
	counts := make(map[Relationship]int)
	for _, r := range recs {
		counts[r.Relationship]++
	}
	return counts
}
