package basemerge

import (
	"context"
	"fmt"

	"github.com/beetlebugorg/basemerge/internal/conflate"
	"go.uber.org/zap"
)

// MergeReport summarises a merge.
type MergeReport struct {
	// New-feature cleaning; zero when Clean is off.
	Snapped    int
	Dropped    []int64 // unrepairable new features
	Duplicates []int64

	Intersections int
	ByRelation    map[Relationship]int

	Split     int // base polygons divided
	Pieces    int
	Relabeled int
	Untouched int

	SliversAbsorbed int
	SliversDeleted  int
	SliverArea      float64 // area of deleted standalone slivers

	Joined  int      // rows given new-feature attributes
	Renamed []string // attribute names written with the NewTag prefix
	Missing []int64  // NewIDs with no matching new feature
}

// Result is the outcome of Merge.
type Result struct {
	Layer         *Layer
	Intersections []Intersection
	Report        MergeReport
}

// Merge merges newLayer into base. Neither input is modified.
//
// The merged layer covers the same area as base up to deleted standalone
// slivers. Each row carries the merge fields described in the package
// documentation.
//
// Example:
//
//	result, err := basemerge.Merge(ctx, base, crops, basemerge.DefaultMergeOptions())
//	if err != nil {
//	    return err
//	}
//	basemerge.WriteLayer("merged.geojson", result.Layer)
func Merge(ctx context.Context, base, newLayer *Layer, opts MergeOptions) (*Result, error) {
	if err := opts.Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid thresholds: %w", err)
	}
	b := base.l.Clone()
	n := newLayer.l.Clone()
	var report MergeReport

	if opts.Clean {
		if err := cleanNew(ctx, n, b, opts, &report); err != nil {
			return nil, err
		}
	} else if err := resolveNew(ctx, n, opts); err != nil {
		return nil, err
	}
	recs, err := tabulate(ctx, b, n, opts, &report)
	if err != nil {
		return nil, err
	}
	merged, err := assemble(ctx, b, n, recs, opts, &report)
	if err != nil {
		return nil, err
	}
	if opts.TransferAttributes {
		transfer(merged, n, opts, &report)
	}
	return &Result{Layer: wrapLayer(merged), Intersections: recs, Report: report}, nil
}

func cleanNew(ctx context.Context, n, b *conflate.Layer, opts MergeOptions, report *MergeReport) error {
	cr, err := conflate.CleanNewFeatures(ctx, n, b, conflate.CleanOptions{
		SnapRules:  opts.SnapRules,
		SliverSize: opts.SliverSize,
		Tolerance:  opts.XYTolerance,
		Logger:     opts.logger(),
	})
	if cr != nil {
		report.Snapped = cr.Snapped
		report.Dropped = cr.Repaired
		report.Duplicates = cr.Duplicates
		report.SliversAbsorbed += cr.Slivers.Absorbed
		report.SliversDeleted += cr.Slivers.Deleted
		report.SliverArea += cr.Slivers.DeletedArea
	}
	if err != nil {
		return fmt.Errorf("clean %s: %w", n.Name, err)
	}
	return nil
}

// resolveNew removes double coverage from uncleaned new features. Cleaning
// already does this.
func resolveNew(ctx context.Context, n *conflate.Layer, opts MergeOptions) error {
	if opts.Clean {
		return nil
	}
	if err := conflate.ResolveOverlaps(ctx, n); err != nil {
		return fmt.Errorf("resolve overlaps in %s: %w", n.Name, err)
	}
	return nil
}

func tabulate(ctx context.Context, b, n *conflate.Layer, opts MergeOptions, report *MergeReport) ([]Intersection, error) {
	topts := conflate.DefaultTabulateOptions()
	topts.Thresholds = opts.Thresholds
	topts.BaseKey, topts.NewKey = opts.BaseKey, opts.NewKey
	topts.BaseFields, topts.NewFields = opts.BaseFields, opts.NewFields
	topts.Workers = opts.Workers
	topts.Logger = opts.logger()
	recs, err := conflate.Tabulate(ctx, b, n, topts)
	if err != nil {
		return nil, fmt.Errorf("tabulate: %w", err)
	}
	report.Intersections = len(recs)
	report.ByRelation = conflate.CountByRelationship(recs)
	return recs, nil
}

func assemble(ctx context.Context, b, n *conflate.Layer, recs []Intersection, opts MergeOptions, report *MergeReport) (*conflate.Layer, error) {
	merged, ar, err := conflate.Assemble(ctx, b, n, recs, assembleOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	report.Split = ar.Split
	report.Pieces = ar.Pieces
	report.Relabeled = ar.Relabeled
	report.Untouched = ar.Untouched
	report.SliversAbsorbed += ar.Slivers.Absorbed
	report.SliversDeleted += ar.Slivers.Deleted
	report.SliverArea += ar.Slivers.DeletedArea
	opts.logger().Info("assembled merged layer",
		zap.String("layer", merged.Name),
		zap.Int("rows", merged.Count()),
		zap.Int("split", ar.Split),
		zap.Int("relabeled", ar.Relabeled))
	return merged, nil
}

func transfer(merged, n *conflate.Layer, opts MergeOptions, report *MergeReport) {
	tr := conflate.TransferAttributes(merged, n, conflate.TransferOptions{
		Fields:     assembleOptions(opts).Fields(),
		NewTag:     opts.NewTag,
		KeepFields: opts.KeepFields,
		Only:       opts.TransferFields,
	})
	report.Joined = tr.Joined
	report.Renamed = tr.Renamed
	report.Missing = tr.Missing
	if len(tr.Missing) > 0 {
		opts.logger().Warn("merged rows reference missing new features",
			zap.String("layer", merged.Name),
			zap.Int64s("ids", tr.Missing))
	}
}

func assembleOptions(opts MergeOptions) conflate.AssembleOptions {
	return conflate.AssembleOptions{
		BaseTag:    opts.BaseTag,
		NewTag:     opts.NewTag,
		SliverSize: opts.SliverSize,
		Tolerance:  opts.XYTolerance,
		Logger:     opts.logger(),
	}
}
