// Package basemerge merges a layer of new polygon features into an
// authoritative base map.
//
// Every base polygon is compared with the new features overlapping it. The
// overlap percentage and area decide whether the base polygon is kept as-is,
// relabelled wholesale with the new feature, or split along the new
// feature's boundary. The merged layer covers exactly the same area as the
// base map: split polygons are erased and their pieces put back, and tiny
// sliver fragments are absorbed into their largest neighbour.
//
// # Basic Usage
//
//	base, _ := basemerge.ReadLayer("OSMM.geojson")
//	crops, _ := basemerge.ReadLayer("CROME.shp")
//
//	opts := basemerge.DefaultMergeOptions()
//	opts.BaseTag, opts.NewTag = "OSMM", "CROME"
//	opts.Thresholds.SignificantSize = 500
//
//	result, err := basemerge.Merge(ctx, base, crops, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d polygons split, %d relabelled\n",
//	    result.Report.Split, result.Report.Relabeled)
//
// # Classification
//
// Each overlap is labelled by Classify:
//
//   - Base when the overlap is below IgnoreLow percent of the base polygon
//     and below SignificantSize in absolute area
//   - Split when it is below IgnoreHigh percent
//   - New otherwise
//
// Defaults are 5%, 95% and 200 square units. They are tuned per dataset and
// should be configured rather than relied upon.
//
// # Merged Fields
//
// Each merged row carries <BaseTag>_OBJID (the source base polygon),
// <BaseTag>_Area (its area before splitting), <BaseTag>_Relationship
// ("Base", "Split", "New", "Not new" or empty) and <NewTag>_OBJID (the new
// feature whose attributes were taken, or 0).
//
// # Workspaces and Checkpoints
//
// For long unattended runs, a Workspace wraps a directory of layers plus a
// SQLite checkpoint database. Pipeline runs the merge as a sequence of
// stages and records each completed stage, so a re-run resumes after the
// last checkpoint. RunBatch processes many workspaces one after another and
// reports failures at the end instead of stopping.
//
//	report := basemerge.RunBatch(ctx, dirs, opts, basemerge.BatchOptions{
//	    Progress: func(done, total int) { fmt.Printf("\r%d/%d", done, total) },
//	    ErrorLog: os.Stderr,
//	})
//	for _, f := range report.Failures {
//	    fmt.Println(f.Workspace, f.Stage, f.Err)
//	}
package basemerge
