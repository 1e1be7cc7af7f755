package basemerge

import (
	"context"
	"testing"
)

// Benchmark R-tree spatial index vs linear scan for bounding box queries,
// and the merge itself over a parcel grid.

// BenchmarkFeaturesInBounds_Rtree benchmarks small window queries with the R-tree index.
func BenchmarkFeaturesInBounds_Rtree(b *testing.B) {
	// 10,000 parcels of 100m x 100m
	layer := createParcelGrid("base", 100, 100, 100, 0)
	layer.BuildIndex()

	// Small window (a farm - shows ~100 parcels)
	window := Bounds{MinX: 2000, MinY: 2000, MaxX: 3000, MaxY: 3000}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = layer.FeaturesInBounds(window)
	}
}

// BenchmarkFeaturesInBounds_Linear benchmarks small window queries with a linear scan.
func BenchmarkFeaturesInBounds_Linear(b *testing.B) {
	layer := createParcelGrid("base", 100, 100, 100, 0)
	// no index, force linear scan
	layer.index = nil

	window := Bounds{MinX: 2000, MinY: 2000, MaxX: 3000, MaxY: 3000}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = layer.FeaturesInBounds(window)
	}
}

// BenchmarkFeaturesInBounds_Rtree_LargeWindow benchmarks with a large window.
func BenchmarkFeaturesInBounds_Rtree_LargeWindow(b *testing.B) {
	layer := createParcelGrid("base", 100, 100, 100, 0)
	layer.BuildIndex()

	// Large window (a parish - shows ~1000 parcels)
	window := Bounds{MinX: 0, MinY: 0, MaxX: 3200, MaxY: 3200}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = layer.FeaturesInBounds(window)
	}
}

// BenchmarkFeaturesInBounds_Linear_LargeWindow benchmarks linear with a large window.
func BenchmarkFeaturesInBounds_Linear_LargeWindow(b *testing.B) {
	layer := createParcelGrid("base", 100, 100, 100, 0)
	layer.index = nil

	window := Bounds{MinX: 0, MinY: 0, MaxX: 3200, MaxY: 3200}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = layer.FeaturesInBounds(window)
	}
}

// BenchmarkMerge benchmarks a full merge where every new feature
// straddles four base parcels.
func BenchmarkMerge(b *testing.B) {
	base := createParcelGrid("base", 30, 30, 100, 0)
	crops := createParcelGrid("new", 29, 29, 100, 50)
	opts := DefaultMergeOptions()
	opts.Clean = false

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Merge(context.Background(), base, crops, opts); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkMerge_Clean benchmarks the same merge with new-feature cleaning.
func BenchmarkMerge_Clean(b *testing.B) {
	base := createParcelGrid("base", 30, 30, 100, 0)
	crops := createParcelGrid("new", 29, 29, 100, 50)
	opts := DefaultMergeOptions()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Merge(context.Background(), base, crops, opts); err != nil {
			b.Fatal(err)
		}
	}
}

// createParcelGrid creates cols x rows square parcels of side size, with
// the grid origin shifted by offset on both axes.
func createParcelGrid(name string, cols, rows int, size, offset float64) *Layer {
	features := make([]Feature, 0, cols*rows)
	habitats := []string{"Grassland", "Woodland", "Arable", "Water"}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			id := int64(r*cols + c + 1)
			x := offset + float64(c)*size
			y := offset + float64(r)*size
			features = append(features, NewFeature(id, box(x, y, x+size, y+size),
				attrs("habitat", habitats[int(id)%len(habitats)])))
		}
	}
	return NewLayer(name, features...)
}
