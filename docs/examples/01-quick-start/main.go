package main

import (
	"context"
	"fmt"
	"log"

	"github.com/beetlebugorg/basemerge/pkg/basemerge"
)

func main() {
	base, err := basemerge.ReadLayer("OSMM.geojson")
	if err != nil {
		log.Fatal(err)
	}
	crops, err := basemerge.ReadLayer("CROME.shp")
	if err != nil {
		log.Fatal(err)
	}

	opts := basemerge.DefaultMergeOptions()
	opts.BaseTag = "OSMM"
	opts.NewTag = "CROME"

	result, err := basemerge.Merge(context.Background(), base, crops, opts)
	if err != nil {
		log.Fatal(err)
	}

	r := result.Report
	fmt.Printf("Overlaps: %d\n", r.Intersections)
	fmt.Printf("Split: %d polygons into %d pieces\n", r.Split, r.Pieces)
	fmt.Printf("Relabelled: %d\n", r.Relabeled)
	fmt.Printf("Area: %.1f -> %.1f\n", base.TotalArea(), result.Layer.TotalArea())

	if err := basemerge.WriteLayer("OSMM_CROME.geojson", result.Layer); err != nil {
		log.Fatal(err)
	}
}
