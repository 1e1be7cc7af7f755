package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/beetlebugorg/basemerge/pkg/basemerge"
)

func main() {
	opts := basemerge.DefaultPipelineOptions()
	opts.BaseLayer = "OSMM"
	opts.NewLayer = "CROME"
	opts.OutputLayer = "OSMM_CROME"
	opts.Merge.BaseTag = "OSMM"
	opts.Merge.NewTag = "CROME"

	dirs, err := basemerge.DiscoverWorkspaces("tiles", opts.BaseLayer, nil)
	if err != nil {
		log.Fatal(err)
	}

	report := basemerge.RunBatch(context.Background(), dirs, opts, basemerge.BatchOptions{
		Progress: func(done, total int) {
			fmt.Printf("\rMerging: %d/%d (%.0f%%)", done, total, float64(done)/float64(total)*100)
		},
		ErrorLog: os.Stderr,
		Cache:    basemerge.NewLayerCache(512 << 20),
	})
	fmt.Println()

	for _, s := range report.Succeeded {
		fmt.Printf("%s: %d rows (%d stages resumed)\n", s.Workspace, s.Rows, len(s.Resumed))
	}
	for _, w := range report.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	if len(report.Failures) > 0 {
		fmt.Printf("%d workspaces failed; rerun to resume them\n", len(report.Failures))
		os.Exit(1)
	}
}
