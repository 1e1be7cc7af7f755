package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/beetlebugorg/basemerge/pkg/basemerge"
)

func main() {
	ws, err := basemerge.OpenWorkspace("tiles/SU12", nil)
	if err != nil {
		log.Fatal(err)
	}
	defer ws.Close()

	_, err = basemerge.NewPipeline(ws, basemerge.DefaultPipelineOptions()).Run(context.Background())
	if err == nil {
		fmt.Println("Merge complete")
		return
	}

	var stageErr *basemerge.StageError
	if errors.As(err, &stageErr) {
		fmt.Printf("Failed in stage %s\n", stageErr.Stage)
	}

	var missing *basemerge.MissingLayerError
	var topo *basemerge.TopologyError
	switch {
	case errors.As(err, &missing):
		fmt.Printf("Layer %s is missing from %s\n", missing.Layer, missing.Workspace)
	case errors.As(err, &topo):
		fmt.Printf("Overlay %s failed on feature %d of %s: %v\n",
			topo.Op, topo.FeatureID, topo.Layer, topo.Cause)
		fmt.Println("Repair the geometry and rerun; completed stages are kept")
	case errors.Is(err, context.DeadlineExceeded):
		fmt.Println("Stage timed out; raise stage_timeout and rerun")
	default:
		fmt.Printf("Error: %v\n", err)
	}
}
