package basemerge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

// BatchOptions controls RunBatch progress and error handling.
type BatchOptions struct {
	// StopOnError aborts the batch at the first failing workspace.
	// When false, failures are recorded and the batch continues.
	StopOnError bool

	// Progress is called after each workspace finishes, successfully or
	// not, with the number processed so far.
	Progress func(done, total int)

	// ErrorLog receives one line per failed workspace.
	ErrorLog io.Writer

	// Cache is shared by all workspaces. Nil disables caching.
	Cache *LayerCache
}

// Failure records a workspace that did not complete.
type Failure struct {
	Workspace string
	Stage     Stage
	Layer     string // set for missing layers and topology errors
	Err       error
}

// BatchReport summarises RunBatch.
type BatchReport struct {
	Total     int
	Succeeded []*PipelineReport
	Failures  []Failure
	Warnings  []string // soft validation failures, prefixed by workspace
	Aborted   bool     // stopped early by StopOnError or cancellation
	Elapsed   time.Duration
}

// Err joins every failure into one error, or returns nil.
func (r *BatchReport) Err() error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f.Err
	}
	return errors.Join(errs...)
}

// RunBatch runs the pipeline over each workspace directory in turn.
//
// Workspaces are processed one at a time in the order given. A failing
// workspace is recorded with the stage and layer involved and the batch
// moves on; failures and warnings are collected in the report rather than
// retried.
//
// Example:
//
//	dirs, _ := basemerge.DiscoverWorkspaces(root, "OSMM", nil)
//	report := basemerge.RunBatch(ctx, dirs, opts, basemerge.BatchOptions{
//	    Progress: func(done, total int) {
//	        fmt.Printf("\rMerging: %d/%d", done, total)
//	    },
//	    ErrorLog: os.Stderr,
//	})
//	if len(report.Failures) > 0 {
//	    fmt.Printf("\n%d workspaces failed\n", len(report.Failures))
//	}
func RunBatch(ctx context.Context, dirs []string, opts PipelineOptions, bopts BatchOptions) *BatchReport {
	start := time.Now()
	log := opts.Merge.logger()
	report := &BatchReport{Total: len(dirs)}

	for i, dir := range dirs {
		if err := ctx.Err(); err != nil {
			report.Aborted = true
			break
		}
		pr, err := runWorkspace(ctx, dir, opts, bopts.Cache)
		if pr != nil {
			for _, w := range pr.Warnings {
				report.Warnings = append(report.Warnings, pr.Workspace+": "+w)
			}
		}
		if err != nil {
			f := newFailure(dir, err)
			report.Failures = append(report.Failures, f)
			log.Error("workspace failed",
				zap.String("workspace", f.Workspace),
				zap.Stringer("stage", f.Stage),
				zap.String("layer", f.Layer),
				zap.Error(err))
			if bopts.ErrorLog != nil {
				fmt.Fprintf(bopts.ErrorLog, "Error merging workspace: %v\n", err)
			}
		} else {
			report.Succeeded = append(report.Succeeded, pr)
		}
		if bopts.Progress != nil {
			bopts.Progress(i+1, len(dirs))
		}
		if err != nil && bopts.StopOnError {
			report.Aborted = i+1 < len(dirs)
			break
		}
	}

	report.Elapsed = time.Since(start)
	log.Info("batch complete",
		zap.Int("workspaces", report.Total),
		zap.Int("succeeded", len(report.Succeeded)),
		zap.Int("failed", len(report.Failures)),
		zap.Int("warnings", len(report.Warnings)),
		zap.Duration("elapsed", report.Elapsed))
	return report
}

func runWorkspace(ctx context.Context, dir string, opts PipelineOptions, cache *LayerCache) (*PipelineReport, error) {
	ws, err := OpenWorkspace(dir, cache)
	if err != nil {
		return nil, err
	}
	defer ws.Close()
	return NewPipeline(ws, opts).Run(ctx)
}

func newFailure(dir string, err error) Failure {
	f := Failure{Workspace: dir, Err: err}
	var se *StageError
	if errors.As(err, &se) {
		f.Workspace = se.Workspace
		f.Stage = se.Stage
	}
	var ml *MissingLayerError
	var te *TopologyError
	switch {
	case errors.As(err, &ml):
		f.Layer = ml.Layer
	case errors.As(err, &te):
		f.Layer = te.Layer
	}
	return f
}
