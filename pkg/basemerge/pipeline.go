package basemerge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/beetlebugorg/basemerge/internal/checkpoint"
	"github.com/beetlebugorg/basemerge/internal/conflate"
	"github.com/beetlebugorg/basemerge/internal/layerio"
	"go.uber.org/zap"
)

// Stage is one step of a workspace pipeline.
type Stage int

// Stages in execution order.
const (
	StageSinglePart Stage = iota
	StageClipNew
	StageSnapNew
	StageTabulate
	StageJointShapes
	StageJoinAttributes
	StageLookupJoin
)

var stageNames = [...]string{
	"single_part",
	"clip_new",
	"snap_new",
	"tabulate",
	"joint_shapes",
	"join_attributes",
	"lookup_join",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// ParseStage parses a stage name such as "tabulate".
func ParseStage(name string) (Stage, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, s := range stageNames {
		if s == n {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

// AllStages returns every stage in execution order.
func AllStages() []Stage {
	out := make([]Stage, len(stageNames))
	for i := range out {
		out[i] = Stage(i)
	}
	return out
}

// PipelineReport summarises one workspace run.
type PipelineReport struct {
	Workspace string
	Completed []Stage // run to completion this time
	Resumed   []Stage // skipped because a checkpoint exists
	Skipped   []Stage // disabled or not applicable
	Warnings  []string
	Merge     MergeReport // counts from stages run this time
	Output    string
	Rows      int
	Elapsed   time.Duration
}

// Pipeline runs the merge for one workspace as resumable stages.
//
// Each stage writes its output to the workspace and then records a
// checkpoint. Stages with a checkpoint are not run again; their output is
// reloaded instead, unless an earlier stage ran in the same Run.
// Workspace.Reset discards checkpoints.
type Pipeline struct {
	ws   *Workspace
	opts PipelineOptions
	log  *zap.Logger

	// current inputs, loaded lazily by name
	base, newL        *conflate.Layer
	baseName, newName string
	recs              []Intersection
	haveRecs          bool
	merged            *conflate.Layer
	mergedName        string

	// set once a stage has run in this Run; later checkpoints are stale
	rerun bool
}

// testHookBeforeStage, if non-nil, is called before each stage that is run
// rather than resumed. A non-nil error fails the stage.
var testHookBeforeStage func(workspace string, s Stage) error

// NewPipeline creates a pipeline over ws.
func NewPipeline(ws *Workspace, opts PipelineOptions) *Pipeline {
	return &Pipeline{
		ws:   ws,
		opts: opts,
		log:  opts.Merge.logger().With(zap.String("workspace", ws.Name)),
	}
}

// Run executes every enabled stage and writes the merged layer to
// OutputLayer. The first failing stage stops the run with a *StageError.
func (p *Pipeline) Run(ctx context.Context) (*PipelineReport, error) {
	start := time.Now()
	report := &PipelineReport{Workspace: p.ws.Name}
	p.baseName, p.newName = p.opts.BaseLayer, p.opts.NewLayer
	p.rerun = false

	for _, name := range []string{p.baseName, p.newName} {
		if !p.ws.HasLayer(name) {
			return report, &StageError{
				Workspace: p.ws.Name,
				Stage:     StageSinglePart,
				Err:       &MissingLayerError{Workspace: p.ws.Name, Layer: name},
			}
		}
	}

	s := p.opts.Stages
	steps := []struct {
		stage   Stage
		enabled bool
		run     func(context.Context, *PipelineReport) (string, int, error)
		reload  func(Checkpoint) error
	}{
		{StageSinglePart, s.SinglePart, p.singlePart, p.reloadBase},
		{StageClipNew, s.ClipNew && p.opts.ClipLayer != "", p.clipNew, p.reloadNew},
		{StageSnapNew, s.SnapNew, p.snapNew, p.reloadNew},
		{StageTabulate, s.Tabulate, p.tabulate, p.reloadIntersections},
		{StageJointShapes, s.JointShapes, p.jointShapes, p.reloadMerged},
		{StageJoinAttributes, s.JoinAttributes && s.JointShapes, p.joinAttributes, p.reloadMerged},
		{StageLookupJoin, s.LookupJoin && s.JointShapes && len(p.opts.Lookups) > 0, p.lookupJoin, p.reloadMerged},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return report, &StageError{Workspace: p.ws.Name, Stage: step.stage, Err: err}
		}
		if !step.enabled {
			report.Skipped = append(report.Skipped, step.stage)
			continue
		}
		if err := p.runStage(ctx, step.stage, step.run, step.reload, report); err != nil {
			return report, &StageError{Workspace: p.ws.Name, Stage: step.stage, Err: err}
		}
	}

	if p.mergedName != "" {
		merged, err := p.mergedLayer()
		if err != nil {
			return report, &StageError{Workspace: p.ws.Name, Stage: StageJointShapes, Err: err}
		}
		if err := p.ws.writeLayer(p.opts.OutputLayer, merged); err != nil {
			return report, &StageError{Workspace: p.ws.Name, Stage: StageJointShapes, Err: err}
		}
		report.Output = p.opts.OutputLayer
		report.Rows = merged.Count()
	}
	report.Elapsed = time.Since(start)
	p.log.Info("workspace complete",
		zap.String("layer", report.Output),
		zap.Int("rows", report.Rows),
		zap.Duration("elapsed", report.Elapsed))
	return report, nil
}

func (p *Pipeline) runStage(ctx context.Context, stage Stage,
	run func(context.Context, *PipelineReport) (string, int, error),
	reload func(Checkpoint) error, report *PipelineReport) error {

	log := p.log.With(zap.Stringer("stage", stage))
	cp, ok, err := p.ws.store.Get(stage.String())
	if err != nil {
		return err
	}
	if ok && p.rerun {
		log.Info("ignoring checkpoint older than an earlier stage",
			zap.String("layer", cp.Output))
		ok = false
	}
	if ok {
		if err := reload(cp); err != nil {
			return fmt.Errorf("resume from checkpoint: %w", err)
		}
		log.Info("resuming from checkpoint",
			zap.String("layer", cp.Output),
			zap.Int("rows", cp.Rows))
		report.Resumed = append(report.Resumed, stage)
		return nil
	}

	sctx := ctx
	if p.opts.StageTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, p.opts.StageTimeout)
		defer cancel()
	}
	start := time.Now()
	p.rerun = true
	var output string
	var rows int
	if testHookBeforeStage != nil {
		err = testHookBeforeStage(p.ws.Name, stage)
	}
	if err == nil {
		output, rows, err = run(sctx, report)
	}
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(sctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", p.opts.StageTimeout, err)
		}
		log.Error("stage failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		return err
	}

	var warning string
	if rows == 0 {
		warning = fmt.Sprintf("%s: %s is empty", stage, output)
		report.Warnings = append(report.Warnings, warning)
		log.Warn("stage produced no rows", zap.String("layer", output))
	}
	err = p.ws.store.Mark(checkpoint.Checkpoint{
		Stage:   stage.String(),
		Output:  output,
		Rows:    rows,
		Elapsed: elapsed,
		Warning: warning,
	})
	if err != nil {
		return err
	}
	log.Info("stage complete",
		zap.String("layer", output),
		zap.Int("rows", rows),
		zap.Duration("elapsed", elapsed))
	report.Completed = append(report.Completed, stage)
	return nil
}

func (p *Pipeline) baseLayer() (*conflate.Layer, error) {
	if p.base == nil {
		l, err := p.ws.readLayer(p.baseName)
		if err != nil {
			return nil, err
		}
		p.base = l
	}
	return p.base, nil
}

func (p *Pipeline) newLayer(ctx context.Context) (*conflate.Layer, error) {
	if p.newL == nil {
		l, err := p.ws.readLayer(p.newName)
		if err != nil {
			return nil, err
		}
		if err := resolveNew(ctx, l, p.opts.Merge); err != nil {
			return nil, err
		}
		p.newL = l
	}
	return p.newL, nil
}

func (p *Pipeline) mergedLayer() (*conflate.Layer, error) {
	if p.merged == nil {
		l, err := p.ws.readLayer(p.mergedName)
		if err != nil {
			return nil, err
		}
		p.merged = l
	}
	return p.merged, nil
}

func (p *Pipeline) reloadBase(cp Checkpoint) error {
	if !p.ws.HasLayer(cp.Output) {
		return &MissingLayerError{Workspace: p.ws.Name, Layer: cp.Output}
	}
	p.base, p.baseName = nil, cp.Output
	return nil
}

func (p *Pipeline) reloadNew(cp Checkpoint) error {
	if !p.ws.HasLayer(cp.Output) {
		return &MissingLayerError{Workspace: p.ws.Name, Layer: cp.Output}
	}
	p.newL, p.newName = nil, cp.Output
	return nil
}

func (p *Pipeline) reloadMerged(cp Checkpoint) error {
	if !p.ws.HasLayer(cp.Output) {
		return &MissingLayerError{Workspace: p.ws.Name, Layer: cp.Output}
	}
	p.merged, p.mergedName = nil, cp.Output
	return nil
}

func (p *Pipeline) reloadIntersections(cp Checkpoint) error {
	recs, err := p.ws.store.LoadIntersections(cp.Output)
	if err != nil {
		return err
	}
	p.recs, p.haveRecs = recs, true
	return nil
}

// publish writes l under name and makes it the current layer in *cur.
func (p *Pipeline) publish(name string, l *conflate.Layer, cur **conflate.Layer, curName *string) (string, int, error) {
	if err := p.ws.writeLayer(name, l); err != nil {
		return "", 0, err
	}
	*cur, *curName = l, name
	return name, l.Count(), nil
}

func (p *Pipeline) singlePart(ctx context.Context, _ *PipelineReport) (string, int, error) {
	b, err := p.baseLayer()
	if err != nil {
		return "", 0, err
	}
	added := conflate.ExplodeLayer(b)
	if dropped := conflate.RepairLayer(b); len(dropped) > 0 {
		p.log.Warn("dropped unrepairable base polygons",
			zap.String("layer", b.Name), zap.Int64s("ids", dropped))
	}
	p.log.Debug("exploded base layer", zap.Int("added", added))
	return p.publish(p.opts.BaseLayer+"_single", b, &p.base, &p.baseName)
}

func (p *Pipeline) clipNew(ctx context.Context, _ *PipelineReport) (string, int, error) {
	clip, err := p.ws.readLayer(p.opts.ClipLayer)
	if err != nil {
		return "", 0, err
	}
	n, err := p.newLayer(ctx)
	if err != nil {
		return "", 0, err
	}
	dropped, err := conflate.ClipLayer(ctx, n, clip)
	if err != nil {
		return "", 0, err
	}
	p.log.Debug("clipped new features",
		zap.String("layer", n.Name), zap.Int("dropped", len(dropped)))
	return p.publish(p.opts.NewLayer+"_clip", n, &p.newL, &p.newName)
}

func (p *Pipeline) snapNew(ctx context.Context, report *PipelineReport) (string, int, error) {
	n, err := p.newLayer(ctx)
	if err != nil {
		return "", 0, err
	}
	b, err := p.baseLayer()
	if err != nil {
		return "", 0, err
	}
	if err := cleanNew(ctx, n, b, p.opts.Merge, &report.Merge); err != nil {
		return "", 0, err
	}
	return p.publish(p.opts.NewLayer+"_clean", n, &p.newL, &p.newName)
}

func (p *Pipeline) tabulateName() string {
	return p.opts.Merge.BaseTag + "_" + p.opts.Merge.NewTag + "_TI"
}

func (p *Pipeline) intersections(ctx context.Context, report *PipelineReport) ([]Intersection, error) {
	if p.haveRecs {
		return p.recs, nil
	}
	b, err := p.baseLayer()
	if err != nil {
		return nil, err
	}
	n, err := p.newLayer(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := tabulate(ctx, b, n, p.opts.Merge, &report.Merge)
	if err != nil {
		return nil, err
	}
	p.recs, p.haveRecs = recs, true
	return recs, nil
}

func (p *Pipeline) tabulate(ctx context.Context, report *PipelineReport) (string, int, error) {
	recs, err := p.intersections(ctx, report)
	if err != nil {
		return "", 0, err
	}
	name := p.tabulateName()
	if err := p.ws.store.SaveIntersections(name, recs); err != nil {
		return "", 0, err
	}
	return name, len(recs), nil
}

func (p *Pipeline) jointShapes(ctx context.Context, report *PipelineReport) (string, int, error) {
	recs, err := p.intersections(ctx, report)
	if err != nil {
		return "", 0, err
	}
	b, err := p.baseLayer()
	if err != nil {
		return "", 0, err
	}
	n, err := p.newLayer(ctx)
	if err != nil {
		return "", 0, err
	}
	merged, err := assemble(ctx, b, n, recs, p.opts.Merge, &report.Merge)
	if err != nil {
		return "", 0, err
	}
	return p.publish(p.opts.OutputLayer+"_joint", merged, &p.merged, &p.mergedName)
}

func (p *Pipeline) joinAttributes(ctx context.Context, report *PipelineReport) (string, int, error) {
	merged, err := p.mergedLayer()
	if err != nil {
		return "", 0, err
	}
	n, err := p.newLayer(ctx)
	if err != nil {
		return "", 0, err
	}
	transfer(merged, n, p.opts.Merge, &report.Merge)
	return p.publish(p.opts.OutputLayer+"_attrs", merged, &p.merged, &p.mergedName)
}

func (p *Pipeline) lookupJoin(ctx context.Context, report *PipelineReport) (string, int, error) {
	merged, err := p.mergedLayer()
	if err != nil {
		return "", 0, err
	}
	for _, lk := range p.opts.Lookups {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}
		t, err := layerio.ReadLookupTable(lk.Table)
		if err != nil {
			return "", 0, err
		}
		jr, err := layerio.JoinLookup(merged, t, lk.LayerField, lk.TableKey, lk.Columns...)
		if err != nil {
			return "", 0, fmt.Errorf("join %s: %w", lk.Table, err)
		}
		if jr.Unmatched > 0 {
			msg := fmt.Sprintf("%s: %d rows unmatched in %s", StageLookupJoin, jr.Unmatched, lk.Table)
			report.Warnings = append(report.Warnings, msg)
			p.log.Warn("lookup rows unmatched",
				zap.String("table", lk.Table),
				zap.Int("matched", jr.Matched),
				zap.Int("unmatched", jr.Unmatched))
		}
	}
	return p.publish(p.opts.OutputLayer+"_lookup", merged, &p.merged, &p.mergedName)
}
