package basemerge

import (
	"time"

	"github.com/beetlebugorg/basemerge/internal/config"
	"github.com/beetlebugorg/basemerge/internal/geometry"
	"go.uber.org/zap"
)

// SnapRule is one snapping pass applied to new features.
type SnapRule = geometry.SnapRule

// SnapMode selects whether a pass snaps to vertices or edges.
type SnapMode = geometry.SnapMode

// Snap modes.
const (
	SnapVertex = geometry.SnapVertex
	SnapEdge   = geometry.SnapEdge
)

// DefaultSnapRules returns 0.5 vertex, 1 edge, 1 vertex.
func DefaultSnapRules() []SnapRule { return geometry.DefaultSnapRules() }

// MergeOptions configures Merge.
type MergeOptions struct {
	// BaseTag and NewTag prefix the merge fields and, for NewTag,
	// transferred attributes whose names collide with base fields.
	BaseTag string
	NewTag  string

	Thresholds Thresholds

	// SliverSize is the area below which fragments are absorbed or deleted.
	SliverSize float64

	// XYTolerance is the coordinate tolerance used when comparing
	// boundaries and geometries.
	XYTolerance float64

	// Clean snaps and tidies the new features before tabulation. When
	// false, overlapping new features are still resolved so that each
	// point of the base is claimed by at most one new feature; the lowest
	// ID keeps the shared area.
	Clean     bool
	SnapRules []SnapRule

	// BaseKey and NewKey name key attributes copied into intersection
	// records. BaseFields and NewFields add further attributes.
	BaseKey    string
	NewKey     string
	BaseFields []string
	NewFields  []string

	// TransferAttributes copies new-feature attributes onto New and Split
	// rows. TransferFields restricts which attributes are copied and
	// KeepFields prunes rows before the copy.
	TransferAttributes bool
	TransferFields     []string
	KeepFields         []string

	// Workers bounds concurrent overlay work. Zero means one per CPU.
	Workers int

	Logger *zap.Logger
}

// DefaultMergeOptions returns options with default thresholds, a sliver
// size of 1, a tolerance of 0.001 and cleaning and transfer enabled.
func DefaultMergeOptions() MergeOptions {
	return MergeOptions{
		BaseTag:            "Base",
		NewTag:             "New",
		Thresholds:         DefaultThresholds(),
		SliverSize:         1,
		XYTolerance:        0.001,
		Clean:              true,
		SnapRules:          DefaultSnapRules(),
		TransferAttributes: true,
	}
}

// PipelineOptions configures a workspace pipeline run.
type PipelineOptions struct {
	Merge MergeOptions

	BaseLayer   string
	NewLayer    string
	OutputLayer string
	ClipLayer   string // optional

	Stages       config.Stages
	StageTimeout time.Duration // zero for none

	Lookups []config.Lookup
}

// DefaultPipelineOptions returns the options of an empty configuration.
func DefaultPipelineOptions() PipelineOptions {
	opts, _ := FromConfig(config.Default())
	return opts
}

// FromConfig converts a loaded configuration.
func FromConfig(cfg *config.Config) (PipelineOptions, error) {
	rules, err := cfg.GeometrySnapRules()
	if err != nil {
		return PipelineOptions{}, err
	}
	m := MergeOptions{
		BaseTag:            cfg.BaseTag,
		NewTag:             cfg.NewTag,
		Thresholds:         cfg.Thresholds,
		SliverSize:         cfg.SliverSize,
		XYTolerance:        cfg.XYTolerance,
		Clean:              cfg.Stages.SnapNew,
		SnapRules:          rules,
		BaseKey:            cfg.BaseKey,
		NewKey:             cfg.NewKey,
		BaseFields:         cfg.BaseTIFields,
		NewFields:          cfg.NewTIFields,
		TransferAttributes: cfg.Stages.JoinAttributes,
		KeepFields:         cfg.KeepFields,
		Workers:            cfg.Workers,
	}
	return PipelineOptions{
		Merge:        m,
		BaseLayer:    cfg.BaseLayer,
		NewLayer:     cfg.NewLayer,
		OutputLayer:  cfg.OutputLayer,
		ClipLayer:    cfg.ClipLayer,
		Stages:       cfg.Stages,
		StageTimeout: cfg.Timeout(),
		Lookups:      cfg.Lookups,
	}, nil
}

func (o MergeOptions) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
