package basemerge

import (
	"errors"
	"fmt"

	"github.com/beetlebugorg/basemerge/internal/geometry"
)

// TopologyError reports a failed or inconsistent overlay operation.
type TopologyError = geometry.TopologyError

// InvalidGeometryError reports geometry that could not be repaired.
type InvalidGeometryError = geometry.InvalidGeometryError

// MissingLayerError indicates that a workspace lacks a required input layer.
type MissingLayerError struct {
	Workspace string
	Layer     string
}

func (e *MissingLayerError) Error() string {
	return fmt.Sprintf("workspace %s: layer %s not found", e.Workspace, e.Layer)
}

// StageError wraps a failure with the workspace and stage it occurred in.
type StageError struct {
	Workspace string
	Stage     Stage
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("workspace %s: stage %s: %v", e.Workspace, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// IsTopologyError reports whether err wraps a *TopologyError.
func IsTopologyError(err error) bool {
	var te *TopologyError
	return errors.As(err, &te)
}
