package geometry

import (
	"fmt"
)

// TopologyError indicates an overlay operation failed or produced an
// inconsistent result (lost area, duplicate segments, degenerate rings).
type TopologyError struct {
	Op        string // intersection, union, difference, eliminate
	Layer     string
	FeatureID int64
	Cause     error
}

func (e *TopologyError) Error() string {
	msg := fmt.Sprintf("topology error during %s", e.Op)
	if e.Layer != "" {
		msg += fmt.Sprintf(" on layer %s", e.Layer)
	}
	if e.FeatureID != 0 {
		msg += fmt.Sprintf(" (feature %d)", e.FeatureID)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *TopologyError) Unwrap() error { return e.Cause }

// InvalidGeometryError indicates geometry that cannot be repaired
type InvalidGeometryError struct {
	FeatureID int64
	Reason    string
}

func (e *InvalidGeometryError) Error() string {
	if e.FeatureID != 0 {
		return fmt.Sprintf("invalid geometry (feature %d): %s", e.FeatureID, e.Reason)
	}
	return fmt.Sprintf("invalid geometry: %s", e.Reason)
}

// recoverTopology converts a panic raised inside the overlay library into a
// TopologyError assigned to *err.
func recoverTopology(op string, err *error) {
	if r := recover(); r != nil {
		*err = &TopologyError{Op: op, Cause: fmt.Errorf("%v", r)}
	}
}
