package conflate

import (
	"errors"
	"fmt"
	"strings"
)

// Relationship labels one base/new overlap.
type Relationship int

const (
	// RelationshipBase marks an overlap too small to matter; the base polygon is kept.
	RelationshipBase Relationship = iota
	// RelationshipSplit marks a partial overlap; the base polygon is divided.
	RelationshipSplit
	// RelationshipNew marks an overlap covering nearly the whole base polygon.
	RelationshipNew
)

// NotNew tags the parts of a split base polygon that lie outside every new
// feature. It is only written to output rows.
const NotNew = "Not new"

func (r Relationship) String() string {
	switch r {
	case RelationshipBase:
		return "Base"
	case RelationshipSplit:
		return "Split"
	case RelationshipNew:
		return "New"
	default:
		return fmt.Sprintf("Relationship(%d)", int(r))
	}
}

// ParseRelationship accepts the labels produced by String, in any case.
func ParseRelationship(s string) (Relationship, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "base":
		return RelationshipBase, nil
	case "split":
		return RelationshipSplit, nil
	case "new":
		return RelationshipNew, nil
	}
	return 0, fmt.Errorf("unknown relationship %q", s)
}

// Thresholds controls overlap classification. Percentages are 0-100 of the
// base polygon area; SignificantSize is in square layer units.
type Thresholds struct {
	IgnoreLow       float64 `yaml:"ignore_low"`
	IgnoreHigh      float64 `yaml:"ignore_high"`
	SignificantSize float64 `yaml:"significant_size"`
}

// DefaultThresholds returns 5%, 95% and 200 square units.
func DefaultThresholds() Thresholds {
	return Thresholds{IgnoreLow: 5, IgnoreHigh: 95, SignificantSize: 200}
}

// Validate reports every inconsistent threshold.
func (t Thresholds) Validate() error {
	var errs []error
	if t.IgnoreLow < 0 || t.IgnoreLow > 100 {
		errs = append(errs, fmt.Errorf("ignore_low must be within 0-100, got %v", t.IgnoreLow))
	}
	if t.IgnoreHigh < 0 || t.IgnoreHigh > 100 {
		errs = append(errs, fmt.Errorf("ignore_high must be within 0-100, got %v", t.IgnoreHigh))
	}
	if t.IgnoreLow > t.IgnoreHigh {
		errs = append(errs, fmt.Errorf("ignore_low (%v) exceeds ignore_high (%v)", t.IgnoreLow, t.IgnoreHigh))
	}
	if t.SignificantSize < 0 {
		errs = append(errs, fmt.Errorf("significant_size must not be negative, got %v", t.SignificantSize))
	}
	return errors.Join(errs...)
}

// Classify labels an overlap covering percent of its base polygon with
// absolute area overlapArea.
//
// A small proportion is only ignored when the absolute area is also small;
// a long thin feature crossing a large polygon is still split.
func Classify(percent, overlapArea float64, t Thresholds) Relationship {
	if percent < t.IgnoreLow && overlapArea < t.SignificantSize {
		return RelationshipBase
	}
	if percent < t.IgnoreHigh {
		return RelationshipSplit
	}
	return RelationshipNew
}
