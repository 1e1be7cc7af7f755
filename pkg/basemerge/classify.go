package basemerge

import (
	"github.com/beetlebugorg/basemerge/internal/conflate"
)

// Relationship labels one base/new overlap.
type Relationship = conflate.Relationship

// Relationship labels.
const (
	RelationshipBase  = conflate.RelationshipBase
	RelationshipSplit = conflate.RelationshipSplit
	RelationshipNew   = conflate.RelationshipNew
)

// NotNew tags the parts of split base polygons outside every new feature.
const NotNew = conflate.NotNew

// Thresholds controls overlap classification.
type Thresholds = conflate.Thresholds

// Intersection is one classified base/new overlap.
type Intersection = conflate.Intersection

// DefaultThresholds returns IgnoreLow 5%, IgnoreHigh 95% and
// SignificantSize 200.
func DefaultThresholds() Thresholds { return conflate.DefaultThresholds() }

// Classify labels an overlap covering percent of its base polygon with
// absolute area overlapArea.
func Classify(percent, overlapArea float64, t Thresholds) Relationship {
	return conflate.Classify(percent, overlapArea, t)
}

// BestIntersections returns the largest overlap per base polygon, breaking
// exact ties by lower new-feature ID.
func BestIntersections(recs []Intersection) map[int64]Intersection {
	return conflate.BestIntersections(recs)
}
