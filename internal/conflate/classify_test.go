package conflate

import (
	"testing"
)

func TestClassify(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		name    string
		percent float64
		area    float64
		want    Relationship
	}{
		{"sliver", 1, 10, RelationshipBase},
		{"small share but significant area", 1, 500, RelationshipSplit},
		{"at ignore_low", 5, 10, RelationshipSplit},
		{"just under ignore_low at significant size", 4.9, 200, RelationshipSplit},
		{"partial", 60, 600, RelationshipSplit},
		{"just under ignore_high", 94.99, 949.9, RelationshipSplit},
		{"at ignore_high", 95, 950, RelationshipNew},
		{"nearly whole", 98, 980, RelationshipNew},
		{"whole", 100, 1000, RelationshipNew},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.percent, tt.area, th); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

// The classification rule must hold across the whole grid of inputs, not
// only at the boundaries above.
func TestClassifyTruthTable(t *testing.T) {
	th := Thresholds{IgnoreLow: 10, IgnoreHigh: 80, SignificantSize: 50}
	for p := 0.0; p <= 100; p += 2.5 {
		for a := 0.0; a <= 200; a += 12.5 {
			got := Classify(p, a, th)
			isBase := p < th.IgnoreLow && a < th.SignificantSize
			isNew := !isBase && p >= th.IgnoreHigh
			switch {
			case isBase && got != RelationshipBase:
				t.Errorf("Classify(%v, %v) = %s, expected Base", p, a, got)
			case isNew && got != RelationshipNew:
				t.Errorf("Classify(%v, %v) = %s, expected New", p, a, got)
			case !isBase && !isNew && got != RelationshipSplit:
				t.Errorf("Classify(%v, %v) = %s, expected Split", p, a, got)
			}
		}
	}
}

func TestThresholdsValidate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
	bad := []Thresholds{
		{IgnoreLow: 50, IgnoreHigh: 40, SignificantSize: 1},
		{IgnoreLow: -1, IgnoreHigh: 40, SignificantSize: 1},
		{IgnoreLow: 5, IgnoreHigh: 140, SignificantSize: 1},
		{IgnoreLow: 5, IgnoreHigh: 95, SignificantSize: -3},
	}
	for _, th := range bad {
		if err := th.Validate(); err == nil {
			t.Errorf("Expected error for %+v", th)
		}
	}
}

func TestParseRelationship(t *testing.T) {
	for _, r := range []Relationship{RelationshipBase, RelationshipSplit, RelationshipNew} {
		got, err := ParseRelationship(r.String())
		if err != nil || got != r {
			t.Errorf("ParseRelationship(%q) = %v, %v", r.String(), got, err)
		}
	}
	if _, err := ParseRelationship(NotNew); err == nil {
		t.Error("Expected error parsing the output-only NotNew tag")
	}
}
