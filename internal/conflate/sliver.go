package conflate

import (
	"sort"

	"github.com/beetlebugorg/basemerge/internal/geometry"
)

// SliverReport summarises one EliminateSlivers call.
type SliverReport struct {
	Absorbed    int
	Deleted     int
	DeletedArea float64
	DeletedIDs  []int64
}

// Add accumulates other into r.
func (r *SliverReport) Add(other SliverReport) {
	r.Absorbed += other.Absorbed
	r.Deleted += other.Deleted
	r.DeletedArea += other.DeletedArea
	r.DeletedIDs = append(r.DeletedIDs, other.DeletedIDs...)
}

// EliminateSlivers merges every feature smaller than sliverSize into the
// largest neighbouring feature that is not itself a sliver and shares more
// than tol of boundary with it. Equal-area neighbours are resolved by lower
// ID. Slivers without such a neighbour are deleted and reported.
//
// The absorbing feature keeps its ID and attributes. A union that fails or
// loses area aborts with a *geometry.TopologyError.
func EliminateSlivers(l *Layer, sliverSize, tol float64) (SliverReport, error) {
	var report SliverReport
	if sliverSize <= 0 || len(l.Features) == 0 {
		return report, nil
	}

	areas := make([]float64, len(l.Features))
	var slivers []int
	ix := geometry.NewIndex()
	for i, f := range l.Features {
		areas[i] = f.Area()
		if areas[i] < sliverSize {
			slivers = append(slivers, i)
			continue
		}
		ix.Insert(i, f.Bounds())
	}
	if len(slivers) == 0 {
		return report, nil
	}
	sort.SliceStable(slivers, func(a, b int) bool {
		return l.Features[slivers[a]].ID < l.Features[slivers[b]].ID
	})

	removed := make(map[int]bool, len(slivers))
	for _, si := range slivers {
		s := l.Features[si]
		target := -1
		for _, ci := range ix.Search(s.Bounds().Expand(tol)) {
			c := l.Features[ci]
			if geometry.SharedBoundaryLength(s.Geom, c.Geom, tol) <= tol {
				continue
			}
			if target < 0 || areas[ci] > areas[target] ||
				(areas[ci] == areas[target] && c.ID < l.Features[target].ID) {
				target = ci
			}
		}
		removed[si] = true
		if target < 0 {
			report.Deleted++
			report.DeletedArea += areas[si]
			report.DeletedIDs = append(report.DeletedIDs, s.ID)
			continue
		}
		t := l.Features[target]
		merged, err := geometry.UnionChecked(t.Geom, s.Geom, sliverSize*1e-3)
		if err != nil {
			return report, annotate(err, l.Name, s.ID)
		}
		t.Geom = merged
		// re-register the grown extent so later slivers along it are found
		ix.Insert(target, t.Bounds())
		report.Absorbed++
	}

	kept := l.Features[:0]
	for i, f := range l.Features {
		if !removed[i] {
			kept = append(kept, f)
		}
	}
	for i := len(kept); i < len(l.Features); i++ {
		l.Features[i] = nil
	}
	l.Features = kept
	return report, nil
}
