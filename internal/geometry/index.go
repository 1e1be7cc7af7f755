package geometry

import (
	"sort"

	"github.com/dhconnelly/rtreego"
)

// minExtent keeps R-tree rectangles non-degenerate for axis-aligned slivers
// and single points.
const minExtent = 1e-6

// Index is an R-tree of integer keys (feature IDs or slice positions) by
// bounding box.
type Index struct {
	rtree *rtreego.Rtree
	size  int
}

// indexedItem wraps a key for R-tree storage.
type indexedItem struct {
	key    int
	bounds Bounds
}

// Bounds implements rtreego.Spatial interface.
func (it *indexedItem) Bounds() rtreego.Rect {
	return toRect(it.bounds)
}

func toRect(b Bounds) rtreego.Rect {
	point := rtreego.Point{b.MinX, b.MinY}
	w, h := b.Width(), b.Height()
	if w < minExtent {
		w = minExtent
	}
	if h < minExtent {
		h = minExtent
	}
	rect, _ := rtreego.NewRect(point, []float64{w, h})
	return rect
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{rtree: rtreego.NewTree(2, 25, 50)}
}

// Insert adds key with bounds b. Empty bounds are ignored.
func (ix *Index) Insert(key int, b Bounds) {
	if b.IsEmpty() {
		return
	}
	ix.rtree.Insert(&indexedItem{key: key, bounds: b})
	ix.size++
}

// Len returns the number of indexed keys.
func (ix *Index) Len() int { return ix.size }

// Search returns the keys whose bounds intersect b, sorted ascending.
func (ix *Index) Search(b Bounds) []int {
	if b.IsEmpty() || ix.size == 0 {
		return nil
	}
	spatials := ix.rtree.SearchIntersect(toRect(b))
	seen := make(map[int]bool, len(spatials))
	keys := make([]int, 0, len(spatials))
	for _, s := range spatials {
		it := s.(*indexedItem)
		// the R-tree pads degenerate rectangles, so confirm with the real box
		if !it.bounds.Expand(minExtent).Intersects(b) || seen[it.key] {
			continue
		}
		seen[it.key] = true
		keys = append(keys, it.key)
	}
	sort.Ints(keys)
	return keys
}
