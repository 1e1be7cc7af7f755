package geometry

import (
	"math"

	"github.com/ctessum/geom"
)

// Bounds represents an axis-aligned bounding box in layer coordinates
// (typically metres in a projected reference system such as British National Grid).
type Bounds struct {
	MinX float64 // Western edge
	MinY float64 // Southern edge
	MaxX float64 // Eastern edge
	MaxY float64 // Northern edge
}

// EmptyBounds returns bounds that contain nothing and expand to the first
// point added.
func EmptyBounds() Bounds {
	return Bounds{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
}

// IsEmpty reports whether no point has been added to b.
func (b Bounds) IsEmpty() bool {
	return b.MinX > b.MaxX || b.MinY > b.MaxY
}

// Intersects returns true if the given bounds intersects with this bounds.
// Touching edges count as intersecting.
func (b Bounds) Intersects(other Bounds) bool {
	if b.IsEmpty() || other.IsEmpty() {
		return false
	}
	return !(other.MaxX < b.MinX ||
		other.MinX > b.MaxX ||
		other.MaxY < b.MinY ||
		other.MinY > b.MaxY)
}

// Contains returns true if other lies entirely within b.
func (b Bounds) Contains(other Bounds) bool {
	return other.MinX >= b.MinX-ringEpsilon && other.MaxX <= b.MaxX+ringEpsilon &&
		other.MinY >= b.MinY-ringEpsilon && other.MaxY <= b.MaxY+ringEpsilon
}

// Expand returns a new Bounds expanded by the given margin in all directions.
func (b Bounds) Expand(margin float64) Bounds {
	return Bounds{
		MinX: b.MinX - margin,
		MinY: b.MinY - margin,
		MaxX: b.MaxX + margin,
		MaxY: b.MaxY + margin,
	}
}

// Union returns the smallest bounds containing both b and other.
func (b Bounds) Union(other Bounds) Bounds {
	return Bounds{
		MinX: math.Min(b.MinX, other.MinX),
		MinY: math.Min(b.MinY, other.MinY),
		MaxX: math.Max(b.MaxX, other.MaxX),
		MaxY: math.Max(b.MaxY, other.MaxY),
	}
}

// Width and Height of the box.
func (b Bounds) Width() float64  { return b.MaxX - b.MinX }
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

func (b *Bounds) extend(p geom.Point) {
	if p.X < b.MinX {
		b.MinX = p.X
	}
	if p.X > b.MaxX {
		b.MaxX = p.X
	}
	if p.Y < b.MinY {
		b.MinY = p.Y
	}
	if p.Y > b.MaxY {
		b.MaxY = p.Y
	}
}

// PathBounds returns the bounding box of a ring.
func PathBounds(r geom.Path) Bounds {
	b := EmptyBounds()
	for _, p := range r {
		b.extend(p)
	}
	return b
}

// PolygonBounds returns the bounding box of all rings of p.
func PolygonBounds(p geom.Polygon) Bounds {
	b := EmptyBounds()
	for _, r := range p {
		for _, pt := range r {
			b.extend(pt)
		}
	}
	return b
}
