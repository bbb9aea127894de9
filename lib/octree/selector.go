package octree

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Selector chooses cells from an Octree.
type Selector interface {
	// SelectBox returns true if any point inside [min, max] could be
	// selected.
	SelectBox(min, max r3.Vec) bool
	// SelectCell returns true if the cell with the given center and
	// half-width is selected.
	SelectCell(center, halfWidth r3.Vec) bool
}

// Keyer is implemented by Selectors with a stable string key. Two selectors
// with the same key select the same cells.
type Keyer interface {
	Key() string
}

// Box is an axis-aligned box, [Min, Max).
type Box struct {
	Min, Max r3.Vec
}

// Contains returns true if p is in [Min, Max).
func (b Box) Contains(p r3.Vec) bool {
	return p.X >= b.Min.X && p.X < b.Max.X &&
		p.Y >= b.Min.Y && p.Y < b.Max.Y &&
		p.Z >= b.Min.Z && p.Z < b.Max.Z
}

// Overlaps returns true if b intersects [min, max].
func (b Box) Overlaps(min, max r3.Vec) bool {
	return min.X < b.Max.X && max.X >= b.Min.X &&
		min.Y < b.Max.Y && max.Y >= b.Min.Y &&
		min.Z < b.Max.Z && max.Z >= b.Min.Z
}

// Width returns the largest side length of the box.
func (b Box) Width() float64 {
	d := r3.Sub(b.Max, b.Min)
	return math.Max(d.X, math.Max(d.Y, d.Z))
}

// All selects every leaf cell.
type All struct{}

func (All) SelectBox(min, max r3.Vec) bool          { return true }
func (All) SelectCell(center, halfWidth r3.Vec) bool { return true }
func (All) Key() string                              { return "all" }

// Region selects every leaf cell whose center is inside a box.
type Region struct {
	Box
}

func (r Region) SelectBox(min, max r3.Vec) bool { return r.Overlaps(min, max) }

func (r Region) SelectCell(center, halfWidth r3.Vec) bool {
	return r.Contains(center)
}

func (r Region) Key() string {
	return fmt.Sprintf("region(%g,%g,%g;%g,%g,%g)",
		r.Min.X, r.Min.Y, r.Min.Z, r.Max.X, r.Max.Y, r.Max.Z)
}

// Sphere selects every leaf cell whose center is strictly within Radius of
// Center.
type Sphere struct {
	Center r3.Vec
	Radius float64
}

func (s Sphere) SelectBox(min, max r3.Vec) bool {
	// Distance from the center to the closest point in the box.
	closest := r3.Vec{
		X: math.Max(min.X, math.Min(s.Center.X, max.X)),
		Y: math.Max(min.Y, math.Min(s.Center.Y, max.Y)),
		Z: math.Max(min.Z, math.Min(s.Center.Z, max.Z)),
	}
	return r3.Norm(r3.Sub(closest, s.Center)) <= s.Radius
}

func (s Sphere) SelectCell(center, halfWidth r3.Vec) bool {
	return r3.Norm(r3.Sub(center, s.Center)) < s.Radius
}

func (s Sphere) Key() string {
	return fmt.Sprintf("sphere(%g,%g,%g;%g)",
		s.Center.X, s.Center.Y, s.Center.Z, s.Radius)
}
