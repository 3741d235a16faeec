// Package movement computes how far a token may travel within its turn
// budget.
//
// Distances are measured in image pixels and divided by the map scale to get
// world units; budgets are expressed in world units.
package movement

import "math"

// Point is a position in image-pixel space. Paths keep fractional positions
// so a cut point can land exactly where the budget is exhausted.
type Point struct {
	X float64
	Y float64
}

// Pt builds a point from integer pixel coordinates.
func Pt(x, y int) Point {
	return Point{X: float64(x), Y: float64(y)}
}

// Pixel truncates the point to integer pixel coordinates.
func (p Point) Pixel() (int, int) {
	return int(p.X), int(p.Y)
}

// Distance returns the Euclidean pixel distance between two points.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

func lerp(from, to Point, ratio float64) Point {
	return Point{
		X: from.X + (to.X-from.X)*ratio,
		Y: from.Y + (to.Y-from.Y)*ratio,
	}
}

// Budget is a movement allowance in world units. The zero value allows no
// movement; Unlimited is an explicit sentinel rather than a large float.
type Budget struct {
	limit     float64
	unlimited bool
}

// Limit returns a finite budget. Negative and NaN limits allow no movement.
func Limit(limit float64) Budget {
	if math.IsNaN(limit) || limit < 0 {
		limit = 0
	}
	if math.IsInf(limit, 1) {
		return Unlimited()
	}
	return Budget{limit: limit}
}

// Unlimited returns the game master budget.
func Unlimited() Budget {
	return Budget{unlimited: true}
}

// IsUnlimited reports whether the budget has no bound.
func (b Budget) IsUnlimited() bool {
	return b.unlimited
}

// Value returns the finite limit; it is meaningless for unlimited budgets.
func (b Budget) Value() float64 {
	return b.limit
}

// Allows reports whether distance fits the budget.
func (b Budget) Allows(distance float64) bool {
	return b.unlimited || distance <= b.limit
}
