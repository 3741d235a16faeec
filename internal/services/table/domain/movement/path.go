package movement

// DistancePath is a movement preview anchored at a token's position.
//
// Reachable always starts with the anchor once the path has been started;
// TotalDistance is the world-unit length of Reachable and never exceeds the
// budget it was computed with. UnreachableStop is the first requested point
// that did not fit.
type DistancePath struct {
	Reachable       []Point
	TotalDistance   float64
	UnreachableStop *Point
	Scale           float64
}

// Start returns a zero-length path at anchor.
func Start(anchor Point, scale float64) DistancePath {
	return DistancePath{
		Reachable: []Point{anchor},
		Scale:     normalizeScale(scale),
	}
}

func normalizeScale(scale float64) float64 {
	if !(scale > 0) {
		return 1
	}
	return scale
}

// Started reports whether the path has an anchor.
func (p DistancePath) Started() bool {
	return len(p.Reachable) > 0
}

// Anchor returns the first point of the path.
func (p DistancePath) Anchor() Point {
	if len(p.Reachable) == 0 {
		return Point{}
	}
	return p.Reachable[0]
}

// End returns the last reachable point.
func (p DistancePath) End() Point {
	if len(p.Reachable) == 0 {
		return Point{}
	}
	return p.Reachable[len(p.Reachable)-1]
}

// Moved reports whether the path leads anywhere beyond its anchor.
func (p DistancePath) Moved() bool {
	return len(p.Reachable) > 1 && p.End() != p.Anchor()
}

func (p DistancePath) world(from, to Point) float64 {
	return from.Distance(to) / normalizeScale(p.Scale)
}

// Extend targets candidate in a single straight line from the anchor.
//
// The candidate replaces any previous target when it fits the budget.
// Otherwise it becomes UnreachableStop and Reachable is left as it was.
func (p DistancePath) Extend(candidate Point, budget Budget) DistancePath {
	if !p.Started() {
		return p
	}
	anchor := p.Anchor()
	distance := p.world(anchor, candidate)
	if budget.Allows(distance) {
		return DistancePath{
			Reachable:     []Point{anchor, candidate},
			TotalDistance: distance,
			Scale:         p.Scale,
		}
	}
	next := p.clone()
	stop := candidate
	next.UnreachableStop = &stop
	return next
}

// Update moves the trailing point of the polyline to candidate.
//
// Confirmed segments (everything before the trailing point) are measured
// again, then the new trailing segment is added. When the total exceeds the
// budget the polyline is cut at the exact point where the budget runs out
// and candidate is recorded as UnreachableStop.
func (p DistancePath) Update(candidate Point, budget Budget) DistancePath {
	if !p.Started() {
		return p
	}
	confirmed := len(p.Reachable) - 1
	if confirmed < 1 {
		confirmed = 1
	}
	points := make([]Point, 0, confirmed+1)
	points = append(points, p.Reachable[:confirmed]...)
	points = append(points, candidate)

	next := DistancePath{
		Reachable: []Point{points[0]},
		Scale:     p.Scale,
	}
	for i := 1; i < len(points); i++ {
		segment := p.world(points[i-1], points[i])
		if budget.Allows(next.TotalDistance + segment) {
			next.Reachable = append(next.Reachable, points[i])
			next.TotalDistance += segment
			continue
		}
		left := budget.Value() - next.TotalDistance
		next.Reachable = append(next.Reachable, lerp(points[i-1], points[i], left/segment))
		next.TotalDistance = budget.Value()
		stop := candidate
		next.UnreachableStop = &stop
		break
	}
	return next
}

// Pin confirms the trailing point as a waypoint so later updates extend the
// polyline from it instead of replacing it.
func (p DistancePath) Pin() DistancePath {
	if !p.Moved() || p.UnreachableStop != nil {
		return p
	}
	if n := len(p.Reachable); n > 2 && p.Reachable[n-2] == p.Reachable[n-1] {
		return p
	}
	next := p.clone()
	next.Reachable = append(next.Reachable, p.End())
	return next
}

func (p DistancePath) clone() DistancePath {
	next := p
	next.Reachable = append([]Point(nil), p.Reachable...)
	if p.UnreachableStop != nil {
		stop := *p.UnreachableStop
		next.UnreachableStop = &stop
	}
	return next
}
