package control

import "image"

// BackwardZone is the fraction of the frame height below which a tracked hand
// sends the rover backwards.
const BackwardZone = 0.6

// Derive maps a point in a width×height frame to a command.
//
// The frame is split into three vertical bands around the centre with a
// margin of width/6. When vertical is set, a point below BackwardZone of the
// height yields Backward and the horizontal bands are not consulted.
func Derive(p image.Point, width, height int, vertical bool) Command {
	if vertical && float64(p.Y) > BackwardZone*float64(height) {
		return Backward
	}
	return Steer(p.X, width)
}

// Steer applies the left/centre/right rule to an x coordinate.
func Steer(x, width int) Command {
	center := width / 2
	margin := width / 6

	switch {
	case x < center-margin:
		return Left
	case x > center+margin:
		return Right
	default:
		return Forward
	}
}
