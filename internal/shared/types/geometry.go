package types

import "fmt"

// Point represents an absolute screen coordinate
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// String formats the point as "(x, y)" for log and error messages
func (p Point) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

// Bounds represents a window rectangle in screen coordinates.
// Right and bottom edges are exclusive.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Contains reports whether the point lies inside the rectangle. This is
// the single geometric predicate used for action validation.
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.X && p.X < b.X+b.Width &&
		p.Y >= b.Y && p.Y < b.Y+b.Height
}

// String formats the bounds as "x,y wxh" for log and error messages
func (b Bounds) String() string {
	return fmt.Sprintf("%d,%d %dx%d", b.X, b.Y, b.Width, b.Height)
}
