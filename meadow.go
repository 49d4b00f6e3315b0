package meadow

import "math"

// Vec2 is a 2D vector used for pixel positions and sizes.
type Vec2 struct {
	X, Y float64
}

// TilePoint is a position in tile space. Map origins are tile points.
type TilePoint struct {
	X, Y int
}

// Add returns p offset by q.
func (p TilePoint) Add(q TilePoint) TilePoint {
	return TilePoint{X: p.X + q.X, Y: p.Y + q.Y}
}

// TileRect is an axis-aligned rectangle in tile space.
type TileRect struct {
	X, Y, Width, Height int
}

// Contains reports whether the tile p lies inside the rectangle.
func (r TileRect) Contains(p TilePoint) bool {
	return p.X >= r.X && p.X < r.X+r.Width &&
		p.Y >= r.Y && p.Y < r.Y+r.Height
}

// Expand grows the rectangle by n tiles on every side.
func (r TileRect) Expand(n int) TileRect {
	return TileRect{X: r.X - n, Y: r.Y - n, Width: r.Width + 2*n, Height: r.Height + 2*n}
}

// Rect is an axis-aligned rectangle. The coordinate system has its origin at
// the top-left, with Y increasing downward.
type Rect struct {
	X, Y, Width, Height float64
}

// Contains reports whether the point (x, y) lies inside the rectangle.
// Points on the edge are considered inside.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// Intersects reports whether r and other overlap.
// Adjacent rectangles (sharing only an edge) are considered intersecting.
func (r Rect) Intersects(other Rect) bool {
	return r.X <= other.X+other.Width &&
		r.X+r.Width >= other.X &&
		r.Y <= other.Y+other.Height &&
		r.Y+r.Height >= other.Y
}

// rectUnion returns the smallest Rect containing both a and b.
func rectUnion(a, b Rect) Rect {
	minX := math.Min(a.X, b.X)
	minY := math.Min(a.Y, b.Y)
	maxX := math.Max(a.X+a.Width, b.X+b.Width)
	maxY := math.Max(a.Y+a.Height, b.Y+b.Height)
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// BlendMode selects how a shader pass combines with the output of the pass
// below it in a shader stack.
type BlendMode uint8

const (
	BlendReplace  BlendMode = iota // pass output replaces the previous output
	BlendAlpha                     // source-over onto the previous output
	BlendAdditive                  // previous + pass
	BlendMultiply                  // previous * pass
	BlendScreen                    // 1 - (1-previous)*(1-pass)
)

// String returns the lower-case name used in configuration and logs.
func (b BlendMode) String() string {
	switch b {
	case BlendReplace:
		return "replace"
	case BlendAlpha:
		return "alpha"
	case BlendAdditive:
		return "additive"
	case BlendMultiply:
		return "multiply"
	case BlendScreen:
		return "screen"
	default:
		return "unknown"
	}
}

// ShaderLayer identifies which render layer a shader stack applies to.
type ShaderLayer uint8

const (
	TileLayer     ShaderLayer = iota // map tile chunks
	SpriteLayer                      // dynamic sprites
	CombinedLayer                    // tiles and sprites composited together
	shaderLayerCount
)

// String returns the layer name used in logs.
func (l ShaderLayer) String() string {
	switch l {
	case TileLayer:
		return "tile"
	case SpriteLayer:
		return "sprite"
	case CombinedLayer:
		return "combined"
	default:
		return "unknown"
	}
}
