package meadow

import (
	"math"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
	"github.com/yohamta/donburi"
)

// scrollAnim holds active scroll-to tweens for camera X and Y.
type scrollAnim struct {
	tweenX *gween.Tween
	tweenY *gween.Tween
	doneX  bool
	doneY  bool
}

// Camera controls the view into the world: position, zoom, rotation and
// viewport. It produces the CameraView the renderers consume.
type Camera struct {
	// X and Y are the world-pixel position the camera centers on.
	X, Y float64
	// Zoom is the scale factor (1.0 = no zoom, >1 = zoom in, <1 = zoom out).
	Zoom float64
	// Rotation is the camera rotation in radians (clockwise).
	Rotation float64
	// Viewport is the screen-space rectangle this camera renders into.
	Viewport Rect
	// TileWidth and TileHeight convert the visible area to tile space.
	TileWidth, TileHeight int

	// BoundsEnabled clamps the camera position so the visible area stays
	// within Bounds.
	BoundsEnabled bool
	// Bounds is the world-pixel rectangle the camera is clamped to when
	// BoundsEnabled is true.
	Bounds Rect

	followWorld   donburi.World
	followTarget  donburi.Entity
	following     bool
	followOffsetX float64
	followOffsetY float64
	followLerp    float64

	viewMatrix    [6]float64
	invViewMatrix [6]float64
	dirty         bool

	scrollTween *scrollAnim
}

// NewCamera creates a camera with the given viewport and tile size.
func NewCamera(viewport Rect, tileWidth, tileHeight int) *Camera {
	return &Camera{
		Zoom:       1.0,
		Viewport:   viewport,
		TileWidth:  tileWidth,
		TileHeight: tileHeight,
		dirty:      true,
	}
}

// Follow makes the camera track a sprite entity with the given offset and
// lerp factor. A lerp of 1.0 snaps immediately; lower values give smoother
// following. Tracking stops when the entity is removed.
func (c *Camera) Follow(world donburi.World, e donburi.Entity, offsetX, offsetY, lerp float64) {
	c.followWorld = world
	c.followTarget = e
	c.following = true
	c.followOffsetX = offsetX
	c.followOffsetY = offsetY
	c.followLerp = lerp
}

// Unfollow stops tracking the current target.
func (c *Camera) Unfollow() {
	c.following = false
	c.followWorld = nil
}

// ScrollTo animates the camera to the given world position over duration seconds.
func (c *Camera) ScrollTo(x, y float64, duration float32, easeFn ease.TweenFunc) {
	c.scrollTween = &scrollAnim{
		tweenX: gween.New(float32(c.X), float32(x), duration, easeFn),
		tweenY: gween.New(float32(c.Y), float32(y), duration, easeFn),
	}
}

// ScrollToTile scrolls to the center of a world tile.
func (c *Camera) ScrollToTile(p TilePoint, duration float32, easeFn ease.TweenFunc) {
	tw := float64(c.TileWidth)
	th := float64(c.TileHeight)
	c.ScrollTo(float64(p.X)*tw+tw/2, float64(p.Y)*th+th/2, duration, easeFn)
}

// Scrolling reports whether a scroll animation is running.
func (c *Camera) Scrolling() bool {
	return c.scrollTween != nil
}

// SetBounds enables camera bounds clamping.
func (c *Camera) SetBounds(bounds Rect) {
	c.BoundsEnabled = true
	c.Bounds = bounds
}

// ClearBounds disables camera bounds clamping.
func (c *Camera) ClearBounds() {
	c.BoundsEnabled = false
}

// ClampToBounds immediately clamps the camera position so the visible area
// stays within Bounds. No-op if BoundsEnabled is false.
func (c *Camera) ClampToBounds() {
	if c.BoundsEnabled {
		c.clampToBounds()
	}
}

// Update advances follow, scroll and bounds clamping by dt seconds.
func (c *Camera) Update(dt float32) {
	prevX, prevY := c.X, c.Y
	prevZoom, prevRot := c.Zoom, c.Rotation

	if c.following {
		if c.followWorld != nil && c.followWorld.Valid(c.followTarget) {
			entry := c.followWorld.Entry(c.followTarget)
			if entry.HasComponent(SpriteComponent) {
				s := SpriteComponent.Get(entry)
				targetX := s.X + c.followOffsetX
				targetY := s.Y + c.followOffsetY
				c.X += (targetX - c.X) * c.followLerp
				c.Y += (targetY - c.Y) * c.followLerp
			}
		} else {
			c.Unfollow()
		}
	}

	if c.scrollTween != nil {
		if !c.scrollTween.doneX {
			val, done := c.scrollTween.tweenX.Update(dt)
			c.X = float64(val)
			c.scrollTween.doneX = done
		}
		if !c.scrollTween.doneY {
			val, done := c.scrollTween.tweenY.Update(dt)
			c.Y = float64(val)
			c.scrollTween.doneY = done
		}
		if c.scrollTween.doneX && c.scrollTween.doneY {
			c.scrollTween = nil
		}
	}

	if c.BoundsEnabled {
		c.clampToBounds()
	}

	if c.X != prevX || c.Y != prevY || c.Zoom != prevZoom || c.Rotation != prevRot {
		c.dirty = true
	}
}

// clampToBounds restricts camera position so the visible area stays within Bounds.
func (c *Camera) clampToBounds() {
	halfW := c.Viewport.Width / (2 * c.Zoom)
	halfH := c.Viewport.Height / (2 * c.Zoom)

	minX := c.Bounds.X + halfW
	maxX := c.Bounds.X + c.Bounds.Width - halfW
	minY := c.Bounds.Y + halfH
	maxY := c.Bounds.Y + c.Bounds.Height - halfH

	// Bounds smaller than the visible area center the camera.
	if minX > maxX {
		c.X = c.Bounds.X + c.Bounds.Width/2
	} else {
		c.X = math.Max(minX, math.Min(c.X, maxX))
	}
	if minY > maxY {
		c.Y = c.Bounds.Y + c.Bounds.Height/2
	} else {
		c.Y = math.Max(minY, math.Min(c.Y, maxY))
	}
}

// computeViewMatrix recomputes the cached view matrix if dirty.
//
// viewMatrix = Translate(vx, vy) * Scale(zoom) * Rotate(-rotation) * Translate(-X, -Y)
// where vx, vy is the viewport center relative to the viewport origin, so
// the matrix maps into the camera's own render target.
func (c *Camera) computeViewMatrix() [6]float64 {
	if !c.dirty {
		return c.viewMatrix
	}
	c.dirty = false

	cx := c.Viewport.Width / 2
	cy := c.Viewport.Height / 2

	cos := math.Cos(-c.Rotation)
	sin := math.Sin(-c.Rotation)
	z := c.Zoom

	a := z * cos
	b := -z * sin
	cc := z * sin
	d := z * cos
	tx := cx + z*(-cos*c.X+sin*c.Y)
	ty := cy + z*(-sin*c.X-cos*c.Y)

	c.viewMatrix = [6]float64{a, cc, b, d, tx, ty}
	c.invViewMatrix = invertAffine(c.viewMatrix)
	return c.viewMatrix
}

// WorldToScreen converts world pixels to viewport pixels.
func (c *Camera) WorldToScreen(wx, wy float64) (sx, sy float64) {
	c.computeViewMatrix()
	sx, sy = transformPoint(c.viewMatrix, wx, wy)
	return
}

// ScreenToWorld converts viewport pixels to world pixels.
func (c *Camera) ScreenToWorld(sx, sy float64) (wx, wy float64) {
	c.computeViewMatrix()
	wx, wy = transformPoint(c.invViewMatrix, sx, sy)
	return
}

// VisibleBounds returns the axis-aligned bounding rect of the camera's
// visible area in world pixels.
func (c *Camera) VisibleBounds() Rect {
	c.computeViewMatrix()
	inv := c.invViewMatrix

	vr := c.Viewport.Width
	vb := c.Viewport.Height

	x0, y0 := transformPoint(inv, 0, 0)
	x1, y1 := transformPoint(inv, vr, 0)
	x2, y2 := transformPoint(inv, vr, vb)
	x3, y3 := transformPoint(inv, 0, vb)

	minX := math.Min(math.Min(x0, x1), math.Min(x2, x3))
	minY := math.Min(math.Min(y0, y1), math.Min(y2, y3))
	maxX := math.Max(math.Max(x0, x1), math.Max(x2, x3))
	maxY := math.Max(math.Max(y0, y1), math.Max(y2, y3))

	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// VisibleTiles returns the tile rectangle covering the visible area.
// Partially visible tiles are included.
func (c *Camera) VisibleTiles() TileRect {
	b := c.VisibleBounds()
	tw := float64(c.TileWidth)
	th := float64(c.TileHeight)
	if tw <= 0 || th <= 0 {
		return TileRect{}
	}
	x0 := int(math.Floor(b.X / tw))
	y0 := int(math.Floor(b.Y / th))
	x1 := int(math.Ceil((b.X + b.Width) / tw))
	y1 := int(math.Ceil((b.Y + b.Height) / th))
	return TileRect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// View returns the frame view consumed by the renderers.
func (c *Camera) View() CameraView {
	return CameraView{
		TileBounds: c.VisibleTiles(),
		TileWidth:  c.TileWidth,
		TileHeight: c.TileHeight,
		Transform:  affineToGeoM(c.computeViewMatrix()),
		Viewport:   c.Viewport,
	}
}

// MarkDirty forces a recomputation of the view matrix.
func (c *Camera) MarkDirty() {
	c.dirty = true
}

// CameraSet holds the cameras of a game and tracks which one is active.
// It implements CameraProvider.
type CameraSet struct {
	cameras []*Camera
	active  int
}

// Add appends a camera and returns its index. The first camera added
// becomes active.
func (s *CameraSet) Add(c *Camera) int {
	s.cameras = append(s.cameras, c)
	return len(s.cameras) - 1
}

// SetActive selects the active camera. Out-of-range indices deactivate all
// cameras.
func (s *CameraSet) SetActive(i int) {
	s.active = i
}

// Active returns the active camera or nil.
func (s *CameraSet) Active() *Camera {
	if s == nil || s.active < 0 || s.active >= len(s.cameras) {
		return nil
	}
	return s.cameras[s.active]
}

// ActiveCamera returns the active camera's view.
func (s *CameraSet) ActiveCamera() (CameraView, bool) {
	c := s.Active()
	if c == nil {
		return CameraView{}, false
	}
	return c.View(), true
}

// Update advances every camera by dt seconds.
func (s *CameraSet) Update(dt float32) {
	for _, c := range s.cameras {
		c.Update(dt)
	}
}
