package meadow

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sirupsen/logrus"
	"github.com/yohamta/donburi"
)

// FrameRenderer draws one frame: the tile layer, then the sprite layer, into
// a viewport-sized image that is composited through the CombinedLayer stack
// and placed at the active camera's viewport.
type FrameRenderer struct {
	Tiles   *TileRenderer
	Sprites *SpriteRenderer

	shaders *ShaderEngine
	targets *PassTargets
	cameras CameraProvider
	log     *logrus.Entry

	pool renderTexturePool
	op   ebiten.DrawImageOptions
}

// NewFrameRenderer creates the tile and sprite renderers for world.
func NewFrameRenderer(world donburi.World, opts RendererOptions) *FrameRenderer {
	return &FrameRenderer{
		Tiles:   NewTileRenderer(world, opts),
		Sprites: NewSpriteRenderer(world, opts),
		shaders: opts.Shaders,
		targets: opts.Targets,
		cameras: opts.Cameras,
		log:     componentLog(opts.Logger, "frame"),
	}
}

// Draw renders the frame onto screen. Nothing is drawn without an active
// camera.
func (f *FrameRenderer) Draw(screen *ebiten.Image) {
	if f.cameras == nil {
		return
	}
	cam, ok := f.cameras.ActiveCamera()
	if !ok {
		return
	}
	w, h := viewportSize(cam.Viewport, screen)
	if w <= 0 || h <= 0 {
		return
	}
	if f.targets != nil {
		f.targets.Resize(w, h)
	}

	var stack *ShaderStack
	if f.shaders != nil {
		f.shaders.SetBackBuffer(screen)
		stack = f.shaders.Stack(CombinedLayer)
	}

	off := f.pool.Acquire(w, h)
	defer f.pool.Release(off)
	frame := region(off, w, h)
	frame.Clear()

	tiles := f.Tiles.Draw(frame)
	sprites := f.Sprites.Draw(frame)

	out := frame
	if !stack.Empty() {
		res := f.pool.Acquire(w, h)
		defer f.pool.Release(res)
		out = region(res, w, h)
		out.Clear()
		f.shaders.Composite(frame, out, stack)
	}

	f.op.GeoM.Reset()
	f.op.GeoM.Translate(cam.Viewport.X, cam.Viewport.Y)
	screen.DrawImage(out, &f.op)

	f.log.WithFields(logrus.Fields{"tiles": tiles, "sprites": sprites}).Trace("frame drawn")
}

// viewportSize rounds the viewport up to whole pixels. An empty viewport
// covers the screen.
func viewportSize(vp Rect, screen *ebiten.Image) (int, int) {
	if vp.Width <= 0 || vp.Height <= 0 {
		b := screen.Bounds()
		return b.Dx(), b.Dy()
	}
	return int(math.Ceil(vp.Width)), int(math.Ceil(vp.Height))
}
