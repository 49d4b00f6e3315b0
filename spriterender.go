package meadow

import (
	"image"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sirupsen/logrus"
	"github.com/yohamta/donburi"
)

// NewSprite creates a visible, opaque sprite entity.
func NewSprite(world donburi.World, textureID string, x, y float64) donburi.Entity {
	e := world.Create(SpriteComponent)
	SpriteComponent.SetValue(world.Entry(e), Sprite{
		TextureID: textureID,
		X:         x,
		Y:         y,
		Visible:   true,
		Opacity:   1,
	})
	return e
}

// SpriteRenderer draws the visible sprites of a world in RenderOrder.
type SpriteRenderer struct {
	world     donburi.World
	resources TileResources
	cameras   CameraProvider
	shaders   *ShaderEngine
	cfg       Config
	log       *logrus.Entry
	metrics   *Metrics

	visible *VisibleSet[visibleSprite]
	op      ebiten.DrawImageOptions
	pool    renderTexturePool
	invalid int
}

// NewSpriteRenderer creates a sprite renderer for world.
func NewSpriteRenderer(world donburi.World, opts RendererOptions) *SpriteRenderer {
	return &SpriteRenderer{
		world:     world,
		resources: opts.Resources,
		cameras:   opts.Cameras,
		shaders:   opts.Shaders,
		cfg:       opts.config(),
		log:       componentLog(opts.Logger, "sprites"),
		metrics:   opts.Metrics,
		visible:   NewVisibleSet(spriteLessOrEqual),
	}
}

// Draw renders the sprite layer through the engine's SpriteLayer stack.
func (r *SpriteRenderer) Draw(screen *ebiten.Image) int {
	var stack *ShaderStack
	if r.shaders != nil {
		stack = r.shaders.Stack(SpriteLayer)
	}
	return r.RenderSprites(screen, stack)
}

// RenderSprites draws every visible sprite onto screen through stack and
// returns the number drawn.
func (r *SpriteRenderer) RenderSprites(screen *ebiten.Image, stack *ShaderStack) int {
	if r.resources == nil || r.cameras == nil {
		return 0
	}
	cam, ok := r.cameras.ActiveCamera()
	if !ok {
		return 0
	}
	r.collect(cam)

	var n int
	if stack.Empty() || r.shaders == nil {
		n = r.drawSprites(screen, &cam.Transform)
	} else {
		b := screen.Bounds()
		off := r.pool.Acquire(b.Dx(), b.Dy())
		layer := region(off, b.Dx(), b.Dy())
		n = r.drawSprites(layer, &cam.Transform)
		r.shaders.Composite(layer, screen, stack)
		r.pool.Release(off)
	}

	r.metrics.sprites(n, r.visible.Culled())
	return n
}

// collect culls sprites against the camera and sorts the survivors.
func (r *SpriteRenderer) collect(cam CameraView) {
	view := ViewBounds(cam, r.cfg.CullMarginTiles)
	r.visible.Reset()
	spriteQuery.Each(r.world, func(entry *donburi.Entry) {
		s := SpriteComponent.Get(entry)
		if !s.Visible || s.Opacity <= 0 {
			return
		}
		w, h := r.spriteSize(s)
		r.visible.Offer(Rect{X: s.X, Y: s.Y, Width: w, Height: h}, view, visibleSprite{sprite: s, w: w, h: h})
	})
	r.visible.Sort()
}

// spriteSize is the Source size, else the tileset tile size, else the
// configured default tile size.
func (r *SpriteRenderer) spriteSize(s *Sprite) (float64, float64) {
	if !s.Source.Empty() {
		return float64(s.Source.Dx()), float64(s.Source.Dy())
	}
	w, h := tileSize(r.resources, s.TilesetID, 0, 0, &r.cfg)
	return float64(w), float64(h)
}

func (r *SpriteRenderer) drawSprites(dst *ebiten.Image, view *ebiten.GeoM) int {
	r.invalid = 0
	drawn := 0
	for _, vs := range r.visible.Items() {
		tex, err := r.resources.LoadTexture(vs.sprite.TextureID)
		if err != nil {
			r.invalid++
			continue
		}
		src := vs.sprite.Source
		if src.Empty() {
			src = image.Rect(0, 0, int(vs.w), int(vs.h))
		}
		b := tex.Bounds()
		src = src.Add(b.Min).Intersect(b)
		if src.Empty() {
			r.invalid++
			continue
		}
		r.drawSprite(dst, tex.SubImage(src).(*ebiten.Image), vs, view)
		drawn++
	}
	if r.invalid > 0 {
		r.log.WithField("sprites", r.invalid).Debug("sprites without a usable texture")
	}
	return drawn
}

func (r *SpriteRenderer) drawSprite(dst, img *ebiten.Image, vs visibleSprite, view *ebiten.GeoM) {
	s := vs.sprite
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	r.op.GeoM.Reset()
	sx, sy := 1.0, 1.0
	if s.FlipH {
		sx = -1
	}
	if s.FlipV {
		sy = -1
	}
	if sx != 1 || sy != 1 {
		// Flip around the sprite center so the footprint stays put.
		r.op.GeoM.Translate(-w/2, -h/2)
		r.op.GeoM.Scale(sx, sy)
		r.op.GeoM.Translate(w/2, h/2)
	}
	r.op.GeoM.Translate(s.X, s.Y)
	r.op.GeoM.Concat(*view)

	r.op.ColorScale.Reset()
	if s.Opacity < 1 {
		r.op.ColorScale.ScaleAlpha(float32(s.Opacity))
	}
	dst.DrawImage(img, &r.op)
}
