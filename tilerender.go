package meadow

import (
	"image"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sirupsen/logrus"
	"github.com/yohamta/donburi"
)

// maxTilesPerDraw is the maximum number of tiles per DrawTriangles call.
// Limited by uint16 index buffer: 65535 / 4 vertices per tile = 16383.
const maxTilesPerDraw = 16383

// uvOrder defines vertex UV assignment for each combination of flip flags.
// Indexed by 3-bit flag value: (flipH << 2) | (flipV << 1) | flipD.
// Each entry contains 4 corner indices: TL=0, TR=1, BL=2, BR=3.
//
//	result[i] is which source corner goes to vertex position i.
var uvOrder = [8][4]int{
	{0, 1, 2, 3}, // no flags
	{0, 2, 1, 3}, // D only (transpose)
	{2, 3, 0, 1}, // V flip
	{1, 3, 0, 2}, // V+D (90° CCW)
	{1, 0, 3, 2}, // H flip
	{2, 0, 3, 1}, // H+D (90° CW)
	{3, 2, 1, 0}, // H+V (180°)
	{3, 1, 2, 0}, // H+V+D (anti-transpose)
}

// RendererOptions configures the tile, sprite and frame renderers.
type RendererOptions struct {
	Resources TileResources
	Cameras   CameraProvider
	Shaders   *ShaderEngine // nil draws unshaded
	Targets   *PassTargets  // resized to the viewport by FrameRenderer
	Config    Config
	Logger    *logrus.Logger
	Metrics   *Metrics
}

func (o *RendererOptions) config() Config {
	if o.Config.ChunkSize == 0 {
		return DefaultConfig()
	}
	return o.Config
}

// TileStats describes the last RenderTileLayer call.
type TileStats struct {
	Chunks  int // chunks that survived culling
	Culled  int // chunks rejected by culling
	Drawn   int // tiles submitted
	Invalid int // non-empty tiles that could not be resolved
}

// tilesetDraw caches one tileset's draw inputs for a frame.
type tilesetDraw struct {
	info TilesetInfo
	tex  *ebiten.Image
	ok   bool
}

// TileRenderer draws the visible tile chunks of a world.
type TileRenderer struct {
	world     donburi.World
	resources TileResources
	cameras   CameraProvider
	shaders   *ShaderEngine
	cfg       Config
	log       *logrus.Entry
	metrics   *Metrics

	visible  *VisibleSet[visibleChunk]
	tilesets map[string]tilesetDraw

	// Geometry for the batch being built. All tiles share batchTex.
	vertices []ebiten.Vertex
	indices  []uint16
	batchTex *ebiten.Image
	batchN   int
	triOp    ebiten.DrawTrianglesOptions

	pool  renderTexturePool
	stats TileStats
}

// NewTileRenderer creates a tile renderer for world.
func NewTileRenderer(world donburi.World, opts RendererOptions) *TileRenderer {
	r := &TileRenderer{
		world:     world,
		resources: opts.Resources,
		cameras:   opts.Cameras,
		shaders:   opts.Shaders,
		cfg:       opts.config(),
		log:       componentLog(opts.Logger, "tiles"),
		metrics:   opts.Metrics,
		visible:   NewVisibleSet(chunkLessOrEqual),
		tilesets:  make(map[string]tilesetDraw),
	}
	r.triOp.ColorScaleMode = ebiten.ColorScaleModePremultipliedAlpha
	// Index topology never changes.
	r.indices = make([]uint16, maxTilesPerDraw*6)
	for i := 0; i < maxTilesPerDraw; i++ {
		base := uint16(i * 4)
		off := i * 6
		r.indices[off+0] = base + 0
		r.indices[off+1] = base + 1
		r.indices[off+2] = base + 2
		r.indices[off+3] = base + 1
		r.indices[off+4] = base + 3
		r.indices[off+5] = base + 2
	}
	return r
}

// Stats returns counters for the last RenderTileLayer call.
func (r *TileRenderer) Stats() TileStats { return r.stats }

// Draw renders the tile layer through the engine's TileLayer stack.
func (r *TileRenderer) Draw(screen *ebiten.Image) int {
	var stack *ShaderStack
	if r.shaders != nil {
		stack = r.shaders.Stack(TileLayer)
	}
	return r.RenderTileLayer(screen, stack)
}

// RenderTileLayer draws every visible chunk onto screen through stack and
// returns the number of tiles drawn. Without an active camera nothing is
// drawn. An empty stack draws straight to screen; otherwise the layer is
// drawn offscreen and composited.
func (r *TileRenderer) RenderTileLayer(screen *ebiten.Image, stack *ShaderStack) int {
	r.stats = TileStats{}
	if r.resources == nil || r.cameras == nil {
		return 0
	}
	cam, ok := r.cameras.ActiveCamera()
	if !ok {
		return 0
	}
	r.collect(cam)

	if stack.Empty() || r.shaders == nil {
		r.drawChunks(screen, cam)
	} else {
		b := screen.Bounds()
		off := r.pool.Acquire(b.Dx(), b.Dy())
		layer := region(off, b.Dx(), b.Dy())
		r.drawChunks(layer, cam)
		r.shaders.Composite(layer, screen, stack)
		r.pool.Release(off)
	}

	r.metrics.culled(r.stats.Culled)
	r.metrics.tiles(r.stats.Drawn, r.stats.Invalid)
	return r.stats.Drawn
}

// collect culls chunks against the camera and sorts the survivors.
func (r *TileRenderer) collect(cam CameraView) {
	view := ViewBounds(cam, r.cfg.CullMarginTiles)
	r.visible.Reset()
	chunkQuery.Each(r.world, func(entry *donburi.Entry) {
		c := TileChunkComponent.Get(entry)
		if !c.Visible || c.Opacity <= 0 {
			return
		}
		vc := visibleChunk{chunk: c}
		if c.HasAnimatedTiles && entry.HasComponent(AnimatedTilesComponent) {
			vc.anim = AnimatedTilesComponent.Get(entry)
		}
		r.visible.Offer(chunkBounds(c, r.resources, &r.cfg), view, vc)
	})
	r.visible.Sort()
	r.stats.Chunks = r.visible.Len()
	r.stats.Culled = r.visible.Culled()
}

func (r *TileRenderer) drawChunks(dst *ebiten.Image, cam CameraView) {
	clear(r.tilesets)
	for _, vc := range r.visible.Items() {
		r.drawChunk(dst, vc, &cam.Transform)
	}
	r.flush(dst)
}

// tileset returns the cached draw inputs of a tileset for this frame.
func (r *TileRenderer) tileset(id string) tilesetDraw {
	if td, ok := r.tilesets[id]; ok {
		return td
	}
	var td tilesetDraw
	info, err := r.resources.Tileset(id)
	if err == nil && info.TileWidth > 0 && info.TileHeight > 0 {
		if tex, err := r.resources.LoadTexture(info.TextureID); err == nil {
			td = tilesetDraw{info: info, tex: tex, ok: true}
		}
	}
	r.tilesets[id] = td
	return td
}

// drawChunk appends the chunk's resolvable tiles to the batch.
func (r *TileRenderer) drawChunk(dst *ebiten.Image, vc visibleChunk, view *ebiten.GeoM) {
	c := vc.chunk
	alpha := float32(c.Opacity)
	for i, raw := range c.Tiles {
		if raw == 0 {
			continue
		}
		flags := FlipFlags(raw)
		local, ref, ok := c.Tilesets.LocalID(raw)
		if !ok {
			r.stats.Invalid++
			continue
		}
		if vc.anim != nil {
			if st, ok := vc.anim.States[i]; ok {
				if frames, ok := r.resources.TileAnimation(ref.TilesetID, st.LocalTileID); ok {
					local = currentFrameTile(st, frames)
				}
			}
		}
		td := r.tileset(ref.TilesetID)
		if !td.ok {
			r.stats.Invalid++
			continue
		}
		src, err := r.resources.SourceRect(ref.TilesetID, ref.FirstGID+local, ref.FirstGID)
		if err != nil {
			r.stats.Invalid++
			continue
		}
		// Atlas regions are sub-images; UVs are in page coordinates.
		src = src.Add(td.tex.Bounds().Min)

		if td.tex != r.batchTex || r.batchN == maxTilesPerDraw {
			r.flush(dst)
			r.batchTex = td.tex
		}

		tw := float64(td.info.TileWidth)
		th := float64(td.info.TileHeight)
		x := c.Position.X + float64(i%c.Width)*tw
		y := c.Position.Y + float64(i/c.Width)*th
		r.appendQuad(view, x, y, tw, th, src, flags, alpha)
		r.stats.Drawn++
	}
}

// appendQuad adds one tile's four vertices in screen space.
func (r *TileRenderer) appendQuad(view *ebiten.GeoM, x, y, w, h float64, src image.Rectangle, flags uint32, alpha float32) {
	n := len(r.vertices)
	r.vertices = append(r.vertices, ebiten.Vertex{}, ebiten.Vertex{}, ebiten.Vertex{}, ebiten.Vertex{})
	v := r.vertices[n : n+4]

	corners := [4][2]float64{{x, y}, {x + w, y}, {x, y + h}, {x + w, y + h}}
	for i, p := range corners {
		sx, sy := view.Apply(p[0], p[1])
		v[i].DstX = float32(sx)
		v[i].DstY = float32(sy)
		// Premultiplied: color channels scale with alpha.
		v[i].ColorR = alpha
		v[i].ColorG = alpha
		v[i].ColorB = alpha
		v[i].ColorA = alpha
	}
	setTileUVs(v, src, flags)
	r.batchN++
}

// flush submits the pending batch.
func (r *TileRenderer) flush(dst *ebiten.Image) {
	if r.batchN > 0 && r.batchTex != nil {
		dst.DrawTriangles(r.vertices, r.indices[:r.batchN*6], r.batchTex, &r.triOp)
	}
	r.vertices = r.vertices[:0]
	r.batchN = 0
	r.batchTex = nil
}

// setTileUVs sets the UV (SrcX/SrcY) coordinates for 4 vertices of a tile,
// applying flip flags via the lookup table.
func setTileUVs(verts []ebiten.Vertex, src image.Rectangle, flags uint32) {
	sx := float32(src.Min.X)
	sy := float32(src.Min.Y)
	ex := float32(src.Max.X)
	ey := float32(src.Max.Y)

	// The four UV corners: TL(0), TR(1), BL(2), BR(3).
	uvX := [4]float32{sx, ex, sx, ex}
	uvY := [4]float32{sy, sy, ey, ey}

	flagIdx := 0
	if flags&tileFlipH != 0 {
		flagIdx |= 4
	}
	if flags&tileFlipV != 0 {
		flagIdx |= 2
	}
	if flags&tileFlipD != 0 {
		flagIdx |= 1
	}
	order := uvOrder[flagIdx]

	// Vertex 0 = top-left, 1 = top-right, 2 = bottom-left, 3 = bottom-right.
	for i := 0; i < 4; i++ {
		verts[i].SrcX = uvX[order[i]]
		verts[i].SrcY = uvY[order[i]]
	}
}
