package meadow

import (
	"image"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"
)

// MapInfo is the loaded-map record. The Chunks and Connections lists are the
// ownership index used to tear the map down without scanning the world.
type MapInfo struct {
	MapID       string
	Origin      TilePoint // tile-space position, immutable once loaded
	Width       int       // tiles
	Height      int       // tiles
	TileWidth   int       // pixels
	TileHeight  int       // pixels
	Chunks      []donburi.Entity
	Connections []donburi.Entity
}

// TileBounds returns the map's footprint in world tile space.
func (m *MapInfo) TileBounds() TileRect {
	return TileRect{X: m.Origin.X, Y: m.Origin.Y, Width: m.Width, Height: m.Height}
}

// PixelBounds returns the map's footprint in world pixels.
func (m *MapInfo) PixelBounds() Rect {
	return Rect{
		X:      float64(m.Origin.X * m.TileWidth),
		Y:      float64(m.Origin.Y * m.TileHeight),
		Width:  float64(m.Width * m.TileWidth),
		Height: float64(m.Height * m.TileHeight),
	}
}

// TileChunk is a rectangular block of one layer's tiles.
type TileChunk struct {
	MapID      string
	LayerID    string
	LayerIndex int
	ChunkX     int // chunk column within the layer
	ChunkY     int // chunk row within the layer
	TileX      int // first map-local tile column
	TileY      int // first map-local tile row
	Width      int // tiles, clipped at the map edge
	Height     int // tiles, clipped at the map edge
	Tiles      []uint32
	TilesetID  string // default tileset
	FirstGID   uint32 // default tileset first GID
	Tilesets   *TilesetResolver
	Position   Vec2 // world pixels
	TileWidth  int  // map tile width in pixels
	TileHeight int  // map tile height in pixels
	Opacity    float64
	Visible    bool

	HasAnimatedTiles bool
}

// TileAnimationState tracks the current frame of one animated tile.
type TileAnimationState struct {
	TilesetID   string
	LocalTileID uint32
	FrameIndex  int
	Elapsed     int // milliseconds into the current frame
}

// AnimatedTiles maps chunk-local flat tile indices to animation state.
// Only chunks with at least one animated tile carry this component.
type AnimatedTiles struct {
	States map[int]*TileAnimationState
}

// MapConnection records one edge link from a loaded map.
type MapConnection struct {
	SourceMapID string
	Direction   Direction
	TargetMapID string
	Offset      int
}

// LayerShader attaches a shader pass to one render layer.
type LayerShader struct {
	Layer       ShaderLayer
	ShaderID    string
	Enabled     bool
	RenderOrder int
	BlendMode   BlendMode
	Parameters  map[string]any // per-entity overrides
}

// Sprite is a dynamic textured quad in world pixel space.
type Sprite struct {
	TextureID   string
	Source      image.Rectangle // relative to the texture origin; empty uses the sprite size
	TilesetID   string          // optional size source when Source is empty
	X, Y        float64
	RenderOrder int
	Visible     bool
	FlipH       bool
	FlipV       bool
	Opacity     float64
}

// Component types.
var (
	MapInfoComponent       = donburi.NewComponentType[MapInfo]()
	TileChunkComponent     = donburi.NewComponentType[TileChunk]()
	AnimatedTilesComponent = donburi.NewComponentType[AnimatedTiles]()
	ConnectionComponent    = donburi.NewComponentType[MapConnection]()
	LayerShaderComponent   = donburi.NewComponentType[LayerShader]()
	SpriteComponent        = donburi.NewComponentType[Sprite]()
)

// Queries shared by the systems.
var (
	mapQuery         = donburi.NewQuery(filter.Contains(MapInfoComponent))
	chunkQuery       = donburi.NewQuery(filter.Contains(TileChunkComponent))
	animatedQuery    = donburi.NewQuery(filter.Contains(TileChunkComponent, AnimatedTilesComponent))
	connectionQuery  = donburi.NewQuery(filter.Contains(ConnectionComponent))
	layerShaderQuery = donburi.NewQuery(filter.Contains(LayerShaderComponent))
	spriteQuery      = donburi.NewQuery(filter.Contains(SpriteComponent))
)
