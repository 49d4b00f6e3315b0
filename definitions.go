package meadow

import (
	"errors"
	"image"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
)

// Sentinel errors. Callers match them with errors.Is; returned errors wrap
// them with context.
var (
	ErrMapNotFound        = errors.New("map definition not found")
	ErrTilesetNotFound    = errors.New("tileset not found")
	ErrShaderNotFound     = errors.New("shader not found")
	ErrTextureNotFound    = errors.New("texture not found")
	ErrTileDataEmpty      = errors.New("layer has no tile data")
	ErrTileDataLength     = errors.New("tile data length does not match layer size")
	ErrUnknownCompression = errors.New("unknown tile data compression")
	ErrTileOutOfRange     = errors.New("tile id outside tileset")
	ErrFallbackRequired   = errors.New("shader stack needs fallback rendering")
	ErrPassLimit          = errors.New("render target pass limit reached")
)

// Direction is the side of a map a connection leaves from.
type Direction uint8

const (
	DirectionUnknown Direction = iota
	North
	South
	East
	West
)

// ParseDirection converts a direction name to a Direction. Both cardinal
// names and the legacy up/down/left/right spellings are accepted, case
// insensitively. Anything else yields DirectionUnknown.
func ParseDirection(s string) Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "north", "up":
		return North
	case "south", "down":
		return South
	case "east", "right":
		return East
	case "west", "left":
		return West
	default:
		return DirectionUnknown
	}
}

// String returns the lower-case cardinal name.
func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case South:
		return "south"
	case East:
		return "east"
	case West:
		return "west"
	default:
		return "unknown"
	}
}

// Opposite returns the direction facing back across a connection.
func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	default:
		return DirectionUnknown
	}
}

// MapDefinition is the read-only description of one rectangular map.
type MapDefinition struct {
	ID          string
	Width       int // tiles
	Height      int // tiles
	TileWidth   int // pixels
	TileHeight  int // pixels
	Layers      []LayerDefinition
	Tilesets    []TilesetReference
	Connections map[Direction]ConnectionDefinition
}

// LayerDefinition is one plane of tile data within a map.
//
// TileData holds base64 of little-endian uint32 GIDs, optionally compressed
// as named by Compression ("", "gzip", "zlib" or "zstd"). Tiles, when set,
// holds already decoded GIDs and takes precedence over TileData.
type LayerDefinition struct {
	ID          string
	Name        string
	Width       int
	Height      int
	Visible     bool
	Opacity     float64
	OffsetX     int
	OffsetY     int
	TileData    string
	Compression string
	Tiles       []uint32
}

// TilesetReference binds a tileset to the first GID it covers in a map.
type TilesetReference struct {
	TilesetID string
	FirstGID  uint32
}

// ConnectionDefinition links a map edge to a neighbouring map. Offset shifts
// the neighbour along the shared edge, in tiles.
type ConnectionDefinition struct {
	MapID  string
	Offset int
}

// AnimFrame describes a single frame in a tile animation sequence.
type AnimFrame struct {
	TileID   uint32 // local tile id within the tileset (no flag bits)
	Duration int    // milliseconds
}

// TilesetDefinition describes a grid of tiles in one texture.
type TilesetDefinition struct {
	ID         string
	TextureID  string
	TileWidth  int
	TileHeight int
	Columns    int
	TileCount  int
	Spacing    int
	Margin     int
	Animations map[uint32][]AnimFrame // local tile id -> frames
}

// ShaderParameter is one parameter a shader definition declares.
// A nil Default means the value must come from the owning entity.
type ShaderParameter struct {
	Name    string
	Default any
}

// ShaderDefinition describes a shader and the parameters it expects.
type ShaderDefinition struct {
	ID         string
	Source     string // Kage source; empty for built-in shaders
	Parameters []ShaderParameter
}

// Parameter returns the named parameter declaration.
func (d *ShaderDefinition) Parameter(name string) (ShaderParameter, bool) {
	for _, p := range d.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ShaderParameter{}, false
}

// --- Collaborator interfaces ---

// DefinitionRegistry resolves definitions by id.
type DefinitionRegistry interface {
	MapDefinition(id string) (*MapDefinition, bool)
	TilesetDefinition(id string) (*TilesetDefinition, bool)
	ShaderDefinition(id string) (*ShaderDefinition, bool)
}

// TilesetInfo is the subset of a tileset needed for layout.
type TilesetInfo struct {
	TextureID  string
	TileWidth  int
	TileHeight int
}

// TileResources provides textures, tileset geometry and tile animations.
type TileResources interface {
	LoadTexture(id string) (*ebiten.Image, error)
	Tileset(id string) (TilesetInfo, error)
	SourceRect(tilesetID string, gid, firstGID uint32) (image.Rectangle, error)
	TileAnimation(tilesetID string, localTileID uint32) ([]AnimFrame, bool)
}

// CameraView is the camera state the renderers consume for one frame.
type CameraView struct {
	TileBounds TileRect    // visible area in tiles
	TileWidth  int         // pixels per tile
	TileHeight int         // pixels per tile
	Transform  ebiten.GeoM // world pixels -> screen pixels
	Viewport   Rect        // virtual screen area in pixels
}

// CameraProvider reports the active camera, if any.
type CameraProvider interface {
	ActiveCamera() (CameraView, bool)
}

// ShaderProvider resolves shader ids to effects. Each call to Effect returns
// an instance whose uniforms are independent of other instances.
type ShaderProvider interface {
	HasShader(id string) bool
	Effect(id string) (Effect, error)
}

// RenderTargetPool leases intermediate render targets by pass index.
type RenderTargetPool interface {
	RenderTarget(pass int) (*ebiten.Image, error)
}
