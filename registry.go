package meadow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aquilax/go-perlin"
)

// MemoryRegistry is a DefinitionRegistry holding definitions in maps.
type MemoryRegistry struct {
	maps     map[string]*MapDefinition
	tilesets map[string]*TilesetDefinition
	shaders  map[string]*ShaderDefinition
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		maps:     make(map[string]*MapDefinition),
		tilesets: make(map[string]*TilesetDefinition),
		shaders:  make(map[string]*ShaderDefinition),
	}
}

// AddMap stores a map definition, replacing any with the same id.
func (r *MemoryRegistry) AddMap(def MapDefinition) { r.maps[def.ID] = &def }

// AddTileset stores a tileset definition.
func (r *MemoryRegistry) AddTileset(def TilesetDefinition) { r.tilesets[def.ID] = &def }

// AddShader stores a shader definition.
func (r *MemoryRegistry) AddShader(def ShaderDefinition) { r.shaders[def.ID] = &def }

// MapDefinition implements DefinitionRegistry.
func (r *MemoryRegistry) MapDefinition(id string) (*MapDefinition, bool) {
	d, ok := r.maps[id]
	return d, ok
}

// TilesetDefinition implements DefinitionRegistry.
func (r *MemoryRegistry) TilesetDefinition(id string) (*TilesetDefinition, bool) {
	d, ok := r.tilesets[id]
	return d, ok
}

// ShaderDefinition implements DefinitionRegistry.
func (r *MemoryRegistry) ShaderDefinition(id string) (*ShaderDefinition, bool) {
	d, ok := r.shaders[id]
	return d, ok
}

// --- Procedural world ---

// Terrain tiles of the procedural tileset, as local tile ids.
const (
	TerrainWater uint32 = iota
	TerrainSand
	TerrainGrass
	TerrainForest
	TerrainRock
	TerrainWaterAlt // second water frame
	TerrainFlower
	TerrainFlowerAlt // second flower frame
)

// ProceduralTileset is the id of the tileset procedural maps reference.
const ProceduralTileset = "meadow:terrain"

// ProceduralConfig sizes a procedural world.
type ProceduralConfig struct {
	Seed       int64
	Columns    int // maps per row
	Rows       int // maps per column
	MapWidth   int // tiles
	MapHeight  int // tiles
	TileWidth  int
	TileHeight int
	TextureID  string  // texture of the terrain tileset
	Scale      float64 // noise frequency per tile
	// Compression applied to generated layer data.
	Compression string
}

// ProceduralRegistry generates a finite grid of connected maps from
// Perlin noise. Map ids are "proc_<col>_<row>". Each map links to its grid
// neighbours. Lookups it cannot answer go to Fallback.
type ProceduralRegistry struct {
	Fallback DefinitionRegistry

	cfg     ProceduralConfig
	noise   *perlin.Perlin
	maps    map[string]*MapDefinition
	tileset *TilesetDefinition
}

// NewProceduralRegistry creates a generator. Zero sizes get small defaults.
func NewProceduralRegistry(cfg ProceduralConfig) *ProceduralRegistry {
	if cfg.Columns <= 0 {
		cfg.Columns = 3
	}
	if cfg.Rows <= 0 {
		cfg.Rows = 3
	}
	if cfg.MapWidth <= 0 {
		cfg.MapWidth = 32
	}
	if cfg.MapHeight <= 0 {
		cfg.MapHeight = 32
	}
	if cfg.TileWidth <= 0 {
		cfg.TileWidth = 16
	}
	if cfg.TileHeight <= 0 {
		cfg.TileHeight = 16
	}
	if cfg.Scale <= 0 {
		cfg.Scale = 0.05
	}
	if cfg.TextureID == "" {
		cfg.TextureID = ProceduralTileset
	}
	return &ProceduralRegistry{
		cfg:   cfg,
		noise: perlin.NewPerlin(2, 2, 3, cfg.Seed),
		maps:  make(map[string]*MapDefinition),
		tileset: &TilesetDefinition{
			ID:         ProceduralTileset,
			TextureID:  cfg.TextureID,
			TileWidth:  cfg.TileWidth,
			TileHeight: cfg.TileHeight,
			Columns:    4,
			TileCount:  8,
			Animations: map[uint32][]AnimFrame{
				TerrainWater: {
					{TileID: TerrainWater, Duration: 400},
					{TileID: TerrainWaterAlt, Duration: 400},
				},
				TerrainFlower: {
					{TileID: TerrainFlower, Duration: 300},
					{TileID: TerrainFlowerAlt, Duration: 300},
				},
			},
		},
	}
}

// Config returns the effective configuration.
func (r *ProceduralRegistry) Config() ProceduralConfig { return r.cfg }

// ProceduralMapID returns the id of the map at grid cell (col, row).
func ProceduralMapID(col, row int) string {
	return "proc_" + strconv.Itoa(col) + "_" + strconv.Itoa(row)
}

func parseProceduralID(id string) (col, row int, ok bool) {
	rest, found := strings.CutPrefix(id, "proc_")
	if !found {
		return 0, 0, false
	}
	a, b, found := strings.Cut(rest, "_")
	if !found {
		return 0, 0, false
	}
	col, err1 := strconv.Atoi(a)
	row, err2 := strconv.Atoi(b)
	return col, row, err1 == nil && err2 == nil
}

// MapDefinition implements DefinitionRegistry. Maps are generated on first
// request and kept.
func (r *ProceduralRegistry) MapDefinition(id string) (*MapDefinition, bool) {
	if def, ok := r.maps[id]; ok {
		return def, true
	}
	col, row, ok := parseProceduralID(id)
	if !ok || col < 0 || row < 0 || col >= r.cfg.Columns || row >= r.cfg.Rows {
		if r.Fallback != nil {
			return r.Fallback.MapDefinition(id)
		}
		return nil, false
	}
	def, err := r.generate(col, row)
	if err != nil {
		return nil, false
	}
	r.maps[id] = def
	return def, true
}

// TilesetDefinition implements DefinitionRegistry.
func (r *ProceduralRegistry) TilesetDefinition(id string) (*TilesetDefinition, bool) {
	if id == ProceduralTileset {
		return r.tileset, true
	}
	if r.Fallback != nil {
		return r.Fallback.TilesetDefinition(id)
	}
	return nil, false
}

// ShaderDefinition implements DefinitionRegistry.
func (r *ProceduralRegistry) ShaderDefinition(id string) (*ShaderDefinition, bool) {
	if r.Fallback != nil {
		return r.Fallback.ShaderDefinition(id)
	}
	return nil, false
}

// TerrainAt returns the terrain tile of world tile (x, y).
func (r *ProceduralRegistry) TerrainAt(x, y int) uint32 {
	n := (r.noise.Noise2D(float64(x)*r.cfg.Scale, float64(y)*r.cfg.Scale) + 1) / 2
	switch {
	case n < 0.38:
		return TerrainWater
	case n < 0.45:
		return TerrainSand
	case n < 0.62:
		return TerrainGrass
	case n < 0.75:
		return TerrainForest
	default:
		return TerrainRock
	}
}

func (r *ProceduralRegistry) generate(col, row int) (*MapDefinition, error) {
	w, h := r.cfg.MapWidth, r.cfg.MapHeight
	const firstGID = 1

	ground := make([]uint32, w*h)
	decor := make([]uint32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			wx, wy := col*w+x, row*h+y
			t := r.TerrainAt(wx, wy)
			ground[y*w+x] = t + firstGID
			if t == TerrainGrass && r.flower(wx, wy) {
				gid := TerrainFlower + firstGID
				if (wx+wy)%2 == 0 {
					gid |= tileFlipH
				}
				decor[y*w+x] = gid
			}
		}
	}

	groundData, err := EncodeTileData(ground, r.cfg.Compression)
	if err != nil {
		return nil, err
	}
	decorData, err := EncodeTileData(decor, r.cfg.Compression)
	if err != nil {
		return nil, err
	}

	def := &MapDefinition{
		ID:         ProceduralMapID(col, row),
		Width:      w,
		Height:     h,
		TileWidth:  r.cfg.TileWidth,
		TileHeight: r.cfg.TileHeight,
		Tilesets:   []TilesetReference{{TilesetID: ProceduralTileset, FirstGID: firstGID}},
		Layers: []LayerDefinition{
			{ID: "ground", Name: "Ground", Width: w, Height: h, Visible: true, Opacity: 1,
				TileData: groundData, Compression: r.cfg.Compression},
			{ID: "decor", Name: "Decor", Width: w, Height: h, Visible: true, Opacity: 1,
				TileData: decorData, Compression: r.cfg.Compression},
		},
		Connections: make(map[Direction]ConnectionDefinition),
	}
	if row > 0 {
		def.Connections[North] = ConnectionDefinition{MapID: ProceduralMapID(col, row-1)}
	}
	if row < r.cfg.Rows-1 {
		def.Connections[South] = ConnectionDefinition{MapID: ProceduralMapID(col, row+1)}
	}
	if col < r.cfg.Columns-1 {
		def.Connections[East] = ConnectionDefinition{MapID: ProceduralMapID(col+1, row)}
	}
	if col > 0 {
		def.Connections[West] = ConnectionDefinition{MapID: ProceduralMapID(col-1, row)}
	}
	return def, nil
}

// flower scatters decoration with a high-frequency noise sample.
func (r *ProceduralRegistry) flower(x, y int) bool {
	return r.noise.Noise2D(float64(x)*0.9+100, float64(y)*0.9+100) > 0.35
}

// String describes the generated grid.
func (r *ProceduralRegistry) String() string {
	return fmt.Sprintf("procedural %dx%d maps of %dx%d tiles (seed %d)",
		r.cfg.Columns, r.cfg.Rows, r.cfg.MapWidth, r.cfg.MapHeight, r.cfg.Seed)
}
