package meadow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqTiles(n int) []uint32 {
	tiles := make([]uint32, n)
	for i := range tiles {
		tiles[i] = uint32(i + 1)
	}
	return tiles
}

func chunkTestMap(w, h int, tiles []uint32) *MapDefinition {
	return &MapDefinition{
		ID: "m", Width: w, Height: h, TileWidth: 16, TileHeight: 16,
		Tilesets: []TilesetReference{{TilesetID: "a", FirstGID: 1}, {TilesetID: "b", FirstGID: 1000}},
		Layers: []LayerDefinition{
			{ID: "ground", Width: w, Height: h, Visible: true, Opacity: 1, Tiles: tiles},
		},
	}
}

func TestChunkGrid(t *testing.T) {
	cols, rows := ChunkGrid(5, 3, 2)
	assert.Equal(t, 3, cols)
	assert.Equal(t, 2, rows)

	cols, rows = ChunkGrid(32, 32, 16)
	assert.Equal(t, 2, cols)
	assert.Equal(t, 2, rows)

	cols, rows = ChunkGrid(0, 3, 2)
	assert.Zero(t, cols)
	assert.Zero(t, rows)
}

func TestBuildLayerCoversEveryTile(t *testing.T) {
	def := chunkTestMap(5, 3, seqTiles(15))
	b := NewChunkBuilder(2, nil, nil, nil)
	recs := b.BuildLayer(def, 0, NewTilesetResolver(def.Tilesets), TilePoint{X: 10, Y: -2})
	require.Len(t, recs, 6)

	seen := make(map[uint32]int)
	for _, rec := range recs {
		c := rec.Chunk
		assert.Len(t, c.Tiles, c.Width*c.Height)
		for y := 0; y < c.Height; y++ {
			for x := 0; x < c.Width; x++ {
				gid := c.Tiles[y*c.Width+x]
				want := uint32((c.TileY+y)*5 + c.TileX + x + 1)
				assert.Equal(t, want, gid, "chunk (%d,%d) tile (%d,%d)", c.ChunkX, c.ChunkY, x, y)
				seen[gid]++
			}
		}
	}
	assert.Len(t, seen, 15)
	for gid, n := range seen {
		assert.Equal(t, 1, n, "gid %d appears %d times", gid, n)
	}
}

func TestBuildLayerEdgeChunks(t *testing.T) {
	def := chunkTestMap(5, 3, seqTiles(15))
	b := NewChunkBuilder(2, nil, nil, nil)
	recs := b.BuildLayer(def, 0, NewTilesetResolver(def.Tilesets), TilePoint{X: 10, Y: -2})

	last := recs[len(recs)-1].Chunk
	assert.Equal(t, 2, last.ChunkX)
	assert.Equal(t, 1, last.ChunkY)
	assert.Equal(t, 1, last.Width)
	assert.Equal(t, 1, last.Height)
	assert.Equal(t, Vec2{X: (10 + 4) * 16, Y: (-2 + 2) * 16}, last.Position)
	assert.Equal(t, "m", last.MapID)
	assert.Equal(t, "ground", last.LayerID)
	assert.True(t, last.Visible)
}

func TestBuildLayerDefaultTileset(t *testing.T) {
	tiles := []uint32{0, 0, 1005, 3}
	def := chunkTestMap(2, 2, tiles)
	b := NewChunkBuilder(16, nil, nil, nil)
	recs := b.BuildLayer(def, 0, NewTilesetResolver(def.Tilesets), TilePoint{})
	require.Len(t, recs, 1)
	assert.Equal(t, "b", recs[0].Chunk.TilesetID, "first non-empty tile picks the default")
	assert.Equal(t, uint32(1000), recs[0].Chunk.FirstGID)

	def = chunkTestMap(2, 2, make([]uint32, 4))
	recs = b.BuildLayer(def, 0, NewTilesetResolver(def.Tilesets), TilePoint{})
	require.Len(t, recs, 1)
	assert.Equal(t, "a", recs[0].Chunk.TilesetID, "empty chunk falls back to the lowest tileset")
}

func TestBuildLayerAnimatedTiles(t *testing.T) {
	// Local tile 4 of tileset a is animated; gid 5 with a flip bit still counts.
	tiles := []uint32{1, 5 | tileFlipH, 2, 1005}
	def := chunkTestMap(2, 2, tiles)
	b := NewChunkBuilder(16, nil, nil, nil)
	b.Animations = func(tilesetID string, local uint32) ([]AnimFrame, bool) {
		if tilesetID == "a" && local == 4 {
			return []AnimFrame{{TileID: 4, Duration: 100}, {TileID: 5, Duration: 100}}, true
		}
		return nil, false
	}
	recs := b.BuildLayer(def, 0, NewTilesetResolver(def.Tilesets), TilePoint{})
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.True(t, rec.Chunk.HasAnimatedTiles)
	require.Len(t, rec.Animated, 1)
	st := rec.Animated[1]
	require.NotNil(t, st)
	assert.Equal(t, "a", st.TilesetID)
	assert.Equal(t, uint32(4), st.LocalTileID)
}

func TestBuildLayerWithoutAnimations(t *testing.T) {
	def := chunkTestMap(2, 2, seqTiles(4))
	recs := NewChunkBuilder(16, nil, nil, nil).BuildLayer(def, 0, NewTilesetResolver(def.Tilesets), TilePoint{})
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Chunk.HasAnimatedTiles)
	assert.Nil(t, recs[0].Animated)
}

func TestBuildLayerSkips(t *testing.T) {
	b := NewChunkBuilder(16, nil, nil, nil)

	def := chunkTestMap(2, 2, seqTiles(4))
	def.Layers[0].Visible = false
	assert.Empty(t, b.BuildLayer(def, 0, NewTilesetResolver(def.Tilesets), TilePoint{}))

	def = chunkTestMap(2, 2, nil)
	assert.Empty(t, b.BuildLayer(def, 0, NewTilesetResolver(def.Tilesets), TilePoint{}), "empty data")

	def = chunkTestMap(2, 2, seqTiles(3))
	assert.Empty(t, b.BuildLayer(def, 0, NewTilesetResolver(def.Tilesets), TilePoint{}), "wrong length")
}

func TestNewChunkBuilderDefaultSize(t *testing.T) {
	b := NewChunkBuilder(0, nil, nil, nil)
	assert.Equal(t, DefaultConfig().ChunkSize, b.ChunkSize)
	assert.Nil(t, b.Animations)
}
