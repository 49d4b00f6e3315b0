package meadow

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"testing/fstest"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResources(t *testing.T, source TextureSource, tilesets ...TilesetDefinition) *Resources {
	t.Helper()
	reg := NewMemoryRegistry()
	for _, ts := range tilesets {
		reg.AddTileset(ts)
	}
	res, err := NewResources(reg, source, CacheConfig{}, nil)
	require.NoError(t, err)
	t.Cleanup(res.Close)
	return res
}

// countingSource serves blank textures of a fixed size and counts loads.
type countingSource struct {
	w, h  int
	loads map[string]int
}

func (s *countingSource) Texture(id string) (*ebiten.Image, error) {
	if s.loads == nil {
		s.loads = make(map[string]int)
	}
	s.loads[id]++
	if id == "missing.png" {
		return nil, ErrTextureNotFound
	}
	return ebiten.NewImage(s.w, s.h), nil
}

func TestSourceRectGrid(t *testing.T) {
	res := newTestResources(t, nil, TilesetDefinition{
		ID: "terrain", TextureID: "terrain.png", TileWidth: 16, TileHeight: 16,
		Columns: 4, TileCount: 16, Margin: 1, Spacing: 2,
	})

	tests := []struct {
		gid  uint32
		want image.Rectangle
	}{
		{1, image.Rect(1, 1, 17, 17)},
		{2, image.Rect(19, 1, 35, 17)},
		{5, image.Rect(1, 19, 17, 35)},
		{16, image.Rect(55, 55, 71, 71)},
		{6 | tileFlipH | tileFlipD, image.Rect(19, 19, 35, 35)},
	}
	for _, tt := range tests {
		got, err := res.SourceRect("terrain", tt.gid, 1)
		require.NoError(t, err, "gid %d", tt.gid)
		assert.Equal(t, tt.want, got, "gid %d", tt.gid)
	}
}

func TestSourceRectErrors(t *testing.T) {
	res := newTestResources(t, nil, TilesetDefinition{
		ID: "terrain", TextureID: "terrain.png", TileWidth: 16, TileHeight: 16, Columns: 4, TileCount: 8,
	})

	_, err := res.SourceRect("terrain", 9, 1)
	assert.ErrorIs(t, err, ErrTileOutOfRange)
	_, err = res.SourceRect("terrain", 3, 10)
	assert.ErrorIs(t, err, ErrTileOutOfRange)
	_, err = res.SourceRect("nope", 1, 1)
	assert.ErrorIs(t, err, ErrTilesetNotFound)
}

func TestSourceRectDerivesColumns(t *testing.T) {
	src := &countingSource{w: 70, h: 70}
	res := newTestResources(t, src, TilesetDefinition{
		ID: "terrain", TextureID: "terrain.png", TileWidth: 16, TileHeight: 16, Margin: 1, Spacing: 2,
	})

	// (70 - 2 + 2) / 18 = 3 columns
	got, err := res.SourceRect("terrain", 4, 1)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(1, 19, 17, 35), got)

	_, err = res.SourceRect("terrain", 5, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, src.loads["terrain.png"], "texture loaded once and cached")
}

func TestSourceRectTextureTooNarrow(t *testing.T) {
	res := newTestResources(t, &countingSource{w: 8, h: 8}, TilesetDefinition{
		ID: "tiny", TextureID: "tiny.png", TileWidth: 16, TileHeight: 16,
	})
	_, err := res.SourceRect("tiny", 1, 1)
	assert.ErrorIs(t, err, ErrTileOutOfRange)
}

func TestLoadTexture(t *testing.T) {
	src := &countingSource{w: 4, h: 4}
	res := newTestResources(t, src)

	a, err := res.LoadTexture("a.png")
	require.NoError(t, err)
	b, err := res.LoadTexture("a.png")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, src.loads["a.png"])

	_, err = res.LoadTexture("missing.png")
	assert.ErrorIs(t, err, ErrTextureNotFound)
	_, err = res.LoadTexture("missing.png")
	assert.Error(t, err)
	assert.Equal(t, 2, src.loads["missing.png"], "failures are not cached")
}

func TestLoadTextureWithoutSource(t *testing.T) {
	res := newTestResources(t, nil)
	_, err := res.LoadTexture("a.png")
	assert.ErrorIs(t, err, ErrTextureNotFound)
}

func TestFSTextureSource(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	src := FSTextureSource{FS: fstest.MapFS{"tiles/terrain.png": {Data: buf.Bytes()}}}
	tex, err := src.Texture("tiles/terrain.png")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), tex.Bounds())

	_, err = src.Texture("tiles/none.png")
	assert.Error(t, err)
}

func TestTextureSourceFunc(t *testing.T) {
	called := ""
	f := TextureSourceFunc(func(id string) (*ebiten.Image, error) {
		called = id
		return nil, errors.New("no")
	})
	_, err := f.Texture("x")
	assert.Error(t, err)
	assert.Equal(t, "x", called)
}

func TestTilesetAndAnimation(t *testing.T) {
	frames := []AnimFrame{{TileID: 0, Duration: 100}, {TileID: 1, Duration: 100}}
	res := newTestResources(t, nil, TilesetDefinition{
		ID: "water", TextureID: "water.png", TileWidth: 8, TileHeight: 12,
		Animations: map[uint32][]AnimFrame{0: frames, 3: {}},
	})

	info, err := res.Tileset("water")
	require.NoError(t, err)
	assert.Equal(t, TilesetInfo{TextureID: "water.png", TileWidth: 8, TileHeight: 12}, info)

	got, ok := res.TileAnimation("water", 0)
	assert.True(t, ok)
	assert.Equal(t, frames, got)
	_, ok = res.TileAnimation("water", 3)
	assert.False(t, ok, "empty frame list is not an animation")
	_, ok = res.TileAnimation("water", 1)
	assert.False(t, ok)
	_, ok = res.TileAnimation("lava", 0)
	assert.False(t, ok)
}
