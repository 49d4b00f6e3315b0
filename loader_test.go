package meadow

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

// rectMap builds a w×h map whose single layer is filled with gid 1.
func rectMap(id string, w, h int, conns map[Direction]ConnectionDefinition) MapDefinition {
	tiles := make([]uint32, w*h)
	for i := range tiles {
		tiles[i] = 1
	}
	return MapDefinition{
		ID: id, Width: w, Height: h, TileWidth: 16, TileHeight: 16,
		Tilesets: []TilesetReference{{TilesetID: "terrain", FirstGID: 1}},
		Layers: []LayerDefinition{
			{ID: "ground", Width: w, Height: h, Visible: true, Opacity: 1, Tiles: tiles},
		},
		Connections: conns,
	}
}

func newTestLoader(t *testing.T, cfg Config, maps ...MapDefinition) (*MapLoader, donburi.World, *test.Hook) {
	t.Helper()
	reg := NewMemoryRegistry()
	for _, m := range maps {
		reg.AddMap(m)
	}
	logger, hook := test.NewNullLogger()
	world := donburi.NewWorld()
	l := NewMapLoader(world, reg, LoaderOptions{Config: cfg, Logger: logger})
	return l, world, hook
}

func warnings(hook *test.Hook) []*logrus.Entry {
	var out []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			out = append(out, e)
		}
	}
	return out
}

func TestCalculateConnectedMapPosition(t *testing.T) {
	src := TilePoint{X: 0, Y: 0}
	tests := []struct {
		dir    Direction
		offset int
		want   TilePoint
	}{
		{North, 0, TilePoint{X: 0, Y: -5}},
		{South, 2, TilePoint{X: 2, Y: 8}},
		{East, -1, TilePoint{X: 10, Y: -1}},
		{West, 0, TilePoint{X: -6, Y: 0}},
		{DirectionUnknown, 3, src},
	}
	for _, tt := range tests {
		got := CalculateConnectedMapPosition(src, 10, 8, 6, 5, tt.dir, tt.offset)
		assert.Equal(t, tt.want, got, "direction %s offset %d", tt.dir, tt.offset)
	}
}

func TestLoadMapPlacesConnectedMaps(t *testing.T) {
	l, _, hook := newTestLoader(t, DefaultConfig(),
		rectMap("a", 10, 10, map[Direction]ConnectionDefinition{South: {MapID: "b"}}),
		rectMap("b", 10, 10, map[Direction]ConnectionDefinition{North: {MapID: "a"}}),
	)

	l.LoadMap("a")
	assert.Equal(t, []string{"a", "b"}, l.LoadedMaps())
	pos, ok := l.Position("b")
	require.True(t, ok)
	assert.Equal(t, TilePoint{X: 0, Y: 10}, pos)
	assert.Empty(t, warnings(hook), "reciprocal connection at the expected spot is silent")

	l.UnloadMap("a")
	assert.False(t, l.IsLoaded("a"))
	assert.True(t, l.IsLoaded("b"), "unloading a map leaves its neighbours")
	pos, _ = l.Position("b")
	assert.Equal(t, TilePoint{X: 0, Y: 10}, pos)
}

func TestLoadMapIdempotent(t *testing.T) {
	l, world, _ := newTestLoader(t, DefaultConfig(), rectMap("a", 20, 20, nil))

	l.LoadMap("a")
	chunks := chunkQuery.Count(world)
	maps := mapQuery.Count(world)
	l.LoadMap("a")
	l.LoadMapAt("a", TilePoint{X: 100, Y: 100})

	assert.Equal(t, chunks, chunkQuery.Count(world))
	assert.Equal(t, maps, mapQuery.Count(world))
	pos, _ := l.Position("a")
	assert.Equal(t, TilePoint{}, pos, "reloading never moves a map")
}

func TestLoadMapChunksAndConnections(t *testing.T) {
	l, world, _ := newTestLoader(t, DefaultConfig(),
		rectMap("a", 20, 10, map[Direction]ConnectionDefinition{East: {MapID: "b", Offset: 3}}),
		rectMap("b", 5, 5, nil),
	)
	l.LoadMap("a")

	info, ok := l.Map("a")
	require.True(t, ok)
	assert.Len(t, info.Chunks, 2, "20x10 with 16-tile chunks")
	assert.Len(t, info.Connections, 1)
	assert.Equal(t, 3, chunkQuery.Count(world), "2 chunks for a, 1 for b")

	conns := l.Connections("a")
	require.Len(t, conns, 1)
	assert.Equal(t, MapConnection{SourceMapID: "a", Direction: East, TargetMapID: "b", Offset: 3}, conns[0])
	assert.True(t, l.HasConnection("a", East))
	assert.False(t, l.HasConnection("a", West))
	assert.Len(t, l.ConnectionsInto("b"), 1)

	pos, _ := l.Position("b")
	assert.Equal(t, TilePoint{X: 20, Y: 3}, pos)
}

func TestLoadMapMissingDefinition(t *testing.T) {
	l, world, hook := newTestLoader(t, DefaultConfig())
	l.LoadMap("nowhere")
	assert.Empty(t, l.LoadedMaps())
	assert.Zero(t, mapQuery.Count(world))
	require.Len(t, warnings(hook), 1)
	assert.Equal(t, "nowhere", warnings(hook)[0].Data["map"])
	assert.ErrorIs(t, warnings(hook)[0].Data[logrus.ErrorKey].(error), ErrMapNotFound)
}

func TestLoadMapMissingNeighbour(t *testing.T) {
	l, _, hook := newTestLoader(t, DefaultConfig(),
		rectMap("a", 4, 4, map[Direction]ConnectionDefinition{West: {MapID: "gone"}}),
	)
	l.LoadMap("a")
	assert.True(t, l.IsLoaded("a"))
	assert.Len(t, warnings(hook), 1)
	assert.True(t, l.HasConnection("a", West), "the connection record is kept")
}

func TestLoadMapPositionMismatchWarns(t *testing.T) {
	// a -> b (east) and a -> c (south) -> b (east) disagree about b's spot.
	l, _, hook := newTestLoader(t, DefaultConfig(),
		rectMap("a", 4, 4, map[Direction]ConnectionDefinition{
			East:  {MapID: "b"},
			South: {MapID: "c"},
		}),
		rectMap("b", 4, 4, nil),
		rectMap("c", 4, 4, map[Direction]ConnectionDefinition{East: {MapID: "b", Offset: 1}}),
	)
	l.LoadMap("a")

	pos, _ := l.Position("b")
	assert.Equal(t, TilePoint{X: 4, Y: 5}, pos, "south is walked before east")
	require.Len(t, warnings(hook), 1)
	assert.Equal(t, "b", warnings(hook)[0].Data["map"])
}

func TestLoadMapPositionTolerance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PositionTolerance = 1
	l, _, hook := newTestLoader(t, cfg,
		rectMap("a", 4, 4, map[Direction]ConnectionDefinition{
			East:  {MapID: "b"},
			South: {MapID: "c"},
		}),
		rectMap("b", 4, 4, nil),
		rectMap("c", 4, 4, map[Direction]ConnectionDefinition{North: {MapID: "a", Offset: 1}}),
	)
	l.LoadMap("a")
	assert.Empty(t, warnings(hook))
}

func TestLoadMapConnectionDepth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConnectionDepth = 1
	l, _, _ := newTestLoader(t, cfg,
		rectMap("a", 4, 4, map[Direction]ConnectionDefinition{East: {MapID: "b"}}),
		rectMap("b", 4, 4, map[Direction]ConnectionDefinition{East: {MapID: "c"}}),
		rectMap("c", 4, 4, nil),
	)
	l.LoadMap("a")
	assert.Equal(t, []string{"a", "b"}, l.LoadedMaps())

	l.LoadMapAt("c", TilePoint{X: 8})
	assert.True(t, l.IsLoaded("c"))
}

func TestLoadMapUnknownDirection(t *testing.T) {
	l, _, hook := newTestLoader(t, DefaultConfig(),
		rectMap("a", 4, 4, map[Direction]ConnectionDefinition{DirectionUnknown: {MapID: "b"}}),
		rectMap("b", 4, 4, nil),
	)
	l.LoadMapAt("a", TilePoint{X: 2, Y: 3})
	pos, ok := l.Position("b")
	require.True(t, ok)
	assert.Equal(t, TilePoint{X: 2, Y: 3}, pos)
	assert.Len(t, warnings(hook), 1)
}

func TestUnloadMapRemovesEntities(t *testing.T) {
	l, world, _ := newTestLoader(t, DefaultConfig(),
		rectMap("a", 40, 40, map[Direction]ConnectionDefinition{North: {MapID: "b"}}),
		rectMap("b", 4, 4, nil),
	)
	l.LoadMap("a")
	info, _ := l.Map("a")
	require.Len(t, info.Chunks, 9)

	l.UnloadMap("a")
	for _, e := range info.Chunks {
		assert.False(t, world.Valid(e))
	}
	for _, e := range info.Connections {
		assert.False(t, world.Valid(e))
	}
	assert.Equal(t, 1, chunkQuery.Count(world), "only b's chunk remains")
	assert.Zero(t, connectionQuery.Count(world))

	l.UnloadMap("a") // no-op
	l.UnloadAll()
	assert.Zero(t, mapQuery.Count(world))
	assert.Zero(t, chunkQuery.Count(world))
}

func TestLoaderEvents(t *testing.T) {
	l, world, _ := newTestLoader(t, DefaultConfig(),
		rectMap("a", 4, 4, map[Direction]ConnectionDefinition{South: {MapID: "b"}}),
		rectMap("b", 4, 4, nil),
	)
	var loaded []MapLoaded
	var unloaded []string
	MapLoadedEvent.Subscribe(world, func(_ donburi.World, ev MapLoaded) { loaded = append(loaded, ev) })
	MapUnloadedEvent.Subscribe(world, func(_ donburi.World, ev MapUnloaded) { unloaded = append(unloaded, ev.MapID) })

	l.LoadMap("a")
	l.UnloadMap("b")
	events.ProcessAllEvents(world)

	require.Len(t, loaded, 2)
	assert.Equal(t, MapLoaded{MapID: "a", Origin: TilePoint{}, Chunks: 1}, loaded[0])
	assert.Equal(t, "b", loaded[1].MapID)
	assert.Equal(t, TilePoint{X: 0, Y: 4}, loaded[1].Origin)
	assert.Equal(t, []string{"b"}, unloaded)
}

func TestMapAtAndWorldBounds(t *testing.T) {
	l, _, _ := newTestLoader(t, DefaultConfig(),
		rectMap("a", 4, 4, map[Direction]ConnectionDefinition{West: {MapID: "b"}}),
		rectMap("b", 2, 6, nil),
	)
	_, ok := l.WorldBounds()
	assert.False(t, ok)

	l.LoadMap("a")
	id, ok := l.MapAt(TilePoint{X: 3, Y: 3})
	assert.True(t, ok)
	assert.Equal(t, "a", id)
	id, _ = l.MapAt(TilePoint{X: -1, Y: 5})
	assert.Equal(t, "b", id)
	_, ok = l.MapAt(TilePoint{X: 10, Y: 10})
	assert.False(t, ok)

	b, ok := l.WorldBounds()
	require.True(t, ok)
	assert.Equal(t, Rect{X: -32, Y: 0, Width: 96, Height: 96}, b)
}

func TestLoaderAnimatedChunks(t *testing.T) {
	reg := NewMemoryRegistry()
	reg.AddTileset(TilesetDefinition{
		ID: "terrain", TextureID: "terrain.png", TileWidth: 16, TileHeight: 16, Columns: 4,
		Animations: map[uint32][]AnimFrame{0: {{TileID: 0, Duration: 100}, {TileID: 1, Duration: 100}}},
	})
	reg.AddMap(rectMap("a", 4, 4, nil))
	res, err := NewResources(reg, nil, CacheConfig{}, nil)
	require.NoError(t, err)
	defer res.Close()

	world := donburi.NewWorld()
	l := NewMapLoader(world, reg, LoaderOptions{Config: DefaultConfig(), Resources: res})
	l.LoadMap("a")

	assert.Equal(t, 1, animatedQuery.Count(world))
	animatedQuery.Each(world, func(entry *donburi.Entry) {
		assert.Len(t, AnimatedTilesComponent.Get(entry).States, 16)
		assert.True(t, TileChunkComponent.Get(entry).HasAnimatedTiles)
	})
}
