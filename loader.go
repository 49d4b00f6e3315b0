package meadow

import (
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/yohamta/donburi"
)

// CalculateConnectedMapPosition places a target map against the edge of a
// source map. Offsets shift the target along the shared edge. An unknown
// direction yields the source position.
func CalculateConnectedMapPosition(source TilePoint, sourceW, sourceH, targetW, targetH int, dir Direction, offset int) TilePoint {
	switch dir {
	case North:
		return TilePoint{X: source.X + offset, Y: source.Y - targetH}
	case South:
		return TilePoint{X: source.X + offset, Y: source.Y + sourceH}
	case East:
		return TilePoint{X: source.X + sourceW, Y: source.Y + offset}
	case West:
		return TilePoint{X: source.X - targetW, Y: source.Y + offset}
	default:
		return source
	}
}

// connectionOrder fixes the order connections are walked so recursive loads
// are deterministic.
var connectionOrder = [...]Direction{North, South, East, West}

// MapLoader owns the set of loaded maps and materializes their chunk and
// connection entities in a donburi world.
//
// LoadMap and UnloadMap belong to the update phase; they must not be called
// while a query over chunk, map or connection entities is iterating.
type MapLoader struct {
	world   donburi.World
	defs    DefinitionRegistry
	builder *ChunkBuilder
	cfg     Config
	log     *logrus.Entry
	metrics *Metrics

	loaded  map[string]donburi.Entity // map id -> MapInfo entity
	loading map[string]struct{}       // ids whose load is in progress
}

// LoaderOptions configures a MapLoader. Resources, Logger and Metrics may be
// nil; without Resources animated tiles are not detected.
type LoaderOptions struct {
	Config    Config
	Resources TileResources
	Logger    *logrus.Logger
	Metrics   *Metrics
}

// NewMapLoader creates a loader for world using definitions from defs.
func NewMapLoader(world donburi.World, defs DefinitionRegistry, opts LoaderOptions) *MapLoader {
	cfg := opts.Config
	if cfg.ChunkSize == 0 {
		cfg = DefaultConfig()
	}
	return &MapLoader{
		world:   world,
		defs:    defs,
		builder: NewChunkBuilder(cfg.ChunkSize, opts.Resources, opts.Logger, opts.Metrics),
		cfg:     cfg,
		log:     componentLog(opts.Logger, "loader"),
		metrics: opts.Metrics,
		loaded:  make(map[string]donburi.Entity),
		loading: make(map[string]struct{}),
	}
}

// LoadMap loads mapID at the tile origin, then its connected maps.
func (l *MapLoader) LoadMap(mapID string) {
	l.LoadMapAt(mapID, TilePoint{})
}

// LoadMapAt loads mapID with its top-left tile at pos, then recursively
// loads every connected map not yet loaded. Loading a loaded map is a no-op;
// a missing definition logs a warning and aborts this call only.
func (l *MapLoader) LoadMapAt(mapID string, pos TilePoint) {
	l.load(mapID, pos, 0)
}

func (l *MapLoader) load(mapID string, pos TilePoint, depth int) {
	if _, ok := l.loaded[mapID]; ok {
		return
	}
	if _, ok := l.loading[mapID]; ok {
		return
	}
	def, ok := l.defs.MapDefinition(mapID)
	if !ok {
		l.log.WithField("map", mapID).WithError(ErrMapNotFound).Warn("skipping load")
		return
	}

	l.loading[mapID] = struct{}{}
	defer delete(l.loading, mapID)

	info := l.register(def, pos)
	l.log.WithFields(logrus.Fields{
		"map": mapID, "x": pos.X, "y": pos.Y, "chunks": len(info.Chunks),
	}).Info("map loaded")
	MapLoadedEvent.Publish(l.world, MapLoaded{MapID: mapID, Origin: pos, Chunks: len(info.Chunks)})

	if l.cfg.ConnectionDepth > 0 && depth >= l.cfg.ConnectionDepth {
		return
	}
	for _, dir := range connectionOrder {
		conn, ok := def.Connections[dir]
		if !ok || conn.MapID == "" {
			continue
		}
		l.loadNeighbour(def, pos, dir, conn, depth+1)
	}
	for dir, conn := range def.Connections {
		if dir == DirectionUnknown && conn.MapID != "" {
			l.loadNeighbour(def, pos, dir, conn, depth+1)
		}
	}
}

func (l *MapLoader) loadNeighbour(source *MapDefinition, sourcePos TilePoint, dir Direction, conn ConnectionDefinition, depth int) {
	target, ok := l.defs.MapDefinition(conn.MapID)
	if !ok {
		l.log.WithFields(logrus.Fields{
			"map": source.ID, "target": conn.MapID, "direction": dir.String(),
		}).WithError(ErrMapNotFound).Warn("skipping connected map")
		return
	}
	if dir == DirectionUnknown {
		l.log.WithFields(logrus.Fields{
			"map": source.ID, "target": conn.MapID,
		}).Warn("connection has unknown direction, placing target at source position")
	}
	want := CalculateConnectedMapPosition(sourcePos, source.Width, source.Height,
		target.Width, target.Height, dir, conn.Offset)

	if e, loaded := l.loaded[conn.MapID]; loaded {
		have := MapInfoComponent.Get(l.world.Entry(e)).Origin
		if abs(have.X-want.X) > l.cfg.PositionTolerance || abs(have.Y-want.Y) > l.cfg.PositionTolerance {
			l.log.WithFields(logrus.Fields{
				"map": conn.MapID, "from": source.ID,
				"x": have.X, "y": have.Y, "expected_x": want.X, "expected_y": want.Y,
			}).Warn("connected map already loaded at a different position")
		}
		return
	}
	l.load(conn.MapID, want, depth)
}

// register creates the map, chunk and connection entities for def.
func (l *MapLoader) register(def *MapDefinition, pos TilePoint) *MapInfo {
	mapEntity := l.world.Create(MapInfoComponent)
	info := &MapInfo{
		MapID:      def.ID,
		Origin:     pos,
		Width:      def.Width,
		Height:     def.Height,
		TileWidth:  def.TileWidth,
		TileHeight: def.TileHeight,
	}

	resolver := NewTilesetResolver(def.Tilesets)
	for i := range def.Layers {
		for _, rec := range l.builder.BuildLayer(def, i, resolver, pos) {
			info.Chunks = append(info.Chunks, l.createChunk(rec))
		}
	}

	for _, dir := range connectionOrder {
		if conn, ok := def.Connections[dir]; ok {
			info.Connections = append(info.Connections, l.createConnection(def.ID, dir, conn))
		}
	}
	if conn, ok := def.Connections[DirectionUnknown]; ok {
		info.Connections = append(info.Connections, l.createConnection(def.ID, DirectionUnknown, conn))
	}

	MapInfoComponent.SetValue(l.world.Entry(mapEntity), *info)
	l.loaded[def.ID] = mapEntity
	l.metrics.mapLoaded(len(info.Chunks))
	return MapInfoComponent.Get(l.world.Entry(mapEntity))
}

func (l *MapLoader) createChunk(rec ChunkRecord) donburi.Entity {
	if rec.Animated == nil {
		e := l.world.Create(TileChunkComponent)
		TileChunkComponent.SetValue(l.world.Entry(e), rec.Chunk)
		return e
	}
	e := l.world.Create(TileChunkComponent, AnimatedTilesComponent)
	entry := l.world.Entry(e)
	TileChunkComponent.SetValue(entry, rec.Chunk)
	AnimatedTilesComponent.SetValue(entry, AnimatedTiles{States: rec.Animated})
	return e
}

func (l *MapLoader) createConnection(mapID string, dir Direction, conn ConnectionDefinition) donburi.Entity {
	e := l.world.Create(ConnectionComponent)
	ConnectionComponent.SetValue(l.world.Entry(e), MapConnection{
		SourceMapID: mapID,
		Direction:   dir,
		TargetMapID: conn.MapID,
		Offset:      conn.Offset,
	})
	return e
}

// UnloadMap destroys a map's chunks, then its connections, then the map
// entity. Unloading a map that is not loaded is a no-op. Connected maps stay
// loaded.
func (l *MapLoader) UnloadMap(mapID string) {
	e, ok := l.loaded[mapID]
	if !ok {
		return
	}
	delete(l.loaded, mapID)

	info := MapInfoComponent.GetValue(l.world.Entry(e))
	for _, c := range info.Chunks {
		if l.world.Valid(c) {
			l.world.Remove(c)
		}
	}
	for _, c := range info.Connections {
		if l.world.Valid(c) {
			l.world.Remove(c)
		}
	}
	l.world.Remove(e)

	l.metrics.mapUnloaded(len(info.Chunks))
	l.log.WithFields(logrus.Fields{"map": mapID, "chunks": len(info.Chunks)}).Info("map unloaded")
	MapUnloadedEvent.Publish(l.world, MapUnloaded{MapID: mapID})
}

// UnloadAll unloads every loaded map.
func (l *MapLoader) UnloadAll() {
	for _, id := range l.LoadedMaps() {
		l.UnloadMap(id)
	}
}

// IsLoaded reports whether mapID is loaded.
func (l *MapLoader) IsLoaded(mapID string) bool {
	_, ok := l.loaded[mapID]
	return ok
}

// Map returns the loaded-map record for mapID.
func (l *MapLoader) Map(mapID string) (MapInfo, bool) {
	e, ok := l.loaded[mapID]
	if !ok {
		return MapInfo{}, false
	}
	return MapInfoComponent.GetValue(l.world.Entry(e)), true
}

// Position returns the tile-space origin of a loaded map.
func (l *MapLoader) Position(mapID string) (TilePoint, bool) {
	info, ok := l.Map(mapID)
	return info.Origin, ok
}

// LoadedMaps returns the ids of all loaded maps in sorted order.
func (l *MapLoader) LoadedMaps() []string {
	ids := make([]string, 0, len(l.loaded))
	for id := range l.loaded {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MapAt returns the loaded map covering world tile p. When maps overlap the
// lexically smallest id wins so the answer is stable.
func (l *MapLoader) MapAt(p TilePoint) (string, bool) {
	found := ""
	mapQuery.Each(l.world, func(entry *donburi.Entry) {
		info := MapInfoComponent.Get(entry)
		if info.TileBounds().Contains(p) && (found == "" || info.MapID < found) {
			found = info.MapID
		}
	})
	return found, found != ""
}

// Connections returns the connection records owned by a loaded map.
func (l *MapLoader) Connections(mapID string) []MapConnection {
	info, ok := l.Map(mapID)
	if !ok {
		return nil
	}
	out := make([]MapConnection, 0, len(info.Connections))
	for _, e := range info.Connections {
		if l.world.Valid(e) {
			out = append(out, ConnectionComponent.GetValue(l.world.Entry(e)))
		}
	}
	return out
}

// HasConnection reports whether a loaded map has a connection leaving in dir.
func (l *MapLoader) HasConnection(mapID string, dir Direction) bool {
	for _, c := range l.Connections(mapID) {
		if c.Direction == dir {
			return true
		}
	}
	return false
}

// ConnectionsInto returns the connection records of loaded maps that point
// at targetID, sorted by source map id.
func (l *MapLoader) ConnectionsInto(targetID string) []MapConnection {
	var out []MapConnection
	connectionQuery.Each(l.world, func(entry *donburi.Entry) {
		c := ConnectionComponent.Get(entry)
		if c.TargetMapID == targetID {
			out = append(out, *c)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceMapID != out[j].SourceMapID {
			return out[i].SourceMapID < out[j].SourceMapID
		}
		return out[i].Direction < out[j].Direction
	})
	return out
}

// WorldBounds returns the pixel rectangle covering every loaded map.
func (l *MapLoader) WorldBounds() (Rect, bool) {
	var r Rect
	first := true
	mapQuery.Each(l.world, func(entry *donburi.Entry) {
		b := MapInfoComponent.Get(entry).PixelBounds()
		if first {
			r = b
			first = false
			return
		}
		r = rectUnion(r, b)
	})
	return r, !first
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
