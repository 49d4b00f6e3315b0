package meadow

import (
	"github.com/sirupsen/logrus"
)

// ChunkRecord is the builder's output for one chunk: the chunk data plus its
// animated tile table (nil when the chunk has no animated tiles).
type ChunkRecord struct {
	Chunk    TileChunk
	Animated map[int]*TileAnimationState
}

// ChunkBuilder partitions layer tile data into chunks.
type ChunkBuilder struct {
	// ChunkSize is the chunk edge length in tiles.
	ChunkSize int

	// Animations looks up tile animations. Nil disables animated-tile
	// detection.
	Animations func(tilesetID string, localTileID uint32) ([]AnimFrame, bool)

	log     *logrus.Entry
	metrics *Metrics
}

// NewChunkBuilder creates a builder. resources may be nil.
func NewChunkBuilder(chunkSize int, resources TileResources, logger *logrus.Logger, metrics *Metrics) *ChunkBuilder {
	if chunkSize <= 0 {
		chunkSize = DefaultConfig().ChunkSize
	}
	b := &ChunkBuilder{
		ChunkSize: chunkSize,
		log:       componentLog(logger, "chunks"),
		metrics:   metrics,
	}
	if resources != nil {
		b.Animations = resources.TileAnimation
	}
	return b
}

// ChunkGrid returns the number of chunk columns and rows for a layer.
func ChunkGrid(width, height, chunkSize int) (cols, rows int) {
	if width <= 0 || height <= 0 || chunkSize <= 0 {
		return 0, 0
	}
	return (width + chunkSize - 1) / chunkSize, (height + chunkSize - 1) / chunkSize
}

// BuildLayer turns one layer of def into chunk records. Invisible, empty and
// undecodable layers yield no chunks and a warning; they never fail the map.
// origin is the map's tile-space position.
func (b *ChunkBuilder) BuildLayer(def *MapDefinition, layerIndex int, resolver *TilesetResolver, origin TilePoint) []ChunkRecord {
	layer := &def.Layers[layerIndex]
	fields := logrus.Fields{"map": def.ID, "layer": layer.ID}

	if !layer.Visible {
		b.log.WithFields(fields).Debug("skipping invisible layer")
		b.metrics.layerSkipped()
		return nil
	}
	gids, err := DecodeLayer(layer)
	if err != nil {
		b.log.WithFields(fields).WithError(err).Warn("skipping layer")
		b.metrics.layerSkipped()
		return nil
	}

	size := b.ChunkSize
	cols, rows := ChunkGrid(layer.Width, layer.Height, size)
	records := make([]ChunkRecord, 0, cols*rows)

	for cy := 0; cy < rows; cy++ {
		for cx := 0; cx < cols; cx++ {
			startX := cx * size
			startY := cy * size
			w := min(size, layer.Width-startX)
			h := min(size, layer.Height-startY)

			tiles := make([]uint32, w*h)
			for y := 0; y < h; y++ {
				src := (startY+y)*layer.Width + startX
				copy(tiles[y*w:(y+1)*w], gids[src:src+w])
			}

			rec := ChunkRecord{Chunk: TileChunk{
				MapID:      def.ID,
				LayerID:    layer.ID,
				LayerIndex: layerIndex,
				ChunkX:     cx,
				ChunkY:     cy,
				TileX:      startX,
				TileY:      startY,
				Width:      w,
				Height:     h,
				Tiles:      tiles,
				Tilesets:   resolver,
				TileWidth:  def.TileWidth,
				TileHeight: def.TileHeight,
				Position: Vec2{
					X: float64((origin.X+startX)*def.TileWidth + layer.OffsetX),
					Y: float64((origin.Y+startY)*def.TileHeight + layer.OffsetY),
				},
				Opacity: layer.Opacity,
				Visible: true,
			}}
			b.resolveChunk(&rec)
			records = append(records, rec)
		}
	}
	return records
}

// resolveChunk picks the chunk's default tileset and collects animated tiles.
func (b *ChunkBuilder) resolveChunk(rec *ChunkRecord) {
	c := &rec.Chunk
	haveDefault := false
	for i, raw := range c.Tiles {
		if raw == 0 {
			continue
		}
		local, ref, ok := c.Tilesets.LocalID(raw)
		if !ok {
			continue
		}
		if !haveDefault {
			c.TilesetID = ref.TilesetID
			c.FirstGID = ref.FirstGID
			haveDefault = true
		}
		if b.Animations == nil {
			continue
		}
		if frames, ok := b.Animations(ref.TilesetID, local); ok && len(frames) > 0 {
			if rec.Animated == nil {
				rec.Animated = make(map[int]*TileAnimationState)
			}
			rec.Animated[i] = &TileAnimationState{
				TilesetID:   ref.TilesetID,
				LocalTileID: local,
			}
		}
	}
	if !haveDefault {
		if ref, ok := c.Tilesets.Lowest(); ok {
			c.TilesetID = ref.TilesetID
			c.FirstGID = ref.FirstGID
		}
	}
	c.HasAnimatedTiles = len(rec.Animated) > 0
}
