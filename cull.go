package meadow

// ViewBounds returns the world-pixel rectangle used for culling: the camera's
// tile view expanded by margin tiles on every side, scaled by the camera
// tile size.
func ViewBounds(cam CameraView, margin int) Rect {
	r := cam.TileBounds.Expand(margin)
	tw := float64(cam.TileWidth)
	th := float64(cam.TileHeight)
	return Rect{
		X:      float64(r.X) * tw,
		Y:      float64(r.Y) * th,
		Width:  float64(r.Width) * tw,
		Height: float64(r.Height) * th,
	}
}

// VisibleSet collects the items of one frame that survive culling and sorts
// them. Buffers are kept across frames; after warmup Reset, Offer and Sort do
// not allocate.
type VisibleSet[T any] struct {
	items []T
	buf   []T

	// lessOrEqual reports whether a sorts before or at the same position
	// as b. Returning true on ties keeps the sort stable.
	lessOrEqual func(a, b *T) bool

	culled int
}

// NewVisibleSet creates a set ordered by lessOrEqual.
func NewVisibleSet[T any](lessOrEqual func(a, b *T) bool) *VisibleSet[T] {
	return &VisibleSet[T]{lessOrEqual: lessOrEqual}
}

// Reset empties the set, keeping its buffers.
func (s *VisibleSet[T]) Reset() {
	clear(s.items)
	s.items = s.items[:0]
	s.culled = 0
}

// Offer adds v when bounds intersects view. Edge contact counts as
// intersecting. It reports whether v was kept.
func (s *VisibleSet[T]) Offer(bounds, view Rect, v T) bool {
	if !bounds.Intersects(view) {
		s.culled++
		return false
	}
	s.items = append(s.items, v)
	return true
}

// Len returns the number of kept items.
func (s *VisibleSet[T]) Len() int { return len(s.items) }

// Culled returns the number of items rejected since the last Reset.
func (s *VisibleSet[T]) Culled() int { return s.culled }

// Items returns the kept items. The slice is reused by the next Reset.
func (s *VisibleSet[T]) Items() []T { return s.items }

// Sort orders the kept items with a bottom-up merge sort using the scratch
// buffer. Zero allocations once the buffer reaches its high-water mark.
func (s *VisibleSet[T]) Sort() {
	n := len(s.items)
	if n <= 1 {
		return
	}
	if cap(s.buf) < n {
		s.buf = make([]T, n)
	}
	s.buf = s.buf[:n]

	a := s.items
	b := s.buf
	swapped := false

	for width := 1; width < n; width *= 2 {
		for i := 0; i < n; i += 2 * width {
			lo := i
			mid := min(lo+width, n)
			hi := min(lo+2*width, n)
			s.mergeRun(a, b, lo, mid, hi)
		}
		a, b = b, a
		swapped = !swapped
	}

	if swapped {
		copy(s.items, s.buf)
	}
}

// mergeRun merges two sorted runs [lo, mid) and [mid, hi) from src into dst.
func (s *VisibleSet[T]) mergeRun(src, dst []T, lo, mid, hi int) {
	i, j, k := lo, mid, lo
	for i < mid && j < hi {
		if s.lessOrEqual(&src[i], &src[j]) {
			dst[k] = src[i]
			i++
		} else {
			dst[k] = src[j]
			j++
		}
		k++
	}
	k += copy(dst[k:], src[i:mid])
	copy(dst[k:], src[j:hi])
}

// visibleChunk is a chunk selected for drawing this frame. The pointers refer
// to component storage and are only valid until the next structural change.
type visibleChunk struct {
	chunk *TileChunk
	anim  *AnimatedTiles
}

func chunkLessOrEqual(a, b *visibleChunk) bool {
	if a.chunk.LayerIndex != b.chunk.LayerIndex {
		return a.chunk.LayerIndex < b.chunk.LayerIndex
	}
	return a.chunk.LayerID <= b.chunk.LayerID
}

// visibleSprite is a sprite selected for drawing this frame.
type visibleSprite struct {
	sprite *Sprite
	w, h   float64
}

func spriteLessOrEqual(a, b *visibleSprite) bool {
	return a.sprite.RenderOrder <= b.sprite.RenderOrder
}

// tileSize resolves the pixel size of a tileset's tiles. It falls back to the
// map tile size, then to the configured default.
func tileSize(resources TileResources, tilesetID string, mapW, mapH int, cfg *Config) (int, int) {
	if resources != nil && tilesetID != "" {
		if ts, err := resources.Tileset(tilesetID); err == nil && ts.TileWidth > 0 && ts.TileHeight > 0 {
			return ts.TileWidth, ts.TileHeight
		}
	}
	if mapW > 0 && mapH > 0 {
		return mapW, mapH
	}
	return cfg.DefaultTileWidth, cfg.DefaultTileHeight
}

// chunkBounds returns a chunk's world-pixel rectangle.
func chunkBounds(c *TileChunk, resources TileResources, cfg *Config) Rect {
	tw, th := tileSize(resources, c.TilesetID, c.TileWidth, c.TileHeight, cfg)
	return Rect{
		X:      c.Position.X,
		Y:      c.Position.Y,
		Width:  float64(c.Width * tw),
		Height: float64(c.Height * th),
	}
}
