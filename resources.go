package meadow

import (
	"fmt"
	"image"
	_ "image/png" // decoder for FSTextureSource
	"io/fs"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/sirupsen/logrus"
)

// TextureSource loads texture images by id.
type TextureSource interface {
	Texture(id string) (*ebiten.Image, error)
}

// TextureSourceFunc adapts a function to TextureSource.
type TextureSourceFunc func(id string) (*ebiten.Image, error)

// Texture calls f(id).
func (f TextureSourceFunc) Texture(id string) (*ebiten.Image, error) { return f(id) }

// FSTextureSource decodes images from a file system. The texture id is the
// path inside FS.
type FSTextureSource struct {
	FS fs.FS
}

// Texture decodes the image at path id.
func (s FSTextureSource) Texture(id string) (*ebiten.Image, error) {
	img, _, err := ebitenutil.NewImageFromFileSystem(s.FS, id)
	if err != nil {
		return nil, fmt.Errorf("meadow: texture %q: %w", id, err)
	}
	return img, nil
}

// Resources implements TileResources over a definition registry and a
// texture source. Loaded textures are kept in a ristretto cache; an evicted
// texture is simply loaded again on next use.
type Resources struct {
	defs     DefinitionRegistry
	source   TextureSource
	textures *ristretto.Cache[string, *ebiten.Image]
	log      *logrus.Entry
}

// NewResources creates a resource provider. source may be nil, in which case
// every texture lookup fails with ErrTextureNotFound.
func NewResources(defs DefinitionRegistry, source TextureSource, cfg CacheConfig, logger *logrus.Logger) (*Resources, error) {
	maxCost := cfg.TextureMaxCost
	if maxCost <= 0 {
		maxCost = DefaultConfig().Cache.TextureMaxCost
	}
	counters := cfg.TextureCounters
	if counters <= 0 {
		counters = maxCost * 10
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, *ebiten.Image]{
		NumCounters:        counters,
		MaxCost:            maxCost,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("meadow: texture cache: %w", err)
	}
	return &Resources{
		defs:     defs,
		source:   source,
		textures: cache,
		log:      componentLog(logger, "resources"),
	}, nil
}

// Close stops the texture cache.
func (r *Resources) Close() {
	r.textures.Close()
}

// LoadTexture returns the texture for id, loading it through the source on
// a cache miss. Each texture costs one unit of the cache budget.
func (r *Resources) LoadTexture(id string) (*ebiten.Image, error) {
	if img, ok := r.textures.Get(id); ok && img != nil {
		return img, nil
	}
	if r.source == nil {
		return nil, fmt.Errorf("meadow: texture %q: %w", id, ErrTextureNotFound)
	}
	img, err := r.source.Texture(id)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, fmt.Errorf("meadow: texture %q: %w", id, ErrTextureNotFound)
	}
	if !r.textures.Set(id, img, 1) {
		r.log.WithField("texture", id).Debug("texture cache rejected entry")
	}
	r.textures.Wait()
	return img, nil
}

// Tileset returns layout information for a tileset.
func (r *Resources) Tileset(id string) (TilesetInfo, error) {
	ts, err := r.tileset(id)
	if err != nil {
		return TilesetInfo{}, err
	}
	return TilesetInfo{TextureID: ts.TextureID, TileWidth: ts.TileWidth, TileHeight: ts.TileHeight}, nil
}

func (r *Resources) tileset(id string) (*TilesetDefinition, error) {
	if r.defs == nil {
		return nil, fmt.Errorf("meadow: tileset %q: %w", id, ErrTilesetNotFound)
	}
	ts, ok := r.defs.TilesetDefinition(id)
	if !ok {
		return nil, fmt.Errorf("meadow: tileset %q: %w", id, ErrTilesetNotFound)
	}
	return ts, nil
}

// SourceRect returns the texture region of gid in a tileset whose first GID
// is firstGID. Flip flags in gid are ignored.
func (r *Resources) SourceRect(tilesetID string, gid, firstGID uint32) (image.Rectangle, error) {
	ts, err := r.tileset(tilesetID)
	if err != nil {
		return image.Rectangle{}, err
	}
	gid = StripFlags(gid)
	if gid < firstGID {
		return image.Rectangle{}, fmt.Errorf("meadow: tileset %q gid %d below first gid %d: %w",
			tilesetID, gid, firstGID, ErrTileOutOfRange)
	}
	local := int(gid - firstGID)
	if ts.TileCount > 0 && local >= ts.TileCount {
		return image.Rectangle{}, fmt.Errorf("meadow: tileset %q local id %d of %d: %w",
			tilesetID, local, ts.TileCount, ErrTileOutOfRange)
	}

	cols := ts.Columns
	if cols <= 0 {
		cols, err = r.columns(ts)
		if err != nil {
			return image.Rectangle{}, err
		}
	}
	x := ts.Margin + (local%cols)*(ts.TileWidth+ts.Spacing)
	y := ts.Margin + (local/cols)*(ts.TileHeight+ts.Spacing)
	return image.Rect(x, y, x+ts.TileWidth, y+ts.TileHeight), nil
}

// columns derives a tileset's column count from its texture width.
func (r *Resources) columns(ts *TilesetDefinition) (int, error) {
	img, err := r.LoadTexture(ts.TextureID)
	if err != nil {
		return 0, err
	}
	w := img.Bounds().Dx() - 2*ts.Margin + ts.Spacing
	cols := w / (ts.TileWidth + ts.Spacing)
	if cols <= 0 {
		return 0, fmt.Errorf("meadow: tileset %q texture too narrow: %w", ts.ID, ErrTileOutOfRange)
	}
	return cols, nil
}

// TileAnimation returns the animation frames of a local tile id.
func (r *Resources) TileAnimation(tilesetID string, localTileID uint32) ([]AnimFrame, bool) {
	ts, err := r.tileset(tilesetID)
	if err != nil || ts.Animations == nil {
		return nil, false
	}
	frames, ok := ts.Animations[localTileID]
	return frames, ok && len(frames) > 0
}
