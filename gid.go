package meadow

import "sort"

// GID flag bits (same convention as Tiled TMX format).
const (
	tileFlipH    uint32 = 1 << 31 // horizontal flip
	tileFlipV    uint32 = 1 << 30 // vertical flip
	tileFlipD    uint32 = 1 << 29 // diagonal flip (90° rotation)
	tileFlagMask uint32 = tileFlipH | tileFlipV | tileFlipD
)

// StripFlags returns the logical GID with flip bits removed.
func StripFlags(gid uint32) uint32 {
	return gid &^ tileFlagMask
}

// FlipFlags returns only the flip bits of a raw GID.
func FlipFlags(gid uint32) uint32 {
	return gid & tileFlagMask
}

// TilesetResolver maps GIDs to the tileset that owns them. References are
// kept sorted by descending FirstGID so the first reference whose FirstGID
// is <= gid is the owner.
type TilesetResolver struct {
	refs []TilesetReference
}

// NewTilesetResolver copies and sorts refs.
func NewTilesetResolver(refs []TilesetReference) *TilesetResolver {
	sorted := make([]TilesetReference, len(refs))
	copy(sorted, refs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FirstGID > sorted[j].FirstGID
	})
	return &TilesetResolver{refs: sorted}
}

// Resolve returns the tileset reference owning gid. Flip bits are ignored.
// The empty GID 0 never resolves.
func (r *TilesetResolver) Resolve(gid uint32) (TilesetReference, bool) {
	gid = StripFlags(gid)
	if gid == 0 || r == nil {
		return TilesetReference{}, false
	}
	for _, ref := range r.refs {
		if ref.FirstGID <= gid {
			return ref, true
		}
	}
	return TilesetReference{}, false
}

// LocalID returns the tileset-local id of gid and its owning reference.
func (r *TilesetResolver) LocalID(gid uint32) (uint32, TilesetReference, bool) {
	ref, ok := r.Resolve(gid)
	if !ok {
		return 0, ref, false
	}
	return StripFlags(gid) - ref.FirstGID, ref, true
}

// Lowest returns the reference with the smallest FirstGID.
func (r *TilesetResolver) Lowest() (TilesetReference, bool) {
	if r == nil || len(r.refs) == 0 {
		return TilesetReference{}, false
	}
	return r.refs[len(r.refs)-1], true
}

// References returns the sorted references. The slice must not be modified.
func (r *TilesetResolver) References() []TilesetReference {
	return r.refs
}
