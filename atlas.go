package meadow

import (
	"encoding/json"
	"fmt"
	"image"

	"github.com/hajimehoshi/ebiten/v2"
)

// AtlasRegion describes a named sub-rectangle within an atlas page.
type AtlasRegion struct {
	Page    int
	Frame   image.Rectangle // region within the page
	Rotated bool            // stored 90 degrees clockwise in the page
}

// Atlas is a TextureSource serving the named regions of TexturePacker atlas
// pages. Texture ids are region names.
type Atlas struct {
	Pages   []*ebiten.Image
	regions map[string]AtlasRegion

	// Fallback serves ids that are not region names.
	Fallback TextureSource
}

// LoadAtlas parses TexturePacker JSON and associates the given page images.
// Both the hash format (one "frames" object) and the multi-page array format
// ("textures" with per-page frame lists) are accepted.
func LoadAtlas(jsonData []byte, pages []*ebiten.Image) (*Atlas, error) {
	var probe struct {
		Frames   json.RawMessage `json:"frames"`
		Textures json.RawMessage `json:"textures"`
	}
	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("meadow: parse atlas: %w", err)
	}

	a := &Atlas{Pages: pages, regions: make(map[string]AtlasRegion)}
	switch {
	case probe.Textures != nil:
		var textures []struct {
			Image  string               `json:"image"`
			Frames map[string]atlasFrame `json:"frames"`
		}
		if err := json.Unmarshal(probe.Textures, &textures); err != nil {
			return nil, fmt.Errorf("meadow: parse atlas textures: %w", err)
		}
		for i, tex := range textures {
			for name, f := range tex.Frames {
				a.regions[name] = f.region(i)
			}
		}
	case probe.Frames != nil:
		var frames map[string]atlasFrame
		if err := json.Unmarshal(probe.Frames, &frames); err != nil {
			return nil, fmt.Errorf("meadow: parse atlas frames: %w", err)
		}
		for name, f := range frames {
			a.regions[name] = f.region(0)
		}
	default:
		return nil, fmt.Errorf("meadow: atlas JSON has neither \"frames\" nor \"textures\"")
	}
	return a, nil
}

type atlasFrame struct {
	Frame struct {
		X int `json:"x"`
		Y int `json:"y"`
		W int `json:"w"`
		H int `json:"h"`
	} `json:"frame"`
	Rotated bool `json:"rotated"`
}

func (f atlasFrame) region(page int) AtlasRegion {
	return AtlasRegion{
		Page:    page,
		Frame:   image.Rect(f.Frame.X, f.Frame.Y, f.Frame.X+f.Frame.W, f.Frame.Y+f.Frame.H),
		Rotated: f.Rotated,
	}
}

// Region returns the named region.
func (a *Atlas) Region(name string) (AtlasRegion, bool) {
	r, ok := a.regions[name]
	return r, ok
}

// Len returns the number of regions.
func (a *Atlas) Len() int { return len(a.regions) }

// Texture implements TextureSource. Rotated regions are not supported.
func (a *Atlas) Texture(id string) (*ebiten.Image, error) {
	r, ok := a.regions[id]
	if !ok {
		if a.Fallback != nil {
			return a.Fallback.Texture(id)
		}
		return nil, fmt.Errorf("meadow: atlas region %q: %w", id, ErrTextureNotFound)
	}
	if r.Rotated {
		return nil, fmt.Errorf("meadow: atlas region %q is rotated", id)
	}
	if r.Page < 0 || r.Page >= len(a.Pages) || a.Pages[r.Page] == nil {
		return nil, fmt.Errorf("meadow: atlas region %q: page %d of %d: %w", id, r.Page, len(a.Pages), ErrTextureNotFound)
	}
	return a.Pages[r.Page].SubImage(r.Frame).(*ebiten.Image), nil
}
