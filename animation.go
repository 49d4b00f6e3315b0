package meadow

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
	"github.com/yohamta/donburi"
)

// --- Animated tiles ---

// TileAnimator advances the frame of every animated tile in the world.
type TileAnimator struct {
	world     donburi.World
	resources TileResources
	carry     float64 // milliseconds not yet applied
}

// NewTileAnimator creates an animator that reads frame lists from resources.
func NewTileAnimator(world donburi.World, resources TileResources) *TileAnimator {
	return &TileAnimator{world: world, resources: resources}
}

// Update advances animations by dt seconds. Frames wrap; a frame with a
// non-positive duration is shown for one update.
func (a *TileAnimator) Update(dt float64) {
	if a.resources == nil {
		return
	}
	if dt <= 0 {
		return
	}
	a.carry += dt * 1000
	ms := int(a.carry + 1e-6)
	if ms <= 0 {
		return
	}
	a.carry -= float64(ms)
	animatedQuery.Each(a.world, func(entry *donburi.Entry) {
		for _, st := range AnimatedTilesComponent.Get(entry).States {
			frames, ok := a.resources.TileAnimation(st.TilesetID, st.LocalTileID)
			if !ok {
				continue
			}
			advanceFrame(st, frames, ms)
		}
	})
}

// advanceFrame moves st forward by ms milliseconds through frames.
func advanceFrame(st *TileAnimationState, frames []AnimFrame, ms int) {
	total := 0
	for _, f := range frames {
		total += max(f.Duration, 0)
	}
	if st.FrameIndex >= len(frames) {
		st.FrameIndex = 0
	}
	if total == 0 {
		st.FrameIndex = (st.FrameIndex + 1) % len(frames)
		st.Elapsed = 0
		return
	}
	st.Elapsed += ms % total
	for {
		d := frames[st.FrameIndex].Duration
		if d <= 0 {
			st.FrameIndex = (st.FrameIndex + 1) % len(frames)
			continue
		}
		if st.Elapsed < d {
			return
		}
		st.Elapsed -= d
		st.FrameIndex = (st.FrameIndex + 1) % len(frames)
	}
}

// currentFrameTile returns the local tile id shown by st.
func currentFrameTile(st *TileAnimationState, frames []AnimFrame) uint32 {
	if st.FrameIndex < 0 || st.FrameIndex >= len(frames) {
		return st.LocalTileID
	}
	return frames[st.FrameIndex].TileID
}

// --- Sprite and shader tweens ---

// TweenGroup animates up to 4 float64 fields of a component simultaneously.
// Create one via the convenience constructors and call Update(dt) each
// frame. If the target entity is removed, the group stops immediately.
//
// There is no global animation manager; callers Update groups themselves.
type TweenGroup struct {
	tweens [4]*gween.Tween
	count  int
	apply  func(entry *donburi.Entry, vals [4]float64)
	world  donburi.World
	target donburi.Entity
	Done   bool
}

// Update advances all tweens by dt seconds and writes the values to the
// target entity.
func (g *TweenGroup) Update(dt float32) {
	if g.Done {
		return
	}
	if !g.world.Valid(g.target) {
		g.Done = true
		return
	}

	var vals [4]float64
	allDone := true
	for i := 0; i < g.count; i++ {
		val, finished := g.tweens[i].Update(dt)
		vals[i] = float64(val)
		if !finished {
			allDone = false
		}
	}
	g.Done = allDone
	g.apply(g.world.Entry(g.target), vals)
}

// TweenSpritePosition animates a sprite's X and Y to the given world pixels.
func TweenSpritePosition(world donburi.World, e donburi.Entity, toX, toY float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	s := SpriteComponent.Get(world.Entry(e))
	g := &TweenGroup{count: 2, world: world, target: e}
	g.tweens[0] = gween.New(float32(s.X), float32(toX), duration, fn)
	g.tweens[1] = gween.New(float32(s.Y), float32(toY), duration, fn)
	g.apply = func(entry *donburi.Entry, v [4]float64) {
		s := SpriteComponent.Get(entry)
		s.X, s.Y = v[0], v[1]
	}
	return g
}

// TweenSpriteOpacity animates a sprite's opacity.
func TweenSpriteOpacity(world donburi.World, e donburi.Entity, to float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	s := SpriteComponent.Get(world.Entry(e))
	g := &TweenGroup{count: 1, world: world, target: e}
	g.tweens[0] = gween.New(float32(s.Opacity), float32(to), duration, fn)
	g.apply = func(entry *donburi.Entry, v [4]float64) {
		SpriteComponent.Get(entry).Opacity = v[0]
	}
	return g
}

// TweenShaderParameter animates a float parameter override on a LayerShader
// entity. A missing override starts from from.
func TweenShaderParameter(world donburi.World, e donburi.Entity, name string, from, to float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	ls := LayerShaderComponent.Get(world.Entry(e))
	if v, ok := ls.Parameters[name].(float64); ok {
		from = v
	}
	g := &TweenGroup{count: 1, world: world, target: e}
	g.tweens[0] = gween.New(float32(from), float32(to), duration, fn)
	g.apply = func(entry *donburi.Entry, v [4]float64) {
		ls := LayerShaderComponent.Get(entry)
		if ls.Parameters == nil {
			ls.Parameters = make(map[string]any)
		}
		ls.Parameters[name] = v[0]
	}
	return g
}
