package meadow

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sirupsen/logrus"
	"github.com/yohamta/donburi"
)

// StackEntry is one pass of a layer shader stack.
type StackEntry struct {
	Entity      donburi.Entity // owning LayerShader entity
	ShaderID    string
	Effect      Effect
	BlendMode   BlendMode
	RenderOrder int
}

// ShaderStack is the ordered pass list of one render layer. Entries run
// bottom (index 0) to top.
type ShaderStack struct {
	Layer   ShaderLayer
	Entries []StackEntry
}

// Empty reports whether the stack has no passes.
func (s *ShaderStack) Empty() bool {
	return s == nil || len(s.Entries) == 0
}

// Direct reports whether the stack is a single Replace pass that needs no
// intermediate target.
func (s *ShaderStack) Direct() bool {
	return s != nil && len(s.Entries) == 1 && s.Entries[0].BlendMode == BlendReplace
}

// First returns a stack holding only the bottom entry as a Replace pass.
func (s *ShaderStack) First() ShaderStack {
	if s.Empty() {
		return ShaderStack{Layer: s.layer()}
	}
	e := s.Entries[0]
	e.BlendMode = BlendReplace
	return ShaderStack{Layer: s.Layer, Entries: []StackEntry{e}}
}

func (s *ShaderStack) layer() ShaderLayer {
	if s == nil {
		return CombinedLayer
	}
	return s.Layer
}

// ShaderEngineOptions configures a ShaderEngine. Only Shaders is required
// for shading; without it every stack is empty.
type ShaderEngineOptions struct {
	Shaders     ShaderProvider
	Definitions DefinitionRegistry
	Targets     RenderTargetPool
	Cameras     CameraProvider
	Logger      *logrus.Logger
	Metrics     *Metrics
}

// ShaderEngine resolves per-layer shader stacks from LayerShader entities
// and composites images through them.
type ShaderEngine struct {
	world   donburi.World
	shaders ShaderProvider
	targets RenderTargetPool
	cameras CameraProvider
	log     *logrus.Entry
	metrics *Metrics

	stacks [shaderLayerCount]ShaderStack
	dirty  [shaderLayerCount]bool
	params *paramTracker

	// dropped holds the entities the last rebuild of each layer could not
	// resolve.
	dropped [shaderLayerCount]map[donburi.Entity]struct{}

	// warned suppresses repeated warnings until the next rebuild request.
	warned map[string]struct{}

	backBuffer *ebiten.Image
	blitOp     ebiten.DrawImageOptions
}

// NewShaderEngine creates an engine for world. It subscribes to
// ShaderStackChanged so that attaching, detaching or toggling a LayerShader
// through the helpers marks the stacks dirty once events are processed.
func NewShaderEngine(world donburi.World, opts ShaderEngineOptions) *ShaderEngine {
	e := &ShaderEngine{
		world:   world,
		shaders: opts.Shaders,
		targets: opts.Targets,
		cameras: opts.Cameras,
		log:     componentLog(opts.Logger, "shaders"),
		metrics: opts.Metrics,
		params:  newParamTracker(opts.Definitions),
		warned:  make(map[string]struct{}),
	}
	for i := range e.stacks {
		e.stacks[i].Layer = ShaderLayer(i)
		e.dirty[i] = true
		e.dropped[i] = make(map[donburi.Entity]struct{})
	}
	ShaderStackChangedEvent.Subscribe(world, e.onStackChanged)
	return e
}

func (e *ShaderEngine) onStackChanged(_ donburi.World, ev ShaderStackChanged) {
	if ev.Layer < shaderLayerCount {
		e.dirty[ev.Layer] = true
		clear(e.warned)
		return
	}
	e.MarkShaderStateDirty()
}

// MarkShaderStateDirty forces every layer stack to be rebuilt on next use.
func (e *ShaderEngine) MarkShaderStateDirty() {
	for i := range e.dirty {
		e.dirty[i] = true
	}
	clear(e.warned)
}

// SetBackBuffer sets the image Apply draws to when given a nil target.
func (e *ShaderEngine) SetBackBuffer(img *ebiten.Image) {
	e.backBuffer = img
}

// Stack returns the current stack for layer, rebuilding it when dirty. An
// empty cached stack is rescanned when enabled LayerShader entities for the
// layer exist that the last rebuild did not drop, so that entities added
// without the helpers are picked up.
func (e *ShaderEngine) Stack(layer ShaderLayer) *ShaderStack {
	if layer >= shaderLayerCount {
		panic(fmt.Sprintf("meadow: unknown shader layer %d", layer))
	}
	s := &e.stacks[layer]
	if e.dirty[layer] || (len(s.Entries) == 0 && e.hasUnseen(layer)) {
		e.rebuild(layer)
	}
	return s
}

// hasUnseen reports whether an enabled LayerShader for layer exists that is
// not among the entities dropped by the last rebuild.
func (e *ShaderEngine) hasUnseen(layer ShaderLayer) bool {
	if layerShaderQuery.Count(e.world) == 0 {
		return false
	}
	found := false
	layerShaderQuery.Each(e.world, func(entry *donburi.Entry) {
		if found {
			return
		}
		ls := LayerShaderComponent.Get(entry)
		if !ls.Enabled || ls.Layer != layer {
			return
		}
		if _, ok := e.dropped[layer][entry.Entity()]; !ok {
			found = true
		}
	})
	return found
}

// rebuild collects enabled LayerShader entities for layer, sorts them by
// (RenderOrder, entity) and resolves their effects.
func (e *ShaderEngine) rebuild(layer ShaderLayer) {
	e.dirty[layer] = false
	clear(e.dropped[layer])
	s := &e.stacks[layer]
	for _, old := range s.Entries {
		e.params.forget(old.Entity)
	}
	s.Entries = s.Entries[:0]

	layerShaderQuery.Each(e.world, func(entry *donburi.Entry) {
		ls := LayerShaderComponent.Get(entry)
		if !ls.Enabled || ls.Layer != layer {
			return
		}
		s.Entries = append(s.Entries, StackEntry{
			Entity:      entry.Entity(),
			ShaderID:    ls.ShaderID,
			BlendMode:   ls.BlendMode,
			RenderOrder: ls.RenderOrder,
		})
	})
	sort.SliceStable(s.Entries, func(i, j int) bool {
		a, b := &s.Entries[i], &s.Entries[j]
		if a.RenderOrder != b.RenderOrder {
			return a.RenderOrder < b.RenderOrder
		}
		return a.Entity < b.Entity
	})

	kept := s.Entries[:0]
	for _, entry := range s.Entries {
		effect, err := e.resolve(entry.ShaderID)
		if err != nil {
			e.dropped[layer][entry.Entity] = struct{}{}
			e.metrics.shaderDropped()
			e.warnOnce("drop:"+entry.ShaderID, logrus.Fields{
				"layer": layer.String(), "shader": entry.ShaderID,
			}, err, "dropping shader from stack")
			continue
		}
		entry.Effect = effect
		kept = append(kept, entry)
	}
	clear(s.Entries[len(kept):])
	s.Entries = kept

	if len(s.Entries) > 0 {
		s.Entries[0].BlendMode = BlendReplace
	}
}

func (e *ShaderEngine) resolve(id string) (Effect, error) {
	if e.shaders == nil || !e.shaders.HasShader(id) {
		return nil, fmt.Errorf("meadow: shader %q: %w", id, ErrShaderNotFound)
	}
	effect, err := e.shaders.Effect(id)
	if err != nil {
		return nil, err
	}
	if effect == nil {
		return nil, fmt.Errorf("meadow: shader %q: no effect", id)
	}
	return effect, nil
}

func (e *ShaderEngine) warnOnce(key string, fields logrus.Fields, err error, msg string) {
	if _, ok := e.warned[key]; ok {
		return
	}
	e.warned[key] = struct{}{}
	l := e.log.WithFields(fields)
	if err != nil {
		l = l.WithError(err)
	}
	l.Warn(msg)
}

// Apply composites src into dst through stack. A nil dst draws to the back
// buffer.
//
// An empty stack copies src unshaded. A single Replace entry renders
// directly. Otherwise every pass but the last renders into the intermediate
// target for its index. A Replace pass shades the previous output; a blending
// pass shades src and blends it over the previous output, which it receives
// as PreviousTexture together with its BlendMode. A pass whose effect cannot
// blend runs as Replace. When an intermediate target
// cannot be obtained Apply returns an error wrapping ErrFallbackRequired and
// dst is left as it was before the failing pass; the caller decides how to
// degrade.
func (e *ShaderEngine) Apply(src, dst *ebiten.Image, stack *ShaderStack) error {
	if dst == nil {
		dst = e.backBuffer
	}
	if dst == nil {
		return fmt.Errorf("meadow: apply shader stack: no target and no back buffer")
	}
	if stack.Empty() {
		e.blit(src, dst)
		return nil
	}

	screen := e.screenSize(dst)
	if stack.Direct() {
		e.runPass(&stack.Entries[0], dst, src, nil, screen)
		return nil
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	var prev *ebiten.Image
	last := len(stack.Entries) - 1
	for i := range stack.Entries {
		entry := &stack.Entries[i]

		target := dst
		if i < last {
			t, err := e.renderTarget(i)
			if err != nil {
				return fmt.Errorf("meadow: %s stack pass %d (%s): %w: %w",
					stack.Layer, i, entry.ShaderID, ErrFallbackRequired, err)
			}
			target = region(t, w, h)
			target.Clear()
		}

		input, previous := src, prev
		if i == 0 || entry.BlendMode == BlendReplace || !e.configureBlend(entry) {
			if prev != nil {
				input = prev
			}
			previous = nil
		}
		e.runPass(entry, target, input, previous, screen)
		prev = target
	}
	return nil
}

// Composite applies stack and degrades instead of failing. When an
// intermediate target is unavailable only the bottom entry is applied, as a
// Replace pass; if that fails too src is copied unshaded.
func (e *ShaderEngine) Composite(src, dst *ebiten.Image, stack *ShaderStack) {
	err := e.Apply(src, dst, stack)
	if err == nil {
		return
	}
	e.metrics.shaderFallback()
	fields := logrus.Fields{"layer": stack.layer().String()}
	if errors.Is(err, ErrFallbackRequired) {
		first := stack.First()
		if ferr := e.Apply(src, dst, &first); ferr == nil {
			e.warnOnce("fallback:"+stack.layer().String(), fields, err, "shader stack reduced to its first entry")
			return
		}
	}
	e.warnOnce("unshaded:"+stack.layer().String(), fields, err, "shader stack skipped, drawing unshaded")
	if dst == nil {
		dst = e.backBuffer
	}
	if dst != nil {
		e.blit(src, dst)
	}
}

func (e *ShaderEngine) renderTarget(pass int) (*ebiten.Image, error) {
	if e.targets == nil {
		return nil, fmt.Errorf("meadow: no render target pool")
	}
	return e.targets.RenderTarget(pass)
}

// runPass applies one entry's parameters and draws input into target.
func (e *ShaderEngine) runPass(entry *StackEntry, target, input, previous *ebiten.Image, screen Vec2) {
	var overrides map[string]any
	if e.world.Valid(entry.Entity) {
		if en := e.world.Entry(entry.Entity); en.HasComponent(LayerShaderComponent) {
			overrides = LayerShaderComponent.Get(en).Parameters
		}
	}
	e.params.apply(entry, overrides, screen)
	entry.Effect.Apply(target, input, previous)
	e.metrics.shaderPass()
}

// configureBlend passes the entry's blend mode to its effect. Effects whose
// declared parameters lack BlendMode or PreviousTexture cannot blend; that
// is reported and the pass runs as a Replace pass.
func (e *ShaderEngine) configureBlend(entry *StackEntry) bool {
	if declared := entry.Effect.Parameters(); declared != nil {
		if !containsString(declared, paramBlendMode) || !containsString(declared, paramPreviousTexture) {
			e.warnOnce("blend:"+entry.ShaderID, logrus.Fields{
				"shader": entry.ShaderID, "blend": entry.BlendMode.String(),
			}, nil, "shader has no BlendMode/PreviousTexture inputs, blending skipped")
			return false
		}
	}
	e.params.push(entry.Entity, entry.Effect, paramBlendMode, entry.BlendMode)
	return true
}

func (e *ShaderEngine) blit(src, dst *ebiten.Image) {
	e.blitOp.GeoM.Reset()
	dst.DrawImage(src, &e.blitOp)
}

// screenSize is the active camera viewport size, or dst's size without a
// camera.
func (e *ShaderEngine) screenSize(dst *ebiten.Image) Vec2 {
	if e.cameras != nil {
		if cam, ok := e.cameras.ActiveCamera(); ok && cam.Viewport.Width > 0 {
			return Vec2{X: cam.Viewport.Width, Y: cam.Viewport.Height}
		}
	}
	b := dst.Bounds()
	return Vec2{X: float64(b.Dx()), Y: float64(b.Dy())}
}

// ParameterPushes returns the number of parameter values sent to effects.
func (e *ShaderEngine) ParameterPushes() int {
	return e.params.pushes
}
