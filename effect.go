package meadow

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/hajimehoshi/ebiten/v2"
)

// Effect is one compiled shader instance with its own uniform state.
type Effect interface {
	// Parameters returns the uniform names the shader declares, or nil when
	// they are unknown. A shader that samples the previous pass output lists
	// "PreviousTexture".
	Parameters() []string
	// SetParameter stores a uniform value for subsequent Apply calls.
	SetParameter(name string, value any)
	// Apply draws src into dst through the shader. prev is the output of the
	// pass below in a shader stack, or nil.
	Apply(dst, src, prev *ebiten.Image)
}

// Names the compositing engine manages itself.
const (
	paramTexture         = "Texture"
	paramSpriteTexture   = "SpriteTexture"
	paramTransform       = "WorldViewProjection"
	paramPreviousTexture = "PreviousTexture"
	paramBlendMode       = "BlendMode"
	paramScreenSize      = "ScreenSize"
)

// reservedParams are supplied by the draw call and never set from
// definitions or entity overrides.
var reservedParams = map[string]struct{}{
	paramTexture:         {},
	paramSpriteTexture:   {},
	paramTransform:       {},
	paramPreviousTexture: {},
	paramBlendMode:       {},
}

func isReservedParam(name string) bool {
	_, ok := reservedParams[name]
	return ok
}

// --- Kage effects ---

var (
	kageUniformRe   = regexp.MustCompile(`(?m)^\s*var\s+([A-Z][A-Za-z0-9_]*)\s`)
	kageImageSrc1Re = regexp.MustCompile(`imageSrc1(At|UnsafeAt|Origin|Size)\b`)
)

// kageParameters lists the uniforms a Kage source declares. Exported
// top-level vars are uniforms; sampling imageSrc1 marks the shader as
// reading the previous pass output.
func kageParameters(src []byte) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range kageUniformRe.FindAllSubmatch(src, -1) {
		name := string(m[1])
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	if kageImageSrc1Re.Match(src) && !seen[paramPreviousTexture] {
		names = append(names, paramPreviousTexture)
	}
	sort.Strings(names)
	return names
}

// KageEffect runs a compiled Kage shader with //kage:unit pixels.
// Images[0] is the pass input; Images[1] is the previous pass output.
type KageEffect struct {
	shader   *ebiten.Shader
	params   []string
	uniforms map[string]any
	shaderOp ebiten.DrawRectShaderOptions
}

// NewKageEffect compiles src into a new effect.
func NewKageEffect(src []byte) (*KageEffect, error) {
	shader, err := ebiten.NewShader(src)
	if err != nil {
		return nil, fmt.Errorf("meadow: compile shader: %w", err)
	}
	return newKageEffect(shader, kageParameters(src)), nil
}

func newKageEffect(shader *ebiten.Shader, params []string) *KageEffect {
	return &KageEffect{
		shader:   shader,
		params:   params,
		uniforms: make(map[string]any, len(params)),
	}
}

// Parameters returns the uniforms declared in the shader source.
func (e *KageEffect) Parameters() []string { return e.params }

// SetParameter stores a uniform value. float64, Vec2, bool, BlendMode and
// float64 slices are converted to the float32 forms Kage expects.
func (e *KageEffect) SetParameter(name string, value any) {
	e.uniforms[name] = uniformValue(value)
}

// Apply runs the shader over src into dst.
func (e *KageEffect) Apply(dst, src, prev *ebiten.Image) {
	bounds := src.Bounds()
	e.shaderOp.Images[0] = src
	e.shaderOp.Images[1] = prev
	e.shaderOp.Uniforms = e.uniforms
	dst.DrawRectShader(bounds.Dx(), bounds.Dy(), e.shader, &e.shaderOp)
	e.shaderOp.Images[1] = nil
}

func uniformValue(v any) any {
	switch x := v.(type) {
	case float64:
		return float32(x)
	case bool:
		if x {
			return float32(1)
		}
		return float32(0)
	case BlendMode:
		return float32(x)
	case Vec2:
		return []float32{float32(x.X), float32(x.Y)}
	case []float64:
		out := make([]float32, len(x))
		for i, f := range x {
			out[i] = float32(f)
		}
		return out
	case [4]float64:
		return []float32{float32(x[0]), float32(x[1]), float32(x[2]), float32(x[3])}
	default:
		return v
	}
}

// --- Built-in shaders ---

// Blend mode values match BlendMode.
const blendShaderSrc = `//kage:unit pixels
package main

var BlendMode float
var Strength float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	c := imageSrc0At(src)
	p := imageSrc1At(src)
	var out vec4
	if BlendMode < 0.5 {
		out = c
	} else if BlendMode < 1.5 {
		out = c + p*(1-c.a)
	} else if BlendMode < 2.5 {
		out = clamp(p+c, 0, 1)
	} else if BlendMode < 3.5 {
		out = p * c
	} else {
		out = 1 - (1-p)*(1-c)
	}
	return mix(p, out, Strength)
}
`

const tintShaderSrc = `//kage:unit pixels
package main

var Tint vec4
var BlendMode float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	c := imageSrc0At(src)
	// Un-premultiply alpha.
	if c.a > 0 {
		c.rgb /= c.a
	}
	t := vec4(c.rgb*Tint.rgb, c.a*Tint.a)
	t.rgb *= t.a
	p := imageSrc1At(src)
	if BlendMode < 0.5 {
		return t
	} else if BlendMode < 1.5 {
		return t + p*(1-t.a)
	} else if BlendMode < 2.5 {
		return clamp(p+t, 0, 1)
	} else if BlendMode < 3.5 {
		return p * t
	}
	return 1 - (1-p)*(1-t)
}
`

const grayscaleShaderSrc = `//kage:unit pixels
package main

var Amount float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	c := imageSrc0At(src)
	if c.a > 0 {
		c.rgb /= c.a
	}
	lum := 0.299*c.r + 0.587*c.g + 0.114*c.b
	rgb := mix(c.rgb, vec3(lum), clamp(Amount, 0, 1))
	return vec4(rgb*c.a, c.a)
}
`

// Built-in shader ids.
const (
	ShaderTint      = "meadow:tint"
	ShaderGrayscale = "meadow:grayscale"
	ShaderBlend     = "meadow:blend"
)

var builtinShaders = map[string]string{
	ShaderTint:      tintShaderSrc,
	ShaderGrayscale: grayscaleShaderSrc,
	ShaderBlend:     blendShaderSrc,
}

// BuiltinShaderDefinitions returns definitions for the built-in shaders
// with their parameter defaults.
func BuiltinShaderDefinitions() []ShaderDefinition {
	return []ShaderDefinition{
		{ID: ShaderTint, Parameters: []ShaderParameter{
			{Name: "Tint", Default: [4]float64{1, 1, 1, 1}},
		}},
		{ID: ShaderGrayscale, Parameters: []ShaderParameter{
			{Name: "Amount", Default: 1.0},
		}},
		{ID: ShaderBlend, Parameters: []ShaderParameter{
			{Name: "Strength", Default: 1.0},
		}},
	}
}

// --- Shader library ---

type compiledShader struct {
	shader *ebiten.Shader
	params []string
	err    error
}

// ShaderLibrary compiles shaders on first use and hands out independent
// effect instances. Sources come from registered sources, the built-ins and
// ShaderDefinition.Source in the definition registry, in that order.
// It implements ShaderProvider.
type ShaderLibrary struct {
	defs     DefinitionRegistry
	sources  map[string][]byte
	compiled map[string]*compiledShader
}

// NewShaderLibrary creates a library. defs may be nil.
func NewShaderLibrary(defs DefinitionRegistry) *ShaderLibrary {
	return &ShaderLibrary{
		defs:     defs,
		sources:  make(map[string][]byte),
		compiled: make(map[string]*compiledShader),
	}
}

// Register adds or replaces a shader source. A previously compiled shader
// with the same id is discarded.
func (l *ShaderLibrary) Register(id string, src []byte) {
	l.sources[id] = src
	if c, ok := l.compiled[id]; ok {
		if c.shader != nil {
			c.shader.Deallocate()
		}
		delete(l.compiled, id)
	}
}

func (l *ShaderLibrary) source(id string) ([]byte, bool) {
	if src, ok := l.sources[id]; ok {
		return src, true
	}
	if src, ok := builtinShaders[id]; ok {
		return []byte(src), true
	}
	if l.defs != nil {
		if def, ok := l.defs.ShaderDefinition(id); ok && def.Source != "" {
			return []byte(def.Source), true
		}
	}
	return nil, false
}

// HasShader reports whether a source exists for id.
func (l *ShaderLibrary) HasShader(id string) bool {
	_, ok := l.source(id)
	return ok
}

// Effect returns a new effect instance for id. Compile failures are cached.
func (l *ShaderLibrary) Effect(id string) (Effect, error) {
	c, ok := l.compiled[id]
	if !ok {
		src, found := l.source(id)
		if !found {
			return nil, fmt.Errorf("meadow: shader %q: %w", id, ErrShaderNotFound)
		}
		c = &compiledShader{params: kageParameters(src)}
		c.shader, c.err = ebiten.NewShader(src)
		l.compiled[id] = c
	}
	if c.err != nil {
		return nil, fmt.Errorf("meadow: compile shader %q: %w", id, c.err)
	}
	return newKageEffect(c.shader, c.params), nil
}
