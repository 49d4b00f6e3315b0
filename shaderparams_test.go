package meadow

import (
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yohamta/donburi"
)

func newParamEngine(t *testing.T, world donburi.World, shaders *fakeShaders, defs ...ShaderDefinition) *ShaderEngine {
	t.Helper()
	reg := NewMemoryRegistry()
	for _, d := range defs {
		reg.AddShader(d)
	}
	logger, _ := test.NewNullLogger()
	return NewShaderEngine(world, ShaderEngineOptions{
		Shaders:     shaders,
		Definitions: reg,
		Cameras:     fakeCameras{view: CameraView{Viewport: Rect{Width: 320, Height: 240}}},
		Logger:      logger,
	})
}

func TestParamsOverrideThenDefault(t *testing.T) {
	world := donburi.NewWorld()
	shaders := newFakeShaders()
	shaders.params["wave"] = []string{"Amplitude", "Speed", paramScreenSize, paramTexture, paramTransform}
	engine := newParamEngine(t, world, shaders, ShaderDefinition{ID: "wave", Parameters: []ShaderParameter{
		{Name: "Amplitude", Default: 2.0},
		{Name: "Speed", Default: 1.0},
		{Name: paramTexture, Default: "ignored"},
	}})
	AttachLayerShader(world, LayerShader{
		Layer: TileLayer, ShaderID: "wave", Enabled: true,
		Parameters: map[string]any{"Speed": 4.0, paramTransform: "ignored"},
	})

	s := engine.Stack(TileLayer)
	require.NoError(t, engine.Apply(ebiten.NewImage(8, 8), ebiten.NewImage(8, 8), s))

	fe := effectOf(t, s, 0)
	assert.Equal(t, 2.0, fe.set["Amplitude"])
	assert.Equal(t, 4.0, fe.set["Speed"])
	assert.Equal(t, Vec2{X: 320, Y: 240}, fe.set[paramScreenSize])
	assert.NotContains(t, fe.set, paramTexture)
	assert.NotContains(t, fe.set, paramTransform)
}

func TestParamsMissingValuePanics(t *testing.T) {
	world := donburi.NewWorld()
	shaders := newFakeShaders()
	shaders.params["ripple"] = []string{"Center"}
	engine := newParamEngine(t, world, shaders, ShaderDefinition{ID: "ripple", Parameters: []ShaderParameter{
		{Name: "Center"},
	}})
	AttachLayerShader(world, LayerShader{Layer: TileLayer, ShaderID: "ripple", Enabled: true})

	s := engine.Stack(TileLayer)
	assert.PanicsWithValue(t,
		`meadow: shader "ripple" parameter "Center" has no value: set it on the entity or give it a default`,
		func() { _ = engine.Apply(ebiten.NewImage(8, 8), ebiten.NewImage(8, 8), s) })
}

func TestParamsDeclaredButUndefinedPanics(t *testing.T) {
	world := donburi.NewWorld()
	shaders := newFakeShaders()
	shaders.params["fx"] = []string{"Known", "Extra"}
	engine := newParamEngine(t, world, shaders, ShaderDefinition{ID: "fx", Parameters: []ShaderParameter{
		{Name: "Known", Default: 1.0},
	}})
	AttachLayerShader(world, LayerShader{Layer: TileLayer, ShaderID: "fx", Enabled: true})

	s := engine.Stack(TileLayer)
	assert.Panics(t, func() { _ = engine.Apply(ebiten.NewImage(8, 8), ebiten.NewImage(8, 8), s) })
}

func TestParamsDefinedButUndeclaredPanics(t *testing.T) {
	world := donburi.NewWorld()
	shaders := newFakeShaders()
	shaders.params["fx"] = []string{"Amount"}
	engine := newParamEngine(t, world, shaders, ShaderDefinition{ID: "fx", Parameters: []ShaderParameter{
		{Name: "Amount", Default: 1.0},
		{Name: "Ghost", Default: 2.0},
	}})
	AttachLayerShader(world, LayerShader{Layer: TileLayer, ShaderID: "fx", Enabled: true})

	s := engine.Stack(TileLayer)
	assert.PanicsWithValue(t,
		`meadow: shader "fx" definition lists parameter "Ghost" the shader does not declare`,
		func() { _ = engine.Apply(ebiten.NewImage(8, 8), ebiten.NewImage(8, 8), s) })
}

func TestParamsDefinedReservedNotRequiredInShader(t *testing.T) {
	world := donburi.NewWorld()
	shaders := newFakeShaders()
	shaders.params["fx"] = []string{"Amount"}
	engine := newParamEngine(t, world, shaders, ShaderDefinition{ID: "fx", Parameters: []ShaderParameter{
		{Name: "Amount", Default: 1.0},
		{Name: paramScreenSize},
		{Name: paramTexture},
	}})
	AttachLayerShader(world, LayerShader{Layer: TileLayer, ShaderID: "fx", Enabled: true})

	s := engine.Stack(TileLayer)
	require.NotPanics(t, func() { _ = engine.Apply(ebiten.NewImage(8, 8), ebiten.NewImage(8, 8), s) })
	assert.Equal(t, 1.0, effectOf(t, s, 0).set["Amount"])
}

func TestParamsPushOnlyChanges(t *testing.T) {
	world := donburi.NewWorld()
	shaders := newFakeShaders()
	shaders.params["gray"] = []string{"Amount", paramScreenSize}
	engine := newParamEngine(t, world, shaders, ShaderDefinition{ID: "gray", Parameters: []ShaderParameter{
		{Name: "Amount", Default: 1.0},
	}})
	e := AttachLayerShader(world, LayerShader{Layer: TileLayer, ShaderID: "gray", Enabled: true})

	src, dst := ebiten.NewImage(8, 8), ebiten.NewImage(8, 8)
	s := engine.Stack(TileLayer)
	require.NoError(t, engine.Apply(src, dst, s))
	assert.Equal(t, 2, engine.ParameterPushes())

	require.NoError(t, engine.Apply(src, dst, s))
	assert.Equal(t, 2, engine.ParameterPushes(), "unchanged values are not pushed again")

	ls := LayerShaderComponent.Get(world.Entry(e))
	ls.Parameters = map[string]any{"Amount": 0.25}
	require.NoError(t, engine.Apply(src, dst, s))
	assert.Equal(t, 3, engine.ParameterPushes())
	assert.Equal(t, 0.25, effectOf(t, s, 0).set["Amount"])

	engine.MarkShaderStateDirty()
	s = engine.Stack(TileLayer)
	require.NoError(t, engine.Apply(src, dst, s))
	assert.Equal(t, 5, engine.ParameterPushes(), "a rebuilt stack pushes to its new effects")
}

func TestParamsWithoutDefinition(t *testing.T) {
	world := donburi.NewWorld()
	shaders := newFakeShaders()
	shaders.params["raw"] = []string{"Tint"}
	engine := newParamEngine(t, world, shaders)
	AttachLayerShader(world, LayerShader{
		Layer: TileLayer, ShaderID: "raw", Enabled: true,
		Parameters: map[string]any{"Tint": [4]float64{1, 0, 0, 1}, "Unknown": 3.0, paramBlendMode: BlendAdditive},
	})

	s := engine.Stack(TileLayer)
	require.NoError(t, engine.Apply(ebiten.NewImage(8, 8), ebiten.NewImage(8, 8), s))
	fe := effectOf(t, s, 0)
	assert.Equal(t, map[string]any{"Tint": [4]float64{1, 0, 0, 1}}, fe.set)
}

func TestParamsScreenSizeWithoutCamera(t *testing.T) {
	world := donburi.NewWorld()
	engine := newTestEngine(world, newFakeShaders("a"), nil)
	attach(world, TileLayer, "a", 0, BlendReplace)

	s := engine.Stack(TileLayer)
	require.NoError(t, engine.Apply(ebiten.NewImage(8, 8), ebiten.NewImage(40, 30), s))
	assert.Equal(t, Vec2{X: 40, Y: 30}, effectOf(t, s, 0).set[paramScreenSize])
}

func TestSameValue(t *testing.T) {
	slice := []float64{1, 2}
	m := map[string]int{"a": 1}
	type boxed struct{ V any }
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"equal floats", 1.5, 1.5, true},
		{"different floats", 1.5, 2.5, false},
		{"different types", 1, 1.0, false},
		{"equal vec", Vec2{X: 1}, Vec2{X: 1}, true},
		{"same slice", slice, slice, true},
		{"equal slice contents", slice, []float64{1, 2}, false},
		{"same map", m, m, true},
		{"both nil", nil, nil, true},
		{"one nil", nil, 1.0, false},
		{"equal boxed scalars", boxed{V: 1.0}, boxed{V: 1.0}, true},
		{"boxed slices", boxed{V: slice}, boxed{V: slice}, false},
	}
	for _, tt := range tests {
		if got := sameValue(tt.a, tt.b); got != tt.want {
			t.Errorf("%s: sameValue = %v, want %v", tt.name, got, tt.want)
		}
	}
}
