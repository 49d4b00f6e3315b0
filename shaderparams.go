package meadow

import (
	"fmt"
	"reflect"

	"github.com/yohamta/donburi"
)

type paramKey struct {
	entity donburi.Entity
	name   string
}

// paramTracker resolves shader parameter values and pushes only those that
// changed since the last push for the same (entity, parameter) pair.
type paramTracker struct {
	defs   DefinitionRegistry
	last   map[paramKey]any
	pushes int // total SetParameter calls, for tests and stats
}

func newParamTracker(defs DefinitionRegistry) *paramTracker {
	return &paramTracker{defs: defs, last: make(map[paramKey]any)}
}

// reset forgets every pushed value. Called when effects are recreated.
func (t *paramTracker) reset() {
	clear(t.last)
}

// forget drops the pushed values of one entity.
func (t *paramTracker) forget(e donburi.Entity) {
	for k := range t.last {
		if k.entity == e {
			delete(t.last, k)
		}
	}
}

// apply resolves and pushes the parameters of one stack entry.
//
// With a shader definition, every parameter named by the definition or
// declared by the shader resolves as override, then definition default; a
// parameter with neither panics, as does a definition parameter the shader
// does not declare. Without a definition, overrides are pushed as given.
func (t *paramTracker) apply(entry *StackEntry, overrides map[string]any, screen Vec2) {
	effect := entry.Effect
	declared := effect.Parameters()

	var def *ShaderDefinition
	if t.defs != nil {
		def, _ = t.defs.ShaderDefinition(entry.ShaderID)
	}

	if def == nil {
		for name, v := range overrides {
			if isReservedParam(name) || name == paramScreenSize {
				continue
			}
			if declared != nil && !containsString(declared, name) {
				continue
			}
			t.push(entry.Entity, effect, name, v)
		}
		if declared == nil || containsString(declared, paramScreenSize) {
			t.push(entry.Entity, effect, paramScreenSize, screen)
		}
		return
	}

	for _, p := range def.Parameters {
		if declared != nil && !isReservedParam(p.Name) && p.Name != paramScreenSize && !containsString(declared, p.Name) {
			panic(fmt.Sprintf("meadow: shader %q definition lists parameter %q the shader does not declare",
				entry.ShaderID, p.Name))
		}
		t.resolveAndPush(entry, def, p.Name, overrides, screen)
	}
	for _, name := range declared {
		if _, inDef := def.Parameter(name); inDef {
			continue
		}
		t.resolveAndPush(entry, def, name, overrides, screen)
	}
}

func (t *paramTracker) resolveAndPush(entry *StackEntry, def *ShaderDefinition, name string, overrides map[string]any, screen Vec2) {
	if isReservedParam(name) {
		return
	}
	if name == paramScreenSize {
		t.push(entry.Entity, entry.Effect, name, screen)
		return
	}
	v, ok := resolveParam(def, name, overrides)
	if !ok {
		panic(fmt.Sprintf("meadow: shader %q parameter %q has no value: set it on the entity or give it a default",
			entry.ShaderID, name))
	}
	t.push(entry.Entity, entry.Effect, name, v)
}

// resolveParam returns the value for name: entity override first, then the
// definition default.
func resolveParam(def *ShaderDefinition, name string, overrides map[string]any) (any, bool) {
	if v, ok := overrides[name]; ok && v != nil {
		return v, true
	}
	if def != nil {
		if p, ok := def.Parameter(name); ok && p.Default != nil {
			return p.Default, true
		}
	}
	return nil, false
}

func (t *paramTracker) push(e donburi.Entity, effect Effect, name string, v any) {
	key := paramKey{entity: e, name: name}
	if prev, ok := t.last[key]; ok && sameValue(prev, v) {
		return
	}
	t.last[key] = v
	effect.SetParameter(name, v)
	t.pushes++
}

// sameValue compares comparable values by equality and reference values
// (slices, maps, pointers, funcs, channels) by identity.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Map, reflect.Pointer, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	}
	if ta.Comparable() {
		return equalComparable(a, b)
	}
	return false
}

// equalComparable is a == b, reporting false instead of panicking when an
// interface field holds an uncomparable dynamic value.
func equalComparable(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
