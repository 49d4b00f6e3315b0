package meadow

import (
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

// MapLoaded is published after a map and its chunks are registered.
type MapLoaded struct {
	MapID  string
	Origin TilePoint
	Chunks int
}

// MapUnloaded is published after a map's entities are destroyed.
type MapUnloaded struct {
	MapID string
}

// ShaderStackChanged is published whenever a LayerShader entity is added,
// removed or toggled.
type ShaderStackChanged struct {
	Layer ShaderLayer
}

// Event types. They are scoped to the donburi world they are published on;
// call events.ProcessAllEvents (or ProcessEvents on one type) once per frame
// to deliver them.
var (
	MapLoadedEvent          = events.NewEventType[MapLoaded]()
	MapUnloadedEvent        = events.NewEventType[MapUnloaded]()
	ShaderStackChangedEvent = events.NewEventType[ShaderStackChanged]()
)

// AttachLayerShader creates a LayerShader entity and announces the change.
func AttachLayerShader(world donburi.World, s LayerShader) donburi.Entity {
	e := world.Create(LayerShaderComponent)
	LayerShaderComponent.SetValue(world.Entry(e), s)
	ShaderStackChangedEvent.Publish(world, ShaderStackChanged{Layer: s.Layer})
	return e
}

// SetLayerShaderEnabled toggles a LayerShader entity. No-op when the entity
// is gone or the value is unchanged.
func SetLayerShaderEnabled(world donburi.World, e donburi.Entity, enabled bool) {
	if !world.Valid(e) {
		return
	}
	entry := world.Entry(e)
	if !entry.HasComponent(LayerShaderComponent) {
		return
	}
	s := LayerShaderComponent.Get(entry)
	if s.Enabled == enabled {
		return
	}
	s.Enabled = enabled
	ShaderStackChangedEvent.Publish(world, ShaderStackChanged{Layer: s.Layer})
}

// DetachLayerShader removes a LayerShader entity and announces the change.
func DetachLayerShader(world donburi.World, e donburi.Entity) {
	if !world.Valid(e) {
		return
	}
	entry := world.Entry(e)
	layer := CombinedLayer
	if entry.HasComponent(LayerShaderComponent) {
		layer = LayerShaderComponent.Get(entry).Layer
	}
	world.Remove(e)
	ShaderStackChangedEvent.Publish(world, ShaderStackChanged{Layer: layer})
}
