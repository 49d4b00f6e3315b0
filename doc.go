// Package meadow streams a tile world made of connected rectangular maps and
// renders it with [Ebitengine].
//
// Maps, tile chunks, connections, sprites and layer shaders are [donburi]
// entities. The engine is single-threaded: run the update systems, then the
// renderers, once per frame.
//
// # Quick start
//
//	world := donburi.NewWorld()
//	defs := meadow.NewProceduralRegistry(meadow.ProceduralConfig{Seed: 7})
//	res, _ := meadow.NewResources(defs, textures, cfg.Cache, logger)
//
//	loader := meadow.NewMapLoader(world, defs, meadow.LoaderOptions{
//		Config: cfg, Resources: res, Logger: logger,
//	})
//	loader.LoadMap(meadow.ProceduralMapID(0, 0))
//
//	cams := &meadow.CameraSet{}
//	cams.Add(meadow.NewCamera(meadow.Rect{Width: 640, Height: 480}, 16, 16))
//
//	frame := meadow.NewFrameRenderer(world, meadow.RendererOptions{
//		Resources: res, Cameras: cams, Config: cfg, Logger: logger,
//	})
//
// and in the game's Draw:
//
//	frame.Draw(screen)
//
// # Map graph
//
// [MapLoader.LoadMap] places the requested map at the tile origin and walks
// its connections. A neighbour's origin follows from the source origin, both
// map sizes, the connection direction and the offset along the shared edge
// (see [CalculateConnectedMapPosition]). A map is materialized at most once;
// rediscovering it through another connection keeps the first position.
//
// # Chunks
//
// Every visible layer is decoded (plain, base64, gzip, zlib or zstd) and cut
// into [Config.ChunkSize] square chunks. Each chunk carries a
// [TilesetResolver] so that global tile ids from several tilesets resolve to
// the right texture. Chunks holding animated tiles get an [AnimatedTiles]
// component that [TileAnimator] advances.
//
// # Shader stacks
//
// A [LayerShader] entity adds a pass to the tile, sprite or combined layer.
// Passes run in RenderOrder; each one after the first blends over the output
// below it with its [BlendMode]. Use [AttachLayerShader],
// [SetLayerShaderEnabled] and [DetachLayerShader] so the [ShaderEngine]
// notices the change once events are processed.
//
// [Ebitengine]: https://ebitengine.org
// [donburi]: https://github.com/yohamta/donburi
package meadow
