package meadow

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	mapsLoaded      prometheus.Gauge
	chunksLive      prometheus.Gauge
	layersSkipped   prometheus.Counter
	tilesDrawn      prometheus.Counter
	tilesInvalid    prometheus.Counter
	chunksCulled    prometheus.Counter
	spritesCulled   prometheus.Counter
	spritesDrawn    prometheus.Counter
	shaderPasses    prometheus.Counter
	shaderFallbacks prometheus.Counter
	shadersDropped  prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
// Returns nil when cfg.Enabled is false.
func NewMetrics(cfg MetricsConfig, reg prometheus.Registerer) (*Metrics, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	ns := cfg.Namespace
	m := &Metrics{
		mapsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "loader", Name: "maps_loaded",
			Help: "Maps currently loaded.",
		}),
		chunksLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "loader", Name: "chunks_live",
			Help: "Tile chunks currently materialized.",
		}),
		layersSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "loader", Name: "layers_skipped_total",
			Help: "Layers skipped because they were invisible, empty or undecodable.",
		}),
		tilesDrawn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "render", Name: "tiles_drawn_total",
			Help: "Tiles submitted for drawing.",
		}),
		tilesInvalid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "render", Name: "tiles_invalid_total",
			Help: "Tiles skipped because their tileset or source rectangle could not be resolved.",
		}),
		chunksCulled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "render", Name: "chunks_culled_total",
			Help: "Chunks rejected by visibility culling.",
		}),
		spritesCulled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "render", Name: "sprites_culled_total",
			Help: "Sprites rejected by visibility culling.",
		}),
		spritesDrawn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "render", Name: "sprites_drawn_total",
			Help: "Sprites submitted for drawing.",
		}),
		shaderPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "shader", Name: "passes_total",
			Help: "Shader passes rendered.",
		}),
		shaderFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "shader", Name: "fallbacks_total",
			Help: "Composites that degraded because an intermediate target was unavailable.",
		}),
		shadersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "shader", Name: "dropped_total",
			Help: "Stack entries dropped because their shader could not be resolved.",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []*prometheus.Counter{
		&m.layersSkipped, &m.tilesDrawn, &m.tilesInvalid, &m.chunksCulled, &m.spritesCulled,
		&m.spritesDrawn, &m.shaderPasses, &m.shaderFallbacks, &m.shadersDropped,
	} {
		if err := register(reg, c); err != nil {
			return nil, err
		}
	}
	for _, g := range []*prometheus.Gauge{&m.mapsLoaded, &m.chunksLive} {
		if err := register(reg, g); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// register adds *c to reg. A collector already registered under the same
// descriptor replaces *c, so engines sharing a registry share counters.
func register[C prometheus.Collector](reg prometheus.Registerer, c *C) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			*c = existing
			return nil
		}
	}
	return err
}

func (m *Metrics) mapLoaded(chunks int) {
	if m == nil {
		return
	}
	m.mapsLoaded.Inc()
	m.chunksLive.Add(float64(chunks))
}

func (m *Metrics) mapUnloaded(chunks int) {
	if m == nil {
		return
	}
	m.mapsLoaded.Dec()
	m.chunksLive.Sub(float64(chunks))
}

func (m *Metrics) layerSkipped() {
	if m != nil {
		m.layersSkipped.Inc()
	}
}

func (m *Metrics) tiles(drawn, invalid int) {
	if m == nil {
		return
	}
	m.tilesDrawn.Add(float64(drawn))
	m.tilesInvalid.Add(float64(invalid))
}

func (m *Metrics) culled(n int) {
	if m != nil && n > 0 {
		m.chunksCulled.Add(float64(n))
	}
}

func (m *Metrics) sprites(drawn, culled int) {
	if m == nil {
		return
	}
	m.spritesDrawn.Add(float64(drawn))
	m.spritesCulled.Add(float64(culled))
}

func (m *Metrics) shaderPass() {
	if m != nil {
		m.shaderPasses.Inc()
	}
}

func (m *Metrics) shaderFallback() {
	if m != nil {
		m.shaderFallbacks.Inc()
	}
}

func (m *Metrics) shaderDropped() {
	if m != nil {
		m.shadersDropped.Inc()
	}
}
