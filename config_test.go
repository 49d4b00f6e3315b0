package meadow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("chunk_size: 32\n"))
	require.NoError(t, err)

	want := DefaultConfig()
	want.ChunkSize = 32
	assert.Equal(t, want, cfg)
}

func TestParseConfigFull(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
chunk_size: 8
cull_margin_tiles: 2
default_tile_width: 32
default_tile_height: 24
position_tolerance: 1
connection_depth: 3
max_shader_passes: 4
log:
  level: debug
  format: json
  file: meadow.log
  compress: true
cache:
  texture_max_cost: 64
metrics:
  enabled: true
  namespace: game
`))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.ChunkSize)
	assert.Equal(t, 2, cfg.CullMarginTiles)
	assert.Equal(t, 32, cfg.DefaultTileWidth)
	assert.Equal(t, 24, cfg.DefaultTileHeight)
	assert.Equal(t, 1, cfg.PositionTolerance)
	assert.Equal(t, 3, cfg.ConnectionDepth)
	assert.Equal(t, 4, cfg.MaxShaderPasses)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "meadow.log", cfg.Log.File)
	assert.True(t, cfg.Log.Compress)
	assert.Equal(t, 10, cfg.Log.MaxSizeMB, "unset nested fields take defaults")
	assert.Equal(t, int64(64), cfg.Cache.TextureMaxCost)
	assert.Equal(t, int64(2560), cfg.Cache.TextureCounters)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "game", cfg.Metrics.Namespace)
}

func TestParseConfigInvalid(t *testing.T) {
	tests := map[string]string{
		"negative chunk":     "chunk_size: -4",
		"negative margin":    "cull_margin_tiles: -1",
		"negative tolerance": "position_tolerance: -2",
		"negative depth":     "connection_depth: -1",
		"negative passes":    "max_shader_passes: -1",
		"bad format":         "log: {format: xml}",
		"not yaml":           "chunk_size: [",
		"wrong type":         "chunk_size: big",
	}
	for name, doc := range tests {
		_, err := ParseConfig([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meadow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cull_margin_tiles: 3\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.CullMarginTiles)
	assert.Equal(t, 16, cfg.ChunkSize)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	logger, err = NewLogger(LogConfig{})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())

	_, err = NewLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
	_, err = NewLogger(LogConfig{Format: "xml"})
	assert.Error(t, err)
}

func TestNewLoggerRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "meadow.log")
	logger, err := NewLogger(LogConfig{File: path, MaxSizeMB: 1})
	require.NoError(t, err)
	logger.Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestComponentLog(t *testing.T) {
	entry := componentLog(nil, "loader")
	assert.Equal(t, "loader", entry.Data["component"])
	assert.Same(t, logrus.StandardLogger(), entry.Logger)
}
