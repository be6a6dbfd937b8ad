package config

import (
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	path := writeFile(t, "lattice.yaml", `
store: redis
redis:
  addr: cache:6379
  db: 2
  ttl: 24h
render_delay: 250ms
palette_dir: ./palette
encryption_key: `+key+`
redact_attributes: ["(?i)password"]
http:
  port: 9090
log_level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, StoreRedis, cfg.Store)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "lattice:", cfg.Redis.Prefix, "unset fields keep their default")
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	assert.Equal(t, 250*time.Millisecond, cfg.RenderDelay)
	assert.Equal(t, time.Second, cfg.SaveDelay)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, []string{"(?i)password"}, cfg.RedactAttributes)

	active, fallback, err := cfg.Keys()
	require.NoError(t, err)
	assert.Len(t, active, 32)
	assert.Empty(t, fallback)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "lattice.json", `{"store": "sqlite", "sqlite": {"path": "/tmp/x.db"}, "save_delay": "2s"}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, "/tmp/x.db", cfg.SQLite.Path)
	assert.Equal(t, 2*time.Second, cfg.SaveDelay)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"unknown store", "a.yaml", "store: mongo", `unknown store "mongo"`},
		{"bad key", "b.yaml", "encryption_key: '%%%'", "encryption_key"},
		{"bad level", "c.yaml", "log_level: loud", "log_level"},
		{"syntax", "d.yaml", "store: [", "failed to parse d.yaml"},
		{"format", "e.toml", "store = 'file'", "unsupported config format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
