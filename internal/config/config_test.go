package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"geofence/internal/geofence"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
boundary: exclusive
geographic: true
seeds:
  - seeds/city.geojson
  - /abs/zones.geojson
cache:
  size: 512
  ttl: 30s
  redis_ttl: 5m
geoip_db: data/GeoLite2-City.mmdb
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, geofence.BoundaryExclusive, cfg.Boundary)
	assert.True(t, cfg.DecodeOptions().Geographic)
	assert.Equal(t, []string{filepath.Join(dir, "seeds", "city.geojson"), "/abs/zones.geojson"}, cfg.Seeds)
	assert.Equal(t, CacheConfig{Size: 512, TTL: 30 * time.Second, RedisTTL: 5 * time.Minute}, cfg.Cache)
	assert.Equal(t, filepath.Join(dir, "data", "GeoLite2-City.mmdb"), cfg.GeoIPDB)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("geographic: true\n"), 0o644))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, geofence.BoundaryInclusive, cfg.Boundary)
	assert.Equal(t, 100_000, cfg.Cache.Size)
}

func TestLoadRejects(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"policy": "boundary: sometimes\n",
		"cache":  "cache:\n  size: -1\n",
		"syntax": "boundary: [\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
