package utils

import (
	"context"
	"crypto/tls"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSNFromEnv(t *testing.T) {
	t.Setenv("PG_DSN", "")
	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_PORT", "")
	t.Setenv("PG_USER", "fence")
	t.Setenv("PG_PASSWORD", "s3cret")
	t.Setenv("PG_DB", "")
	t.Setenv("PG_SSLMODE", "")
	assert.Equal(t, "postgres://fence:s3cret@db:5432/geofence?sslmode=disable", BuildPostgresDSNFromEnv())

	t.Setenv("PG_DSN", "postgres://override")
	assert.Equal(t, "postgres://override", BuildPostgresDSNFromEnv())
}

func TestEnsureSelfSignedCert(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "certs", "server.crt")
	key := filepath.Join(dir, "certs", "server.key")
	require.NoError(t, EnsureSelfSignedCert(cert, key, "geofence.local"))

	pair, err := tls.LoadX509KeyPair(cert, key)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.Certificate)

	// 已存在时不重写
	require.NoError(t, EnsureSelfSignedCert(cert, key, "other"))
	again, err := tls.LoadX509KeyPair(cert, key)
	require.NoError(t, err)
	assert.Equal(t, pair.Certificate, again.Certificate)
}

func TestOpenRedisDisabled(t *testing.T) {
	t.Setenv("REDIS_ENABLED", "false")
	assert.Nil(t, OpenRedisFromEnv(context.Background()))
	assert.Nil(t, OpenRedis("", ""))
}
