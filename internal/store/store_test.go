package store

import (
	"context"
	"os"
	"testing"
	"time"

	"geofence/internal/geofence"
	"geofence/internal/migrate"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const square = `{"type":"Polygon","coordinates":[[[0,0],[0,10],[10,10],[10,0],[0,0]]]}`

func TestEncodeDecodeRow(t *testing.T) {
	g, err := geofence.DecodeGeometry([]byte(`{"type":"Polygon","coordinates":[[[-73.9857,40.7484],[-73.985,40.749],[-73.984,40.748]]]}`), geofence.DecodeOptions{})
	require.NoError(t, err)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := geofence.Record{ID: 9, Geometry: g, Metadata: geofence.Metadata{"name": "esb", "owner": "ops"}, RegisteredAt: at}

	r, err := encodeRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, int64(9), r.ID)
	assert.Equal(t, "esb", r.Name)
	assert.Equal(t, "Polygon", r.Kind)
	assert.Equal(t, int64(3), r.Cost)
	assert.Contains(t, string(r.Geometry), "-73.9857")

	back, err := decodeRow(r, geofence.DecodeOptions{Geographic: true})
	require.NoError(t, err)
	assert.Equal(t, rec.ID, back.ID)
	assert.Equal(t, rec.Metadata, back.Metadata)
	assert.Equal(t, at, back.RegisteredAt)

	pt, err := geofence.ParseCoordinate("-73.9850", "40.7485")
	require.NoError(t, err)
	want, err := geofence.Locate(g, pt)
	require.NoError(t, err)
	got, err := geofence.Locate(back.Geometry, pt)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeRowRejectsCorruptGeometry(t *testing.T) {
	_, err := decodeRow(row{ID: 3, Geometry: []byte(`{"type":"Point","coordinates":[0,0]}`)}, geofence.DecodeOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, geofence.ErrInvalidGeometry))
	assert.Contains(t, err.Error(), "geofence 3")
}

// 需要真实数据库：设置 PG_TEST_DSN 后运行
func TestStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("PG_TEST_DSN")
	if dsn == "" {
		t.Skip("PG_TEST_DSN not set")
	}
	s, err := Open(dsn)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, migrate.EnsureSchema(s.DB()))
	ctx := context.Background()
	_, err = s.DB().ExecContext(ctx, `TRUNCATE _geofences`)
	require.NoError(t, err)

	g, err := geofence.DecodeGeometry([]byte(square), geofence.DecodeOptions{})
	require.NoError(t, err)

	reg := geofence.NewRegistry()
	a, err := reg.RegisterWith(g, geofence.Metadata{"name": "a"}, func(r geofence.Record) error { return s.Save(ctx, r) })
	require.NoError(t, err)
	b, err := reg.RegisterWith(g, geofence.Metadata{"name": "b"}, func(r geofence.Record) error { return s.Save(ctx, r) })
	require.NoError(t, err)
	require.NoError(t, reg.RemoveWith(b, func(id geofence.ID) error { return s.Retire(ctx, id) }))
	assert.True(t, errors.Is(s.Retire(ctx, b), geofence.ErrNotFound))

	restored := geofence.NewRegistry()
	n, err := s.RestoreInto(ctx, restored, geofence.DecodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []geofence.ID{a}, restored.IDs())

	next, err := restored.Register(g, nil)
	require.NoError(t, err)
	assert.Equal(t, b+1, next)

	c, err := s.Append(ctx, g, geofence.Metadata{"name": "c"})
	require.NoError(t, err)
	assert.Equal(t, b+1, c)
}

// 需要真实数据库：设置 PG_TEST_DSN 后运行
func TestStoreStatsAndEpoch(t *testing.T) {
	dsn := os.Getenv("PG_TEST_DSN")
	if dsn == "" {
		t.Skip("PG_TEST_DSN not set")
	}
	s, err := Open(dsn)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, migrate.EnsureSchema(s.DB()))
	ctx := context.Background()

	e1, err := s.CacheEpoch(ctx)
	require.NoError(t, err)
	e2, err := s.CacheEpoch(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, e1)
	assert.Equal(t, e1, e2)

	before, err := s.GetTotals(ctx)
	require.NoError(t, err)
	require.NoError(t, s.AddStats(ctx, 5, 2))
	after, err := s.GetTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Total+5, after.Total)
	assert.Equal(t, before.Hits+2, after.Hits)
	assert.Equal(t, before.Today+5, after.Today)
}
