package oracle

import (
	"math/rand"
	"testing"

	"geofence/internal/fixed"
	"geofence/internal/geofence"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = "testdata/geometries.json"

func loadFixture(t *testing.T) []geofence.Feature {
	t.Helper()
	fs, err := geofence.LoadFile(fixture, geofence.DecodeOptions{Geographic: true})
	require.NoError(t, err)
	require.NotEmpty(t, fs)
	return fs
}

func coord(t *testing.T, x, y string) geofence.Coordinate {
	t.Helper()
	c, err := geofence.ParseCoordinate(x, y)
	require.NoError(t, err)
	return c
}

func TestCrossValidateFixture(t *testing.T) {
	reg := geofence.NewRegistry()
	rng := rand.New(rand.NewSource(20240501))

	for _, f := range loadFixture(t) {
		t.Run(f.Name, func(t *testing.T) {
			id, err := reg.Register(f.Geometry, f.Metadata)
			require.NoError(t, err)
			v, err := New(f.Geometry)
			require.NoError(t, err)

			counts := map[Verdict]int{}
			for _, c := range Sample(rng, f.Geometry, 2000) {
				got, err := reg.Query(id, c)
				require.NoError(t, err)
				verdict, err := v.Check(c, got)
				if err != nil {
					var m *Mismatch
					require.True(t, errors.As(err, &m))
					t.Errorf("%s: %v", f.Name, m)
				}
				counts[verdict]++
			}
			assert.Zero(t, counts[Disagree])
			assert.NotZero(t, counts[Agree])
			// 顶点采样必然落在容差内
			assert.NotZero(t, counts[Tolerated])
		})
	}
}

func TestUnitSquareAgrees(t *testing.T) {
	sq := loadFixture(t)[0]
	require.Equal(t, "unit-square", sq.Name)
	v, err := New(sq.Geometry)
	require.NoError(t, err)

	in := coord(t, "5", "5")
	assert.True(t, v.Contains(in))
	assert.InDelta(t, 5.0, v.Distance(in), 1e-12)
	verdict, err := v.Check(in, geofence.Inside)
	require.NoError(t, err)
	assert.Equal(t, Agree, verdict)

	edge := coord(t, "10", "5")
	verdict, err = v.Check(edge, geofence.OnBoundary)
	require.NoError(t, err)
	assert.Equal(t, Tolerated, verdict)

	out := coord(t, "15", "5")
	verdict, err = Check(sq.Geometry, out, geofence.Outside)
	require.NoError(t, err)
	assert.Equal(t, Agree, verdict)
}

func TestCheckRejectsWrongAnswers(t *testing.T) {
	sq := loadFixture(t)[0]
	v, err := New(sq.Geometry)
	require.NoError(t, err)

	cases := []struct {
		pt  geofence.Coordinate
		got geofence.Classification
	}{
		{coord(t, "5", "5"), geofence.Outside},
		{coord(t, "5", "5"), geofence.OnBoundary},
		{coord(t, "15", "5"), geofence.Inside},
		{coord(t, "10.000001", "5"), geofence.OnBoundary},
	}
	for _, tc := range cases {
		verdict, err := v.Check(tc.pt, tc.got)
		assert.Equal(t, Disagree, verdict, tc.pt.String())
		var m *Mismatch
		require.True(t, errors.As(err, &m))
		assert.Equal(t, tc.got, m.Engine)
	}

	// 一个精度单位以内不比较
	nudge := geofence.Coordinate{X: fixed.FromRaw(fixed.MustInt(10).Raw() + 1), Y: fixed.MustInt(5)}
	verdict, err := v.Check(nudge, geofence.Inside)
	require.NoError(t, err)
	assert.Equal(t, Tolerated, verdict)
}

func TestHoleBoundaryIsTolerated(t *testing.T) {
	holed := loadFixture(t)[1]
	require.Equal(t, "square-with-hole", holed.Name)
	v, err := New(holed.Geometry)
	require.NoError(t, err)

	// orb 将洞边视为外部，定点判定为边界；容差内不计冲突
	c := coord(t, "3", "5")
	assert.False(t, v.Contains(c))
	verdict, err := v.Check(c, geofence.OnBoundary)
	require.NoError(t, err)
	assert.Equal(t, Tolerated, verdict)
}

func TestSampleIsReproducible(t *testing.T) {
	g := loadFixture(t)[0].Geometry
	a := Sample(rand.New(rand.NewSource(7)), g, 64)
	b := Sample(rand.New(rand.NewSource(7)), g, 64)
	assert.Equal(t, a, b)

	for _, c := range a {
		assert.GreaterOrEqual(t, c.X.Raw(), fixed.MustInt(-2).Raw())
		assert.LessOrEqual(t, c.X.Raw(), fixed.MustInt(12).Raw())
	}
}

func TestNewRejectsUnknownGeometry(t *testing.T) {
	_, err := New(nil)
	assert.True(t, errors.Is(err, geofence.ErrInvalidGeometry))
}
