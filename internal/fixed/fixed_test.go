package fixed

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDecimalRoundsHalfToEven(t *testing.T) {
	cases := []struct {
		in  string
		raw int64
	}{
		{"0", 0},
		{"1", 10_000_000},
		{"-73.9857", -739_857_000},
		{"0.00000005", 0},
		{"0.00000015", 2},
		{"0.00000025", 2},
		{"-0.00000025", -2},
		{"-0.00000035", -4},
		{"0.000000051", 1},
		{"1.5e-7", 2},
		{"12.345678949999", 123_456_789},
	}
	for _, c := range cases {
		v, err := FromDecimal(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.raw, v.Raw(), c.in)
	}
}

func TestFromDecimalErrors(t *testing.T) {
	_, err := FromDecimal("abc")
	require.True(t, errors.Is(err, ErrSyntax))

	_, err = FromDecimal("1e20")
	require.True(t, errors.Is(err, ErrRange))

	_, err = FromDecimal("-922337203685.4775808")
	require.NoError(t, err)
	_, err = FromDecimal("-922337203685.4775809")
	require.True(t, errors.Is(err, ErrRange))
}

func TestFromFloat64(t *testing.T) {
	v, err := FromFloat64(0.1)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), v.Raw())

	_, err = FromFloat64(math.NaN())
	require.True(t, errors.Is(err, ErrRange))
	_, err = FromFloat64(math.Inf(-1))
	require.True(t, errors.Is(err, ErrRange))
}

func TestString(t *testing.T) {
	assert.Equal(t, "10", MustInt(10).String())
	assert.Equal(t, "-0.0000001", FromRaw(-1).String())
	assert.Equal(t, "40.7128", MustDecimal("40.71280").String())
}

func TestAddSubOverflow(t *testing.T) {
	v, err := MustInt(2).Add(MustInt(3))
	require.NoError(t, err)
	assert.Equal(t, MustInt(5), v)

	_, err = Max.Add(FromRaw(1))
	require.True(t, errors.Is(err, ErrOverflow))
	_, err = Min.Add(FromRaw(-1))
	require.True(t, errors.Is(err, ErrOverflow))

	v, err = MustInt(2).Sub(MustInt(5))
	require.NoError(t, err)
	assert.Equal(t, MustInt(-3), v)

	_, err = Min.Sub(FromRaw(1))
	require.True(t, errors.Is(err, ErrOverflow))
	_, err = Max.Sub(FromRaw(-1))
	require.True(t, errors.Is(err, ErrOverflow))
	_, err = Zero.Sub(Min)
	require.True(t, errors.Is(err, ErrOverflow))

	v, err = FromRaw(-1).Sub(Max)
	require.NoError(t, err)
	assert.Equal(t, Min, v)
}

func TestMul(t *testing.T) {
	v, err := MustDecimal("1.5").Mul(MustDecimal("-2"))
	require.NoError(t, err)
	assert.Equal(t, MustDecimal("-3"), v)

	// 0.0000001 * 0.5 = 0.00000005 -> 0（偶数）
	v, err = FromRaw(1).Mul(MustDecimal("0.5"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), v.Raw())

	// 0.0000003 * 0.5 = 0.00000015 -> 0.0000002
	v, err = FromRaw(3).Mul(MustDecimal("0.5"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.Raw())

	v, err = FromRaw(-3).Mul(MustDecimal("0.5"))
	require.NoError(t, err)
	assert.Equal(t, int64(-2), v.Raw())

	_, err = Max.Mul(MustInt(2))
	require.True(t, errors.Is(err, ErrOverflow))
	_, err = Min.Mul(MustInt(-1))
	require.True(t, errors.Is(err, ErrOverflow))

	v, err = Min.Mul(One)
	require.NoError(t, err)
	assert.Equal(t, Min, v)
}

func TestNegAbs(t *testing.T) {
	_, err := Min.Neg()
	require.True(t, errors.Is(err, ErrOverflow))
	v, err := MustInt(-4).Abs()
	require.NoError(t, err)
	assert.Equal(t, MustInt(4), v)
}

func TestMulCmp(t *testing.T) {
	assert.Equal(t, 0, MulCmp(FromRaw(3), FromRaw(4), FromRaw(2), FromRaw(6)))
	assert.Equal(t, 1, MulCmp(FromRaw(3), FromRaw(5), FromRaw(2), FromRaw(6)))
	assert.Equal(t, -1, MulCmp(FromRaw(-3), FromRaw(5), FromRaw(2), FromRaw(6)))

	// 乘积超出 int64 时仍然精确
	assert.Equal(t, 1, MulCmp(Max, Max, Max, FromRaw(math.MaxInt64-1)))
	assert.Equal(t, -1, MulCmp(Min, Max, Max, Max))
	assert.Equal(t, 1, MulCmp(Min, Min, Max, Max))
	assert.Equal(t, 0, MulCmp(Min, Zero, Zero, Max))
	assert.Equal(t, -1, MulCmp(Min, FromRaw(1), Min, FromRaw(-1)))
}

func TestCmp(t *testing.T) {
	assert.Equal(t, -1, MustInt(1).Cmp(MustInt(2)))
	assert.Equal(t, 1, MustInt(2).Cmp(MustInt(1)))
	assert.Equal(t, 0, MustInt(2).Cmp(MustDecimal("2.00")))
	assert.Equal(t, -1, FromRaw(-1).Sign())
	assert.True(t, Min.Less(Max))
}
