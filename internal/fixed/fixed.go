// 包 fixed：确定性定点数，替代浮点参与坐标存储与全部中间运算
package fixed

import (
	"math"
	"math/bits"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	// Decimals：小数位数（1e-7，经纬度下约 1cm）
	Decimals = 7
	// Scale：原始整数与实际数值的换算因子
	Scale int64 = 10_000_000
)

var (
	ErrOverflow = errors.New("fixed-point overflow")
	ErrRange    = errors.New("value out of fixed-point range")
	ErrSyntax   = errors.New("invalid decimal")
)

// Value：按 Scale 缩放的有符号整数
// 约束：运算结果只取决于操作数的值；溢出返回 ErrOverflow，不回绕
type Value struct {
	raw int64
}

var (
	Zero = Value{}
	One  = Value{raw: Scale}
	Max  = Value{raw: math.MaxInt64}
	Min  = Value{raw: math.MinInt64}
)

// FromRaw：直接以原始整数构造（raw = 数值 × Scale）
func FromRaw(raw int64) Value { return Value{raw: raw} }

// FromInt：整数构造，超出范围时返回 ErrRange
func FromInt(n int64) (Value, error) {
	hi, lo := mulSigned(n, Scale)
	if !fitsInt64(hi, lo) {
		return Value{}, errors.Wrapf(ErrRange, "integer %d", n)
	}
	return Value{raw: int64(lo)}, nil
}

// MustInt：测试与常量场景使用
func MustInt(n int64) Value {
	v, err := FromInt(n)
	if err != nil {
		panic(err)
	}
	return v
}

// FromDecimal：十进制字符串精确解析后按银行家舍入（round-half-to-even）截到 7 位小数
// 约束：接受科学计数法；结果不在 int64 范围内返回 ErrRange
func FromDecimal(s string) (Value, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Value{}, errors.Wrapf(ErrSyntax, "%q", s)
	}
	return fromDecimal(d, s)
}

// FromFloat64：浮点按最短十进制表示转换，舍入规则与 FromDecimal 相同
// 约束：仅用于外部浮点输入的边界转换（如 IP 定位结果），不参与确定性路径的运算
func FromFloat64(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, errors.Wrapf(ErrRange, "float %v", f)
	}
	return fromDecimal(decimal.NewFromFloat(f), "")
}

// MustDecimal：测试与常量场景使用
func MustDecimal(s string) Value {
	v, err := FromDecimal(s)
	if err != nil {
		panic(err)
	}
	return v
}

func fromDecimal(d decimal.Decimal, src string) (Value, error) {
	scaled := d.Shift(Decimals).RoundBank(0)
	bi := scaled.BigInt()
	if !bi.IsInt64() {
		if src == "" {
			src = d.String()
		}
		return Value{}, errors.Wrapf(ErrRange, "decimal %s", src)
	}
	return Value{raw: bi.Int64()}, nil
}

func (v Value) Raw() int64 { return v.raw }

// Decimal：精确的十进制表示
func (v Value) Decimal() decimal.Decimal { return decimal.New(v.raw, -Decimals) }

func (v Value) String() string { return v.Decimal().String() }

// Float64：近似浮点，仅供参考实现比对与展示
func (v Value) Float64() float64 { return v.Decimal().InexactFloat64() }

func (v Value) Add(o Value) (Value, error) {
	s := v.raw + o.raw
	// 同号相加结果变号即溢出
	if (v.raw >= 0) == (o.raw >= 0) && (s >= 0) != (v.raw >= 0) {
		return Value{}, errors.Wrapf(ErrOverflow, "%d + %d", v.raw, o.raw)
	}
	return Value{raw: s}, nil
}

func (v Value) Sub(o Value) (Value, error) {
	d := v.raw - o.raw
	if (v.raw >= 0) != (o.raw >= 0) && (d >= 0) != (v.raw >= 0) {
		return Value{}, errors.Wrapf(ErrOverflow, "%d - %d", v.raw, o.raw)
	}
	return Value{raw: d}, nil
}

// Mul：定点乘法，(a×b)/Scale 以 round-half-to-even 舍入
func (v Value) Mul(o Value) (Value, error) {
	neg := (v.raw < 0) != (o.raw < 0)
	hi, lo := bits.Mul64(absU(v.raw), absU(o.raw))
	if hi >= uint64(Scale) {
		return Value{}, errors.Wrapf(ErrOverflow, "%d * %d", v.raw, o.raw)
	}
	q, r := bits.Div64(hi, lo, uint64(Scale))
	half := uint64(Scale) / 2
	if r > half || (r == half && q&1 == 1) {
		if q == math.MaxUint64 {
			return Value{}, errors.Wrapf(ErrOverflow, "%d * %d", v.raw, o.raw)
		}
		q++
	}
	return fromMagnitude(q, neg, v, o)
}

func fromMagnitude(q uint64, neg bool, a, b Value) (Value, error) {
	if neg {
		if q > 1<<63 {
			return Value{}, errors.Wrapf(ErrOverflow, "%d * %d", a.raw, b.raw)
		}
		return Value{raw: int64(-q)}, nil
	}
	if q > math.MaxInt64 {
		return Value{}, errors.Wrapf(ErrOverflow, "%d * %d", a.raw, b.raw)
	}
	return Value{raw: int64(q)}, nil
}

func (v Value) Neg() (Value, error) {
	if v.raw == math.MinInt64 {
		return Value{}, errors.Wrap(ErrOverflow, "negate min")
	}
	return Value{raw: -v.raw}, nil
}

func (v Value) Abs() (Value, error) {
	if v.raw < 0 {
		return v.Neg()
	}
	return v, nil
}

func (v Value) Cmp(o Value) int {
	switch {
	case v.raw < o.raw:
		return -1
	case v.raw > o.raw:
		return 1
	}
	return 0
}

func (v Value) Sign() int { return v.Cmp(Zero) }

func (v Value) Less(o Value) bool { return v.raw < o.raw }

// MulCmp：返回 a×b − c×d 的符号（-1/0/1）
// 约束：128 位精确乘积，任何 int64 输入都不会溢出；只比较原始整数，不做缩放
func MulCmp(a, b, c, d Value) int {
	h1, l1 := mulSigned(a.raw, b.raw)
	h2, l2 := mulSigned(c.raw, d.raw)
	switch {
	case h1 < h2:
		return -1
	case h1 > h2:
		return 1
	case l1 < l2:
		return -1
	case l1 > l2:
		return 1
	}
	return 0
}

// mulSigned：有符号 64×64 → 128 位（hi 有符号，lo 无符号）
func mulSigned(a, b int64) (int64, uint64) {
	hi, lo := bits.Mul64(absU(a), absU(b))
	if (a < 0) != (b < 0) {
		lo = ^lo + 1
		hi = ^hi
		if lo == 0 {
			hi++
		}
	}
	return int64(hi), lo
}

func fitsInt64(hi int64, lo uint64) bool {
	if hi == 0 {
		return lo <= math.MaxInt64
	}
	if hi == -1 {
		return lo > math.MaxInt64
	}
	return false
}

func absU(x int64) uint64 {
	if x < 0 {
		return uint64(-x)
	}
	return uint64(x)
}
