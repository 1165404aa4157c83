package geofence

import (
	"strings"

	"github.com/pkg/errors"
)

// Classification：点与几何的三态关系
type Classification uint8

const (
	Outside Classification = iota
	OnBoundary
	Inside
)

func (c Classification) String() string {
	switch c {
	case Outside:
		return "outside"
	case OnBoundary:
		return "on_boundary"
	case Inside:
		return "inside"
	}
	return "unknown"
}

func (c Classification) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Classification) UnmarshalText(b []byte) error {
	switch string(b) {
	case "outside":
		*c = Outside
	case "on_boundary":
		*c = OnBoundary
	case "inside":
		*c = Inside
	default:
		return errors.Errorf("unknown classification %q", b)
	}
	return nil
}

// BoundaryPolicy：边界点是否计为包含
// 背景：地理围栏产品两种约定都常见，由配置决定；默认包含
type BoundaryPolicy uint8

const (
	BoundaryInclusive BoundaryPolicy = iota
	BoundaryExclusive
)

// Contains：将三态结果按策略折算为布尔
func (p BoundaryPolicy) Contains(c Classification) bool {
	if c == OnBoundary {
		return p == BoundaryInclusive
	}
	return c == Inside
}

func (p BoundaryPolicy) String() string {
	if p == BoundaryExclusive {
		return "exclusive"
	}
	return "inclusive"
}

func (p BoundaryPolicy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *BoundaryPolicy) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "", "inclusive":
		*p = BoundaryInclusive
	case "exclusive":
		*p = BoundaryExclusive
	default:
		return errors.Errorf("unknown boundary policy %q", b)
	}
	return nil
}
