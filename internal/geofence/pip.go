package geofence

import (
	"geofence/internal/fixed"

	"github.com/pkg/errors"
)

// 文档注释：点入多边形判定（Even-Odd，定点整数）
// 背景：确定性执行环境禁止浮点；全部判定只用整数减法与 128 位乘积的符号，不做除法。
// 约束：
//   - 水平射线指向 +X；边在 y 上按半开区间计数（恰有一个端点 y > py 才算跨越）
//   - 点与边共线且落在边的包围盒内即为边界（含顶点、洞的边）
//   - 重复顶点、共线顶点不会产生虚假跨越
//   - 复杂度 O(顶点数)，上限见 Geometry.Cost

// Locate：判定 pt 相对 g 的位置
func Locate(g Geometry, pt Coordinate) (Classification, error) {
	if g == nil {
		return Outside, errors.Wrap(ErrInvalidGeometry, "nil geometry")
	}
	return g.Locate(pt)
}

// Locate：外环命中且不在洞内视为内部；落在任一环的边上为边界
func (p Polygon) Locate(pt Coordinate) (Classification, error) {
	if len(p.rings) == 0 {
		return Outside, nil
	}
	c, err := locateRing(p.rings[0], pt)
	if err != nil || c != Inside {
		return c, err
	}
	for i := 1; i < len(p.rings); i++ {
		hc, err := locateRing(p.rings[i], pt)
		if err != nil {
			return Outside, errors.Wrapf(err, "hole %d", i-1)
		}
		switch hc {
		case OnBoundary:
			return OnBoundary, nil
		case Inside:
			return Outside, nil
		}
	}
	return Inside, nil
}

// Locate：任一成员内部即为内部；否则任一成员边界即为边界
func (m MultiPolygon) Locate(pt Coordinate) (Classification, error) {
	if !m.bbox.Contains(pt) {
		return Outside, nil
	}
	best := Outside
	for i, p := range m.polys {
		c, err := p.Locate(pt)
		if err != nil {
			return Outside, errors.Wrapf(err, "polygon %d", i)
		}
		if c == Inside {
			return Inside, nil
		}
		if c == OnBoundary {
			best = OnBoundary
		}
	}
	return best, nil
}

// locateRing：单环射线法判定
func locateRing(r Ring, pt Coordinate) (Classification, error) {
	// 快速包围盒过滤：盒外既不在内部也不在边上
	if !r.bbox.Contains(pt) {
		return Outside, nil
	}
	inside := false
	py := pt.Y.Raw()
	for i := 0; i+1 < len(r.pts); i++ {
		a, b := r.pts[i], r.pts[i+1]
		s, err := orient(a, b, pt)
		if err != nil {
			return Outside, errors.Wrapf(err, "edge %d", i)
		}
		if s == 0 && inSegmentBox(a, b, pt) {
			return OnBoundary, nil
		}
		ay, by := a.Y.Raw(), b.Y.Raw()
		if (ay > py) == (by > py) {
			continue
		}
		// 向上的边点在左侧、向下的边点在右侧，交点位于射线上
		if (by > ay && s > 0) || (by < ay && s < 0) {
			inside = !inside
		}
	}
	if inside {
		return Inside, nil
	}
	return Outside, nil
}

// orient：(b-a)×(p-a) 的符号；>0 表示 p 在 a→b 左侧
func orient(a, b, p Coordinate) (int, error) {
	abx, err := b.X.Sub(a.X)
	if err != nil {
		return 0, err
	}
	aby, err := b.Y.Sub(a.Y)
	if err != nil {
		return 0, err
	}
	apx, err := p.X.Sub(a.X)
	if err != nil {
		return 0, err
	}
	apy, err := p.Y.Sub(a.Y)
	if err != nil {
		return 0, err
	}
	return fixed.MulCmp(abx, apy, aby, apx), nil
}

func inSegmentBox(a, b, p Coordinate) bool {
	return between(p.X.Raw(), a.X.Raw(), b.X.Raw()) && between(p.Y.Raw(), a.Y.Raw(), b.Y.Raw())
}

func between(v, e1, e2 int64) bool {
	if e1 > e2 {
		e1, e2 = e2, e1
	}
	return v >= e1 && v <= e2
}
