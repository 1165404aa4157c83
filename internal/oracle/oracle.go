// 包 oracle：浮点参考实现，用于交叉校验定点判定结果
// 约束：仅供测试与 cmd/crosscheck 使用，生产路径（api、geofence、服务入口）不得引用
package oracle

import (
	"fmt"
	"math"

	"geofence/internal/geofence"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/pkg/errors"
)

// Tolerance：一个定点精度单位；距边不超过该值的点允许两侧结论不一致
const Tolerance = 1e-7

// slack：十进制到 float64 的换算误差
const slack = 1e-12

// Verdict：单点校验结论
type Verdict uint8

const (
	Agree Verdict = iota
	// Tolerated：点贴近边界，浮点结论不可信，不参与比较
	Tolerated
	Disagree
)

func (v Verdict) String() string {
	switch v {
	case Agree:
		return "agree"
	case Tolerated:
		return "tolerated"
	}
	return "disagree"
}

// Mismatch：判定结果与参考实现冲突
type Mismatch struct {
	Point    geofence.Coordinate
	Engine   geofence.Classification
	Oracle   bool
	Distance float64
}

func (m *Mismatch) Error() string {
	return fmt.Sprintf("point %s: engine=%s oracle_inside=%t edge_distance=%g", m.Point, m.Engine, m.Oracle, m.Distance)
}

// Validator：已转换为 orb 表示的几何
type Validator struct {
	geom orb.Geometry
	segs [][2]orb.Point
}

// New：将定点几何转换为浮点几何
func New(g geofence.Geometry) (*Validator, error) {
	v := &Validator{}
	switch t := g.(type) {
	case geofence.Polygon:
		p := v.polygon(t)
		v.geom = p
	case geofence.MultiPolygon:
		mp := make(orb.MultiPolygon, 0, len(t.Polygons()))
		for _, p := range t.Polygons() {
			mp = append(mp, v.polygon(p))
		}
		v.geom = mp
	default:
		return nil, errors.Wrapf(geofence.ErrInvalidGeometry, "oracle cannot convert %T", g)
	}
	return v, nil
}

func (v *Validator) polygon(p geofence.Polygon) orb.Polygon {
	rings := p.Rings()
	out := make(orb.Polygon, 0, len(rings))
	for _, r := range rings {
		ring := make(orb.Ring, 0, r.Len())
		for _, c := range r.Points() {
			ring = append(ring, point(c))
		}
		for i := 0; i+1 < len(ring); i++ {
			v.segs = append(v.segs, [2]orb.Point{ring[i], ring[i+1]})
		}
		out = append(out, ring)
	}
	return out
}

func point(c geofence.Coordinate) orb.Point {
	return orb.Point{c.X.Float64(), c.Y.Float64()}
}

// Contains：浮点包含判定（orb 将外环边界视为内部、洞的边界视为外部）
func (v *Validator) Contains(c geofence.Coordinate) bool {
	p := point(c)
	switch g := v.geom.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	}
	return false
}

// Distance：到最近边的距离
func (v *Validator) Distance(c geofence.Coordinate) float64 {
	p := point(c)
	d := math.Inf(1)
	for _, s := range v.segs {
		if x := planar.DistanceFromSegment(s[0], s[1], p); x < d {
			d = x
		}
	}
	return d
}

// Check：比较定点判定结果与参考实现
// 约束：距边超过 Tolerance 时，Inside 必须与浮点包含一致，且不得为 OnBoundary；违反时返回 *Mismatch
func (v *Validator) Check(c geofence.Coordinate, got geofence.Classification) (Verdict, error) {
	d := v.Distance(c)
	if d <= Tolerance+slack {
		return Tolerated, nil
	}
	in := v.Contains(c)
	if got == geofence.OnBoundary || (got == geofence.Inside) != in {
		return Disagree, &Mismatch{Point: c, Engine: got, Oracle: in, Distance: d}
	}
	return Agree, nil
}

// Check：一次性校验
func Check(g geofence.Geometry, c geofence.Coordinate, got geofence.Classification) (Verdict, error) {
	v, err := New(g)
	if err != nil {
		return Disagree, err
	}
	return v.Check(c, got)
}
