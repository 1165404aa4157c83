package geofence

import (
	"geofence/internal/fixed"

	"github.com/pkg/errors"
)

// 文档注释：几何值类型（定点坐标、环、多边形、多面）
// 背景：几何在注册时一次性转换为定点表示，此后只读；查询期可无锁共享。
// 约束：所有访问器返回副本，调用方无法原地修改顶点。

// CoordinateLimit：坐标原始整数的绝对值上限
// 约束：任意两个合法坐标之差仍落在 int64 内，方向判定不会溢出
const CoordinateLimit int64 = 1<<62 - 1

// Coordinate：平面坐标（地理场景下 X=经度，Y=纬度）
type Coordinate struct {
	X fixed.Value
	Y fixed.Value
}

// NewCoordinate：带范围校验的构造
func NewCoordinate(x, y fixed.Value) (Coordinate, error) {
	c := Coordinate{X: x, Y: y}
	if err := c.checkRange(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

// ParseCoordinate：十进制字符串构造
func ParseCoordinate(x, y string) (Coordinate, error) {
	fx, err := fixed.FromDecimal(x)
	if err != nil {
		return Coordinate{}, errors.Wrap(err, "x")
	}
	fy, err := fixed.FromDecimal(y)
	if err != nil {
		return Coordinate{}, errors.Wrap(err, "y")
	}
	return NewCoordinate(fx, fy)
}

func (c Coordinate) checkRange() error {
	for _, v := range [2]fixed.Value{c.X, c.Y} {
		r := v.Raw()
		if r > CoordinateLimit || r < -CoordinateLimit {
			return errors.Wrapf(ErrRange, "coordinate %s outside ±%s", v, fixed.FromRaw(CoordinateLimit))
		}
	}
	return nil
}

var (
	lonLimit = fixed.MustInt(180)
	latLimit = fixed.MustInt(90)
)

// CheckGeographic：经纬度范围校验（X∈[-180,180]，Y∈[-90,90]）
func (c Coordinate) CheckGeographic() error {
	if c.X.Raw() > lonLimit.Raw() || c.X.Raw() < -lonLimit.Raw() {
		return errors.Wrapf(ErrRange, "longitude %s", c.X)
	}
	if c.Y.Raw() > latLimit.Raw() || c.Y.Raw() < -latLimit.Raw() {
		return errors.Wrapf(ErrRange, "latitude %s", c.Y)
	}
	return nil
}

func (c Coordinate) String() string { return "(" + c.X.String() + " " + c.Y.String() + ")" }

// BBox：闭区间包围盒
type BBox struct {
	Min Coordinate
	Max Coordinate
}

func (b BBox) Contains(c Coordinate) bool {
	return c.X.Raw() >= b.Min.X.Raw() && c.X.Raw() <= b.Max.X.Raw() &&
		c.Y.Raw() >= b.Min.Y.Raw() && c.Y.Raw() <= b.Max.Y.Raw()
}

func (b BBox) extend(o BBox) BBox {
	if o.Min.X.Less(b.Min.X) {
		b.Min.X = o.Min.X
	}
	if o.Min.Y.Less(b.Min.Y) {
		b.Min.Y = o.Min.Y
	}
	if b.Max.X.Less(o.Max.X) {
		b.Max.X = o.Max.X
	}
	if b.Max.Y.Less(o.Max.Y) {
		b.Max.Y = o.Max.Y
	}
	return b
}

// emptyBBox：不包含任何点
var emptyBBox = BBox{
	Min: Coordinate{X: fixed.Max, Y: fixed.Max},
	Max: Coordinate{X: fixed.Min, Y: fixed.Min},
}

// Ring：闭合环，首尾坐标相同
type Ring struct {
	pts  []Coordinate
	bbox BBox
}

// NewRing：校验并闭合环
// 约束：未闭合输入自动补齐首点；闭合后不同顶点少于 3 个返回 ErrInvalidGeometry；
// 自相交不拒绝，按奇偶规则判定
func NewRing(pts []Coordinate) (Ring, error) {
	if len(pts) == 0 {
		return Ring{}, errors.Wrap(ErrInvalidGeometry, "empty ring")
	}
	cp := make([]Coordinate, len(pts), len(pts)+1)
	copy(cp, pts)
	if cp[0] != cp[len(cp)-1] {
		cp = append(cp, cp[0])
	}
	distinct := make(map[Coordinate]struct{}, len(cp))
	bbox := emptyBBox
	for _, c := range cp {
		if err := c.checkRange(); err != nil {
			return Ring{}, err
		}
		distinct[c] = struct{}{}
		bbox = bbox.extend(BBox{Min: c, Max: c})
	}
	if len(distinct) < 3 {
		return Ring{}, errors.Wrapf(ErrInvalidGeometry, "ring has %d distinct vertices, need 3", len(distinct))
	}
	return Ring{pts: cp, bbox: bbox}, nil
}

// Len：含闭合点的坐标数
func (r Ring) Len() int { return len(r.pts) }

func (r Ring) At(i int) Coordinate { return r.pts[i] }

func (r Ring) Points() []Coordinate { return append([]Coordinate(nil), r.pts...) }

func (r Ring) BBox() BBox { return r.bbox }

// edges：边数，即一次无过滤查询的边测试次数
func (r Ring) edges() uint64 {
	if len(r.pts) == 0 {
		return 0
	}
	return uint64(len(r.pts) - 1)
}

// Geometry：可注册的几何（Polygon 或 MultiPolygon）
type Geometry interface {
	// Locate：判定点相对几何的位置
	Locate(pt Coordinate) (Classification, error)
	// Cost：最坏情况下的边测试次数，可在查询前计算计费上限
	Cost() uint64
	BBox() BBox
	Kind() string
	geometry()
}

// Polygon：外环加若干洞
// 约束：洞是否嵌套在外环内不做几何校验，由调用方负责
type Polygon struct {
	rings []Ring
}

func NewPolygon(outer Ring, holes ...Ring) Polygon {
	rings := make([]Ring, 0, 1+len(holes))
	rings = append(rings, outer)
	rings = append(rings, holes...)
	return Polygon{rings: rings}
}

// NewPolygonFromPoints：按 GeoJSON 约定，第一环为外环，其后为洞
func NewPolygonFromPoints(rings ...[]Coordinate) (Polygon, error) {
	if len(rings) == 0 {
		return Polygon{}, errors.Wrap(ErrInvalidGeometry, "polygon without rings")
	}
	out := make([]Ring, 0, len(rings))
	for i, pts := range rings {
		r, err := NewRing(pts)
		if err != nil {
			return Polygon{}, errors.Wrapf(err, "ring %d", i)
		}
		out = append(out, r)
	}
	return Polygon{rings: out}, nil
}

func (p Polygon) Outer() Ring {
	if len(p.rings) == 0 {
		return Ring{}
	}
	return p.rings[0]
}

func (p Polygon) Holes() []Ring {
	if len(p.rings) < 2 {
		return nil
	}
	return append([]Ring(nil), p.rings[1:]...)
}

func (p Polygon) Rings() []Ring { return append([]Ring(nil), p.rings...) }

func (p Polygon) Cost() uint64 {
	var n uint64
	for _, r := range p.rings {
		n += r.edges()
	}
	return n
}

func (p Polygon) BBox() BBox {
	if len(p.rings) == 0 {
		return emptyBBox
	}
	return p.rings[0].bbox
}

func (Polygon) Kind() string { return "Polygon" }
func (Polygon) geometry()    {}

// MultiPolygon：多面，任一成员包含即视为包含
type MultiPolygon struct {
	polys []Polygon
	bbox  BBox
}

func NewMultiPolygon(polys ...Polygon) MultiPolygon {
	cp := append([]Polygon(nil), polys...)
	bbox := emptyBBox
	for _, p := range cp {
		bbox = bbox.extend(p.BBox())
	}
	return MultiPolygon{polys: cp, bbox: bbox}
}

func (m MultiPolygon) Polygons() []Polygon { return append([]Polygon(nil), m.polys...) }

func (m MultiPolygon) Cost() uint64 {
	var n uint64
	for _, p := range m.polys {
		n += p.Cost()
	}
	return n
}

func (m MultiPolygon) BBox() BBox { return m.bbox }

func (MultiPolygon) Kind() string { return "MultiPolygon" }
func (MultiPolygon) geometry()    {}

// CheckGeographic：逐点经纬度范围校验
func CheckGeographic(g Geometry) error {
	var polys []Polygon
	switch v := g.(type) {
	case Polygon:
		polys = []Polygon{v}
	case MultiPolygon:
		polys = v.polys
	}
	for _, p := range polys {
		for _, r := range p.rings {
			for _, c := range r.pts {
				if err := c.CheckGeographic(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
