package oracle

import (
	"math/rand"

	"geofence/internal/fixed"
	"geofence/internal/geofence"
)

// Sample：在几何包围盒外扩十分之一的范围内取 n 个格点
// 约束：约一成的点直接取顶点，保证边界路径被覆盖；给定种子时序列可复现
func Sample(rng *rand.Rand, g geofence.Geometry, n int) []geofence.Coordinate {
	b := g.BBox()
	minX, maxX := b.Min.X.Raw(), b.Max.X.Raw()
	minY, maxY := b.Min.Y.Raw(), b.Max.Y.Raw()
	mx := (maxX-minX)/10 + 1
	my := (maxY-minY)/10 + 1

	var verts []geofence.Coordinate
	switch t := g.(type) {
	case geofence.Polygon:
		verts = vertices(t)
	case geofence.MultiPolygon:
		for _, p := range t.Polygons() {
			verts = append(verts, vertices(p)...)
		}
	}

	out := make([]geofence.Coordinate, 0, n)
	for i := 0; i < n; i++ {
		if len(verts) > 0 && rng.Intn(10) == 0 {
			out = append(out, verts[rng.Intn(len(verts))])
			continue
		}
		x := minX - mx + rng.Int63n(maxX-minX+2*mx+1)
		y := minY - my + rng.Int63n(maxY-minY+2*my+1)
		out = append(out, geofence.Coordinate{X: fixed.FromRaw(x), Y: fixed.FromRaw(y)})
	}
	return out
}

func vertices(p geofence.Polygon) []geofence.Coordinate {
	var out []geofence.Coordinate
	for _, r := range p.Rings() {
		out = append(out, r.Points()...)
	}
	return out
}
