package geofence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"geofence/internal/fixed"

	"github.com/pkg/errors"
)

// 文档注释：GeoJSON 摄入边界
// 背景：几何以 GeoJSON 嵌套坐标格式进入系统；在此一次性完成十进制到定点的舍入（round-half-to-even）。
// 约束：
//   - 仅支持 Polygon / MultiPolygon 几何，以及承载它们的 Feature / FeatureCollection
//   - 数字按 json.Number 解析，不经过 float64，舍入结果与执行方无关
//   - 任一坐标或环出错时整体拒绝，不产生部分结果

// DecodeOptions：摄入选项
type DecodeOptions struct {
	// Geographic：按经纬度校验范围
	Geographic bool
}

// Feature：一个带元数据的几何
type Feature struct {
	Name     string
	Geometry Geometry
	Metadata Metadata
}

type rawObject struct {
	Type        string            `json:"type"`
	ID          json.RawMessage   `json:"id,omitempty"`
	Coordinates json.RawMessage   `json:"coordinates,omitempty"`
	Geometry    json.RawMessage   `json:"geometry,omitempty"`
	Properties  map[string]any    `json:"properties,omitempty"`
	Features    []json.RawMessage `json:"features,omitempty"`
}

// DecodeGeometry：解析单个几何（裸几何对象或 Feature）
func DecodeGeometry(data []byte, opts DecodeOptions) (Geometry, error) {
	fs, err := DecodeFeatures(bytes.NewReader(data), opts)
	if err != nil {
		return nil, err
	}
	if len(fs) != 1 {
		return nil, errors.Wrapf(ErrInvalidGeometry, "expected one geometry, got %d", len(fs))
	}
	return fs[0].Geometry, nil
}

// DecodeFeatures：解析 FeatureCollection / Feature / 裸几何
func DecodeFeatures(r io.Reader, opts DecodeOptions) ([]Feature, error) {
	var obj rawObject
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil, errors.Wrap(err, "decode geojson")
	}
	switch strings.ToLower(obj.Type) {
	case "featurecollection":
		out := make([]Feature, 0, len(obj.Features))
		for i, raw := range obj.Features {
			var f rawObject
			if err := unmarshalNumber(raw, &f); err != nil {
				return nil, errors.Wrapf(err, "feature %d", i)
			}
			ft, err := decodeFeature(f, opts)
			if err != nil {
				return nil, errors.Wrapf(err, "feature %d", i)
			}
			out = append(out, ft)
		}
		return out, nil
	case "feature":
		ft, err := decodeFeature(obj, opts)
		if err != nil {
			return nil, err
		}
		return []Feature{ft}, nil
	default:
		g, err := decodeGeometry(obj, opts)
		if err != nil {
			return nil, err
		}
		return []Feature{{Geometry: g, Metadata: Metadata{}}}, nil
	}
}

// LoadFile：从文件读取要素
func LoadFile(path string, opts DecodeOptions) ([]Feature, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open geojson")
	}
	defer f.Close()
	fs, err := DecodeFeatures(f, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", filepath.Base(path))
	}
	return fs, nil
}

func decodeFeature(f rawObject, opts DecodeOptions) (Feature, error) {
	if len(f.Geometry) == 0 || string(f.Geometry) == "null" {
		return Feature{}, errors.Wrap(ErrInvalidGeometry, "feature without geometry")
	}
	var gobj rawObject
	if err := unmarshalNumber(f.Geometry, &gobj); err != nil {
		return Feature{}, err
	}
	g, err := decodeGeometry(gobj, opts)
	if err != nil {
		return Feature{}, err
	}
	meta := propertiesToMetadata(f.Properties)
	name := meta.Name()
	if name == "" && len(f.ID) > 0 {
		name = strings.Trim(string(f.ID), `"`)
		meta["name"] = name
	}
	return Feature{Name: name, Geometry: g, Metadata: meta}, nil
}

func decodeGeometry(obj rawObject, opts DecodeOptions) (Geometry, error) {
	var g Geometry
	switch strings.ToLower(obj.Type) {
	case "polygon":
		var coords [][][]json.Number
		if err := json.Unmarshal(obj.Coordinates, &coords); err != nil {
			return nil, errors.Wrap(err, "polygon coordinates")
		}
		p, err := polygonFromNumbers(coords)
		if err != nil {
			return nil, err
		}
		g = p
	case "multipolygon":
		var coords [][][][]json.Number
		if err := json.Unmarshal(obj.Coordinates, &coords); err != nil {
			return nil, errors.Wrap(err, "multipolygon coordinates")
		}
		polys := make([]Polygon, 0, len(coords))
		for i, pc := range coords {
			p, err := polygonFromNumbers(pc)
			if err != nil {
				return nil, errors.Wrapf(err, "polygon %d", i)
			}
			polys = append(polys, p)
		}
		if len(polys) == 0 {
			return nil, errors.Wrap(ErrInvalidGeometry, "empty multipolygon")
		}
		g = NewMultiPolygon(polys...)
	default:
		return nil, errors.Wrapf(ErrInvalidGeometry, "unsupported geometry type %q", obj.Type)
	}
	if opts.Geographic {
		if err := CheckGeographic(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func polygonFromNumbers(rings [][][]json.Number) (Polygon, error) {
	pts := make([][]Coordinate, 0, len(rings))
	for i, ring := range rings {
		rp := make([]Coordinate, 0, len(ring))
		for j, pos := range ring {
			// 额外的高程维度忽略
			if len(pos) < 2 {
				return Polygon{}, errors.Wrapf(ErrInvalidGeometry, "ring %d position %d has %d values", i, j, len(pos))
			}
			c, err := ParseCoordinate(pos[0].String(), pos[1].String())
			if err != nil {
				return Polygon{}, errors.Wrapf(err, "ring %d position %d", i, j)
			}
			rp = append(rp, c)
		}
		pts = append(pts, rp)
	}
	return NewPolygonFromPoints(pts...)
}

func unmarshalNumber(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func propertiesToMetadata(props map[string]any) Metadata {
	meta := make(Metadata, len(props))
	for k, v := range props {
		switch x := v.(type) {
		case nil:
		case string:
			meta[k] = x
		case json.Number:
			meta[k] = x.String()
		case bool:
			meta[k] = fmt.Sprint(x)
		default:
			if b, err := json.Marshal(x); err == nil {
				meta[k] = string(b)
			}
		}
	}
	return meta
}

type encodedGeometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// EncodeGeometry：以精确十进制输出 GeoJSON
func EncodeGeometry(g Geometry) ([]byte, error) {
	switch v := g.(type) {
	case Polygon:
		return json.Marshal(encodedGeometry{Type: v.Kind(), Coordinates: polygonNumbers(v)})
	case MultiPolygon:
		out := make([][][][]json.Number, 0, len(v.polys))
		for _, p := range v.polys {
			out = append(out, polygonNumbers(p))
		}
		return json.Marshal(encodedGeometry{Type: v.Kind(), Coordinates: out})
	}
	return nil, errors.Wrapf(ErrInvalidGeometry, "cannot encode %T", g)
}

func polygonNumbers(p Polygon) [][][]json.Number {
	out := make([][][]json.Number, 0, len(p.rings))
	for _, r := range p.rings {
		ring := make([][]json.Number, 0, len(r.pts))
		for _, c := range r.pts {
			ring = append(ring, []json.Number{number(c.X), number(c.Y)})
		}
		out = append(out, ring)
	}
	return out
}

func number(v fixed.Value) json.Number { return json.Number(v.String()) }
