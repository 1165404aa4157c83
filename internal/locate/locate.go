// 包 locate：IP 地址到坐标的解析，基于 MaxMind 格式（mmdb）数据库
// 背景：围栏查询常以请求方 IP 作为位置来源；浮点经纬度在此一次性转换为定点坐标，之后的判定与浮点无关。
// 约束：只读；数据库打开后可并发查询
package locate

import (
	"net"
	"strings"

	"geofence/internal/fixed"
	"geofence/internal/geofence"
	"geofence/internal/logger"

	"github.com/oschwald/geoip2-golang"
	"github.com/oschwald/maxminddb-golang"
	"github.com/pkg/errors"
)

var (
	ErrBadIP      = errors.New("invalid ip address")
	ErrNoLocation = errors.New("ip has no location")
)

// Location：一次解析结果（X=经度，Y=纬度）
type Location struct {
	Point      geofence.Coordinate `json:"-"`
	Network    string              `json:"network,omitempty"`
	Country    string              `json:"country,omitempty"`
	City       string              `json:"city,omitempty"`
	AccuracyKm uint16              `json:"accuracy_km,omitempty"`
}

// genericRecord：非 GeoIP2 City 库（如 DB-IP、自建库）的最小公共字段
type genericRecord struct {
	Location struct {
		Latitude       float64 `maxminddb:"latitude"`
		Longitude      float64 `maxminddb:"longitude"`
		AccuracyRadius uint16  `maxminddb:"accuracy_radius"`
	} `maxminddb:"location"`
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// Locator：mmdb 读取器
type Locator struct {
	raw  *maxminddb.Reader
	city *geoip2.Reader
}

// Open：打开 mmdb；City 类型库使用 geoip2 的结构化记录，其余按通用字段读取
func Open(path string) (*Locator, error) {
	raw, err := maxminddb.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open mmdb")
	}
	l := &Locator{raw: raw}
	if strings.Contains(raw.Metadata.DatabaseType, "City") {
		city, err := geoip2.Open(path)
		if err != nil {
			_ = raw.Close()
			return nil, errors.Wrap(err, "open geoip2 city")
		}
		l.city = city
	}
	logger.L().Info().
		Str("path", path).
		Str("type", raw.Metadata.DatabaseType).
		Uint("ip_version", raw.Metadata.IPVersion).
		Msg("mmdb_ready")
	return l, nil
}

func (l *Locator) Close() error {
	if l.city != nil {
		_ = l.city.Close()
	}
	return l.raw.Close()
}

// Lookup：解析 IP 为定点坐标
func (l *Locator) Lookup(ip string) (Location, error) {
	addr := net.ParseIP(strings.TrimSpace(ip))
	if addr == nil {
		return Location{}, errors.Wrapf(ErrBadIP, "%q", ip)
	}
	var rec genericRecord
	network, ok, err := l.raw.LookupNetwork(addr, &rec)
	if err != nil {
		return Location{}, errors.Wrap(err, "mmdb lookup")
	}
	if !ok {
		return Location{}, errors.Wrapf(ErrNoLocation, "%s not in database", addr)
	}
	out := Location{Country: rec.Country.ISOCode, AccuracyKm: rec.Location.AccuracyRadius}
	if network != nil {
		out.Network = network.String()
	}
	lat, lon := rec.Location.Latitude, rec.Location.Longitude
	if l.city != nil {
		c, err := l.city.City(addr)
		if err != nil {
			return Location{}, errors.Wrap(err, "geoip2 city")
		}
		lat, lon = c.Location.Latitude, c.Location.Longitude
		out.AccuracyKm = c.Location.AccuracyRadius
		out.City = c.City.Names["en"]
		if c.Country.IsoCode != "" {
			out.Country = c.Country.IsoCode
		}
	}
	// 库中缺失坐标时两个字段均为零值
	if lat == 0 && lon == 0 && out.AccuracyKm == 0 {
		return Location{}, errors.Wrapf(ErrNoLocation, "%s has no coordinates", addr)
	}
	pt, err := ToCoordinate(lat, lon)
	if err != nil {
		return Location{}, err
	}
	out.Point = pt
	return out, nil
}

// ToCoordinate：经纬度浮点转定点坐标，并做地理范围校验
func ToCoordinate(lat, lon float64) (geofence.Coordinate, error) {
	x, err := fixed.FromFloat64(lon)
	if err != nil {
		return geofence.Coordinate{}, errors.Wrap(err, "longitude")
	}
	y, err := fixed.FromFloat64(lat)
	if err != nil {
		return geofence.Coordinate{}, errors.Wrap(err, "latitude")
	}
	c, err := geofence.NewCoordinate(x, y)
	if err != nil {
		return geofence.Coordinate{}, err
	}
	return c, c.CheckGeographic()
}
