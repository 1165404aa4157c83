// 包 config：服务配置文件（YAML）读取与默认值
package config

import (
	"os"
	"path/filepath"
	"time"

	"geofence/internal/geofence"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config：config.yaml 根结构
type Config struct {
	// Boundary：边界点是否计为包含（inclusive / exclusive）
	Boundary geofence.BoundaryPolicy `yaml:"boundary"`
	// Geographic：摄入时按经纬度校验坐标范围
	Geographic bool `yaml:"geographic"`
	// Seeds：注册表为空时启动加载的 GeoJSON 文件
	Seeds []string    `yaml:"seeds,omitempty"`
	Cache CacheConfig `yaml:"cache"`
	// GeoIPDB：mmdb 路径；为空时不启用 locate-ip
	GeoIPDB string `yaml:"geoip_db,omitempty"`
}

type CacheConfig struct {
	Size     int           `yaml:"size"`
	TTL      time.Duration `yaml:"ttl"`
	RedisTTL time.Duration `yaml:"redis_ttl"`
}

// Default：未提供配置文件时的取值
func Default() *Config {
	return &Config{
		Boundary: geofence.BoundaryInclusive,
		Cache:    CacheConfig{Size: 100_000, TTL: 10 * time.Minute, RedisTTL: time.Hour},
	}
}

// Load：读取并解析 YAML；文件不存在时返回默认配置
// 约束：相对路径的种子文件按配置文件所在目录解析
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", filepath.Base(path))
	}
	if cfg.Cache.Size < 0 {
		return nil, errors.Errorf("cache.size must not be negative, got %d", cfg.Cache.Size)
	}
	base := filepath.Dir(path)
	for i, s := range cfg.Seeds {
		if !filepath.IsAbs(s) {
			cfg.Seeds[i] = filepath.Join(base, s)
		}
	}
	if cfg.GeoIPDB != "" && !filepath.IsAbs(cfg.GeoIPDB) {
		cfg.GeoIPDB = filepath.Join(base, cfg.GeoIPDB)
	}
	return cfg, nil
}

// DecodeOptions：摄入选项
func (c *Config) DecodeOptions() geofence.DecodeOptions {
	return geofence.DecodeOptions{Geographic: c.Geographic}
}
