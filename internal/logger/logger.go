// 包 logger：统一初始化与获取日志器，避免各模块重复配置；通过环境变量或命令行控制日志级别与输出格式
package logger

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options：日志参数，可直接嵌入 go-flags 选项结构
type Options struct {
	Level  string `long:"log-level"  env:"LOG_LEVEL"  description:"Log level (trace, debug, info, warn, error)" default:"info"`
	Format string `long:"log-format" env:"LOG_FORMAT" description:"Log format" choice:"text" choice:"json" default:"text"`
}

// 默认日志器：在进程级复用，避免多处初始化导致输出不一致
var defaultLogger atomic.Pointer[zerolog.Logger]

// Setup：按选项初始化默认日志器，同时替换 zerolog 全局 log.Logger
// 约束：输出目标固定为标准错误
func (o Options) Setup() *zerolog.Logger {
	return o.setup(os.Stderr)
}

func (o Options) setup(out io.Writer) *zerolog.Logger {
	lvl := parseLevel(o.Level)
	w := out
	if !strings.EqualFold(o.Format, "json") {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	l := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	log.Logger = l
	defaultLogger.Store(&l)
	return &l
}

// Setup：读取 LOG_LEVEL / LOG_FORMAT 初始化默认日志器
func Setup() *zerolog.Logger {
	return Options{Level: os.Getenv("LOG_LEVEL"), Format: os.Getenv("LOG_FORMAT")}.Setup()
}

// L：获取默认日志器；未初始化时回退到 Setup
func L() *zerolog.Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	return Setup()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	}
	return zerolog.InfoLevel
}
