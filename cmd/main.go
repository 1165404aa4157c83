// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"geofence/internal/api"
	"geofence/internal/config"
	"geofence/internal/geofence"
	"geofence/internal/locate"
	"geofence/internal/logger"
	"geofence/internal/metrics"
	"geofence/internal/middleware"
	"geofence/internal/migrate"
	"geofence/internal/store"
	"geofence/internal/utils"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

type Options struct {
	Logger logger.Options `group:"Logger options"`

	ConfigFile string        `short:"c" long:"config"   env:"CONFIG_FILE" description:"Path to configuration file" default:"config.yaml"`
	Addr       string        `short:"a" long:"addr"     env:"ADDR"        description:"Address to listen on"       default:":8080"`
	APIBase    string        `long:"api-base"           env:"API_BASE"    description:"API path prefix"            default:"/api"`
	GeoIPDB    string        `long:"geoip-db"           env:"GEOIP_DB"    description:"mmdb path, overrides config"`
	NoDB       bool          `long:"no-db"              env:"PG_DISABLED" description:"Run with an in-memory registry only"`
	StatsFlush time.Duration `long:"stats-flush"        env:"STATS_FLUSH" description:"Interval for writing query statistics" default:"5s"`

	TLS struct {
		Enable   bool   `long:"enable"   env:"ENABLE"    description:"Serve HTTPS with a self-signed certificate when none exists"`
		CertPath string `long:"cert"     env:"CERT_PATH" description:"Certificate path" default:"data/certs/server.crt"`
		KeyPath  string `long:"key"      env:"KEY_PATH"  description:"Key path"         default:"data/certs/server.key"`
		Redirect string `long:"redirect" env:"REDIRECT_ADDR" description:"Optional plain HTTP listener redirecting to HTTPS"`
	} `group:"TLS options" namespace:"tls" env-namespace:"TLS"`
}

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	// 日志初始化
	l := opts.Logger.Setup()
	l.Debug().Str("base", opts.APIBase).Msg("config_api_base")

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		l.Fatal().Err(err).Str("path", opts.ConfigFile).Msg("config_error")
	}
	if opts.GeoIPDB != "" {
		cfg.GeoIPDB = opts.GeoIPDB
	}
	l.Debug().
		Str("boundary", cfg.Boundary.String()).
		Bool("geographic", cfg.Geographic).
		Int("cache_size", cfg.Cache.Size).
		Msg("config_loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := geofence.NewRegistry()
	svcOpts := api.Options{
		Policy:    cfg.Boundary,
		Decode:    cfg.DecodeOptions(),
		CacheSize: cfg.Cache.Size,
		CacheTTL:  cfg.Cache.TTL,
		RedisTTL:  cfg.Cache.RedisTTL,
	}

	// 背景：数据库是注册表的持久层；不可用时仍可以纯内存方式运行（重启后 ID 从 1 开始）
	if !opts.NoDB {
		db, err := utils.OpenPostgresFromEnv(ctx)
		if err != nil {
			l.Fatal().Err(err).Msg("db_open_error")
		}
		defer db.Close()
		l.Info().Msg("db_open_ok")
		if err := migrate.EnsureSchema(db); err != nil {
			l.Fatal().Err(err).Msg("schema_error")
		}
		st := store.AttachDB(db)
		n, err := st.RestoreInto(ctx, reg, svcOpts.Decode)
		if err != nil {
			l.Fatal().Err(err).Msg("restore_error")
		}
		l.Info().Int("geofences", n).Msg("registry_restored")
		epoch, err := st.CacheEpoch(ctx)
		if err != nil {
			l.Fatal().Err(err).Msg("cache_epoch_error")
		}
		svcOpts.Epoch = epoch
		svcOpts.Persister = st
		svcOpts.Stats = st
	} else {
		// 纯内存运行时 Epoch 留空，每次启动使用新的随机世代
		l.Warn().Msg("db_disabled")
	}

	if rc := utils.OpenRedisFromEnv(ctx); rc != nil {
		defer rc.Close()
		svcOpts.Redis = rc
	}

	if cfg.GeoIPDB != "" {
		loc, err := locate.Open(cfg.GeoIPDB)
		if err != nil {
			// 定位是可选能力，打开失败不影响围栏查询
			l.Error().Err(err).Str("path", cfg.GeoIPDB).Msg("mmdb_open_error")
		} else {
			defer loc.Close()
			svcOpts.Locator = loc
		}
	}

	svc := api.NewService(reg, svcOpts)
	if n, err := svc.LoadSeeds(ctx, cfg.Seeds); err != nil {
		l.Fatal().Err(err).Int("loaded", n).Msg("seed_error")
	}
	metrics.Geometries.Set(float64(reg.Len()))
	l.Debug().Str("epoch", svc.Epoch()).Msg("cache_epoch")

	flushed := make(chan struct{})
	go func() {
		defer close(flushed)
		svc.RunStatsFlusher(ctx, opts.StatsFlush)
	}()

	mux := http.NewServeMux()
	apiBase := strings.TrimSuffix(opts.APIBase, "/")
	guard := middleware.WriteGuardFromEnv()
	l.Debug().Bool("enabled", guard.Enabled()).Msg("write_guard")
	mux.Handle(apiBase+"/", http.StripPrefix(apiBase, guard.Wrap(api.BuildRoutes(svc))))
	mux.Handle(apiBase+"/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler)
	s := &http.Server{Addr: opts.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			l.Error().Err(err).Msg("shutdown_error")
		}
	}()

	if opts.TLS.Enable {
		if err := utils.EnsureSelfSignedCert(opts.TLS.CertPath, opts.TLS.KeyPath, "geofence.local"); err != nil {
			l.Fatal().Err(err).Msg("tls_cert_error")
		}
		if opts.TLS.Redirect != "" {
			go redirectHTTP(l, opts.TLS.Redirect, opts.Addr)
		}
		l.Info().Str("addr", opts.Addr).Str("cert", opts.TLS.CertPath).Msg("listening_tls")
		err = s.ListenAndServeTLS(opts.TLS.CertPath, opts.TLS.KeyPath)
	} else {
		l.Info().Str("addr", opts.Addr).Msg("listening")
		err = s.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		l.Fatal().Err(err).Msg("server_error")
	}
	stop()
	<-flushed
	l.Info().Msg("server_stopped")
}
