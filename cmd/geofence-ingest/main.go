// 数据导入工具：离线读取 GeoJSON 并批量写入 PostgreSQL（_geofences）
// 约束：全部文件先解析校验，任一失败则不写库；写入的几何在服务下次启动恢复时可见
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"geofence/internal/config"
	"geofence/internal/geofence"
	"geofence/internal/logger"
	"geofence/internal/migrate"
	"geofence/internal/store"
	"geofence/internal/utils"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

type Options struct {
	Logger logger.Options `group:"Logger options"`

	ConfigFile string `short:"c" long:"config"  env:"CONFIG_FILE" description:"Configuration file (decode options)" default:"config.yaml"`
	DryRun     bool   `short:"n" long:"dry-run" description:"Validate only, do not write"`

	Args struct {
		Files []string `positional-arg-name:"FILE" required:"1"`
	} `positional-args:"yes"`
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
	l := opts.Logger.Setup()

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		l.Fatal().Err(err).Msg("config_error")
	}
	decode := cfg.DecodeOptions()

	var all []geofence.Feature
	for _, p := range opts.Args.Files {
		fs, err := geofence.LoadFile(p, decode)
		if err != nil {
			l.Fatal().Err(err).Str("file", p).Msg("decode_error")
		}
		var cost uint64
		for _, f := range fs {
			cost += f.Geometry.Cost()
		}
		l.Info().Str("file", p).Int("features", len(fs)).Uint64("edges", cost).Msg("file_ok")
		all = append(all, fs...)
	}
	if opts.DryRun {
		l.Info().Int("features", len(all)).Msg("dry_run_done")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := utils.OpenPostgresFromEnv(ctx)
	if err != nil {
		l.Fatal().Err(err).Msg("db_open_error")
	}
	defer db.Close()
	if err := migrate.EnsureSchema(db); err != nil {
		l.Fatal().Err(err).Msg("schema_error")
	}
	st := store.AttachDB(db)

	count := 0
	for _, f := range all {
		id, err := st.Append(ctx, f.Geometry, f.Metadata)
		if err != nil {
			l.Error().Err(err).Str("name", f.Name).Int("written", count).Msg("append_error")
			os.Exit(1)
		}
		count++
		l.Debug().Uint64("id", uint64(id)).Str("name", f.Name).Msg("geofence_appended")
	}
	l.Info().Int("written", count).Msg("ingest_done")
}
