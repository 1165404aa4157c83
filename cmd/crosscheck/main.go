// 交叉校验工具：对 GeoJSON 中的每个几何随机取点，比较定点判定与浮点参考实现
// 约束：同一种子下取点序列可复现；存在不一致时以非零状态退出
package main

import (
	"math/rand"
	"os"
	"sync"

	"geofence/internal/geofence"
	"geofence/internal/logger"
	"geofence/internal/oracle"

	"github.com/jessevdk/go-flags"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Logger logger.Options `group:"Logger options"`

	Seed       int64 `short:"s" long:"seed"       description:"Random seed"                  default:"1"`
	Points     int   `short:"n" long:"points"     description:"Points per geometry"          default:"10000"`
	Workers    int   `short:"w" long:"workers"    description:"Geometries checked in parallel" default:"4"`
	Geographic bool  `short:"g" long:"geographic" description:"Validate lon/lat ranges while decoding"`
	MaxReport  int   `long:"max-report"           description:"Mismatches logged per geometry" default:"10"`

	Args struct {
		Files []string `positional-arg-name:"FILE" required:"1"`
	} `positional-args:"yes"`
}

type tally struct {
	mu     sync.Mutex
	counts map[oracle.Verdict]int
}

func (t *tally) add(v oracle.Verdict, n int) {
	t.mu.Lock()
	t.counts[v] += n
	t.mu.Unlock()
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
	l := opts.Logger.Setup()

	var features []geofence.Feature
	for _, p := range opts.Args.Files {
		fs, err := geofence.LoadFile(p, geofence.DecodeOptions{Geographic: opts.Geographic})
		if err != nil {
			l.Fatal().Err(err).Str("file", p).Msg("decode_error")
		}
		features = append(features, fs...)
	}

	reg := geofence.NewRegistry()
	ids := make([]geofence.ID, len(features))
	for i, f := range features {
		id, err := reg.Register(f.Geometry, f.Metadata)
		if err != nil {
			l.Fatal().Err(err).Str("name", f.Name).Msg("register_error")
		}
		ids[i] = id
	}

	total := &tally{counts: map[oracle.Verdict]int{}}
	var g errgroup.Group
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i, f := range features {
		i, f := i, f
		g.Go(func() error {
			v, err := oracle.New(f.Geometry)
			if err != nil {
				return err
			}
			// 每个几何独立的随机源，结果与并发调度无关
			rng := rand.New(rand.NewSource(opts.Seed + int64(i)))
			local := map[oracle.Verdict]int{}
			reported := 0
			for _, c := range oracle.Sample(rng, f.Geometry, opts.Points) {
				got, err := reg.Query(ids[i], c)
				if err != nil {
					return err
				}
				verdict, err := v.Check(c, got)
				local[verdict]++
				if err != nil && reported < opts.MaxReport {
					reported++
					l.Error().Err(err).Str("name", f.Name).Uint64("id", uint64(ids[i])).Msg("mismatch")
				}
			}
			for k, n := range local {
				total.add(k, n)
			}
			l.Info().
				Str("name", f.Name).
				Uint64("edges", f.Geometry.Cost()).
				Int("agree", local[oracle.Agree]).
				Int("tolerated", local[oracle.Tolerated]).
				Int("disagree", local[oracle.Disagree]).
				Msg("geometry_checked")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		l.Fatal().Err(err).Msg("crosscheck_error")
	}

	l.Info().
		Int("geometries", len(features)).
		Int64("seed", opts.Seed).
		Int("agree", total.counts[oracle.Agree]).
		Int("tolerated", total.counts[oracle.Tolerated]).
		Int("disagree", total.counts[oracle.Disagree]).
		Msg("crosscheck_done")
	if total.counts[oracle.Disagree] > 0 {
		os.Exit(1)
	}
}
