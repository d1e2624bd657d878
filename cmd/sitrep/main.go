package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mohammed-shakir/sitrep-cache/internal/cache"
	"github.com/mohammed-shakir/sitrep-cache/internal/cache/layered"
	"github.com/mohammed-shakir/sitrep-cache/internal/cache/memstore"
	"github.com/mohammed-shakir/sitrep-cache/internal/cache/redisstore"
	"github.com/mohammed-shakir/sitrep-cache/internal/core/config"
	"github.com/mohammed-shakir/sitrep-cache/internal/core/httpclient"
	"github.com/mohammed-shakir/sitrep-cache/internal/core/model"
	"github.com/mohammed-shakir/sitrep-cache/internal/core/observability"
	"github.com/mohammed-shakir/sitrep-cache/internal/core/server"
	"github.com/mohammed-shakir/sitrep-cache/internal/logger"
	h3mapper "github.com/mohammed-shakir/sitrep-cache/internal/mapper/h3"
	"github.com/mohammed-shakir/sitrep-cache/internal/metrics"
	"github.com/mohammed-shakir/sitrep-cache/internal/orchestrator"
	"github.com/mohammed-shakir/sitrep-cache/internal/overview"
	"github.com/mohammed-shakir/sitrep-cache/internal/region"
	"github.com/mohammed-shakir/sitrep-cache/internal/riskevents"
	"github.com/mohammed-shakir/sitrep-cache/internal/warmer"
	"github.com/mohammed-shakir/sitrep-cache/pkg/invalidation/kafka"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	envFile := flag.String("env", ".env", "optional dotenv file")
	regionsFlag := flag.String("regions", "", "region table YAML (overrides REGIONS_FILE)")
	flag.Parse()

	cfg := config.Load(*envFile)
	if *regionsFlag != "" {
		cfg.RegionsFile = strings.TrimSpace(*regionsFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "sitrep-cache",
		Component: "server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	var metricsHandler http.Handler
	var prov *metrics.Provider
	if cfg.MetricsEnabled {
		prov = metrics.Init(metrics.Config{
			Build: metrics.BuildInfo{
				Version:   Version,
				Revision:  os.Getenv("BUILD_REVISION"),
				Branch:    os.Getenv("BUILD_BRANCH"),
				BuildDate: os.Getenv("BUILD_DATE"),
			},
		})
		observability.Init(prov.Registerer(), true)
		metricsHandler = prov.Handler()
	} else {
		observability.Init(nil, false)
	}
	observability.ExposeBuildInfo(Version)

	tbl, err := region.Load(cfg.RegionsFile)
	if err != nil {
		appLog.Error("region table", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, mem, closeStore, err := buildStore(ctx, cfg, appLog)
	if err != nil {
		appLog.Error("cache store", "backend", cfg.CacheBackend, "err", err)
		return 1
	}
	defer closeStore()

	sources := buildSources(cfg, tbl, httpclient.NewOutbound(), appLog)
	orch := orchestrator.New(store, sources, appLog, orchestrator.Options{
		TTLFor:             func(c model.Category) time.Duration { return cfg.TTLFor(string(c)) },
		TimeoutFor:         func(c model.Category) time.Duration { return cfg.FetchTimeoutFor(string(c)) },
		RefreshAhead:       cfg.WarmRefreshAhead,
		BreakerMaxFailures: cfg.Breaker.MaxFailures,
		BreakerOpenTimeout: cfg.Breaker.OpenTimeout,
	})

	mapper := h3mapper.New()
	ovOpts := overview.Options{
		DedupWindow: cfg.DedupWindow,
		H3Res:       cfg.H3Res,
		Mapper:      mapper,
		Logger:      appLog,
	}
	if cfg.RiskEvents.Enabled {
		pub, err := riskevents.NewPublisher(splitList(cfg.KafkaBrokers), cfg.RiskEvents.Topic, cfg.RiskEvents.QueueSize, appLog)
		if err != nil {
			appLog.Error("risk events publisher", "err", err)
			return 1
		}
		defer func() {
			if err := pub.Close(); err != nil {
				appLog.Warn("risk events close", "err", err)
			}
		}()
		ovOpts.Publisher = pub
	}
	svc := overview.New(orch, tbl, ovOpts)

	runnerOpts := kafka.Options{Logger: appLog, Res: cfg.H3Res}
	if prov != nil {
		runnerOpts.Register = prov.Registerer()
	}
	runner := kafka.New(kafka.FromConfig(cfg.Invalidation), orch, mapper, tbl, runnerOpts)
	if err := runner.Start(ctx); err != nil {
		appLog.Error("invalidation runner", "err", err)
		return 1
	}
	defer runner.Stop()

	if cfg.WarmEnabled {
		wopts := warmer.Options{
			Interval:       cfg.WarmInterval,
			MaxConcurrency: cfg.WarmMaxConcurrency,
			StaleRetention: cfg.CacheStaleRetention,
			Logger:         appLog,
		}
		if mem != nil {
			wopts.Sweeper = mem
		}
		w := warmer.New(orch, wopts)
		w.Start(ctx)
		defer w.Stop()
	}

	appLog.Info("starting sitrep cache",
		"addr", cfg.Addr,
		"version", Version,
		"cache", cfg.CacheBackend,
		"sources", len(sources),
		"regions", len(tbl.All()))

	if err := server.Run(ctx, cfg, appLog, server.Deps{
		Overview: svc,
		Regions:  tbl,
		Ready:    runner,
		Metrics:  metricsHandler,
	}); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

// buildStore returns the configured store and, when an in-process tier is
// used, that tier so the warmer can sweep it.
func buildStore(ctx context.Context, cfg config.Config, log *slog.Logger) (cache.Store, *memstore.Store, func(), error) {
	noop := func() {}
	if cfg.CacheBackend == "memory" {
		mem := memstore.New()
		return mem, mem, noop, nil
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client, err := redisstore.New(cctx, cfg.RedisAddr,
		redisstore.WithReadTimeout(cfg.CacheOpTimeout),
		redisstore.WithWriteTimeout(cfg.CacheOpTimeout),
	)
	if err != nil {
		return nil, nil, noop, err
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			log.Warn("redis close", "err", err)
		}
	}
	far := redisstore.NewStore(client,
		redisstore.WithPrefix(cfg.RedisPrefix),
		redisstore.WithStaleRetention(cfg.CacheStaleRetention),
	)
	if cfg.CacheBackend == "redis" {
		return far, nil, closeFn, nil
	}
	mem := memstore.New()
	return layered.New(mem, far, log), mem, closeFn, nil
}

func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if x := strings.TrimSpace(p); x != "" {
			out = append(out, x)
		}
	}
	return out
}
