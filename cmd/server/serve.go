package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/eventrouter/internal/api"
	"github.com/gyaneshwarpardhi/eventrouter/internal/backend"
	"github.com/gyaneshwarpardhi/eventrouter/internal/cache"
	"github.com/gyaneshwarpardhi/eventrouter/internal/condition"
	"github.com/gyaneshwarpardhi/eventrouter/internal/config"
	"github.com/gyaneshwarpardhi/eventrouter/internal/engine"
	"github.com/gyaneshwarpardhi/eventrouter/internal/identity"
	"github.com/gyaneshwarpardhi/eventrouter/internal/logging"
	"github.com/gyaneshwarpardhi/eventrouter/internal/metrics"
	"github.com/gyaneshwarpardhi/eventrouter/internal/processor"
	"github.com/gyaneshwarpardhi/eventrouter/internal/router"
	"github.com/gyaneshwarpardhi/eventrouter/internal/router/store"
	"github.com/gyaneshwarpardhi/eventrouter/internal/transform"
	"github.com/gyaneshwarpardhi/eventrouter/internal/transform/caliper"
	"github.com/gyaneshwarpardhi/eventrouter/internal/transform/xapi"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP ingestion server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	boot := logging.New("info")
	config.LoadEnv(boot)

	// ── Load config ──────────────────────────────────────────────────────────
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	log := logging.NewWithService(cfg.LogLevel, "eventrouter")

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// ── Transformers ─────────────────────────────────────────────────────────
	regs, err := buildRegistries(cfg.Transform)
	if err != nil {
		return err
	}

	// ── Delivery strategies ──────────────────────────────────────────────────
	strategies := router.DefaultStrategies(time.Duration(cfg.Engine.SendTimeoutMs) * time.Millisecond)
	if len(cfg.Kafka.Brokers) > 0 {
		client, err := router.NewKafkaClient(cfg.Kafka.Brokers, cfg.Kafka.ClientID)
		if err != nil {
			return err
		}
		defer client.Close()
		strategies[router.StrategyKafka] = &router.KafkaSender{
			Producer: client,
			Timeout:  time.Duration(cfg.Engine.SendTimeoutMs) * time.Millisecond,
		}
		log.WithField("brokers", cfg.Kafka.Brokers).Info("kafka routing enabled")
	}

	// ── Router configurations ────────────────────────────────────────────────
	src, reloader, closeSrc, err := openStore(ctx, cfg.Routers, strategies.Names(), log)
	if err != nil {
		return err
	}
	defer closeSrc()

	tiered, closeCache, err := buildCache(ctx, cfg.Cache, log)
	if err != nil {
		return err
	}
	defer closeCache()
	cached := store.NewCached(src, tiered, log)

	// ── Engine ───────────────────────────────────────────────────────────────
	targets, err := buildTargets(cfg, regs, cached, strategies, log)
	if err != nil {
		return err
	}
	eng := engine.New(ctx, targets, cfg.Engine, log)
	log.WithField("backends", eng.Backends()).Info("engine started")

	// ── HTTP server ──────────────────────────────────────────────────────────
	handler := api.New(api.Options{
		Engine:       eng,
		Routers:      src,
		Reloader:     reloader,
		Transformers: transformerTypes(cfg.Backends, regs),
		MaxBatchSize: cfg.Server.MaxBatchSize,
		Log:          log,
	})
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errC <- err
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	select {
	case <-quit:
	case <-ctx.Done():
	case err := <-errC:
		log.WithError(err).Error("server error")
		eng.Shutdown()
		return err
	}
	log.Info("shutting down")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	eng.Shutdown()
	cancel()
	log.Info("goodbye")
	return nil
}

// buildRegistries registers the transformer catalog of each family.
func buildRegistries(conf config.TransformConf) (map[string]*transform.Registry, error) {
	var pseudo identity.Pseudonymizer
	if conf.AnonymousSecret != "" {
		pseudo = identity.NewHMAC(conf.AnonymousSecret)
	}

	cal := transform.NewRegistry()
	if err := caliper.Register(cal, caliper.Options{LMSRoot: conf.LMSRoot, Pseudonymizer: pseudo}); err != nil {
		return nil, err
	}
	x := transform.NewRegistry()
	if err := xapi.Register(x, xapi.Options{LMSRoot: conf.LMSRoot, Pseudonymizer: pseudo}); err != nil {
		return nil, err
	}
	return map[string]*transform.Registry{
		backend.FamilyCaliper: cal,
		backend.FamilyXAPI:    x,
	}, nil
}

// openStore returns the configured router source. reloader is nil for
// sources that do not support an explicit reload.
func openStore(ctx context.Context, conf config.RoutersConf, known map[string]bool, log logging.Logger) (store.Store, api.Reloader, func(), error) {
	switch conf.Source {
	case "sql":
		db, err := store.OpenDB(conf.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		st, err := store.NewSQLStore(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		log.Info("router configurations loaded from database")
		return st, nil, func() { _ = st.Close() }, nil
	default:
		fs, err := store.NewFileStore(conf.File, known, log)
		if err != nil {
			return nil, nil, nil, err
		}
		stop := func() {}
		if conf.Watch {
			s, err := fs.Watch()
			if err != nil {
				log.WithError(err).Warn("router file watcher unavailable (hot-reload disabled)")
			} else {
				stop = s
			}
		}
		log.WithField("file", conf.File).Info("router configurations loaded from file")
		return fs, fs, stop, nil
	}
}

// buildCache returns the router config cache. Redis is used as the shared
// tier when addresses are configured.
func buildCache(ctx context.Context, conf config.CacheConf, log logging.Logger) (*cache.Tiered, func(), error) {
	var slow cache.Tier
	closeFn := func() {}
	if conf.RedisAddrs != "" {
		client, err := cache.DialRedis(ctx, conf.RedisAddrs, conf.RedisPassword, conf.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		slow = cache.NewRedis(client, conf.RedisPrefix)
		closeFn = func() { _ = client.Close() }
		log.WithField("addrs", conf.RedisAddrs).Info("router cache uses redis")
	}
	tiered := cache.NewTiered(
		cache.NewMemory(conf.MaxEntries),
		slow,
		cache.Options{TTL: conf.TTL, NegativeTTL: conf.NegativeTTL},
		cache.Hooks{
			OnHit:  func(tier string) { metrics.RouterCacheHits.WithLabelValues(tier).Inc() },
			OnMiss: func() { metrics.RouterCacheMisses.Inc() },
		},
	)
	return tiered, closeFn, nil
}

// buildTargets assembles one backend per configured entry, each with a
// single router.
func buildTargets(cfg *config.Config, regs map[string]*transform.Registry, src router.ConfigSource, strategies router.Strategies, log logging.Logger) ([]engine.Target, error) {
	var enterprises identity.EnterpriseLookup
	if len(cfg.Enterprises) > 0 {
		enterprises = identity.NewStaticEnterprises(cfg.Enterprises)
	}

	targets := make([]engine.Target, 0, len(cfg.Backends))
	for _, bc := range cfg.Backends {
		reg, ok := regs[bc.Family]
		if !ok {
			return nil, fmt.Errorf("backend %s: unknown family %q", bc.Name, bc.Family)
		}

		var pre processor.Chain
		if bc.Enterprise {
			if enterprises == nil {
				return nil, fmt.Errorf("backend %s: enterprise attribution needs an enterprises mapping", bc.Name)
			}
			pre = append(pre, processor.EnterpriseContext(enterprises, log))
		}

		var procs processor.Chain
		if bc.Filter != "" {
			f, err := condition.Compile(bc.Filter)
			if err != nil {
				return nil, fmt.Errorf("backend %s: %w", bc.Name, err)
			}
			procs = append(procs, processor.Where(f))
		}
		if bc.SensorID != "" && bc.Family == backend.FamilyCaliper {
			procs = append(procs, processor.CaliperEnvelope(bc.SensorID))
		}
		if bc.WrapKey != "" {
			procs = append(procs, processor.Wrapper(bc.WrapKey))
		}

		b := &backend.Backend{
			Name:          bc.Name,
			Family:        bc.Family,
			Registry:      reg,
			PreProcessors: pre,
			Routers: []*router.Router{{
				Name:       bc.Name + "_router",
				Backend:    bc.Name,
				Processors: procs,
				Source:     src,
				Strategies: strategies,
				Log:        log,
			}},
			Log: log,
		}
		targets = append(targets, engine.Target{Name: bc.Name, Sender: b})
	}
	return targets, nil
}

func transformerTypes(backends []config.BackendConf, regs map[string]*transform.Registry) map[string][]string {
	out := make(map[string][]string, len(backends))
	for _, bc := range backends {
		if reg, ok := regs[bc.Family]; ok {
			out[bc.Name] = reg.Types()
		}
	}
	return out
}
