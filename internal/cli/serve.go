package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/gregmulvihill/multi-tiered-memory-architecture/internal/config"
	"github.com/gregmulvihill/multi-tiered-memory-architecture/internal/docstore"
	"github.com/gregmulvihill/multi-tiered-memory-architecture/internal/kvstore"
	"github.com/gregmulvihill/multi-tiered-memory-architecture/internal/memory"
	"github.com/gregmulvihill/multi-tiered-memory-architecture/internal/server"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the memory daemon",
		Long:  "Start the HTTP API and the background consolidation scheduler.",
		Run:   runServe,
	}
	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		exitErr("load config", err)
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		exitErr("init logger", err)
	}
	defer log.Sync()

	if err := serve(cmd.Context(), cfg, log); err != nil {
		exitErr("serve", err)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, err := openKVStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer kv.Close()

	docs, err := docstore.NewSQLiteStore(cfg.LongTerm.SQLitePath)
	if err != nil {
		return fmt.Errorf("open document store: %w", err)
	}
	defer docs.Close()

	stm := memory.NewShortTermManager(kv, cfg.ShortTerm.DefaultTTL, log)
	ltm := memory.NewLongTermManager(docs, log)
	lifecycle := memory.NewLifecycle(stm, ltm, cfg.Lifecycle.ConsolidationThreshold, log)
	world := memory.NewWorldState(stm, cfg.WorldState.MaxHistory, log)

	scheduler := memory.NewScheduler(lifecycle, cfg.Lifecycle.ConsolidationInterval, cfg.Lifecycle.ShutdownGrace, log)
	scheduler.Start()
	defer scheduler.Stop()

	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.New(stm, ltm, lifecycle, world, log).Handler(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Server.Addr))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Lifecycle.ShutdownGrace)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openKVStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (kvstore.Store, error) {
	switch cfg.ShortTerm.Backend {
	case "redis":
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		kv, err := kvstore.NewRedisStore(connectCtx, kvstore.RedisOptions{
			Addr:     cfg.ShortTerm.Redis.Addr,
			Password: cfg.ShortTerm.Redis.Password,
			DB:       cfg.ShortTerm.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		log.Info("short-term backend: redis", zap.String("addr", cfg.ShortTerm.Redis.Addr))
		return kv, nil
	default:
		log.Info("short-term backend: memory")
		return kvstore.NewMemoryStore(), nil
	}
}
