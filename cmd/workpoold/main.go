package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/taskwell/workpool/internal/config"
	"github.com/taskwell/workpool/internal/handlers"
	"github.com/taskwell/workpool/internal/server"
	"github.com/taskwell/workpool/internal/services"
	"github.com/taskwell/workpool/internal/store"
	"github.com/taskwell/workpool/internal/store/migrations"
	"github.com/taskwell/workpool/pkg/pool"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "workpoold",
		Short: "Bounded cancellable work pool daemon",
		Long: `workpoold runs a bounded pool of workers executing resumable,
cancellable jobs, with a monitoring API and a persisted run history.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (YAML)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)
	log := zap.S().Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Run(ctx, db); err != nil {
		return err
	}
	st := store.NewStore(db)

	p, err := pool.New(cfg.PoolConfig())
	if err != nil {
		return err
	}

	runner := services.NewRunner(p, st, cfg.Pool.DispatchInterval)
	registerWorkloads(runner)

	handler := handlers.New(runner, services.NewHistoryService(st))
	srv := server.NewServer(cfg, func(router *gin.RouterGroup) {
		router.GET("/status", handler.GetStatus)
		router.GET("/jobs", handler.ListJobs)
		router.POST("/jobs", handler.SubmitJob)
		router.POST("/jobs/:id/cancel", handler.CancelJob)
		router.POST("/jobs/cancel", handler.CancelAllJobs)
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runner.Run(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		stop()
		wg.Wait()
		return err
	}

	if err := srv.Stop(context.Background()); err != nil {
		log.Errorw("server shutdown failed", "error", err)
	}
	wg.Wait()
	log.Info("bye")
	return nil
}

func newLogger(cfg *config.Configuration) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	var zapCfg zap.Config
	if cfg.LogFormat == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
