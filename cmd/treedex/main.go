package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/treedex/treedex/internal/config"
	"github.com/treedex/treedex/internal/db"
	"github.com/treedex/treedex/internal/db/elastic"
	"github.com/treedex/treedex/internal/domain"
	logpkg "github.com/treedex/treedex/internal/logger"
	"github.com/treedex/treedex/internal/metrics"
	"github.com/treedex/treedex/internal/repository/batch"
	"github.com/treedex/treedex/internal/repository/extract"
	"github.com/treedex/treedex/internal/repository/nodestore"
	"github.com/treedex/treedex/internal/repository/nodestream"
	"github.com/treedex/treedex/internal/transport/admin"
	fulltextuc "github.com/treedex/treedex/internal/usecase/fulltext"
	indexeruc "github.com/treedex/treedex/internal/usecase/indexer"
	"github.com/treedex/treedex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting treedex indexing daemon",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("elastic_addrs", cfg.Elastic.Addrs),
		zap.Strings("redis_addrs", cfg.Redis.Addrs),
		zap.String("index", cfg.Index.Name),
	)

	store, err := elastic.NewStore(elastic.Config{
		Addrs:    cfg.Elastic.Addrs,
		Username: cfg.Elastic.Username,
		Password: cfg.Elastic.Password,
		Timeout:  time.Duration(cfg.Elastic.TimeoutSec) * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to create search store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Elastic.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Search store not ready", zap.Error(err))
	}
	logger.Info("Connected to search store")

	mirror, err := nodestore.New(nodestore.Config{
		Addrs:     cfg.Redis.Addrs,
		Username:  cfg.Redis.Username,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		KeyPrefix: cfg.Redis.KeyPrefix,
	})
	if err != nil {
		logger.Fatal("Failed to create node mirror", zap.Error(err))
	}
	defer mirror.Close()

	if err := mirror.WaitForReady(ctx, time.Duration(cfg.Redis.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Node mirror not ready", zap.Error(err))
	}
	logger.Info("Connected to node mirror")

	consumer, err := nodestream.NewConsumer(nodestream.Config{
		Addrs:    cfg.Redis.Addrs,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Stream:   cfg.Redis.Stream.Key,
	}, "")
	if err != nil {
		logger.Fatal("Failed to create mutation consumer", zap.Error(err))
	}
	defer consumer.Close()

	// Register indexing metrics explicitly (no init())
	metrics.RegisterIndexingMetrics()

	// Composition root
	rules := extract.NewRules(cfg.Types)
	aggregator := fulltextuc.New(mirror, rules, logger)
	indexerSvc := indexeruc.New(mirror, mirror, rules, extract.Mapper{}, rules, aggregator, store, logger).
		WithLiveWorkspaceOnly(cfg.Index.LiveWorkspaceOnly)

	// Admin server
	adminSrv := admin.NewServer(map[string]admin.Pinger{
		"elastic": store,
		"redis":   mirror,
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      adminSrv.Router(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}
	go func() {
		logger.Info("Starting admin HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Admin server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	loopCtx, stopLoop := context.WithCancel(ctx)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		consumeLoop(loopCtx, cfg, consumer, indexerSvc, store, logger)
	}()

	<-quit
	logger.Info("Received shutdown signal")
	stopLoop()
	<-done

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Daemon stopped gracefully")
}

// consumeLoop reads mutation batches and turns them into store operations.
// Indexing is idempotent, so reprocessing after a restart is harmless.
func consumeLoop(
	ctx context.Context,
	cfg config.Config,
	consumer *nodestream.Consumer,
	svc *indexeruc.Service,
	store db.Store,
	logger *zap.Logger,
) {
	for {
		if ctx.Err() != nil {
			return
		}

		messages, err := consumer.Next(ctx, int64(cfg.Redis.Stream.BatchSize), int64(cfg.Redis.Stream.BlockMillis))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("Failed to read mutation stream", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if len(messages) == 0 {
			continue
		}

		sess := batch.NewSession(store, cfg.Index.Name, logger)
		for _, msg := range messages {
			if err := handleEvent(ctx, sess, svc, msg.Event); err != nil {
				logger.Error("Failed to index mutation",
					zap.String("stream_id", msg.ID),
					zap.String("node", msg.Event.NodeIdentifier),
					zap.Error(err),
				)
			}
			if sess.Pending() >= cfg.Index.BatchSize {
				if err := sess.Flush(ctx); err != nil {
					logger.Error("Failed to flush batch", zap.Error(err))
				}
			}
		}
		if err := sess.Flush(ctx); err != nil {
			logger.Error("Failed to flush batch", zap.Error(err))
		}
	}
}

func handleEvent(ctx context.Context, sess *batch.Session, svc *indexeruc.Service, event nodestream.Event) error {
	node := &domain.Node{
		Identifier: event.NodeIdentifier,
		Path:       event.Path,
		Workspace:  event.Workspace,
		Removed:    event.Removed,
	}
	if event.Removed {
		return svc.RemoveNode(ctx, sess, node, event.TargetWorkspace)
	}
	return svc.IndexNode(ctx, sess, node, event.TargetWorkspace)
}
