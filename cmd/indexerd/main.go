package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/DataBiosphere/azul-indexer/internal/config"
	"github.com/DataBiosphere/azul-indexer/internal/es"
	"github.com/DataBiosphere/azul-indexer/internal/es/elastic"
	logpkg "github.com/DataBiosphere/azul-indexer/internal/logger"
	"github.com/DataBiosphere/azul-indexer/internal/plugin/project"
	"github.com/DataBiosphere/azul-indexer/internal/queue/redisq"
	bundlerepo "github.com/DataBiosphere/azul-indexer/internal/repository/bundle"
	documentrepo "github.com/DataBiosphere/azul-indexer/internal/repository/document"
	chiTransport "github.com/DataBiosphere/azul-indexer/internal/transport/chi"
	indexeruc "github.com/DataBiosphere/azul-indexer/internal/usecase/indexer"
	notifyuc "github.com/DataBiosphere/azul-indexer/internal/usecase/notify"
	"github.com/DataBiosphere/azul-indexer/internal/version"
	"github.com/DataBiosphere/azul-indexer/internal/worker"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting azul indexer",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("es_addresses", cfg.Elasticsearch.Addresses),
		zap.Strings("queue_addrs", cfg.Queue.Addrs),
		zap.Bool("test_mode", cfg.Indexing.TestMode),
	)

	// Document store
	var store es.Store
	store, err = elastic.NewStore(elastic.Config{
		Addresses: cfg.Elasticsearch.Addresses,
		Username:  cfg.Elasticsearch.Username,
		Password:  cfg.Elasticsearch.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create document store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	readiness := time.Duration(cfg.Elasticsearch.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, readiness); err != nil {
		logger.Fatal("Document store not ready", zap.Error(err))
	}
	logger.Info("Connected to document store")

	// Queue transport
	queueClient, err := redisq.New(redisq.Config{
		Addrs:             cfg.Queue.Addrs,
		Password:          cfg.Queue.Password,
		Consumer:          hostnameConsumer(),
		VisibilityTimeout: time.Duration(cfg.Queue.VisibilityTimeoutSec) * time.Second,
		DedupWindow:       time.Duration(cfg.Queue.DedupWindowSec) * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to create queue client", zap.Error(err))
	}
	defer queueClient.Close()

	// Metadata plugin and repositories
	plug := project.New()
	docRepo := documentrepo.New(store, cfg.Elasticsearch.IndexPrefix, plug.FieldTypes())
	if err := docRepo.EnsureIndices(ctx); err != nil {
		logger.Fatal("Failed to ensure indices", zap.Error(err))
	}

	bundleRepo, err := bundlerepo.New(bundlerepo.Config{
		BaseURL: cfg.BundleRepository.BaseURL,
		Timeout: time.Duration(cfg.BundleRepository.TimeoutSec) * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to create bundle repository", zap.Error(err))
	}

	// Use case services
	indexSvc := indexeruc.New(docRepo, docRepo, docRepo, plug).
		WithKeepLatestBundleVersion(cfg.Indexing.KeepLatestBundleVersion).
		WithWriteRetries(cfg.Indexing.WriteRetries).
		WithWriteConcurrency(cfg.Indexing.WriteConcurrency)
	notifySvc := notifyuc.New(queueClient, cfg.Queue.NotifyQueue, cfg.Indexing.TestMode)

	// Pipeline workers
	contributeHandler := worker.NewContributeHandler(bundleRepo, indexSvc, queueClient, cfg.Queue.TallyQueue)
	aggregateHandler := worker.NewAggregateHandler(indexSvc, queueClient, cfg.Queue.TallyQueue)

	workerCtx, stopWorkers := context.WithCancel(logpkg.ContextWithLogger(ctx, logger))
	var wg sync.WaitGroup
	for i := 0; i < cfg.Indexing.Workers; i++ {
		for _, w := range []*worker.Worker{
			worker.New(queueClient, cfg.Queue.NotifyQueue, contributeHandler),
			worker.New(queueClient, cfg.Queue.TallyQueue, aggregateHandler),
		} {
			wg.Add(1)
			go func(w *worker.Worker) {
				defer wg.Done()
				_ = w.Run(workerCtx)
			}(w)
		}
	}
	logger.Info("Pipeline workers started", zap.Int("per_queue", cfg.Indexing.Workers))

	// HTTP server
	server := chiTransport.NewServer(notifySvc, store, queueClient, logger)
	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(cfg.Auth.APIKeys),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	stopWorkers()
	wg.Wait()

	logger.Info("Indexer stopped gracefully")
}

// hostnameConsumer derives a stable queue consumer name for this process.
func hostnameConsumer() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return fmt.Sprintf("indexer-%d", os.Getpid())
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
