package main

import (
	"context"
	"errors"
	"flag"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"ClimateIntel/internal/api"
	"ClimateIntel/internal/collector"
	"ClimateIntel/internal/config"
	"ClimateIntel/internal/database/kafka"
	"ClimateIntel/internal/database/milvus"
	"ClimateIntel/internal/database/mongo"
	"ClimateIntel/internal/database/redis"
	"ClimateIntel/internal/dedup"
	"ClimateIntel/internal/embedding"
	"ClimateIntel/internal/extractor"
	"ClimateIntel/internal/index"
	"ClimateIntel/internal/llm"
	"ClimateIntel/internal/orchestrator"
	"ClimateIntel/internal/pipeline"
	"ClimateIntel/internal/retriever"
	"ClimateIntel/internal/store"
	"ClimateIntel/internal/synthesizer"
	"ClimateIntel/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		stdlog.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	serviceLogger := logger.New("IntelService", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MongoDB holds every persistent record; without it there is no service.
	mongoClient, err := mongo.GetClient(&cfg.Databases.MongoDB)
	if err != nil {
		serviceLogger.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	db := mongoClient.Database(cfg.Databases.MongoDB.Database)

	articleStore := store.NewMongoArticleStore(db)
	insightStore := store.NewMongoInsightStore(db)
	reportStore := store.NewMongoReportStore(db)
	taskStore := store.NewMongoTaskStore(db)
	for name, ensure := range map[string]func(context.Context) error{
		"articles": articleStore.EnsureIndexes,
		"insights": insightStore.EnsureIndexes,
		"reports":  reportStore.EnsureIndexes,
		"tasks":    taskStore.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			serviceLogger.WithError(err).Fatal("Failed to ensure indexes on " + name)
		}
	}

	// Redis backs the content-hash cache. The store lookup covers for it, so
	// an unreachable Redis only costs speed.
	var hashCache dedup.HashCache
	if redisClient, err := redis.GetClient(&cfg.Databases.Redis); err != nil {
		serviceLogger.WithError(err).Warn("Redis unavailable, using in-memory hash cache")
		hashCache = dedup.NewMemoryHashCache()
	} else {
		ttl := time.Duration(cfg.Pipeline.HashCacheTTLHours) * time.Hour
		hashCache = dedup.NewRedisHashCache(redisClient, ttl)
	}

	// Milvus backs semantic retrieval. Retrieval falls back to a store scan,
	// so a missing Milvus degrades search instead of killing the service.
	var vecIndex index.Index
	milvusClient, err := milvus.GetClient(ctx, &cfg.Databases.Milvus)
	if err != nil {
		serviceLogger.WithError(err).Warn("Milvus unavailable, using in-memory vector index")
		vecIndex = index.NewMemoryIndex()
	} else {
		defer milvusClient.Close()
		if err := milvusClient.EnsureCollection(ctx); err != nil {
			serviceLogger.WithError(err).Fatal("Failed to ensure Milvus collection")
		}
		vecIndex, err = index.NewMilvusIndex(milvusClient, serviceLogger)
		if err != nil {
			serviceLogger.WithError(err).Fatal("Failed to build Milvus index")
		}
	}

	llmClient, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		serviceLogger.WithError(err).Fatal("Failed to initialize LLM client")
	}
	embedder, err := embedding.NewEmdModel(cfg.Embedding)
	if err != nil {
		serviceLogger.WithError(err).Fatal("Failed to initialize embedding model")
	}

	// Kafka carries pipeline progress events for the dashboard; optional.
	var progress pipeline.ProgressSink
	var kafkaClient *kafka.KafkaClient
	if len(cfg.Databases.Kafka.Brokers) > 0 {
		kafkaClient, err = kafka.GetClient(&cfg.Databases.Kafka)
		if err != nil {
			serviceLogger.WithError(err).Warn("Kafka unavailable, progress events disabled")
			kafkaClient = nil
		} else {
			progress = kafka.NewProgressPublisher(kafkaClient, cfg.Pipeline.ProgressTopic)
		}
	}

	retr := retriever.New(vecIndex, embedder, insightStore, cfg.Pipeline.TokenBudget, serviceLogger)
	synth := synthesizer.New(llmClient, serviceLogger)

	pipe := pipeline.New(pipeline.Deps{
		Collectors: collector.NewFeedCollectors(collector.DefaultSources),
		Articles:   articleStore,
		Insights:   insightStore,
		Reports:    reportStore,
		HashCache:  hashCache,
		Extractor:  extractor.New(llmClient, cfg.Pipeline.ContentCeiling, serviceLogger),
		Embedder:   embedder,
		Index:      vecIndex,
		Retriever:  retr,
		Synth:      synth,
		Progress:   progress,
		Log:        serviceLogger,
	})

	orc := orchestrator.New(pipe, taskStore,
		time.Duration(cfg.Pipeline.RunTimeoutMinutes)*time.Minute, serviceLogger)

	reclaimer := orchestrator.NewReclaimer(taskStore, pipe,
		time.Duration(cfg.Pipeline.StaleMinutes)*time.Minute,
		time.Duration(cfg.Pipeline.ReclaimMinutes)*time.Minute, serviceLogger)
	reclaimer.Start(ctx)

	scheduler := orchestrator.NewScheduler(orc, cfg.Pipeline.ScheduleHour, serviceLogger)
	scheduler.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	apiHandler := api.NewAPI(api.Deps{
		Articles:  articleStore,
		Insights:  insightStore,
		Reports:   reportStore,
		Tasks:     taskStore,
		Orc:       orc,
		Retriever: retr,
		Synth:     synth,
		Sources:   collector.DefaultSources,
		Logger:    serviceLogger,
	})
	api.RegisterRoutes(router, apiHandler)

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}

	go func() {
		serviceLogger.Info("Starting HTTP server on " + srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serviceLogger.WithError(err).Fatal("HTTP server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	serviceLogger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		serviceLogger.WithError(err).Error("Server forced to shutdown")
	}

	cancel()
	orc.Wait()

	if err := kafkaClient.Close(); err != nil {
		serviceLogger.WithError(err).Error("Error closing Kafka client")
	}
	if err := redis.Close(); err != nil {
		serviceLogger.WithError(err).Error("Error closing Redis connection")
	}
	if err := mongo.Close(context.Background()); err != nil {
		serviceLogger.WithError(err).Error("Error disconnecting from MongoDB")
	}

	serviceLogger.Info("Server gracefully stopped")
}
