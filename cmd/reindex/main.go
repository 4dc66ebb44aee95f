// Command reindex rebuilds the vector index from the stored insights. Run it
// after changing the embedding model or the collection schema.
package main

import (
	"context"
	"flag"
	stdlog "log"
	"time"

	"ClimateIntel/internal/config"
	"ClimateIntel/internal/database/milvus"
	"ClimateIntel/internal/database/mongo"
	"ClimateIntel/internal/embedding"
	"ClimateIntel/internal/index"
	"ClimateIntel/internal/models"
	"ClimateIntel/internal/pipeline"
	"ClimateIntel/internal/store"
	"ClimateIntel/pkg/logger"
)

const embedBatchSize = 32

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		stdlog.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	log := logger.New("Reindex", "")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	mongoClient, err := mongo.GetClient(&cfg.Databases.MongoDB)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer func() { _ = mongo.Close(context.Background()) }()
	insightStore := store.NewMongoInsightStore(mongoClient.Database(cfg.Databases.MongoDB.Database))

	milvusClient, err := milvus.GetClient(ctx, &cfg.Databases.Milvus)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Milvus")
	}
	defer milvusClient.Close()
	if err := milvusClient.EnsureCollection(ctx); err != nil {
		log.WithError(err).Fatal("Failed to ensure Milvus collection")
	}
	vecIndex, err := index.NewMilvusIndex(milvusClient, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to build Milvus index")
	}

	embedder, err := embedding.NewEmdModel(cfg.Embedding)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize embedding model")
	}

	insights, err := insightStore.All(ctx)
	if err != nil {
		log.WithError(err).Fatal("Failed to load insights")
	}
	log.Infof("reindexing %d insights", len(insights))

	if err := vecIndex.Drop(ctx); err != nil {
		log.WithError(err).Fatal("Failed to drop existing index")
	}

	var indexed int
	for start := 0; start < len(insights); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(insights) {
			end = len(insights)
		}
		batch := insights[start:end]

		texts := make([]string, len(batch))
		for i, in := range batch {
			texts[i] = pipeline.EntryText(in)
		}
		vectors, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			log.WithError(err).Fatalf("Failed to embed batch starting at %d", start)
		}

		entries := make([]index.Entry, len(batch))
		for i, in := range batch {
			entries[i] = entryFor(in, texts[i], vectors[i])
		}
		if err := vecIndex.Upsert(ctx, entries); err != nil {
			log.WithError(err).Fatalf("Failed to index batch starting at %d", start)
		}
		indexed += len(batch)
		log.Infof("indexed %d/%d", indexed, len(insights))
	}

	log.Info("reindex complete")
}

func entryFor(in *models.Insight, text string, vector []float32) index.Entry {
	return index.Entry{
		ID:         in.ArticleURL,
		ArticleURL: in.ArticleURL,
		Text:       text,
		Embedding:  vector,
	}
}
