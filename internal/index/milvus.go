package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"ClimateIntel/internal/database/milvus"
	"ClimateIntel/pkg/logger"
)

const (
	// Schema fields of the insight collection.
	FieldID         = "id"
	FieldArticleURL = "article_url"
	FieldText       = "text"
	FieldEmbedding  = "embedding"
)

// MilvusIndex implements Index on top of the shared Milvus client wrapper.
type MilvusIndex struct {
	log     *logger.Logger
	wrapper *milvus.MilvusClient
	client  client.Client
}

func NewMilvusIndex(milvusClient *milvus.MilvusClient, log *logger.Logger) (*MilvusIndex, error) {
	if milvusClient == nil || milvusClient.Client == nil {
		return nil, fmt.Errorf("milvus client is not initialized")
	}
	return &MilvusIndex{
		log:     log,
		wrapper: milvusClient,
		client:  milvusClient.Client,
	}, nil
}

func (s *MilvusIndex) collection() string {
	return s.wrapper.Config.Schema.CollectionName
}

// Upsert first deletes any rows carrying the same article URLs, then inserts
// the new entries. The delete-then-insert keeps the one-vector-per-URL
// invariant without relying on collection-level primary key upsert support.
func (s *MilvusIndex) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	urls := make([]string, len(entries))
	ids := make([]string, len(entries))
	texts := make([]string, len(entries))
	embeddings := make([][]float32, len(entries))
	dim := 0
	for i, e := range entries {
		urls[i] = e.ArticleURL
		ids[i] = e.ID
		texts[i] = e.Text
		embeddings[i] = e.Embedding
		if len(e.Embedding) > dim {
			dim = len(e.Embedding)
		}
	}

	expr := fmt.Sprintf(`%s in [%s]`, FieldArticleURL, quoteList(urls))
	if err := s.client.Delete(ctx, s.collection(), "", expr); err != nil {
		return fmt.Errorf("failed to delete stale vectors: %w", err)
	}

	idCol := entity.NewColumnVarChar(FieldID, ids)
	urlCol := entity.NewColumnVarChar(FieldArticleURL, urls)
	textCol := entity.NewColumnVarChar(FieldText, texts)
	embeddingCol := entity.NewColumnFloatVector(FieldEmbedding, dim, embeddings)

	s.log.Infof("Inserting %d vectors into Milvus collection: %s", len(entries), s.collection())
	if _, err := s.client.Insert(ctx, s.collection(), "" /* default partition */, idCol, urlCol, textCol, embeddingCol); err != nil {
		return fmt.Errorf("failed to insert data into Milvus: %w", err)
	}
	return nil
}

// Search performs a vector search and maps the result columns back to Hits.
func (s *MilvusIndex) Search(ctx context.Context, embedding []float32, topK int) ([]Hit, error) {
	searchParams, _ := entity.NewIndexIvfFlatSearchParam(10)
	outputFields := []string{FieldArticleURL, FieldText}

	searchResults, err := s.client.Search(
		ctx, s.collection(), []string{}, "", outputFields,
		[]entity.Vector{entity.FloatVector(embedding)},
		FieldEmbedding, entity.L2, topK, searchParams,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search in Milvus: %w", err)
	}

	var hits []Hit
	for _, res := range searchResults {
		findColumn := func(name string) entity.Column {
			for _, field := range res.Fields {
				if field.Name() == name {
					return field
				}
			}
			return nil
		}

		urlCol, ok := findColumn(FieldArticleURL).(*entity.ColumnVarChar)
		if !ok {
			s.log.Warn("Search result is missing article_url field or has wrong type, skipping.")
			continue
		}
		urlData := urlCol.Data()

		var textData []string
		if textCol, ok := findColumn(FieldText).(*entity.ColumnVarChar); ok {
			textData = textCol.Data()
		}

		for i := 0; i < res.ResultCount; i++ {
			hit := Hit{
				ArticleURL: urlData[i],
				Score:      res.Scores[i],
			}
			if textData != nil {
				hit.Text = textData[i]
			}
			hits = append(hits, hit)
		}
	}
	return hits, nil
}

// Drop discards and recreates the collection. Existing readers see an empty
// index until re-embedding repopulates it.
func (s *MilvusIndex) Drop(ctx context.Context) error {
	if err := s.wrapper.DropCollection(ctx); err != nil {
		return err
	}
	return s.wrapper.EnsureCollection(ctx)
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, ", ")
}

var _ Index = (*MilvusIndex)(nil)
