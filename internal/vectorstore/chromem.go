package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// timeNow is a variable for testing purposes.
var timeNow = time.Now

var chromemTracer = otel.Tracer("insightd.vectorstore.chromem")

// ChromemConfig holds configuration for the chromem-go embedded backend.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	Path string

	// Collection is the collection name.
	Collection string

	// Compress enables gzip compression for stored data.
	Compress bool

	// Dimension is the embedder's output dimension, reported by Info.
	// chromem itself infers it from the stored vectors.
	Dimension int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = "voice_agent_knowledge"
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements Store using chromem-go.
//
// chromem-go is an embeddable vector database with zero third-party
// dependencies. Documents persist as gob files under the configured
// directory, so the collection survives restarts without any external
// service.
type ChromemStore struct {
	db       *chromem.DB
	embedder Embedder
	config   ChromemConfig
	logger   *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewChromemStore creates a ChromemStore, creating the storage directory and
// the collection if they do not exist yet.
func NewChromemStore(config ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	expandedPath, err := expandPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	config.Path = expandedPath

	if err := os.MkdirAll(expandedPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", expandedPath, err)
	}

	db, err := chromem.NewPersistentDB(expandedPath, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	s := &ChromemStore{
		db:       db,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}

	// Create the collection eagerly so Count and Search work before the
	// first insert.
	if _, err := s.db.GetOrCreateCollection(config.Collection, nil, s.embeddingFunc()); err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", config.Collection, err)
	}

	logger.Info("chromem store initialized",
		zap.String("path", expandedPath),
		zap.String("collection", config.Collection),
		zap.Bool("compress", config.Compress),
	)

	return s, nil
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// embeddingFunc bridges the Embedder interface to chromem.EmbeddingFunc.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

func (s *ChromemStore) collection() (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	collection := s.db.GetCollection(s.config.Collection, s.embeddingFunc())
	if collection == nil {
		c, err := s.db.GetOrCreateCollection(s.config.Collection, nil, s.embeddingFunc())
		if err != nil {
			return nil, fmt.Errorf("recreating collection %s: %w", s.config.Collection, err)
		}
		return c, nil
	}
	return collection, nil
}

// AddDocuments embeds and stores documents. Existing IDs are overwritten.
func (s *ChromemStore) AddDocuments(ctx context.Context, docs []Document) (ids []string, err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.AddDocuments")
	defer span.End()
	defer func() { recordAdd("chromem", len(docs), err) }()

	span.SetAttributes(attribute.Int("document_count", len(docs)))

	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	collection, err := s.collection()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	ids = make([]string, len(docs))
	texts := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
		if ids[i] == "" {
			// Callers should provide explicit IDs; fall back to a unique one.
			ids[i] = fmt.Sprintf("doc_%d_%d", timeNow().UnixNano(), i)
			s.logger.Warn("auto-generated document ID",
				zap.String("generated_id", ids[i]),
				zap.Int("index", i),
			)
		}
		texts[i] = doc.Content
	}

	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromemDocs[i] = chromem.Document{
			ID:        ids[i],
			Content:   doc.Content,
			Metadata:  doc.Metadata,
			Embedding: embeddings[i],
		}
	}

	// Concurrency of 1 since embeddings are already computed.
	if err = collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("adding documents: %w", err)
	}

	span.SetAttributes(attribute.Int("documents_added", len(ids)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("added documents to chromem",
		zap.String("collection", s.config.Collection),
		zap.Int("count", len(docs)),
	)

	return ids, nil
}

// Search performs similarity search with optional exact-match metadata
// filters. k is capped at the collection size; an empty collection yields an
// empty result.
func (s *ChromemStore) Search(ctx context.Context, query string, k int, filters map[string]string) (results []SearchResult, err error) {
	start := timeNow()
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Search")
	defer span.End()
	defer func() { recordSearch("chromem", start, err) }()

	span.SetAttributes(attribute.Int("k", k))

	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	collection, err := s.collection()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// chromem requires nResults <= document count.
	docCount := collection.Count()
	if docCount == 0 {
		return []SearchResult{}, nil
	}
	if k > docCount {
		k = docCount
	}

	raw, err := collection.Query(ctx, query, k, filters, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.config.Collection, err)
	}

	results = make([]SearchResult, len(raw))
	for i, r := range raw {
		results[i] = SearchResult{
			ID:         r.ID,
			Content:    r.Content,
			Similarity: r.Similarity,
			Metadata:   r.Metadata,
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("searched chromem collection",
		zap.String("collection", s.config.Collection),
		zap.Int("k", k),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// Count returns the number of stored documents.
func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	collection, err := s.collection()
	if err != nil {
		return 0, err
	}
	return collection.Count(), nil
}

// Clear removes all documents by dropping and recreating the collection.
func (s *ChromemStore) Clear(ctx context.Context) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Clear")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	if err := s.db.DeleteCollection(s.config.Collection); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting collection %s: %w", s.config.Collection, err)
	}
	if _, err := s.db.GetOrCreateCollection(s.config.Collection, nil, s.embeddingFunc()); err != nil {
		span.RecordError(err)
		return fmt.Errorf("recreating collection %s: %w", s.config.Collection, err)
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Info("cleared chromem collection", zap.String("collection", s.config.Collection))
	return nil
}

// Info describes the collection.
func (s *ChromemStore) Info(ctx context.Context) (CollectionInfo, error) {
	collection, err := s.collection()
	if err != nil {
		return CollectionInfo{}, err
	}
	return CollectionInfo{
		Name:       s.config.Collection,
		PointCount: collection.Count(),
		VectorSize: s.config.Dimension,
	}, nil
}

// Close marks the store closed. chromem-go holds no connections; persisted
// state is already on disk.
func (s *ChromemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
