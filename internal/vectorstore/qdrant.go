package vectorstore

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var qdrantTracer = otel.Tracer("insightd.vectorstore.qdrant")

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address. Default: "localhost"
	Host string

	// Port is the Qdrant gRPC port (not the HTTP REST port).
	// Default: 6334
	Port int

	// Collection is the collection name for all operations.
	Collection string

	// VectorSize is the dimensionality of embeddings. Must match the
	// embedder's output dimension.
	VectorSize uint64

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// MaxRetries is the maximum number of retry attempts for transient
	// failures. Default: 3
	MaxRetries int

	// RetryBackoff is the initial backoff duration, doubling per retry.
	// Default: 1 second
	RetryBackoff time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "voice_agent_knowledge"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	if !collectionNamePattern.MatchString(c.Collection) {
		return fmt.Errorf("%w: collection name must match ^[a-z0-9_]{1,64}$, got %q", ErrInvalidConfig, c.Collection)
	}
	return nil
}

// isTransientError reports whether a gRPC error is worth retrying.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// QdrantStore implements Store using Qdrant's native gRPC client.
//
// The gRPC transport (port 6334) uses binary protobuf encoding and avoids
// the payload limits of Qdrant's HTTP layer.
type QdrantStore struct {
	client   *qdrant.Client
	embedder Embedder
	config   QdrantConfig
	logger   *zap.Logger

	circuitBreaker struct {
		failures int
		lastFail time.Time
		mu       sync.Mutex
	}
}

// NewQdrantStore creates a QdrantStore: it validates the configuration,
// connects, health-checks the server, and creates the collection if needed.
func NewQdrantStore(config QdrantConfig, embedder Embedder, logger *zap.Logger) (*QdrantStore, error) {
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

	if !config.UseTLS {
		logger.Warn("qdrant gRPC using plaintext, enable TLS for production")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	s := &QdrantStore{
		client:   client,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.HealthCheck(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err)
	}

	if err := s.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("qdrant store initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("collection", config.Collection),
	)

	return s, nil
}

// ensureCollection creates the configured collection if it does not exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.config.Collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", s.config.Collection, err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.config.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.config.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.config.Collection, err)
	}
	return nil
}

// retryOperation retries an operation with exponential backoff on transient
// gRPC errors, guarded by a simple circuit breaker.
func (s *QdrantStore) retryOperation(ctx context.Context, name string, op func() error) error {
	backoff := s.config.RetryBackoff

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		err := op()
		if err == nil {
			s.resetCircuitBreaker()
			return nil
		}

		if s.isCircuitOpen() {
			return fmt.Errorf("%s: circuit breaker open", name)
		}
		if !isTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", name, err)
		}

		s.recordFailure()

		if attempt == s.config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", name, s.config.MaxRetries, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", name, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return nil
}

func (s *QdrantStore) recordFailure() {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()
	s.circuitBreaker.failures++
	s.circuitBreaker.lastFail = time.Now()
}

func (s *QdrantStore) resetCircuitBreaker() {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()
	s.circuitBreaker.failures = 0
}

func (s *QdrantStore) isCircuitOpen() bool {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()

	const threshold = 5
	if s.circuitBreaker.failures >= threshold {
		// Allow retry after 30 seconds.
		if time.Since(s.circuitBreaker.lastFail) > 30*time.Second {
			s.circuitBreaker.failures = 0
			return false
		}
		return true
	}
	return false
}

// pointID derives a stable UUID from a document ID so that re-inserting the
// same ID upserts instead of duplicating.
func pointID(docID string) *qdrant.PointId {
	if _, err := uuid.Parse(docID); err == nil {
		return qdrant.NewIDUUID(docID)
	}
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(docID)).String())
}

// AddDocuments embeds and upserts documents. The original document ID is
// preserved in payload["id"] for retrieval.
func (s *QdrantStore) AddDocuments(ctx context.Context, docs []Document) (ids []string, err error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.AddDocuments")
	defer span.End()
	defer func() { recordAdd("qdrant", len(docs), err) }()

	span.SetAttributes(
		attribute.Int("document_count", len(docs)),
		attribute.String("collection", s.config.Collection),
	)

	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	points := make([]*qdrant.PointStruct, len(docs))
	ids = make([]string, len(docs))

	for i, doc := range docs {
		id := doc.ID
		if id == "" {
			id = fmt.Sprintf("doc_%d_%d", timeNow().UnixNano(), i)
		}
		ids[i] = id

		payload := make(map[string]*qdrant.Value, len(doc.Metadata)+2)
		payload["content"] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: doc.Content}}
		payload["id"] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: id}}
		for k, v := range doc.Metadata {
			payload[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
		}

		points[i] = &qdrant.PointStruct{
			Id:      pointID(id),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: payload,
		}
	}

	err = s.retryOperation(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.config.Collection,
			Points:         points,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("upserting points to collection %s: %w", s.config.Collection, err)
	}

	span.SetAttributes(attribute.Int("points_added", len(ids)))
	span.SetStatus(codes.Ok, "success")
	return ids, nil
}

// Search performs similarity search with optional exact-match metadata
// filters.
func (s *QdrantStore) Search(ctx context.Context, query string, k int, filters map[string]string) (results []SearchResult, err error) {
	start := timeNow()
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Search")
	defer span.End()
	defer func() { recordSearch("qdrant", start, err) }()

	span.SetAttributes(
		attribute.String("collection", s.config.Collection),
		attribute.Int("k", k),
	)

	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	const maxK = 10000
	if k > maxK {
		k = maxK
	}

	queryVector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	var filter *qdrant.Filter
	if len(filters) > 0 {
		conditions := make([]*qdrant.Condition, 0, len(filters))
		for key, value := range filters {
			conditions = append(conditions, &qdrant.Condition{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: key,
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Keyword{Keyword: value},
						},
					},
				},
			})
		}
		filter = &qdrant.Filter{Must: conditions}
	}

	var scored []*qdrant.ScoredPoint
	err = s.retryOperation(ctx, "search", func() error {
		res, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.config.Collection,
			Query:          qdrant.NewQuery(queryVector...),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
			Filter:         filter,
		})
		if err != nil {
			return err
		}
		scored = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching collection %s: %w", s.config.Collection, err)
	}

	results = make([]SearchResult, len(scored))
	for i, point := range scored {
		result := SearchResult{
			Similarity: point.Score,
			Metadata:   make(map[string]string),
		}
		for k, v := range point.Payload {
			sv, ok := v.Kind.(*qdrant.Value_StringValue)
			if !ok {
				continue
			}
			switch k {
			case "content":
				result.Content = sv.StringValue
			case "id":
				result.ID = sv.StringValue
			default:
				result.Metadata[k] = sv.StringValue
			}
		}
		results[i] = result
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// Count returns the number of stored points.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	info, err := s.client.GetCollectionInfo(ctx, s.config.Collection)
	if err != nil {
		return 0, fmt.Errorf("getting collection info: %w", err)
	}
	if info.PointsCount == nil {
		return 0, nil
	}
	return int(*info.PointsCount), nil
}

// Clear removes all points by dropping and recreating the collection.
func (s *QdrantStore) Clear(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Clear")
	defer span.End()

	if err := s.client.DeleteCollection(ctx, s.config.Collection); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting collection %s: %w", s.config.Collection, err)
	}
	if err := s.ensureCollection(ctx); err != nil {
		span.RecordError(err)
		return err
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Info("cleared qdrant collection", zap.String("collection", s.config.Collection))
	return nil
}

// Info describes the collection.
func (s *QdrantStore) Info(ctx context.Context) (CollectionInfo, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return CollectionInfo{}, err
	}
	return CollectionInfo{
		Name:       s.config.Collection,
		PointCount: count,
		VectorSize: int(s.config.VectorSize),
	}, nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
