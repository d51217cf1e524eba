package knowledge

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/insightd/internal/vectorstore"
)

var tracer = otel.Tracer("insightd.knowledge")

// Retriever indexes interactions and patterns in a vector store and serves
// similarity queries over them.
type Retriever struct {
	store  vectorstore.Store
	model  string
	logger *zap.Logger
}

// NewRetriever creates a Retriever over the given vector store. model is the
// embedding model identifier, reported by Statistics.
func NewRetriever(store vectorstore.Store, model string, logger *zap.Logger) (*Retriever, error) {
	if store == nil {
		return nil, fmt.Errorf("vector store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{store: store, model: model, logger: logger}, nil
}

// conversationText renders one turn as the indexed document text.
func conversationText(userMessage, agentResponse string) string {
	return "User: " + userMessage + "\nAgent: " + agentResponse
}

// mergeMetadata combines caller metadata with reserved entries. Reserved
// keys overwrite caller-supplied ones.
func mergeMetadata(user, reserved map[string]string) map[string]string {
	merged := make(map[string]string, len(user)+len(reserved))
	for k, v := range user {
		merged[k] = v
	}
	for k, v := range reserved {
		merged[k] = v
	}
	return merged
}

// InsertConversation indexes one logged turn. The id is derived from the
// durable record id, so re-indexing the same record overwrites rather than
// duplicates.
func (r *Retriever) InsertConversation(ctx context.Context, conv Conversation) (string, error) {
	ctx, span := tracer.Start(ctx, "Retriever.InsertConversation")
	defer span.End()

	id := fmt.Sprintf("conv_%d", conv.RecordID)
	span.SetAttributes(attribute.String("document_id", id))

	doc := vectorstore.Document{
		ID:      id,
		Content: conversationText(conv.UserMessage, conv.AgentResponse),
		Metadata: mergeMetadata(conv.Metadata, map[string]string{
			"type":             TypeConversation,
			"session_id":       conv.SessionID,
			"success":          strconv.FormatBool(conv.Success),
			"timestamp":        conv.Timestamp.UTC().Format(time.RFC3339),
			"response_time_ms": strconv.FormatFloat(conv.ResponseTimeMS, 'f', -1, 64),
		}),
	}

	if _, err := r.store.AddDocuments(ctx, []vectorstore.Document{doc}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("%w: indexing conversation: %v", ErrIndex, err)
	}

	r.logger.Debug("indexed conversation",
		zap.String("id", id),
		zap.String("session_id", conv.SessionID),
	)

	span.SetStatus(codes.Ok, "success")
	return id, nil
}

// InsertPattern indexes a curated successful pattern under a fresh
// pattern_<hex> id.
func (r *Retriever) InsertPattern(ctx context.Context, description, category string, metadata map[string]string) (string, error) {
	ctx, span := tracer.Start(ctx, "Retriever.InsertPattern")
	defer span.End()

	if strings.TrimSpace(description) == "" {
		return "", ErrEmptyPattern
	}
	if category == "" {
		category = "general"
	}

	id := "pattern_" + uuid.New().String()[:8]
	span.SetAttributes(
		attribute.String("document_id", id),
		attribute.String("category", category),
	)

	doc := vectorstore.Document{
		ID:      id,
		Content: description,
		Metadata: mergeMetadata(metadata, map[string]string{
			"type":     TypePattern,
			"category": category,
			"added":    time.Now().UTC().Format(time.RFC3339),
		}),
	}

	if _, err := r.store.AddDocuments(ctx, []vectorstore.Document{doc}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("%w: indexing pattern: %v", ErrIndex, err)
	}

	r.logger.Info("added pattern",
		zap.String("id", id),
		zap.String("category", category),
	)

	span.SetStatus(codes.Ok, "success")
	return id, nil
}

// Query returns up to k entries most similar to query, highest similarity
// first. Filters restrict results to entries whose metadata matches every
// key/value exactly. k <= 0 uses DefaultTopK.
func (r *Retriever) Query(ctx context.Context, query string, k int, filters map[string]string) ([]Entry, error) {
	ctx, span := tracer.Start(ctx, "Retriever.Query")
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = DefaultTopK
	}
	span.SetAttributes(attribute.Int("k", k))

	results, err := r.store.Search(ctx, query, k, filters)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: querying index: %v", ErrIndex, err)
	}

	entries := make([]Entry, len(results))
	for i, res := range results {
		entries[i] = Entry{
			ID:         res.ID,
			Content:    res.Content,
			Similarity: res.Similarity,
			Metadata:   res.Metadata,
		}
	}

	span.SetAttributes(attribute.Int("results", len(entries)))
	span.SetStatus(codes.Ok, "success")
	return entries, nil
}

// Statistics describes the index contents.
func (r *Retriever) Statistics(ctx context.Context) (Statistics, error) {
	info, err := r.store.Info(ctx)
	if err != nil {
		return Statistics{}, fmt.Errorf("%w: reading index info: %v", ErrIndex, err)
	}
	return Statistics{
		DocumentCount:      info.PointCount,
		CollectionName:     info.Name,
		EmbeddingDimension: info.VectorSize,
		Model:              r.model,
	}, nil
}

// ClearAll removes every indexed document. The index stays usable.
func (r *Retriever) ClearAll(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Retriever.ClearAll")
	defer span.End()

	if err := r.store.Clear(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: clearing index: %v", ErrIndex, err)
	}

	r.logger.Info("cleared knowledge index")
	span.SetStatus(codes.Ok, "success")
	return nil
}
