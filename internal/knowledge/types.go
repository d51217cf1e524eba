package knowledge

import (
	"errors"
	"time"
)

var (
	// ErrIndex indicates a vector index failure.
	ErrIndex = errors.New("knowledge index error")

	// ErrEmptyQuery indicates an empty query string.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrEmptyPattern indicates an empty pattern description.
	ErrEmptyPattern = errors.New("pattern description cannot be empty")
)

// DefaultTopK is the number of results returned when the caller does not
// specify one.
const DefaultTopK = 3

// Document type markers stored in metadata under "type".
const (
	TypeConversation = "conversation"
	TypePattern      = "pattern"
)

// Conversation is one logged turn to index for retrieval.
type Conversation struct {
	// RecordID is the durable log id; the index entry becomes conv_<RecordID>.
	RecordID int64

	SessionID      string
	UserMessage    string
	AgentResponse  string
	ResponseTimeMS float64
	Success        bool
	Timestamp      time.Time

	// Metadata is carried into the index entry. Reserved keys (type,
	// session_id, success, timestamp, response_time_ms) overwrite
	// caller-supplied values.
	Metadata map[string]string
}

// Entry is one retrieval hit.
type Entry struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Similarity float32           `json:"similarity"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Statistics describes the index contents.
type Statistics struct {
	DocumentCount      int    `json:"document_count"`
	CollectionName     string `json:"collection_name"`
	EmbeddingDimension int    `json:"embedding_dimension"`
	Model              string `json:"model"`
}
