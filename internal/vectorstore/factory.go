package vectorstore

import (
	"fmt"

	"github.com/fyrsmithlabs/insightd/internal/config"
	"go.uber.org/zap"
)

// NewStore creates a Store based on the configuration.
//
// The VectorStore.Provider field selects the implementation:
//   - "chromem" (default): embedded ChromemStore, no external services
//   - "qdrant": QdrantStore, requires a running Qdrant server
//
// dimension is the embedder's output dimension, used to size Qdrant
// collections; chromem infers it from the stored vectors.
func NewStore(cfg *config.Config, embedder Embedder, dimension int, logger *zap.Logger) (Store, error) {
	switch cfg.VectorStore.Provider {
	case "chromem", "":
		return NewChromemStore(ChromemConfig{
			Path:       cfg.VectorStore.Chromem.Path,
			Collection: cfg.VectorStore.Chromem.Collection,
			Compress:   cfg.VectorStore.Chromem.Compress,
			Dimension:  dimension,
		}, embedder, logger)

	case "qdrant":
		return NewQdrantStore(QdrantConfig{
			Host:       cfg.VectorStore.Qdrant.Host,
			Port:       cfg.VectorStore.Qdrant.Port,
			Collection: cfg.VectorStore.Qdrant.Collection,
			VectorSize: uint64(dimension),
			UseTLS:     cfg.VectorStore.Qdrant.UseTLS,
		}, embedder, logger)

	default:
		return nil, fmt.Errorf("%w: unsupported provider %q (supported: chromem, qdrant)", ErrInvalidConfig, cfg.VectorStore.Provider)
	}
}
