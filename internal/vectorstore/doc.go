// Package vectorstore provides vector storage for semantic retrieval over
// past interactions. Two backends are supported: an embedded chromem-go
// database persisted to a local directory (default) and an external Qdrant
// server reached over gRPC.
package vectorstore
