// Package embeddings generates text embeddings via a local ONNX model
// (FastEmbed) or a remote Text Embeddings Inference server.
package embeddings
