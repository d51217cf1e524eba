package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTEITestServer fakes the TEI /embed endpoint, returning one fixed-size
// vector per input text.
func newTEITestServer(t *testing.T, dimension int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/embed", r.URL.Path)

		var req struct {
			Inputs   interface{} `json:"inputs"`
			Truncate bool        `json:"truncate"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.True(t, req.Truncate)

		count := 1
		if texts, ok := req.Inputs.([]interface{}); ok {
			count = len(texts)
		}

		vectors := make([][]float32, count)
		for i := range vectors {
			vec := make([]float32, dimension)
			for j := range vec {
				vec[j] = float32(i + 1)
			}
			vectors[i] = vec
		}
		json.NewEncoder(w).Encode(vectors)
	}))
}

func TestNewTEIProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TEIConfig
		wantErr bool
	}{
		{
			name: "valid configuration",
			cfg:  TEIConfig{BaseURL: "http://localhost:8080", Model: "BAAI/bge-small-en-v1.5"},
		},
		{
			name:    "missing base URL",
			cfg:     TEIConfig{Model: "BAAI/bge-small-en-v1.5"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewTEIProvider(tt.cfg)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, p)
		})
	}
}

func TestTEIEmbedDocuments(t *testing.T) {
	srv := newTEITestServer(t, 4)
	defer srv.Close()

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL, Model: "test-model"})
	require.NoError(t, err)

	vectors, err := p.EmbedDocuments(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for _, v := range vectors {
		assert.Len(t, v, 4)
	}
}

func TestTEIEmbedQuery(t *testing.T) {
	srv := newTEITestServer(t, 4)
	defer srv.Close()

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL, Model: "test-model"})
	require.NoError(t, err)

	vec, err := p.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
}

func TestTEIRejectsEmptyInput(t *testing.T) {
	p, err := NewTEIProvider(TEIConfig{BaseURL: "http://localhost:8080"})
	require.NoError(t, err)

	_, err = p.EmbedDocuments(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmptyInput)

	_, err = p.EmbedQuery(context.Background(), "")
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestTEIServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.EmbedQuery(context.Background(), "hello")
	require.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), "503")
}

func TestTEIContextCancellation(t *testing.T) {
	srv := newTEITestServer(t, 4)
	defer srv.Close()

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.EmbedQuery(ctx, "hello")
	require.Error(t, err)
}
