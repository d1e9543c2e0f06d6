package knowledge_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbrouter/kbrouter/knowledge"
)

func TestOpenAIEmbedder(t *testing.T) {
	var gotModel string
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel = req.Model

		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		// answer in reverse order to check index handling
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Object: "embedding", Embedding: []float32{float32(len(req.Input[i])), float32(i)}, Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
		})
	}))
	defer srv.Close()

	e := knowledge.NewOpenAIEmbedder(knowledge.EmbedderConfig{BaseURL: srv.URL + "/v1", APIKey: "test-key"})

	vecs, err := e.EmbedDocuments(context.Background(), []string{"a", "bbb", "cc"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {3, 1}, {2, 2}}, vecs)
	assert.Equal(t, knowledge.DefaultEmbeddingModel, gotModel)
	assert.Equal(t, "Bearer test-key", gotAuth)

	q, err := e.EmbedQuery(context.Background(), "dddd")
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 0}, q)
}

func TestOpenAIEmbedder_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	e := knowledge.NewOpenAIEmbedder(knowledge.EmbedderConfig{BaseURL: srv.URL, Model: "nomic-embed-text"})
	_, err := e.EmbedQuery(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}
