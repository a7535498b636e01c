package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mrag/internal/model"
	"github.com/xxxsen/mrag/internal/pkg/jwt"
	"github.com/xxxsen/mrag/internal/service"
	"github.com/xxxsen/mrag/internal/testutil"
	"github.com/xxxsen/mrag/internal/vectorindex"
)

type fakeIndexes struct{ exists bool }

func (f *fakeIndexes) Exists(ctx context.Context) (bool, error) { return f.exists, nil }
func (f *fakeIndexes) Ensure(ctx context.Context) (bool, error) {
	created := !f.exists
	f.exists = true
	return created, nil
}

type testEnv struct {
	router   *gin.Engine
	store    *testutil.MemStore
	embedder *testutil.StubEmbedder
	answerer *testutil.StubAnswerer
}

func newTestEnv(t *testing.T, secret []byte) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := testutil.NewMemStore()
	emb := testutil.NewStubEmbedder(8)
	answerer := &testutil.StubAnswerer{Reply: "stub answer"}

	ingest, err := service.NewIngestService(store, store, emb, nil, service.IngestConfig{ChunkSize: 4, ChunkOverlap: 2})
	require.NoError(t, err)
	search := service.NewSearchService(emb, vectorindex.NewPGVector(store), 5, 50)
	answers := service.NewAnswerService(answerer, search, service.AnswerConfig{})

	r := gin.New()
	RegisterRoutes(r.Group("/api/v1"), RouterDeps{
		Documents:   NewDocumentHandler(ingest, 1<<20),
		RAG:         NewRAGHandler(search, answers),
		Index:       NewIndexHandler(service.NewIndexService(&fakeIndexes{}, "pgvector")),
		AdminSecret: secret,
	})
	return &testEnv{router: r, store: store, embedder: emb, answerer: answerer}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst))
}

func TestUploadProcessSearchFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/v1/rag-documents/upload", gin.H{
		"title": "Letters", "filetype": "txt", "content": "abcdefghij",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var doc model.Document
	decode(t, w, &doc)
	require.NotEmpty(t, doc.ID)
	require.Equal(t, model.DocumentStatusUploaded, doc.Status)

	w = env.do(t, http.MethodPost, "/api/v1/rag-documents/process", gin.H{"documentId": doc.ID})
	require.Equal(t, http.StatusOK, w.Code)
	var processed map[string]interface{}
	decode(t, w, &processed)
	require.Equal(t, doc.ID, processed["documentId"])
	require.Equal(t, float64(4), processed["chunks"])
	require.Equal(t, "processed", processed["status"])

	w = env.do(t, http.MethodPost, "/api/v1/rag-documents/process", gin.H{"documentId": doc.ID})
	require.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/rag-documents/"+doc.ID+"/chunks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var chunks []map[string]interface{}
	decode(t, w, &chunks)
	require.Len(t, chunks, 4)
	require.NotContains(t, chunks[0], "embedding")

	w = env.do(t, http.MethodPost, "/api/v1/rag-chunks/vector-search", gin.H{"query": "efgh", "topK": 2})
	require.Equal(t, http.StatusOK, w.Code)
	var search struct {
		Results []struct {
			Text       string  `json:"text"`
			ChunkIndex int     `json:"chunkIndex"`
			Score      float64 `json:"score"`
			Document   struct {
				ID    string `json:"_id"`
				Title string `json:"title"`
			} `json:"document"`
		} `json:"results"`
	}
	decode(t, w, &search)
	require.Len(t, search.Results, 2)
	require.Equal(t, "efgh", search.Results[0].Text)
	require.Equal(t, 2, search.Results[0].ChunkIndex)
	require.Equal(t, "Letters", search.Results[0].Document.Title)

	w = env.do(t, http.MethodGet, "/api/v1/rag-documents", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var docs []model.Document
	decode(t, w, &docs)
	require.Len(t, docs, 1)
	require.Equal(t, model.DocumentStatusProcessed, docs[0].Status)
}

func TestUploadMultipart(t *testing.T) {
	env := newTestEnv(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("title", "Readme"))
	fw, err := mw.CreateFormFile("file", "readme.md")
	require.NoError(t, err)
	_, err = fw.Write([]byte("# Title\n\nSome *text*."))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rag-documents/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var doc model.Document
	decode(t, w, &doc)
	require.Equal(t, "Readme", doc.Title)
	require.Equal(t, model.FileTypeMarkdown, doc.FileType)
	require.Equal(t, "Title\n\nSome text.", *doc.Content)
}

func TestErrorResponses(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/v1/rag-documents/missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]string
	decode(t, w, &body)
	require.Equal(t, "not_found", body["code"])
	require.Equal(t, "document not found", body["error"])

	w = env.do(t, http.MethodPost, "/api/v1/rag-documents/upload", gin.H{"title": "x", "filetype": "docx"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/rag-documents/process", gin.H{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	decode(t, w, &body)
	require.Equal(t, "Missing documentId", body["error"])

	w = env.do(t, http.MethodPost, "/api/v1/rag-documents/upload", gin.H{"title": "No content", "filetype": "pdf"})
	require.Equal(t, http.StatusOK, w.Code)
	var doc model.Document
	decode(t, w, &doc)
	w = env.do(t, http.MethodPost, "/api/v1/rag-documents/process", gin.H{"documentId": doc.ID})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/rag-chunks/vector-search", gin.H{"query": "q", "topK": 0})
	require.Equal(t, http.StatusBadRequest, w.Code)

	env.embedder.FailOn = func(string) error { return errors.New("upstream down") }
	w = env.do(t, http.MethodPost, "/api/v1/rag-chunks/vector-search", gin.H{"query": "q"})
	require.Equal(t, http.StatusBadGateway, w.Code)
	decode(t, w, &body)
	require.Equal(t, "embedding_failed", body["code"])
	require.NotContains(t, body["error"], "upstream down")
}

func TestSynthesize(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/v1/rag-chunks/llm-synth", gin.H{"question": "q", "context": "some context"})
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	decode(t, w, &body)
	require.Equal(t, "stub answer", body["answer"])

	w = env.do(t, http.MethodPost, "/api/v1/rag-chunks/llm-synth", gin.H{"question": "q", "context": []string{"a", "b"}})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "a\n\n---\n\nb", env.answerer.Contexts[1])

	w = env.do(t, http.MethodPost, "/api/v1/rag-chunks/llm-synth", gin.H{"question": "q"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	env.answerer.Err = errors.New("model timeout")
	w = env.do(t, http.MethodPost, "/api/v1/rag-chunks/llm-synth", gin.H{"question": "q2", "context": "c"})
	require.Equal(t, http.StatusBadGateway, w.Code)
	decode(t, w, &body)
	require.Equal(t, "synthesis_failed", body["code"])
}

func TestAskWithEmptyCorpus(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodPost, "/api/v1/rag-chunks/ask", gin.H{"question": "anything?"})
	require.Equal(t, http.StatusOK, w.Code)
	var res service.AskResult
	decode(t, w, &res)
	require.True(t, res.Fallback)
	require.Equal(t, service.NoAnswerMessage, res.Answer)
	require.Empty(t, res.Sources)

	w = env.do(t, http.MethodPost, "/api/v1/rag-chunks/ask", gin.H{"question": "anything?", "topK": 0})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVectorIndexEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodGet, "/api/v1/rag-settings/vector-index", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"exists":false`)

	w = env.do(t, http.MethodPost, "/api/v1/rag-settings/vector-index", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"created":true`)

	w = env.do(t, http.MethodGet, "/api/v1/rag-settings/vector-index", nil)
	require.Contains(t, w.Body.String(), `"exists":true`)
}

func TestAdminGuard(t *testing.T) {
	secret := []byte("secret")
	env := newTestEnv(t, secret)

	w := env.do(t, http.MethodPost, "/api/v1/rag-documents/upload", gin.H{"title": "t", "filetype": "txt", "content": "x"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := jwt.GenerateToken("ops", jwt.RoleAdmin, secret, time.Hour)
	require.NoError(t, err)
	w = env.do(t, http.MethodPost, "/api/v1/rag-documents/upload", gin.H{"title": "t", "filetype": "txt", "content": "x"},
		"Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/rag-documents", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestFormatUploadLimit(t *testing.T) {
	require.Equal(t, "unlimited", formatUploadLimit(0))
	require.Equal(t, "512B", formatUploadLimit(512))
	require.Equal(t, "1KB", formatUploadLimit(1500))
	require.Equal(t, "10MB", formatUploadLimit(10<<20))
}
