package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mrag/internal/middleware"
)

type RouterDeps struct {
	Documents   *DocumentHandler
	RAG         *RAGHandler
	Index       *IndexHandler
	AdminSecret []byte
	RateLimit   time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	admin := middleware.AdminAuth(deps.AdminSecret)
	limited := middleware.RateLimit(deps.RateLimit)

	api.GET("/rag-documents", deps.Documents.List)
	api.GET("/rag-documents/:id", deps.Documents.Get)
	api.GET("/rag-documents/:id/chunks", deps.Documents.Chunks)
	api.POST("/rag-documents/upload", admin, deps.Documents.Upload)
	api.POST("/rag-documents/process", admin, deps.Documents.Process)

	api.POST("/rag-chunks/vector-search", deps.RAG.VectorSearch)
	api.POST("/rag-chunks/llm-synth", limited, deps.RAG.Synthesize)
	api.POST("/rag-chunks/ask", limited, deps.RAG.Ask)

	api.GET("/rag-settings/vector-index", deps.Index.Status)
	api.POST("/rag-settings/vector-index", admin, deps.Index.Ensure)
}
