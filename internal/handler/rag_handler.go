package handler

import (
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mrag/internal/pkg/response"
	"github.com/xxxsen/mrag/internal/service"
)

type RAGHandler struct {
	search  *service.SearchService
	answers *service.AnswerService
}

func NewRAGHandler(search *service.SearchService, answers *service.AnswerService) *RAGHandler {
	return &RAGHandler{search: search, answers: answers}
}

type vectorSearchRequest struct {
	Query string `json:"query"`
	TopK  *int   `json:"topK"`
}

type synthRequest struct {
	Question string          `json:"question"`
	Context  json.RawMessage `json:"context"`
}

type askRequest struct {
	Question string `json:"question"`
	TopK     *int   `json:"topK"`
}

func (h *RAGHandler) VectorSearch(c *gin.Context) {
	var req vectorSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		badRequest(c, "Missing query")
		return
	}
	topK := h.search.DefaultTopK()
	if req.TopK != nil {
		topK = *req.TopK
	}
	results, err := h.search.Search(c.Request.Context(), req.Query, topK)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"results": results})
}

// Synthesize answers from caller supplied context, either a single string or
// a list of chunk texts.
func (h *RAGHandler) Synthesize(c *gin.Context) {
	var req synthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing question or context")
		return
	}
	chunks, ok := decodeContext(req.Context)
	if !ok || strings.TrimSpace(req.Question) == "" {
		badRequest(c, "Missing question or context")
		return
	}
	answer, err := h.answers.Answer(c.Request.Context(), req.Question, chunks)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"answer": answer})
}

func (h *RAGHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		badRequest(c, "Missing question")
		return
	}
	topK := h.search.DefaultTopK()
	if req.TopK != nil {
		topK = *req.TopK
	}
	res, err := h.answers.Ask(c.Request.Context(), req.Question, topK)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, res)
}

func decodeContext(raw json.RawMessage) ([]string, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if strings.TrimSpace(single) == "" {
			return nil, false
		}
		return []string{single}, true
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list, true
	}
	return nil, false
}
