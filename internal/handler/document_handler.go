package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mrag/internal/pkg/response"
	"github.com/xxxsen/mrag/internal/service"
)

type DocumentHandler struct {
	ingest         *service.IngestService
	maxUploadBytes int64
}

func NewDocumentHandler(ingest *service.IngestService, maxUploadBytes int64) *DocumentHandler {
	return &DocumentHandler{ingest: ingest, maxUploadBytes: maxUploadBytes}
}

type uploadRequest struct {
	Title    string  `json:"title"`
	FileType string  `json:"filetype"`
	Content  *string `json:"content"`
}

type processRequest struct {
	DocumentID string `json:"documentId"`
	Force      bool   `json:"force"`
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.ingest.List(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.ingest.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) Chunks(c *gin.Context) {
	chunks, err := h.ingest.ListChunks(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, chunks)
}

// Upload accepts either a JSON body with pasted content or a multipart form
// carrying a text file.
func (h *DocumentHandler) Upload(c *gin.Context) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		h.uploadFile(c)
		return
	}
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request. Must provide content or file.")
		return
	}
	doc, err := h.ingest.Ingest(c.Request.Context(), service.IngestInput{
		Title:    req.Title,
		FileType: req.FileType,
		Content:  req.Content,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) uploadFile(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Error(c, http.StatusRequestEntityTooLarge, "invalid", "file exceeds "+formatUploadLimit(h.maxUploadBytes))
			return
		}
		badRequest(c, "Invalid request. Must provide content or file.")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		badRequest(c, "could not read uploaded file")
		return
	}
	doc, err := h.ingest.IngestFile(c.Request.Context(), c.PostForm("title"), header.Filename, data)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) Process(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.DocumentID) == "" {
		badRequest(c, "Missing documentId")
		return
	}
	res, err := h.ingest.Process(c.Request.Context(), req.DocumentID, req.Force)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, res)
}
