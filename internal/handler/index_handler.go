package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mrag/internal/pkg/response"
	"github.com/xxxsen/mrag/internal/service"
)

type IndexHandler struct {
	indexes *service.IndexService
}

func NewIndexHandler(indexes *service.IndexService) *IndexHandler {
	return &IndexHandler{indexes: indexes}
}

func (h *IndexHandler) Status(c *gin.Context) {
	st, err := h.indexes.Status(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, st)
}

func (h *IndexHandler) Ensure(c *gin.Context) {
	created, err := h.indexes.Ensure(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"created": created})
}
