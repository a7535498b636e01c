package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
	"github.com/xxxsen/mrag/internal/pkg/response"
)

type errorMapping struct {
	kind   error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{appErr.ErrInvalid, http.StatusBadRequest, "invalid"},
	{appErr.ErrNotFound, http.StatusNotFound, "not_found"},
	{appErr.ErrConflict, http.StatusConflict, "conflict"},
	{appErr.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{appErr.ErrTooMany, http.StatusTooManyRequests, "too_many_requests"},
	{appErr.ErrEmbedding, http.StatusBadGateway, "embedding_failed"},
	{appErr.ErrSynthesis, http.StatusBadGateway, "synthesis_failed"},
	{appErr.ErrStorage, http.StatusInternalServerError, "storage_failed"},
}

// handleError logs err with its cause and writes the caller-safe message.
func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get("request_id")
	fields := []zap.Field{
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.kind) {
			if m.status >= http.StatusInternalServerError {
				logutil.GetLogger(c.Request.Context()).Error("request failed", fields...)
			} else {
				logutil.GetLogger(c.Request.Context()).Warn("request rejected", fields...)
			}
			response.Error(c, m.status, m.code, appErr.Message(err))
			return
		}
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed", fields...)
	response.Error(c, http.StatusInternalServerError, "internal", "internal error")
}

func badRequest(c *gin.Context, message string) {
	response.Error(c, http.StatusBadRequest, "invalid", message)
}
