package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Error writes the error body and aborts the handler chain.
func Error(c *gin.Context, status int, code string, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{Error: message, Code: code})
}
