package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wrls/billing/internal/interfaces/http/dto"
)

// BodyLimit rejects request bodies over maxBytes. A declared
// Content-Length over the limit is refused up front; chunked bodies are
// cut off by a MaxBytesReader while streaming.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponse("REQUEST_TOO_LARGE", "Request body exceeds maximum allowed size"))
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
