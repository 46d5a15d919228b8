package middleware

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKeyRequestID is the gin context key carrying the request id.
const ContextKeyRequestID = "request_id"

// RequestID injects an X-Request-ID header into the request and response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// Logger logs each request with the authenticated user and, on
// document-scoped routes, the document id, so one document's pipeline can
// be traced across requests.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		line := fmt.Sprintf("[%s] %s %s %d %s",
			c.GetString(ContextKeyRequestID),
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			time.Since(start),
		)
		if userID, err := GetUserID(c); err == nil {
			line += " user=" + userID.String()
		}
		if docID := c.Param("id"); docID != "" {
			line += " document=" + docID
		}
		log.Print(line)
	}
}

// Recovery converts panics into the standard error envelope, keeping the
// request id so the failure can be correlated with the request log.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		requestID := c.GetString(ContextKeyRequestID)
		log.Printf("[%s] middleware.Recovery: panic: %v", requestID, rec)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":       "INTERNAL_ERROR",
				"message":    "internal server error",
				"request_id": requestID,
			},
		})
	})
}
