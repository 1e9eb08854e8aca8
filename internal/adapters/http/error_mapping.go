package httpadapter

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage keeps infrastructure details of server side failures out of
// responses; they are logged instead.
func publicMessage(status int, err error) string {
	switch {
	case status < 500:
		return err.Error()
	case domain.IsKind(err, domain.ErrGeneration):
		return "failed to generate an answer"
	case status == http.StatusServiceUnavailable:
		return "a dependency is temporarily unavailable"
	default:
		return "internal error"
	}
}

// writeError renders err with its mapped status. notFoundMessage, when set,
// replaces the message of not found errors.
func writeError(c *gin.Context, err error, notFoundMessage string) {
	status := mapErrorToHTTPStatus(err)
	message := publicMessage(status, err)
	if status == http.StatusNotFound && notFoundMessage != "" {
		message = notFoundMessage
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func writeErrorMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
