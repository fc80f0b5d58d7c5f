package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/smartnotes/internal/errs"
)

// writeError maps sentinel errors to status codes; unknown errors are logged and hidden.
func (s *Server) writeError(c *gin.Context, op string, err error) {
	status, msg := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, errs.ErrValidation):
		status, msg = http.StatusBadRequest, strings.TrimPrefix(err.Error(), errs.ErrValidation.Error()+": ")
	case errors.Is(err, errs.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, errs.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, "bad credentials"
	case errors.Is(err, errs.ErrRateLimited):
		status, msg = http.StatusTooManyRequests, "rate limited"
	case errors.Is(err, errs.ErrAlreadyExists):
		status, msg = http.StatusConflict, "already exists"
	case errors.Is(err, errs.ErrGateway):
		status, msg = http.StatusBadGateway, "AI service failed to generate content."
	}
	if status >= http.StatusInternalServerError {
		s.log.Error(op, zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
