package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/and161185/smartnotes/internal/errs"
)

type aiRequest struct {
	NoteContent  string `json:"noteContent"`
	SelectedText string `json:"selectedText"`
	Subject      string `json:"subject"`
}

func (s *Server) summarize(c *gin.Context) {
	s.runAI(c, "summarize", "summary", func(ctx context.Context, r aiRequest) (string, error) {
		return s.assistant.Summarize(ctx, r.NoteContent)
	})
}

func (s *Server) explain(c *gin.Context) {
	s.runAI(c, "explain", "explanation", func(ctx context.Context, r aiRequest) (string, error) {
		return s.assistant.Explain(ctx, r.SelectedText)
	})
}

func (s *Server) quiz(c *gin.Context) {
	s.runAI(c, "quiz", "quiz", func(ctx context.Context, r aiRequest) (string, error) {
		return s.assistant.Quiz(ctx, r.NoteContent)
	})
}

func (s *Server) enhance(c *gin.Context) {
	s.runAI(c, "enhance", "enhancedNotes", func(ctx context.Context, r aiRequest) (string, error) {
		return s.assistant.Enhance(ctx, r.NoteContent)
	})
}

func (s *Server) studyTips(c *gin.Context) {
	s.runAI(c, "study-tips", "studyTips", func(ctx context.Context, r aiRequest) (string, error) {
		return s.assistant.StudyTips(ctx, r.NoteContent, r.Subject)
	})
}

// runAI decodes the request, runs one assistant operation and replies {key: result}.
func (s *Server) runAI(c *gin.Context, op, key string, run func(context.Context, aiRequest) (string, error)) {
	var req aiRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.metrics.ai.WithLabelValues(op, "invalid").Inc()
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "bad request body"})
		return
	}
	out, err := run(c.Request.Context(), req)
	if err != nil {
		outcome := "error"
		switch {
		case errors.Is(err, errs.ErrValidation):
			outcome = "invalid"
		case errors.Is(err, errs.ErrGateway):
			outcome = "gateway_error"
		}
		s.metrics.ai.WithLabelValues(op, outcome).Inc()
		s.writeError(c, op, err)
		return
	}
	s.metrics.ai.WithLabelValues(op, "ok").Inc()
	c.JSON(http.StatusOK, gin.H{key: out})
}
