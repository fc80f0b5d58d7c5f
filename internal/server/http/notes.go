package httpserver

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"

	"github.com/and161185/smartnotes/internal/model"
)

type listResponse struct {
	Notes []model.Note `json:"notes"`
}

func (s *Server) listNotes(c *gin.Context) {
	userID, _ := UserIDFromCtx(c.Request.Context())
	notes, err := s.notes.List(c.Request.Context(), userID, c.Query("q"))
	if err != nil {
		s.writeError(c, "list notes", err)
		return
	}
	if notes == nil {
		notes = []model.Note{}
	}
	c.JSON(http.StatusOK, listResponse{Notes: notes})
}

func (s *Server) createNote(c *gin.Context) {
	userID, _ := UserIDFromCtx(c.Request.Context())
	var f model.NoteFields
	// an empty body creates a default note
	if err := c.ShouldBindJSON(&f); err != nil && !errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "bad request body"})
		return
	}
	n, err := s.notes.Create(c.Request.Context(), userID, f)
	if err != nil {
		s.writeError(c, "create note", err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (s *Server) getNote(c *gin.Context) {
	userID, _ := UserIDFromCtx(c.Request.Context())
	noteID, ok := noteIDParam(c)
	if !ok {
		return
	}
	n, err := s.notes.Get(c.Request.Context(), userID, noteID)
	if err != nil {
		s.writeError(c, "get note", err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (s *Server) updateNote(c *gin.Context) {
	userID, _ := UserIDFromCtx(c.Request.Context())
	noteID, ok := noteIDParam(c)
	if !ok {
		return
	}
	var f model.NoteFields
	if err := c.ShouldBindJSON(&f); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "bad request body"})
		return
	}
	n, err := s.notes.Update(c.Request.Context(), userID, noteID, f)
	if err != nil {
		s.writeError(c, "update note", err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (s *Server) deleteNote(c *gin.Context) {
	userID, _ := UserIDFromCtx(c.Request.Context())
	noteID, ok := noteIDParam(c)
	if !ok {
		return
	}
	if err := s.notes.Delete(c.Request.Context(), userID, noteID); err != nil {
		s.writeError(c, "delete note", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func noteIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "bad id"})
		return uuid.Nil, false
	}
	return id, true
}
