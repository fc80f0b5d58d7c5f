package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
}

// register creates a new account.
func (s *Server) register(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "bad request body"})
		return
	}
	userID, err := s.auth.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(c, "register", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"userId": userID})
}

// login authenticates a user and returns an access token.
func (s *Server) login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "bad request body"})
		return
	}
	tok, u, err := s.auth.LoginWithIP(c.Request.Context(), req.Email, req.Password, c.ClientIP())
	if err != nil {
		s.writeError(c, "login", err)
		return
	}
	c.JSON(http.StatusOK, loginResponse{
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.ExpiresAt,
		UserID:      u.ID.String(),
		Email:       u.Email,
	})
}
