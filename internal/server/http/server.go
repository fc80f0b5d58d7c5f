// Package httpserver exposes the SmartNotes HTTP/JSON and WebSocket API.
package httpserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/and161185/smartnotes/internal/model"
	"github.com/and161185/smartnotes/internal/service"
)

// Subscriber pushes a user's ordered note list on every change.
type Subscriber interface {
	Subscribe(ctx context.Context, userID uuid.UUID, fn func([]model.Note)) (cancel func(), err error)
}

// Deps wires services into handlers.
type Deps struct {
	Auth      service.AuthService
	Notes     service.NoteService
	Assistant service.StudyAssistant
	Changes   Subscriber
	SignKey   []byte
	Log       *zap.Logger
	// Registry receives the HTTP metrics; a fresh one is created when nil.
	Registry *prometheus.Registry
	// AIReady is reported by the health endpoint.
	AIReady bool
}

// Server wires services into gin handlers.
type Server struct {
	auth      service.AuthService
	notes     service.NoteService
	assistant service.StudyAssistant
	changes   Subscriber
	signKey   []byte
	log       *zap.Logger
	reg       *prometheus.Registry
	metrics   *metrics
	aiReady   bool
}

// New constructs an HTTP server with injected services.
func New(d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}
	return &Server{
		auth:      d.Auth,
		notes:     d.Notes,
		assistant: d.Assistant,
		changes:   d.Changes,
		signKey:   d.SignKey,
		log:       d.Log,
		reg:       d.Registry,
		metrics:   newMetrics(d.Registry),
		aiReady:   d.AIReady,
	}
}

// Router builds the gin engine with all routes and middleware.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(Recovery(s.log), Logging(s.log), s.metrics.middleware(), CORS())
	r.NoRoute(notFound)

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.GET("", index)
	api.GET("/health", s.health)

	auth := api.Group("/auth")
	auth.POST("/register", s.register)
	auth.POST("/login", s.login)

	notes := api.Group("/notes", s.requireAuth())
	notes.GET("", s.listNotes)
	notes.POST("", s.createNote)
	notes.GET("/stream", s.streamNotes)
	notes.GET("/:id", s.getNote)
	notes.PUT("/:id", s.updateNote)
	notes.DELETE("/:id", s.deleteNote)

	ai := api.Group("/ai", s.requireAuth())
	ai.POST("/summarize", s.summarize)
	ai.POST("/explain", s.explain)
	ai.POST("/quiz", s.quiz)
	ai.POST("/enhance", s.enhance)
	ai.POST("/study-tips", s.studyTips)

	return r
}

func index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name": "SmartNotes API",
		"endpoints": gin.H{
			"health": "GET /api/health",
			"auth":   []string{"POST /api/auth/register", "POST /api/auth/login"},
			"notes": []string{
				"GET /api/notes?q=", "POST /api/notes", "GET /api/notes/:id",
				"PUT /api/notes/:id", "DELETE /api/notes/:id", "GET /api/notes/stream (websocket)",
			},
			"ai": []string{
				"POST /api/ai/summarize", "POST /api/ai/explain", "POST /api/ai/quiz",
				"POST /api/ai/enhance", "POST /api/ai/study-tips",
			},
		},
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "Backend running", "ai": s.aiReady})
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":   "Route not found",
		"path":    c.Request.URL.Path,
		"method":  c.Request.Method,
		"message": "See GET /api for available endpoints",
	})
}
