package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/danskfisk/ragchatbot/internal/common/models"
	"github.com/danskfisk/ragchatbot/internal/session"
	"github.com/danskfisk/ragchatbot/pkg/logger"
	"github.com/danskfisk/ragchatbot/pkg/metrics"
	"github.com/danskfisk/ragchatbot/pkg/middleware"
	"github.com/danskfisk/ragchatbot/pkg/rabbitmq"
)

// RAGService is the slice of the RAG system the HTTP layer needs.
type RAGService interface {
	Query(ctx context.Context, query, sessionID string) (string, []string, error)
	Analytics(ctx context.Context) (*models.CourseAnalytics, error)
}

// Publisher queues ingest jobs for the worker.
type Publisher interface {
	PublishIngestJob(ctx context.Context, job rabbitmq.IngestJob) error
}

type Handler struct {
	service   RAGService
	sessions  *session.Manager
	publisher Publisher
	bm        *metrics.BusinessMetrics
}

func NewHandler(service RAGService, sessions *session.Manager, publisher Publisher, bm *metrics.BusinessMetrics) *Handler {
	return &Handler{service: service, sessions: sessions, publisher: publisher, bm: bm}
}

type QueryRequest struct {
	Query     string `json:"query" binding:"required"`
	SessionID string `json:"session_id"`
}

type QueryResponse struct {
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources"`
	SessionID string   `json:"session_id"`
}

// Query answers one user question, creating a session when none is given.
// Validation failures return 422 and internal failures return the error
// message under "detail", matching the documented external interface.
func (h *Handler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = h.sessions.Create()
	}
	middleware.InjectSessionIDToContext(c, sessionID)
	ctx := c.Request.Context()

	start := time.Now()
	answer, sources, err := h.service.Query(ctx, req.Query, sessionID)
	if err != nil {
		logger.Error(ctx, "query failed", "error", err.Error())
		h.observeQuery("fail", start)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	if sources == nil {
		sources = []string{}
	}

	h.observeQuery("success", start)
	c.JSON(http.StatusOK, QueryResponse{
		Answer:    answer,
		Sources:   sources,
		SessionID: sessionID,
	})
}

func (h *Handler) observeQuery(status string, start time.Time) {
	if h.bm == nil {
		return
	}
	h.bm.QueryTotal.WithLabelValues("api", status).Inc()
	h.bm.QueryDuration.WithLabelValues("api", status).Observe(time.Since(start).Seconds())
}

// Courses reports catalog analytics.
func (h *Handler) Courses(c *gin.Context) {
	ctx := c.Request.Context()
	analytics, err := h.service.Analytics(ctx)
	if err != nil {
		logger.Error(ctx, "analytics failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, analytics)
}

type IngestRequest struct {
	Path          string `json:"path" binding:"required"`
	ClearExisting bool   `json:"clear_existing"`
}

// Documents queues a folder or file for asynchronous ingest by the worker.
func (h *Handler) Documents(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	if h.publisher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "ingest queue unavailable"})
		return
	}

	ctx := c.Request.Context()
	job := rabbitmq.IngestJob{Path: req.Path, ClearExisting: req.ClearExisting}
	if err := h.publisher.PublishIngestJob(ctx, job); err != nil {
		logger.Error(ctx, "failed to queue ingest job", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	logger.Info(ctx, "ingest job queued", "path", req.Path, "clear_existing", req.ClearExisting)
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "path": req.Path})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CORS allows any origin, matching the open external interface.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "*")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(CORS())
	group := router.Group("/api")
	group.POST("/query", h.Query)
	group.GET("/courses", h.Courses)
	group.POST("/documents", h.Documents)
	router.GET("/health", h.Health)
}
