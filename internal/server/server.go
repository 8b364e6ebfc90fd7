// Package server exposes the ingestion pipeline and query engine over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/agenthands/corpus/internal/apperr"
	"github.com/agenthands/corpus/internal/crosswalk"
	"github.com/agenthands/corpus/internal/ingest"
	"github.com/agenthands/corpus/internal/logger"
	"github.com/agenthands/corpus/internal/model"
	"github.com/agenthands/corpus/internal/store"
	"github.com/agenthands/corpus/internal/validate"
)

// Orchestrator answers questions; an interface so handler tests can stub it.
type Orchestrator interface {
	Answer(ctx context.Context, question string, user model.UserContext) (*model.Answer, error)
}

type Server struct {
	store        store.Relational
	coordinator  *ingest.Coordinator
	reconciler   *crosswalk.Reconciler
	traverser    *crosswalk.Traverser
	orchestrator Orchestrator
	validator    *validate.Validator
	log          *logger.Logger
}

func New(
	st store.Relational,
	coordinator *ingest.Coordinator,
	reconciler *crosswalk.Reconciler,
	traverser *crosswalk.Traverser,
	orchestrator Orchestrator,
	log *logger.Logger,
) *Server {
	return &Server{
		store:        st,
		coordinator:  coordinator,
		reconciler:   reconciler,
		traverser:    traverser,
		orchestrator: orchestrator,
		validator:    validate.New(),
		log:          log.With("component", "server"),
	}
}

func (s *Server) SetupRouter(mode string) *gin.Engine {
	if mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	r.POST("/ingest", s.StartIngestion)
	r.GET("/jobs/:id", s.GetJob)
	r.POST("/jobs/:id/cancel", s.CancelJob)
	r.POST("/query", s.Query)
	r.POST("/reconcile", s.Reconcile)
	r.POST("/documents/validate", s.ValidateDocument)
	r.GET("/documents/:id", s.GetDocument)
	r.GET("/documents/:id/related", s.GetRelated)

	return r
}

type IngestRequest struct {
	Source   string `json:"source" binding:"required"`
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
	Query    string `json:"query"`
	Limit    int    `json:"limit"`
}

func (s *Server) StartIngestion(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	job, err := s.coordinator.StartJob(c.Request.Context(), req.Source, ingest.FetchRequest{
		DateFrom: req.DateFrom,
		DateTo:   req.DateTo,
		Query:    req.Query,
		Limit:    req.Limit,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, job)
}

func (s *Server) GetJob(c *gin.Context) {
	job, err := s.store.Job(c.Request.Context(), c.Param("id"))
	if errors.Is(err, apperr.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if err != nil {
		s.log.Error("job lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) CancelJob(c *gin.Context) {
	if err := s.coordinator.CancelJob(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no running job with that id"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}

type QueryRequest struct {
	Question string `json:"question" binding:"required"`
	Role     string `json:"role"`
	Scope    string `json:"scope"`
}

func (s *Server) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ans, err := s.orchestrator.Answer(c.Request.Context(),
		req.Question, model.UserContext{Role: req.Role, Scope: req.Scope})
	if err != nil {
		s.log.Error("query failed", "question", req.Question, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to answer query"})
		return
	}
	c.JSON(http.StatusOK, ans)
}

func (s *Server) Reconcile(c *gin.Context) {
	report, err := s.reconciler.Sweep(c.Request.Context())
	if err != nil {
		s.log.Error("sweep failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconciliation failed", "report": report})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) ValidateDocument(c *gin.Context) {
	var d model.Document
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	c.JSON(http.StatusOK, s.validator.Validate(&d))
}

func (s *Server) GetDocument(c *gin.Context) {
	d, err := s.store.Document(c.Request.Context(), c.Param("id"))
	if errors.Is(err, apperr.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	if err != nil {
		s.log.Error("document lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load document"})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) GetRelated(c *gin.Context) {
	depth := 2
	if raw := c.Query("depth"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid depth"})
			return
		}
		depth = n
	}

	nodes, err := s.traverser.Walk(c.Request.Context(), c.Param("id"), c.Query("type"), depth)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"root": c.Param("id"), "related": nodes})
}
