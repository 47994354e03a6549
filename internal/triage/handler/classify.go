package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmerrifield20/SecretTriage/internal/triage/model"
	"github.com/jmerrifield20/SecretTriage/internal/triage/service"
	"github.com/jmerrifield20/SecretTriage/internal/triage/store"
)

// classifier is the service surface used by the handlers.
// *service.ClassifierService satisfies this interface.
type classifier interface {
	Classify(ctx context.Context, findings []model.Finding) ([]model.ClassificationResult, error)
	LoadSnapshot(ctx context.Context) (*service.Snapshot, error)
}

// TriageHandler serves the classification endpoints.
type TriageHandler struct {
	svc     classifier
	records store.RecordReader // nil = history lookups return 404
	logger  *zap.Logger
}

// NewTriageHandler creates a TriageHandler.
func NewTriageHandler(svc classifier, records store.RecordReader, logger *zap.Logger) *TriageHandler {
	return &TriageHandler{svc: svc, records: records, logger: logger}
}

// Register mounts the classification routes on rg.
func (h *TriageHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/classify", h.Classify)
	rg.GET("/classifications/:id", h.GetClassification)
}

// ClassifyRequest is the body of POST /classify.
type ClassifyRequest struct {
	Findings []model.Finding `json:"findings"`
}

// Classify handles POST /api/v1/classify.
func (h *TriageHandler) Classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	results, err := h.svc.Classify(c.Request.Context(), req.Findings)
	if err != nil {
		var valErr *model.ErrValidation
		if errors.As(err, &valErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": valErr.Msg})
			return
		}
		h.logger.Error("classify batch", zap.Int("findings", len(req.Findings)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "classification failed"})
		return
	}
	c.JSON(http.StatusOK, results)
}

// GetClassification handles GET /api/v1/classifications/:id.
func (h *TriageHandler) GetClassification(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid classification id"})
		return
	}
	if h.records == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "classification not found"})
		return
	}

	rec, err := h.records.GetClassification(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "classification not found"})
			return
		}
		h.logger.Error("get classification", zap.String("id", id.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get classification"})
		return
	}
	c.JSON(http.StatusOK, rec)
}
