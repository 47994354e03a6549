package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/SecretTriage/internal/audit"
	"github.com/jmerrifield20/SecretTriage/internal/auth"
	"github.com/jmerrifield20/SecretTriage/internal/expr"
	"github.com/jmerrifield20/SecretTriage/internal/triage/model"
	"github.com/jmerrifield20/SecretTriage/internal/value"
)

// ScopeRulesRead is required by every admin route.
const ScopeRulesRead = "rules:read"

// AdminHandler exposes the active rule snapshot for inspection.
type AdminHandler struct {
	svc    classifier
	tokens *auth.TokenIssuer // nil = admin routes are open
	ledger audit.Ledger      // nil = audit routes answer 404
	logger *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(svc classifier, tokens *auth.TokenIssuer, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, tokens: tokens, logger: logger}
}

// SetLedger exposes the audit log under /admin/audit.
func (h *AdminHandler) SetLedger(l audit.Ledger) { h.ledger = l }

// Register mounts the admin routes on rg.
func (h *AdminHandler) Register(rg *gin.RouterGroup) {
	admin := rg.Group("/admin", auth.RequireAdmin(h.tokens, ScopeRulesRead))
	{
		admin.GET("/features", h.ListFeatures)
		admin.GET("/heuristics", h.ListHeuristics)
		admin.POST("/expressions/check", h.CheckExpression)
		admin.GET("/audit", h.ListAudit)
		admin.GET("/audit/verify", h.VerifyAudit)
	}
}

type featureView struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Kind        model.FeatureKind `json:"kind"`
	Config      json.RawMessage   `json:"config"`
	Error       string            `json:"error,omitempty"`
}

// ListFeatures handles GET /api/v1/admin/features. Definitions that failed to
// compile carry the compile error.
func (h *AdminHandler) ListFeatures(c *gin.Context) {
	snap, err := h.svc.LoadSnapshot(c.Request.Context())
	if err != nil {
		h.logger.Error("load snapshot", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rules"})
		return
	}

	errs := snap.Extractor.Errors()
	out := make([]featureView, 0, len(snap.Features))
	for _, d := range snap.Features {
		v := featureView{Name: d.Name, Description: d.Description, Kind: d.Kind, Config: d.Config}
		if err, ok := errs[d.Name]; ok {
			v.Error = err.Error()
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, gin.H{"features": out, "count": len(out)})
}

// ListHeuristics handles GET /api/v1/admin/heuristics. Only rules the scorer
// accepted are listed, in evaluation order.
func (h *AdminHandler) ListHeuristics(c *gin.Context) {
	snap, err := h.svc.LoadSnapshot(c.Request.Context())
	if err != nil {
		h.logger.Error("load snapshot", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rules"})
		return
	}
	rules := snap.Scorer.Rules()
	c.JSON(http.StatusOK, gin.H{
		"heuristics":   rules,
		"count":        len(rules),
		"fp_threshold": snap.Scorer.Threshold(),
	})
}

// CheckExpressionRequest is the body of POST /admin/expressions/check.
type CheckExpressionRequest struct {
	Expr   string  `json:"expr" binding:"required"`
	Target string  `json:"target"`
	Sample *string `json:"sample"`
}

// CheckExpression handles POST /api/v1/admin/expressions/check. It compiles
// the expression and, when a sample is given, evaluates it.
func (h *AdminHandler) CheckExpression(c *gin.Context) {
	var req CheckExpressionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	target := model.TargetSecret
	if req.Target != "" {
		target = model.Target(req.Target)
	}
	if !target.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown target " + req.Target})
		return
	}

	prog, err := expr.Compile(req.Expr, string(target))
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}
	resp := gin.H{"valid": true, "target": target}
	if req.Sample != nil {
		out, err := prog.Eval(value.String(*req.Sample))
		if err != nil {
			resp["eval_error"] = err.Error()
		} else {
			resp["result"] = out
		}
	}
	c.JSON(http.StatusOK, resp)
}

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// ListAudit handles GET /api/v1/admin/audit?offset=&limit=.
func (h *AdminHandler) ListAudit(c *gin.Context) {
	if h.ledger == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "audit log is not enabled"})
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
		return
	}
	limit, err := queryInt(c, "limit", defaultAuditLimit)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	ctx := c.Request.Context()
	entries, err := h.ledger.List(ctx, offset, limit)
	if err != nil {
		h.logger.Error("list audit entries", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read audit log"})
		return
	}
	total, err := h.ledger.Len(ctx)
	if err != nil {
		h.logger.Error("count audit entries", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read audit log"})
		return
	}
	root, err := h.ledger.Root(ctx)
	if err != nil {
		h.logger.Error("audit root", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read audit log"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "total": total, "root": root})
}

// VerifyAudit handles GET /api/v1/admin/audit/verify. A broken chain is
// reported in the body with 200; only read failures are 500.
func (h *AdminHandler) VerifyAudit(c *gin.Context) {
	if h.ledger == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "audit log is not enabled"})
		return
	}
	ctx := c.Request.Context()
	root, err := h.ledger.Root(ctx)
	if err != nil {
		h.logger.Error("audit root", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read audit log"})
		return
	}
	if err := h.ledger.Verify(ctx); err != nil {
		h.logger.Warn("audit chain verification failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error(), "root": root})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "root": root})
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
