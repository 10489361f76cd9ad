package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/po-authorization/internal/domain/entity"
	"github.com/garyjia/po-authorization/pkg/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	services      Services
	maxUploadSize int64
	logger        Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, maxUploadSize int64, logger Logger) *Handlers {
	return &Handlers{services: services, maxUploadSize: maxUploadSize, logger: logger}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
}

// CreateHeaderRequest is the intake payload for a purchase order header
type CreateHeaderRequest struct {
	RequesterID      string `json:"requester_id" binding:"required"`
	CostCenter       string `json:"cost_center" binding:"required"`
	Category         string `json:"category" binding:"required"`
	BusinessRuleType string `json:"business_rule_type"`
	NetAmount        string `json:"net_amount" binding:"required"`
}

// BatchRequest is the common body of every batch operation
type BatchRequest struct {
	HeaderIDs   []int64 `json:"header_ids" binding:"required"`
	Actor       string  `json:"actor" binding:"required"`
	Comment     string  `json:"comment"`
	Override    bool    `json:"override"`
	MotiveCode  string  `json:"motive_code"`
	Description string  `json:"description"`
}

// PlanResponse is the preview of a header's approval route
type PlanResponse struct {
	Rule  *entity.Rule          `json:"rule"`
	Steps []entity.ResolvedStep `json:"steps"`
}

// ImportResponse reports the version created by a rule import
type ImportResponse struct {
	Version int64 `json:"version"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{Status: "healthy", Timestamp: time.Now().UTC().Format(time.RFC3339)}

	if h.services.Health != nil {
		components, err := h.services.Health(c.Request.Context())
		resp.Components = components
		if err != nil {
			resp.Status = "degraded"
			c.JSON(http.StatusServiceUnavailable, Response{Success: false, Data: resp, Error: err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: resp})
}

// CreateHeader handles POST /api/headers
func (h *Handlers) CreateHeader(c *gin.Context) {
	var req CreateHeaderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	cents, err := utils.ParseAmountCents(req.NetAmount)
	if err != nil {
		h.badRequest(c, "invalid net_amount", err)
		return
	}

	header := &entity.Header{
		RequesterID:    req.RequesterID,
		CostCenter:     req.CostCenter,
		Category:       req.Category,
		NetAmountCents: cents,
	}
	if req.BusinessRuleType != "" {
		t, err := entity.ParseBusinessRuleType(req.BusinessRuleType)
		if err != nil {
			h.badRequest(c, "invalid business_rule_type", err)
			return
		}
		header.BusinessRuleType = t
	}

	if err := h.services.Submission.CreateHeader(c.Request.Context(), header); err != nil {
		h.fail(c, "Failed to create header", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: header})
}

// Submit handles POST /api/headers/submit
func (h *Handlers) Submit(c *gin.Context) {
	req, ok := h.bindBatch(c)
	if !ok {
		return
	}
	outcome, err := h.services.Submission.Submit(c.Request.Context(), req.HeaderIDs, req.Actor)
	h.respondBatch(c, "submit", outcome, err)
}

// Approve handles POST /api/headers/approve
func (h *Handlers) Approve(c *gin.Context) {
	req, ok := h.bindBatch(c)
	if !ok {
		return
	}
	outcome, err := h.services.Engine.Approve(c.Request.Context(), req.HeaderIDs, req.Actor, req.Comment, req.Override)
	h.respondBatch(c, "approve", outcome, err)
}

// Reject handles POST /api/headers/reject
func (h *Handlers) Reject(c *gin.Context) {
	req, ok := h.bindBatch(c)
	if !ok {
		return
	}
	outcome, err := h.services.Engine.Reject(c.Request.Context(), req.HeaderIDs, req.Actor, req.MotiveCode, req.Comment, req.Override)
	h.respondBatch(c, "reject", outcome, err)
}

// RequestInfo handles POST /api/headers/request-info
func (h *Handlers) RequestInfo(c *gin.Context) {
	req, ok := h.bindBatch(c)
	if !ok {
		return
	}
	outcome, err := h.services.Engine.RequestMoreInfo(c.Request.Context(), req.HeaderIDs, req.Actor, req.Description)
	h.respondBatch(c, "request-info", outcome, err)
}

// ResolveInfo handles POST /api/headers/resolve-info
func (h *Handlers) ResolveInfo(c *gin.Context) {
	req, ok := h.bindBatch(c)
	if !ok {
		return
	}
	outcome, err := h.services.Engine.ResolveInfoRequest(c.Request.Context(), req.HeaderIDs, req.Actor)
	h.respondBatch(c, "resolve-info", outcome, err)
}

// Cascade handles POST /api/headers/cascade
func (h *Handlers) Cascade(c *gin.Context) {
	req, ok := h.bindBatch(c)
	if !ok {
		return
	}
	outcome, err := h.services.Engine.CascadeApprove(c.Request.Context(), req.HeaderIDs, req.Actor)
	h.respondBatch(c, "cascade", outcome, err)
}

// GetHeader handles GET /api/headers/:id
func (h *Handlers) GetHeader(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	header, err := h.services.Query.GetHeader(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to get header", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: header})
}

// PreviewPlan handles GET /api/headers/:id/plan
func (h *Handlers) PreviewPlan(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	matched, steps, err := h.services.Submission.Preview(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to preview plan", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: PlanResponse{Rule: matched, Steps: steps}})
}

// HeaderSteps handles GET /api/headers/:id/steps
func (h *Handlers) HeaderSteps(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	steps, err := h.services.Query.HeaderSteps(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to list steps", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: steps})
}

// HeaderHistory handles GET /api/headers/:id/history
func (h *Handlers) HeaderHistory(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	history, err := h.services.Query.HeaderHistory(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to list history", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: history})
}

// PendingForActor handles GET /api/actors/:id/pending
func (h *Handlers) PendingForActor(c *gin.Context) {
	steps, err := h.services.Query.PendingForActor(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to list pending steps", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: steps})
}

// ListRules handles GET /api/rules
func (h *Handlers) ListRules(c *gin.Context) {
	snapshot, err := h.services.Rules.Snapshot(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to load rules", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: snapshot})
}

// ImportRules handles POST /api/rules/import (multipart: file, actor, expected_version)
func (h *Handlers) ImportRules(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.badRequest(c, "workbook file is required", err)
		return
	}
	actor := c.PostForm("actor")
	if err := utils.ValidateActor(actor); err != nil {
		h.badRequest(c, "actor is required", err)
		return
	}
	expected, err := strconv.ParseInt(c.PostForm("expected_version"), 10, 64)
	if err != nil {
		h.badRequest(c, "invalid expected_version", err)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.badRequest(c, "cannot read uploaded file", err)
		return
	}
	defer file.Close()

	version, err := h.services.Rules.ImportWorkbook(c.Request.Context(), file, actor, expected)
	if err != nil {
		h.fail(c, "Rule import failed", err)
		return
	}

	h.logger.Info("Rules imported", "version", version, "file", fileHeader.Filename)
	c.JSON(http.StatusOK, Response{Success: true, Data: ImportResponse{Version: version}})
}

// ExportRules handles GET /api/rules/export
func (h *Handlers) ExportRules(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.services.Rules.ExportWorkbook(c.Request.Context(), &buf); err != nil {
		h.fail(c, "Rule export failed", err)
		return
	}
	name := fmt.Sprintf("rules-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *Handlers) bindBatch(c *gin.Context) (*BatchRequest, bool) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return nil, false
	}
	return &req, true
}

func (h *Handlers) respondBatch(c *gin.Context, op string, outcome *entity.BatchOutcome, err error) {
	if err != nil {
		h.fail(c, "Batch "+op+" failed", err)
		return
	}
	h.logger.Info("Batch processed",
		"operation", op,
		"headers", len(outcome.Results),
		"transitioned", outcome.Transitioned,
		"skipped", len(outcome.SkippedIDs()))
	c.JSON(http.StatusOK, Response{Success: true, Data: outcome})
}

func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.badRequest(c, "invalid header ID", err)
		return 0, false
	}
	return id, true
}

func (h *Handlers) badRequest(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, "error", err)
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

// fail maps a service error to its HTTP status
func (h *Handlers) fail(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	h.logger.Error(msg, "error", err, "status", status)

	resp := Response{Success: false, Error: err.Error()}
	var rsErr *entity.RuleSetError
	if errors.As(err, &rsErr) {
		resp.Details = rsErr.Problems
	}
	if status == http.StatusInternalServerError {
		resp.Error = "internal error"
	}
	c.JSON(status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrNotPrivileged):
		return http.StatusForbidden
	case errors.Is(err, entity.ErrHeaderNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrRuleSetVersionConflict):
		return http.StatusConflict
	case errors.Is(err, entity.ErrInvalidRuleSet),
		errors.Is(err, entity.ErrMissingCategory),
		errors.Is(err, entity.ErrUnknownCostCenter),
		errors.Is(err, entity.ErrNoMatchingRule),
		errors.Is(err, entity.ErrAmountOutOfRange):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
