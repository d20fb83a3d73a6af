// Package handler exposes the HTTP/JSON API.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/diligince-ai/be-procurement-approvals/internal/apperrors"
	"github.com/diligince-ai/be-procurement-approvals/internal/domain"
	"github.com/diligince-ai/be-procurement-approvals/internal/logger"
	"github.com/diligince-ai/be-procurement-approvals/internal/middleware"
	"github.com/diligince-ai/be-procurement-approvals/internal/service"
)

// HTTPHandler handles HTTP requests.
type HTTPHandler struct {
	approvals *service.ApprovalService
	configs   *service.ConfigurationService
	log       *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(approvals *service.ApprovalService, configs *service.ConfigurationService, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{approvals: approvals, configs: configs, log: log}
}

// actor returns the acting user and company from the verified JWT, falling
// back to explicit headers when auth is disabled in development.
func (h *HTTPHandler) actor(r *http.Request) (userID, companyID string) {
	if claims := middleware.ClaimsFrom(r.Context()); claims != nil {
		return claims.UserID, claims.CompanyID
	}
	return r.Header.Get("X-User-ID"), r.Header.Get("X-Company-ID")
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	h.writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  string(apperrors.CodeOf(err)),
	})
}

// ── Requirements ──────────────────────────────────────────────────────────────

// CreateRequirement handles POST /api/v1/requirements.
func (h *HTTPHandler) CreateRequirement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title        string  `json:"title"`
		Category     string  `json:"category"`
		Description  *string `json:"description,omitempty"`
		BudgetAmount int64   `json:"budget_amount"`
		Currency     string  `json:"currency"`
		IsUrgent     bool    `json:"is_urgent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperrors.InvalidInput("body", "invalid JSON"))
		return
	}

	userID, companyID := h.actor(r)
	requirement := &domain.Requirement{
		CompanyID:    companyID,
		Title:        req.Title,
		Category:     req.Category,
		Description:  req.Description,
		BudgetAmount: req.BudgetAmount,
		Currency:     req.Currency,
		IsUrgent:     req.IsUrgent,
	}
	if userID != "" {
		requirement.CreatedBy = &userID
	}

	if err := h.approvals.CreateRequirement(r.Context(), requirement); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, requirement)
}

// GetRequirement handles GET /api/v1/requirements/{id}.
func (h *HTTPHandler) GetRequirement(w http.ResponseWriter, r *http.Request) {
	_, companyID := h.actor(r)
	requirement, err := h.approvals.GetRequirement(r.Context(), mux.Vars(r)["id"], companyID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, requirement)
}

// ListRequirements handles GET /api/v1/requirements.
func (h *HTTPHandler) ListRequirements(w http.ResponseWriter, r *http.Request) {
	_, companyID := h.actor(r)

	var status *domain.RequirementStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.RequirementStatus(s)
		status = &st
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 50
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	requirements, err := h.approvals.ListRequirements(r.Context(), companyID, status, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"requirements": requirements,
		"limit":        limit,
		"offset":       offset,
	})
}

// SubmitForApproval handles POST /api/v1/requirements/{id}/submit.
func (h *HTTPHandler) SubmitForApproval(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes *string `json:"notes,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, r, apperrors.InvalidInput("body", "invalid JSON"))
			return
		}
	}

	userID, companyID := h.actor(r)
	wf, err := h.approvals.SubmitForApproval(r.Context(), mux.Vars(r)["id"], companyID, userID, req.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, workflowView(wf, false))
}

// GetApprovalHistory handles GET /api/v1/requirements/{id}/history.
func (h *HTTPHandler) GetApprovalHistory(w http.ResponseWriter, r *http.Request) {
	_, companyID := h.actor(r)
	entries, err := h.approvals.GetApprovalHistory(r.Context(), mux.Vars(r)["id"], companyID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

// ── Workflows ─────────────────────────────────────────────────────────────────

// GetWorkflow handles GET /api/v1/workflows/{id}.
func (h *HTTPHandler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := h.approvals.GetWorkflow(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, workflowView(wf, wf.Status.Terminal()))
}

// SubmitResponse handles POST /api/v1/workflows/{id}/responses.
func (h *HTTPHandler) SubmitResponse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StageID  string  `json:"stage_id"`
		Decision string  `json:"decision"`
		Comment  *string `json:"comment,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperrors.InvalidInput("body", "invalid JSON"))
		return
	}
	userID, _ := h.actor(r)
	wf, terminal, err := h.approvals.SubmitResponse(r.Context(),
		mux.Vars(r)["id"], req.StageID, userID, domain.Decision(req.Decision), req.Comment)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, workflowView(wf, terminal))
}

// RecallWorkflow handles POST /api/v1/workflows/{id}/recall.
func (h *HTTPHandler) RecallWorkflow(w http.ResponseWriter, r *http.Request) {
	userID, _ := h.actor(r)
	if err := h.approvals.RecallWorkflow(r.Context(), mux.Vars(r)["id"], userID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "recalled"})
}

// ReassignApprover handles POST /api/v1/workflows/{id}/reassign.
func (h *HTTPHandler) ReassignApprover(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StageID  string `json:"stage_id"`
		FromUser string `json:"from_user"`
		ToUser   string `json:"to_user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperrors.InvalidInput("body", "invalid JSON"))
		return
	}

	userID, _ := h.actor(r)
	err := h.approvals.ReassignApprover(r.Context(),
		mux.Vars(r)["id"], req.StageID, req.FromUser, req.ToUser, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "reassigned"})
}

// GetPendingApprovals handles GET /api/v1/approvals/pending.
func (h *HTTPHandler) GetPendingApprovals(w http.ResponseWriter, r *http.Request) {
	userID, companyID := h.actor(r)
	pending, err := h.approvals.GetPendingApprovals(r.Context(), companyID, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"pending": pending})
}

// ── Configurations ────────────────────────────────────────────────────────────

// GetActiveConfiguration handles GET /api/v1/configurations/active.
func (h *HTTPHandler) GetActiveConfiguration(w http.ResponseWriter, r *http.Request) {
	_, companyID := h.actor(r)
	cfg, err := h.configs.GetActiveConfiguration(r.Context(), companyID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cfg)
}

// GetConfiguration handles GET /api/v1/configurations/{id}.
func (h *HTTPHandler) GetConfiguration(w http.ResponseWriter, r *http.Request) {
	_, companyID := h.actor(r)
	cfg, err := h.configs.GetConfiguration(r.Context(), mux.Vars(r)["id"], companyID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cfg)
}

// ListConfigurations handles GET /api/v1/configurations.
func (h *HTTPHandler) ListConfigurations(w http.ResponseWriter, r *http.Request) {
	_, companyID := h.actor(r)
	cfgs, err := h.configs.ListConfigurations(r.Context(), companyID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"configurations": cfgs})
}

// CreateConfiguration handles POST /api/v1/configurations. An empty body
// seeds the default four-band matrix.
func (h *HTTPHandler) CreateConfiguration(w http.ResponseWriter, r *http.Request) {
	userID, companyID := h.actor(r)

	var cfg *domain.ApprovalConfiguration
	if r.ContentLength > 0 {
		cfg = &domain.ApprovalConfiguration{}
		if err := json.NewDecoder(r.Body).Decode(cfg); err != nil {
			h.writeError(w, r, apperrors.InvalidInput("body", "invalid JSON"))
			return
		}
	} else {
		cfg = service.DefaultConfiguration(companyID)
	}
	cfg.CompanyID = companyID

	if err := h.configs.CreateConfiguration(r.Context(), cfg, userID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, cfg)
}

// UpdateConfiguration handles PUT /api/v1/configurations/{id}.
func (h *HTTPHandler) UpdateConfiguration(w http.ResponseWriter, r *http.Request) {
	userID, companyID := h.actor(r)

	cfg := &domain.ApprovalConfiguration{}
	if err := json.NewDecoder(r.Body).Decode(cfg); err != nil {
		h.writeError(w, r, apperrors.InvalidInput("body", "invalid JSON"))
		return
	}
	cfg.ID = mux.Vars(r)["id"]
	cfg.CompanyID = companyID

	if err := h.configs.UpdateConfiguration(r.Context(), cfg, userID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cfg)
}

// DeleteConfiguration handles DELETE /api/v1/configurations/{id}. Only
// inactive configurations can be deleted.
func (h *HTTPHandler) DeleteConfiguration(w http.ResponseWriter, r *http.Request) {
	_, companyID := h.actor(r)
	if err := h.configs.DeleteConfiguration(r.Context(), mux.Vars(r)["id"], companyID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ActivateConfiguration handles POST /api/v1/configurations/{id}/activate.
func (h *HTTPHandler) ActivateConfiguration(w http.ResponseWriter, r *http.Request) {
	_, companyID := h.actor(r)
	if err := h.configs.ActivateConfiguration(r.Context(), mux.Vars(r)["id"], companyID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "active"})
}

// CloneConfiguration handles POST /api/v1/configurations/{id}/clone.
func (h *HTTPHandler) CloneConfiguration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TargetCompanyID string `json:"target_company_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperrors.InvalidInput("body", "invalid JSON"))
		return
	}

	userID, companyID := h.actor(r)
	clone, err := h.configs.CloneForRole(r.Context(), mux.Vars(r)["id"], companyID, req.TargetCompanyID, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, clone)
}

// AssignUsersToStage handles
// POST /api/v1/configurations/{id}/thresholds/{thresholdId}/stages/{stageId}/users.
func (h *HTTPHandler) AssignUsersToStage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserIDs []string `json:"user_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperrors.InvalidInput("body", "invalid JSON"))
		return
	}

	userID, companyID := h.actor(r)
	vars := mux.Vars(r)
	cfg, err := h.configs.AssignUsersToStage(r.Context(),
		vars["id"], companyID, vars["thresholdId"], vars["stageId"], req.UserIDs, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cfg)
}

// RemoveUserFromStage handles
// DELETE /api/v1/configurations/{id}/thresholds/{thresholdId}/stages/{stageId}/users/{userId}.
func (h *HTTPHandler) RemoveUserFromStage(w http.ResponseWriter, r *http.Request) {
	userID, companyID := h.actor(r)
	vars := mux.Vars(r)
	cfg, err := h.configs.RemoveUserFromStage(r.Context(),
		vars["id"], companyID, vars["thresholdId"], vars["stageId"], vars["userId"], userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cfg)
}

// ── View helpers ──────────────────────────────────────────────────────────────

// workflowView shapes a workflow for JSON responses.
func workflowView(wf *domain.Workflow, terminal bool) map[string]any {
	stages := make([]map[string]any, 0, len(wf.Stages))
	for _, exec := range wf.Stages {
		stages = append(stages, map[string]any{
			"stage_id":           exec.StageID,
			"name":               exec.StageName,
			"order":              exec.Order,
			"policy":             exec.Policy,
			"status":             exec.Status,
			"started_at":         exec.StartedAt,
			"completed_at":       exec.CompletedAt,
			"approvers":          exec.Approvers,
			"approval_count":     exec.ApprovalCount,
			"required_approvals": exec.RequiredApprovals,
		})
	}
	return map[string]any{
		"id":               wf.ID,
		"requirement_id":   wf.RequirementID,
		"threshold":        wf.ThresholdName,
		"status":           wf.Status,
		"terminal":         terminal,
		"is_urgent":        wf.IsUrgent,
		"current_stage_id": wf.CurrentStageID,
		"total_stages":     wf.TotalStages,
		"completed_stages": wf.CompletedStages,
		"budget_amount":    wf.BudgetAmount,
		"currency":         wf.Currency,
		"submitted_by":     wf.SubmittedBy,
		"submitted_at":     wf.SubmittedAt,
		"completed_at":     wf.CompletedAt,
		"stages":           stages,
	}
}
