package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes mounts the API on the router. The auth middleware wraps
// the /api subtree only; /health and /metrics stay open for probes and
// scrapers. A nil auth mounts the API unauthenticated.
func (h *HTTPHandler) RegisterRoutes(r *mux.Router, auth mux.MiddlewareFunc) {
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	if auth != nil {
		api.Use(auth)
	}

	// Requirements
	api.HandleFunc("/requirements", h.CreateRequirement).Methods(http.MethodPost)
	api.HandleFunc("/requirements", h.ListRequirements).Methods(http.MethodGet)
	api.HandleFunc("/requirements/{id}", h.GetRequirement).Methods(http.MethodGet)
	api.HandleFunc("/requirements/{id}/submit", h.SubmitForApproval).Methods(http.MethodPost)
	api.HandleFunc("/requirements/{id}/history", h.GetApprovalHistory).Methods(http.MethodGet)

	// Workflows
	api.HandleFunc("/workflows/{id}", h.GetWorkflow).Methods(http.MethodGet)
	api.HandleFunc("/workflows/{id}/responses", h.SubmitResponse).Methods(http.MethodPost)
	api.HandleFunc("/workflows/{id}/recall", h.RecallWorkflow).Methods(http.MethodPost)
	api.HandleFunc("/workflows/{id}/reassign", h.ReassignApprover).Methods(http.MethodPost)
	api.HandleFunc("/approvals/pending", h.GetPendingApprovals).Methods(http.MethodGet)

	// Configurations
	api.HandleFunc("/configurations", h.CreateConfiguration).Methods(http.MethodPost)
	api.HandleFunc("/configurations", h.ListConfigurations).Methods(http.MethodGet)
	api.HandleFunc("/configurations/active", h.GetActiveConfiguration).Methods(http.MethodGet)
	api.HandleFunc("/configurations/{id}", h.GetConfiguration).Methods(http.MethodGet)
	api.HandleFunc("/configurations/{id}", h.UpdateConfiguration).Methods(http.MethodPut)
	api.HandleFunc("/configurations/{id}", h.DeleteConfiguration).Methods(http.MethodDelete)
	api.HandleFunc("/configurations/{id}/activate", h.ActivateConfiguration).Methods(http.MethodPost)
	api.HandleFunc("/configurations/{id}/clone", h.CloneConfiguration).Methods(http.MethodPost)
	api.HandleFunc("/configurations/{id}/thresholds/{thresholdId}/stages/{stageId}/users",
		h.AssignUsersToStage).Methods(http.MethodPost)
	api.HandleFunc("/configurations/{id}/thresholds/{thresholdId}/stages/{stageId}/users/{userId}",
		h.RemoveUserFromStage).Methods(http.MethodDelete)
}
