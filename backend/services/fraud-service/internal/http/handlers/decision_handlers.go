package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"chargeguard/backend/services/fraud-service/internal/http/middleware"
	"chargeguard/backend/services/fraud-service/internal/models"
	"chargeguard/backend/services/fraud-service/internal/service"
)

// DecisionHandlers records investigator decisions.
type DecisionHandlers struct {
	decisions *service.DecisionService
	logger    *zap.Logger
}

// NewDecisionHandlers returns handler.
func NewDecisionHandlers(decisions *service.DecisionService, logger *zap.Logger) *DecisionHandlers {
	return &DecisionHandlers{decisions: decisions, logger: logger}
}

type addDecisionRequest struct {
	SessionID string `json:"cdr_id" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=approve deny maybe"`
	Reason    string `json:"reason" validate:"max=2000"`
}

// Add handles POST /api/fraud-decision.
func (h *DecisionHandlers) Add(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req addDecisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := h.decisions.Add(r.Context(), service.AddDecisionInput{
		SessionID: req.SessionID,
		UserID:    user.ID,
		UserName:  user.Name,
		Status:    models.DecisionStatus(req.Status),
		Reason:    req.Reason,
	})
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("add decision failed", zap.Error(err))
		}
		writeError(w, status, errorMessage(err, status))
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// List handles GET /api/fraud-decision/{id}.
func (h *DecisionHandlers) List(w http.ResponseWriter, r *http.Request) {
	decisions, err := h.decisions.List(r.Context(), r.PathValue("id"))
	if err != nil {
		status := statusFor(err)
		h.logger.Error("list decisions failed", zap.Error(err))
		writeError(w, status, errorMessage(err, status))
		return
	}
	writeJSON(w, http.StatusOK, decisions)
}
