package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"chargeguard/backend/services/fraud-service/internal/models"
	"chargeguard/backend/services/fraud-service/internal/service"
	"chargeguard/backend/services/fraud-service/internal/thresholds"
)

// FraudHandlers serves detection runs, overlap queries and thresholds.
type FraudHandlers struct {
	detection *service.DetectionService
	query     *service.QueryService
	registry  *thresholds.Registry
	logger    *zap.Logger
}

// NewFraudHandlers returns handler.
func NewFraudHandlers(
	detection *service.DetectionService,
	query *service.QueryService,
	registry *thresholds.Registry,
	logger *zap.Logger,
) *FraudHandlers {
	return &FraudHandlers{detection: detection, query: query, registry: registry, logger: logger}
}

func (h *FraudHandlers) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", zap.Error(err))
	}
	writeError(w, status, errorMessage(err, status))
}

// Run handles POST /api/fraud/run. Per-session verdicts are included with ?verdicts=true.
func (h *FraudHandlers) Run(w http.ResponseWriter, r *http.Request) {
	report, err := h.detection.Run(r.Context())
	if err != nil {
		status := statusFor(err)
		if report == nil {
			h.fail(w, "detection run", err)
			return
		}
		summary := report.Summary()
		summary.Error = errorMessage(err, status)
		writeJSON(w, status, summary)
		return
	}
	if withVerdicts, _ := strconv.ParseBool(r.URL.Query().Get("verdicts")); withVerdicts {
		writeJSON(w, http.StatusOK, report)
		return
	}
	writeJSON(w, http.StatusOK, report.Summary())
}

// LastRun handles GET /api/fraud/last-run.
func (h *FraudHandlers) LastRun(w http.ResponseWriter, r *http.Request) {
	report, err := h.detection.LastReport(r.Context())
	if err != nil {
		h.fail(w, "last run", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// OverlappingStats handles GET /api/overlapping-stats.
func (h *FraudHandlers) OverlappingStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.query.StatsByAccount(r.Context())
	if err != nil {
		h.fail(w, "overlapping stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// OverlappingSessions handles GET /api/overlapping-sessions[?account=].
func (h *FraudHandlers) OverlappingSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.query.OverlappingSessions(r.Context(), r.URL.Query().Get("account"))
	if err != nil {
		h.fail(w, "overlapping sessions", err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// OverlappingClusters handles GET /api/overlapping-clusters[?account=].
func (h *FraudHandlers) OverlappingClusters(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.query.Clusters(r.Context(), r.URL.Query().Get("account"))
	if err != nil {
		h.fail(w, "overlapping clusters", err)
		return
	}
	if clusters == nil {
		clusters = [][]models.ChargeSession{}
	}
	writeJSON(w, http.StatusOK, clusters)
}

// OverlappingDetails handles GET /api/overlapping-details/{id}.
func (h *FraudHandlers) OverlappingDetails(w http.ResponseWriter, r *http.Request) {
	cluster, err := h.query.ClusterFrom(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "overlapping details", err)
		return
	}
	writeJSON(w, http.StatusOK, cluster)
}

// SessionDetails handles GET /api/cdr-details/{id}.
func (h *FraudHandlers) SessionDetails(w http.ResponseWriter, r *http.Request) {
	details, err := h.query.SessionDetails(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "session details", err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// FraudByAccount handles GET /api/all-authentication-ids-with-fraud.
func (h *FraudHandlers) FraudByAccount(w http.ResponseWriter, r *http.Request) {
	stats, err := h.query.FraudByAccount(r.Context())
	if err != nil {
		h.fail(w, "fraud per account", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// FraudByChargePoint handles GET /api/all-charge-point-ids-with-fraud[?reason=]
// and GET /api/all-charge-point-ids-with-specific-fraud/{reason}.
func (h *FraudHandlers) FraudByChargePoint(w http.ResponseWriter, r *http.Request) {
	reason := r.PathValue("reason")
	if reason == "" {
		reason = r.URL.Query().Get("reason")
	}
	stats, err := h.query.FraudByChargePoint(r.Context(), reason)
	if err != nil {
		h.fail(w, "fraud per charge point", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// FraudLocations handles GET /api/fraud-locations.
func (h *FraudHandlers) FraudLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.query.FraudLocations(r.Context())
	if err != nil {
		h.fail(w, "fraud locations", err)
		return
	}
	writeJSON(w, http.StatusOK, locations)
}

// AccountSessions handles GET /api/user-details/{auth_id}.
func (h *FraudHandlers) AccountSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.query.AccountSessions(r.Context(), r.PathValue("auth_id"))
	if err != nil {
		h.fail(w, "account sessions", err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// ReasonStats handles GET /api/fraud-reasons.
func (h *FraudHandlers) ReasonStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.query.ReasonStats(r.Context())
	if err != nil {
		h.fail(w, "reason stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Thresholds handles GET /api/fraud-thresholds.
func (h *FraudHandlers) Thresholds(w http.ResponseWriter, r *http.Request) {
	th, err := h.registry.Load(r.Context())
	if err != nil {
		h.fail(w, "load thresholds", err)
		return
	}
	writeJSON(w, http.StatusOK, th.Map())
}

type updateThresholdsRequest struct {
	Thresholds map[string]float64 `json:"thresholds" validate:"required,min=1"`
}

// UpdateThresholds handles POST /api/fraud-thresholds. Either every value is stored or none.
func (h *FraudHandlers) UpdateThresholds(w http.ResponseWriter, r *http.Request) {
	var req updateThresholdsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.registry.SetMany(r.Context(), req.Thresholds); err != nil {
		h.fail(w, "update thresholds", err)
		return
	}
	h.Thresholds(w, r)
}
