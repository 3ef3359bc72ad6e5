package httpserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chargeguard/backend/services/fraud-service/internal/http/handlers"
	"chargeguard/backend/services/fraud-service/internal/http/middleware"
)

// RouterDeps collects handler dependencies.
type RouterDeps struct {
	FraudHandlers    *handlers.FraudHandlers
	DecisionHandlers *handlers.DecisionHandlers
	LocationHandlers *handlers.LocationHandlers
	HealthHandler    http.HandlerFunc
	RunFeedHandler   http.HandlerFunc
}

// NewRouter wires HTTP routes. Mutating routes require authMiddleware.
func NewRouter(deps RouterDeps, authMiddleware func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/health", method(http.MethodGet, deps.HealthHandler))
	mux.Handle("/metrics", method(http.MethodGet, promhttp.Handler()))
	if deps.RunFeedHandler != nil {
		mux.Handle("/ws/runs", method(http.MethodGet, deps.RunFeedHandler))
	}

	authenticated := func(handler http.HandlerFunc) http.Handler {
		return middleware.Chain(handler, authMiddleware)
	}

	fraud := deps.FraudHandlers
	mux.Handle("/api/fraud/run", method(http.MethodPost, authenticated(fraud.Run)))
	mux.Handle("/api/fraud/last-run", method(http.MethodGet, http.HandlerFunc(fraud.LastRun)))
	mux.Handle("/api/overlapping-stats", method(http.MethodGet, http.HandlerFunc(fraud.OverlappingStats)))
	mux.Handle("/api/overlapping-sessions", method(http.MethodGet, http.HandlerFunc(fraud.OverlappingSessions)))
	mux.Handle("/api/overlapping-clusters", method(http.MethodGet, http.HandlerFunc(fraud.OverlappingClusters)))
	mux.Handle("/api/overlapping-details/{id}", method(http.MethodGet, http.HandlerFunc(fraud.OverlappingDetails)))
	mux.Handle("/api/cdr-details/{id}", method(http.MethodGet, http.HandlerFunc(fraud.SessionDetails)))
	mux.Handle("/api/fraud-reasons", method(http.MethodGet, http.HandlerFunc(fraud.ReasonStats)))
	mux.Handle("/api/all-authentication-ids-with-fraud", method(http.MethodGet, http.HandlerFunc(fraud.FraudByAccount)))
	mux.Handle("/api/all-charge-point-ids-with-fraud", method(http.MethodGet, http.HandlerFunc(fraud.FraudByChargePoint)))
	mux.Handle("/api/all-charge-point-ids-with-specific-fraud/{reason}", method(http.MethodGet, http.HandlerFunc(fraud.FraudByChargePoint)))
	mux.Handle("/api/fraud-locations", method(http.MethodGet, http.HandlerFunc(fraud.FraudLocations)))
	mux.Handle("/api/user-details/{auth_id}", method(http.MethodGet, http.HandlerFunc(fraud.AccountSessions)))
	mux.Handle("/api/fraud-thresholds", methods(map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(fraud.Thresholds),
		http.MethodPost: authenticated(fraud.UpdateThresholds),
	}))

	mux.Handle("/api/fraud-decision", method(http.MethodPost, authenticated(deps.DecisionHandlers.Add)))
	mux.Handle("/api/fraud-decision/{id}", method(http.MethodGet, http.HandlerFunc(deps.DecisionHandlers.List)))

	mux.Handle("/api/geocode-batch", method(http.MethodPost, authenticated(deps.LocationHandlers.GeocodeBatch)))
	mux.Handle("/api/geocode-attempts", method(http.MethodGet, http.HandlerFunc(deps.LocationHandlers.Attempts)))

	return mux
}

func method(expected string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

func methods(byMethod map[string]http.Handler) http.Handler {
	allow := ""
	for _, m := range []string{http.MethodGet, http.MethodPost} {
		if _, ok := byMethod[m]; ok {
			if allow != "" {
				allow += ", "
			}
			allow += m
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler, ok := byMethod[r.Method]
		if !ok {
			w.Header().Set("Allow", allow)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
