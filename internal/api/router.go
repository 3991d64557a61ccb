package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/ldwatch/internal/api/handlers"
	"github.com/wonny/ldwatch/pkg/logger"
)

// HealthFunc reports dependency health; nil error means healthy
type HealthFunc func(ctx context.Context) error

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h *handlers.EvaluationHandler, health HealthFunc, limiter *Limiter, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(health)).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Evaluation endpoints
	contract := api.PathPrefix("/contracts/{contractID}").Subrouter()

	// 평가 트리거만 rate limit 적용
	var evaluate http.Handler = http.HandlerFunc(h.Evaluate)
	if limiter != nil {
		evaluate = rateLimitMiddleware(limiter)(evaluate)
	}
	contract.Handle("/evaluations", evaluate).Methods("POST")
	contract.HandleFunc("/evaluations/latest", h.GetLatest).Methods("GET")
	contract.HandleFunc("/breaches", h.ListBreaches).Methods("GET")
	contract.HandleFunc("/completeness", h.GetCompleteness).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(check HealthFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		body := map[string]interface{}{"service": "ldwatch-api"}
		if check != nil {
			if err := check(r.Context()); err != nil {
				status, code = "degraded", http.StatusServiceUnavailable
				body["error"] = err.Error()
			}
		}
		body["status"] = status

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	}
}
