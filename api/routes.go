package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"guiatv/handlers"
)

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Register mounts API endpoints onto the provided router.
func Register(r *mux.Router, guideHandler *handlers.GuideHandler, limiter *IPRateLimiter) {
	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(corsMiddleware)
	if limiter != nil {
		apiRouter.Use(func(next http.Handler) http.Handler {
			return RateLimitHandler(limiter, next)
		})
	}

	guide := apiRouter.PathPrefix("/guide").Subrouter()
	guide.HandleFunc("/schedule", guideHandler.GetSchedule).Methods(http.MethodGet, http.MethodOptions)
	guide.HandleFunc("/now", guideHandler.GetNowPlaying).Methods(http.MethodGet, http.MethodOptions)
	guide.HandleFunc("/refresh/{channel}", guideHandler.ForceRefresh).Methods(http.MethodPost, http.MethodOptions)
	guide.HandleFunc("/status", guideHandler.GetStatus).Methods(http.MethodGet, http.MethodOptions)
	guide.HandleFunc("/stats", guideHandler.GetStats).Methods(http.MethodGet, http.MethodOptions)
}
