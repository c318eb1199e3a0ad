/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. rate limit: Token bucket on the redemption endpoint only

ROUTE GROUPS:
  /api/trainees/*      Trainee management and point updates
  /api/rewards/*       Reward catalog administration
  /api/redemptions     Redemption (rate limited)
  /api/levels          Level catalog
  /metrics             Prometheus metrics
  /health              Liveness

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// RouterOptions tunes the router's middleware.
type RouterOptions struct {
	// RedeemRatePerSec and RedeemBurst configure the token bucket guarding
	// the redemption endpoint. A zero rate disables the limiter.
	RedeemRatePerSec float64
	RedeemBurst      int
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Trainee routes
		r.Route("/trainees", func(r chi.Router) {
			r.Get("/", h.ListTrainees)
			r.Post("/", h.CreateTrainee)
			r.Get("/{id}", h.GetTrainee)
			r.Post("/{id}/points", h.UpdatePoints)
			r.Get("/{id}/level", h.GetLevel)
			r.Get("/{id}/events", h.GetPointEvents)
			r.Get("/{id}/rewards", h.GetAvailableRewards)
			r.Get("/{id}/redemptions", h.GetTraineeRedemptions)
		})

		// Reward routes
		r.Route("/rewards", func(r chi.Router) {
			r.Get("/", h.ListRewards)
			r.Post("/", h.CreateReward)
			r.Get("/{id}", h.GetReward)
			r.Put("/{id}", h.UpdateReward)
			r.Delete("/{id}", h.RetireReward)
			r.Get("/{id}/redemptions", h.GetRewardRedemptions)
			r.Get("/{id}/stats", h.GetRewardStats)
		})

		// Redemption route (rate limited)
		r.Group(func(r chi.Router) {
			if opts.RedeemRatePerSec > 0 {
				r.Use(rateLimit(rate.Limit(opts.RedeemRatePerSec), opts.RedeemBurst))
			}
			r.Post("/redemptions", h.Redeem)
		})

		// Level catalog
		r.Get("/levels", h.ListLevels)
	})

	// Operational endpoints
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", h.Health)

	return r
}

// rateLimit rejects requests beyond the token bucket with 429. One global
// bucket: the endpoint guards the store, not individual clients.
func rateLimit(limit rate.Limit, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(limit, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "Too many redemption requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
