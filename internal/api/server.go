// Package api serves the operator dashboard surface over the driver's
// published snapshots: current state, radar output, recommendations, KPIs,
// the feedback log and the sandbox-gated plan apply. Handlers read one
// snapshot per request; they never reach into the engine's internals.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/driver"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/feedback"
)

// StateProvider hands out the latest cycle snapshot. The driver engine
// implements it; tests substitute a fixture.
type StateProvider interface {
	Snapshot() *driver.Snapshot
}

// Options wire one server instance.
type Options struct {
	Provider StateProvider
	Feedback *feedback.Log

	// Sandbox keeps POST /api/plan/apply advisory.
	Sandbox bool

	// Gatherer backs GET /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer

	CORSOrigins []string
}

// NewRouter assembles the API routes.
func NewRouter(opts Options) http.Handler {
	h := &handler{
		provider: opts.Provider,
		feedback: opts.Feedback,
		sandbox:  opts.Sandbox,
	}

	r := chi.NewRouter()
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)
	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.GetState)
		r.Get("/radar", h.GetRadar)
		r.Get("/recommendations", h.GetRecommendations)
		r.Get("/kpis", h.GetKPIs)
		r.Post("/feedback", h.PostFeedback)
		r.Get("/feedback/summary", h.GetFeedbackSummary)
		r.Post("/plan/apply", h.PostPlanApply)
	})
	return r
}
