package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/tipledger-backend/api/controllers"
	"github.com/angelmondragon/tipledger-backend/api/middleware"
	"github.com/angelmondragon/tipledger-backend/pkg/config"
	"github.com/angelmondragon/tipledger-backend/pkg/logger"
)

// NewOpsRouter serves liveness, readiness and metrics for the background
// workers, which expose no API of their own.
func NewOpsRouter(cfg *config.Config, logg *logger.Logger, metrics prometheus.Gatherer, deps ...controllers.Dependency) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer(logg), middleware.Logging(logg))

	r.Get("/health/live", controllers.HealthLive(cfg))
	r.Get("/health/ready", controllers.HealthReady(cfg, logg, deps...))
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics, promhttp.HandlerOpts{}))
	}
	return r
}
