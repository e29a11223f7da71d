package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/tipledger-backend/api/controllers"
	employeecontrollers "github.com/angelmondragon/tipledger-backend/api/controllers/employees"
	merchantcontrollers "github.com/angelmondragon/tipledger-backend/api/controllers/merchants"
	tipcontrollers "github.com/angelmondragon/tipledger-backend/api/controllers/tips"
	"github.com/angelmondragon/tipledger-backend/api/middleware"
	"github.com/angelmondragon/tipledger-backend/internal/employees"
	"github.com/angelmondragon/tipledger-backend/internal/merchants"
	"github.com/angelmondragon/tipledger-backend/internal/tableqrs"
	"github.com/angelmondragon/tipledger-backend/internal/tips"
	"github.com/angelmondragon/tipledger-backend/pkg/config"
	"github.com/angelmondragon/tipledger-backend/pkg/db"
	"github.com/angelmondragon/tipledger-backend/pkg/logger"
	"github.com/angelmondragon/tipledger-backend/pkg/redis"
)

// Deps are the collaborators served by the HTTP boundary. Redis and Metrics
// are optional.
type Deps struct {
	DB        db.Pinger
	Redis     *redis.Client
	Metrics   prometheus.Gatherer
	Tips      tips.Service
	Merchants merchants.Service
	Tables    tableqrs.Service
	Employees employees.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	var (
		replayStore redis.IdempotencyStore
		redisPinger db.Pinger
	)
	if deps.Redis != nil {
		replayStore = deps.Redis
		redisPinger = deps.Redis
	}
	replay := middleware.Idempotency(replayStore, cfg.Eventing.HTTPIdempotencyTTL, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.Dependency{Name: "database", Pinger: deps.DB},
			controllers.Dependency{Name: "redis", Pinger: redisPinger},
		))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/tips", func(r chi.Router) {
			r.Post("/", tipcontrollers.Create(deps.Tips, logg))
			r.Route("/{tipIntentId}", func(r chi.Router) {
				r.Get("/", tipcontrollers.Get(deps.Tips, logg))
				r.With(replay).Post("/confirm", tipcontrollers.Confirm(deps.Tips, logg))
				r.With(replay).Post("/reverse", tipcontrollers.Reverse(deps.Tips, logg))
				r.With(replay).Post("/assign", tipcontrollers.Assign(deps.Tips, logg))
			})
		})

		r.Route("/merchants/{merchantId}", func(r chi.Router) {
			r.Get("/tips/summary", merchantcontrollers.TipSummary(deps.Merchants, logg))
			r.Get("/tables", merchantcontrollers.Tables(deps.Tables, logg))
			r.Get("/employees", merchantcontrollers.Employees(deps.Employees, logg))
		})

		r.Get("/employees/{employeeId}/tips", employeecontrollers.Tips(deps.Employees, logg))
	})

	return r
}
