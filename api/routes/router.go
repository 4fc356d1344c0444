package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tradelinehq/tradeline/api/controllers"
	ledgercontrollers "github.com/tradelinehq/tradeline/api/controllers/ledger"
	ordercontrollers "github.com/tradelinehq/tradeline/api/controllers/orders"
	routingcontrollers "github.com/tradelinehq/tradeline/api/controllers/routings"
	"github.com/tradelinehq/tradeline/api/middleware"
	internalledger "github.com/tradelinehq/tradeline/internal/ledger"
	internalorders "github.com/tradelinehq/tradeline/internal/orders"
	"github.com/tradelinehq/tradeline/internal/routing"
	"github.com/tradelinehq/tradeline/pkg/config"
	"github.com/tradelinehq/tradeline/pkg/db"
	"github.com/tradelinehq/tradeline/pkg/logger"
	"github.com/tradelinehq/tradeline/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	ordersSvc internalorders.Service,
	routingSvc routing.Service,
	ledgerSvc internalledger.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(nil),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisP, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(ordersSvc, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(ordersSvc, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(ordersSvc, logg))
			r.Post("/{orderId}/fulfill", ordercontrollers.Fulfill(ordersSvc, logg))
		})

		r.Route("/routings", func(r chi.Router) {
			r.Post("/{routingId}/responses", routingcontrollers.Respond(routingSvc, logg))
		})

		r.Route("/ledger", func(r chi.Router) {
			r.Post("/settlements", ledgercontrollers.Settle(ledgerSvc, logg))
			r.Get("/balance", ledgercontrollers.Balance(ledgerSvc, logg))
			r.Get("/orders/{orderId}/entries", ledgercontrollers.History(ledgerSvc, logg))
		})
	})

	return r
}
