package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-checkout/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront-checkout/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/storefront-checkout/api/controllers/orders"
	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/internal/cart"
	checkoutsvc "github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-checkout/pkg/redis"
)

// RouterParams carries the services and probes mounted by NewRouter.
type RouterParams struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              controllers.Pinger
	Redis           *pkgredis.Client
	CartService     cart.Service
	CheckoutService checkoutsvc.Service
	OrdersService   orders.Service
	// Metrics serves the Prometheus exposition at /metrics when set.
	Metrics http.Handler
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	ready := map[string]controllers.Pinger{"db": p.DB}
	if p.Redis != nil {
		ready["redis"] = p.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, ready))
	})
	r.Get("/checkout/health", controllers.CheckoutHealth())
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics)
	}

	var idempotencyStore pkgredis.IdempotencyStore
	if p.Redis != nil {
		idempotencyStore = p.Redis
	}

	r.Route("/checkout/api", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Get("/ping", controllers.Ping())

		r.Route("/cart", func(r chi.Router) {
			r.Post("/", cartcontrollers.Create(p.CartService, logg))
			r.Get("/", cartcontrollers.Fetch(p.CartService, logg))
			r.Post("/items", cartcontrollers.AddItem(p.CartService, logg))
			r.Put("/items/{itemID}", cartcontrollers.UpdateItem(p.CartService, logg))
			r.Delete("/items/{itemID}", cartcontrollers.RemoveItem(p.CartService, logg))
		})

		r.Post("/place-order", ordercontrollers.PlaceOrder(p.CheckoutService, logg))
		r.Get("/orders/{orderNumber}", ordercontrollers.Get(p.OrdersService, logg))
	})

	return r
}
