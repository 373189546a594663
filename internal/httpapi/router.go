package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/cache"
	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/service/checkout"
	"github.com/vladislavdragonenkov/marketplace/internal/service/dispatch"
	"github.com/vladislavdragonenkov/marketplace/internal/service/payment"
)

const (
	requestTimeout = 15 * time.Second
	maxBodyBytes   = 1 << 20
)

// Handlers связывает REST-слой с сервисами маркетплейса.
type Handlers struct {
	checkout *checkout.Service
	payments *payment.Service
	dispatch *dispatch.Service
	variants domain.VariantRepository
	promos   domain.PromoRepository

	statusCache   *cache.OrderStatusCache
	webhookSecret []byte
	adminToken    string
	logger        *log.Entry
	now           func() time.Time
}

// Options — внешние зависимости REST-слоя.
type Options struct {
	Checkout *checkout.Service
	Payments *payment.Service
	Dispatch *dispatch.Service
	Variants domain.VariantRepository
	Promos   domain.PromoRepository

	// StatusCache опционален: nil отключает кэш статусов заказов.
	StatusCache   *cache.OrderStatusCache
	WebhookSecret []byte
	AdminToken    string
	Logger        *log.Entry
}

// NewHandlers создаёт REST-обработчики.
func NewHandlers(opts Options) *Handlers {
	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "httpapi")
	}
	return &Handlers{
		checkout:      opts.Checkout,
		payments:      opts.Payments,
		dispatch:      opts.Dispatch,
		variants:      opts.Variants,
		promos:        opts.Promos,
		statusCache:   opts.StatusCache,
		webhookSecret: opts.WebhookSecret,
		adminToken:    opts.AdminToken,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// NewRouter собирает chi-роутер со всеми маршрутами сервиса.
func NewRouter(h *Handlers) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Route("/orders", func(r chi.Router) {
		r.Post("/checkout", h.handleCheckout)
		r.Get("/", h.handleListOrders)
		r.Get("/{id}", h.handleGetOrder)
		r.Get("/{id}/status", h.handleGetOrderStatus)
		r.Post("/{id}/pay", h.handlePayOrder)
		r.Post("/{id}/cancel", h.handleCancelOrder)
	})

	r.Route("/payments", func(r chi.Router) {
		r.Post("/{order_id}/create", h.handleCreateIntent)
		r.Get("/{order_id}", h.handleListPayments)
		r.Post("/webhook", h.handleWebhook)
	})

	r.Route("/couriers", func(r chi.Router) {
		r.Post("/", h.handleRegisterCourier)
		r.Get("/available", h.handleAvailableCouriers)
		r.Get("/{id}", h.handleGetCourier)
		r.Post("/{id}/location", h.handleCourierLocation)
		r.Post("/{id}/availability", h.handleCourierAvailability)
	})

	r.Route("/deliveries", func(r chi.Router) {
		r.With(h.requireAdmin).Post("/{order_id}/assign", h.handleAssignDelivery)
		r.Post("/{order_id}/status", h.handleDeliveryStatus)
		r.Get("/order/{order_id}", h.handleGetDelivery)
	})

	r.Route("/variants", func(r chi.Router) {
		r.Get("/", h.handleListVariants)
		r.Get("/{id}", h.handleGetVariant)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Post("/variants", h.handleCreateVariant)
		r.Post("/promos", h.handleCreatePromo)
	})

	return r
}

// requireAdmin пропускает запрос только с корректным статическим токеном.
// Полноценная аутентификация вне области сервиса; это лишь шов для неё.
func (h *Handlers) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.adminToken == "" {
			writeJSON(w, http.StatusForbidden, errorBody{Error: errorDetail{
				Code:   "admin_disabled",
				Detail: "admin endpoints are not configured",
			}})
			return
		}

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: errorDetail{
				Code:   "unauthorized",
				Detail: "admin token is missing or invalid",
			}})
			return
		}
		next.ServeHTTP(w, r)
	})
}
