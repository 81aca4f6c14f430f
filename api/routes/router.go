package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clouddrivehq/clouddrive-backend/api/controllers"
	"github.com/clouddrivehq/clouddrive-backend/api/middleware"
	"github.com/clouddrivehq/clouddrive-backend/internal/notifications"
	"github.com/clouddrivehq/clouddrive-backend/internal/payments"
	"github.com/clouddrivehq/clouddrive-backend/internal/plans"
	"github.com/clouddrivehq/clouddrive-backend/internal/quota"
	"github.com/clouddrivehq/clouddrive-backend/pkg/config"
	"github.com/clouddrivehq/clouddrive-backend/pkg/db"
	"github.com/clouddrivehq/clouddrive-backend/pkg/logger"
	"github.com/clouddrivehq/clouddrive-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface needs.
type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         *redis.Client
	Plans         plans.Service
	Payments      payments.Service
	Quota         quota.Service
	Notifications notifications.Service
	Metrics       http.Handler
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessDeps(params)))
	})

	metricsHandler := params.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/plans", controllers.PlanList(params.Plans, logg))
		r.Get("/plans/{planId}", controllers.PlanDetail(params.Plans, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(params.Redis, logg))

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", controllers.PaymentCreate(params.Payments, logg))
			r.Get("/", controllers.PaymentList(params.Payments, logg))
			r.Get("/{intentId}", controllers.PaymentDetail(params.Payments, logg))
			r.Get("/{intentId}/qr", controllers.PaymentQR(params.Payments, logg))
			r.Post("/{intentId}/reference", controllers.PaymentSubmitReference(params.Payments, logg))
			r.Post("/{intentId}/cancel", controllers.PaymentCancel(params.Payments, logg))
		})

		r.Route("/subscription", func(r chi.Router) {
			r.Get("/usage", controllers.SubscriptionUsage(params.Quota, logg))
		})
		r.Route("/quota", func(r chi.Router) {
			r.Post("/reserve", controllers.QuotaReserve(params.Quota, logg))
			r.Post("/release", controllers.QuotaRelease(params.Quota, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(params.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(params.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(params.Notifications, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(params.Redis, logg))

		r.Route("/payments", func(r chi.Router) {
			r.Get("/pending", controllers.AdminPendingPayments(params.Payments, logg))
			r.Get("/by-reference/{reference}", controllers.AdminPaymentByReference(params.Payments, logg))
			r.Post("/{intentId}/resolve", controllers.AdminResolvePayment(params.Payments, logg))
			r.Post("/{intentId}/refund", controllers.AdminRefundPayment(params.Payments, logg))
		})
		r.Route("/plans", func(r chi.Router) {
			r.Post("/", controllers.AdminPlanCreate(params.Plans, logg))
			r.Put("/{planId}", controllers.AdminPlanUpdate(params.Plans, logg))
			r.Post("/{planId}/retire", controllers.AdminPlanRetire(params.Plans, logg))
			r.Delete("/{planId}", controllers.AdminPlanDelete(params.Plans, logg))
		})
	})

	return r
}

func readinessDeps(params RouterParams) map[string]controllers.Pinger {
	deps := map[string]controllers.Pinger{}
	if params.DB != nil {
		deps["database"] = params.DB
	}
	if params.Redis != nil {
		deps["redis"] = params.Redis
	}
	return deps
}
