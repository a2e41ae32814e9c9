package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vidacare-health/vidacare-backend/api/controllers"
	"github.com/vidacare-health/vidacare-backend/api/middleware"
	"github.com/vidacare-health/vidacare-backend/internal/appointments"
	"github.com/vidacare-health/vidacare-backend/internal/caregivers"
	"github.com/vidacare-health/vidacare-backend/internal/chat"
	"github.com/vidacare-health/vidacare-backend/internal/dashboard"
	"github.com/vidacare-health/vidacare-backend/internal/ledger"
	"github.com/vidacare-health/vidacare-backend/internal/notifications"
	"github.com/vidacare-health/vidacare-backend/internal/payments"
	"github.com/vidacare-health/vidacare-backend/internal/users"
	"github.com/vidacare-health/vidacare-backend/pkg/auth/session"
	"github.com/vidacare-health/vidacare-backend/pkg/config"
	"github.com/vidacare-health/vidacare-backend/pkg/db"
	"github.com/vidacare-health/vidacare-backend/pkg/enums"
	"github.com/vidacare-health/vidacare-backend/pkg/logger"
	"github.com/vidacare-health/vidacare-backend/pkg/redis"
)

// Deps bundles everything the HTTP surface needs. The router owns no state;
// it only maps routes onto the services.
type Deps struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             db.Pinger
	Redis          *redis.Client
	SessionManager session.AccessSessionChecker
	Metrics        prometheus.Gatherer

	Users         users.Service
	Payments      payments.Service
	Ledger        ledger.Service
	Caregivers    caregivers.Service
	Appointments  appointments.Service
	Chat          chat.Service
	Notifications notifications.Service
	Dashboard     dashboard.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", controllers.AuthLogin(deps.Users, logg))
		r.Post("/register", controllers.AuthRegister(deps.Users, logg))
		r.Post("/logout", controllers.AuthLogout(deps.Users, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.Users, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.SessionManager, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Route("/me", func(r chi.Router) {
			r.Get("/", controllers.Profile(deps.Users, logg))
			r.Patch("/", controllers.UpdateProfile(deps.Users, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", controllers.CreatePayment(deps.Payments, logg))
			r.Get("/", controllers.ListPayments(deps.Payments, logg))
			r.Get("/{paymentId}", controllers.GetPayment(deps.Payments, logg))
			r.Post("/{paymentId}/process", controllers.ProcessPayment(deps.Payments, logg))
			r.Post("/{paymentId}/complete", controllers.CompletePayment(deps.Payments, deps.Ledger, logg))
			r.Post("/{paymentId}/fail", controllers.FailPayment(deps.Payments, logg))
			r.Post("/{paymentId}/cancel", controllers.CancelPayment(deps.Payments, logg))
			r.Post("/{paymentId}/refund", controllers.RefundPayment(deps.Ledger, logg))
			r.Delete("/{paymentId}", controllers.CancelPayment(deps.Payments, logg))
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", controllers.GetWallet(deps.Ledger, logg))
			r.Get("/transactions", controllers.ListWalletTransactions(deps.Ledger, logg))
			r.Post("/deposit", controllers.Deposit(deps.Ledger, logg))
			r.Post("/withdraw", controllers.Withdraw(deps.Ledger, logg))
		})

		r.Route("/caregivers", func(r chi.Router) {
			r.Post("/", controllers.CreateCaregiverProfile(deps.Caregivers, logg))
			r.Get("/", controllers.ListCaregivers(deps.Caregivers, logg))
			r.Get("/{userId}", controllers.GetCaregiverProfile(deps.Caregivers, logg))
			r.Patch("/{userId}", controllers.UpdateCaregiverProfile(deps.Caregivers, logg))
		})

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", controllers.BookAppointment(deps.Appointments, logg))
			r.Get("/", controllers.ListAppointments(deps.Appointments, logg))
			r.Get("/{appointmentId}", controllers.GetAppointment(deps.Appointments, logg))
			r.Post("/{appointmentId}/confirm", controllers.ConfirmAppointment(deps.Appointments, logg))
			r.Post("/{appointmentId}/start", controllers.StartAppointment(deps.Appointments, logg))
			r.Post("/{appointmentId}/complete", controllers.CompleteAppointment(deps.Appointments, logg))
			r.Post("/{appointmentId}/cancel", controllers.CancelAppointment(deps.Appointments, logg))
			r.Post("/{appointmentId}/no-show", controllers.MarkAppointmentNoShow(deps.Appointments, logg))

			r.Route("/{appointmentId}/messages", func(r chi.Router) {
				r.Post("/", controllers.SendMessage(deps.Chat, logg))
				r.Get("/", controllers.ListMessages(deps.Chat, logg))
				r.Post("/read-all", controllers.MarkConversationRead(deps.Chat, logg))
			})
		})

		r.Post("/messages/{messageId}/read", controllers.MarkMessageRead(deps.Chat, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Get("/unread-count", controllers.UnreadNotificationCount(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.SessionManager, logg))
		r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Get("/dashboard", controllers.AdminDashboard(deps.Dashboard, logg))
		r.Post("/ledger/adjust", controllers.AdminLedgerAdjust(deps.Ledger, logg))
		r.Post("/caregivers/{userId}/verify", controllers.VerifyCaregiver(deps.Caregivers, logg))
	})

	return r
}
