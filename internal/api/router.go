/**
 * @description
 * This file sets up the HTTP router for the Paxify API. It applies the shared
 * middleware (request ids, CORS, access logs, panic recovery, timeouts) and
 * mounts every route under /api with its auth requirements.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: routing and standard middleware.
 * - github.com/go-chi/cors: CORS handling for the web frontend.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/idorocodes/paxify-backend/internal/app"
)

const defaultRequestTimeout = 60 * time.Second

// NewRouter builds the full route tree.
func NewRouter(h *Handlers, opts Options) http.Handler {
	r := chi.NewRouter()

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"https://*", "http://*"}
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyKeyHeader},
		ExposedHeaders:   []string{"Content-Disposition", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeSuccess(w, http.StatusOK, "Paxify API is healthy", nil)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeSuccess(w, http.StatusOK, "Paxify API is healthy", nil)
		})

		r.Route("/auth", func(r chi.Router) {
			r.With(h.RateLimit(app.ScopeRegister)).Post("/register", h.RegisterHandler)
			r.With(h.RateLimit(app.ScopeLogin)).Post("/login", h.LoginHandler)
			r.Post("/refresh", h.RefreshHandler)
			r.Post("/verify-email", h.VerifyEmailHandler)
			r.With(h.RateLimit(app.ScopeForgotPassword)).Post("/forgot-password", h.ForgotPasswordHandler)
			r.With(h.RateLimit(app.ScopeResetPassword)).Post("/reset-password", h.ResetPasswordHandler)
		})

		// Paystack calls this directly; the signature authenticates it.
		r.Post("/payments/webhook", h.PaystackWebhookHandler)

		r.Get("/departments", h.ListDepartmentsHandler)
		r.Get("/faculties", h.ListFacultiesHandler)

		r.With(h.RateLimit(app.ScopeAdminLogin)).Post("/admin/login", h.AdminLoginHandler)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)

			r.Get("/users/profile", h.GetProfileHandler)
			r.Put("/users/profile", h.UpdateProfileHandler)
			r.Put("/users/change-password", h.ChangePasswordHandler)
			r.Get("/users/payments/due", h.DuePaymentsHandler)

			r.Get("/student/dashboard", h.StudentDashboardHandler)

			r.Get("/fees", h.ListFeesHandler)
			r.Get("/fees/{id}", h.GetFeeHandler)

			r.Post("/payments/initialize", h.InitializePaymentHandler)
			r.Get("/payments/verify/{reference}", h.VerifyPaymentHandler)
			r.Get("/payments", h.ListPaymentsHandler)
			r.Get("/payments/{id}", h.GetPaymentHandler)
			r.Get("/payments/{id}/receipt", h.ReceiptHandler)

			r.Get("/notifications", h.ListNotificationsHandler)
			r.Post("/notifications/mark-read", h.MarkNotificationsReadHandler)

			r.Route("/admin", func(r chi.Router) {
				r.Use(h.RequireAdmin)

				r.Post("/register", h.RegisterAdminHandler)
				r.Get("/dashboard/stats", h.AdminDashboardHandler)

				r.Get("/payments", h.AdminListPaymentsHandler)
				r.Get("/payments/{id}", h.AdminGetPaymentHandler)
				r.Get("/users", h.AdminListUsersHandler)

				r.Post("/fees", h.CreateFeeHandler)
				r.Post("/fees/assign", h.AssignFeeHandler)
				r.Put("/fees/{id}", h.UpdateFeeHandler)
				r.Delete("/fees/{id}", h.DeleteFeeHandler)

				r.Post("/notifications", h.DispatchNotificationHandler)
				r.Get("/reports/revenue", h.RevenueReportHandler)

				r.Post("/faculties", h.CreateFacultyHandler)
				r.Put("/faculties/{id}", h.UpdateFacultyHandler)
				r.Post("/departments", h.CreateDepartmentHandler)
				r.Put("/departments/{id}", h.UpdateDepartmentHandler)
				r.Delete("/departments/{id}", h.DeleteDepartmentHandler)
			})
		})
	})

	return r
}
