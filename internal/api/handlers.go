/**
 * @description
 * HTTP handlers for the Paxify API. Handlers parse the request, call one
 * application service and write the response envelope. They hold no business
 * rules of their own.
 *
 * @dependencies
 * - internal/app: services for auth, payments, fees, notifications, catalog and reporting.
 * - internal/domain: request and response models.
 */

package api

import (
	"time"

	"go.uber.org/zap"

	"github.com/idorocodes/paxify-backend/internal/app"
)

// Services groups the application services the handlers call.
type Services struct {
	Auth          *app.AuthService
	Payments      *app.PaymentEngine
	Fees          *app.FeeService
	Notifications *app.Dispatcher
	Catalog       *app.CatalogService
	Admin         *app.AdminService
	Student       *app.StudentService
}

// Options carries HTTP-level settings.
type Options struct {
	Production     bool
	AllowedOrigins []string
	RateLimiter    app.RateLimiter
	RequestTimeout time.Duration
}

// Handlers holds the services and settings every handler uses.
type Handlers struct {
	svc     Services
	limiter app.RateLimiter
	logger  *zap.Logger
	responder
}

// NewHandlers creates the handler set.
func NewHandlers(svc Services, opts Options, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "http"))
	return &Handlers{
		svc:       svc,
		limiter:   opts.RateLimiter,
		logger:    logger,
		responder: responder{production: opts.Production, logger: logger},
	}
}
