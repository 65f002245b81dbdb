// Package engagements provides the engagement lifecycle domain module:
// orders on product listings and bookings on service listings.
package engagements

import (
	"marketplace_backend/internal/engagements/handler"
	"marketplace_backend/internal/engagements/repository"
	"marketplace_backend/internal/engagements/service"
	"marketplace_backend/internal/events"
	apphttp "marketplace_backend/internal/http"
	listingsrepo "marketplace_backend/internal/listings/repository"
	membersrepo "marketplace_backend/internal/members/repository"
	"marketplace_backend/platform/clock"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/logger"
	"marketplace_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the engagements domain module
type Module struct {
	handler *handler.Handler
	Service *service.Service
}

// NewModule creates a new engagements module with all dependencies wired
func NewModule(pool *pgxpool.Pool, val *validator.Validator, bus events.Bus, sweepCfg config.SweepConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)
	listings := listingsrepo.New(pool)
	members := membersrepo.New(pool)
	svc := service.New(repo, listings, members, bus, clock.System(), sweepCfg, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		Service: svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "engagements"
}

// RegisterRoutes registers the module's routes under /api/v1
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterOrderRoutes(ctx.Protected.Group("/orders"))
	m.handler.RegisterBookingRoutes(ctx.Protected.Group("/bookings"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
