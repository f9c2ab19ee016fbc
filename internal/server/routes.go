package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/tally/internal/api/v1"
	"github.com/gosuda/tally/internal/api/ws"
)

func registerAuthRoutes(api huma.API, d Deps) {
	v1.RegisterAuthRoutes(api, d.Store, d.Auth)
}

func registerAccountRoutes(api huma.API, d Deps) {
	v1.RegisterOrganizationRoutes(api, d.Store)
	v1.RegisterAccountRoutes(api, d.Auth, d.Platforms)
}

func registerAuditRoutes(api huma.API, d Deps) {
	v1.RegisterAuditRoutes(api, d.Audits)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/audits/{auditID}", hub.ServeAudit)
	r.Get("/organization", hub.ServeOrganization)
}
