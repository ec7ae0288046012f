package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public routes, no auth required.
	r.Get("/health", g.handleHealth())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// API endpoints require auth. Not mounted if no auth configured.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth, g.audit))
			r.Get("/status", g.handleStatus())
			r.Route("/api", func(r chi.Router) {
				r.Route("/tenants", func(r chi.Router) {
					r.Post("/", g.handleCreateTenant())
					r.Get("/", g.handleListTenants())
					r.Route("/{tenantID}", func(r chi.Router) {
						r.Use(g.tenantRateLimit())
						r.Get("/", g.handleGetTenant())
						r.Put("/", g.handleUpdateTenant())
						r.Delete("/", g.handleDeleteTenant())
						r.Post("/users", g.handleRegisterUser())
						r.Get("/users", g.handleListUsers())
						r.Delete("/users/{userID}", g.handleRemoveUser())
						r.Delete("/users/{userID}/memories", g.handleClearUserMemories())

						r.Route("/memories", func(r chi.Router) {
							r.Post("/", g.handleAddMemory())
							r.Get("/", g.handleListMemories())
							r.Get("/search", g.handleSearchMemories())
							r.Get("/count", g.handleCountMemories())
							r.Post("/sweep", g.handleSweepMemories())
							r.Get("/{id}", g.handleGetMemory())
							r.Delete("/{id}", g.handleDeleteMemory())
							r.Post("/{id}/pin", g.handlePinMemory())
							r.Delete("/{id}/pin", g.handleUnpinMemory())
						})

						r.Route("/skills", func(r chi.Router) {
							r.Post("/", g.handleRegisterSkill())
							r.Get("/", g.handleListSkills())
							r.Get("/{id}", g.handleGetSkill())
							r.Put("/{id}", g.handleUpdateSkill())
							r.Delete("/{id}", g.handleDeleteSkill())
						})

						r.Route("/market", func(r chi.Router) {
							r.Get("/", g.handleBrowseMarket())
							r.Post("/{id}/install", g.handleInstallSkill())
							r.Delete("/{id}/install", g.handleUninstallSkill())
						})

						r.Route("/sessions", func(r chi.Router) {
							r.Post("/", g.handleCreateSession())
							r.Get("/", g.handleListSessions())
							r.Get("/{id}", g.handleGetSession())
							r.Patch("/{id}", g.handleUpdateSession())
							r.Delete("/{id}", g.handleDeleteSession())
						})
					})
				})

				r.Route("/licenses", func(r chi.Router) {
					r.Post("/", g.handleIssueLicense())
					r.Get("/", g.handleListLicenses())
					r.Post("/activate", g.handleActivateLicense())
					r.Get("/{id}", g.handleGetLicense())
					r.Delete("/{id}", g.handleRevokeLicense())
				})
			})
		})
	}

	return r
}
