// Package server assembles the HTTP routes.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/lildude/stravastats/internal/handlers/activities"
	"github.com/lildude/stravastats/internal/handlers/admin"
	"github.com/lildude/stravastats/internal/handlers/callback"
	"github.com/lildude/stravastats/internal/handlers/update"
	"github.com/lildude/stravastats/internal/middleware"
	"github.com/sirupsen/logrus"
)

// Routes holds everything the router dispatches to.
type Routes struct {
	OAuthCallback http.HandlerFunc
	Events        update.EventHandler
	VerifyToken   string
	AdminToken    string
	Athletes      middleware.AthleteResolver
	Activities    *activities.Handler
	Admin         *admin.Handler
	Metrics       http.Handler
}

// NewRouter returns the service router.
func NewRouter(rt Routes, log logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if rt.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.Metrics)
	}

	r.Get("/oauth/callback", rt.OAuthCallback)
	r.Get("/strava/webhook", callback.Handler(rt.VerifyToken))
	r.Post("/strava/webhook", update.Handler(rt.Events, log))

	r.Group(func(r chi.Router) {
		r.Use(middleware.ResolveAthlete(rt.Athletes, log))
		r.Get("/activities", rt.Activities.Activities)
		r.Get("/stats/summary", rt.Activities.Summary)
		r.Get("/stats/compare", rt.Activities.Compare)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(rt.AdminToken))
		r.Use(middleware.ResolveAthlete(rt.Athletes, log))
		r.Post("/initial-import", rt.Admin.StartImport)
		r.Get("/import", rt.Admin.LastImport)
	})

	return r
}
